package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/av/avtest"
)

func packet(stream int, pos int64, data string) *av.Content {
	return &av.Content{Stream: stream, Position: pos, Data: []byte(data)}
}

func feed(ch *Channel, stream int, n int) []*av.Content {
	h := packet(stream, 0, "HEAD")
	ch.OnContentHeader(h)
	res := []*av.Content{h}
	pos := int64(len(h.Data))
	for i := 0; i < n; i++ {
		c := packet(stream, pos, "data")
		ch.OnContent(c)
		res = append(res, c)
		pos += int64(len(c.Data))
	}
	return res
}

func TestChannelFanOut(t *testing.T) {
	ch := NewChannel("test", 3, time.Minute)
	early := avtest.NewWriter(av.Info{UID: "early"})
	require.NoError(t, ch.AddWriter(early))
	assert.Empty(t, early.Packets())

	sent := feed(ch, ch.GenerateStreamID(), 5)
	assert.Equal(t, sent, early.Packets())
	assert.Equal(t, 1, early.HeaderCount())

	late := avtest.NewWriter(av.Info{UID: "late"})
	require.NoError(t, ch.AddWriter(late))
	got := late.Packets()
	require.Len(t, got, 4)
	assert.Equal(t, sent[0], got[0])
	assert.Equal(t, sent[3:], got[1:])

	last := sent[len(sent)-1]
	assert.Equal(t, last.Position+int64(len(last.Data)), ch.ContentPosition())
	assert.Equal(t, 2, ch.Writers())
	assert.Len(t, ch.Contents(), 3)
}

func TestNewHeaderResetsCache(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	feed(ch, ch.GenerateStreamID(), 4)
	sent := feed(ch, ch.GenerateStreamID(), 1)

	assert.Equal(t, 2, ch.Header().Stream)
	assert.Equal(t, sent[1:], ch.Contents())

	w := avtest.NewWriter(av.Info{UID: "w"})
	require.NoError(t, ch.AddWriter(w))
	assert.Equal(t, sent, w.Packets())
}

func TestContentBeforeHeaderIsDropped(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	ch.OnContent(packet(1, 0, "orphan"))
	assert.Nil(t, ch.Header())
	assert.Empty(t, ch.Contents())
	assert.Equal(t, int64(0), ch.ContentPosition())
}

func TestGenerateStreamID(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	assert.Equal(t, 1, ch.GenerateStreamID())
	assert.Equal(t, 2, ch.GenerateStreamID())
	assert.Equal(t, 3, ch.GenerateStreamID())
}

func TestChannelInfoMerge(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	ch.OnChannelInfo(av.ChannelInfo{av.InfoContentType: "MKV", av.InfoBitrate: "100"})
	ch.OnChannelInfo(av.ChannelInfo{av.InfoBitrate: "200", av.InfoName: "other"})

	info := ch.ChannelInfo()
	assert.Equal(t, "MKV", info.ContentType())
	assert.Equal(t, 200, info.Bitrate())
	assert.Equal(t, "test", info.Name())

	info.SetBitrate(1)
	assert.Equal(t, 200, ch.ChannelInfo().Bitrate())
}

func TestFailedWriterIsRemoved(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	fail := errors.New("broken pipe")
	bad := avtest.NewWriter(av.Info{UID: "bad"})
	good := avtest.NewWriter(av.Info{UID: "good"})
	require.NoError(t, ch.AddWriter(bad))
	require.NoError(t, ch.AddWriter(good))

	bad.Fail = fail
	feed(ch, 1, 2)

	closed, err := bad.Closed()
	assert.True(t, closed)
	assert.Equal(t, fail, err)
	assert.Equal(t, 1, ch.Writers())
	assert.Len(t, good.Packets(), 3)
}

func TestAddWriterFailure(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	feed(ch, 1, 1)
	w := avtest.NewWriter(av.Info{UID: "w"})
	w.Fail = errors.New("nope")
	assert.Error(t, ch.AddWriter(w))
	assert.Equal(t, 0, ch.Writers())
}

func TestStartSourceReplacesPrevious(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	second, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()

	require.NoError(t, ch.StartSource(av.Info{UID: "a", URL: "http://a"}, cancelFirst))
	require.NoError(t, ch.StartSource(av.Info{UID: "b", URL: "http://b"}, cancelSecond))
	assert.Error(t, first.Err())
	assert.NoError(t, second.Err())

	src, ok := ch.Source()
	require.True(t, ok)
	assert.Equal(t, "b", src.UID)

	// stopping a replaced session leaves the current one bound
	ch.StopSource(av.Info{UID: "a"})
	_, ok = ch.Source()
	assert.True(t, ok)

	ch.StopSource(av.Info{UID: "b"})
	_, ok = ch.Source()
	assert.False(t, ok)
}

func TestStopSourceClosesInternalWriters(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.StartSource(av.Info{UID: "src"}, cancel))

	archive := avtest.NewWriter(av.Info{UID: "archive", Inter: true})
	viewer := avtest.NewWriter(av.Info{UID: "viewer"})
	require.NoError(t, ch.AddWriter(archive))
	require.NoError(t, ch.AddWriter(viewer))

	ch.StopSource(av.Info{UID: "src"})
	closed, err := archive.Closed()
	assert.True(t, closed)
	assert.Equal(t, ErrSourceClosed, err)
	closed, _ = viewer.Closed()
	assert.False(t, closed)
	assert.Equal(t, 1, ch.Writers())
}

func TestCheckAlive(t *testing.T) {
	ch := NewChannel("test", 10, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.StartSource(av.Info{UID: "src"}, cancel))

	live := avtest.NewWriter(av.Info{UID: "live"})
	dead := avtest.NewWriter(av.Info{UID: "dead"})
	dead.Dead = true
	require.NoError(t, ch.AddWriter(live))
	require.NoError(t, ch.AddWriter(dead))

	assert.Equal(t, 2, ch.CheckAlive())
	closed, err := dead.Closed()
	assert.True(t, closed)
	assert.Equal(t, ErrWriteTimeout, err)
	assert.NoError(t, ctx.Err())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, ch.CheckAlive())
	assert.Error(t, ctx.Err())
}

func TestChannelClose(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.StartSource(av.Info{UID: "src"}, cancel))
	w := avtest.NewWriter(av.Info{UID: "w"})
	require.NoError(t, ch.AddWriter(w))

	ch.Close()
	assert.Error(t, ctx.Err())
	closed, err := w.Closed()
	assert.True(t, closed)
	assert.Equal(t, ErrChannelClosed, err)
	assert.Equal(t, ErrChannelClosed, ch.AddWriter(avtest.NewWriter(av.Info{UID: "x"})))
	assert.Equal(t, ErrChannelClosed, ch.StartSource(av.Info{UID: "y"}, cancel))
}

func TestStatus(t *testing.T) {
	ch := NewChannel("test", 10, time.Minute)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.StartSource(av.Info{UID: "src", URL: "http://example.com/a.webm"}, cancel))
	feed(ch, ch.GenerateStreamID(), 2)

	st := ch.Status()
	assert.Equal(t, ch.ID(), st.ID)
	assert.Equal(t, "test", st.Name)
	assert.Equal(t, "http://example.com/a.webm", st.Source)
	assert.Equal(t, 1, st.Stream)
	assert.Equal(t, int64(12), st.Position)
	assert.Equal(t, 2, st.Cached)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(10, time.Minute)
	defer r.Close()

	a, created := r.GetOrCreate("a")
	assert.True(t, created)
	again, created := r.GetOrCreate("a")
	assert.False(t, created)
	assert.Same(t, a, again)
	b, _ := r.GetOrCreate("b")

	got, ok := r.Lookup(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
	got, ok = r.Lookup("b")
	require.True(t, ok)
	assert.Same(t, b, got)
	_, ok = r.Lookup("c")
	assert.False(t, ok)

	chans := r.Channels()
	require.Len(t, chans, 2)
	assert.Equal(t, "a", chans[0].Name())
	assert.Equal(t, "b", chans[1].Name())

	r.Remove(a.ID())
	_, ok = r.Find("a")
	assert.False(t, ok)
	assert.Equal(t, ErrChannelClosed, a.AddWriter(avtest.NewWriter(av.Info{UID: "x"})))
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry(10, time.Minute)
	defer r.Close()

	idle, _ := r.GetOrCreate("idle")
	pinned, _ := r.GetOrCreate("pinned")
	pinned.SetPersistent(true)
	watched, _ := r.GetOrCreate("watched")
	require.NoError(t, watched.AddWriter(avtest.NewWriter(av.Info{UID: "w"})))

	r.sweep()
	_, ok := r.Get(idle.ID())
	assert.False(t, ok)
	_, ok = r.Get(pinned.ID())
	assert.True(t, ok)
	_, ok = r.Get(watched.ID())
	assert.True(t, ok)
}

type revoked struct {
	mu    sync.Mutex
	names []string
}

func (k *revoked) DeleteChannel(channel string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.names = append(k.names, channel)
	return true
}

func TestRegistrySweepRevokesKeys(t *testing.T) {
	r := NewRegistry(10, time.Minute)
	defer r.Close()
	keys := &revoked{}
	r.SetKeyRevoker(keys)

	r.GetOrCreate("idle")
	pinned, _ := r.GetOrCreate("pinned")
	pinned.SetPersistent(true)
	b, _ := r.GetOrCreate("removed")
	r.Remove(b.ID())

	r.sweep()
	keys.mu.Lock()
	defer keys.mu.Unlock()
	assert.Equal(t, []string{"idle"}, keys.names)
}
