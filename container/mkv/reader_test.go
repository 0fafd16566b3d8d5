package mkv

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/av/avtest"
	"github.com/kumaryu/peercaststation-sub003/container/ebml"
)

func idBytes(id ebml.ID) []byte {
	var b []byte
	for v := uint64(id); v > 0; v >>= 8 {
		b = append([]byte{byte(v)}, b...)
	}
	return b
}

func uintBody(v uint64) []byte {
	b := []byte{byte(v)}
	for v >>= 8; v > 0; v >>= 8 {
		b = append([]byte{byte(v)}, b...)
	}
	return b
}

func cat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func elem(id ebml.ID, body []byte) []byte {
	size, err := ebml.EncodeSize(uint64(len(body)))
	if err != nil {
		panic(err)
	}
	return cat(idBytes(id), size.Binary, body)
}

func open(id ebml.ID) []byte {
	return cat(idBytes(id), ebml.UnknownSize(8).Binary)
}

func ebmlHeader(docType string) []byte {
	return ebmlHeaderLimits(docType, 4, 8)
}

func ebmlHeaderLimits(docType string, maxID, maxSize uint64) []byte {
	return elem(ebml.IDEBML, cat(
		elem(ebml.IDEBMLVersion, uintBody(1)),
		elem(ebml.IDEBMLMaxIDLength, uintBody(maxID)),
		elem(ebml.IDEBMLMaxSizeLength, uintBody(maxSize)),
		elem(ebml.IDDocType, []byte(docType)),
	))
}

func openN(id ebml.ID, n int) []byte {
	return cat(idBytes(id), ebml.UnknownSize(n).Binary)
}

func info(scale uint64) []byte {
	return elem(ebml.IDInfo, elem(ebml.IDTimecodeScale, uintBody(scale)))
}

func block(n int) []byte {
	return elem(ebml.IDSimpleBlock, bytes.Repeat([]byte{0x5a}, n))
}

func newTestReader(ch av.Channel) *Reader {
	r := NewReader(ch)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return start }
	return r
}

func TestScenarioA(t *testing.T) {
	header := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000))
	body := cat(open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(0)), block(16))
	input := cat(header, body)

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	err := newTestReader(ch).Read(context.Background(), sink, bytes.NewReader(input))
	require.NoError(t, err)

	infos := sink.Infos()
	require.Len(t, infos, 1)
	assert.Equal(t, "MKV", infos[0].ContentType())
	assert.Equal(t, "video/x-matroska", infos[0].MIMEType())
	assert.Equal(t, ".mkv", infos[0].ContentExtension())

	headers := sink.Headers()
	require.Len(t, headers, 1)
	assert.Equal(t, header, headers[0].Data)
	assert.Equal(t, int64(0), headers[0].Position)
	assert.Equal(t, 1, headers[0].Stream)

	contents := sink.Contents()
	require.Len(t, contents, 3)
	assert.Equal(t, open(ebml.IDCluster), contents[0].Data)
	assert.Equal(t, int64(len(header)), contents[0].Position)
	for i := 1; i < len(contents); i++ {
		assert.True(t, contents[i].Position > contents[i-1].Position)
		assert.Equal(t, contents[i-1].Position+int64(len(contents[i-1].Data)), contents[i].Position)
		assert.Equal(t, 1, contents[i].Stream)
	}

	assert.Equal(t, avtest.EventInfo, sink.Events[0].Kind)
	assert.Equal(t, avtest.EventHeader, sink.Events[1].Kind)
	assert.Equal(t, input, sink.Bytes())
}

func TestScenarioBTruncated(t *testing.T) {
	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	err := newTestReader(ch).Read(context.Background(), sink, bytes.NewReader([]byte{0x1a, 0x45}))
	require.NoError(t, err)
	assert.Empty(t, sink.Events)
}

func TestTruncatedBodyEmitsNothingPartial(t *testing.T) {
	input := cat(ebmlHeader("webm"), open(ebml.IDSegment), info(1000000), open(ebml.IDCluster), block(32))
	input = input[:len(input)-5]

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	require.NoError(t, newTestReader(ch).Read(context.Background(), sink, bytes.NewReader(input)))
	require.Len(t, sink.Contents(), 1)
	assert.Equal(t, open(ebml.IDCluster), sink.Contents()[0].Data)
}

func TestWebM(t *testing.T) {
	input := cat(ebmlHeader("webm"), open(ebml.IDSegment), info(1000000), open(ebml.IDCluster))
	ch := avtest.NewChannel()
	ch.GenerateStreamID()
	sink := avtest.NewSink(ch)
	require.NoError(t, newTestReader(ch).Read(context.Background(), sink, bytes.NewReader(input)))

	require.Len(t, sink.Infos(), 1)
	assert.Equal(t, "WEBM", sink.Infos()[0].ContentType())
	assert.Equal(t, "video/webm", sink.Infos()[0].MIMEType())
	assert.Equal(t, ".webm", sink.Infos()[0].ContentExtension())
	require.Len(t, sink.Headers(), 1)
	assert.Equal(t, 2, sink.Headers()[0].Stream)
}

func TestScenarioDBitrateWindow(t *testing.T) {
	const blockBody = 12500
	input := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000))
	for i := 0; i < 5; i++ {
		input = append(input, open(ebml.IDCluster)...)
		input = append(input, elem(ebml.IDTimecode, uintBody(uint64(i)*10000))...)
		input = append(input, block(blockBody)...)
	}

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	r := newTestReader(ch)
	require.NoError(t, r.Read(context.Background(), sink, bytes.NewReader(input)))

	infos := sink.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, 0, infos[0].Bitrate())
	// three closed clusters of 10s each, 12500 bytes per cluster
	assert.Equal(t, 10, infos[1].Bitrate())

	// the bitrate event comes right before the fifth cluster marker
	var markers int
	for i, e := range sink.Events {
		if e.Kind == avtest.EventContent && bytes.Equal(e.Content.Data, open(ebml.IDCluster)) {
			markers++
			if markers == 5 {
				assert.Equal(t, avtest.EventInfo, sink.Events[i-1].Kind)
			}
		}
	}
	assert.Equal(t, 5, markers)

	// collapsed to the fourth cluster, then the fifth was pushed
	require.Len(t, r.window.clusters, 2)
	assert.Equal(t, 30.0, r.window.clusters[0].start)
	assert.Equal(t, 10.0, r.window.clusters[0].timespan)
	assert.Equal(t, 40.0, r.window.clusters[1].start)
	assert.Equal(t, input, sink.Bytes())
}

func TestBitrateWindowNotReached(t *testing.T) {
	input := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000))
	for i := 0; i < 4; i++ {
		input = append(input, open(ebml.IDCluster)...)
		input = append(input, elem(ebml.IDTimecode, uintBody(uint64(i)*10000))...)
		input = append(input, block(100)...)
	}
	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	require.NoError(t, newTestReader(ch).Read(context.Background(), sink, bytes.NewReader(input)))
	assert.Len(t, sink.Infos(), 1)
}

func TestTimecodeScale(t *testing.T) {
	input := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(500000),
		open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(4000)))
	ch := avtest.NewChannel()
	r := newTestReader(ch)
	require.NoError(t, r.Read(context.Background(), avtest.NewSink(ch), bytes.NewReader(input)))
	require.NotNil(t, r.window.last())
	assert.Equal(t, 2.0, r.window.last().start)
}

func TestBlockRunLock(t *testing.T) {
	group := elem(ebml.IDBlockGroup, elem(0xa1, []byte{1, 2, 3}))
	input := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000),
		open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(0)),
		block(10), block(20), group, block(5))

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	r := newTestReader(ch)
	require.NoError(t, r.Read(context.Background(), sink, bytes.NewReader(input)))

	// blocks after the run are forwarded but not counted
	assert.Equal(t, uint64(30), r.window.last().blockSize)
	assert.Len(t, sink.Contents(), 6)
	assert.Equal(t, input, sink.Bytes())
}

func TestOtherElementsInsideCluster(t *testing.T) {
	input := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000),
		elem(ebml.IDTracks, []byte{0xae, 0x80}),
		open(ebml.IDCluster), elem(ebml.IDVoid, []byte{0, 0}),
		elem(ebml.IDTimecode, uintBody(0)), elem(ebml.IDPosition, uintBody(7)),
		block(8), elem(ebml.IDCues, []byte{0xbb, 0x80}))

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	require.NoError(t, newTestReader(ch).Read(context.Background(), sink, bytes.NewReader(input)))

	require.Len(t, sink.Headers(), 1)
	assert.Contains(t, string(sink.Headers()[0].Data), string(elem(ebml.IDTracks, []byte{0xae, 0x80})))
	assert.Len(t, sink.Contents(), 6)
	assert.Equal(t, input, sink.Bytes())
}

func TestMalformedHeadersAreDropped(t *testing.T) {
	garbage := []byte{0x00, 0xec, 0x81, 0x00}
	longID := []byte{0x08, 0x00, 0x00, 0x00, 0x01, 0x80}
	header := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000))
	input := cat(garbage, header, open(ebml.IDCluster), longID, elem(ebml.IDTimecode, uintBody(0)), block(4))

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	require.NoError(t, newTestReader(ch).Read(context.Background(), sink, bytes.NewReader(input)))

	require.Len(t, sink.Headers(), 1)
	assert.Equal(t, header, sink.Headers()[0].Data)
	assert.Equal(t, cat(header, open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(0)), block(4)), sink.Bytes())
}

func TestSizeLengthLimit(t *testing.T) {
	hdr := ebmlHeaderLimits("webm", 4, 4)

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	r := newTestReader(ch)
	require.NoError(t, r.Read(context.Background(), sink, bytes.NewReader(cat(hdr, open(ebml.IDSegment)))))
	assert.Equal(t, 4, r.doc.MaxSizeLength)
	assert.Equal(t, stateSegment, r.state)
	assert.Empty(t, sink.Events)

	header := cat(hdr, openN(ebml.IDSegment, 4), info(1000000))
	body := cat(openN(ebml.IDCluster, 4), elem(ebml.IDTimecode, uintBody(0)), block(4))
	input := cat(hdr, open(ebml.IDSegment), openN(ebml.IDSegment, 4), info(1000000),
		open(ebml.IDCluster), body)

	ch = avtest.NewChannel()
	sink = avtest.NewSink(ch)
	r = newTestReader(ch)
	require.NoError(t, r.Read(context.Background(), sink, bytes.NewReader(input)))
	require.Len(t, sink.Headers(), 1)
	assert.Equal(t, header, sink.Headers()[0].Data)
	assert.Equal(t, cat(header, body), sink.Bytes())
	assert.Equal(t, stateBlock, r.state)
}

func TestBadLengthLimitsKeepDefaults(t *testing.T) {
	input := cat(ebmlHeaderLimits("matroska", 0, 0), open(ebml.IDSegment), info(1000000),
		open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(0)), block(4),
		ebmlHeader("webm"), open(ebml.IDSegment), info(1000000))

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	r := newTestReader(ch)
	require.NoError(t, r.Read(context.Background(), sink, bytes.NewReader(input)))
	assert.Equal(t, ebml.DefaultDocument().MaxIDLength, r.doc.MaxIDLength)
	require.Len(t, sink.Headers(), 1)
	assert.Len(t, sink.Contents(), 3)
	// the second EBML root is accepted and waits for its first Cluster
	assert.Equal(t, stateEndOfHeader, r.state)
	assert.Equal(t, "webm", r.doc.DocType)
}

func TestBlocksAfterRunAreForwarded(t *testing.T) {
	group := elem(ebml.IDBlockGroup, elem(0xa1, []byte{1, 2, 3}))
	first := cat(open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(0)),
		block(10), group, block(7), elem(ebml.IDVoid, []byte{0}))
	second := cat(open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(10000)), block(3))
	input := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000), first, second)

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	r := newTestReader(ch)
	require.NoError(t, r.Read(context.Background(), sink, bytes.NewReader(input)))

	contents := sink.Contents()
	require.Len(t, contents, 9)
	assert.Equal(t, group, contents[3].Data)
	assert.Equal(t, block(7), contents[4].Data)
	for i := 1; i < len(contents); i++ {
		assert.Equal(t, contents[i-1].Position+int64(len(contents[i-1].Data)), contents[i].Position)
	}

	// only the locked run of each cluster is counted
	require.Len(t, r.window.clusters, 2)
	assert.Equal(t, uint64(10), r.window.clusters[0].blockSize)
	assert.Equal(t, 10.0, r.window.clusters[0].timespan)
	assert.Equal(t, uint64(3), r.window.clusters[1].blockSize)
	assert.Equal(t, stateBlock, r.state)
	assert.Equal(t, input, sink.Bytes())
}

func TestRestartOnNewHeader(t *testing.T) {
	first := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000))
	second := cat(ebmlHeader("webm"), open(ebml.IDSegment), info(1000000))
	input := cat(first, open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(0)), block(4),
		second, open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(0)), block(4))

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	require.NoError(t, newTestReader(ch).Read(context.Background(), sink, bytes.NewReader(input)))

	headers := sink.Headers()
	require.Len(t, headers, 2)
	assert.Equal(t, first, headers[0].Data)
	assert.Equal(t, second, headers[1].Data)
	assert.Equal(t, 1, headers[0].Stream)
	assert.Equal(t, 2, headers[1].Stream)
	assert.Equal(t, int64(0), headers[1].Position)

	infos := sink.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, "WEBM", infos[1].ContentType())

	last := sink.Contents()[len(sink.Contents())-1]
	assert.Equal(t, 2, last.Stream)
	assert.Equal(t, int64(len(second)+len(open(ebml.IDCluster))+len(elem(ebml.IDTimecode, uintBody(0)))), last.Position)
}

func TestSecondSegmentReplacesHeaders(t *testing.T) {
	ebmlPart := cat(ebmlHeader("matroska"), elem(ebml.IDVoid, []byte{0}))
	input := cat(ebmlPart, open(ebml.IDSegment), info(1000000),
		open(ebml.IDSegment), info(2000000), open(ebml.IDCluster))

	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	require.NoError(t, newTestReader(ch).Read(context.Background(), sink, bytes.NewReader(input)))
	require.Len(t, sink.Headers(), 1)
	assert.Equal(t, cat(ebmlPart, open(ebml.IDSegment), info(2000000)), sink.Headers()[0].Data)
}

func TestCancel(t *testing.T) {
	input := cat(ebmlHeader("matroska"), open(ebml.IDSegment), info(1000000),
		open(ebml.IDCluster), elem(ebml.IDTimecode, uintBody(0)), block(4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := avtest.NewChannel()
	sink := avtest.NewSink(ch)
	err := newTestReader(ch).Read(ctx, sink, bytes.NewReader(input))
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, sink.Events)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	sink = avtest.NewSink(ch)
	sink.OnEvent = func(e avtest.Event) {
		if e.Kind == avtest.EventHeader {
			cancel()
		}
	}
	err = newTestReader(ch).Read(ctx, sink, bytes.NewReader(input))
	assert.Equal(t, context.Canceled, err)
	assert.Len(t, sink.Headers(), 1)
	// the Cluster header was already read when the header went out
	require.Len(t, sink.Contents(), 1)
	assert.Equal(t, open(ebml.IDCluster), sink.Contents()[0].Data)
}

func TestTryDetect(t *testing.T) {
	f := NewFactory()
	assert.Equal(t, "Matroska (MKV or WebM)", f.Name())

	typ, mime, ok := f.TryDetect(cat(ebmlHeader("webm"), open(ebml.IDSegment)))
	require.True(t, ok)
	assert.Equal(t, "WEBM", typ)
	assert.Equal(t, "video/webm", mime)

	typ, _, ok = f.TryDetect(ebmlHeader("matroska"))
	require.True(t, ok)
	assert.Equal(t, "MKV", typ)

	typ, _, ok = f.TryDetect(ebmlHeader("webm")[:6])
	require.True(t, ok)
	assert.Equal(t, "MKV", typ)

	_, _, ok = f.TryDetect([]byte("FLV\x01"))
	assert.False(t, ok)
}
