package httpstream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
)

const maxQueueNum = 1024

var (
	ErrQueueFull    = fmt.Errorf("packet queue full")
	ErrWriterClosed = fmt.Errorf("writer closed")
)

// streamWriter 는 채널에서 받은 콘텐츠를 큐에 넣고, 시청자 HTTP 연결로 순서대로 보낸다.
// 채널의 fan-out 은 리더 고루틴에서 동기로 일어나므로 여기서 블로킹하면 안 된다.
type streamWriter struct {
	av.RWBaser  // 시청자에게 마지막으로 쓴 시각
	info        av.Info
	packetQueue chan *av.Content
	closed      chan struct{}
	once        sync.Once
	err         error
}

func newStreamWriter(info av.Info, timeout time.Duration) *streamWriter {
	return &streamWriter{
		RWBaser:     av.NewRWBaser(timeout),
		info:        info,
		packetQueue: make(chan *av.Content, maxQueueNum),
		closed:      make(chan struct{}),
	}
}

func (w *streamWriter) Info() av.Info {
	return w.info
}

func (w *streamWriter) WriteHeader(c *av.Content) error {
	return w.enqueue(c)
}

func (w *streamWriter) Write(c *av.Content) error {
	return w.enqueue(c)
}

// 큐가 가득 찼다면 시청자가 따라오지 못하는 것이므로 끊는다.
// 콘텐츠를 중간에 버리면 스트림이 깨진다.
func (w *streamWriter) enqueue(c *av.Content) error {
	select {
	case <-w.closed:
		return ErrWriterClosed
	default:
	}
	select {
	case w.packetQueue <- c:
		return nil
	default:
		log.Warningf("[%v] packet queue max!!!", w.info)
		return ErrQueueFull
	}
}

func (w *streamWriter) Close(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.closed)
	})
}

// SendPacket copies queued contents to rw until the writer is closed, the
// client goes away or a write fails.
func (w *streamWriter) SendPacket(ctx context.Context, rw http.ResponseWriter) error {
	flusher, _ := rw.(http.Flusher)
	log.Debugf("[%v] http sender start", w.info)
	defer log.Debugf("[%v] http sender stop", w.info)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.closed:
			return w.err
		case c := <-w.packetQueue:
			if _, err := rw.Write(c.Data); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
			w.SetPreTime()
		}
	}
}
