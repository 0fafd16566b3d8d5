// Package raw relays a source as is, in chunks of whatever the source
// delivers. It is the fallback when no container format is detected.
package raw

import (
	"context"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
)

const (
	Name        = "RAW"
	ContentType = "RAW"
	MIMEType    = "application/octet-stream"
)

// ChunkSize is the largest content a raw reader emits.
const ChunkSize = 8192

type Reader struct {
	channel     av.Channel
	now         func() time.Time
	streamID    int
	hasStream   bool
	streamStart time.Time
}

func NewReader(ch av.Channel) *Reader {
	return &Reader{
		channel: ch,
		now:     time.Now,
	}
}

func (r *Reader) Name() string {
	return Name
}

func (r *Reader) Read(ctx context.Context, sink av.ContentSink, src io.Reader) error {
	cr := av.NewContextReader(ctx, src)
	for {
		buf := make([]byte, ChunkSize)
		n, err := cr.Read(buf)
		if n > 0 {
			if !r.hasStream {
				r.emitHeader(sink)
			}
			sink.OnContent(&av.Content{
				Stream:    r.streamID,
				Timestamp: r.now().Sub(r.streamStart),
				Position:  r.channel.ContentPosition(),
				Data:      buf[:n:n],
			})
		}
		if err != nil {
			if av.IsEndOfInput(err) {
				log.WithField("reader", Name).Debug("end of input")
				return nil
			}
			return err
		}
	}
}

func (r *Reader) emitHeader(sink av.ContentSink) {
	info := r.channel.ChannelInfo().Clone()
	info.SetContentType(ContentType)
	info.SetMIMEType(MIMEType)
	sink.OnChannelInfo(info)

	r.streamID = r.channel.GenerateStreamID()
	r.hasStream = true
	r.streamStart = r.now()
	sink.OnContentHeader(&av.Content{
		Stream:   r.streamID,
		Position: r.channel.ContentPosition(),
		Data:     []byte{},
	})
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Name() string {
	return Name
}

func (f *Factory) Create(ch av.Channel) av.ContentReader {
	return NewReader(ch)
}

// TryDetect never matches; raw is only used when nothing else does or when
// asked for by name.
func (f *Factory) TryDetect(prefix []byte) (string, string, bool) {
	return "", "", false
}
