package asf

import (
	"context"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
)

const Name = "ASF(WMV or WMA)"

// Reader forwards header and data chunks unchanged. Positions come from the
// channel's running counter, not from the reader.
type Reader struct {
	channel av.Channel
	now     func() time.Time

	info        av.ChannelInfo
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
	r.info = r.channel.ChannelInfo().Clone()
	cr := av.NewContextReader(ctx, src)
	for {
		c, err := ReadChunk(cr)
		if err != nil {
			if av.IsEndOfInput(err) {
				log.WithField("reader", Name).Debug("end of input")
				return nil
			}
			return err
		}
		switch c.Kind() {
		case ChunkHeader:
			r.onHeader(sink, c)
		case ChunkData:
			if !r.hasStream {
				log.WithField("reader", Name).Debug("drop data chunk before header")
				continue
			}
			sink.OnContent(&av.Content{
				Stream:    r.streamID,
				Timestamp: r.now().Sub(r.streamStart),
				Position:  r.channel.ContentPosition(),
				Data:      c.Bytes(),
			})
		default:
			log.WithField("reader", Name).Debug("drop ", c)
		}
	}
}

func (r *Reader) onHeader(sink av.ContentSink, c *Chunk) {
	header, err := ParseHeaderChunk(c)
	if err != nil {
		log.WithField("reader", Name).Debug("partial header: ", err)
	}
	contentType, mimeType, ext := header.ContentType()
	r.info.SetContent(contentType, mimeType, ext)
	bitrate, ok := header.ChannelBitrate()
	if ok {
		r.info.SetBitrate(bitrate)
	}
	sink.OnChannelInfo(r.info.Clone())

	r.streamID = r.channel.GenerateStreamID()
	r.hasStream = true
	r.streamStart = r.now()
	sink.OnContentHeader(&av.Content{
		Stream:    r.streamID,
		Timestamp: 0,
		Position:  r.channel.ContentPosition(),
		Data:      c.Bytes(),
	})

	log.WithFields(log.Fields{
		"reader":  Name,
		"stream":  r.streamID,
		"type":    contentType,
		"bitrate": bitrate,
		"streams": header.Streams,
	}).Info("content header")
}
