// Package flv splits a live FLV stream into relay contents.
package flv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/utils/pio"
	"github.com/kumaryu/peercaststation-sub003/utils/pool"
)

const Name = "Flash Video (FLV)"

const (
	ContentType = "FLV"
	MIMEType    = "video/x-flv"
)

var ErrMalformed = fmt.Errorf("flv: malformed data")

// Reader 는 파일 헤더와 시퀀스 헤더, onMetaData 태그를 모아 헤더 콘텐츠로,
// 나머지 태그는 읽은 그대로 데이터 콘텐츠로 보낸다.
type Reader struct {
	channel av.Channel
	now     func() time.Time
	pool    *pool.Pool

	fileHeader    []byte
	metadata      []byte
	audioSeq      []byte
	videoSeq      []byte
	headerChanged bool
	meta          MetaData

	info        av.ChannelInfo
	streamID    int
	streamStart time.Time
	position    int64
}

func NewReader(ch av.Channel) *Reader {
	return &Reader{
		channel: ch,
		now:     time.Now,
		pool:    pool.NewPool(),
	}
}

func (r *Reader) Name() string {
	return Name
}

func (r *Reader) Read(ctx context.Context, sink av.ContentSink, src io.Reader) error {
	r.info = r.channel.ChannelInfo().Clone()
	cr := av.NewContextReader(ctx, src)
	for {
		fileHeader, tag, err := r.readItem(cr)
		switch {
		case err == nil:
		case errors.Is(err, ErrMalformed):
			log.WithField("reader", Name).Debug("drop tag: ", err)
			continue
		case av.IsEndOfInput(err):
			log.WithField("reader", Name).Debug("end of input")
			return nil
		default:
			return err
		}
		if fileHeader != nil {
			r.onFileHeader(fileHeader)
			continue
		}
		r.onTag(sink, tag)
	}
}

// readItem 은 다음 파일 헤더 혹은 태그를 읽는다. 파일 헤더 전에는 태그를 받지 않는다.
// 어느 쪽으로도 시작하지 않는 바이트는 하나씩 버린다.
func (r *Reader) readItem(src io.Reader) ([]byte, *Tag, error) {
	h := make([]byte, tagHeaderLen)
	if _, err := io.ReadFull(src, h); err != nil {
		return nil, nil, err
	}
	skipped := 0
	for {
		if r.fileHeader != nil {
			if tag, ok := parseTagHeader(h); ok {
				if skipped > 0 {
					log.WithField("reader", Name).Debugf("skipped %d bytes", skipped)
				}
				return nil, tag, r.readTagBody(src, tag, h)
			}
		}
		if bytes.HasPrefix(h, signature) {
			fh := make([]byte, fileHeaderLen)
			copy(fh, h)
			if _, err := io.ReadFull(src, fh[tagHeaderLen:]); err != nil {
				return nil, nil, unexpected(err)
			}
			if validFileHeader(fh) {
				return fh, nil, nil
			}
			h = fh[fileHeaderLen-tagHeaderLen:]
			skipped += fileHeaderLen - tagHeaderLen
			continue
		}
		copy(h, h[1:])
		if _, err := io.ReadFull(src, h[tagHeaderLen-1:]); err != nil {
			return nil, nil, unexpected(err)
		}
		skipped++
	}
}

func (r *Reader) readTagBody(src io.Reader, tag *Tag, header []byte) error {
	size := int(tag.DataSize())
	raw := r.pool.Get(tagHeaderLen + size + prevTagSizeLen)
	copy(raw, header)
	if _, err := io.ReadFull(src, raw[tagHeaderLen:]); err != nil {
		return unexpected(err)
	}
	footer := raw[tagHeaderLen+size:]
	if pio.U32BE(footer) != uint32(size+tagHeaderLen) {
		return errors.Wrapf(ErrMalformed, "tag size %d, previous tag size %d", size, pio.U32BE(footer))
	}
	tag.Raw = raw
	tag.Body = raw[tagHeaderLen : tagHeaderLen+size]
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// onFileHeader 는 새 스트림의 시작이다. 이전 헤더 태그는 모두 버린다.
func (r *Reader) onFileHeader(fh []byte) {
	r.fileHeader = fh
	r.metadata = nil
	r.audioSeq = nil
	r.videoSeq = nil
	r.meta = MetaData{}
	r.headerChanged = true
}

func (r *Reader) onTag(sink av.ContentSink, tag *Tag) {
	flag := av.ContNone
	switch {
	case tag.IsScript():
		name, value, err := parseScriptData(tag.Body)
		if err != nil {
			log.WithField("reader", Name).Debug(err)
		}
		if name == onMetaData {
			if meta, err := decodeMetaData(value); err != nil {
				log.WithField("reader", Name).Debug(err)
			} else {
				r.meta = meta
			}
			r.metadata = tag.Raw
			r.headerChanged = true
			return
		}
	case tag.IsVideo():
		if _, err := tag.ParseMediaTagHeader(tag.Body, true); err == nil && tag.IsSeq() {
			r.videoSeq = tag.Raw
			r.headerChanged = true
			return
		}
		if !tag.IsKeyFrame() {
			flag = av.ContInterFrame
		}
	case tag.IsAudio():
		if _, err := tag.ParseMediaTagHeader(tag.Body, false); err == nil && tag.IsAACSeq() {
			r.audioSeq = tag.Raw
			r.headerChanged = true
			return
		}
		flag = av.ContAudioFrame
	}
	if r.headerChanged {
		r.emitHeader(sink)
	}
	sink.OnContent(&av.Content{
		Stream:    r.streamID,
		Timestamp: r.now().Sub(r.streamStart),
		Position:  r.position,
		Data:      tag.Raw,
		ContFlag:  flag,
	})
	r.position += int64(len(tag.Raw))
}

func (r *Reader) emitHeader(sink av.ContentSink) {
	blob := r.pool.Concat(r.fileHeader, r.metadata, r.audioSeq, r.videoSeq)

	r.info.SetContent(ContentType, MIMEType, ".flv")
	if bitrate := r.meta.Bitrate(); bitrate > 0 {
		r.info.SetBitrate(bitrate)
	}
	sink.OnChannelInfo(r.info.Clone())

	r.streamID = r.channel.GenerateStreamID()
	r.streamStart = r.now()
	sink.OnContentHeader(&av.Content{
		Stream:    r.streamID,
		Timestamp: 0,
		Position:  0,
		Data:      blob,
	})
	r.position = int64(len(blob))
	r.headerChanged = false

	log.WithFields(log.Fields{
		"reader": Name,
		"stream": r.streamID,
		"width":  r.meta.Width,
		"height": r.meta.Height,
		"size":   len(blob),
	}).Info("content header")
}
