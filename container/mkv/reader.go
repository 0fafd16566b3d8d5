// Package mkv splits a live Matroska or WebM stream into relay contents.
package mkv

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/container/ebml"
	"github.com/kumaryu/peercaststation-sub003/utils/pool"
)

const defaultTimecodeScale = 1000000

type state int

const (
	stateEBML state = iota
	stateSegment
	stateEndOfHeader
	stateCluster
	stateTimecode
	stateBlock
	numStates
)

func (s state) String() string {
	switch s {
	case stateEBML:
		return "EBML"
	case stateSegment:
		return "Segment"
	case stateEndOfHeader:
		return "EndOfHeader"
	case stateCluster:
		return "Cluster"
	case stateTimecode:
		return "Timecode"
	case stateBlock:
		return "Block"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// kind is the structural role of an element ID.
type kind int

const (
	kindOther kind = iota
	kindEBML
	kindSegment
	kindInfo
	kindCluster
	kindTimecode
	kindBlock
	kindVoid
)

var kinds = map[ebml.ID]kind{
	ebml.IDEBML:        kindEBML,
	ebml.IDSegment:     kindSegment,
	ebml.IDInfo:        kindInfo,
	ebml.IDCluster:     kindCluster,
	ebml.IDTimecode:    kindTimecode,
	ebml.IDSimpleBlock: kindBlock,
	ebml.IDBlockGroup:  kindBlock,
	ebml.IDVoid:        kindVoid,
	ebml.IDCRC32:       kindVoid,
}

func classify(h ebml.Header) kind {
	return kinds[h.ElementID()]
}

// Reader is the content reader of one source session. It never seeks back:
// when a header belongs to another structural level the state changes and
// the same header is classified again.
type Reader struct {
	channel av.Channel
	now     func() time.Time
	pool    *pool.Pool

	state         state
	doc           ebml.Document
	timecodeScale uint64
	headers       []*ebml.Element
	segmentAt     int // index of the Segment placeholder in headers, -1 if none
	window        window

	info        av.ChannelInfo
	streamID    int
	streamStart time.Time
	position    int64
}

func NewReader(ch av.Channel) *Reader {
	return &Reader{
		channel:       ch,
		now:           time.Now,
		pool:          pool.NewPool(),
		state:         stateEBML,
		doc:           ebml.DefaultDocument(),
		timecodeScale: defaultTimecodeScale,
		segmentAt:     -1,
		window:        window{span: DefaultBitrateWindow},
	}
}

func (r *Reader) Name() string {
	return Name
}

// Read parses src until it ends or ctx is cancelled. Running out of input is
// a normal end; malformed headers are dropped and parsing goes on.
func (r *Reader) Read(ctx context.Context, sink av.ContentSink, src io.Reader) error {
	r.info = av.NewChannelInfo()
	if info := r.channel.ChannelInfo(); info != nil {
		r.info = info.Clone()
	}
	er := ebml.NewReader(av.NewContextReader(ctx, src))
	for {
		h, err := er.ReadHeader()
		if err == nil {
			if err = r.doc.Validate(h); err == nil {
				err = r.process(er, sink, h)
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, ebml.ErrMalformed):
			log.WithFields(log.Fields{
				"reader": Name,
				"state":  r.state,
			}).Debug("drop header: ", err)
		case av.IsEndOfInput(err):
			log.WithField("reader", Name).Debug("end of input")
			return nil
		default:
			return err
		}
	}
}

// process runs h through the state machine. A transition that asks for the
// header to be classified again loops here instead of reading new input.
func (r *Reader) process(er *ebml.Reader, sink av.ContentSink, h ebml.Header) error {
	for i := 0; i < int(numStates); i++ {
		again, err := r.step(er, sink, h)
		if err != nil || !again {
			return err
		}
	}
	return errors.Wrapf(ebml.ErrMalformed, "%s kept changing state", h.ElementID())
}

func (r *Reader) malformed(h ebml.Header) error {
	return errors.Wrapf(ebml.ErrMalformed, "unexpected %s in %s", h.ElementID(), r.state)
}

func (r *Reader) reprocess(s state) (bool, error) {
	r.state = s
	return true, nil
}

func (r *Reader) step(er *ebml.Reader, sink av.ContentSink, h ebml.Header) (bool, error) {
	k := classify(h)
	switch r.state {
	case stateEBML:
		if k != kindEBML {
			return false, r.malformed(h)
		}
		e, err := er.ReadBody(h)
		if err != nil {
			return false, err
		}
		doc, err := ebml.ParseDocument(e.Data)
		if err != nil {
			log.WithField("reader", Name).Debug(err)
		}
		r.doc = doc
		r.headers = []*ebml.Element{e}
		r.segmentAt = -1
		r.state = stateSegment

	case stateSegment:
		switch k {
		case kindSegment:
			if r.segmentAt >= 0 {
				r.headers = r.headers[:r.segmentAt]
			}
			r.segmentAt = len(r.headers)
			r.headers = append(r.headers, &ebml.Element{Header: h})
			r.timecodeScale = defaultTimecodeScale
			r.state = stateEndOfHeader
		case kindEBML:
			return r.reprocess(stateEBML)
		case kindVoid:
			e, err := er.ReadBody(h)
			if err != nil {
				return false, err
			}
			r.headers = append(r.headers, e)
		default:
			return false, r.malformed(h)
		}

	case stateEndOfHeader:
		switch k {
		case kindSegment:
			return r.reprocess(stateSegment)
		case kindEBML:
			return r.reprocess(stateEBML)
		case kindCluster:
			r.emitHeader(sink)
			return r.reprocess(stateCluster)
		case kindInfo:
			e, err := er.ReadBody(h)
			if err != nil {
				return false, err
			}
			r.readInfo(e)
			r.headers = append(r.headers, e)
		default:
			e, err := er.ReadBody(h)
			if err != nil {
				return false, err
			}
			r.headers = append(r.headers, e)
		}

	case stateCluster:
		switch k {
		case kindSegment:
			return r.reprocess(stateSegment)
		case kindEBML:
			return r.reprocess(stateEBML)
		case kindCluster:
			if r.window.last() != nil {
				if kbps, ok := r.window.bitrate(); ok {
					r.info.SetBitrate(kbps)
					sink.OnChannelInfo(r.info.Clone())
					r.window.collapse()
				}
			}
			r.emit(sink, h.Bytes())
			r.window.push()
			r.state = stateTimecode
		case kindVoid, kindBlock:
			// blocks here ended a locked run and are not counted
			e, err := er.ReadBody(h)
			if err != nil {
				return false, err
			}
			r.emit(sink, e.Bytes())
		default:
			return false, r.malformed(h)
		}

	case stateTimecode:
		switch k {
		case kindSegment:
			return r.reprocess(stateSegment)
		case kindEBML:
			return r.reprocess(stateEBML)
		case kindCluster:
			return r.reprocess(stateCluster)
		case kindBlock:
			return r.reprocess(stateBlock)
		case kindTimecode:
			e, err := er.ReadBody(h)
			if err != nil {
				return false, err
			}
			r.window.setStart(float64(e.Uint()) * float64(r.timecodeScale) / 1e9)
			r.emit(sink, e.Bytes())
		default:
			e, err := er.ReadBody(h)
			if err != nil {
				return false, err
			}
			r.emit(sink, e.Bytes())
		}

	case stateBlock:
		switch k {
		case kindSegment:
			return r.reprocess(stateSegment)
		case kindEBML:
			return r.reprocess(stateEBML)
		case kindCluster:
			return r.reprocess(stateCluster)
		case kindBlock:
			cur := r.window.last()
			if cur == nil || (cur.blockID != nil && !h.ID.Equal(cur.blockID)) {
				return r.reprocess(stateCluster)
			}
			e, err := er.ReadBody(h)
			if err != nil {
				return false, err
			}
			cur.blockSize += uint64(len(e.Data))
			cur.blockID = h.ID.Binary
			r.emit(sink, e.Bytes())
		default:
			e, err := er.ReadBody(h)
			if err != nil {
				return false, err
			}
			r.emit(sink, e.Bytes())
		}
	}
	return false, nil
}

func (r *Reader) readInfo(info *ebml.Element) {
	children, err := ebml.Children(info.Data)
	if err != nil {
		log.WithField("reader", Name).Debug("partial Info: ", err)
	}
	for _, c := range children {
		if c.ElementID() == ebml.IDTimecodeScale {
			if scale := c.Uint(); scale > 0 {
				r.timecodeScale = scale
			}
		}
	}
}

// emitHeader sends the collected header elements as one header content and
// restarts the local position.
func (r *Reader) emitHeader(sink av.ContentSink) {
	parts := make([][]byte, 0, len(r.headers))
	for _, e := range r.headers {
		parts = append(parts, e.Bytes())
	}
	blob := r.pool.Concat(parts...)

	if r.doc.DocType == "webm" {
		r.info.SetContent(ContentTypeWEBM, MIMETypeWEBM, ".webm")
	} else {
		r.info.SetContent(ContentTypeMKV, MIMETypeMKV, ".mkv")
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
	r.window.clear()

	log.WithFields(log.Fields{
		"reader":  Name,
		"stream":  r.streamID,
		"doctype": r.doc.DocType,
		"size":    len(blob),
	}).Info("content header")
}

func (r *Reader) emit(sink av.ContentSink, data []byte) {
	sink.OnContent(&av.Content{
		Stream:    r.streamID,
		Timestamp: r.now().Sub(r.streamStart),
		Position:  r.position,
		Data:      data,
	})
	r.position += int64(len(data))
}
