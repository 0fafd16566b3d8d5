// Package avtest provides an in-memory channel and content sink for testing
// content readers.
package avtest

import (
	"sync"

	"github.com/kumaryu/peercaststation-sub003/av"
)

// Channel hands out stream ids and tracks the position of the last content
// it was told about.
type Channel struct {
	mu       sync.Mutex
	streamID int
	position int64
	info     av.ChannelInfo
}

func NewChannel() *Channel {
	return &Channel{info: av.NewChannelInfo()}
}

func (c *Channel) GenerateStreamID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamID++
	return c.streamID
}

func (c *Channel) ContentPosition() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *Channel) ChannelInfo() av.ChannelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info.Clone()
}

func (c *Channel) advance(content *av.Content) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = content.Position + int64(len(content.Data))
}

func (c *Channel) merge(info av.ChannelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info.Merge(info)
}

type EventKind int

const (
	EventInfo EventKind = iota
	EventHeader
	EventContent
)

type Event struct {
	Kind    EventKind
	Info    av.ChannelInfo
	Content *av.Content
}

// Sink records every call in order. When Channel is set it is updated the
// way a relay channel would be.
type Sink struct {
	Channel *Channel
	Events  []Event

	// OnEvent, if set, is called after an event is recorded.
	OnEvent func(Event)
}

func NewSink(ch *Channel) *Sink {
	return &Sink{Channel: ch}
}

func (s *Sink) record(e Event) {
	s.Events = append(s.Events, e)
	if s.OnEvent != nil {
		s.OnEvent(e)
	}
}

func (s *Sink) OnChannelInfo(info av.ChannelInfo) {
	if s.Channel != nil {
		s.Channel.merge(info)
	}
	s.record(Event{Kind: EventInfo, Info: info})
}

func (s *Sink) OnContentHeader(c *av.Content) {
	if s.Channel != nil {
		s.Channel.advance(c)
	}
	s.record(Event{Kind: EventHeader, Content: c})
}

func (s *Sink) OnContent(c *av.Content) {
	if s.Channel != nil {
		s.Channel.advance(c)
	}
	s.record(Event{Kind: EventContent, Content: c})
}

func (s *Sink) filter(kind EventKind) []Event {
	var res []Event
	for _, e := range s.Events {
		if e.Kind == kind {
			res = append(res, e)
		}
	}
	return res
}

func (s *Sink) Infos() []av.ChannelInfo {
	var res []av.ChannelInfo
	for _, e := range s.filter(EventInfo) {
		res = append(res, e.Info)
	}
	return res
}

func (s *Sink) Headers() []*av.Content {
	var res []*av.Content
	for _, e := range s.filter(EventHeader) {
		res = append(res, e.Content)
	}
	return res
}

func (s *Sink) Contents() []*av.Content {
	var res []*av.Content
	for _, e := range s.filter(EventContent) {
		res = append(res, e.Content)
	}
	return res
}

// Bytes concatenates the data of every header and content in order.
func (s *Sink) Bytes() []byte {
	var b []byte
	for _, e := range s.Events {
		if e.Content != nil {
			b = append(b, e.Content.Data...)
		}
	}
	return b
}

// Writer is an av.WriteCloser recording what it is given.
type Writer struct {
	mu       sync.Mutex
	info     av.Info
	packets  []*av.Content
	headers  int
	closeErr error
	closed   bool

	// Fail, if set, is returned by every write.
	Fail error
	// Dead makes Alive report false.
	Dead bool
}

func NewWriter(info av.Info) *Writer {
	return &Writer{info: info}
}

func (w *Writer) Info() av.Info {
	return w.info
}

func (w *Writer) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.Dead
}

func (w *Writer) WriteHeader(c *av.Content) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Fail != nil {
		return w.Fail
	}
	w.headers++
	w.packets = append(w.packets, c)
	return nil
}

func (w *Writer) Write(c *av.Content) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Fail != nil {
		return w.Fail
	}
	w.packets = append(w.packets, c)
	return nil
}

func (w *Writer) Close(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.closeErr = err
}

// Packets returns headers and contents in the order they were written.
func (w *Writer) Packets() []*av.Content {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*av.Content(nil), w.packets...)
}

func (w *Writer) HeaderCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.headers
}

func (w *Writer) Closed() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed, w.closeErr
}
