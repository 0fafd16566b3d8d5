package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kumaryu/peercaststation-sub003/av"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSourceClosed  = fmt.Errorf("source closed")
	ErrChannelClosed = fmt.Errorf("channel closed")
	ErrWriteTimeout  = fmt.Errorf("write timeout")
)

// PackWriterCloser 는 시청자 writer 와 초기화 여부를 함께 보관한다.
// 초기화되지 않은 writer 는 캐시된 헤더와 콘텐츠를 먼저 받는다.
type PackWriterCloser struct {
	init bool
	w    av.WriteCloser
}

func (p *PackWriterCloser) GetWriter() av.WriteCloser {
	return p.w
}

type source struct {
	info   av.Info
	cancel context.CancelFunc
}

// Channel 은 하나의 소스에서 읽은 콘텐츠를 여러 시청자에게 전달한다.
// 콘텐츠 리더에게는 av.Channel 이자 av.ContentSink 로 보인다.
type Channel struct {
	av.RWBaser // 소스가 마지막으로 콘텐츠를 보낸 시각

	id         uuid.UUID
	name       string
	persistent bool
	created    time.Time

	lock     sync.Mutex
	info     av.ChannelInfo
	streamID int
	position int64
	cache    *contentCache
	src      *source
	ws       *sync.Map // uid -> *PackWriterCloser
	closed   bool
}

func NewChannel(name string, cacheNum int, timeout time.Duration) *Channel {
	info := av.NewChannelInfo()
	info.SetName(name)
	return &Channel{
		RWBaser: av.NewRWBaser(timeout),
		id:      uuid.NewV4(),
		name:    name,
		created: time.Now(),
		info:    info,
		cache:   newContentCache(cacheNum),
		ws:      &sync.Map{},
	}
}

func (c *Channel) ID() string {
	return c.id.String()
}

func (c *Channel) Name() string {
	return c.name
}

// Persistent channels survive the liveness sweep without a source or viewers.
func (c *Channel) Persistent() bool {
	return c.persistent
}

func (c *Channel) SetPersistent(v bool) {
	c.persistent = v
}

func (c *Channel) GenerateStreamID() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.streamID++
	return c.streamID
}

func (c *Channel) ContentPosition() int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.position
}

func (c *Channel) ChannelInfo() av.ChannelInfo {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.info.Clone()
}

func (c *Channel) Header() *av.Content {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.cache.header
}

// Contents returns the cached contents following the current header.
func (c *Channel) Contents() []*av.Content {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.cache.contents()
}

func (c *Channel) OnChannelInfo(info av.ChannelInfo) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.info.Merge(info)
	c.info.SetName(c.name)
}

func (c *Channel) OnContentHeader(content *av.Content) {
	c.RecContent(content)
	c.lock.Lock()
	defer c.lock.Unlock()
	c.cache.setHeader(content)
	c.advance(content)
	log.WithFields(log.Fields{
		"channel": c.name,
		"stream":  content.Stream,
		"length":  len(content.Data),
	}).Debug("content header")
	c.broadcast(func(w av.WriteCloser) error {
		return w.WriteHeader(content)
	})
}

func (c *Channel) OnContent(content *av.Content) {
	c.RecContent(content)
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.cache.header == nil {
		return
	}
	c.cache.push(content)
	c.advance(content)
	c.broadcast(func(w av.WriteCloser) error {
		return w.Write(content)
	})
}

func (c *Channel) advance(content *av.Content) {
	c.position = content.Position + int64(len(content.Data))
}

// broadcast 는 lock 을 잡은 상태에서 호출한다. 실패한 writer 는 제거한다.
func (c *Channel) broadcast(fn func(av.WriteCloser) error) {
	c.ws.Range(func(key, val interface{}) bool {
		v := val.(*PackWriterCloser)
		var err error
		if !v.init {
			err = c.cache.send(v.w)
			v.init = err == nil
		} else {
			err = fn(v.w)
		}
		if err != nil {
			log.Debugf("[%v] write error: %v", v.w.Info(), err)
			c.ws.Delete(key)
			v.w.Close(err)
		}
		return true
	})
}

// AddWriter registers a viewer. When a header is already known the viewer
// receives it together with the cached contents before anything live.
func (c *Channel) AddWriter(w av.WriteCloser) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	info := w.Info()
	pw := &PackWriterCloser{w: w}
	if c.cache.header != nil {
		if err := c.cache.send(w); err != nil {
			return err
		}
		pw.init = true
	}
	c.ws.Store(info.UID, pw)
	log.WithFields(log.Fields{
		"channel": c.name,
		"writer":  info.UID,
		"inter":   info.Inter,
	}).Info("writer added")
	return nil
}

func (c *Channel) RemoveWriter(uid string) {
	c.ws.Delete(uid)
}

func (c *Channel) Writers() int {
	n := 0
	c.ws.Range(func(key, val interface{}) bool {
		n++
		return true
	})
	return n
}

// StartSource binds a new source session. A previous session is cancelled:
// the newest source always wins.
func (c *Channel) StartSource(info av.Info, cancel context.CancelFunc) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if c.src != nil {
		log.Debugf("[%v] replaced by %v", c.src.info, info)
		c.src.cancel()
	}
	c.src = &source{info: info, cancel: cancel}
	c.SetPreTime()
	return nil
}

// StopSource unbinds the source session with the given uid and closes the
// internal writers attached to it.
func (c *Channel) StopSource(info av.Info) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.src == nil || c.src.info.UID != info.UID {
		return
	}
	c.src = nil
	c.closeInter(ErrSourceClosed)
}

func (c *Channel) Source() (av.Info, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.src == nil {
		return av.Info{}, false
	}
	return c.src.info, true
}

// 내부 writer (아카이브 등)는 소스와 수명을 같이 한다.
func (c *Channel) closeInter(err error) {
	c.ws.Range(func(key, val interface{}) bool {
		v := val.(*PackWriterCloser)
		if v.w.Info().IsInterval() {
			v.w.Close(err)
			c.ws.Delete(key)
			log.Debugf("[%v] closed and deleted", v.w.Info())
		}
		return true
	})
}

// CheckAlive returns the number of live parties (source and writers).
// A source that stopped sending is cancelled and writers that stopped
// draining are closed.
func (c *Channel) CheckAlive() (n int) {
	c.lock.Lock()
	if c.src != nil {
		if c.Alive() {
			n++
		} else {
			log.Infof("[%v] source timeout", c.src.info)
			c.src.cancel()
		}
	}
	c.lock.Unlock()

	c.ws.Range(func(key, val interface{}) bool {
		v := val.(*PackWriterCloser)
		if v.w.Alive() {
			n++
			return true
		}
		log.Infof("[%v] player timeout", v.w.Info())
		c.ws.Delete(key)
		v.w.Close(ErrWriteTimeout)
		return true
	})
	return
}

// Close cancels the source and closes every writer.
func (c *Channel) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.src != nil {
		c.src.cancel()
		c.src = nil
	}
	c.ws.Range(func(key, val interface{}) bool {
		v := val.(*PackWriterCloser)
		v.w.Close(ErrChannelClosed)
		c.ws.Delete(key)
		return true
	})
}

// Status is the JSON view of a channel.
type Status struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Info     av.ChannelInfo `json:"info"`
	Source   string         `json:"source,omitempty"`
	Stream   int            `json:"stream"`
	Position int64          `json:"position"`
	Cached   int            `json:"cached"`
	Writers  int            `json:"writers"`
	Uptime   int64          `json:"uptime"`
}

func (c *Channel) Status() Status {
	st := Status{
		ID:      c.ID(),
		Name:    c.name,
		Writers: c.Writers(),
		Uptime:  int64(time.Since(c.created) / time.Second),
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	st.Info = c.info.Clone()
	if c.src != nil {
		st.Source = c.src.info.URL
	}
	if c.cache.header != nil {
		st.Stream = c.cache.header.Stream
	}
	st.Position = c.position
	st.Cached = c.cache.len()
	return st
}
