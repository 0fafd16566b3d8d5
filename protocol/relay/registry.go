package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

const checkAliveInterval = 5 * time.Second

// KeyRevoker drops the push key of a channel name.
type KeyRevoker interface {
	DeleteChannel(channel string) bool
}

// Registry 는 서버에 존재하는 모든 채널을 관리한다.
// 채널은 id 로 저장되고, 이름으로도 찾을 수 있다.
type Registry struct {
	channels *sync.Map    // id -> *Channel
	names    *cache.Cache // name -> id
	lock     sync.Mutex   // 같은 이름의 채널이 두 번 만들어지지 않도록 한다.
	cacheNum int
	timeout  time.Duration
	keys     KeyRevoker // 스윕으로 사라진 채널의 푸시 키를 폐기한다.
	done     chan struct{}
	once     sync.Once
}

// NewRegistry starts the liveness sweep; Close stops it.
func NewRegistry(cacheNum int, timeout time.Duration) *Registry {
	r := &Registry{
		channels: &sync.Map{},
		names:    cache.New(cache.NoExpiration, 0),
		cacheNum: cacheNum,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
	go r.CheckAlive()
	return r
}

// GetOrCreate returns the channel named name, creating it when missing.
func (r *Registry) GetOrCreate(name string) (*Channel, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if ch, ok := r.findLocked(name); ok {
		return ch, false
	}
	ch := NewChannel(name, r.cacheNum, r.timeout)
	r.channels.Store(ch.ID(), ch)
	r.names.SetDefault(name, ch.ID())
	log.WithFields(log.Fields{
		"channel": name,
		"id":      ch.ID(),
	}).Info("channel created")
	return ch, true
}

func (r *Registry) Get(id string) (*Channel, bool) {
	v, ok := r.channels.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Channel), true
}

func (r *Registry) Find(name string) (*Channel, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.findLocked(name)
}

func (r *Registry) findLocked(name string) (*Channel, bool) {
	id, ok := r.names.Get(name)
	if !ok {
		return nil, false
	}
	return r.Get(id.(string))
}

// Lookup resolves an id first and a name second.
func (r *Registry) Lookup(idOrName string) (*Channel, bool) {
	if ch, ok := r.Get(idOrName); ok {
		return ch, true
	}
	return r.Find(idOrName)
}

// Channels returns every channel ordered by name.
func (r *Registry) Channels() []*Channel {
	var res []*Channel
	r.channels.Range(func(key, val interface{}) bool {
		res = append(res, val.(*Channel))
		return true
	})
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name() < res[j].Name()
	})
	return res
}

func (r *Registry) Remove(id string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	v, ok := r.channels.Load(id)
	if !ok {
		return
	}
	ch := v.(*Channel)
	r.channels.Delete(id)
	if cur, ok := r.names.Get(ch.Name()); ok && cur.(string) == id {
		r.names.Delete(ch.Name())
	}
	ch.Close()
	log.WithFields(log.Fields{
		"channel": ch.Name(),
		"id":      id,
	}).Info("channel removed")
}

// SetKeyRevoker makes the sweep revoke the push key of every channel it removes.
func (r *Registry) SetKeyRevoker(keys KeyRevoker) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.keys = keys
}

// CheckAlive sweeps every channel periodically until Close.
func (r *Registry) CheckAlive() {
	ticker := time.NewTicker(checkAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep removes channels with neither a live source nor a live writer.
// Persistent channels are only checked.
func (r *Registry) sweep() {
	r.lock.Lock()
	keys := r.keys
	r.lock.Unlock()
	r.channels.Range(func(key, val interface{}) bool {
		ch := val.(*Channel)
		if ch.CheckAlive() == 0 && !ch.Persistent() {
			r.Remove(key.(string))
			if keys != nil && keys.DeleteChannel(ch.Name()) {
				log.WithField("channel", ch.Name()).Info("push key revoked")
			}
		}
		return true
	})
}

// Close stops the sweep and closes every channel.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.done)
	})
	r.channels.Range(func(key, val interface{}) bool {
		r.Remove(key.(string))
		return true
	})
}
