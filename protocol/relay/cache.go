package relay

import (
	"container/list"

	"github.com/kumaryu/peercaststation-sub003/av"
)

const DefaultContentCacheNum = 100

// 마지막 헤더와 그 뒤에 이어지는 최근 콘텐츠를 순서대로 보관한다.
// 늦게 들어온 시청자는 이 캐시부터 받은 뒤 실시간 콘텐츠를 받는다.
type contentCache struct {
	num    int // 보관할 최대 콘텐츠 수
	header *av.Content
	ll     *list.List // 재생 순서를 지켜야 하므로 이중 연결리스트를 사용한다.
}

func newContentCache(num int) *contentCache {
	if num <= 0 {
		num = DefaultContentCacheNum
	}
	return &contentCache{
		num: num,
		ll:  list.New(),
	}
}

// 새 헤더가 오면 이전 스트림의 콘텐츠는 더 이상 쓸모가 없다.
func (cache *contentCache) setHeader(c *av.Content) {
	cache.header = c
	cache.ll.Init()
}

func (cache *contentCache) push(c *av.Content) {
	if cache.ll.Len() == cache.num {
		cache.ll.Remove(cache.ll.Front())
	}
	cache.ll.PushBack(c)
}

// last returns the newest packet, the header when no content followed it.
func (cache *contentCache) last() *av.Content {
	if e := cache.ll.Back(); e != nil {
		return e.Value.(*av.Content)
	}
	return cache.header
}

func (cache *contentCache) len() int {
	return cache.ll.Len()
}

func (cache *contentCache) contents() []*av.Content {
	res := make([]*av.Content, 0, cache.ll.Len())
	for e := cache.ll.Front(); e != nil; e = e.Next() {
		res = append(res, e.Value.(*av.Content))
	}
	return res
}

// send writes the header and every cached content to w.
func (cache *contentCache) send(w av.WriteCloser) error {
	if cache.header == nil {
		return nil
	}
	if err := w.WriteHeader(cache.header); err != nil {
		return err
	}
	for e := cache.ll.Front(); e != nil; e = e.Next() {
		if err := w.Write(e.Value.(*av.Content)); err != nil {
			return err
		}
	}
	return nil
}
