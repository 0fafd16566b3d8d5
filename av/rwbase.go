package av

import (
	"sync"
	"time"
)

// 스트리밍 세션의 마지막 활동 시각을 기록하고, 타임아웃으로 생존 여부를 판단한다.
type RWBaser struct {
	lock          sync.Mutex    // 여러 고루틴이 동시에 수정하려 할 때 충돌 방지
	timeout       time.Duration // 마지막 활동에서 이 시간이 지나면 스트림이 끊긴 것으로 본다.
	PreTime       time.Time     // 마지막 활동 시점
	LastStream    int           // 마지막으로 전달한 콘텐츠의 스트림 번호
	LastTimestamp time.Duration // 마지막으로 전달한 콘텐츠의 경과 시간
}

func NewRWBaser(duration time.Duration) RWBaser {
	return RWBaser{
		timeout: duration,
		PreTime: time.Now(),
	}
}

// RecContent records the stream number and timestamp of a forwarded content.
func (rw *RWBaser) RecContent(c *Content) {
	rw.lock.Lock()
	rw.LastStream = c.Stream
	rw.LastTimestamp = c.Timestamp
	rw.PreTime = time.Now()
	rw.lock.Unlock()
}

func (rw *RWBaser) SetPreTime() {
	rw.lock.Lock()
	rw.PreTime = time.Now()
	rw.lock.Unlock()
}

func (rw *RWBaser) Alive() bool {
	rw.lock.Lock()
	b := !(time.Now().Sub(rw.PreTime) >= rw.timeout)
	rw.lock.Unlock()
	return b
}
