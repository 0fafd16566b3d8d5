package pool

// 네트워크 스트리밍에서는 패킷 데이터가 끊임 없이 생성되고 처리된다.
// 매번 새로운 메모리를 할당하는 대신, 큰 버퍼를 잘라서 나눠준다.
// Slices handed out are never reused: when the buffer runs out a fresh one is
// allocated, so packets forwarded to a sink stay valid after the next Get.

type Pool struct {
	pos int    // 현재 메모리 풀에서 사용된 위치(오프셋)
	buf []byte // 미리 할당된 고정 크기의 바이트 배열
}

// 메모리 풀 최대크기. 500 kb
const maxpoolsize = 500 * 1024

// Requests larger than this are allocated directly.
const maxpooled = maxpoolsize / 4

func (pool *Pool) Get(size int) []byte {
	if size > maxpooled {
		return make([]byte, size)
	}
	if maxpoolsize-pool.pos < size {
		pool.pos = 0
		pool.buf = make([]byte, maxpoolsize)
	}
	b := pool.buf[pool.pos : pool.pos+size : pool.pos+size]
	pool.pos += size
	return b
}

// Concat copies the given slices into one pooled slice.
func (pool *Pool) Concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	b := pool.Get(n)
	off := 0
	for _, p := range parts {
		off += copy(b[off:], p)
	}
	return b
}

func NewPool() *Pool {
	return &Pool{
		buf: make([]byte, maxpoolsize),
	}
}
