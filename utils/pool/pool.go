package pool

// Pool hands out payload buffers from one pre-allocated arena so the tag
// reader does not allocate per tag. Slices returned by Get are only valid
// until the arena wraps; callers that retain a payload must copy it first.
type Pool struct {
	pos int
	buf []byte
}

const maxpoolsize = 500 * 1024

func (pool *Pool) Get(size int) []byte {
	if size > maxpoolsize {
		// oversized payloads bypass the arena
		return make([]byte, size)
	}
	if maxpoolsize-pool.pos < size {
		pool.pos = 0
		pool.buf = make([]byte, maxpoolsize)
	}
	b := pool.buf[pool.pos : pool.pos+size]
	pool.pos += size
	return b
}

func NewPool() *Pool {
	return &Pool{
		buf: make([]byte, maxpoolsize),
	}
}
