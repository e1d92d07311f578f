package session

import "sync"

// Backlog keeps the most recent output of a session, addressed by absolute
// byte offsets so readers can resume where they stopped.
type Backlog struct {
	mu    sync.Mutex
	buf   []byte
	start int64 // offset of buf[0]
	limit int
}

// NewBacklog returns a backlog holding at most limit bytes.
func NewBacklog(limit int) *Backlog {
	if limit <= 0 {
		limit = 256 * 1024
	}
	return &Backlog{limit: limit}
}

// Append records p.
func (b *Backlog) Append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.start += int64(over)
	}
}

// ReadFrom returns the bytes recorded at or after offset and the offset that
// follows them. Offsets older than the retained window start at the window.
func (b *Backlog) ReadFrom(offset int64) ([]byte, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := b.start + int64(len(b.buf))
	if offset < b.start {
		offset = b.start
	}
	if offset >= end {
		return nil, end
	}
	out := make([]byte, end-offset)
	copy(out, b.buf[offset-b.start:])
	return out, end
}

// End returns the offset after the last recorded byte.
func (b *Backlog) End() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.start + int64(len(b.buf))
}
