package srcmap

import "sync/atomic"

// Published holds the index most recently produced by the compiler and hands
// it to readers without locking. The compiler builds each new Index fully
// before swapping it in, so a reader either sees the previous compile's index
// or the new one, never a partially built one.
type Published struct {
	ptr atomic.Pointer[Index]
}

// Publish atomically replaces the current index.
func (p *Published) Publish(ix *Index) {
	p.ptr.Store(ix)
}

// Current returns the most recently published index, or nil when no compile
// has completed yet.
func (p *Published) Current() *Index {
	return p.ptr.Load()
}
