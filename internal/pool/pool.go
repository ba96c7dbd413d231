// Package pool implements a reference-counted pool of fixed-size byte
// buffers (C5 of spec.md): SharedBufferPool hands out SharedBufferPointer
// handles, and the last reference dropped returns the slot to the free
// list.
package pool

import (
	"sync"
	"sync/atomic"

	"otuscore.dev/sip/internal/core"
)

// slot is one fixed-size buffer plus its reference count.
type slot struct {
	data []byte
	refs atomic.Int32
}

// SharedBufferPool holds N buffers of size S and hands out references to
// currently-free buffers in amortised constant time.
type SharedBufferPool struct {
	mu    sync.Mutex
	slots []*slot
	free  []int
	size  int
}

// NewSharedBufferPool creates a pool of n buffers, each of size bufSize.
func NewSharedBufferPool(n, bufSize int) *SharedBufferPool {
	p := &SharedBufferPool{
		slots: make([]*slot, n),
		free:  make([]int, n),
		size:  bufSize,
	}
	for i := 0; i < n; i++ {
		p.slots[i] = &slot{data: make([]byte, bufSize)}
		p.free[i] = i
	}
	return p
}

// BufferSize returns the fixed size of every buffer in the pool.
func (p *SharedBufferPool) BufferSize() int { return p.size }

// FreeCount returns the number of buffers currently unreferenced.
func (p *SharedBufferPool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Allocate hands out a pointer to a free buffer with its reference count
// set to 1, or ErrPoolExhausted if none are free.
func (p *SharedBufferPool) Allocate() (*SharedBufferPointer, error) {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.mu.Unlock()
		return nil, core.ErrPoolExhausted
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.mu.Unlock()

	s := p.slots[idx]
	s.refs.Store(1)
	return &SharedBufferPointer{pool: p, slotIndex: idx, offset: 0, length: len(s.data)}, nil
}

func (p *SharedBufferPool) release(idx int) {
	p.mu.Lock()
	p.free = append(p.free, idx)
	p.mu.Unlock()
}

// SharedBufferPointer is a handle to a ref-counted pooled buffer,
// possibly windowed onto a sub-slice of the root allocation. Copies made
// via Retain/SubSlice share the same underlying reference count; the
// pool regains ownership of the slot only once every pointer derived from
// a root allocation has been released.
type SharedBufferPointer struct {
	pool      *SharedBufferPool
	slotIndex int
	offset    int
	length    int
	released  atomic.Bool
}

// GetLength returns the length of this pointer's (possibly windowed) view.
func (s *SharedBufferPointer) GetLength() int { return s.length }

// Bytes returns the mutable backing bytes for this pointer's window.
func (s *SharedBufferPointer) Bytes() []byte {
	full := s.pool.slots[s.slotIndex].data
	return full[s.offset : s.offset+s.length]
}

// Retain increments the reference count and returns a new pointer sharing
// the same window and lifetime as s.
func (s *SharedBufferPointer) Retain() *SharedBufferPointer {
	s.pool.slots[s.slotIndex].refs.Add(1)
	return &SharedBufferPointer{pool: s.pool, slotIndex: s.slotIndex, offset: s.offset, length: s.length}
}

// SubSlice returns a new pointer sharing ownership with s but windowed to
// n bytes starting at i within s's own view.
func (s *SharedBufferPointer) SubSlice(i, n int) *SharedBufferPointer {
	if i < 0 || n < 0 || i+n > s.length {
		return nil
	}
	s.pool.slots[s.slotIndex].refs.Add(1)
	return &SharedBufferPointer{pool: s.pool, slotIndex: s.slotIndex, offset: s.offset + i, length: n}
}

// ConstView returns a read-only handle over the same window, sharing
// ownership with s.
func (s *SharedBufferPointer) ConstView() *ConstSharedBufferPointer {
	return &ConstSharedBufferPointer{ptr: s.Retain()}
}

// Release drops this pointer's reference. When the last reference to a
// root allocation is released, the slot returns to the pool's free list.
// Release is idempotent: calling it twice on the same pointer value has
// no further effect.
func (s *SharedBufferPointer) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	slot := s.pool.slots[s.slotIndex]
	if slot.refs.Add(-1) == 0 {
		s.pool.release(s.slotIndex)
	}
}

// ConstSharedBufferPointer is a SharedBufferPointer that cannot mutate
// the payload it shares ownership of.
type ConstSharedBufferPointer struct {
	ptr *SharedBufferPointer
}

// GetLength returns the length of this pointer's view.
func (c *ConstSharedBufferPointer) GetLength() int { return c.ptr.GetLength() }

// Bytes returns a copy of the shared buffer contents; writing to the
// returned slice does not change the shared buffer.
func (c *ConstSharedBufferPointer) Bytes() []byte {
	b := c.ptr.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Release drops this pointer's reference.
func (c *ConstSharedBufferPointer) Release() { c.ptr.Release() }
