package ring

import (
	"otuscore.dev/sip/internal/core"
)

// ByteRing is a FIFO ring buffer over an injected Allocator. State is
// exactly (capacity, readIndex, numberOfElementsUsed) per spec.md §3; all
// wrap handling happens here so layers built on top (internal/ring/chunked)
// never see a split view unless they ask for one.
type ByteRing struct {
	alloc     Allocator
	readIndex int
	used      int
}

// New wraps alloc in a ByteRing with empty initial state. If alloc also
// implements MetadataAllocator, cursor state is read back from it instead
// — this is how a persistent ring restores (readIndex, used) across a
// restart (invariant 4 of spec.md §8).
func New(alloc Allocator) *ByteRing {
	r := &ByteRing{alloc: alloc}
	if m, ok := alloc.(MetadataAllocator); ok {
		r.readIndex = m.GetReadIndex()
		r.used = m.GetNumberOfElementsUsed()
	}
	return r
}

// Capacity returns the ring's total addressable size.
func (r *ByteRing) Capacity() int { return r.alloc.Capacity() }

// IsEmpty reports whether the ring currently holds no elements.
func (r *ByteRing) IsEmpty() bool { return r.used == 0 }

// GetAvailableElements returns the number of bytes currently stored.
func (r *ByteRing) GetAvailableElements() int { return r.used }

// GetFreeElements returns the number of bytes that can still be appended.
func (r *ByteRing) GetFreeElements() int { return r.alloc.Capacity() - r.used }

// GetAvailableContinuousElements returns the number of bytes that can be
// read from the head of the ring without wrapping around the end of the
// backing storage.
func (r *ByteRing) GetAvailableContinuousElements() int {
	return r.ContinuousElementsFromOffset(0)
}

// ContinuousElementsFromOffset returns the number of bytes that can be
// read starting offset bytes into the used region without wrapping
// around the end of the backing storage. Used by layers that walk
// multiple chunks and need to know, at each chunk boundary, how much
// physically-contiguous space remains (internal/ring/chunked's
// variable-size chunks).
func (r *ByteRing) ContinuousElementsFromOffset(offset int) int {
	capacity := r.alloc.Capacity()
	physical := (r.readIndex + offset) % capacity
	toEnd := capacity - physical
	remainingUsed := r.used - offset
	if remainingUsed < 0 {
		remainingUsed = 0
	}
	if toEnd > remainingUsed {
		return remainingUsed
	}
	return toEnd
}

func (r *ByteRing) writeIndex() int {
	return (r.readIndex + r.used) % r.alloc.Capacity()
}

// GetContinuousFreeElements returns the number of bytes that can be
// written at the current tail position before physically wrapping around
// the end of the backing storage. Layers that need to avoid straddling a
// fixed-width header across the wrap point (internal/ring/chunked's
// variable-size chunks) use this to decide whether to skip ahead.
func (r *ByteRing) GetContinuousFreeElements() int {
	capacity := r.alloc.Capacity()
	toEnd := capacity - r.writeIndex()
	if toEnd > r.GetFreeElements() {
		return r.GetFreeElements()
	}
	return toEnd
}

func (r *ByteRing) setReadIndex(idx int) {
	r.readIndex = idx
	if m, ok := r.alloc.(MetadataAllocator); ok {
		m.SetReadIndex(idx)
	}
}

func (r *ByteRing) setUsed(used int) {
	r.used = used
	if m, ok := r.alloc.(MetadataAllocator); ok {
		m.SetNumberOfElementsUsed(used)
	}
}

func (r *ByteRing) advanceReadAndUsed(readIndex, used int) {
	r.readIndex = readIndex
	r.used = used
	if m, ok := r.alloc.(MetadataAllocator); ok {
		m.SetReadIndexAndElementsUsedAtomically(readIndex, used)
	}
}

// wrappedWrite writes data starting at offset, wrapping around the end of
// the backing storage as needed.
func (r *ByteRing) wrappedWrite(offset int, data []byte) error {
	capacity := r.alloc.Capacity()
	if len(data) == 0 {
		return nil
	}
	toEnd := capacity - offset
	if toEnd >= len(data) {
		return r.alloc.Write(offset, data)
	}
	if err := r.alloc.Write(offset, data[:toEnd]); err != nil {
		return err
	}
	return r.alloc.Write(0, data[toEnd:])
}

// wrappedRead reads n bytes starting at offset, wrapping as needed, and
// returns them as a freshly allocated, contiguous []byte.
func (r *ByteRing) wrappedRead(offset, n int) ([]byte, error) {
	out := make([]byte, n)
	if n == 0 {
		return out, nil
	}
	capacity := r.alloc.Capacity()
	toEnd := capacity - offset
	if toEnd >= n {
		if err := r.alloc.Read(offset, out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := r.alloc.Read(offset, out[:toEnd]); err != nil {
		return nil, err
	}
	if err := r.alloc.Read(0, out[toEnd:]); err != nil {
		return nil, err
	}
	return out, nil
}

// Append writes data to the ring, atomically with respect to the ring's
// state: either all of data lands, or none of it does.
func (r *ByteRing) Append(data []byte) error {
	if len(data) > r.GetFreeElements() {
		return core.ErrOutOfMemory
	}
	if err := r.wrappedWrite(r.writeIndex(), data); err != nil {
		return err
	}
	r.setUsed(r.used + len(data))
	return nil
}

// AppendPaddingElements reserves n bytes of space without writing content,
// used by fixed-chunk rings to align slots.
func (r *ByteRing) AppendPaddingElements(n int) error {
	if n > r.GetFreeElements() {
		return core.ErrOutOfMemory
	}
	r.setUsed(r.used + n)
	return nil
}

// Peek returns a copy of n bytes starting offset bytes into the used
// region. Returns a zero-length slice if the request cannot be satisfied.
func (r *ByteRing) Peek(n, offset int) ([]byte, error) {
	if offset+n > r.used {
		return []byte{}, nil
	}
	start := (r.readIndex + offset) % r.alloc.Capacity()
	return r.wrappedRead(start, n)
}

// Pop removes up to n bytes from the head of the ring and returns them.
func (r *ByteRing) Pop(n int) ([]byte, error) {
	if n > r.used {
		n = r.used
	}
	data, err := r.wrappedRead(r.readIndex, n)
	if err != nil {
		return nil, err
	}
	newReadIndex := (r.readIndex + n) % r.alloc.Capacity()
	r.advanceReadAndUsed(newReadIndex, r.used-n)
	return data, nil
}

// PopInto removes up to len(dst) bytes from the head of the ring into dst,
// returning the number of bytes copied.
func (r *ByteRing) PopInto(dst []byte) (int, error) {
	n := len(dst)
	if n > r.used {
		n = r.used
	}
	data, err := r.Pop(n)
	if err != nil {
		return 0, err
	}
	copy(dst, data)
	return len(data), nil
}

// Reset empties the ring without touching the backing storage's contents.
func (r *ByteRing) Reset() {
	r.advanceReadAndUsed(r.readIndex, 0)
}

// ResetAfter truncates the ring so only the first k bytes remain used.
func (r *ByteRing) ResetAfter(k int) {
	if k > r.used {
		k = r.used
	}
	r.setUsed(k)
}
