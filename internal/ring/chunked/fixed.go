// Package chunked layers fixed-size and variable-size slot rings on top
// of internal/ring, per spec.md §4.3/§4.4.
package chunked

import (
	"otuscore.dev/sip/internal/core"
	"otuscore.dev/sip/internal/ring"
)

// chunkHeaderSize is length(8 bytes) + flags(1 byte), matching the
// original ChunkHeader::getStorageSize().
const chunkHeaderSize = 9

// FixedRing is a ring buffer of constant-size slots: each chunk is
// (8-byte length, 1-byte flags, up to chunkPayloadSize bytes of payload),
// padded to chunkTotalSize. The ring's capacity must be an exact multiple
// of chunkTotalSize.
type FixedRing struct {
	r               *ring.ByteRing
	chunkPayloadSize int
	chunkTotalSize   int
}

// NewFixed wraps alloc as a FixedRing with the given per-chunk payload
// size. Panics if alloc's capacity is not a multiple of the resulting
// chunkTotalSize — spec.md §4.3 calls this a programming error detected
// at construction.
func NewFixed(alloc ring.Allocator, chunkPayloadSize int) *FixedRing {
	total := chunkHeaderSize + chunkPayloadSize
	if alloc.Capacity()%total != 0 {
		panic(core.ErrInvalidChunkSize)
	}
	return &FixedRing{
		r:                ring.New(alloc),
		chunkPayloadSize: chunkPayloadSize,
		chunkTotalSize:   total,
	}
}

// ChunkSize returns the usable payload size of a single chunk.
func (f *FixedRing) ChunkSize() int { return f.chunkPayloadSize }

// GetFreeSlots returns the number of chunks that can still be appended.
func (f *FixedRing) GetFreeSlots() int { return f.r.GetFreeElements() / f.chunkTotalSize }

// GetUsedSlots returns the number of chunks currently stored.
func (f *FixedRing) GetUsedSlots() int { return f.r.GetAvailableElements() / f.chunkTotalSize }

// IsEmpty reports whether the ring holds no chunks.
func (f *FixedRing) IsEmpty() bool { return f.r.IsEmpty() }

// Append writes one chunk. Fails without partial state if data is larger
// than chunkPayloadSize or a full chunk does not fit.
func (f *FixedRing) Append(data []byte, flags uint8, zeroOut bool) bool {
	if len(data) > f.chunkPayloadSize {
		return false
	}
	if f.r.GetFreeElements() < f.chunkTotalSize {
		return false
	}

	header := make([]byte, chunkHeaderSize)
	putU64(header[0:8], uint64(len(data)))
	header[8] = flags

	if err := f.r.Append(header); err != nil {
		return false
	}
	if err := f.r.Append(data); err != nil {
		return false
	}

	padding := f.chunkPayloadSize - len(data)
	if padding > 0 {
		if zeroOut {
			if err := f.r.Append(make([]byte, padding)); err != nil {
				return false
			}
		} else {
			if err := f.r.AppendPaddingElements(padding); err != nil {
				return false
			}
		}
	}
	return true
}

// SetFlagsToHead rewrites the head chunk's flag byte in place. Fails if
// the ring is empty.
func (f *FixedRing) SetFlagsToHead(flags uint8) bool {
	if f.IsEmpty() {
		return false
	}
	// The flags byte lives at offset 8 within the head chunk's header;
	// ByteRing exposes no in-place write, so rewriting it means popping
	// the head chunk and rebuilding the ring with it back in front. Peek
	// the length field first to confirm a whole header is present.
	lenBytes, err := f.r.Peek(8, 0)
	if err != nil || len(lenBytes) != 8 {
		return false
	}
	// Pop the whole chunk's header+payload+padding and push it back with
	// the new flags byte — this keeps chunk order while still being a
	// single logical operation from the caller's point of view.
	whole, err := f.r.Pop(f.chunkTotalSize)
	if err != nil {
		return false
	}
	whole[8] = flags
	if err := prependChunk(f.r, whole); err != nil {
		return false
	}
	return true
}

// prependChunk re-inserts a just-popped chunk at the head of the ring by
// rebuilding the ring's cursor: since ByteRing only supports append-at-tail,
// we pop everything, push the replacement chunk first, then push the rest
// back in order.
func prependChunk(r *ring.ByteRing, chunk []byte) error {
	rest, err := r.Pop(r.GetAvailableElements())
	if err != nil {
		return err
	}
	if err := r.Append(chunk); err != nil {
		return err
	}
	return r.Append(rest)
}

// Pop removes exactly one chunk.
func (f *FixedRing) Pop() bool {
	if f.IsEmpty() {
		return false
	}
	_, err := f.r.Pop(f.chunkTotalSize)
	return err == nil
}

// Peek returns the payload view of the k-th oldest chunk (0 = head).
func (f *FixedRing) Peek(k int) ([]byte, error) {
	if k >= f.GetUsedSlots() {
		return nil, core.ErrRingEmpty
	}
	offset := k*f.chunkTotalSize + chunkHeaderSize
	lenBytes, err := f.r.Peek(8, k*f.chunkTotalSize)
	if err != nil {
		return nil, err
	}
	length := int(getU64(lenBytes))
	return f.r.Peek(length, offset)
}

// PeekFlags returns the flags byte of the k-th oldest chunk.
func (f *FixedRing) PeekFlags(k int) (uint8, error) {
	if k >= f.GetUsedSlots() {
		return 0, core.ErrRingEmpty
	}
	b, err := f.r.Peek(1, k*f.chunkTotalSize+8)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Reset empties the ring.
func (f *FixedRing) Reset() { f.r.Reset() }

// ResetElementsFrom keeps the first k chunks and drops the rest.
func (f *FixedRing) ResetElementsFrom(k int) {
	used := f.GetUsedSlots()
	if k > used {
		k = used
	}
	f.r.ResetAfter(k * f.chunkTotalSize)
}

func putU64(dst []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func getU64(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(src[i])
	}
	return v
}
