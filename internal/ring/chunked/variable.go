package chunked

import (
	"otuscore.dev/sip/internal/core"
	"otuscore.dev/sip/internal/ring"
)

// PrefixWidth is the size in bytes of a variable-chunk ring's
// size-prefix, a compile-time parameter in the original C++ template and
// a constructor parameter here.
type PrefixWidth int

const (
	Prefix8  PrefixWidth = 1
	Prefix16 PrefixWidth = 2
	Prefix32 PrefixWidth = 4
	Prefix64 PrefixWidth = 8
)

func (w PrefixWidth) maxValue() uint64 {
	switch w {
	case Prefix8:
		return 1<<8 - 1
	case Prefix16:
		return 1<<16 - 1
	case Prefix32:
		return 1<<32 - 1
	default:
		return ^uint64(0)
	}
}

// VariableRing is a ring buffer of size-prefixed chunks. A chunk may wrap
// across the end of the buffer, but the size-prefix itself never
// straddles the physical boundary: when the remaining contiguous bytes
// before end-of-ring are fewer than the prefix width, those bytes are
// skipped (counted as used, not as payload) and the chunk starts at
// offset 0. This is invisible to callers but symmetric between push and
// pop (spec.md §4.4).
type VariableRing struct {
	r     *ring.ByteRing
	width PrefixWidth
}

// NewVariable wraps alloc as a VariableRing using a fixed prefix width.
func NewVariable(alloc ring.Allocator, width PrefixWidth) *VariableRing {
	return &VariableRing{r: ring.New(alloc), width: width}
}

// NewVariableBestEffort picks the smallest prefix width that can
// represent maxChunkSize, matching the original "best effort" variant.
func NewVariableBestEffort(alloc ring.Allocator, maxChunkSize int) *VariableRing {
	width := Prefix8
	switch {
	case uint64(maxChunkSize) > Prefix32.maxValue():
		width = Prefix64
	case uint64(maxChunkSize) > Prefix16.maxValue():
		width = Prefix32
	case uint64(maxChunkSize) > Prefix8.maxValue():
		width = Prefix16
	}
	return NewVariable(alloc, width)
}

func (v *VariableRing) headerSize() int { return int(v.width) }

func (v *VariableRing) putPrefix(dst []byte, n int) {
	val := uint64(n)
	for i := int(v.width) - 1; i >= 0; i-- {
		dst[i] = byte(val)
		val >>= 8
	}
}

func (v *VariableRing) getPrefix(src []byte) int {
	var val uint64
	for i := 0; i < int(v.width); i++ {
		val = val<<8 | uint64(src[i])
	}
	return int(val)
}

// skipToPhysicalStart appends padding to consume whatever contiguous
// bytes remain before the physical end of the buffer, when those bytes
// are too few to hold a header.
func (v *VariableRing) skipToPhysicalStart() error {
	contiguous := v.r.GetContinuousFreeElements()
	if contiguous > 0 && contiguous < v.headerSize() {
		return v.r.AppendPaddingElements(contiguous)
	}
	return nil
}

// PushChunk writes one size-prefixed chunk atomically. Returns the number
// of bytes written to the ring (header+payload), or 0 if the chunk does
// not fit or its length exceeds what the prefix width can represent.
func (v *VariableRing) PushChunk(data []byte) int {
	if uint64(len(data)) > v.width.maxValue() {
		return 0
	}

	// A possible skip (to avoid straddling the physical wrap point with
	// the header) costs space too, so check against free elements after
	// accounting for it.
	contiguous := v.r.GetContinuousFreeElements()
	skip := 0
	if contiguous > 0 && contiguous < v.headerSize() {
		skip = contiguous
	}
	needed := skip + v.headerSize() + len(data)
	if needed > v.r.GetFreeElements() {
		return 0
	}

	if skip > 0 {
		if err := v.r.AppendPaddingElements(skip); err != nil {
			return 0
		}
	}

	header := make([]byte, v.headerSize())
	v.putPrefix(header, len(data))
	if err := v.r.Append(header); err != nil {
		return 0
	}
	if err := v.r.Append(data); err != nil {
		return 0
	}
	return v.headerSize() + len(data)
}

// headChunkLength returns the length of the head chunk's payload, after
// skipping any physical-wrap padding, along with the offset (in "used"
// coordinates from the ring's read index) where the payload begins.
func (v *VariableRing) headChunkLength() (payloadLen, payloadOffset int, err error) {
	if v.r.IsEmpty() {
		return 0, 0, core.ErrRingEmpty
	}
	offset := 0
	continuous := v.r.GetAvailableContinuousElements()
	if continuous > 0 && continuous < v.headerSize() {
		offset = continuous
	}
	header, err := v.r.Peek(v.headerSize(), offset)
	if err != nil {
		return 0, 0, err
	}
	return v.getPrefix(header), offset + v.headerSize(), nil
}

// PeekChunkInto copies the next chunk's payload into dst without
// consuming it, returning the number of bytes copied. Returns
// ErrBufferTooSmall if dst cannot hold the stored chunk, ErrRingEmpty if
// there is no chunk.
func (v *VariableRing) PeekChunkInto(dst []byte) (int, error) {
	length, offset, err := v.headChunkLength()
	if err != nil {
		return 0, err
	}
	if len(dst) < length {
		return 0, core.ErrBufferTooSmall
	}
	payload, err := v.r.Peek(length, offset)
	if err != nil {
		return 0, err
	}
	copy(dst, payload)
	return length, nil
}

// PopChunkInto copies the next chunk's payload into dst and consumes it.
// Fails (without consuming) if dst is smaller than the stored chunk.
func (v *VariableRing) PopChunkInto(dst []byte) (int, error) {
	length, offset, err := v.headChunkLength()
	if err != nil {
		return 0, err
	}
	if len(dst) < length {
		return 0, core.ErrBufferTooSmall
	}
	payload, err := v.r.Peek(length, offset)
	if err != nil {
		return 0, err
	}
	copy(dst, payload)
	if _, err := v.r.Pop(offset + length); err != nil {
		return 0, err
	}
	return length, nil
}

// DiscardChunk removes the next chunk without copying it anywhere.
func (v *VariableRing) DiscardChunk() error {
	length, offset, err := v.headChunkLength()
	if err != nil {
		return err
	}
	_, err = v.r.Pop(offset + length)
	return err
}

// Reset empties the ring.
func (v *VariableRing) Reset() { v.r.Reset() }

// GetNumberOfChunks counts stored chunks by walking the ring. This is a
// read-only O(chunks) scan; it does not mutate state.
func (v *VariableRing) GetNumberOfChunks() int {
	count := 0
	offset := 0
	for offset < v.r.GetAvailableElements() {
		continuous := v.r.ContinuousElementsFromOffset(offset)
		skip := 0
		if continuous > 0 && continuous < v.headerSize() {
			skip = continuous
		}
		header, err := v.r.Peek(v.headerSize(), offset+skip)
		if err != nil || len(header) < v.headerSize() {
			break
		}
		length := v.getPrefix(header)
		offset += skip + v.headerSize() + length
		count++
	}
	return count
}

// GetAvailableBytes returns the total bytes currently occupied (including
// headers and any wrap-skip padding).
func (v *VariableRing) GetAvailableBytes() int { return v.r.GetAvailableElements() }

// GetFreeUserBytes returns the usable free space for a new chunk's
// payload, after reserving one header's worth of overhead.
func (v *VariableRing) GetFreeUserBytes() int {
	free := v.r.GetFreeElements() - v.headerSize()
	if free < 0 {
		return 0
	}
	return free
}
