// Package ring implements the byte-addressed ring buffer of spec.md §4.2:
// a fixed-capacity ring over a pluggable Allocator, used directly for raw
// byte streams and layered by internal/ring/chunked for fixed- and
// variable-size chunk storage.
package ring

// Allocator abstracts the storage a ByteRing writes into and reads from.
// The ring never dereferences an Allocator's memory directly — every
// access goes through Read/Write so that an Allocator can transparently
// back onto an array, a file, or anything else (the "duck-typed
// allocator" of spec.md §9).
type Allocator interface {
	// Read copies len(dst) bytes starting at offset into dst. It does not
	// wrap at Capacity(): the ring splits every access at the end of the
	// storage before calling it.
	Read(offset int, dst []byte) error
	// Write copies src into the allocator starting at offset.
	Write(offset int, src []byte) error
	// Capacity returns the total number of addressable bytes.
	Capacity() int
}

// MetadataAllocator is implemented by Allocators that can additionally
// persist the ring's cursor state (read index, used-count) themselves —
// this is what makes a ring buffer durable across restarts (spec.md §6
// "Ring-buffer file format"). A plain Allocator without this interface
// leaves cursor state owned by the ByteRing in memory only.
type MetadataAllocator interface {
	Allocator
	GetReadIndex() int
	SetReadIndex(int)
	GetNumberOfElementsUsed() int
	SetNumberOfElementsUsed(int)
	// SetReadIndexAndElementsUsedAtomically updates both fields as a
	// single persisted unit, so a crash between the two writes can never
	// leave on-disk metadata observing one new value and one stale value.
	SetReadIndexAndElementsUsedAtomically(readIndex, used int)
}

// ArrayAllocator is the default in-memory Allocator, a plain byte array.
type ArrayAllocator struct {
	data []byte
}

// NewArrayAllocator creates an in-memory Allocator of the given capacity.
func NewArrayAllocator(capacity int) *ArrayAllocator {
	return &ArrayAllocator{data: make([]byte, capacity)}
}

func (a *ArrayAllocator) Capacity() int { return len(a.data) }

func (a *ArrayAllocator) Read(offset int, dst []byte) error {
	copy(dst, a.data[offset:offset+len(dst)])
	return nil
}

func (a *ArrayAllocator) Write(offset int, src []byte) error {
	copy(a.data[offset:offset+len(src)], src)
	return nil
}
