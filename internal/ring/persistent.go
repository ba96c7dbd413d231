package ring

import (
	"encoding/binary"
	"os"
)

// metadataHeaderSize is the fixed 8+8 byte (readIndex, numberOfElementsUsed)
// header persisted at the start of the backing file, per spec.md §6.
const metadataHeaderSize = 16

// PersistentFileAllocator is a MetadataAllocator backed by a file: the
// first metadataHeaderSize bytes hold (readIndex, numberOfElementsUsed) as
// big-endian uint64s, and the remainder holds the ring's payload bytes.
// Both payload and metadata writes are flushed immediately — this package
// has no destructor to hook, so every mutating call syncs before
// returning, which is the Go-idiomatic equivalent of "flush at destruction
// and whenever metadata changes".
type PersistentFileAllocator struct {
	file     *os.File
	capacity int
}

// OpenPersistentFile opens (creating if necessary) a file-backed ring
// buffer allocator of the given payload capacity. If the file does not
// already have the expected total size (metadataHeaderSize+capacity), it
// is (re)initialised to a fresh, empty ring — matching the "any mismatch
// resets the file" rule of spec.md §6.
func OpenPersistentFile(path string, capacity int) (*PersistentFileAllocator, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	a := &PersistentFileAllocator{file: f, capacity: capacity}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	wantSize := int64(metadataHeaderSize + capacity)
	if info.Size() != wantSize {
		if err := f.Truncate(wantSize); err != nil {
			f.Close()
			return nil, err
		}
		if err := a.writeMetadata(0, 0); err != nil {
			f.Close()
			return nil, err
		}
	}
	return a, nil
}

// Close flushes and closes the backing file.
func (a *PersistentFileAllocator) Close() error {
	if err := a.file.Sync(); err != nil {
		a.file.Close()
		return err
	}
	return a.file.Close()
}

func (a *PersistentFileAllocator) Capacity() int { return a.capacity }

func (a *PersistentFileAllocator) Read(offset int, dst []byte) error {
	_, err := a.file.ReadAt(dst, int64(metadataHeaderSize+offset))
	return err
}

func (a *PersistentFileAllocator) Write(offset int, src []byte) error {
	if _, err := a.file.WriteAt(src, int64(metadataHeaderSize+offset)); err != nil {
		return err
	}
	return a.file.Sync()
}

func (a *PersistentFileAllocator) writeMetadata(readIndex, used int) error {
	var hdr [metadataHeaderSize]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(readIndex))
	binary.BigEndian.PutUint64(hdr[8:16], uint64(used))
	if _, err := a.file.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	return a.file.Sync()
}

func (a *PersistentFileAllocator) readMetadata() (readIndex, used int) {
	var hdr [metadataHeaderSize]byte
	if _, err := a.file.ReadAt(hdr[:], 0); err != nil {
		return 0, 0
	}
	return int(binary.BigEndian.Uint64(hdr[0:8])), int(binary.BigEndian.Uint64(hdr[8:16]))
}

func (a *PersistentFileAllocator) GetReadIndex() int {
	ri, _ := a.readMetadata()
	return ri
}

func (a *PersistentFileAllocator) SetReadIndex(idx int) {
	_, used := a.readMetadata()
	_ = a.writeMetadata(idx, used)
}

func (a *PersistentFileAllocator) GetNumberOfElementsUsed() int {
	_, used := a.readMetadata()
	return used
}

func (a *PersistentFileAllocator) SetNumberOfElementsUsed(used int) {
	ri, _ := a.readMetadata()
	_ = a.writeMetadata(ri, used)
}

func (a *PersistentFileAllocator) SetReadIndexAndElementsUsedAtomically(readIndex, used int) {
	_ = a.writeMetadata(readIndex, used)
}

var _ MetadataAllocator = (*PersistentFileAllocator)(nil)
