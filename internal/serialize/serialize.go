// Package serialize provides cursor-based scalar encoding over a byte
// slice, mirroring outpost::Serialize / outpost::Deserialize. Advancing
// past the end of the underlying slice is treated as caller error and
// returns ErrOutOfBounds rather than panicking, since both the coordinator
// and the framing layer must be able to recover from a misbehaving peer.
package serialize

import (
	"encoding/binary"
	"errors"
)

// ErrOutOfBounds is returned when a store/read/peek would cross the end
// of the underlying buffer.
var ErrOutOfBounds = errors.New("sip: serializer out of bounds")

// ByteOrder selects the wire endianness used by a Serializer/Deserializer
// pair. SIP packet headers are always big-endian (§4.9); the little-endian
// variant exists for payload contents that choose it, mirroring the
// original library's independent little-endian serializer type.
type ByteOrder interface {
	binary.ByteOrder
}

// BigEndian is the default wire order used by SIP packet headers.
var BigEndian ByteOrder = binary.BigEndian

// LittleEndian is the ByteOrder for payloads that declare little-endian
// order explicitly; it drives the same cursor types as BigEndian.
var LittleEndian ByteOrder = binary.LittleEndian

// Serializer is a write cursor over a fixed byte slice.
type Serializer struct {
	buf   []byte
	pos   int
	order ByteOrder
}

// NewSerializer creates a write cursor over buf using the given byte order.
func NewSerializer(buf []byte, order ByteOrder) *Serializer {
	return &Serializer{buf: buf, order: order}
}

// Position returns the number of bytes written so far.
func (s *Serializer) Position() int { return s.pos }

// Remaining returns the number of bytes left before the cursor runs off
// the end of the buffer.
func (s *Serializer) Remaining() int { return len(s.buf) - s.pos }

// Bytes returns the portion of the buffer written so far.
func (s *Serializer) Bytes() []byte { return s.buf[:s.pos] }

// Reset rewinds the cursor to the start of the buffer without clearing
// its contents.
func (s *Serializer) Reset() { s.pos = 0 }

func (s *Serializer) reserve(n int) ([]byte, error) {
	if s.pos+n > len(s.buf) {
		return nil, ErrOutOfBounds
	}
	b := s.buf[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// StoreBool writes a single byte, 1 for true and 0 for false.
func (s *Serializer) StoreBool(v bool) error {
	b, err := s.reserve(1)
	if err != nil {
		return err
	}
	if v {
		b[0] = 1
	} else {
		b[0] = 0
	}
	return nil
}

// StoreU8 writes a single byte.
func (s *Serializer) StoreU8(v uint8) error {
	b, err := s.reserve(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

// StoreU16 writes a 16-bit value.
func (s *Serializer) StoreU16(v uint16) error {
	b, err := s.reserve(2)
	if err != nil {
		return err
	}
	s.order.PutUint16(b, v)
	return nil
}

// StoreU24 writes the low 24 bits of v.
func (s *Serializer) StoreU24(v uint32) error {
	b, err := s.reserve(3)
	if err != nil {
		return err
	}
	var tmp [4]byte
	s.order.PutUint32(tmp[:], v)
	if isBigEndian(s.order) {
		copy(b, tmp[1:4])
	} else {
		copy(b, tmp[0:3])
	}
	return nil
}

// StoreU32 writes a 32-bit value.
func (s *Serializer) StoreU32(v uint32) error {
	b, err := s.reserve(4)
	if err != nil {
		return err
	}
	s.order.PutUint32(b, v)
	return nil
}

// StoreU64 writes a 64-bit value.
func (s *Serializer) StoreU64(v uint64) error {
	b, err := s.reserve(8)
	if err != nil {
		return err
	}
	s.order.PutUint64(b, v)
	return nil
}

// StoreF32 writes an IEEE-754 single precision float.
func (s *Serializer) StoreF32(v float32) error {
	return s.StoreU32(f32bits(v))
}

// StoreF64 writes an IEEE-754 double precision float.
func (s *Serializer) StoreF64(v float64) error {
	return s.StoreU64(f64bits(v))
}

// StorePacked12 writes two 12-bit values packed into 3 bytes, matching
// the original library's packed-12-bit pair operation.
func (s *Serializer) StorePacked12(a, b uint16) error {
	a &= 0x0FFF
	b &= 0x0FFF
	dst, err := s.reserve(3)
	if err != nil {
		return err
	}
	dst[0] = byte(a >> 4)
	dst[1] = byte(a<<4) | byte(b>>8)
	dst[2] = byte(b)
	return nil
}

// StoreBytes copies src verbatim into the buffer.
func (s *Serializer) StoreBytes(src []byte) error {
	dst, err := s.reserve(len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// Deserializer is a read cursor over a fixed byte slice.
type Deserializer struct {
	buf   []byte
	pos   int
	order ByteOrder
}

// NewDeserializer creates a read cursor over buf using the given byte order.
func NewDeserializer(buf []byte, order ByteOrder) *Deserializer {
	return &Deserializer{buf: buf, order: order}
}

// Position returns the number of bytes consumed so far.
func (d *Deserializer) Position() int { return d.pos }

// Remaining returns the number of unread bytes.
func (d *Deserializer) Remaining() int { return len(d.buf) - d.pos }

func (d *Deserializer) take(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, ErrOutOfBounds
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Deserializer) peekAt(offset, n int) ([]byte, error) {
	if offset < 0 || offset+n > len(d.buf) {
		return nil, ErrOutOfBounds
	}
	return d.buf[offset : offset+n], nil
}

// ReadBool reads a single byte and reports it as a boolean.
func (d *Deserializer) ReadBool() (bool, error) {
	b, err := d.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadU8 reads a single byte.
func (d *Deserializer) ReadU8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a 16-bit value.
func (d *Deserializer) ReadU16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

// ReadU24 reads a 24-bit value into the low bits of a uint32.
func (d *Deserializer) ReadU24() (uint32, error) {
	b, err := d.take(3)
	if err != nil {
		return 0, err
	}
	var tmp [4]byte
	if isBigEndian(d.order) {
		copy(tmp[1:4], b)
	} else {
		copy(tmp[0:3], b)
	}
	return d.order.Uint32(tmp[:]), nil
}

// ReadU32 reads a 32-bit value.
func (d *Deserializer) ReadU32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

// ReadU64 reads a 64-bit value.
func (d *Deserializer) ReadU64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

// ReadF32 reads an IEEE-754 single precision float.
func (d *Deserializer) ReadF32() (float32, error) {
	v, err := d.ReadU32()
	if err != nil {
		return 0, err
	}
	return f32frombits(v), nil
}

// ReadF64 reads an IEEE-754 double precision float.
func (d *Deserializer) ReadF64() (float64, error) {
	v, err := d.ReadU64()
	if err != nil {
		return 0, err
	}
	return f64frombits(v), nil
}

// ReadPacked12 reads two 12-bit values packed into 3 bytes.
func (d *Deserializer) ReadPacked12() (a, b uint16, err error) {
	src, err := d.take(3)
	if err != nil {
		return 0, 0, err
	}
	a = uint16(src[0])<<4 | uint16(src[1])>>4
	b = (uint16(src[1])&0x0F)<<8 | uint16(src[2])
	return a, b, nil
}

// ReadBytes consumes and returns the next n bytes.
func (d *Deserializer) ReadBytes(n int) ([]byte, error) {
	return d.take(n)
}

// PeekU8 reads a byte at offset without advancing the cursor.
func (d *Deserializer) PeekU8(offset int) (uint8, error) {
	b, err := d.peekAt(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// PeekU16 reads a 16-bit value at offset without advancing the cursor.
func (d *Deserializer) PeekU16(offset int) (uint16, error) {
	b, err := d.peekAt(offset, 2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

// PeekU32 reads a 32-bit value at offset without advancing the cursor.
func (d *Deserializer) PeekU32(offset int) (uint32, error) {
	b, err := d.peekAt(offset, 4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

func isBigEndian(o ByteOrder) bool {
	_, ok := o.(interface{ String() string })
	if !ok {
		return true
	}
	return o.String() == "BigEndian"
}
