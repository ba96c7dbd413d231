// Package sip implements the Simple Interface Protocol request/response
// layer (C10-C13 of spec.md): packet read/write with CRC-16/CCITT
// protection, a Coordinator that correlates responses to outstanding
// requests, a Worker that answers them, and a periodic
// CoordinatorPacketReceiver that feeds parsed responses to a Coordinator.
package sip

import (
	"otuscore.dev/sip/internal/core"
	"otuscore.dev/sip/internal/framing"
)

const (
	lengthFieldSize = 2 // the wire length field L itself
	prefixSize      = 3 // workerId(1) + counter(1) + type(1)
	headerSize      = lengthFieldSize + prefixSize // 5: bytes preceding the payload
	trailerSize     = 2                            // CRC-16

	// MinPacketLength is the smallest legal value of the wire length
	// field L (spec.md §3): L counts everything after the length field
	// itself, so the floor is prefix+CRC with a zero-length payload.
	MinPacketLength = prefixSize + trailerSize

	// minWireBytes is the smallest legal total buffer size: the 2-byte
	// length field plus MinPacketLength bytes.
	minWireBytes = lengthFieldSize + MinPacketLength
)

// MaxPacketLength returns maxPayloadLength + 7, the project-parameter
// relationship fixed by spec.md §4.14.
func MaxPacketLength(maxPayloadLength int) int { return maxPayloadLength + headerSize + trailerSize }

// PacketWriter builds one SIP packet directly into a caller-owned
// buffer. It starts unfinalized; Update() computes the length and CRC
// and flips it to finalized, after which GetSliceIfFinalized and
// GetReader become usable.
type PacketWriter struct {
	buf        []byte
	payloadLen int
	finalized  bool
}

// NewPacketWriter wraps buf, which must be at least minWireBytes bytes
// for Update to be able to succeed.
func NewPacketWriter(buf []byte) *PacketWriter {
	return &PacketWriter{buf: buf}
}

func (w *PacketWriter) SetWorkerID(id uint8) { w.buf[2] = id }
func (w *PacketWriter) SetCounter(c uint8)   { w.buf[3] = c }
func (w *PacketWriter) SetType(t uint8)      { w.buf[4] = t }

// SetPayloadData copies payload into the buffer starting at offset 5.
// The caller's buffer must be large enough; use MaxPacketLength to size
// it upfront.
func (w *PacketWriter) SetPayloadData(payload []byte) {
	copy(w.buf[headerSize:], payload)
	w.payloadLen = len(payload)
}

// Update finalizes the packet: writes the big-endian length, computes
// and writes the CRC-16/CCITT over every byte before it (length field,
// prefix and payload), and flips to finalized.
// Returns ErrLengthTooSmall if buf cannot hold header+payload+CRC.
func (w *PacketWriter) Update() error {
	total := headerSize + w.payloadLen + trailerSize // total wire bytes this packet occupies
	if total > len(w.buf) {
		return core.ErrLengthTooSmall
	}
	length := total - lengthFieldSize // L excludes the 2-byte length field itself
	w.buf[0] = byte(length >> 8)
	w.buf[1] = byte(length)

	crc := framing.CRC16(w.buf[:headerSize+w.payloadLen])
	w.buf[headerSize+w.payloadLen] = byte(crc >> 8)
	w.buf[headerSize+w.payloadLen+1] = byte(crc)

	w.finalized = true
	return nil
}

// GetSliceIfFinalized returns the finalized packet bytes, or
// ErrNotFinalized if Update has not been called successfully yet.
func (w *PacketWriter) GetSliceIfFinalized() ([]byte, error) {
	if !w.finalized {
		return nil, core.ErrNotFinalized
	}
	total := headerSize + w.payloadLen + trailerSize
	return w.buf[:total], nil
}

// GetReader returns a PacketReader over the finalized bytes, for
// verification. Only valid after a successful Update.
func (w *PacketWriter) GetReader() (*PacketReader, error) {
	slice, err := w.GetSliceIfFinalized()
	if err != nil {
		return nil, err
	}
	r := NewPacketReader(slice)
	if err := r.ReadPacket(); err != nil {
		return nil, err
	}
	return r, nil
}

// PacketReader parses and validates one SIP packet from a caller-owned
// buffer.
type PacketReader struct {
	buf    []byte
	length int
	valid  bool
}

// NewPacketReader wraps buf for parsing via ReadPacket.
func NewPacketReader(buf []byte) *PacketReader {
	return &PacketReader{buf: buf}
}

// ReadPacket validates the buffer: minimum length, declared length fits
// within the buffer, and CRC match.
func (r *PacketReader) ReadPacket() error {
	if len(r.buf) < minWireBytes {
		return core.ErrLengthTooSmall
	}
	length := int(r.buf[0])<<8 | int(r.buf[1])
	if length < MinPacketLength {
		return core.ErrLengthTooSmall
	}
	total := lengthFieldSize + length // total wire bytes this packet claims to occupy
	if total > len(r.buf) {
		return core.ErrLengthTooSmall
	}

	crcOffset := total - trailerSize // numerically equal to length, the CRC sits at the last 2 of the L bytes
	want := framing.CRC16(r.buf[:crcOffset])
	got := uint16(r.buf[crcOffset])<<8 | uint16(r.buf[crcOffset+1])
	if want != got {
		return core.ErrCRCMismatch
	}

	r.length = length
	r.valid = true
	return nil
}

func (r *PacketReader) GetLength() int    { return r.length }
func (r *PacketReader) GetWorkerID() uint8 { return r.buf[2] }
func (r *PacketReader) GetCounter() uint8  { return r.buf[3] }
func (r *PacketReader) GetType() uint8     { return r.buf[4] }

// GetPayloadData returns the payload bytes: everything between the
// header and the trailing CRC. r.length is L, which already excludes
// the 2-byte length field, so it equals the payload's end offset within
// the buffer.
func (r *PacketReader) GetPayloadData() []byte {
	return r.buf[headerSize:r.length]
}
