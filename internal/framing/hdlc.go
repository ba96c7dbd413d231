// Package framing implements the byte-stuffing codecs that sit between
// SIP packets and the raw byte stream (C7/C8 of spec.md): HDLC-style
// boundary stuffing and Consistent-Overhead Byte Stuffing, each with an
// encoder and a buffered, byte-fed decoder.
package framing

import "otuscore.dev/sip/internal/core"

const (
	hdlcBoundary = 0x7E
	hdlcEscape   = 0x7D
	hdlcXorMask  = 0x20
)

// EncodeHDLC writes payload into out as a boundary-delimited, byte-stuffed
// HDLC frame and returns the written prefix. Any occurrence of the
// boundary or escape byte within payload is replaced by escape, byte XOR
// 0x20. Returns ErrFrameBufferError if out is too small to hold the
// worst case.
func EncodeHDLC(payload []byte, out []byte) ([]byte, error) {
	if len(out) < HDLCWorstCaseSize(len(payload)) {
		return nil, core.ErrFrameBufferError
	}

	n := 0
	put := func(b byte) bool {
		if n >= len(out) {
			return false
		}
		out[n] = b
		n++
		return true
	}

	if !put(hdlcBoundary) {
		return nil, core.ErrFrameBufferError
	}
	for _, b := range payload {
		if b == hdlcBoundary || b == hdlcEscape {
			if !put(hdlcEscape) || !put(b^hdlcXorMask) {
				return nil, core.ErrFrameBufferError
			}
			continue
		}
		if !put(b) {
			return nil, core.ErrFrameBufferError
		}
	}
	if !put(hdlcBoundary) {
		return nil, core.ErrFrameBufferError
	}
	return out[:n], nil
}

// HDLCWorstCaseSize returns the largest possible encoded size for a
// payload of payloadLen bytes: every byte escaped, plus two boundaries.
func HDLCWorstCaseSize(payloadLen int) int {
	return 2*payloadLen + 2
}

type hdlcState int

const (
	hdlcIdle hdlcState = iota
	hdlcInFrame
	hdlcBackToBack
)

// HDLCDecoder is a buffered, byte-fed HDLC decoder (spec.md §4.6). Feed
// bytes one at a time via Decode; it returns ErrFrameNotComplete until a
// full frame has been accumulated and decoded.
type HDLCDecoder struct {
	state   hdlcState
	recv    []byte
	scratch []byte
}

// NewHDLCDecoder creates a decoder whose internal receive buffer can hold
// up to bufSize raw (stuffed) bytes; bufSize must be at least the
// worst-case frame size for the protocol's maximum payload.
func NewHDLCDecoder(bufSize int) *HDLCDecoder {
	return &HDLCDecoder{
		state:   hdlcIdle,
		recv:    make([]byte, 0, bufSize),
		scratch: make([]byte, 0, bufSize),
	}
}

// Reset returns the decoder to Idle with an empty buffer. The next
// Decode call depends only on bytes fed after Reset.
func (d *HDLCDecoder) Reset() {
	d.state = hdlcIdle
	d.recv = d.recv[:0]
}

// Decode feeds one raw byte into the decoder. It returns a decoded
// payload slice on success, ErrFrameNotComplete if more bytes are needed,
// ErrFrameBufferError if the receive buffer filled without a closing
// boundary, or ErrFrameDecodeError on an invalid escape sequence or an
// empty frame.
func (d *HDLCDecoder) Decode(b byte) ([]byte, error) {
	switch d.state {
	case hdlcIdle:
		if b != hdlcBoundary {
			return nil, core.ErrFrameNotComplete
		}
		d.recv = append(d.recv[:0], b)
		d.state = hdlcInFrame
		return nil, core.ErrFrameNotComplete

	case hdlcBackToBack:
		if b == hdlcBoundary {
			d.state = hdlcInFrame
			return nil, core.ErrFrameNotComplete
		}
		if len(d.recv) >= cap(d.recv) {
			d.Reset()
			return nil, core.ErrFrameBufferError
		}
		d.recv = append(d.recv, b)
		d.state = hdlcInFrame
		return nil, core.ErrFrameNotComplete

	case hdlcInFrame:
		if len(d.recv) >= cap(d.recv) {
			d.Reset()
			return nil, core.ErrFrameBufferError
		}
		d.recv = append(d.recv, b)
		if b != hdlcBoundary {
			return nil, core.ErrFrameNotComplete
		}

		payload, err := hdlcUnstuff(d.recv)
		// Keep the closing boundary as the next frame's opening one.
		d.recv = append(d.recv[:0], hdlcBoundary)
		d.state = hdlcBackToBack
		if err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			return nil, core.ErrFrameDecodeError
		}
		return payload, nil
	}
	return nil, core.ErrFrameDecodeError
}

// hdlcUnstuff decodes the bytes strictly between the first and last
// boundary of frame (which must itself begin and end with 0x7E).
func hdlcUnstuff(frame []byte) ([]byte, error) {
	if len(frame) < 2 || frame[0] != hdlcBoundary || frame[len(frame)-1] != hdlcBoundary {
		return nil, core.ErrFrameDecodeError
	}
	body := frame[1 : len(frame)-1]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b == hdlcEscape {
			i++
			if i >= len(body) {
				return nil, core.ErrFrameDecodeError
			}
			out = append(out, body[i]^hdlcXorMask)
			continue
		}
		if b == hdlcBoundary {
			return nil, core.ErrFrameDecodeError
		}
		out = append(out, b)
	}
	return out, nil
}
