package framing

import "otuscore.dev/sip/internal/core"

const cobsDelimiter = 0x00

// EncodeCOBS writes payload into out as a delimiter-terminated
// Consistent-Overhead-Byte-Stuffed frame and returns the written prefix.
// Returns ErrFrameBufferError if out cannot hold the worst case for
// len(payload).
func EncodeCOBS(payload []byte, out []byte) ([]byte, error) {
	if len(out) < COBSWorstCaseSize(len(payload)) {
		return nil, core.ErrFrameBufferError
	}

	n := 0
	// codeIndex points at the not-yet-written length byte of the current
	// run; code counts zero-free bytes written since the last run start,
	// starting at 1 to account for the length byte itself.
	codeIndex := 0
	n++ // reserve the first run's length byte
	code := byte(1)

	for _, b := range payload {
		if b != cobsDelimiter {
			out[n] = b
			n++
			code++
			if code == 0xFF {
				out[codeIndex] = code
				codeIndex = n
				n++
				code = 1
			}
			continue
		}
		out[codeIndex] = code
		codeIndex = n
		n++
		code = 1
	}
	out[codeIndex] = code
	out[n] = cobsDelimiter
	n++
	return out[:n], nil
}

// COBSWorstCaseSize returns the largest possible encoded size for a
// payload of payloadLen bytes (spec.md §4.7).
func COBSWorstCaseSize(payloadLen int) int {
	return payloadLen + (payloadLen+253)/254 + 2
}

type cobsState int

const (
	cobsIdle cobsState = iota
	cobsInFrame
)

// COBSDecoder is a buffered, byte-fed COBS decoder. Feed bytes one at a
// time via Decode; it returns ErrFrameNotComplete until the delimiter has
// been seen.
type COBSDecoder struct {
	state cobsState
	buf   []byte
}

// NewCOBSDecoder creates a decoder whose internal buffer can hold up to
// bufSize encoded bytes (including the trailing delimiter).
func NewCOBSDecoder(bufSize int) *COBSDecoder {
	return &COBSDecoder{buf: make([]byte, 0, bufSize)}
}

// Reset empties the buffer; the next Decode call depends only on bytes
// fed afterward.
func (d *COBSDecoder) Reset() {
	d.state = cobsIdle
	d.buf = d.buf[:0]
}

// Decode feeds one raw byte into the decoder, returning the decoded
// payload once the delimiter closes a frame, ErrFrameNotComplete while
// more bytes are needed, ErrFrameBufferError if the buffer fills without
// a delimiter, or ErrFrameDecodeError on a malformed COBS sequence.
func (d *COBSDecoder) Decode(b byte) ([]byte, error) {
	if len(d.buf) >= cap(d.buf) {
		d.Reset()
		return nil, core.ErrFrameBufferError
	}
	d.buf = append(d.buf, b)
	d.state = cobsInFrame

	if b != cobsDelimiter {
		return nil, core.ErrFrameNotComplete
	}

	payload, err := cobsUnstuff(d.buf[:len(d.buf)-1])
	d.Reset()
	if err != nil {
		return nil, core.ErrFrameDecodeError
	}
	return payload, nil
}

// cobsUnstuff decodes a COBS-encoded frame (without its trailing
// delimiter) back into the original payload.
func cobsUnstuff(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, core.ErrFrameDecodeError
	}
	out := make([]byte, 0, len(frame))
	i := 0
	for i < len(frame) {
		code := int(frame[i])
		if code == 0 {
			return nil, core.ErrFrameDecodeError
		}
		i++
		runEnd := i + code - 1
		if runEnd > len(frame) {
			return nil, core.ErrFrameDecodeError
		}
		out = append(out, frame[i:runEnd]...)
		i = runEnd
		if code < 0xFF && i < len(frame) {
			out = append(out, cobsDelimiter)
		}
	}
	return out, nil
}
