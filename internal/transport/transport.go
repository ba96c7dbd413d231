// Package transport implements FrameTransport (C9 of spec.md): the glue
// between a framing codec and a raw byte stream. A Tx half owns a mutex
// and a scratch buffer; an Rx half is single-threaded, stateful, and
// implements the blocking-with-timeout read loop.
package transport

import (
	"sync"
	"time"

	"otuscore.dev/sip/internal/core"
)

// SerialRx is the read half of a duplex byte stream (spec.md §6).
// Read returns 0, nil on timeout and a non-nil error only on permanent
// failure.
type SerialRx interface {
	Read(dst []byte, timeout time.Duration) (int, error)
}

// SerialTx is the write half of a duplex byte stream (spec.md §6). Write
// must attempt to fully write len(src) bytes before returning.
type SerialTx interface {
	Write(src []byte, timeout time.Duration) (int, error)
}

// Encoder produces a framed representation of one payload.
type Encoder interface {
	Encode(payload []byte, out []byte) ([]byte, error)
	WorstCaseSize(payloadLen int) int
}

// Decoder is a buffered, byte-fed frame decoder.
type Decoder interface {
	Decode(b byte) ([]byte, error)
	Reset()
}

// RxOptions configures the backoff/timeout behavior of Rx.Receive,
// matching spec.md §4.8's defaults.
type RxOptions struct {
	// SerialReadTimeout caps each individual underlying read. Default 10ms.
	SerialReadTimeout time.Duration
	// WaitForDataSleepTime is the backoff applied when the underlying
	// read returns zero bytes while blocking. Default 10ms.
	WaitForDataSleepTime time.Duration
	// ClearOnTimeout resets the decoder state when the overall timeout
	// expires mid-frame.
	ClearOnTimeout bool
}

func (o RxOptions) withDefaults() RxOptions {
	if o.SerialReadTimeout <= 0 {
		o.SerialReadTimeout = 10 * time.Millisecond
	}
	if o.WaitForDataSleepTime <= 0 {
		o.WaitForDataSleepTime = 10 * time.Millisecond
	}
	return o
}

// Tx is the transmit half of a frame transport. Encode and write happen
// under a mutex; it is safe to call Send concurrently from multiple
// goroutines, but the stream itself serializes writes.
type Tx struct {
	mu      sync.Mutex
	stream  SerialTx
	codec   Encoder
	scratch []byte
	timeout time.Duration
}

// NewTx creates a Tx for the given stream and codec. maxPayloadLen sizes
// the internal scratch buffer to the codec's worst case; writeTimeout
// bounds each underlying Write call.
func NewTx(stream SerialTx, codec Encoder, maxPayloadLen int, writeTimeout time.Duration) *Tx {
	return &Tx{
		stream:  stream,
		codec:   codec,
		scratch: make([]byte, codec.WorstCaseSize(maxPayloadLen)),
		timeout: writeTimeout,
	}
}

// Send encodes payload and writes the framed bytes to the stream,
// retrying partial writes until everything is written or the stream
// fails. Returns ErrFrameBufferError if the scratch buffer can't hold
// the encoded frame, or ErrStreamStopped on a stream write failure.
func (t *Tx) Send(payload []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame, err := t.codec.Encode(payload, t.scratch)
	if err != nil {
		return 0, err
	}

	total := 0
	for total < len(frame) {
		n, err := t.stream.Write(frame[total:], t.timeout)
		if err != nil {
			return total, core.ErrStreamStopped
		}
		if n == 0 {
			return total, core.ErrStreamStopped
		}
		total += n
	}
	return total, nil
}

// Rx is the receive half of a frame transport. It is single-threaded:
// the decoder's internal state is not safe to share across goroutines.
type Rx struct {
	stream  SerialRx
	decoder Decoder
	opts    RxOptions
	readBuf [1]byte
}

// NewRx creates an Rx reading from stream, feeding bytes through decoder,
// with the given backoff options.
func NewRx(stream SerialRx, decoder Decoder, opts RxOptions) *Rx {
	return &Rx{stream: stream, decoder: decoder, opts: opts.withDefaults()}
}

// Receive reads and decodes one frame's payload, blocking up to timeout.
// timeout == 0 is non-blocking: it never sleeps, keeps reading while the
// stream returns bytes, and returns ErrTimeout at the first empty read
// unless the bytes read so far completed a frame.
func (r *Rx) Receive(timeout time.Duration) ([]byte, error) {
	start := time.Now()

	for {
		elapsed := time.Since(start)
		remaining := timeout - elapsed
		nonBlocking := timeout == 0

		if !nonBlocking && remaining <= 0 {
			if r.opts.ClearOnTimeout {
				r.decoder.Reset()
			}
			return nil, core.ErrTimeout
		}

		readTimeout := r.opts.SerialReadTimeout
		if !nonBlocking && remaining < readTimeout {
			readTimeout = remaining
		}
		if nonBlocking {
			readTimeout = 0
		}

		n, err := r.stream.Read(r.readBuf[:], readTimeout)
		if err != nil {
			return nil, core.ErrStreamStopped
		}
		if n == 0 {
			if nonBlocking {
				return nil, core.ErrTimeout
			}
			time.Sleep(r.opts.WaitForDataSleepTime)
			continue
		}

		payload, err := r.decoder.Decode(r.readBuf[0])
		if err == nil {
			return payload, nil
		}
		if err == core.ErrFrameNotComplete {
			continue
		}

		// Any other decode error: time-expired callers get ErrTimeout,
		// others get the decoder's own error. Either way the decoder is
		// reset so the next byte starts a fresh frame.
		r.decoder.Reset()
		if !nonBlocking && time.Since(start) >= timeout {
			return nil, core.ErrTimeout
		}
		return nil, err
	}
}
