package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otuscore.dev/sip/internal/core"
	"otuscore.dev/sip/internal/framing"
)

// memStream is an in-memory SerialRx/SerialTx pair backed by a byte
// slice, used to exercise Tx/Rx without real hardware.
type memStream struct {
	mu      sync.Mutex
	buf     []byte
	failing bool
}

func (m *memStream) Write(src []byte, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, errors.New("stream failed")
	}
	m.buf = append(m.buf, src...)
	return len(src), nil
}

func (m *memStream) Read(dst []byte, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, errors.New("stream failed")
	}
	if len(m.buf) == 0 {
		return 0, nil
	}
	n := copy(dst, m.buf[:1])
	m.buf = m.buf[1:]
	return n, nil
}

func TestTxSendHDLCFrame(t *testing.T) {
	s := &memStream{}
	tx := NewTx(s, framing.HDLCCodec{}, 16, 50*time.Millisecond)

	n, err := tx.Send([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.Equal(t, 5, n) // boundary + 3 bytes + boundary
	assert.Equal(t, []byte{0x7E, 0x01, 0x02, 0x03, 0x7E}, s.buf)
}

func TestTxSendStreamFailureReturnsStreamStopped(t *testing.T) {
	s := &memStream{failing: true}
	tx := NewTx(s, framing.HDLCCodec{}, 16, 50*time.Millisecond)

	_, err := tx.Send([]byte{0x01})
	assert.ErrorIs(t, err, core.ErrStreamStopped)
}

func TestRxReceiveHDLCFrame(t *testing.T) {
	s := &memStream{buf: []byte{0x7E, 0x01, 0x02, 0x03, 0x7E}}
	rx := NewRx(s, framing.NewHDLCDecoder(64), RxOptions{
		SerialReadTimeout:    5 * time.Millisecond,
		WaitForDataSleepTime: time.Millisecond,
	})

	payload, err := rx.Receive(200 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, payload)
}

func TestRxReceiveNonBlockingReturnsTimeoutWhenEmpty(t *testing.T) {
	s := &memStream{}
	rx := NewRx(s, framing.NewHDLCDecoder(64), RxOptions{})

	start := time.Now()
	_, err := rx.Receive(0)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, core.ErrTimeout)
	assert.Less(t, elapsed, 20*time.Millisecond, "non-blocking receive must not sleep")
}

func TestRxReceiveBlockingTimesOutWhenNoFrameArrives(t *testing.T) {
	s := &memStream{}
	rx := NewRx(s, framing.NewHDLCDecoder(64), RxOptions{
		SerialReadTimeout:    5 * time.Millisecond,
		WaitForDataSleepTime: 5 * time.Millisecond,
	})

	start := time.Now()
	_, err := rx.Receive(40 * time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, core.ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestRxReceiveStreamFailureReturnsStreamStopped(t *testing.T) {
	s := &memStream{failing: true}
	rx := NewRx(s, framing.NewHDLCDecoder(64), RxOptions{})

	_, err := rx.Receive(50 * time.Millisecond)
	assert.ErrorIs(t, err, core.ErrStreamStopped)
}

func TestTxThenRxRoundTrip(t *testing.T) {
	s := &memStream{}
	tx := NewTx(s, framing.COBSCodec{}, 32, 50*time.Millisecond)
	rx := NewRx(s, framing.NewCOBSDecoder(128), RxOptions{
		SerialReadTimeout:    5 * time.Millisecond,
		WaitForDataSleepTime: time.Millisecond,
	})

	payload := []byte{0x00, 0x11, 0x00, 0x22}
	_, err := tx.Send(payload)
	require.NoError(t, err)

	got, err := rx.Receive(200 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
