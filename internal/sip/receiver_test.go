package sip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otuscore.dev/sip/internal/core"
)

type mockFrameReceiver struct {
	frames [][]byte
	idx    int
	err    error
}

func (m *mockFrameReceiver) Receive(time.Duration) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.idx >= len(m.frames) {
		return nil, core.ErrTimeout
	}
	f := m.frames[m.idx]
	m.idx++
	return f, nil
}

type countingHeartbeat struct{ ticks int }

func (h *countingHeartbeat) Tick() { h.ticks++ }

func buildPacket(t *testing.T, workerID, counter, typ uint8, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, MaxPacketLength(len(payload)))
	w := NewPacketWriter(buf)
	w.SetWorkerID(workerID)
	w.SetCounter(counter)
	w.SetType(typ)
	w.SetPayloadData(payload)
	require.NoError(t, w.Update())
	slice, err := w.GetSliceIfFinalized()
	require.NoError(t, err)
	return slice
}

func TestReceiverEnqueuesParsedResponse(t *testing.T) {
	frame := buildPacket(t, 2, 9, 4, []byte{0x11, 0x22})
	fr := &mockFrameReceiver{frames: [][]byte{frame}}
	hb := &countingHeartbeat{}

	tr := &mockTransport{}
	coord := NewCoordinator(tr, 16, 4, time.Second)
	recv := NewCoordinatorPacketReceiver(fr, coord, 16, 10*time.Millisecond, hb)

	require.NoError(t, recv.RunOnce())
	assert.Equal(t, 1, hb.ticks)

	responseBuf := make([]byte, 16)
	require.NoError(t, coord.SendRequestGetResponseData(2, 9, 3, 4, nil, responseBuf))
	assert.Equal(t, []byte{0x11, 0x22}, responseBuf[:2])
}

func TestReceiverReportsReceiveFailedOnStreamError(t *testing.T) {
	fr := &mockFrameReceiver{err: core.ErrStreamStopped}
	tr := &mockTransport{}
	coord := NewCoordinator(tr, 16, 4, time.Second)
	recv := NewCoordinatorPacketReceiver(fr, coord, 16, 10*time.Millisecond, nil)

	err := recv.RunOnce()
	assert.ErrorIs(t, err, core.ErrReceiveFailed)
}

func TestReceiverReportsReadFailedOnMalformedPacket(t *testing.T) {
	fr := &mockFrameReceiver{frames: [][]byte{{0x00, 0x05, 0x01, 0x02, 0x03, 0xDE, 0xAD}}}
	tr := &mockTransport{}
	coord := NewCoordinator(tr, 16, 4, time.Second)
	recv := NewCoordinatorPacketReceiver(fr, coord, 16, 10*time.Millisecond, nil)

	err := recv.RunOnce()
	assert.ErrorIs(t, err, core.ErrReadFailed)
}

func TestReceiverReportsQueueFull(t *testing.T) {
	frameA := buildPacket(t, 1, 1, 1, nil)
	frameB := buildPacket(t, 1, 2, 1, nil)
	fr := &mockFrameReceiver{frames: [][]byte{frameA, frameB}}
	tr := &mockTransport{}
	coord := NewCoordinator(tr, 16, 1, time.Second) // queue depth 1
	recv := NewCoordinatorPacketReceiver(fr, coord, 16, 10*time.Millisecond, nil)

	require.NoError(t, recv.RunOnce())
	err := recv.RunOnce()
	assert.ErrorIs(t, err, core.ErrQueueFull)
}

func TestReceiverTruncatesPayloadToMaxPayloadLen(t *testing.T) {
	frame := buildPacket(t, 1, 1, 1, []byte{1, 2, 3, 4, 5})
	fr := &mockFrameReceiver{frames: [][]byte{frame}}
	tr := &mockTransport{}
	coord := NewCoordinator(tr, 8, 4, time.Second)
	recv := NewCoordinatorPacketReceiver(fr, coord, 3, 10*time.Millisecond, nil)

	require.NoError(t, recv.RunOnce())

	responseBuf := make([]byte, 8)
	require.NoError(t, coord.SendRequestGetResponseData(1, 1, 0, 1, nil, responseBuf))
	assert.Equal(t, []byte{1, 2, 3}, responseBuf[:3])
}
