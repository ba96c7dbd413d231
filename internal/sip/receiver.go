package sip

import (
	"time"

	"otuscore.dev/sip/internal/core"
)

// FrameReceiver is the narrow interface CoordinatorPacketReceiver needs
// from a frame transport: receive one decoded frame's payload.
type FrameReceiver interface {
	Receive(timeout time.Duration) ([]byte, error)
}

// HeartbeatSink receives one tick at the end of every RunOnce call,
// whatever its outcome, so a supervising task can tell the receiver is
// alive.
type HeartbeatSink interface {
	Tick()
}

// CoordinatorPacketReceiver is a periodic task (spec.md §4.12): each call
// to RunOnce reads one frame, parses it as a SIP packet, converts it to
// a ResponseData, and enqueues it into a Coordinator. It is a
// single-threaded reader; multiple coordinators need their own
// receivers.
type CoordinatorPacketReceiver struct {
	transport     FrameReceiver
	coordinator   *Coordinator
	maxPayloadLen int
	serialTimeout time.Duration
	heartbeat     HeartbeatSink
}

// NewCoordinatorPacketReceiver creates a receiver feeding coordinator,
// reading frames from transport with serialTimeout per read attempt.
// heartbeat may be nil to disable heartbeat emission.
func NewCoordinatorPacketReceiver(transport FrameReceiver, coordinator *Coordinator, maxPayloadLen int, serialTimeout time.Duration, heartbeat HeartbeatSink) *CoordinatorPacketReceiver {
	return &CoordinatorPacketReceiver{
		transport:     transport,
		coordinator:   coordinator,
		maxPayloadLen: maxPayloadLen,
		serialTimeout: serialTimeout,
		heartbeat:     heartbeat,
	}
}

// RunOnce executes a single iteration of the receive loop.
func (r *CoordinatorPacketReceiver) RunOnce() error {
	if r.heartbeat != nil {
		defer r.heartbeat.Tick()
	}

	frame, err := r.transport.Receive(r.serialTimeout)
	if err != nil {
		return core.ErrReceiveFailed
	}

	reader := NewPacketReader(frame)
	if err := reader.ReadPacket(); err != nil {
		return core.ErrReadFailed
	}

	resp := ResponseData{
		Length:   reader.GetLength(),
		WorkerID: reader.GetWorkerID(),
		Counter:  reader.GetCounter(),
		Type:     reader.GetType(),
	}
	payload := reader.GetPayloadData()
	n := len(payload)
	if n > r.maxPayloadLen {
		n = r.maxPayloadLen
	}
	resp.Payload = make([]byte, n)
	copy(resp.Payload, payload[:n])
	resp.PayloadLength = n

	if err := r.coordinator.SendResponseQueue(resp); err != nil {
		return core.ErrQueueFull
	}
	return nil
}
