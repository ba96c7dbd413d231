package sip

import (
	"time"

	"otuscore.dev/sip/internal/core"
	"otuscore.dev/sip/internal/queue"
)

// ResponseData is a parsed response queued by the packet receiver for
// the Coordinator to correlate against its outstanding request.
type ResponseData struct {
	Length        int
	WorkerID      uint8
	Counter       uint8
	Type          uint8
	PayloadLength int
	Payload       []byte // len == PayloadLength, capacity == maxPayloadLength
}

// PacketTransport is the narrow interface the Coordinator and Worker
// need from a frame transport: send one framed SIP packet.
type PacketTransport interface {
	Send(payload []byte) (int, error)
}

// Coordinator sends requests and checks each response against the
// request's workerId and the expected response type. The counter is
// sent with the request; the response's counter is not compared. Only
// one request is expected outstanding at a time; concurrent callers must
// serialize themselves.
type Coordinator struct {
	transport       PacketTransport
	responseQueue   *queue.ReferenceQueue[ResponseData]
	responseTimeout time.Duration
	maxPayloadLen   int
	scratch         []byte
}

// NewCoordinator creates a Coordinator transmitting over transport, with
// a response queue of the given depth (≥ 1) and a fixed response
// timeout applied to every sendRequestGetResponseData call.
func NewCoordinator(transport PacketTransport, maxPayloadLen, queueDepth int, responseTimeout time.Duration) *Coordinator {
	return &Coordinator{
		transport:       transport,
		responseQueue:   queue.New[ResponseData](queueDepth),
		responseTimeout: responseTimeout,
		maxPayloadLen:   maxPayloadLen,
		scratch:         make([]byte, MaxPacketLength(maxPayloadLen)),
	}
}

// SendRequestGetResponseData builds and transmits a request, then waits
// for a correlated response, copying its payload into responseBuffer
// (caller-sized).
func (c *Coordinator) SendRequestGetResponseData(
	workerID, counter, requestType, expectedResponseType uint8,
	requestPayload []byte,
	responseBuffer []byte,
) error {
	if err := c.transmitRequest(workerID, counter, requestType, requestPayload); err != nil {
		return err
	}

	resp, err := c.responseQueue.Receive(c.responseTimeout)
	if err != nil {
		return core.ErrResponseTimeout
	}
	if resp.WorkerID != workerID {
		return core.ErrWorkerIDMismatch
	}
	if resp.Type != expectedResponseType {
		return core.ErrResponseTypeMismatch
	}
	copy(responseBuffer, resp.Payload[:resp.PayloadLength])
	return nil
}

// SendRequest is SendRequestGetResponseData without a response payload:
// it still waits for and validates the correlated response, but does not
// copy anything out.
func (c *Coordinator) SendRequest(workerID, counter, requestType, expectedResponseType uint8, requestPayload []byte) error {
	if err := c.transmitRequest(workerID, counter, requestType, requestPayload); err != nil {
		return err
	}

	resp, err := c.responseQueue.Receive(c.responseTimeout)
	if err != nil {
		return core.ErrResponseTimeout
	}
	if resp.WorkerID != workerID {
		return core.ErrWorkerIDMismatch
	}
	if resp.Type != expectedResponseType {
		return core.ErrResponseTypeMismatch
	}
	return nil
}

func (c *Coordinator) transmitRequest(workerID, counter, requestType uint8, payload []byte) error {
	w := NewPacketWriter(c.scratch)
	w.SetWorkerID(workerID)
	w.SetCounter(counter)
	w.SetType(requestType)
	w.SetPayloadData(payload)
	if err := w.Update(); err != nil {
		return core.ErrLengthTooSmall
	}
	slice, err := w.GetSliceIfFinalized()
	if err != nil {
		return err
	}
	if _, err := c.transport.Send(slice); err != nil {
		return core.ErrTransmitFailed
	}
	return nil
}

// SendResponseQueue is the ingestion point called once a valid response
// packet has been parsed (spec.md §4.12). Returns nil when enqueued,
// ErrQueueFull when the queue has no room — it never blocks.
func (c *Coordinator) SendResponseQueue(resp ResponseData) error {
	return c.responseQueue.Send(resp, 0)
}
