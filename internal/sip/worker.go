package sip

import "otuscore.dev/sip/internal/core"

// Worker owns a workerId and transmits responses addressed by it.
// Request handling (parsing, dispatch on type) is the application's
// responsibility; Worker provides the transmit side only, matching
// spec.md §4.11.
type Worker struct {
	workerID  uint8
	transport PacketTransport
	scratch   []byte
}

// NewWorker creates a Worker identified by workerID, transmitting over
// transport, with a scratch buffer sized for maxPayloadLen.
func NewWorker(workerID uint8, transport PacketTransport, maxPayloadLen int) *Worker {
	return &Worker{
		workerID:  workerID,
		transport: transport,
		scratch:   make([]byte, MaxPacketLength(maxPayloadLen)),
	}
}

// SendResponse builds and transmits a response packet with no payload.
func (w *Worker) SendResponse(counter, responseType uint8) error {
	return w.sendResponse(counter, responseType, nil)
}

// SendResponseWithPayload builds and transmits a response packet
// carrying payload.
func (w *Worker) SendResponseWithPayload(counter, responseType uint8, payload []byte) error {
	return w.sendResponse(counter, responseType, payload)
}

func (w *Worker) sendResponse(counter, responseType uint8, payload []byte) error {
	writer := NewPacketWriter(w.scratch)
	writer.SetWorkerID(w.workerID)
	writer.SetCounter(counter)
	writer.SetType(responseType)
	writer.SetPayloadData(payload)
	if err := writer.Update(); err != nil {
		return core.ErrLengthTooSmall
	}
	slice, err := writer.GetSliceIfFinalized()
	if err != nil {
		return err
	}
	if _, err := w.transport.Send(slice); err != nil {
		return core.ErrTransmitFailed
	}
	return nil
}
