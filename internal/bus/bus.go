// Package bus implements an in-process publish/subscribe message bus
// with filtered id-based dispatch (C14 of spec.md §4.13): a
// FilteredSoftwareBus accepts messages through a single ingress queue and
// a worker loop fans each one out to every subscribed BusChannel whose
// filter matches.
package bus

import (
	"time"

	"otuscore.dev/sip/internal/core"
	"otuscore.dev/sip/internal/pool"
	"otuscore.dev/sip/internal/queue"
)

// ID is the bus's addressing type. SIP workerIds are a single byte, and
// the bus is wide enough to carry richer topic ids built on top of them,
// so it is kept as a plain integer rather than reusing uint8 directly.
type ID uint32

// Message is one bus entry: an id plus the payload that carries it, held
// as a reference to a pool-owned buffer. When the bus forwards a message,
// each matching channel gets its own pool copy of the payload (see
// SingleMessage).
type Message struct {
	ID      ID
	Payload *pool.ConstSharedBufferPointer
}

// Filter decides whether a message with the given id should be
// delivered to a channel. Content-aware filters additionally implement
// ContentFilter's MatchesPayload to inspect the payload; filters that
// don't care about content implement Matches only.
type Filter interface {
	Matches(id ID) bool
}

// ContentFilter is implemented by filters that also want to inspect the
// payload bytes before accepting a message.
type ContentFilter interface {
	Filter
	MatchesPayload(id ID, payload []byte) bool
}

// FilterNone accepts every message; it is the default channel and
// ingress filter when no selection is required.
type FilterNone struct{}

// Matches always returns true.
func (FilterNone) Matches(ID) bool { return true }

// SubscriptionEntry is one (id, mask) pair of a SubscriptionFilter.
type SubscriptionEntry struct {
	ID   ID
	Mask ID
}

// SubscriptionFilter matches when (id & mask) == (entryId & mask) for any
// configured entry.
type SubscriptionFilter struct {
	Entries []SubscriptionEntry
}

// NewSubscriptionFilter builds a SubscriptionFilter from entries.
func NewSubscriptionFilter(entries ...SubscriptionEntry) *SubscriptionFilter {
	return &SubscriptionFilter{Entries: entries}
}

// Matches reports whether id matches any configured entry under its mask.
func (f *SubscriptionFilter) Matches(id ID) bool {
	for _, e := range f.Entries {
		if id&e.Mask == e.ID&e.Mask {
			return true
		}
	}
	return false
}

// RangeFilter accepts ids within [Min, Max] inclusive.
type RangeFilter struct {
	Min, Max ID
}

// NewRangeFilter builds a RangeFilter over [min, max].
func NewRangeFilter(min, max ID) *RangeFilter {
	return &RangeFilter{Min: min, Max: max}
}

// Matches reports whether id falls within the configured range.
func (f *RangeFilter) Matches(id ID) bool {
	return id >= f.Min && id <= f.Max
}

// BusChannel is one subscriber: messages accepted by its filter are
// queued for the subscriber to drain at its own pace.
type BusChannel struct {
	filter Filter
	queue  *queue.ReferenceQueue[Message]

	incoming  uint64
	appended  uint64
	failed    uint64
	retrieved uint64
}

// NewBusChannel creates a channel selecting messages with filter and
// buffering up to queueDepth of them.
func NewBusChannel(filter Filter, queueDepth int) *BusChannel {
	if filter == nil {
		filter = FilterNone{}
	}
	return &BusChannel{filter: filter, queue: queue.New[Message](queueDepth)}
}

// Matches reports whether msg would be accepted by this channel's filter,
// consulting the payload too when the filter is content-aware.
func (c *BusChannel) Matches(msg Message) bool {
	if cf, ok := c.filter.(ContentFilter); ok {
		return cf.MatchesPayload(msg.ID, msg.Payload.Bytes())
	}
	return c.filter.Matches(msg.ID)
}

// SendMessage applies the channel's filter and, on a match, enqueues msg
// without blocking. It reports success, declined (filter rejected it),
// or sendFailed (queue had no room).
func (c *BusChannel) SendMessage(msg Message) error {
	c.incoming++
	if !c.Matches(msg) {
		return core.ErrInvalidMessage
	}
	if err := c.queue.Send(msg, 0); err != nil {
		c.failed++
		return core.ErrSendFailed
	}
	c.appended++
	return nil
}

// deliver enqueues msg without re-applying the channel's filter; the
// caller (the bus's fan-out loop) has already matched it. It is the
// internal counterpart to the public SendMessage, which both filters and
// enqueues.
func (c *BusChannel) deliver(msg Message) error {
	c.incoming++
	if err := c.queue.Send(msg, 0); err != nil {
		c.failed++
		return core.ErrSendFailed
	}
	c.appended++
	return nil
}

// ReceiveMessage waits up to timeout for a queued message.
func (c *BusChannel) ReceiveMessage(timeout time.Duration) (Message, error) {
	msg, err := c.queue.Receive(timeout)
	if err != nil {
		return Message{}, core.ErrNoMessageAvailable
	}
	c.retrieved++
	return msg, nil
}

// Stats reports this channel's lifetime incoming/appended/failed/retrieved
// counters.
func (c *BusChannel) Stats() (incoming, appended, failed, retrieved uint64) {
	return c.incoming, c.appended, c.failed, c.retrieved
}

// FilteredSoftwareBus owns an ingress filter, a single ingress queue, a
// pool for the raw-slice send overload, and the set of subscribed
// channels it fans messages out to.
type FilteredSoftwareBus struct {
	ingressFilter Filter
	ingress       *queue.ReferenceQueue[Message]
	bufferPool    *pool.SharedBufferPool
	channels      []*BusChannel

	handled    uint64
	forwarded  uint64
	declined   uint64
	failedCopy uint64
	failedSend uint64
}

// NewFilteredSoftwareBus creates a bus with the given ingress filter
// (FilterNone accepts everything), ingress queue depth, and a buffer pool
// of bufferCount buffers each bufferSize bytes for the raw-slice send
// overload.
func NewFilteredSoftwareBus(ingressFilter Filter, queueDepth, bufferCount, bufferSize int) *FilteredSoftwareBus {
	if ingressFilter == nil {
		ingressFilter = FilterNone{}
	}
	return &FilteredSoftwareBus{
		ingressFilter: ingressFilter,
		ingress:       queue.New[Message](queueDepth),
		bufferPool:    pool.NewSharedBufferPool(bufferCount, bufferSize),
	}
}

// Subscribe registers a channel with the bus and returns it.
func (b *FilteredSoftwareBus) Subscribe(filter Filter, queueDepth int) *BusChannel {
	ch := NewBusChannel(filter, queueDepth)
	b.channels = append(b.channels, ch)
	return ch
}

// SendMessage is the first of three required-identical send overloads: it
// applies the ingress filter to msg and, on a match, enqueues it into the
// bus's ingress queue without blocking.
func (b *FilteredSoftwareBus) SendMessage(msg Message) error {
	if !b.ingressFilter.Matches(msg.ID) {
		return core.ErrInvalidMessage
	}
	if err := b.ingress.Send(msg, 0); err != nil {
		return core.ErrSendFailed
	}
	return nil
}

// SendConst is the second send overload: it wraps (id, payload) into a
// Message and sends it exactly as SendMessage would.
func (b *FilteredSoftwareBus) SendConst(id ID, payload *pool.ConstSharedBufferPointer) error {
	return b.SendMessage(Message{ID: id, Payload: payload})
}

// SendRaw is the third send overload: it copies raw into a pool-allocated
// buffer and sends it exactly as SendMessage would. It reports
// noBufferAvailable if the pool is exhausted.
func (b *FilteredSoftwareBus) SendRaw(id ID, raw []byte) error {
	buf, err := b.bufferPool.Allocate()
	if err != nil {
		return core.ErrNoBufferAvailable
	}
	if len(raw) > buf.GetLength() {
		buf.Release()
		return core.ErrBufferTooSmall
	}
	n := copy(buf.Bytes(), raw)
	return b.SendMessage(Message{ID: id, Payload: windowedConstView(buf, n)})
}

// windowedConstView returns a const view over buf's first n bytes and
// consumes the caller's reference to buf, leaving exactly one reference
// live on the returned view. SubSlice and ConstView each take their own
// reference on the shared slot, so the intermediate handles must be
// released in turn rather than left to leak.
func windowedConstView(buf *pool.SharedBufferPointer, n int) *pool.ConstSharedBufferPointer {
	if n == buf.GetLength() {
		view := buf.ConstView()
		buf.Release()
		return view
	}
	sub := buf.SubSlice(0, n)
	buf.Release()
	view := sub.ConstView()
	sub.Release()
	return view
}

// SingleMessage is the bus's worker-loop step: it dequeues one ingress
// message (waiting up to timeout) and forwards it to every channel whose
// filter matches. Each matching channel gets its own pool-allocated copy
// of the payload, so channels can release it on their own schedule
// without coupling their lifetimes together; a copy that cannot be made
// (pool exhausted, or the payload is larger than the bus's buffer size)
// counts as failedCopy rather than being attempted. It updates the
// handled/forwarded/declined/failedCopy/failedSend counters and returns
// nil once a message has been processed (even if every channel declined
// or failed it), or ErrNoMessageAvailable if the ingress queue produced
// nothing within timeout.
func (b *FilteredSoftwareBus) SingleMessage(timeout time.Duration) error {
	msg, err := b.ingress.Receive(timeout)
	if err != nil {
		return core.ErrNoMessageAvailable
	}
	b.handled++
	defer msg.Payload.Release()

	for _, ch := range b.channels {
		if !ch.Matches(msg) {
			b.declined++
			continue
		}

		copied, err := b.copyPayload(msg.Payload)
		if err != nil {
			b.failedCopy++
			continue
		}

		if err := ch.deliver(Message{ID: msg.ID, Payload: copied}); err != nil {
			copied.Release()
			b.failedSend++
			continue
		}
		b.forwarded++
	}
	return nil
}

// copyPayload duplicates src into a freshly pool-allocated buffer, giving
// the copy an independent lifetime from src's own.
func (b *FilteredSoftwareBus) copyPayload(src *pool.ConstSharedBufferPointer) (*pool.ConstSharedBufferPointer, error) {
	if src.GetLength() > b.bufferPool.BufferSize() {
		return nil, core.ErrBufferTooSmall
	}
	buf, err := b.bufferPool.Allocate()
	if err != nil {
		return nil, core.ErrNoBufferAvailable
	}
	n := copy(buf.Bytes(), src.Bytes())
	return windowedConstView(buf, n), nil
}

// Stats reports the bus's lifetime handled/forwarded/declined/failedCopy/
// failedSend counters.
func (b *FilteredSoftwareBus) Stats() (handled, forwarded, declined, failedCopy, failedSend uint64) {
	return b.handled, b.forwarded, b.declined, b.failedCopy, b.failedSend
}
