// Package metrics implements Prometheus metrics for the SIP link-layer
// stack, grounded on the teacher's internal/metrics/metrics.go and
// wired via the same promauto/prometheus client used elsewhere in the
// example pack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CoordinatorRequestsTotal counts requests sent by the coordinator.
	CoordinatorRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_coordinator_requests_total",
			Help: "Total number of requests sent by the coordinator",
		},
	)

	// CoordinatorResponseTimeoutsTotal counts requests that never got a
	// correlated response within the configured timeout.
	CoordinatorResponseTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_coordinator_response_timeouts_total",
			Help: "Total number of coordinator requests that timed out waiting for a response",
		},
	)

	// WorkerRequestsTotal counts requests a worker accepted and answered.
	WorkerRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_worker_requests_total",
			Help: "Total number of requests handled by the worker",
		},
	)

	// WorkerDecodeErrorsTotal counts frames a worker failed to parse as a
	// valid SIP packet (bad length or CRC mismatch).
	WorkerDecodeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_worker_decode_errors_total",
			Help: "Total number of frames the worker failed to decode as a SIP packet",
		},
	)

	// HeartbeatsEmittedTotal counts heartbeat ticks actually emitted by a
	// rate-limited HeartbeatLimiter, labeled by role (coordinator/worker).
	HeartbeatsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sip_agent_heartbeats_emitted_total",
			Help: "Total number of heartbeats actually emitted, after rate limiting",
		},
		[]string{"role"},
	)

	// BusHandledTotal mirrors bus.FilteredSoftwareBus.Stats' handled counter.
	BusHandledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_bus_handled_total",
			Help: "Total number of ingress messages the software bus has dequeued",
		},
	)

	// BusForwardedTotal mirrors the forwarded counter.
	BusForwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_bus_forwarded_total",
			Help: "Total number of channel deliveries the software bus has completed",
		},
	)

	// BusDeclinedTotal mirrors the declined counter.
	BusDeclinedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_bus_declined_total",
			Help: "Total number of channel/message pairs declined by a channel's filter",
		},
	)

	// BusFailedCopyTotal mirrors the failedCopy counter.
	BusFailedCopyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_bus_failed_copy_total",
			Help: "Total number of per-channel payload copies that failed (pool exhausted or oversized)",
		},
	)

	// BusFailedSendTotal mirrors the failedSend counter.
	BusFailedSendTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sip_agent_bus_failed_send_total",
			Help: "Total number of channel deliveries dropped because the channel's queue was full",
		},
	)
)
