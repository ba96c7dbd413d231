package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"otuscore.dev/sip/internal/log"
	"otuscore.dev/sip/internal/metrics"
	"otuscore.dev/sip/internal/sip"
	"otuscore.dev/sip/internal/timeutil"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run as a coordinator: send requests, correlate worker responses",
	RunE:  runCoordinator,
}

// heartbeatAdapter adapts a timeutil.HeartbeatLimiter to
// sip.HeartbeatSink, covering one receiver-loop iteration's processing
// timeout per tick.
type heartbeatAdapter struct {
	limiter           *timeutil.HeartbeatLimiter
	processingTimeout time.Duration
}

func (h *heartbeatAdapter) Tick() { h.limiter.Send(h.processingTimeout) }

func runCoordinator(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	logger := log.GetLogger()

	if _, err := loadLinkProfileIfSet(&cfg.Link); err != nil {
		return err
	}

	tx, rx, err := openLink(cfg.Link)
	if err != nil {
		return err
	}

	responseTimeout := parseDurationOr(cfg.Coordinator.ResponseTimeout, time.Second)
	coordinator := sip.NewCoordinator(tx, cfg.Link.MaxPayloadLength, cfg.Coordinator.ResponseQueueDepth, responseTimeout)

	var heartbeat sip.HeartbeatSink
	if interval := parseDurationOr(cfg.Heartbeat.Interval, time.Second); interval > 0 {
		tolerance := parseDurationOr(cfg.Heartbeat.Tolerance, 100*time.Millisecond)
		limiter := timeutil.NewHeartbeatLimiter(timeutil.SystemClock{}, interval, tolerance, func(coveredBy time.Duration) {
			metrics.HeartbeatsEmittedTotal.WithLabelValues("coordinator").Inc()
			logger.WithField("covers", coveredBy).Debug("coordinator heartbeat")
		})
		heartbeat = &heartbeatAdapter{limiter: limiter, processingTimeout: parseDurationOr(cfg.Link.SerialReadTimeout, 10*time.Millisecond)}
	}

	receiver := sip.NewCoordinatorPacketReceiver(rx, coordinator, cfg.Link.MaxPayloadLength,
		parseDurationOr(cfg.Link.SerialReadTimeout, 10*time.Millisecond), heartbeat)

	logger.WithField("workers", cfg.Coordinator.WorkerIDs).Info("coordinator starting")

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(cmd.Context()); err != nil {
			return err
		}
		defer server.Stop(cmd.Context())
	}

	for {
		if err := receiver.RunOnce(); err != nil {
			logger.WithError(err).Warn("coordinator receive loop error")
		}
	}
}
