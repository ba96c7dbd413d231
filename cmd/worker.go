package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"otuscore.dev/sip/internal/log"
	"otuscore.dev/sip/internal/metrics"
	"otuscore.dev/sip/internal/sip"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run as a worker: answer requests addressed to --worker-id",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().Int("worker-id", 0, "worker id to answer requests for (overrides config worker.worker_id)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	logger := log.GetLogger()

	if _, err := loadLinkProfileIfSet(&cfg.Link); err != nil {
		return err
	}

	workerID := cfg.Worker.WorkerID
	if v, _ := cmd.Flags().GetInt("worker-id"); v != 0 {
		workerID = v
	}

	tx, rx, err := openLink(cfg.Link)
	if err != nil {
		return err
	}

	worker := sip.NewWorker(uint8(workerID), tx, cfg.Link.MaxPayloadLength)
	readTimeout := parseDurationOr(cfg.Link.SerialReadTimeout, 10*time.Millisecond)

	logger.WithField("worker_id", workerID).Info("worker starting")

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(cmd.Context()); err != nil {
			return err
		}
		defer server.Stop(cmd.Context())
	}

	for {
		frame, err := rx.Receive(readTimeout)
		if err != nil {
			logger.WithError(err).Warn("worker receive error")
			continue
		}
		if frame == nil {
			continue
		}

		reader := sip.NewPacketReader(frame)
		if err := reader.ReadPacket(); err != nil {
			metrics.WorkerDecodeErrorsTotal.Inc()
			continue
		}
		if reader.GetWorkerID() != uint8(workerID) {
			continue
		}

		metrics.WorkerRequestsTotal.Inc()
		if err := worker.SendResponse(reader.GetCounter(), reader.GetType()); err != nil {
			logger.WithError(err).Error("worker failed to send response")
		}
	}
}
