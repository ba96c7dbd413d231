package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"otuscore.dev/sip/internal/bus"
	"otuscore.dev/sip/internal/config"
	"otuscore.dev/sip/internal/log"
	"otuscore.dev/sip/internal/metrics"
)

var subscribeSpecs []string

var busCmd = &cobra.Command{
	Use:   "bus",
	Short: "Run a filtered software bus, forwarding frames to subscribed channels",
	RunE:  runBus,
}

func init() {
	busCmd.Flags().StringArrayVar(&subscribeSpecs, "subscribe", nil,
		`ad-hoc subscription, e.g. --subscribe "name=telemetry,id=256,mask=3840,queue_depth=16" (repeatable); combines with --profile`)
}

func runBus(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	logger := log.GetLogger()

	busCfg := cfg.Bus
	var profile *config.LinkProfile
	if profileFile != "" {
		data, err := os.ReadFile(profileFile)
		if err != nil {
			return err
		}
		profile, err = config.ParseLinkProfileAuto(data, profileFile)
		if err != nil {
			return err
		}
		busCfg.BufferCount = profile.Pool.BufferCount
		busCfg.BufferSize = profile.Pool.BufferSize
	}

	softwareBus := bus.NewFilteredSoftwareBus(bus.FilterNone{}, busCfg.IngressQueueDepth, busCfg.BufferCount, busCfg.BufferSize)

	if profile != nil {
		for _, sub := range profile.Subscriptions {
			softwareBus.Subscribe(bus.NewSubscriptionFilter(bus.SubscriptionEntry{ID: bus.ID(sub.ID), Mask: bus.ID(sub.Mask)}), sub.QueueDepth)
			logger.WithField("subscription", sub.Name).Info("bus channel subscribed")
		}
	}

	for _, spec := range subscribeSpecs {
		sub, err := config.ParseSubscriptionSpec(spec)
		if err != nil {
			return err
		}
		softwareBus.Subscribe(bus.NewSubscriptionFilter(bus.SubscriptionEntry{ID: bus.ID(sub.ID), Mask: bus.ID(sub.Mask)}), sub.QueueDepth)
		logger.WithField("subscription", sub.Name).Info("bus channel subscribed")
	}

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(cmd.Context()); err != nil {
			return err
		}
		defer server.Stop(cmd.Context())
	}

	logger.Info("software bus starting")

	statTick := time.NewTicker(5 * time.Second)
	defer statTick.Stop()

	var prevHandled, prevForwarded, prevDeclined, prevFailedCopy, prevFailedSend uint64

	for {
		select {
		case <-statTick.C:
			handled, forwarded, declined, failedCopy, failedSend := softwareBus.Stats()
			metrics.BusHandledTotal.Add(float64(handled - prevHandled))
			metrics.BusForwardedTotal.Add(float64(forwarded - prevForwarded))
			metrics.BusDeclinedTotal.Add(float64(declined - prevDeclined))
			metrics.BusFailedCopyTotal.Add(float64(failedCopy - prevFailedCopy))
			metrics.BusFailedSendTotal.Add(float64(failedSend - prevFailedSend))
			prevHandled, prevForwarded, prevDeclined, prevFailedCopy, prevFailedSend =
				handled, forwarded, declined, failedCopy, failedSend
		default:
		}

		if err := softwareBus.SingleMessage(100 * time.Millisecond); err != nil {
			continue
		}
	}
}
