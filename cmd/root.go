// Package cmd implements the illustrative CLI front-end (spec.md §6) using
// the cobra framework, in the teacher's style: a rootCmd with persistent
// flags, subcommands registered in init().
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"otuscore.dev/sip/internal/config"
	"otuscore.dev/sip/internal/log"
)

var (
	configFile string
	profileFile string

	globalConfig *config.GlobalConfig
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sip-agent",
	Short: "sip-agent drives a coordinator, worker, or software bus over a SIP link",
	Long: `sip-agent is the reference process wiring the SIP link-layer library
together: a coordinator sends requests and correlates responses from one
or more workers over a framed serial link, a worker answers them, and a
bus fans out decoded traffic to in-process subscribers.`,
	Version:           "0.1.0",
	PersistentPreRunE: loadGlobalConfig,
}

// Execute adds all child commands to rootCmd and runs it. Called once by
// main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/sip-agent/config.yml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&profileFile, "profile", "p", "",
		"link profile file (JSON or YAML); sets framing and max payload length for coordinator/worker, pool sizing and extra subscriptions for bus")

	rootCmd.AddCommand(coordinatorCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(busCmd)
}

func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	globalConfig = cfg

	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	return nil
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
