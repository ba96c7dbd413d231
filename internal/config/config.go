// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// GlobalConfig represents the top-level global static configuration.
// Maps to the `sip-agent:` root key in YAML.
type GlobalConfig struct {
	Node            NodeConfig            `mapstructure:"node"`
	Link            LinkConfig            `mapstructure:"link"`
	Coordinator     CoordinatorConfig     `mapstructure:"coordinator"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	Bus             BusConfig             `mapstructure:"bus"`
	Heartbeat       HeartbeatConfig       `mapstructure:"heartbeat"`
	Metrics         MetricsConfig         `mapstructure:"metrics"`
	Log             LogConfig             `mapstructure:"log"`
	DataDir         string                `mapstructure:"data_dir"`
	ProfileDir      string                `mapstructure:"profile_dir"`
}

// ─── Node Identity ───

// NodeConfig contains node identification settings.
type NodeConfig struct {
	Hostname string `mapstructure:"hostname"` // Empty = os.Hostname()
	Role     string `mapstructure:"role"`     // coordinator | worker | bus
}

// ─── Serial Link ───

// LinkConfig describes the physical/framing layer shared by every
// component that opens a SerialRx/SerialTx.
type LinkConfig struct {
	Device            string `mapstructure:"device"`             // e.g. /dev/ttyUSB0
	BaudRate          int    `mapstructure:"baud_rate"`          // e.g. 115200
	Parity            string `mapstructure:"parity"`             // none | odd | even
	Framing           string `mapstructure:"framing"`            // hdlc | cobs
	MaxPayloadLength  int    `mapstructure:"max_payload_length"` // SIP payload cap
	SerialReadTimeout string `mapstructure:"serial_read_timeout"`
}

// ─── Coordinator ───

// CoordinatorConfig configures a Coordinator process.
type CoordinatorConfig struct {
	WorkerIDs          []int  `mapstructure:"worker_ids"`
	ResponseQueueDepth int    `mapstructure:"response_queue_depth"`
	ResponseTimeout    string `mapstructure:"response_timeout"`
}

// ─── Worker ───

// WorkerConfig configures a Worker process.
type WorkerConfig struct {
	WorkerID int `mapstructure:"worker_id"`
}

// ─── Software Bus ───

// BusConfig configures a FilteredSoftwareBus process.
type BusConfig struct {
	IngressQueueDepth int `mapstructure:"ingress_queue_depth"`
	ChannelQueueDepth int `mapstructure:"channel_queue_depth"`
	BufferCount       int `mapstructure:"buffer_count"`
	BufferSize        int `mapstructure:"buffer_size"`
}

// ─── Heartbeat ───

// HeartbeatConfig configures the CoordinatorPacketReceiver's rate-limited
// heartbeat emission.
type HeartbeatConfig struct {
	Interval  string `mapstructure:"interval"`
	Tolerance string `mapstructure:"tolerance"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure
// `sip-agent: ...`.
type configRoot struct {
	SIPAgent GlobalConfig `mapstructure:"sip-agent"`
}

// Load loads configuration from file. The YAML file uses `sip-agent:` as
// root key; env vars use SIP_AGENT_ prefix (e.g. SIP_AGENT_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// No explicit env prefix — the `sip-agent.` key prefix naturally maps
	// to `SIP_AGENT_` in env vars via the key replacer (e.g. key
	// "sip-agent.log.level" → env "SIP_AGENT_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.SIPAgent

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration. All keys use
// "sip-agent." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("sip-agent.link.baud_rate", 115200)
	v.SetDefault("sip-agent.link.parity", "none")
	v.SetDefault("sip-agent.link.framing", "hdlc")
	v.SetDefault("sip-agent.link.max_payload_length", 64)
	v.SetDefault("sip-agent.link.serial_read_timeout", "10ms")

	v.SetDefault("sip-agent.coordinator.response_queue_depth", 4)
	v.SetDefault("sip-agent.coordinator.response_timeout", "1s")

	v.SetDefault("sip-agent.bus.ingress_queue_depth", 64)
	v.SetDefault("sip-agent.bus.channel_queue_depth", 16)
	v.SetDefault("sip-agent.bus.buffer_count", 32)
	v.SetDefault("sip-agent.bus.buffer_size", 128)

	v.SetDefault("sip-agent.heartbeat.interval", "1s")
	v.SetDefault("sip-agent.heartbeat.tolerance", "100ms")

	v.SetDefault("sip-agent.log.level", "info")
	v.SetDefault("sip-agent.log.format", "json")
	v.SetDefault("sip-agent.log.outputs.file.enabled", false)
	v.SetDefault("sip-agent.log.outputs.file.path", "/var/log/sip-agent/sip-agent.log")
	v.SetDefault("sip-agent.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("sip-agent.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("sip-agent.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("sip-agent.log.outputs.file.rotation.compress", true)

	v.SetDefault("sip-agent.metrics.enabled", true)
	v.SetDefault("sip-agent.metrics.listen", ":9091")
	v.SetDefault("sip-agent.metrics.path", "/metrics")

	v.SetDefault("sip-agent.data_dir", "/var/lib/sip-agent")
	v.SetDefault("sip-agent.profile_dir", "/etc/sip-agent/profiles")
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	switch cfg.Node.Role {
	case "coordinator", "worker", "bus":
	case "":
		return fmt.Errorf("node.role is required (coordinator/worker/bus)")
	default:
		return fmt.Errorf("invalid node.role: %s (must be coordinator/worker/bus)", cfg.Node.Role)
	}

	switch cfg.Link.Framing {
	case "hdlc", "cobs":
	default:
		return fmt.Errorf("invalid link.framing: %s (must be hdlc/cobs)", cfg.Link.Framing)
	}

	switch cfg.Link.Parity {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("invalid link.parity: %s (must be none/odd/even)", cfg.Link.Parity)
	}

	if cfg.Node.Role == "coordinator" && len(cfg.Coordinator.WorkerIDs) == 0 {
		return fmt.Errorf("coordinator.worker_ids is required when node.role=coordinator")
	}

	return nil
}
