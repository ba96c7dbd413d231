package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper to write a tmp YAML file and return its path.
func writeTmpConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	return p
}

// ── Load & validate round-trip ──

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "coordinator"
    hostname: "test-host"
  link:
    device: "/dev/ttyUSB0"
    baud_rate: 57600
    parity: "none"
    framing: "cobs"
    max_payload_length: 32
  coordinator:
    worker_ids: [1, 2, 3]
  log:
    level: "debug"
    format: "json"
  metrics:
    enabled: true
    listen: "0.0.0.0:9090"
    path: "/metrics"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Node.Role != "coordinator" {
		t.Errorf("Node.Role = %q, want coordinator", cfg.Node.Role)
	}
	if cfg.Node.Hostname != "test-host" {
		t.Errorf("Node.Hostname = %q, want test-host", cfg.Node.Hostname)
	}
	if cfg.Link.Device != "/dev/ttyUSB0" {
		t.Errorf("Link.Device = %q", cfg.Link.Device)
	}
	if cfg.Link.Framing != "cobs" {
		t.Errorf("Link.Framing = %q, want cobs", cfg.Link.Framing)
	}
	if len(cfg.Coordinator.WorkerIDs) != 3 {
		t.Errorf("Coordinator.WorkerIDs = %v", cfg.Coordinator.WorkerIDs)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

// ── Log validation ──

func TestLoadInvalidLogLevel(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "worker"
  log:
    level: "invalid"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("error = %v, want 'invalid log level'", err)
	}
}

func TestLoadInvalidLogFormat(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "worker"
  log:
    level: "info"
    format: "invalid"
`))
	if err == nil {
		t.Fatal("expected error for invalid log format")
	}
}

// ── Node hostname auto-detect ──

func TestAutoDetectHostname(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "worker"
  log:
    level: "info"
    format: "json"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Node.Hostname == "" {
		t.Error("expected auto-detected hostname, got empty")
	}
	expected, _ := os.Hostname()
	if cfg.Node.Hostname != expected {
		t.Errorf("Node.Hostname = %q, want %q", cfg.Node.Hostname, expected)
	}
}

// ── Node role validation ──

func TestLoadMissingRole(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
sip-agent:
  log:
    level: "info"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error: node.role is required")
	}
	if !strings.Contains(err.Error(), "node.role") {
		t.Errorf("error = %v, want mention of node.role", err)
	}
}

func TestLoadInvalidRole(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "gateway"
  log:
    level: "info"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error: invalid node.role")
	}
}

// ── Coordinator validation ──

func TestCoordinatorRequiresWorkerIDs(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "coordinator"
  log:
    level: "info"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error: coordinator.worker_ids is required")
	}
	if !strings.Contains(err.Error(), "worker_ids") {
		t.Errorf("error = %v, want mention of worker_ids", err)
	}
}

// ── Framing/parity validation ──

func TestInvalidFraming(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "worker"
  link:
    framing: "ppp"
  log:
    level: "info"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error: invalid link.framing")
	}
}

func TestInvalidParity(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "worker"
  link:
    parity: "mark"
  log:
    level: "info"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error: invalid link.parity")
	}
}

// ── Defaults ──

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "worker"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Link.BaudRate != 115200 {
		t.Errorf("Link.BaudRate = %d, want 115200", cfg.Link.BaudRate)
	}
	if cfg.Link.Framing != "hdlc" {
		t.Errorf("Link.Framing = %q, want hdlc", cfg.Link.Framing)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Metrics.Listen != ":9091" {
		t.Errorf("Metrics.Listen = %q, want :9091", cfg.Metrics.Listen)
	}
	if cfg.Bus.BufferCount != 32 {
		t.Errorf("Bus.BufferCount = %d, want 32", cfg.Bus.BufferCount)
	}
	if cfg.Heartbeat.Interval != "1s" {
		t.Errorf("Heartbeat.Interval = %q, want 1s", cfg.Heartbeat.Interval)
	}
}

// ── Env Override ──

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SIP_AGENT_LOG_LEVEL", "debug")

	cfg, err := Load(writeTmpConfig(t, `
sip-agent:
  node:
    role: "worker"
  log:
    level: "info"
    format: "json"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug (from env)", cfg.Log.Level)
	}
}
