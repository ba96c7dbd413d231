// Package config handles configuration structures.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LinkProfile is a portable description of one SIP link deployment: the
// subscription list a bus should forward on, and the ring/pool sizing a
// coordinator or worker should open its link with. It is exchanged
// between a coordinator and its workers independent of either side's own
// viper-driven process config, so JSON and YAML are both supported.
type LinkProfile struct {
	Name             string                `json:"name" yaml:"name"`
	MaxPayloadLength int                   `json:"max_payload_length" yaml:"max_payload_length"`
	Framing          string                `json:"framing" yaml:"framing"`
	Pool             PoolProfile           `json:"pool" yaml:"pool"`
	Subscriptions    []SubscriptionProfile `json:"subscriptions" yaml:"subscriptions"`
}

// PoolProfile sizes the shared buffer pool a bus or transport opens for
// this link.
type PoolProfile struct {
	BufferCount int `json:"buffer_count" yaml:"buffer_count"`
	BufferSize  int `json:"buffer_size" yaml:"buffer_size"`
}

// SubscriptionProfile is one bus channel's filter configuration, matching
// bus.SubscriptionEntry's (id, mask) shape plus the channel's own queue
// depth.
type SubscriptionProfile struct {
	Name       string `json:"name" yaml:"name" mapstructure:"name"`
	ID         uint32 `json:"id" yaml:"id" mapstructure:"id"`
	Mask       uint32 `json:"mask" yaml:"mask" mapstructure:"mask"`
	QueueDepth int    `json:"queue_depth" yaml:"queue_depth" mapstructure:"queue_depth"`
}

// Validate validates a link profile, filling in defaults for optional
// sizing fields left at zero.
func (p *LinkProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("link profile name is required")
	}
	if p.MaxPayloadLength <= 0 {
		return fmt.Errorf("max_payload_length must be positive")
	}
	if p.Framing != "hdlc" && p.Framing != "cobs" {
		return fmt.Errorf("framing must be hdlc or cobs, got %q", p.Framing)
	}
	if p.Pool.BufferCount <= 0 {
		p.Pool.BufferCount = 16
	}
	if p.Pool.BufferSize <= 0 {
		p.Pool.BufferSize = p.MaxPayloadLength
	}
	for i, sub := range p.Subscriptions {
		if sub.Name == "" {
			return fmt.Errorf("subscriptions[%d]: name is required", i)
		}
		if sub.QueueDepth <= 0 {
			p.Subscriptions[i].QueueDepth = 16
		}
	}
	return nil
}

// ParseLinkProfile parses a link profile from JSON.
func ParseLinkProfile(data []byte) (*LinkProfile, error) {
	var p LinkProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse link profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseLinkProfileAuto detects format (JSON/YAML) based on file extension
// and parses the link profile accordingly.
func ParseLinkProfileAuto(data []byte, filename string) (*LinkProfile, error) {
	var p LinkProfile

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse YAML link profile: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse JSON link profile: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			if err2 := yaml.Unmarshal(data, &p); err2 != nil {
				return nil, fmt.Errorf("failed to parse link profile (tried JSON and YAML): JSON: %v; YAML: %v", err, err2)
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Export serializes the profile to YAML, the on-disk format used to hand
// a profile from a coordinator deployment to its workers.
func (p *LinkProfile) Export() ([]byte, error) {
	return yaml.Marshal(p)
}

// ParseSubscriptionSpec parses one ad-hoc CLI subscription spec of the
// form "name=telemetry,id=256,mask=3840,queue_depth=16" into a generic
// map and decodes it into a SubscriptionProfile via mapstructure, the
// same loosely-typed-map-to-struct path viper uses for file-based
// config. Used by the bus subcommand's --subscribe flag to build
// subscriptions without requiring a link profile file.
func ParseSubscriptionSpec(spec string) (SubscriptionProfile, error) {
	raw := map[string]interface{}{}
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return SubscriptionProfile{}, fmt.Errorf("invalid subscription field %q, want key=value", field)
		}
		key, value := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "id", "mask", "queue_depth":
			n, err := strconv.ParseUint(value, 0, 32)
			if err != nil {
				return SubscriptionProfile{}, fmt.Errorf("invalid %s %q: %w", key, value, err)
			}
			raw[key] = n
		default:
			raw[key] = value
		}
	}

	var sub SubscriptionProfile
	if err := mapstructure.Decode(raw, &sub); err != nil {
		return SubscriptionProfile{}, fmt.Errorf("failed to decode subscription spec: %w", err)
	}
	if sub.Name == "" {
		return SubscriptionProfile{}, fmt.Errorf("subscription spec %q missing name", spec)
	}
	if sub.QueueDepth <= 0 {
		sub.QueueDepth = 16
	}
	return sub, nil
}
