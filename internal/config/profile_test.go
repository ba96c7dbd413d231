package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseValidLinkProfile(t *testing.T) {
	profileJSON := `{
		"name": "flight-computer-link",
		"max_payload_length": 32,
		"framing": "hdlc",
		"pool": {
			"buffer_count": 8,
			"buffer_size": 32
		},
		"subscriptions": [
			{"name": "telemetry", "id": 256, "mask": 3840, "queue_depth": 16},
			{"name": "commands", "id": 32, "mask": 240}
		]
	}`

	p, err := ParseLinkProfile([]byte(profileJSON))
	if err != nil {
		t.Fatalf("ParseLinkProfile failed: %v", err)
	}
	if p.Name != "flight-computer-link" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.MaxPayloadLength != 32 {
		t.Errorf("MaxPayloadLength = %d, want 32", p.MaxPayloadLength)
	}
	if len(p.Subscriptions) != 2 {
		t.Fatalf("Subscriptions = %d, want 2", len(p.Subscriptions))
	}
	if p.Subscriptions[0].QueueDepth != 16 {
		t.Errorf("Subscriptions[0].QueueDepth = %d, want 16", p.Subscriptions[0].QueueDepth)
	}
	if p.Subscriptions[1].QueueDepth != 16 {
		t.Errorf("Subscriptions[1].QueueDepth = %d, want default 16", p.Subscriptions[1].QueueDepth)
	}
}

func TestParseLinkProfileMissingName(t *testing.T) {
	_, err := ParseLinkProfile([]byte(`{"max_payload_length": 16, "framing": "cobs"}`))
	if err == nil {
		t.Fatal("expected error for missing name")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error = %v", err)
	}
}

func TestParseLinkProfileInvalidFraming(t *testing.T) {
	_, err := ParseLinkProfile([]byte(`{"name": "x", "max_payload_length": 16, "framing": "ppp"}`))
	if err == nil {
		t.Fatal("expected error for invalid framing")
	}
}

func TestParseLinkProfileZeroMaxPayload(t *testing.T) {
	_, err := ParseLinkProfile([]byte(`{"name": "x", "framing": "hdlc"}`))
	if err == nil {
		t.Fatal("expected error for zero max_payload_length")
	}
}

func TestParseLinkProfileDefaultsPoolBufferSize(t *testing.T) {
	p, err := ParseLinkProfile([]byte(`{"name": "x", "max_payload_length": 48, "framing": "hdlc"}`))
	if err != nil {
		t.Fatalf("ParseLinkProfile failed: %v", err)
	}
	if p.Pool.BufferSize != 48 {
		t.Errorf("Pool.BufferSize = %d, want 48 (defaulted to max_payload_length)", p.Pool.BufferSize)
	}
	if p.Pool.BufferCount != 16 {
		t.Errorf("Pool.BufferCount = %d, want default 16", p.Pool.BufferCount)
	}
}

func TestParseLinkProfileSubscriptionMissingName(t *testing.T) {
	_, err := ParseLinkProfile([]byte(`{
		"name": "x", "max_payload_length": 16, "framing": "hdlc",
		"subscriptions": [{"id": 1, "mask": 1}]
	}`))
	if err == nil {
		t.Fatal("expected error for subscription missing name")
	}
}

func TestParseLinkProfileAutoYAML(t *testing.T) {
	yamlDoc := `
name: backup-link
max_payload_length: 24
framing: cobs
subscriptions:
  - name: heartbeat
    id: 1
    mask: 1
`
	p, err := ParseLinkProfileAuto([]byte(yamlDoc), "profile.yaml")
	if err != nil {
		t.Fatalf("ParseLinkProfileAuto failed: %v", err)
	}
	if p.Name != "backup-link" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Framing != "cobs" {
		t.Errorf("Framing = %q", p.Framing)
	}
}

func TestParseLinkProfileAutoJSON(t *testing.T) {
	jsonDoc := `{"name": "json-link", "max_payload_length": 16, "framing": "hdlc"}`
	p, err := ParseLinkProfileAuto([]byte(jsonDoc), "profile.json")
	if err != nil {
		t.Fatalf("ParseLinkProfileAuto failed: %v", err)
	}
	if p.Name != "json-link" {
		t.Errorf("Name = %q", p.Name)
	}
}

func TestParseLinkProfileAutoUnknownExtensionTriesJSONThenYAML(t *testing.T) {
	jsonDoc := `{"name": "fallback-link", "max_payload_length": 16, "framing": "hdlc"}`
	p, err := ParseLinkProfileAuto([]byte(jsonDoc), "profile.conf")
	if err != nil {
		t.Fatalf("ParseLinkProfileAuto failed: %v", err)
	}
	if p.Name != "fallback-link" {
		t.Errorf("Name = %q", p.Name)
	}
}

func TestLinkProfileExportRoundTrips(t *testing.T) {
	p := &LinkProfile{
		Name:             "export-me",
		MaxPayloadLength: 20,
		Framing:          "hdlc",
		Pool:             PoolProfile{BufferCount: 4, BufferSize: 20},
	}
	out, err := p.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	round, err := ParseLinkProfileAuto(out, "roundtrip.yaml")
	if err != nil {
		t.Fatalf("ParseLinkProfileAuto on exported bytes failed: %v", err)
	}
	if round.Name != p.Name || round.MaxPayloadLength != p.MaxPayloadLength {
		t.Errorf("round-tripped profile = %+v, want %+v", round, p)
	}
}

// sanity check that json struct tags still decode through encoding/json,
// independent of ParseLinkProfile's own validation.
func TestLinkProfileJSONTags(t *testing.T) {
	var p LinkProfile
	if err := json.Unmarshal([]byte(`{"name":"tagcheck","max_payload_length":8,"framing":"hdlc"}`), &p); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if p.Name != "tagcheck" {
		t.Errorf("Name = %q", p.Name)
	}
}

func TestParseSubscriptionSpecValid(t *testing.T) {
	sub, err := ParseSubscriptionSpec("name=telemetry,id=256,mask=3840,queue_depth=8")
	if err != nil {
		t.Fatalf("ParseSubscriptionSpec failed: %v", err)
	}
	if sub.Name != "telemetry" {
		t.Errorf("Name = %q, want telemetry", sub.Name)
	}
	if sub.ID != 256 {
		t.Errorf("ID = %d, want 256", sub.ID)
	}
	if sub.Mask != 3840 {
		t.Errorf("Mask = %d, want 3840", sub.Mask)
	}
	if sub.QueueDepth != 8 {
		t.Errorf("QueueDepth = %d, want 8", sub.QueueDepth)
	}
}

func TestParseSubscriptionSpecDefaultsQueueDepth(t *testing.T) {
	sub, err := ParseSubscriptionSpec("name=commands,id=32,mask=240")
	if err != nil {
		t.Fatalf("ParseSubscriptionSpec failed: %v", err)
	}
	if sub.QueueDepth != 16 {
		t.Errorf("QueueDepth = %d, want default 16", sub.QueueDepth)
	}
}

func TestParseSubscriptionSpecMissingName(t *testing.T) {
	_, err := ParseSubscriptionSpec("id=32,mask=240")
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestParseSubscriptionSpecInvalidField(t *testing.T) {
	_, err := ParseSubscriptionSpec("name=commands,id=notanumber")
	if err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestParseSubscriptionSpecMalformedField(t *testing.T) {
	_, err := ParseSubscriptionSpec("name=commands,garbage")
	if err == nil {
		t.Fatal("expected error for malformed key=value field")
	}
}
