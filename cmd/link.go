package cmd

import (
	"fmt"
	"os"
	"time"

	"otuscore.dev/sip/internal/config"
	"otuscore.dev/sip/internal/framing"
	"otuscore.dev/sip/internal/sip"
	"otuscore.dev/sip/internal/transport"
	"otuscore.dev/sip/internal/transport/serial"
)

// parseDurationOr parses s as a time.Duration, falling back to def on an
// empty string or parse error.
func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func parseParity(s string) (serial.Parity, error) {
	switch s {
	case "", "none":
		return serial.ParityNone, nil
	case "odd":
		return serial.ParityOdd, nil
	case "even":
		return serial.ParityEven, nil
	default:
		return 0, fmt.Errorf("unknown parity: %s", s)
	}
}

// openLink opens the configured serial device and wraps it into a
// transport.Tx/transport.Rx pair framed according to link.Framing.
func openLink(link config.LinkConfig) (*transport.Tx, *transport.Rx, error) {
	parity, err := parseParity(link.Parity)
	if err != nil {
		return nil, nil, err
	}

	port, err := serial.Open(link.Device, link.BaudRate, parity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", link.Device, err)
	}

	encoder, decoder, err := codecFor(link.Framing, link.MaxPayloadLength)
	if err != nil {
		port.Close()
		return nil, nil, err
	}

	readTimeout := parseDurationOr(link.SerialReadTimeout, 10*time.Millisecond)
	tx := transport.NewTx(port, encoder, sip.MaxPacketLength(link.MaxPayloadLength), readTimeout)
	rx := transport.NewRx(port, decoder, transport.RxOptions{SerialReadTimeout: readTimeout})
	return tx, rx, nil
}

func codecFor(name string, maxPayloadLength int) (transport.Encoder, transport.Decoder, error) {
	maxPacket := sip.MaxPacketLength(maxPayloadLength)
	switch name {
	case "", "hdlc":
		return framing.HDLCCodec{}, framing.NewHDLCDecoder(framing.HDLCWorstCaseSize(maxPacket)), nil
	case "cobs":
		return framing.COBSCodec{}, framing.NewCOBSDecoder(framing.COBSWorstCaseSize(maxPacket)), nil
	default:
		return nil, nil, fmt.Errorf("unknown framing: %s", name)
	}
}

// loadLinkProfileIfSet parses --profile when given, applying it over link
// for the fields a profile controls.
func loadLinkProfileIfSet(link *config.LinkConfig) (*config.LinkProfile, error) {
	if profileFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(profileFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read link profile %s: %w", profileFile, err)
	}
	p, err := config.ParseLinkProfileAuto(data, profileFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse link profile %s: %w", profileFile, err)
	}
	link.Framing = p.Framing
	link.MaxPayloadLength = p.MaxPayloadLength
	return p, nil
}
