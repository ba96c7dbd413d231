package framing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otuscore.dev/sip/internal/core"
)

func cobsFeedAll(d *COBSDecoder, frame []byte) ([]byte, error) {
	var last []byte
	var lastErr error
	for _, b := range frame {
		last, lastErr = d.Decode(b)
	}
	return last, lastErr
}

func TestEncodeCOBSNoZeroes(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	out := make([]byte, COBSWorstCaseSize(len(payload)))
	frame, err := EncodeCOBS(payload, out)
	require.NoError(t, err)
	want := []byte{0x04, 0x01, 0x02, 0x03, 0x00}
	assert.Equal(t, want, frame)
}

func TestEncodeCOBSWithZeroes(t *testing.T) {
	payload := []byte{0x11, 0x00, 0x00, 0x22}
	out := make([]byte, COBSWorstCaseSize(len(payload)))
	frame, err := EncodeCOBS(payload, out)
	require.NoError(t, err)
	want := []byte{0x02, 0x11, 0x01, 0x02, 0x22, 0x00}
	assert.Equal(t, want, frame)
}

func TestCOBSRoundTripVarious(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0x01, 0x02, 0x03},
		{0x00, 0x00, 0x00},
		bytes.Repeat([]byte{0x2A}, 300),
		bytes.Repeat([]byte{0x00}, 10),
	}
	for _, payload := range cases {
		out := make([]byte, COBSWorstCaseSize(len(payload)))
		frame, err := EncodeCOBS(payload, out)
		require.NoError(t, err)

		d := NewCOBSDecoder(len(frame) + 8)
		got, err := cobsFeedAll(d, frame)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestEncodeCOBSBufferTooSmall(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	out := make([]byte, COBSWorstCaseSize(len(payload))-1)
	_, err := EncodeCOBS(payload, out)
	assert.ErrorIs(t, err, core.ErrFrameBufferError)
}

func TestCOBSDecoderNotCompleteUntilDelimiter(t *testing.T) {
	d := NewCOBSDecoder(16)
	_, err := d.Decode(0x04)
	assert.ErrorIs(t, err, core.ErrFrameNotComplete)
	_, err = d.Decode(0x01)
	assert.ErrorIs(t, err, core.ErrFrameNotComplete)
}

func TestCOBSDecoderMalformedPrefixRecoversAfterReset(t *testing.T) {
	d := NewCOBSDecoder(16)
	// A bogus code byte pointing past the frame, followed by a delimiter.
	_, err := d.Decode(0xFE)
	assert.ErrorIs(t, err, core.ErrFrameNotComplete)
	_, err = d.Decode(0x00)
	assert.ErrorIs(t, err, core.ErrFrameDecodeError)

	payload := []byte{0x05, 0x06}
	out := make([]byte, COBSWorstCaseSize(len(payload)))
	frame, encErr := EncodeCOBS(payload, out)
	require.NoError(t, encErr)
	got, err := cobsFeedAll(d, frame)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCOBSDecoderBufferErrorOnOverflow(t *testing.T) {
	d := NewCOBSDecoder(2)
	_, err := d.Decode(0x05)
	assert.ErrorIs(t, err, core.ErrFrameNotComplete)
	_, err = d.Decode(0x01)
	assert.ErrorIs(t, err, core.ErrFrameNotComplete)
	_, err = d.Decode(0x02)
	assert.ErrorIs(t, err, core.ErrFrameBufferError)
}
