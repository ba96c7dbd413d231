package framing

// HDLCCodec adapts EncodeHDLC/HDLCWorstCaseSize to transport.Encoder.
type HDLCCodec struct{}

func (HDLCCodec) Encode(payload []byte, out []byte) ([]byte, error) {
	return EncodeHDLC(payload, out)
}

func (HDLCCodec) WorstCaseSize(payloadLen int) int { return HDLCWorstCaseSize(payloadLen) }

// COBSCodec adapts EncodeCOBS/COBSWorstCaseSize to transport.Encoder.
type COBSCodec struct{}

func (COBSCodec) Encode(payload []byte, out []byte) ([]byte, error) {
	return EncodeCOBS(payload, out)
}

func (COBSCodec) WorstCaseSize(payloadLen int) int { return COBSWorstCaseSize(payloadLen) }
