package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPacket = errors.New("malformed GAIA packet")
	ErrShortPayload    = errors.New("payload too short")
)

// Packet is a decoded GAIA frame
type Packet struct {
	Command uint16
	Ack     bool
	Payload []byte
}

// Status returns the acknowledgement status (first payload byte, success when empty)
func (p *Packet) Status() Status {
	if len(p.Payload) == 0 {
		return StatusSuccess
	}
	return Status(p.Payload[0])
}

// Encode builds a frame: SOP SOP CMD_LO CMD_HI|ACK payload...
// Only the low 15 bits of command are used; bit 15 is reserved for the ACK flag.
func Encode(command uint16, payload []byte, ack bool) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = SOP
	frame[1] = SOP
	frame[positionCommandLow] = byte(command & 0xFF)
	hi := byte((command >> 8) & commandHiMask)
	if ack {
		hi |= AckFlag
	}
	frame[positionCommandHigh] = hi
	copy(frame[HeaderSize:], payload)
	return frame
}

// Decode parses a frame. The returned payload does not alias data.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(data))
	}
	if data[0] != SOP || data[1] != SOP {
		return nil, fmt.Errorf("%w: bad start of packet 0x%02x 0x%02x", ErrMalformedPacket, data[0], data[1])
	}

	hi := data[positionCommandHigh]
	payload := make([]byte, len(data)-HeaderSize)
	copy(payload, data[HeaderSize:])

	return &Packet{
		Command: uint16(data[positionCommandLow]) | uint16(hi&commandHiMask)<<8,
		Ack:     hi&AckFlag != 0,
		Payload: payload,
	}, nil
}
