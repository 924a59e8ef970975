package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParameterID is the byte addressing one equalizer parameter: band in the
// high nibble, parameter type in the low nibble.
type ParameterID uint8

// NewParameterID packs a band number (0 = general) and a parameter type
func NewParameterID(band uint8, param ParameterType) ParameterID {
	return ParameterID((band&0x0F)<<4 | uint8(param)&0x0F)
}

// MasterGainID addresses the bank-wide master gain
func MasterGainID() ParameterID {
	return NewParameterID(GeneralBand, ParameterMasterGain)
}

// Band returns the band number
func (id ParameterID) Band() uint8 {
	return (uint8(id) & 0xF0) >> 4
}

// Param returns the parameter type
func (id ParameterID) Param() ParameterType {
	return ParameterType(uint8(id) & 0x0F)
}

// IsMasterGain reports whether id addresses the master gain
func (id ParameterID) IsMasterGain() bool {
	return id.Band() == GeneralBand && id.Param() == ParameterMasterGain
}

func (id ParameterID) String() string {
	if id.IsMasterGain() {
		return "master_gain"
	}
	return fmt.Sprintf("band%d/%s", id.Band(), id.Param())
}

// PutValue writes v big-endian into the first two bytes of b
func PutValue(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}

// Value reads a big-endian 16-bit value from the first two bytes of b
func Value(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

// GetEQParameterPayload builds the GET_EQ_PARAMETER payload
func GetEQParameterPayload(id ParameterID) []byte {
	return []byte{EQParameterFirstByte, byte(id)}
}

// SetEQParameterPayload builds the SET_EQ_PARAMETER payload. recalc must be set
// when the customizable preset is active on the device.
func SetEQParameterPayload(id ParameterID, value uint16, recalc bool) []byte {
	payload := make([]byte, SetEQParameterPayloadLength)
	payload[0] = EQParameterFirstByte
	payload[1] = byte(id)
	PutValue(payload[2:4], value)
	if recalc {
		payload[4] = 0x01
	}
	return payload
}

// SetEQControlPayload builds the SET_EQ_CONTROL payload selecting a preset
func SetEQControlPayload(preset uint8) []byte {
	return []byte{preset}
}

// EQParameterAck is the decoded body of a GET_EQ_PARAMETER acknowledgement
type EQParameterAck struct {
	ID    ParameterID
	Value uint16
}

// Signed returns the value as a two's complement 16-bit integer (negative gains)
func (a EQParameterAck) Signed() int {
	return int(int16(a.Value))
}

// ParseGetEQParameterAck decodes [status, 0x01, id, hi, lo]
func ParseGetEQParameterAck(payload []byte) (EQParameterAck, error) {
	if len(payload) < GetEQParameterAckLength {
		return EQParameterAck{}, fmt.Errorf("%w: get_eq_parameter ack has %d bytes, need %d",
			ErrShortPayload, len(payload), GetEQParameterAckLength)
	}
	return EQParameterAck{
		ID:    ParameterID(payload[2]),
		Value: Value(payload[3:5]),
	}, nil
}

// ParseGetEQControlAck decodes [status, preset]
func ParseGetEQControlAck(payload []byte) (uint8, error) {
	if len(payload) < 2 {
		return 0, fmt.Errorf("%w: get_eq_control ack has %d bytes, need 2", ErrShortPayload, len(payload))
	}
	return payload[1], nil
}

// EQParameterIDFromPayload extracts the parameter-ID byte from a request or
// acknowledgement payload of an EQ parameter command, if present.
func EQParameterIDFromPayload(payload []byte, ack bool) (ParameterID, bool) {
	offset := 1
	if ack {
		offset = 2
	}
	if len(payload) <= offset {
		return 0, false
	}
	return ParameterID(payload[offset]), true
}
