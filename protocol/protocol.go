// Package protocol implements the GAIA command/acknowledge protocol
package protocol

// Version represents the gaiaeq host version
const Version = "0.1.0"

// Frame constants
const (
	SOP           = 0xFF // Start of packet marker, sent twice
	HeaderSize    = 4    // SOP1 SOP2 CMD_LO CMD_HI
	AckFlag       = 0x80 // Top bit of CMD_HI
	CommandMask   = 0x7FFF
	commandHiMask = 0x7F

	positionCommandLow  = 2
	positionCommandHigh = 3
)

// Command codes
const (
	CommandSetEQControl   uint16 = 0x0214
	CommandGetEQControl   uint16 = 0x0294
	CommandSetEQParameter uint16 = 0x021B
	CommandGetEQParameter uint16 = 0x029B
)

// Status is the first payload byte of an acknowledgement
type Status uint8

// Acknowledgement status codes
const (
	StatusSuccess               Status = 0x00
	StatusNotSupported          Status = 0x01
	StatusNotAuthenticated      Status = 0x02
	StatusInsufficientResources Status = 0x03
	StatusAuthenticating        Status = 0x04
	StatusInvalidParameter      Status = 0x05
	StatusIncorrectState        Status = 0x06
	StatusInProgress            Status = 0x07
)

// Equalizer payload constants
const (
	EQParameterFirstByte = 0x01

	GeneralBand         = 0x00 // Band number used for bank-wide parameters
	ParameterMasterGain = 0x01 // Master gain shares code 1 under the general band

	GetEQParameterAckLength     = 5
	SetEQParameterPayloadLength = 5

	NumberOfPresets    = 3
	CustomizablePreset = 1 // "bank 1", the user-editable preset
)

// ParameterType is the 4-bit parameter code carried in the parameter-ID byte
type ParameterType uint8

// Parameter type codes
const (
	ParamFilter    ParameterType = 0
	ParamFrequency ParameterType = 1
	ParamGain      ParameterType = 2
	ParamQuality   ParameterType = 3
)

// String returns the lowercase name of the parameter type
func (p ParameterType) String() string {
	switch p {
	case ParamFilter:
		return "filter"
	case ParamFrequency:
		return "frequency"
	case ParamGain:
		return "gain"
	case ParamQuality:
		return "quality"
	default:
		return "unknown"
	}
}

// String returns a human readable status name
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotSupported:
		return "not_supported"
	case StatusNotAuthenticated:
		return "not_authenticated"
	case StatusInsufficientResources:
		return "insufficient_resources"
	case StatusAuthenticating:
		return "authenticating"
	case StatusInvalidParameter:
		return "invalid_parameter"
	case StatusIncorrectState:
		return "incorrect_state"
	case StatusInProgress:
		return "in_progress"
	default:
		return "unknown"
	}
}

// CommandName returns a printable name for known command codes
func CommandName(command uint16) string {
	switch command {
	case CommandSetEQControl:
		return "set_eq_control"
	case CommandGetEQControl:
		return "get_eq_control"
	case CommandSetEQParameter:
		return "set_eq_parameter"
	case CommandGetEQParameter:
		return "get_eq_parameter"
	default:
		return "unknown"
	}
}
