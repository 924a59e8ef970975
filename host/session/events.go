package session

import (
	"gaiaeq/equalizer"
	"gaiaeq/protocol"
)

// Event names
const (
	EventGetMasterGain       = "onGetMasterGain"
	EventGetFilter           = "onGetFilter"
	EventGetFrequency        = "onGetFrequency"
	EventGetGain             = "onGetGain"
	EventGetQuality          = "onGetQuality"
	EventGetPreset           = "onGetPreset"
	EventSetPreset           = "onSetPreset"
	EventSetConfirmed        = "onSetConfirmed"
	EventIncorrectState      = "onIncorrectState"
	EventControlNotSupported = "onControlNotSupported"
	EventRequestTimeout      = "onRequestTimeout"
	EventTransportError      = "onTransportError"
	EventNotification        = "onNotification"
)

// Event is what subscribers receive. Only the fields relevant to the event
// name are set. Band is 0 for the master gain and for control commands;
// Kind is only meaningful when ID addresses a value rather than a filter.
type Event struct {
	Name    string
	Command uint16
	Status  protocol.Status

	ID     protocol.ParameterID
	Band   int
	Kind   equalizer.Kind
	Filter equalizer.FilterType
	Value  int
	Preset uint8

	Payload []byte
	Err     error
}

// kindEvents maps a band parameter kind to its report event
var kindEvents = map[equalizer.Kind]string{
	equalizer.KindFrequency: EventGetFrequency,
	equalizer.KindGain:      EventGetGain,
	equalizer.KindQuality:   EventGetQuality,
}
