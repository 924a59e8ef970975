package equalizer

import (
	"fmt"
	"math"
)

// Kind identifies what a Parameter measures. It selects the fixed-point
// factor and the label format.
type Kind uint8

const (
	KindFrequency Kind = iota
	KindGain
	KindQuality
	KindMasterGain
)

func (k Kind) String() string {
	switch k {
	case KindFrequency:
		return "frequency"
	case KindGain:
		return "gain"
	case KindQuality:
		return "quality"
	case KindMasterGain:
		return "master_gain"
	default:
		return "unknown"
	}
}

// ParseKind accepts the names used on the console and in MQTT commands
func ParseKind(name string) (Kind, error) {
	switch name {
	case "frequency", "freq", "f":
		return KindFrequency, nil
	case "gain", "g":
		return KindGain, nil
	case "quality", "q":
		return KindQuality, nil
	case "master", "master_gain", "mastergain":
		return KindMasterGain, nil
	default:
		return 0, fmt.Errorf("unknown parameter %q", name)
	}
}

// Factor is the multiplier between the real value and the stored raw integer
func (k Kind) Factor() int {
	if k == KindFrequency {
		return 1
	}
	return 100
}

// Raw converts a real value to the stored fixed-point integer
func (k Kind) Raw(real float64) int {
	return int(math.Round(real * float64(k.Factor())))
}

// Format renders a real value the way the device UI shows it
func (k Kind) Format(v float64) string {
	switch k {
	case KindFrequency:
		if v >= 1000 {
			return fmt.Sprintf("%.1fkHz", v/1000)
		}
		return fmt.Sprintf("%.1fHz", v)
	case KindGain, KindMasterGain:
		return fmt.Sprintf("%.1fdB", v)
	case KindQuality:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%g", v)
	}
}

// Origin tells where a value came from
type Origin uint8

const (
	// OriginNone means no value has been written yet
	OriginNone Origin = iota
	// PendingLocal is an optimistic edit not yet acknowledged by the device
	PendingLocal
	// ConfirmedRemote was reported or acknowledged by the device
	ConfirmedRemote
)

func (o Origin) String() string {
	switch o {
	case PendingLocal:
		return "pending"
	case ConfirmedRemote:
		return "confirmed"
	default:
		return "none"
	}
}

// Value is a raw value tagged with its origin
type Value struct {
	Raw    int
	Origin Origin
}

// Pending tags raw as a local edit
func Pending(raw int) Value { return Value{Raw: raw, Origin: PendingLocal} }

// Confirmed tags raw as device state
func Confirmed(raw int) Value { return Value{Raw: raw, Origin: ConfirmedRemote} }

// State is the freshness state of a Parameter
type State uint8

const (
	StateNotConfigurable State = iota
	StateStale
	StateFresh
)

func (s State) String() string {
	switch s {
	case StateStale:
		return "stale"
	case StateFresh:
		return "fresh"
	default:
		return "not_configurable"
	}
}

// Parameter is one tunable quantity of a band or of the bank
type Parameter struct {
	kind Kind

	raw    int
	origin Origin
	fresh  bool

	configurable   bool
	rawMin, rawMax int
	labelMin       string
	labelMax       string
}

// NewParameter returns a non-configurable parameter of the given kind
func NewParameter(kind Kind) *Parameter {
	return &Parameter{kind: kind}
}

func (p *Parameter) Kind() Kind { return p.kind }

// Configure makes the parameter configurable within [minReal, maxReal].
// A previously fresh value becomes stale since its bounds changed.
func (p *Parameter) Configure(minReal, maxReal float64) {
	p.configurable = true
	p.rawMin = p.kind.Raw(minReal)
	p.rawMax = p.kind.Raw(maxReal)
	p.labelMin = p.kind.Format(minReal)
	p.labelMax = p.kind.Format(maxReal)
	p.fresh = false
}

// MakeNotConfigurable drops the parameter; its value reads as absent afterwards
func (p *Parameter) MakeNotConfigurable() {
	p.configurable = false
	p.fresh = false
}

// Set stores a tagged value. Only ConfirmedRemote values make it fresh.
func (p *Parameter) Set(v Value) {
	p.raw = v.Raw
	p.origin = v.Origin
	p.fresh = v.Origin == ConfirmedRemote
}

// SetPosition stores rawMin+position as a pending local edit and returns the
// raw value. position is clamped into [0, RangeLength()].
func (p *Parameter) SetPosition(position int) int {
	if position < 0 {
		position = 0
	}
	if length := p.RangeLength(); position > length {
		position = length
	}
	p.Set(Pending(position + p.rawMin))
	return p.raw
}

// Confirm promotes a pending local value to fresh when the device
// acknowledged writing raw. A newer local edit is left pending.
func (p *Parameter) Confirm(raw int) bool {
	if !p.configurable || p.raw != raw {
		return false
	}
	p.origin = ConfirmedRemote
	p.fresh = true
	return true
}

// MarkStale forgets that the value matches the device
func (p *Parameter) MarkStale() {
	p.fresh = false
}

// Value returns the raw value, or false when the parameter is not configurable
func (p *Parameter) Value() (int, bool) {
	if !p.configurable {
		return 0, false
	}
	return p.raw, true
}

// Raw returns the stored raw value regardless of configurability
func (p *Parameter) Raw() int { return p.raw }

// Real returns the value in Hz, dB or Q
func (p *Parameter) Real() float64 {
	return float64(p.raw) / float64(p.kind.Factor())
}

// Position maps the value onto [0, RangeLength()]
func (p *Parameter) Position() int {
	return p.raw - p.rawMin
}

// RangeLength is rawMax-rawMin
func (p *Parameter) RangeLength() int {
	return p.rawMax - p.rawMin
}

// Bounds returns the raw bounds
func (p *Parameter) Bounds() (int, int) {
	return p.rawMin, p.rawMax
}

// InBounds reports whether raw lies within the current bounds
func (p *Parameter) InBounds(raw int) bool {
	return raw >= p.rawMin && raw <= p.rawMax
}

// BoundLabels returns the formatted bounds, empty when not configurable
func (p *Parameter) BoundLabels() (string, string) {
	if !p.configurable {
		return "", ""
	}
	return p.labelMin, p.labelMax
}

// DisplayValue formats the value, empty when not configurable
func (p *Parameter) DisplayValue() string {
	if !p.configurable {
		return ""
	}
	return p.kind.Format(p.Real())
}

func (p *Parameter) IsConfigurable() bool { return p.configurable }

// IsFresh reports whether the value is known to match the device.
// Non-configurable parameters are vacuously fresh.
func (p *Parameter) IsFresh() bool {
	return !p.configurable || p.fresh
}

func (p *Parameter) Origin() Origin { return p.origin }

func (p *Parameter) State() State {
	switch {
	case !p.configurable:
		return StateNotConfigurable
	case p.fresh:
		return StateFresh
	default:
		return StateStale
	}
}

// ParameterSnapshot is a plain copy of a Parameter
type ParameterSnapshot struct {
	Kind         string  `json:"kind"`
	Configurable bool    `json:"configurable"`
	Raw          int     `json:"raw,omitempty"`
	Real         float64 `json:"value,omitempty"`
	Label        string  `json:"label,omitempty"`
	Min          int     `json:"min,omitempty"`
	Max          int     `json:"max,omitempty"`
	State        string  `json:"state"`
	Origin       string  `json:"origin"`
}

// Snapshot copies the parameter
func (p *Parameter) Snapshot() ParameterSnapshot {
	s := ParameterSnapshot{
		Kind:         p.kind.String(),
		Configurable: p.configurable,
		State:        p.State().String(),
		Origin:       p.origin.String(),
	}
	if p.configurable {
		s.Raw = p.raw
		s.Real = p.Real()
		s.Label = p.DisplayValue()
		s.Min, s.Max = p.rawMin, p.rawMax
	}
	return s
}
