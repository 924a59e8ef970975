// Package equalizer mirrors the device's parametric equalizer: filter ranges,
// parameters, bands and the bank that holds them.
package equalizer

import (
	"fmt"
	"strings"
)

// FilterType is the device filter code (0..13)
type FilterType uint8

// Filter types in wire order
const (
	Bypass FilterType = iota
	LowPass1
	HighPass1
	AllPass1
	LowShelf1
	HighShelf1
	Tilt1
	LowPass2
	HighPass2
	AllPass2
	LowShelf2
	HighShelf2
	Tilt2
	ParametricEQ

	filterTypeCount
)

var filterNames = [filterTypeCount]string{
	Bypass:       "BYPASS",
	LowPass1:     "LPF1",
	HighPass1:    "HPF1",
	AllPass1:     "APF1",
	LowShelf1:    "LS1",
	HighShelf1:   "HS1",
	Tilt1:        "Tilt1",
	LowPass2:     "LPF2",
	HighPass2:    "HPF2",
	AllPass2:     "APF2",
	LowShelf2:    "LS2",
	HighShelf2:   "HS2",
	Tilt2:        "Tilt2",
	ParametricEQ: "PEQ",
}

var filterLongNames = [filterTypeCount]string{
	Bypass:       "Bypass",
	LowPass1:     "LowPass1",
	HighPass1:    "HighPass1",
	AllPass1:     "AllPass1",
	LowShelf1:    "LowShelf1",
	HighShelf1:   "HighShelf1",
	Tilt1:        "Tilt1",
	LowPass2:     "LowPass2",
	HighPass2:    "HighPass2",
	AllPass2:     "AllPass2",
	LowShelf2:    "LowShelf2",
	HighShelf2:   "HighShelf2",
	Tilt2:        "Tilt2",
	ParametricEQ: "ParametricEQ",
}

// Valid reports whether f is one of the 14 known filter types
func (f FilterType) Valid() bool {
	return f < filterTypeCount
}

// String returns the short display name (LPF1, PEQ, ...)
func (f FilterType) String() string {
	if !f.Valid() {
		return "UNKNOWN"
	}
	return filterNames[f]
}

// ParseFilterType accepts a short name ("ls2") or a long name ("LowShelf2")
func ParseFilterType(name string) (FilterType, error) {
	name = strings.TrimSpace(name)
	for i := FilterType(0); i < filterTypeCount; i++ {
		if strings.EqualFold(name, filterNames[i]) || strings.EqualFold(name, filterLongNames[i]) {
			return i, nil
		}
	}
	return Bypass, fmt.Errorf("unknown filter type %q", name)
}

// AllFilterTypes returns every filter type in wire order
func AllFilterTypes() []FilterType {
	all := make([]FilterType, 0, filterTypeCount)
	for i := FilterType(0); i < filterTypeCount; i++ {
		all = append(all, i)
	}
	return all
}

// Range describes one parameter of a filter. Min and Max are real values
// (Hz, dB, Q); both are zero when the parameter is not configurable.
type Range struct {
	Configurable bool
	Min          float64
	Max          float64
}

// FilterRanges holds the frequency, gain and quality ranges of a filter type
type FilterRanges struct {
	Frequency Range
	Gain      Range
	Quality   Range
}

var (
	fixed = Range{}

	freqFirstOrderPass = Range{Configurable: true, Min: 0.333, Max: 20000}
	freqFirstOrder     = Range{Configurable: true, Min: 20, Max: 20000}
	freqSecondOrder    = Range{Configurable: true, Min: 40, Max: 20000}
	freqParametric     = Range{Configurable: true, Min: 20, Max: 20000}

	gainShelf      = Range{Configurable: true, Min: -12, Max: 12}
	gainParametric = Range{Configurable: true, Min: -36, Max: 12}

	qualitySecondOrder = Range{Configurable: true, Min: 0.25, Max: 2.0}
	qualityParametric  = Range{Configurable: true, Min: 0.25, Max: 8.0}
)

// RangesFor returns the parameter ranges of a filter type. Unknown codes
// behave like Bypass: nothing is configurable.
func RangesFor(f FilterType) FilterRanges {
	switch f {
	case LowPass1, HighPass1, AllPass1:
		return FilterRanges{Frequency: freqFirstOrderPass, Gain: fixed, Quality: fixed}
	case LowShelf1, HighShelf1, Tilt1:
		return FilterRanges{Frequency: freqFirstOrder, Gain: gainShelf, Quality: fixed}
	case LowPass2, HighPass2, AllPass2:
		return FilterRanges{Frequency: freqSecondOrder, Gain: fixed, Quality: qualitySecondOrder}
	case LowShelf2, HighShelf2, Tilt2:
		return FilterRanges{Frequency: freqSecondOrder, Gain: gainShelf, Quality: qualitySecondOrder}
	case ParametricEQ:
		return FilterRanges{Frequency: freqParametric, Gain: gainParametric, Quality: qualityParametric}
	default:
		return FilterRanges{Frequency: fixed, Gain: fixed, Quality: fixed}
	}
}

// For returns the range of one band parameter kind
func (r FilterRanges) For(kind Kind) Range {
	switch kind {
	case KindFrequency:
		return r.Frequency
	case KindGain:
		return r.Gain
	case KindQuality:
		return r.Quality
	default:
		return fixed
	}
}
