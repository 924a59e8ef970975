package equalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangesForTable(t *testing.T) {
	none := Range{}
	tests := []struct {
		filter    FilterType
		frequency Range
		gain      Range
		quality   Range
	}{
		{Bypass, none, none, none},
		{LowPass1, Range{true, 0.333, 20000}, none, none},
		{HighPass1, Range{true, 0.333, 20000}, none, none},
		{AllPass1, Range{true, 0.333, 20000}, none, none},
		{LowShelf1, Range{true, 20, 20000}, Range{true, -12, 12}, none},
		{HighShelf1, Range{true, 20, 20000}, Range{true, -12, 12}, none},
		{Tilt1, Range{true, 20, 20000}, Range{true, -12, 12}, none},
		{LowPass2, Range{true, 40, 20000}, none, Range{true, 0.25, 2.0}},
		{HighPass2, Range{true, 40, 20000}, none, Range{true, 0.25, 2.0}},
		{AllPass2, Range{true, 40, 20000}, none, Range{true, 0.25, 2.0}},
		{LowShelf2, Range{true, 40, 20000}, Range{true, -12, 12}, Range{true, 0.25, 2.0}},
		{HighShelf2, Range{true, 40, 20000}, Range{true, -12, 12}, Range{true, 0.25, 2.0}},
		{Tilt2, Range{true, 40, 20000}, Range{true, -12, 12}, Range{true, 0.25, 2.0}},
		{ParametricEQ, Range{true, 20, 20000}, Range{true, -36, 12}, Range{true, 0.25, 8.0}},
	}

	require.Len(t, tests, len(AllFilterTypes()))

	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			r := RangesFor(tt.filter)
			assert.Equal(t, tt.frequency, r.Frequency)
			assert.Equal(t, tt.gain, r.Gain)
			assert.Equal(t, tt.quality, r.Quality)
		})
	}
}

func TestRangesForUnknownFallsBackToBypass(t *testing.T) {
	for _, f := range []FilterType{14, 15, 0x7F, 0xFF} {
		assert.Equal(t, RangesFor(Bypass), RangesFor(f))
		assert.False(t, f.Valid())
		assert.Equal(t, "UNKNOWN", f.String())
	}
}

func TestFilterNames(t *testing.T) {
	assert.Equal(t, "BYPASS", Bypass.String())
	assert.Equal(t, "LPF1", LowPass1.String())
	assert.Equal(t, "Tilt2", Tilt2.String())
	assert.Equal(t, "PEQ", ParametricEQ.String())
	assert.Equal(t, FilterType(13), ParametricEQ)
}

func TestParseFilterType(t *testing.T) {
	tests := []struct {
		in   string
		want FilterType
	}{
		{"PEQ", ParametricEQ},
		{"peq", ParametricEQ},
		{"ParametricEQ", ParametricEQ},
		{" ls2 ", LowShelf2},
		{"highpass1", HighPass1},
		{"BYPASS", Bypass},
		{"tilt1", Tilt1},
	}
	for _, tt := range tests {
		got, err := ParseFilterType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFilterType("notch")
	assert.Error(t, err)
}

func TestAllFilterTypesOrder(t *testing.T) {
	all := AllFilterTypes()
	require.Len(t, all, 14)
	for i, f := range all {
		assert.Equal(t, FilterType(i), f)
	}
}
