package equalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterConfigureScalesBounds(t *testing.T) {
	tests := []struct {
		kind     Kind
		min, max float64
		rawMin   int
		rawMax   int
		labelMin string
		labelMax string
	}{
		{KindFrequency, 0.333, 20000, 0, 20000, "0.3Hz", "20.0kHz"},
		{KindFrequency, 40, 20000, 40, 20000, "40.0Hz", "20.0kHz"},
		{KindGain, -12, 12, -1200, 1200, "-12.0dB", "12.0dB"},
		{KindQuality, 0.25, 8.0, 25, 800, "0.25", "8.00"},
		{KindMasterGain, -36, 12, -3600, 1200, "-36.0dB", "12.0dB"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			p := NewParameter(tt.kind)
			assert.Equal(t, StateNotConfigurable, p.State())

			p.Configure(tt.min, tt.max)
			assert.True(t, p.IsConfigurable())
			assert.Equal(t, StateStale, p.State())

			lo, hi := p.Bounds()
			assert.Equal(t, tt.rawMin, lo)
			assert.Equal(t, tt.rawMax, hi)
			assert.Equal(t, tt.rawMax-tt.rawMin, p.RangeLength())

			labelLo, labelHi := p.BoundLabels()
			assert.Equal(t, tt.labelMin, labelLo)
			assert.Equal(t, tt.labelMax, labelHi)
		})
	}
}

func TestParameterStateMachine(t *testing.T) {
	p := NewParameter(KindGain)
	assert.Equal(t, StateNotConfigurable, p.State())
	assert.True(t, p.IsFresh(), "non-configurable parameters are vacuously fresh")

	p.Configure(-12, 12)
	assert.Equal(t, StateStale, p.State())
	assert.False(t, p.IsFresh())

	p.Set(Confirmed(600))
	assert.Equal(t, StateFresh, p.State())
	assert.Equal(t, ConfirmedRemote, p.Origin())

	p.MarkStale()
	assert.Equal(t, StateStale, p.State())

	p.Set(Confirmed(600))
	p.Configure(-36, 12)
	assert.Equal(t, StateStale, p.State(), "new bounds invalidate a fresh value")

	p.Set(Confirmed(-100))
	p.MakeNotConfigurable()
	assert.Equal(t, StateNotConfigurable, p.State())
}

func TestParameterNotConfigurableReadsAbsent(t *testing.T) {
	p := NewParameter(KindQuality)
	p.Configure(0.25, 2.0)
	p.Set(Confirmed(150))

	p.MakeNotConfigurable()

	_, ok := p.Value()
	assert.False(t, ok)
	assert.Empty(t, p.DisplayValue())
	lo, hi := p.BoundLabels()
	assert.Empty(t, lo)
	assert.Empty(t, hi)
	assert.Equal(t, 150, p.Raw(), "raw value is kept, only hidden")
}

func TestParameterSetPositionStaysPending(t *testing.T) {
	p := NewParameter(KindFrequency)
	p.Configure(20, 20000)
	p.Set(Confirmed(1000))
	require.True(t, p.IsFresh())

	raw := p.SetPosition(480)
	assert.Equal(t, 500, raw)
	v, ok := p.Value()
	require.True(t, ok)
	assert.Equal(t, 500, v)
	assert.Equal(t, 480, p.Position())
	assert.False(t, p.IsFresh(), "a local edit is provisional")
	assert.Equal(t, PendingLocal, p.Origin())

	assert.False(t, p.Confirm(1000), "acknowledgement of an older value")
	assert.False(t, p.IsFresh())

	assert.True(t, p.Confirm(500))
	assert.True(t, p.IsFresh())
	assert.Equal(t, ConfirmedRemote, p.Origin())
}

func TestParameterSetPositionClamps(t *testing.T) {
	p := NewParameter(KindGain)
	p.Configure(-12, 12)

	assert.Equal(t, -1200, p.SetPosition(-5))
	assert.Equal(t, 1200, p.SetPosition(10000))
	assert.Equal(t, 0, p.SetPosition(1200))
}

func TestParameterDisplayValue(t *testing.T) {
	tests := []struct {
		kind Kind
		raw  int
		want string
	}{
		{KindFrequency, 500, "500.0Hz"},
		{KindFrequency, 999, "999.0Hz"},
		{KindFrequency, 1000, "1.0kHz"},
		{KindFrequency, 12500, "12.5kHz"},
		{KindGain, -1200, "-12.0dB"},
		{KindGain, 650, "6.5dB"},
		{KindMasterGain, 0, "0.0dB"},
		{KindQuality, 150, "1.50"},
		{KindQuality, 71, "0.71"},
	}

	for _, tt := range tests {
		p := NewParameter(tt.kind)
		p.Configure(-100000, 100000)
		p.Set(Confirmed(tt.raw))
		assert.Equal(t, tt.want, p.DisplayValue(), "%s raw=%d", tt.kind, tt.raw)
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"freq":   KindFrequency,
		"gain":   KindGain,
		"q":      KindQuality,
		"master": KindMasterGain,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("volume")
	assert.Error(t, err)
}

func TestKindRaw(t *testing.T) {
	assert.Equal(t, 1000, KindFrequency.Raw(1000))
	assert.Equal(t, -350, KindGain.Raw(-3.5))
	assert.Equal(t, 71, KindQuality.Raw(0.707))
	assert.Equal(t, -3600, KindMasterGain.Raw(-36))
}
