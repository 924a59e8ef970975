package equalizer

// Band is one equalizer stage: a filter and its frequency, gain and quality
type Band struct {
	filter       FilterType
	filterOrigin Origin
	filterFresh  bool

	frequency *Parameter
	gain      *Parameter
	quality   *Parameter
}

// NewBand returns a Bypass band whose parameters are not configurable
func NewBand() *Band {
	return &Band{
		filter:    Bypass,
		frequency: NewParameter(KindFrequency),
		gain:      NewParameter(KindGain),
		quality:   NewParameter(KindQuality),
	}
}

// SetFilter changes the filter and reconfigures the three parameters from the
// filter's ranges. The filter is fresh only when origin is ConfirmedRemote.
func (b *Band) SetFilter(f FilterType, origin Origin) {
	ranges := RangesFor(f)
	for _, p := range b.parameters() {
		r := ranges.For(p.Kind())
		if r.Configurable {
			p.Configure(r.Min, r.Max)
		} else {
			p.MakeNotConfigurable()
		}
	}

	b.filter = f
	b.filterOrigin = origin
	b.filterFresh = origin == ConfirmedRemote
}

// ConfirmFilter marks a locally selected filter as acknowledged by the device
func (b *Band) ConfirmFilter(f FilterType) bool {
	if b.filter != f {
		return false
	}
	b.filterOrigin = ConfirmedRemote
	b.filterFresh = true
	return true
}

func (b *Band) Filter() FilterType       { return b.filter }
func (b *Band) FilterOrigin() Origin     { return b.filterOrigin }
func (b *Band) IsFilterFresh() bool      { return b.filterFresh }
func (b *Band) Frequency() *Parameter    { return b.frequency }
func (b *Band) Gain() *Parameter         { return b.gain }
func (b *Band) Quality() *Parameter      { return b.quality }
func (b *Band) parameters() []*Parameter { return []*Parameter{b.frequency, b.gain, b.quality} }

// Parameter returns the band parameter of the given kind, nil for master gain
func (b *Band) Parameter(kind Kind) *Parameter {
	switch kind {
	case KindFrequency:
		return b.frequency
	case KindGain:
		return b.gain
	case KindQuality:
		return b.quality
	default:
		return nil
	}
}

// ConfigurableKinds lists the parameter kinds the current filter exposes
func (b *Band) ConfigurableKinds() []Kind {
	var kinds []Kind
	for _, p := range b.parameters() {
		if p.IsConfigurable() {
			kinds = append(kinds, p.Kind())
		}
	}
	return kinds
}

// IsUpToDate reports whether the filter and every parameter are fresh
func (b *Band) IsUpToDate() bool {
	return b.filterFresh &&
		b.frequency.IsFresh() &&
		b.gain.IsFresh() &&
		b.quality.IsFresh()
}

// MarkStale forces a full re-sync of the band
func (b *Band) MarkStale() {
	b.filterFresh = false
	for _, p := range b.parameters() {
		p.MarkStale()
	}
}

// BandSnapshot is a plain copy of a Band
type BandSnapshot struct {
	Number      int               `json:"band"`
	Filter      string            `json:"filter"`
	FilterCode  uint8             `json:"filter_code"`
	FilterFresh bool              `json:"filter_fresh"`
	Frequency   ParameterSnapshot `json:"frequency"`
	Gain        ParameterSnapshot `json:"gain"`
	Quality     ParameterSnapshot `json:"quality"`
	UpToDate    bool              `json:"up_to_date"`
}

// Snapshot copies the band
func (b *Band) Snapshot(number int) BandSnapshot {
	return BandSnapshot{
		Number:      number,
		Filter:      b.filter.String(),
		FilterCode:  uint8(b.filter),
		FilterFresh: b.filterFresh,
		Frequency:   b.frequency.Snapshot(),
		Gain:        b.gain.Snapshot(),
		Quality:     b.quality.Snapshot(),
		UpToDate:    b.IsUpToDate(),
	}
}
