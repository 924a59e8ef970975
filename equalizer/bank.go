package equalizer

// DefaultBands is the number of bands of the device's user EQ
const DefaultBands = 5

// Master gain bounds in dB
const (
	MasterGainMin = -36
	MasterGainMax = 12
)

// Bank is the whole equalizer: bands, master gain and the band being edited
type Bank struct {
	bands       []*Band
	currentBand int
	masterGain  *Parameter
}

// NewBank creates a bank of n bands (DefaultBands when n < 1)
func NewBank(n int) *Bank {
	if n < 1 {
		n = DefaultBands
	}

	b := &Bank{
		bands:       make([]*Band, n),
		currentBand: 1,
		masterGain:  NewParameter(KindMasterGain),
	}
	for i := range b.bands {
		b.bands[i] = NewBand()
	}
	b.masterGain.Configure(MasterGainMin, MasterGainMax)

	return b
}

// SetCurrentBand selects the band to edit, clamped into [1, N]
func (b *Bank) SetCurrentBand(n int) {
	switch {
	case n < 1:
		b.currentBand = 1
	case n > len(b.bands):
		b.currentBand = len(b.bands)
	default:
		b.currentBand = n
	}
}

// CurrentBandNumber returns the 1-based number of the band being edited
func (b *Bank) CurrentBandNumber() int {
	return b.currentBand
}

// CurrentBand returns the band being edited
func (b *Bank) CurrentBand() *Band {
	return b.bands[b.currentBand-1]
}

// Band returns the band with 1-based number n
func (b *Bank) Band(n int) (*Band, bool) {
	if n < 1 || n > len(b.bands) {
		return nil, false
	}
	return b.bands[n-1], true
}

func (b *Bank) Bands() []*Band         { return b.bands }
func (b *Bank) NumberOfBands() int     { return len(b.bands) }
func (b *Bank) MasterGain() *Parameter { return b.masterGain }

// IsUpToDate reports whether every band and the master gain are fresh
func (b *Bank) IsUpToDate() bool {
	for _, band := range b.bands {
		if !band.IsUpToDate() {
			return false
		}
	}
	return b.masterGain.IsFresh()
}

// MarkStale marks the whole mirror as needing a re-sync
func (b *Bank) MarkStale() {
	for _, band := range b.bands {
		band.MarkStale()
	}
	b.masterGain.MarkStale()
}

// BankSnapshot is a plain copy of a Bank
type BankSnapshot struct {
	CurrentBand int               `json:"current_band"`
	MasterGain  ParameterSnapshot `json:"master_gain"`
	Bands       []BandSnapshot    `json:"bands"`
	UpToDate    bool              `json:"up_to_date"`
}

// Snapshot copies the bank
func (b *Bank) Snapshot() BankSnapshot {
	s := BankSnapshot{
		CurrentBand: b.currentBand,
		MasterGain:  b.masterGain.Snapshot(),
		Bands:       make([]BandSnapshot, len(b.bands)),
		UpToDate:    b.IsUpToDate(),
	}
	for i, band := range b.bands {
		s.Bands[i] = band.Snapshot(i + 1)
	}
	return s
}
