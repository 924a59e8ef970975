package session

import (
	"errors"
	"fmt"

	"gaiaeq/equalizer"
	"gaiaeq/protocol"
)

// GetMasterGain requests the master gain
func (s *Session) GetMasterGain() error {
	s.mu.Lock()
	defer s.unlockAndEmit()
	return s.getParameter(protocol.MasterGainID())
}

// SetMasterGain stages raw (dB*100) as a local edit and writes it
func (s *Session) SetMasterGain(raw int) error {
	s.mu.Lock()
	defer s.unlockAndEmit()

	if s.closed {
		return ErrClosed
	}

	mg := s.bank.MasterGain()
	if !mg.InBounds(raw) {
		lo, hi := mg.Bounds()
		return fmt.Errorf("%w: master gain %d not in [%d, %d]", ErrOutOfRange, raw, lo, hi)
	}
	mg.Set(equalizer.Pending(raw))

	return s.setParameter(protocol.MasterGainID(), raw)
}

// GetEQParameter requests one parameter of a band (1-based)
func (s *Session) GetEQParameter(band int, param protocol.ParameterType) error {
	s.mu.Lock()
	defer s.unlockAndEmit()

	id, err := s.bandParameterID(band, param)
	if err != nil {
		return err
	}
	return s.getParameter(id)
}

// SetEQParameter stages value as a local edit of one band parameter and
// writes it. For ParamFilter value is the filter code; otherwise it is the
// raw value, which must lie within the bounds of the band's current filter.
func (s *Session) SetEQParameter(band int, param protocol.ParameterType, value int) error {
	s.mu.Lock()
	defer s.unlockAndEmit()
	return s.setBandParameter(band, param, value)
}

// GetPreset requests the active preset
func (s *Session) GetPreset() error {
	s.mu.Lock()
	defer s.unlockAndEmit()
	return s.submit(protocol.CommandGetEQControl, 0, 0, nil)
}

// SetPreset selects preset n in [0, NumberOfPresets)
func (s *Session) SetPreset(n int) error {
	if n < 0 || n >= protocol.NumberOfPresets {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPreset, n, protocol.NumberOfPresets)
	}

	s.mu.Lock()
	defer s.unlockAndEmit()
	return s.submit(protocol.CommandSetEQControl, 0, n, protocol.SetEQControlPayload(uint8(n)))
}

// Refresh marks the mirror stale and requests the master gain, the filter of
// the current band and the active preset.
func (s *Session) Refresh() error {
	s.mu.Lock()
	defer s.unlockAndEmit()

	if s.closed {
		return ErrClosed
	}

	s.bank.MarkStale()
	s.metrics.BankFresh(false)

	current := s.bank.CurrentBandNumber()
	return errors.Join(
		s.getParameter(protocol.MasterGainID()),
		s.getParameter(filterID(current)),
		s.submit(protocol.CommandGetEQControl, 0, 0, nil),
	)
}

// FetchAll marks the mirror stale and requests the master gain, the active
// preset and the filter of every band.
func (s *Session) FetchAll() error {
	s.mu.Lock()
	defer s.unlockAndEmit()

	if s.closed {
		return ErrClosed
	}

	s.bank.MarkStale()
	s.metrics.BankFresh(false)

	errs := []error{
		s.getParameter(protocol.MasterGainID()),
		s.submit(protocol.CommandGetEQControl, 0, 0, nil),
	}
	for n := 1; n <= s.bank.NumberOfBands(); n++ {
		errs = append(errs, s.getParameter(filterID(n)))
	}
	return errors.Join(errs...)
}

// FetchBand requests every parameter the filter of band n exposes
func (s *Session) FetchBand(n int) error {
	s.mu.Lock()
	defer s.unlockAndEmit()

	if s.closed {
		return ErrClosed
	}
	return s.fetchBand(n)
}

// SelectBand makes band n (clamped) the band being edited and requests its filter
func (s *Session) SelectBand(n int) error {
	s.mu.Lock()
	defer s.unlockAndEmit()

	if s.closed {
		return ErrClosed
	}

	s.bank.SetCurrentBand(n)
	return s.getParameter(filterID(s.bank.CurrentBandNumber()))
}

// SelectFilter changes the filter of the current band, writes it and requests
// every parameter the new filter exposes.
func (s *Session) SelectFilter(f equalizer.FilterType) error {
	s.mu.Lock()
	defer s.unlockAndEmit()

	current := s.bank.CurrentBandNumber()
	if err := s.setBandParameter(current, protocol.ParamFilter, int(f)); err != nil {
		return err
	}

	return s.fetchBand(current)
}

// MoveSlider sets a parameter of the current band (or the master gain) from
// a slider position in [0, RangeLength] and writes it. It returns the raw
// value sent.
func (s *Session) MoveSlider(kind equalizer.Kind, position int) (int, error) {
	s.mu.Lock()
	defer s.unlockAndEmit()

	if s.closed {
		return 0, ErrClosed
	}

	var (
		p  *equalizer.Parameter
		id protocol.ParameterID
	)
	if kind == equalizer.KindMasterGain {
		p, id = s.bank.MasterGain(), protocol.MasterGainID()
	} else {
		param, ok := ParamOf(kind)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrInvalidParameter, kind)
		}
		current := s.bank.CurrentBandNumber()
		p = s.bank.CurrentBand().Parameter(kind)
		id = protocol.NewParameterID(uint8(current), param)
	}

	if !p.IsConfigurable() {
		return 0, fmt.Errorf("%w: %s of band %d", ErrNotConfigurable, kind, s.bank.CurrentBandNumber())
	}

	raw := p.SetPosition(position)
	return raw, s.setParameter(id, raw)
}

// Must be called with s.mu held.
func (s *Session) getParameter(id protocol.ParameterID) error {
	return s.submit(protocol.CommandGetEQParameter, id, 0, protocol.GetEQParameterPayload(id))
}

// Must be called with s.mu held.
func (s *Session) setParameter(id protocol.ParameterID, raw int) error {
	payload := protocol.SetEQParameterPayload(id, uint16(raw), s.bank1Selected)
	return s.submit(protocol.CommandSetEQParameter, id, raw, payload)
}

// Must be called with s.mu held.
func (s *Session) setBandParameter(bandNumber int, param protocol.ParameterType, value int) error {
	if s.closed {
		return ErrClosed
	}

	id, err := s.bandParameterID(bandNumber, param)
	if err != nil {
		return err
	}
	band, _ := s.bank.Band(bandNumber)

	if param == protocol.ParamFilter {
		if value < 0 || value > 0xFF || !equalizer.FilterType(value).Valid() {
			return fmt.Errorf("%w: filter code %d", ErrOutOfRange, value)
		}
		band.SetFilter(equalizer.FilterType(value), equalizer.PendingLocal)
		s.metrics.BankFresh(false)
		return s.setParameter(id, value)
	}

	kind, _ := kindOf(param)
	p := band.Parameter(kind)
	if !p.IsConfigurable() {
		return fmt.Errorf("%w: %s of band %d with filter %s", ErrNotConfigurable, kind, bandNumber, band.Filter())
	}
	if !p.InBounds(value) {
		lo, hi := p.Bounds()
		return fmt.Errorf("%w: %s %d not in [%d, %d]", ErrOutOfRange, kind, value, lo, hi)
	}
	p.Set(equalizer.Pending(value))
	s.metrics.BankFresh(false)

	return s.setParameter(id, value)
}

// fetchBand requests every configurable parameter of a band.
// Must be called with s.mu held.
func (s *Session) fetchBand(bandNumber int) error {
	band, ok := s.bank.Band(bandNumber)
	if !ok {
		return fmt.Errorf("%w: band %d", ErrInvalidParameter, bandNumber)
	}

	var errs []error
	for _, kind := range band.ConfigurableKinds() {
		param, _ := ParamOf(kind)
		errs = append(errs, s.getParameter(protocol.NewParameterID(uint8(bandNumber), param)))
	}
	return errors.Join(errs...)
}

// bandParameterID validates a band number and parameter type.
// Must be called with s.mu held.
func (s *Session) bandParameterID(band int, param protocol.ParameterType) (protocol.ParameterID, error) {
	if band < 1 || band > s.bank.NumberOfBands() {
		return 0, fmt.Errorf("%w: band %d not in [1, %d]", ErrInvalidParameter, band, s.bank.NumberOfBands())
	}
	if param > protocol.ParamQuality {
		return 0, fmt.Errorf("%w: parameter code %d", ErrInvalidParameter, param)
	}
	return protocol.NewParameterID(uint8(band), param), nil
}

func filterID(band int) protocol.ParameterID {
	return protocol.NewParameterID(uint8(band), protocol.ParamFilter)
}
