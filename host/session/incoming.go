package session

import (
	"context"
	"errors"
	"fmt"

	"gaiaeq/core"
	"gaiaeq/equalizer"
	"gaiaeq/host/logging"
	"gaiaeq/protocol"
)

// HandleIncoming processes one received frame. Malformed frames are logged
// and dropped. Rejections raise an event and leave the bank untouched.
func (s *Session) HandleIncoming(data []byte) {
	s.logger.Log(context.Background(), logging.LevelTrace, "frame in", "hex", fmt.Sprintf("% X", data))

	packet, err := protocol.Decode(data)
	if err != nil {
		s.logger.Debug("dropping malformed frame", "error", err, "len", len(data))
		s.metrics.MalformedFrame()
		return
	}

	s.mu.Lock()
	defer s.unlockAndEmit()

	if s.closed {
		return
	}
	s.metrics.FrameReceived(packet.Command, packet.Ack)

	if !packet.Ack {
		s.logger.Debug("notification", "command", packet.Command)
		s.queueEvent(Event{Name: EventNotification, Command: packet.Command, Payload: packet.Payload})
		return
	}

	if status := packet.Status(); status != protocol.StatusSuccess {
		s.handleRejection(packet, status)
		return
	}

	if err := s.acks.Dispatch(packet); err != nil {
		if errors.Is(err, core.ErrUnknownCommand) {
			s.logger.Debug("ignoring acknowledgement", "error", err)
		} else {
			s.logger.Warn("bad acknowledgement", "error", err)
		}
	}
	s.metrics.BankFresh(s.bank.IsUpToDate())
}

// Must be called with s.mu held.
func (s *Session) handleRejection(packet *protocol.Packet, status protocol.Status) {
	s.metrics.Rejected(packet.Command, status)

	var (
		id    protocol.ParameterID
		hasID bool
	)
	if isParameterCommand(packet.Command) {
		id, hasID = protocol.EQParameterIDFromPayload(packet.Payload, true)
	}
	req := s.complete(packet.Command, id, hasID)

	ev := Event{
		Name:    EventControlNotSupported,
		Command: packet.Command,
		Status:  status,
		Payload: packet.Payload,
	}
	if status == protocol.StatusIncorrectState {
		ev.Name = EventIncorrectState
	}
	if req != nil {
		ev.Value = req.value
		if !req.key.control {
			describe(&ev, req.key.id)
		}
	}

	s.logger.Info("device rejected command",
		"command", protocol.CommandName(packet.Command),
		"status", status.String())
	s.queueEvent(ev)
}

// handleGetEQParameter routes a reported value into the bank. A report for a
// parameter with a write still pending is dropped.
func (s *Session) handleGetEQParameter(packet *protocol.Packet) error {
	id, hasID := protocol.EQParameterIDFromPayload(packet.Payload, true)
	s.complete(packet.Command, id, hasID)

	ack, err := protocol.ParseGetEQParameterAck(packet.Payload)
	if err != nil {
		return err
	}

	if s.writePending(keyFor(packet.Command, ack.ID)) {
		s.logger.Debug("report superseded by pending write", "param", ack.ID.String(), "value", ack.Value)
		return nil
	}

	if ack.ID.IsMasterGain() {
		v := ack.Signed()
		s.bank.MasterGain().Set(equalizer.Confirmed(v))
		s.queueEvent(Event{
			Name:    EventGetMasterGain,
			Command: packet.Command,
			ID:      ack.ID,
			Kind:    equalizer.KindMasterGain,
			Value:   v,
		})
		return nil
	}

	bandNumber := int(ack.ID.Band())
	band, ok := s.bank.Band(bandNumber)
	if !ok {
		s.logger.Warn("report for unknown band", "param", ack.ID.String(), "bands", s.bank.NumberOfBands())
		return nil
	}

	if ack.ID.Param() == protocol.ParamFilter {
		f := filterFromWire(ack.Value)
		if !f.Valid() {
			s.logger.Warn("unknown filter code", "band", bandNumber, "code", ack.Value)
		}
		band.SetFilter(f, equalizer.ConfirmedRemote)
		s.queueEvent(Event{
			Name:    EventGetFilter,
			Command: packet.Command,
			ID:      ack.ID,
			Band:    bandNumber,
			Filter:  f,
			Value:   int(ack.Value),
		})

		if s.autoFetch {
			if err := s.fetchBand(bandNumber); err != nil {
				s.logger.Warn("auto fetch failed", "band", bandNumber, "error", err)
				s.queueEvent(Event{Name: EventTransportError, Command: protocol.CommandGetEQParameter, Band: bandNumber, Err: err})
			}
		}
		return nil
	}

	kind, ok := kindOf(ack.ID.Param())
	if !ok {
		s.logger.Warn("unknown parameter code", "band", bandNumber, "code", uint8(ack.ID.Param()))
		return nil
	}

	v := int(ack.Value)
	if kind == equalizer.KindGain {
		v = ack.Signed()
	}
	band.Parameter(kind).Set(equalizer.Confirmed(v))
	s.queueEvent(Event{
		Name:    kindEvents[kind],
		Command: packet.Command,
		ID:      ack.ID,
		Band:    bandNumber,
		Kind:    kind,
		Value:   v,
	})
	return nil
}

// handleSetEQParameter promotes the acknowledged local edit to fresh
func (s *Session) handleSetEQParameter(packet *protocol.Packet) error {
	id, hasID := protocol.EQParameterIDFromPayload(packet.Payload, true)
	req := s.complete(packet.Command, id, hasID)
	if req == nil {
		s.logger.Debug("unmatched set acknowledgement")
		return nil
	}

	id = req.key.id
	confirmed := false
	if id.IsMasterGain() {
		confirmed = s.bank.MasterGain().Confirm(req.value)
	} else if band, ok := s.bank.Band(int(id.Band())); ok {
		if kind, ok := kindOf(id.Param()); ok {
			confirmed = band.Parameter(kind).Confirm(req.value)
		} else if id.Param() == protocol.ParamFilter {
			confirmed = band.ConfirmFilter(equalizer.FilterType(req.value))
		}
	}
	if !confirmed {
		s.logger.Debug("acknowledged value superseded", "param", id.String(), "value", req.value)
	}

	ev := Event{Name: EventSetConfirmed, Command: packet.Command, Value: req.value}
	describe(&ev, id)
	if id.Param() == protocol.ParamFilter && !id.IsMasterGain() {
		ev.Filter = equalizer.FilterType(req.value)
	}
	s.queueEvent(ev)
	return nil
}

// handleGetEQControl records whether the customizable preset is active
func (s *Session) handleGetEQControl(packet *protocol.Packet) error {
	s.complete(packet.Command, 0, false)

	preset, err := protocol.ParseGetEQControlAck(packet.Payload)
	if err != nil {
		return err
	}
	if s.writePending(keyFor(packet.Command, 0)) {
		s.logger.Debug("preset report superseded by pending write", "preset", preset)
		return nil
	}

	s.bank1Selected = preset == protocol.CustomizablePreset
	s.queueEvent(Event{Name: EventGetPreset, Command: packet.Command, Preset: preset, Value: int(preset)})
	return nil
}

// handleSetEQControl applies an acknowledged preset change. The device swaps
// the whole equalizer, so the mirror goes stale.
func (s *Session) handleSetEQControl(packet *protocol.Packet) error {
	req := s.complete(packet.Command, 0, false)
	if req == nil {
		return nil
	}

	preset := uint8(req.value)
	s.bank1Selected = preset == protocol.CustomizablePreset
	s.bank.MarkStale()
	s.queueEvent(Event{Name: EventSetPreset, Command: packet.Command, Preset: preset, Value: req.value})
	return nil
}

func filterFromWire(v uint16) equalizer.FilterType {
	if v > 0xFF {
		return equalizer.FilterType(0xFF)
	}
	return equalizer.FilterType(v)
}
