package session

import (
	"context"
	"fmt"
	"time"

	"gaiaeq/equalizer"
	"gaiaeq/host/logging"
	"gaiaeq/protocol"
)

// requestKey serializes requests: one per key is in flight at a time. Reads
// and writes of one parameter share a key, and so do the preset commands.
type requestKey struct {
	control bool
	id      protocol.ParameterID
}

func keyFor(command uint16, id protocol.ParameterID) requestKey {
	if isParameterCommand(command) {
		return requestKey{id: id}
	}
	return requestKey{control: true}
}

type request struct {
	key     requestKey
	command uint16
	frame   []byte
	value  int // raw value carried by SET requests
	seq    uint64
	sentAt time.Time
	timer  *time.Timer
}

func isParameterCommand(command uint16) bool {
	return command == protocol.CommandGetEQParameter || command == protocol.CommandSetEQParameter
}

func isWrite(command uint16) bool {
	return command == protocol.CommandSetEQParameter || command == protocol.CommandSetEQControl
}

// submit sends the request now, or queues it behind the one in flight for the
// same key. Only an immediate send failure is returned.
// Must be called with s.mu held.
func (s *Session) submit(command uint16, id protocol.ParameterID, value int, payload []byte) error {
	if s.closed {
		return ErrClosed
	}

	s.seq++
	req := &request{
		key:     keyFor(command, id),
		command: command,
		frame:   protocol.Encode(command, payload, false),
		value:   value,
		seq:     s.seq,
	}

	if _, busy := s.inflight[req.key]; busy {
		s.queued[req.key] = append(s.queued[req.key], req)
		s.logger.Debug("request queued",
			"command", protocol.CommandName(command),
			"param", paramLabel(req.key),
			"depth", len(s.queued[req.key]))
		return nil
	}

	return s.transmit(req)
}

// transmit puts req in flight and writes it. Must be called with s.mu held.
func (s *Session) transmit(req *request) error {
	req.sentAt = time.Now()
	req.timer = time.AfterFunc(s.timeout, func() { s.expire(req) })
	s.inflight[req.key] = req

	if err := s.sender.Send(req.frame); err != nil {
		req.timer.Stop()
		delete(s.inflight, req.key)
		return fmt.Errorf("%w: %s: %w", ErrTransport, protocol.CommandName(req.command), err)
	}

	s.metrics.FrameSent(req.command)
	s.logger.Debug("request sent",
		"command", protocol.CommandName(req.command),
		"param", paramLabel(req.key))
	s.logger.Log(context.Background(), logging.LevelTrace, "frame out", "hex", fmt.Sprintf("% X", req.frame))
	return nil
}

// advance sends the next queued request for key. Requests that fail to send
// are reported and skipped. Must be called with s.mu held.
func (s *Session) advance(key requestKey) {
	for {
		queue := s.queued[key]
		if len(queue) == 0 {
			delete(s.queued, key)
			return
		}

		next := queue[0]
		if len(queue) == 1 {
			delete(s.queued, key)
		} else {
			s.queued[key] = queue[1:]
		}

		err := s.transmit(next)
		if err == nil {
			return
		}

		s.logger.Warn("queued request failed",
			"command", protocol.CommandName(next.command),
			"param", paramLabel(key),
			"error", err)
		s.markRequestStale(next)

		ev := Event{Name: EventTransportError, Command: next.command, Err: err}
		if !key.control {
			describe(&ev, key.id)
		}
		s.queueEvent(ev)
	}
}

// complete retires the in-flight request an acknowledgement answers and sends
// the next one queued behind it. With an ID the match is exact; without one
// the oldest request for the command is taken. Returns nil when nothing
// matched. Must be called with s.mu held.
func (s *Session) complete(command uint16, id protocol.ParameterID, hasID bool) *request {
	var req *request
	if hasID {
		if r := s.inflight[keyFor(command, id)]; r != nil && r.command == command {
			req = r
		}
	} else {
		for _, r := range s.inflight {
			if r.command == command && (req == nil || r.seq < req.seq) {
				req = r
			}
		}
	}
	if req == nil {
		return nil
	}

	req.timer.Stop()
	delete(s.inflight, req.key)
	s.metrics.RoundTrip(command, time.Since(req.sentAt))
	s.advance(req.key)
	return req
}

// expire runs on the request timer
func (s *Session) expire(req *request) {
	s.mu.Lock()
	defer s.unlockAndEmit()

	if s.inflight[req.key] != req {
		return
	}
	delete(s.inflight, req.key)

	s.logger.Warn("request timed out",
		"command", protocol.CommandName(req.command),
		"param", paramLabel(req.key),
		"timeout", s.timeout)
	s.metrics.RequestTimeout(req.command)
	s.markRequestStale(req)

	ev := Event{
		Name:    EventRequestTimeout,
		Command: req.command,
		Value:   req.value,
		Err:     fmt.Errorf("no acknowledgement within %s", s.timeout),
	}
	if !req.key.control {
		describe(&ev, req.key.id)
	}
	s.queueEvent(ev)

	s.advance(req.key)
}

// markRequestStale invalidates whatever req would have confirmed.
// Must be called with s.mu held.
func (s *Session) markRequestStale(req *request) {
	if req.key.control {
		return
	}

	id := req.key.id
	if id.IsMasterGain() {
		s.bank.MasterGain().MarkStale()
	} else if band, ok := s.bank.Band(int(id.Band())); ok {
		if kind, ok := kindOf(id.Param()); ok {
			band.Parameter(kind).MarkStale()
		} else {
			band.MarkStale()
		}
	}
	s.metrics.BankFresh(false)
}

// writePending reports whether a write for key is in flight or queued. A
// value read before that write lands must not overwrite the local edit.
// Must be called with s.mu held.
func (s *Session) writePending(key requestKey) bool {
	if r := s.inflight[key]; r != nil && isWrite(r.command) {
		return true
	}
	for _, r := range s.queued[key] {
		if isWrite(r.command) {
			return true
		}
	}
	return false
}

func paramLabel(key requestKey) string {
	if key.control {
		return "-"
	}
	return key.id.String()
}

// describe fills the target fields of ev from a parameter ID
func describe(ev *Event, id protocol.ParameterID) {
	ev.ID = id
	if id.IsMasterGain() {
		ev.Kind = equalizer.KindMasterGain
		return
	}
	ev.Band = int(id.Band())
	if kind, ok := kindOf(id.Param()); ok {
		ev.Kind = kind
	}
}

func kindOf(param protocol.ParameterType) (equalizer.Kind, bool) {
	switch param {
	case protocol.ParamFrequency:
		return equalizer.KindFrequency, true
	case protocol.ParamGain:
		return equalizer.KindGain, true
	case protocol.ParamQuality:
		return equalizer.KindQuality, true
	default:
		return 0, false
	}
}

// ParamOf maps a band parameter kind to its wire code
func ParamOf(kind equalizer.Kind) (protocol.ParameterType, bool) {
	switch kind {
	case equalizer.KindFrequency:
		return protocol.ParamFrequency, true
	case equalizer.KindGain:
		return protocol.ParamGain, true
	case equalizer.KindQuality:
		return protocol.ParamQuality, true
	default:
		return 0, false
	}
}
