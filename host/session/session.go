// Package session speaks the GAIA equalizer commands to a device and keeps a
// local mirror of its equalizer.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"gaiaeq/core"
	"gaiaeq/equalizer"
	"gaiaeq/host/logging"
	"gaiaeq/protocol"
)

var (
	ErrTransport        = errors.New("transport error")
	ErrInvalidPreset    = errors.New("invalid preset")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotConfigurable  = errors.New("parameter not configurable")
	ErrOutOfRange       = errors.New("value out of range")
	ErrClosed           = errors.New("session closed")
)

// DefaultRequestTimeout bounds how long a request waits for its acknowledgement
const DefaultRequestTimeout = 2 * time.Second

// Sender writes one encoded frame to the device. It is called with the
// session lock held, so Send must neither wait on the peer nor call back into
// the session.
type Sender interface {
	Send(frame []byte) error
}

// Recorder receives protocol counters. host/metrics implements it.
type Recorder interface {
	FrameSent(command uint16)
	FrameReceived(command uint16, ack bool)
	MalformedFrame()
	Rejected(command uint16, status protocol.Status)
	RequestTimeout(command uint16)
	RoundTrip(command uint16, d time.Duration)
	BankFresh(fresh bool)
}

type nopRecorder struct{}

func (nopRecorder) FrameSent(uint16)                 {}
func (nopRecorder) FrameReceived(uint16, bool)       {}
func (nopRecorder) MalformedFrame()                  {}
func (nopRecorder) Rejected(uint16, protocol.Status) {}
func (nopRecorder) RequestTimeout(uint16)            {}
func (nopRecorder) RoundTrip(uint16, time.Duration)  {}
func (nopRecorder) BankFresh(bool)                   {}

// Config tunes a Session. The zero value is usable.
type Config struct {
	Bands          int
	RequestTimeout time.Duration
	// AutoFetch requests a band's parameters whenever its filter is reported
	AutoFetch bool
	Logger    *slog.Logger
	Metrics   Recorder
}

// Session is the protocol session with one device
type Session struct {
	mu sync.Mutex

	sender  Sender
	bank    *equalizer.Bank
	acks    *core.AckRegistry
	events  *core.Emitter[Event]
	logger  *slog.Logger
	metrics Recorder

	timeout   time.Duration
	autoFetch bool

	bank1Selected bool

	inflight map[requestKey]*request
	queued   map[requestKey][]*request
	seq      uint64

	outbox []Event
	closed bool
}

// New creates a session writing through sender
func New(sender Sender, cfg Config) *Session {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}

	s := &Session{
		sender:    sender,
		bank:      equalizer.NewBank(cfg.Bands),
		acks:      core.NewAckRegistry(),
		events:    core.NewEmitter[Event](),
		logger:    logging.Module(cfg.Logger, "session"),
		metrics:   cfg.Metrics,
		timeout:   cfg.RequestTimeout,
		autoFetch: cfg.AutoFetch,
		inflight:  make(map[requestKey]*request),
		queued:    make(map[requestKey][]*request),
	}

	s.acks.Register(protocol.CommandGetEQParameter, s.handleGetEQParameter)
	s.acks.Register(protocol.CommandSetEQParameter, s.handleSetEQParameter)
	s.acks.Register(protocol.CommandGetEQControl, s.handleGetEQControl)
	s.acks.Register(protocol.CommandSetEQControl, s.handleSetEQControl)

	return s
}

// Subscribe registers fn for the named event
func (s *Session) Subscribe(name string, fn func(Event)) core.Subscription {
	return s.events.Subscribe(name, fn)
}

// Unsubscribe removes a callback registered with Subscribe
func (s *Session) Unsubscribe(name string, sub core.Subscription) bool {
	return s.events.Unsubscribe(name, sub)
}

// View runs fn with the bank while holding the session lock. fn must not
// call back into the session.
func (s *Session) View(fn func(bank *equalizer.Bank)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.bank)
}

// Snapshot returns a copy of the bank
func (s *Session) Snapshot() equalizer.BankSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.Snapshot()
}

// Bank1Selected reports whether the last GET_EQ_CONTROL acknowledgement
// named the customizable preset
func (s *Session) Bank1Selected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank1Selected
}

// MarkStale marks the whole mirror stale, typically on (re)connection
func (s *Session) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bank.MarkStale()
	s.metrics.BankFresh(false)
}

// Close drops every pending request. Operations afterwards return ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for key, req := range s.inflight {
		req.timer.Stop()
		delete(s.inflight, key)
	}
	clear(s.queued)
	s.outbox = nil
	return nil
}

// queueEvent records an event to emit once the lock is released.
// Must be called with s.mu held.
func (s *Session) queueEvent(ev Event) {
	s.outbox = append(s.outbox, ev)
}

// unlockAndEmit releases s.mu and delivers the events queued while it was held
func (s *Session) unlockAndEmit() {
	events := s.outbox
	s.outbox = nil
	s.mu.Unlock()

	for _, ev := range events {
		s.events.Emit(ev.Name, ev)
	}
}
