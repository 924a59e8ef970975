// Package device owns the connection to a headset: it opens the port, runs the
// transport and feeds received frames to the protocol session.
package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gaiaeq/core"
	"gaiaeq/equalizer"
	"gaiaeq/host/logging"
	"gaiaeq/host/serial"
	"gaiaeq/host/session"
	"gaiaeq/protocol"
)

var (
	ErrNotConnected     = errors.New("not connected to device")
	ErrAlreadyConnected = errors.New("already connected to device")
	ErrSyncTimeout      = errors.New("equalizer not synchronized in time")
)

const syncPollInterval = 20 * time.Millisecond

// EventConnectionState is the event name state changes are emitted under
const EventConnectionState = "onConnectionState"

// ConnectionState is the link state of a Device
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (c ConnectionState) String() string {
	if c == Connected {
		return "connected"
	}
	return "disconnected"
}

// Device represents a connection to a GAIA headset
type Device struct {
	mu sync.Mutex

	// Transport layer
	transport *protocol.HostTransport
	name      string

	session *session.Session
	states  *core.Emitter[ConnectionState]
	logger  *slog.Logger

	// Connection state
	connected bool
	// bumped on every connect so a stale link's failure is ignored
	generation uint64
}

// New creates a device (not yet connected) and the session speaking to it
func New(cfg session.Config) *Device {
	d := &Device{
		states: core.NewEmitter[ConnectionState](),
		logger: logging.Module(cfg.Logger, "device"),
	}
	d.session = session.New(d, cfg)
	return d
}

// Session returns the protocol session bound to this device
func (d *Device) Session() *session.Session {
	return d.session
}

// Connect connects to a device via serial port
func (d *Device) Connect(device string) error {
	return d.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects with a custom serial config
func (d *Device) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := d.connect(port, cfg.Device); err != nil {
		port.Close()
		return err
	}
	return nil
}

// ConnectPort attaches an already open byte stream
func (d *Device) ConnectPort(port io.ReadWriteCloser, name string) error {
	return d.connect(port, name)
}

func (d *Device) connect(port io.ReadWriteCloser, name string) error {
	d.mu.Lock()
	if d.connected {
		d.mu.Unlock()
		return ErrAlreadyConnected
	}

	f, tty := port.(serial.Port)
	if tty {
		if err := f.Flush(); err != nil {
			d.logger.Debug("flush failed", "error", err)
		}
	}

	d.generation++
	gen := d.generation
	d.name = name
	d.transport = protocol.NewHostTransport(port, d.session.HandleIncoming, protocol.TransportOptions{
		Logger:  d.logger,
		IdleEOF: tty,
		OnDown:  func(err error) { d.linkDown(gen, err) },
	})
	d.connected = true
	d.mu.Unlock()

	// whatever we knew belongs to a previous link
	d.session.MarkStale()

	d.logger.Info("connected", "device", name)
	d.states.Emit(EventConnectionState, Connected)
	return nil
}

// Send queues one frame on the link; it implements session.Sender
func (d *Device) Send(frame []byte) error {
	d.mu.Lock()
	transport := d.transport
	connected := d.connected
	d.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	return transport.Send(frame)
}

// Close closes the link. The session survives and can be reused by a later
// Connect.
func (d *Device) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	transport := d.transport
	d.transport = nil
	d.connected = false
	d.mu.Unlock()

	var err error
	if cerr := transport.Close(); cerr != nil && !errors.Is(cerr, io.ErrClosedPipe) {
		err = fmt.Errorf("close transport: %w", cerr)
	}

	d.logger.Info("disconnected", "device", d.name)
	d.states.Emit(EventConnectionState, Disconnected)
	return err
}

// linkDown drops a link whose transport failed. The session survives, as
// with Close.
func (d *Device) linkDown(gen uint64, err error) {
	d.mu.Lock()
	if !d.connected || d.generation != gen {
		d.mu.Unlock()
		return
	}
	d.transport = nil
	d.connected = false
	name := d.name
	d.mu.Unlock()

	d.logger.Warn("link lost", "device", name, "error", err)
	d.states.Emit(EventConnectionState, Disconnected)
}

// Shutdown closes the link and the session
func (d *Device) Shutdown() error {
	return errors.Join(d.Close(), d.session.Close())
}

// IsConnected returns whether the device is connected
func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// OnStateChange subscribes to connection state changes
func (d *Device) OnStateChange(fn func(ConnectionState)) core.Subscription {
	return d.states.Subscribe(EventConnectionState, fn)
}

// RemoveStateListener drops a subscription made with OnStateChange
func (d *Device) RemoveStateListener(sub core.Subscription) bool {
	return d.states.Unsubscribe(EventConnectionState, sub)
}

// Sync reads the whole equalizer and waits until every value is confirmed
// or the timeout elapses: first every band's filter, then the parameters
// those filters expose.
func (d *Device) Sync(timeout time.Duration) error {
	if !d.IsConnected() {
		return ErrNotConnected
	}

	s := d.session
	deadline := time.Now().Add(timeout)

	if err := s.FetchAll(); err != nil {
		return err
	}
	if err := waitUntil(deadline, s, filtersKnown); err != nil {
		return fmt.Errorf("reading filters: %w", err)
	}

	snap := s.Snapshot()
	for _, band := range snap.Bands {
		if err := s.FetchBand(band.Number); err != nil {
			return err
		}
	}
	if err := waitUntil(deadline, s, func(b equalizer.BankSnapshot) bool { return b.UpToDate }); err != nil {
		return fmt.Errorf("reading parameters: %w", err)
	}
	return nil
}

func filtersKnown(b equalizer.BankSnapshot) bool {
	for _, band := range b.Bands {
		if !band.FilterFresh {
			return false
		}
	}
	return b.MasterGain.State == "fresh"
}

func waitUntil(deadline time.Time, s *session.Session, done func(equalizer.BankSnapshot) bool) error {
	for {
		if done(s.Snapshot()) {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrSyncTimeout
		}
		time.Sleep(syncPollInterval)
	}
}
