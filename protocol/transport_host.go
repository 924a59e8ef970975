package protocol

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrWriteQueueFull  = errors.New("write queue full")
)

const (
	writeQueueSize = 256
	// consecutive failed reads before the link is declared down
	maxReadErrors = 5
)

// FrameHandler receives every chunk read from the port. GAIA frames carry no
// length field, so each read is handed over as one candidate frame.
type FrameHandler func(frame []byte)

// TransportOptions tunes a HostTransport. The zero value is usable.
type TransportOptions struct {
	Logger *slog.Logger

	// IdleEOF treats io.EOF as a read timeout with no data, as a tty opened
	// with a read timeout reports it. Otherwise io.EOF means the peer hung up.
	IdleEOF bool

	// OnDown is called once, from a transport goroutine, when the link fails.
	// It must not call Close.
	OnDown func(err error)
}

// HostTransport moves GAIA frames over a byte stream (RFCOMM tty, pipe, ...).
// Writes go through a queue drained by their own goroutine, so Send never
// waits on the peer.
type HostTransport struct {
	// Serial I/O
	port io.ReadWriteCloser

	handler FrameHandler
	opts    TransportOptions
	logger  *slog.Logger

	writes chan []byte

	shutdownOnce sync.Once
	closed       chan struct{}
	wg           sync.WaitGroup

	readSize  int
	idleDelay time.Duration
}

// NewHostTransport creates a transport and starts its reader and writer
func NewHostTransport(port io.ReadWriteCloser, handler FrameHandler, opts TransportOptions) *HostTransport {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := &HostTransport{
		port:      port,
		handler:   handler,
		opts:      opts,
		logger:    logger,
		writes:    make(chan []byte, writeQueueSize),
		closed:    make(chan struct{}),
		readSize:  1024,
		idleDelay: 10 * time.Millisecond,
	}

	t.wg.Add(2)
	go t.readLoop()
	go t.writeLoop()

	return t
}

// Send queues one frame for writing. It fails only when the transport is
// closed or the queue is full; write errors take the link down.
func (t *HostTransport) Send(frame []byte) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	select {
	case t.writes <- frame:
		return nil
	case <-t.closed:
		return ErrTransportClosed
	default:
		return ErrWriteQueueFull
	}
}

func (t *HostTransport) writeLoop() {
	defer t.wg.Done()

	for {
		select {
		case <-t.closed:
			return
		case frame := <-t.writes:
			if err := t.write(frame); err != nil {
				t.fail(err)
				return
			}
		}
	}
}

func (t *HostTransport) write(frame []byte) error {
	n, err := t.port.Write(frame)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(frame))
	}
	return nil
}

// readLoop continuously reads from the port and hands chunks to the handler
func (t *HostTransport) readLoop() {
	defer t.wg.Done()

	buffer := make([]byte, t.readSize)
	failures := 0

	for {
		if t.isClosed() {
			return
		}

		n, err := t.port.Read(buffer)
		if n > 0 && t.handler != nil {
			frame := make([]byte, n)
			copy(frame, buffer[:n])
			t.handler(frame)
		}
		if err == nil {
			failures = 0
			continue
		}

		switch {
		case t.isClosed():
			return
		case errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed), errors.Is(err, net.ErrClosed):
			t.fail(fmt.Errorf("read: %w", err))
			return
		case errors.Is(err, io.EOF) && t.opts.IdleEOF:
			// tty read timeout with no data
			time.Sleep(t.idleDelay)
		case errors.Is(err, io.EOF):
			t.fail(fmt.Errorf("peer hung up: %w", err))
			return
		default:
			failures++
			t.logger.Debug("read error", "error", err, "consecutive", failures)
			if failures >= maxReadErrors {
				t.fail(fmt.Errorf("read: %w", err))
				return
			}
			time.Sleep(t.idleDelay)
		}
	}
}

// fail takes the link down after an I/O error and reports it once
func (t *HostTransport) fail(err error) {
	if !t.shutdown() {
		return
	}
	t.logger.Warn("link down", "error", err)
	if t.opts.OnDown != nil {
		t.opts.OnDown(err)
	}
}

// shutdown stops both loops and closes the port. Only the first call does
// anything and returns true.
func (t *HostTransport) shutdown() bool {
	first := false
	t.shutdownOnce.Do(func() {
		first = true
		close(t.closed)
		if t.port != nil {
			if err := t.port.Close(); err != nil {
				t.logger.Debug("close port", "error", err)
			}
		}
	})
	return first
}

func (t *HostTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Close stops the transport, closes the port and waits for both loops
func (t *HostTransport) Close() error {
	t.shutdown()
	t.wg.Wait()
	return nil
}
