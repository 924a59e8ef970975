// Package core holds the host-side plumbing shared by the session and the
// device: the ACK handler registry and a typed event emitter.
package core

import (
	"errors"
	"fmt"
	"sync"

	"gaiaeq/protocol"
)

var ErrUnknownCommand = errors.New("no handler for command")

// AckHandler handles one decoded acknowledgement. The handler is responsible
// for parsing its own payload.
type AckHandler func(packet *protocol.Packet) error

// Ack is a registered acknowledgement handler
type Ack struct {
	Command uint16
	Name    string
	Handler AckHandler
}

// AckRegistry maps GAIA command codes to the handler of their ACK
type AckRegistry struct {
	mu    sync.RWMutex
	acks  map[uint16]*Ack
	order []uint16
}

// NewAckRegistry creates an empty registry
func NewAckRegistry() *AckRegistry {
	return &AckRegistry{
		acks: make(map[uint16]*Ack),
	}
}

// Register installs the handler for command, replacing any previous one
func (r *AckRegistry) Register(command uint16, handler AckHandler) {
	command &= protocol.CommandMask

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.acks[command]; !exists {
		r.order = append(r.order, command)
	}
	r.acks[command] = &Ack{
		Command: command,
		Name:    protocol.CommandName(command),
		Handler: handler,
	}
}

// Lookup retrieves the handler registered for command
func (r *AckRegistry) Lookup(command uint16) (*Ack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ack, ok := r.acks[command&protocol.CommandMask]
	return ack, ok
}

// Count returns the number of registered handlers
func (r *AckRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.acks)
}

// Commands lists the registered commands in registration order
func (r *AckRegistry) Commands() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint16, len(r.order))
	copy(out, r.order)
	return out
}

// Dispatch calls the handler registered for the packet's command
func (r *AckRegistry) Dispatch(packet *protocol.Packet) error {
	ack, ok := r.Lookup(packet.Command)
	if !ok {
		return fmt.Errorf("%w 0x%04X", ErrUnknownCommand, packet.Command)
	}
	if ack.Handler == nil {
		return nil
	}
	if err := ack.Handler(packet); err != nil {
		return fmt.Errorf("%s: %w", ack.Name, err)
	}
	return nil
}
