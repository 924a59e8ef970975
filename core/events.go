package core

import "sync"

// Subscription identifies one subscribed callback. Funcs are not comparable,
// so the token is what Unsubscribe matches on.
type Subscription uint64

type subscriber[T any] struct {
	id Subscription
	fn func(T)
}

// Emitter is a named-event publisher. Callbacks run synchronously on the
// emitting goroutine, in subscription order, without the emitter lock held.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu       sync.Mutex
	next     Subscription
	handlers map[string][]subscriber[T]
}

// NewEmitter creates an emitter
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// Subscribe registers fn for the named event
func (e *Emitter[T]) Subscribe(name string, fn func(T)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[string][]subscriber[T])
	}
	e.next++
	e.handlers[name] = append(e.handlers[name], subscriber[T]{id: e.next, fn: fn})
	return e.next
}

// Unsubscribe removes a callback; it reports whether it was registered
func (e *Emitter[T]) Unsubscribe(name string, sub Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.handlers[name]
	for i, s := range subs {
		if s.id != sub {
			continue
		}
		// copy so an Emit iterating the old slice is not disturbed
		kept := make([]subscriber[T], 0, len(subs)-1)
		kept = append(kept, subs[:i]...)
		kept = append(kept, subs[i+1:]...)
		if len(kept) == 0 {
			delete(e.handlers, name)
		} else {
			e.handlers[name] = kept
		}
		return true
	}
	return false
}

// Emit calls every callback subscribed to name
func (e *Emitter[T]) Emit(name string, v T) {
	e.mu.Lock()
	subs := e.handlers[name]
	e.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Count returns the number of callbacks subscribed to name
func (e *Emitter[T]) Count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[name])
}
