package events

import "devquestvault/core/types"

// Event represents a structured state change emitted by the custody engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. audit, streams).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans every event out to each wrapped emitter in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Buffer collects events until Flush forwards them. Events staged inside a
// transaction that is later discarded are dropped with Reset.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Events returns the staged events.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.pending))
	copy(out, b.pending)
	return out
}

// Flush forwards staged events to the target and clears the buffer.
func (b *Buffer) Flush(target Emitter) {
	if target != nil {
		for _, evt := range b.pending {
			target.Emit(evt)
		}
	}
	b.pending = nil
}

// Reset drops staged events.
func (b *Buffer) Reset() { b.pending = nil }
