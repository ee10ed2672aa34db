package events

import "farmchain/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Renderable is implemented by events that can be flattened into a
// broadcastable payload.
type Renderable interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events until the surrounding operation commits. Events of a
// failed operation are dropped with the buffer.
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

// Len returns the number of buffered events.
func (b *Buffer) Len() int { return len(b.pending) }

// Flush forwards the buffered events in order and empties the buffer.
func (b *Buffer) Flush(to Emitter) {
	if to != nil {
		for _, evt := range b.pending {
			to.Emit(evt)
		}
	}
	b.pending = nil
}

// Fanout forwards every event to each configured emitter.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Render flattens an event, returning nil for events without a payload.
func Render(evt Event) *types.Event {
	if r, ok := evt.(Renderable); ok {
		return r.Event()
	}
	return nil
}
