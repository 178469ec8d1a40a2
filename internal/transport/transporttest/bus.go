// Package transporttest provides an in-memory EventBus for exercising the
// matchmaking controller and session machine without a network.
package transporttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/chess-arena/client-go/internal/transport"
)

// Sent is one recorded outbound event.
type Sent struct {
	Event   string
	Payload json.RawMessage
}

// Bus is a fake transport. Emitted events are recorded; inbound events are
// injected synchronously with Inject, mirroring the real dispatch order.
type Bus struct {
	mu        sync.Mutex
	connected bool
	emitted   []Sent
	handlers  map[string][]entry
	statuses  []statusEntry
	nextID    int
}

type entry struct {
	id int
	fn transport.EventHandler
}

type statusEntry struct {
	id int
	fn transport.StatusHandler
}

func New() *Bus {
	return &Bus{connected: true, handlers: make(map[string][]entry)}
}

func (b *Bus) Emit(_ context.Context, event string, payload any) error {
	b.mu.Lock()
	connected := b.connected
	b.mu.Unlock()
	if !connected {
		return transport.ErrNotConnected
	}
	var raw json.RawMessage
	if payload != nil {
		enc, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = enc
	}
	b.mu.Lock()
	b.emitted = append(b.emitted, Sent{Event: event, Payload: raw})
	b.mu.Unlock()
	return nil
}

func (b *Bus) Subscribe(event string, fn transport.EventHandler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[event] = append(b.handlers[event], entry{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *Bus) Unsubscribe(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.handlers[event]
	for i, e := range entries {
		if e.id == id {
			b.handlers[event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (b *Bus) OnStatus(fn transport.StatusHandler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.statuses = append(b.statuses, statusEntry{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *Bus) RemoveStatusHandler(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.statuses {
		if e.id == id {
			b.statuses = append(b.statuses[:i], b.statuses[i+1:]...)
			return
		}
	}
}

func (b *Bus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// SetConnected flips the fake link state and notifies status handlers.
// reconnected marks the transition as a reconnect after a drop.
func (b *Bus) SetConnected(connected, reconnected bool) {
	b.mu.Lock()
	b.connected = connected
	entries := make([]statusEntry, len(b.statuses))
	copy(entries, b.statuses)
	b.mu.Unlock()
	st := transport.Status{State: transport.StateDisconnected}
	if connected {
		st = transport.Status{State: transport.StateConnected, Reconnected: reconnected}
	}
	for _, e := range entries {
		e.fn(st)
	}
}

// Inject delivers an inbound event to subscribers, marshalling payload first.
func (b *Bus) Inject(t interface{ Fatalf(string, ...any) }, event string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		enc, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal %s payload: %v", event, err)
		}
		raw = enc
	}
	b.mu.Lock()
	entries := make([]entry, len(b.handlers[event]))
	copy(entries, b.handlers[event])
	b.mu.Unlock()
	for _, e := range entries {
		e.fn(raw)
	}
}

// InjectRaw delivers an already-encoded payload, for malformed-input tests.
func (b *Bus) InjectRaw(event string, raw json.RawMessage) {
	b.mu.Lock()
	entries := make([]entry, len(b.handlers[event]))
	copy(entries, b.handlers[event])
	b.mu.Unlock()
	for _, e := range entries {
		e.fn(raw)
	}
}

// Emitted returns a copy of all emitted events so far.
func (b *Bus) Emitted() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sent, len(b.emitted))
	copy(out, b.emitted)
	return out
}

// EmittedNames returns just the event names, in order.
func (b *Bus) EmittedNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.emitted))
	for i, s := range b.emitted {
		names[i] = s.Event
	}
	return names
}

// LastEmitted decodes the most recent emitted payload for the given event
// into out and reports whether one was found.
func (b *Bus) LastEmitted(event string, out any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.emitted) - 1; i >= 0; i-- {
		if b.emitted[i].Event == event {
			if out != nil && b.emitted[i].Payload != nil {
				if err := json.Unmarshal(b.emitted[i].Payload, out); err != nil {
					return false
				}
			}
			return true
		}
	}
	return false
}
