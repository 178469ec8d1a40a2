package transport

import (
	"context"
	"encoding/json"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Status accompanies every state transition. Reconnected is set exactly when
// the connection was re-established after a drop, so consumers know the next
// state-bearing event is a full resync rather than an incremental update.
type Status struct {
	State       State
	Reconnected bool
}

// EventHandler receives the raw payload of a single inbound event.
type EventHandler func(payload json.RawMessage)

type StatusHandler func(st Status)

// EventBus is the narrow pub/sub surface shared by matchmaking, the session
// machine, and chat. Each consumer owns a disjoint set of event names.
type EventBus interface {
	Emit(ctx context.Context, event string, payload any) error
	Subscribe(event string, fn EventHandler) int
	Unsubscribe(event string, id int)
	OnStatus(fn StatusHandler) int
	RemoveStatusHandler(id int)
	Connected() bool
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	// ErrNotConnected is returned by Emit while the transport is down, so
	// actions are rejected instead of silently lost.
	ErrNotConnected = staticErr("transport not connected")
)
