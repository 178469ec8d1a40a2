package transport

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/chess-arena/client-go/pkg/arenadto"
)

func TestEmitWhileDisconnected(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", 0, time.Second)
	err := c.Emit(context.Background(), arenadto.EvSendChat, nil)
	if err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestDispatchByEventName(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", 0, time.Second)

	var gotA, gotB []string
	c.Subscribe("alpha", func(p json.RawMessage) { gotA = append(gotA, string(p)) })
	c.Subscribe("beta", func(p json.RawMessage) { gotB = append(gotB, string(p)) })

	c.dispatch(&arenadto.Envelope{Event: "alpha", Payload: json.RawMessage(`{"n":1}`)})
	c.dispatch(&arenadto.Envelope{Event: "alpha", Payload: json.RawMessage(`{"n":2}`)})
	c.dispatch(&arenadto.Envelope{Event: "gamma", Payload: nil}) // nobody listens

	if len(gotA) != 2 || len(gotB) != 0 {
		t.Fatalf("dispatch crossed namespaces: a=%v b=%v", gotA, gotB)
	}
	if gotA[0] != `{"n":1}` || gotA[1] != `{"n":2}` {
		t.Fatalf("arrival order not preserved: %v", gotA)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", 0, time.Second)

	calls := 0
	id := c.Subscribe("alpha", func(json.RawMessage) { calls++ })
	keep := 0
	c.Subscribe("alpha", func(json.RawMessage) { keep++ })

	c.dispatch(&arenadto.Envelope{Event: "alpha"})
	c.Unsubscribe("alpha", id)
	c.dispatch(&arenadto.Envelope{Event: "alpha"})

	if calls != 1 {
		t.Fatalf("unsubscribed handler still called: %d", calls)
	}
	if keep != 2 {
		t.Fatalf("sibling handler lost: %d", keep)
	}
}

func TestStatusHandlerReconnectedFlag(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", 0, time.Second)

	var seen []Status
	c.OnStatus(func(st Status) { seen = append(seen, st) })

	c.setState(StateConnected)
	c.setState(StateDisconnected)
	c.setState(StateConnected)

	if len(seen) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(seen))
	}
	if seen[0].Reconnected {
		t.Fatalf("first connect must not be flagged as reconnect")
	}
	if !seen[2].Reconnected {
		t.Fatalf("second connect must be flagged as reconnect")
	}
}

func TestRemoveStatusHandler(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", 0, time.Second)
	calls := 0
	id := c.OnStatus(func(Status) { calls++ })
	c.setState(StateConnecting)
	c.RemoveStatusHandler(id)
	c.setState(StateFailed)
	if calls != 1 {
		t.Fatalf("removed status handler still called: %d", calls)
	}
}

func TestBackoffBoundedAndMonotone(t *testing.T) {
	base := 100 * time.Millisecond
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffDuration(attempt, base)
		if d < prev {
			t.Fatalf("backoff not monotone at attempt %d: %v < %v", attempt, d, prev)
		}
		prev = d
	}
	if got := backoffDuration(100, base); got != 32*base {
		t.Fatalf("backoff not capped: %v", got)
	}
	if got := backoffDuration(0, base); got != base {
		t.Fatalf("attempt floor broken: %v", got)
	}
}

// Exercises every locked path that touches the socket handle; run with -race.
func TestConcurrentSocketAccess(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", 0, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Emit(context.Background(), "alpha", nil)
				_ = c.current()
				_ = c.Connected()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			_ = c.closeConn(websocket.StatusNormalClosure, "test")
			c.setState(StateDisconnected)
		}
	}()
	wg.Wait()
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw := []byte(`{"event":"move-confirmed","payload":{"position":"fen","moveHistory":[],"isLocalTurn":false}}`)
	var env arenadto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Event != arenadto.EvMoveConfirmed {
		t.Fatalf("unexpected event: %s", env.Event)
	}
	var ev arenadto.MoveConfirmed
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if ev.Position != "fen" {
		t.Fatalf("unexpected payload: %+v", ev)
	}
}
