package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/chess-arena/client-go/internal/obslog"
	"github.com/chess-arena/client-go/pkg/arenadto"
)

type handlerEntry struct {
	id      int
	handler EventHandler
}

type statusEntry struct {
	id      int
	handler StatusHandler
}

// Conn owns the single persistent websocket to the session authority. It does
// not interpret payloads; inbound envelopes are relayed to subscribers keyed
// by event name, in arrival order, on the read goroutine.
type Conn struct {
	wsURL string

	conn   *websocket.Conn
	state  State
	stateM sync.RWMutex

	handlers map[string][]handlerEntry
	statuses []statusEntry
	nextID   int
	cbM      sync.RWMutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	everConnected bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewConn(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *Conn {
	return &Conn{
		wsURL:                wsURL,
		state:                StateDisconnected,
		handlers:             make(map[string][]handlerEntry),
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

// SetPingInterval overrides the keepalive interval. Call before Connect.
func (c *Conn) SetPingInterval(d time.Duration) {
	if d > 0 {
		c.pingInterval = d
	}
}

// Connect establishes the transport. Idempotent: calling while connected or
// connecting is a no-op.
func (c *Conn) Connect(ctx context.Context) error {
	c.stateM.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.stateM.Unlock()
		return nil
	}
	c.stateM.Unlock()

	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		c.setState(StateFailed)
		c.scheduleReconnect()
		return err
	}

	c.stateM.Lock()
	c.conn = conn
	c.stateM.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen()
	go c.pingLoop()
	return nil
}

func (c *Conn) current() *websocket.Conn {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.conn
}

func (c *Conn) Connected() bool {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state == StateConnected
}

func (c *Conn) State() State {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

// Emit sends one event envelope. Fails fast while disconnected so callers can
// surface the rejection instead of losing the action silently.
func (c *Conn) Emit(ctx context.Context, event string, payload any) error {
	c.stateM.RLock()
	conn, state := c.conn, c.state
	c.stateM.RUnlock()
	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}
	env := arenadto.Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Payload = raw
	}
	return wsjson.Write(ctx, conn, &env)
}

func (c *Conn) listen() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		conn := c.current()
		if conn == nil {
			return
		}
		var env arenadto.Envelope
		if err := wsjson.Read(c.rootCtx, conn, &env); err != nil {
			if c.isStopping() {
				return
			}
			c.setState(StateDisconnected)
			_ = c.closeConn(websocket.StatusGoingAway, "reconnect")
			c.scheduleReconnect()
			return
		}
		c.dispatch(&env)
	}
}

func (c *Conn) dispatch(env *arenadto.Envelope) {
	c.cbM.RLock()
	entries := make([]handlerEntry, len(c.handlers[env.Event]))
	copy(entries, c.handlers[env.Event])
	c.cbM.RUnlock()
	if len(entries) == 0 {
		obslog.L().Debug("ws_event_unhandled", zap.String("event", env.Event))
		return
	}
	for _, e := range entries {
		if e.handler != nil {
			e.handler(env.Payload)
		}
	}
}

func (c *Conn) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	consecutiveFailures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			conn := c.current()
			if conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				consecutiveFailures++
				if consecutiveFailures >= 2 {
					if c.isStopping() {
						return
					}
					c.setState(StateDisconnected)
					_ = c.closeConn(websocket.StatusGoingAway, "ping failure")
					c.scheduleReconnect()
					consecutiveFailures = 0
				}
				continue
			}
			consecutiveFailures = 0
		}
	}
}

func (c *Conn) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 {
		return
	}
	c.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoffDuration(attempt, c.reconnectDelay)):
			}

			dialCtx, cancel := context.WithTimeout(c.rootCtx, 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, c.wsURL, &websocket.DialOptions{
				CompressionMode: websocket.CompressionNoContextTakeover,
			})
			cancel()
			if err != nil {
				obslog.L().Warn("ws_reconnect_attempt_failed",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}

			c.stateM.Lock()
			c.conn = conn
			c.stateM.Unlock()
			// The connected notification fires before the read loop starts,
			// so subscribers learn of the reconnect ahead of any replayed
			// session event.
			c.setState(StateConnected)

			c.wg.Add(2)
			go c.listen()
			go c.pingLoop()
			return
		}
		c.setState(StateFailed)
	}()
}

func (c *Conn) Subscribe(event string, fn EventHandler) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextID++
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: c.nextID, handler: fn})
	return c.nextID
}

func (c *Conn) Unsubscribe(event string, id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	entries := c.handlers[event]
	for i, e := range entries {
		if e.id == id {
			c.handlers[event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (c *Conn) OnStatus(fn StatusHandler) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextID++
	c.statuses = append(c.statuses, statusEntry{id: c.nextID, handler: fn})
	return c.nextID
}

func (c *Conn) RemoveStatusHandler(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, e := range c.statuses {
		if e.id == id {
			c.statuses = append(c.statuses[:i], c.statuses[i+1:]...)
			return
		}
	}
}

func (c *Conn) setState(state State) {
	c.stateM.Lock()
	c.state = state
	reconnected := false
	if state == StateConnected {
		reconnected = c.everConnected
		c.everConnected = true
	}
	c.stateM.Unlock()

	obslog.L().Info("ws_state", zap.String("state", string(state)), zap.Bool("reconnected", reconnected))

	st := Status{State: state, Reconnected: reconnected}
	c.cbM.RLock()
	entries := make([]statusEntry, len(c.statuses))
	copy(entries, c.statuses)
	c.cbM.RUnlock()
	for _, e := range entries {
		if e.handler != nil {
			e.handler(st)
		}
	}
}

func (c *Conn) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	_ = c.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if c.rootCancel != nil {
			c.rootCancel()
		}
		return nil
	}
}

func (c *Conn) closeConn(code websocket.StatusCode, reason string) error {
	c.stateM.Lock()
	conn := c.conn
	c.conn = nil
	c.stateM.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(code, reason)
}

func (c *Conn) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func backoffDuration(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	if base <= 0 {
		base = time.Second
	}
	return time.Duration(1<<uint(attempt-1)) * base
}
