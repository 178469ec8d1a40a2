package matchmaking

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chess-arena/client-go/internal/obslog"
	"github.com/chess-arena/client-go/internal/rules"
	"github.com/chess-arena/client-go/internal/transport"
	"github.com/chess-arena/client-go/pkg/arenadto"
)

type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseSearching Phase = "SEARCHING"
	PhaseMatched   Phase = "MATCHED"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	// ErrNotIdle rejects a search started while one is already pending or a
	// match is in hand.
	ErrNotIdle = staticErr("search already in progress")
	// ErrNotSearching marks a benign cancel outside Searching.
	ErrNotSearching = staticErr("no search in progress")
)

// Profile is the identity carried on a search request.
type Profile struct {
	Kind        arenadto.PlayerKind
	DisplayName string
	PlayerID    string
}

// Assignment is the handoff to the session machine once a match is confirmed
// or an existing session is resumed.
type Assignment struct {
	SessionID string
	MyColor   rules.Color
	White     arenadto.Player
	Black     arenadto.Player

	Resumed  bool
	Position string
	History  []arenadto.MoveEntry
}

// MatchedFunc receives the assignment; ownership of the session passes to the
// callee.
type MatchedFunc func(Assignment)

// WaitingFunc is notified when the authority queues the search.
type WaitingFunc func()

// Controller drives Idle → Searching → Matched. It owns the matchmaking
// event namespace on the shared transport and nothing else.
type Controller struct {
	bus transport.EventBus

	mu     sync.Mutex
	phase  Phase
	ticket string

	onMatched MatchedFunc
	onWaiting WaitingFunc

	subWaiting int
	subMatch   int
	subResume  int
}

func NewController(bus transport.EventBus) *Controller {
	c := &Controller{bus: bus, phase: PhaseIdle}
	c.subWaiting = bus.Subscribe(arenadto.EvWaitingForOpponent, c.handleWaiting)
	c.subMatch = bus.Subscribe(arenadto.EvMatchFound, c.handleMatchFound)
	c.subResume = bus.Subscribe(arenadto.EvSessionResumed, c.handleResumed)
	return c
}

// Close detaches the controller from the transport.
func (c *Controller) Close() {
	c.bus.Unsubscribe(arenadto.EvWaitingForOpponent, c.subWaiting)
	c.bus.Unsubscribe(arenadto.EvMatchFound, c.subMatch)
	c.bus.Unsubscribe(arenadto.EvSessionResumed, c.subResume)
}

func (c *Controller) OnMatched(fn MatchedFunc) { c.onMatched = fn }
func (c *Controller) OnWaiting(fn WaitingFunc) { c.onWaiting = fn }

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Search emits a find-opponent request. Valid only from Idle; the controller
// stays Idle when the transport rejects the emit.
func (c *Controller) Search(ctx context.Context, p Profile) error {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	ticket := uuid.NewString()
	c.mu.Unlock()

	req := arenadto.FindOpponent{
		PlayerKind:  p.Kind,
		DisplayName: strings.TrimSpace(p.DisplayName),
		PlayerID:    strings.TrimSpace(p.PlayerID),
		Ticket:      ticket,
	}
	if err := c.bus.Emit(ctx, arenadto.EvFindOpponent, &req); err != nil {
		return err
	}

	c.mu.Lock()
	c.phase = PhaseSearching
	c.ticket = ticket
	c.mu.Unlock()
	obslog.L().Info("mm_search", zap.String("ticket", ticket), zap.String("kind", string(p.Kind)))
	return nil
}

// Cancel withdraws a pending search and returns the controller to Idle. The
// local transition happens even if the emit fails; a disconnected transport
// drops the queued search server-side anyway.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseSearching {
		c.mu.Unlock()
		return ErrNotSearching
	}
	ticket := c.ticket
	c.phase = PhaseIdle
	c.ticket = ""
	c.mu.Unlock()

	obslog.L().Info("mm_cancel", zap.String("ticket", ticket))
	if err := c.bus.Emit(ctx, arenadto.EvCancelSearch, &arenadto.CancelSearch{Ticket: ticket}); err != nil {
		obslog.L().Warn("mm_cancel_emit", zap.Error(err))
	}
	return nil
}

// Reset returns a Matched controller to Idle so a new search can begin.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.ticket = ""
	c.mu.Unlock()
}

func (c *Controller) handleWaiting(_ json.RawMessage) {
	c.mu.Lock()
	searching := c.phase == PhaseSearching
	c.mu.Unlock()
	if !searching {
		return
	}
	obslog.L().Debug("mm_waiting")
	if c.onWaiting != nil {
		c.onWaiting()
	}
}

func (c *Controller) handleMatchFound(payload json.RawMessage) {
	var ev arenadto.MatchFound
	if err := json.Unmarshal(payload, &ev); err != nil {
		obslog.L().Warn("mm_match_decode", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.phase != PhaseSearching {
		// Stale notification after a cancel: suppress entirely.
		c.mu.Unlock()
		obslog.L().Info("mm_match_stale", zap.String("session_id", ev.SessionID))
		return
	}
	c.phase = PhaseMatched
	c.ticket = ""
	c.mu.Unlock()

	obslog.L().Info("mm_matched",
		zap.String("session_id", ev.SessionID),
		zap.String("my_color", ev.MyColor),
	)
	if c.onMatched != nil {
		c.onMatched(Assignment{
			SessionID: ev.SessionID,
			MyColor:   colorOf(ev.MyColor),
			White:     ev.WhitePlayer,
			Black:     ev.BlackPlayer,
		})
	}
}

// handleResumed bypasses Searching entirely: a reconnecting client can be
// dropped straight into its running session from any phase.
func (c *Controller) handleResumed(payload json.RawMessage) {
	var ev arenadto.SessionResumed
	if err := json.Unmarshal(payload, &ev); err != nil {
		obslog.L().Warn("mm_resume_decode", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.phase = PhaseMatched
	c.ticket = ""
	c.mu.Unlock()

	obslog.L().Info("mm_resumed",
		zap.String("session_id", ev.SessionID),
		zap.String("my_color", ev.MyColor),
		zap.Int("history_len", len(ev.MoveHistory)),
	)
	if c.onMatched != nil {
		c.onMatched(Assignment{
			SessionID: ev.SessionID,
			MyColor:   colorOf(ev.MyColor),
			White:     ev.WhitePlayer,
			Black:     ev.BlackPlayer,
			Resumed:   true,
			Position:  ev.Position,
			History:   ev.MoveHistory,
		})
	}
}

func colorOf(s string) rules.Color {
	if strings.EqualFold(strings.TrimSpace(s), "black") {
		return rules.Black
	}
	return rules.White
}
