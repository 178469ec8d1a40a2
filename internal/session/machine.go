package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chess-arena/client-go/internal/matchmaking"
	"github.com/chess-arena/client-go/internal/msgcat"
	"github.com/chess-arena/client-go/internal/obslog"
	"github.com/chess-arena/client-go/internal/rules"
	"github.com/chess-arena/client-go/internal/transport"
	"github.com/chess-arena/client-go/pkg/arenadto"
)

type notice struct {
	text      string
	expiresAt time.Time
}

// Machine owns the session lifecycle: NoSession → WaitingForOpponent →
// Active → Terminated, with Terminated → NoSession only via Reset. All
// transitions are serialized under one mutex; the transport's read goroutine
// and the user are the only writers.
type Machine struct {
	bus       transport.EventBus
	notices   *msgcat.Catalog
	noticeTTL time.Duration

	mu        sync.Mutex
	status    Status
	session   *Session
	position  rules.Position // last authoritative snapshot
	candidate *CandidateMove
	history   []MoveRecord
	result    *Result
	paused    bool
	chat      []ChatMessage
	notice    *notice
	checkHint string

	onUpdate func()
	onChat   func(ChatMessage)

	subConfirmed    int
	subRejected     int
	subEnded        int
	subDisconnected int
	subChat         int
	subStatus       int
}

func NewMachine(bus transport.EventBus, notices *msgcat.Catalog, noticeTTL time.Duration) *Machine {
	if noticeTTL <= 0 {
		noticeTTL = 4 * time.Second
	}
	m := &Machine{
		bus:       bus,
		notices:   notices,
		noticeTTL: noticeTTL,
		status:    StatusNoSession,
		position:  rules.Start(),
	}
	m.subConfirmed = bus.Subscribe(arenadto.EvMoveConfirmed, m.handleMoveConfirmed)
	m.subRejected = bus.Subscribe(arenadto.EvMoveRejected, m.handleMoveRejected)
	m.subEnded = bus.Subscribe(arenadto.EvSessionEnded, m.handleSessionEnded)
	m.subDisconnected = bus.Subscribe(arenadto.EvOpponentDisconnected, m.handleOpponentDisconnected)
	m.subChat = bus.Subscribe(arenadto.EvChatReceived, m.handleChatReceived)
	m.subStatus = bus.OnStatus(m.handleTransportStatus)
	return m
}

// Close detaches the machine from the transport.
func (m *Machine) Close() {
	m.bus.Unsubscribe(arenadto.EvMoveConfirmed, m.subConfirmed)
	m.bus.Unsubscribe(arenadto.EvMoveRejected, m.subRejected)
	m.bus.Unsubscribe(arenadto.EvSessionEnded, m.subEnded)
	m.bus.Unsubscribe(arenadto.EvOpponentDisconnected, m.subDisconnected)
	m.bus.Unsubscribe(arenadto.EvChatReceived, m.subChat)
	m.bus.RemoveStatusHandler(m.subStatus)
}

// OnUpdate registers a re-render callback fired after every state change.
func (m *Machine) OnUpdate(fn func()) { m.onUpdate = fn }

// OnChat registers a callback for inbound chat messages.
func (m *Machine) OnChat(fn func(ChatMessage)) { m.onChat = fn }

// MarkWaiting enters WaitingForOpponent while a search is queued. Wire it to
// the matchmaking controller's waiting notification.
func (m *Machine) MarkWaiting() {
	m.mu.Lock()
	if m.status == StatusNoSession {
		m.status = StatusWaitingForOpponent
	}
	m.mu.Unlock()
	m.changed()
}

// Start consumes a matchmaking assignment: a fresh match initializes the
// start position and an empty history; a resume restores the carried
// snapshot and history. A resume is honored even while a session is already
// Active — the authority replays it after a reconnect, and its snapshot
// replaces whatever went stale during the outage. A resume snapshot that
// cannot be parsed closes the session rather than operating on unknown state.
func (m *Machine) Start(a matchmaking.Assignment) {
	m.mu.Lock()
	if m.status == StatusTerminated || (m.status == StatusActive && !a.Resumed) {
		m.mu.Unlock()
		obslog.L().Warn("session_start_ignored", zap.String("status", string(m.status)))
		return
	}

	sameSession := m.session != nil && m.session.ID == a.SessionID
	m.session = &Session{ID: a.SessionID, White: a.White, Black: a.Black, MyColor: a.MyColor}
	m.candidate = nil
	m.result = nil
	m.paused = false
	if !sameSession {
		m.chat = nil
	}
	m.checkHint = ""

	if !a.Resumed {
		m.position = rules.Start()
		m.history = nil
		m.status = StatusActive
		m.mu.Unlock()
		obslog.L().Info("session_start",
			zap.String("session_id", a.SessionID),
			zap.String("my_color", string(a.MyColor)),
		)
		m.changed()
		return
	}

	pos, err := rules.FromFEN(a.Position)
	if err != nil {
		m.status = StatusTerminated
		m.result = &Result{Kind: arenadto.ResultDisconnect, Reason: ReasonResyncFailed}
		m.setNoticeLocked("result.resync_failed", "Session could not be restored.", nil)
		m.mu.Unlock()
		obslog.L().Error("session_resume_failed",
			zap.String("session_id", a.SessionID),
			zap.Error(err),
		)
		m.changed()
		return
	}
	m.position = pos
	m.history = recordsFrom(a.History)
	m.status = StatusActive
	m.checkHint = hintFromHistory(m.history)
	historyLen := len(m.history)
	m.mu.Unlock()
	obslog.L().Info("session_resume",
		zap.String("session_id", a.SessionID),
		zap.String("my_color", string(a.MyColor)),
		zap.Int("history_len", historyLen),
	)
	m.changed()
}

// SubmitMove runs the local half of the reconciler: turn and legality checks
// with zero network on rejection, then the optimistic candidate overlay, then
// the authoritative submission.
func (m *Machine) SubmitMove(ctx context.Context, from, to, promotion string) error {
	if !m.bus.Connected() {
		return transport.ErrNotConnected
	}

	m.mu.Lock()
	switch {
	case m.status == StatusTerminated:
		m.mu.Unlock()
		return ErrTerminated
	case m.status != StatusActive || m.session == nil:
		m.mu.Unlock()
		return ErrNoSession
	case m.paused:
		m.mu.Unlock()
		return ErrPaused
	case m.candidate != nil:
		m.mu.Unlock()
		m.transientNotice("move.pending", "Move already pending.", nil)
		return ErrMovePending
	case m.position.Turn != m.session.MyColor:
		m.mu.Unlock()
		m.transientNotice("move.not_your_turn", "It's not your turn.", nil)
		return ErrNotYourTurn
	}

	mv := rules.Move{From: from, To: to, Promotion: promotion}
	applied, err := rules.Apply(m.position, mv)
	if err != nil {
		m.mu.Unlock()
		m.transientNotice("move.illegal", "That move is not legal.", nil)
		return err
	}

	m.candidate = &CandidateMove{Move: mv, Preview: applied.Position, SAN: applied.SAN}
	sessionID := m.session.ID
	m.mu.Unlock()
	m.changed()

	req := arenadto.SubmitMove{SessionID: sessionID, From: from, To: to, Promotion: promotion}
	if err := m.bus.Emit(ctx, arenadto.EvSubmitMove, &req); err != nil {
		// The move never left the client; drop the overlay.
		m.mu.Lock()
		m.candidate = nil
		m.mu.Unlock()
		m.changed()
		return err
	}
	obslog.L().Info("session_move_submit",
		zap.String("session_id", sessionID),
		zap.String("uci", applied.UCI),
		zap.String("san", applied.SAN),
	)
	return nil
}

// Resign forfeits the session. The terminal result still arrives from the
// authority as a session-ended event; nothing changes locally here.
func (m *Machine) Resign(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusActive || m.session == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	sessionID := m.session.ID
	m.mu.Unlock()

	if err := m.bus.Emit(ctx, arenadto.EvResign, &arenadto.Resign{SessionID: sessionID}); err != nil {
		return err
	}
	obslog.L().Info("session_resign", zap.String("session_id", sessionID))
	return nil
}

// Reset returns a Terminated machine to NoSession. Never automatic.
func (m *Machine) Reset() error {
	m.mu.Lock()
	if m.status != StatusTerminated {
		m.mu.Unlock()
		return ErrNotTerminated
	}
	m.status = StatusNoSession
	m.session = nil
	m.position = rules.Start()
	m.candidate = nil
	m.history = nil
	m.result = nil
	m.paused = false
	m.chat = nil
	m.notice = nil
	m.checkHint = ""
	m.mu.Unlock()
	obslog.L().Info("session_reset")
	m.changed()
	return nil
}

// View returns an immutable render snapshot.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Status:    m.status,
		Position:  m.position,
		Turn:      m.position.Turn,
		Paused:    m.paused,
		CheckHint: m.checkHint,
	}
	if m.session != nil {
		s := *m.session
		v.Session = &s
		v.MyTurn = m.status == StatusActive && !m.paused &&
			m.candidate == nil && m.position.Turn == s.MyColor
	}
	if m.candidate != nil {
		c := *m.candidate
		v.Pending = &c
		v.Position = c.Preview
	}
	if len(m.history) > 0 {
		v.History = make([]MoveRecord, len(m.history))
		copy(v.History, m.history)
	}
	if m.result != nil {
		r := *m.result
		v.Result = &r
	}
	if m.notice != nil && time.Now().Before(m.notice.expiresAt) {
		v.Notice = m.notice.text
	}
	return v
}

// handleMoveConfirmed is the authoritative half of the reconciler: the
// candidate is discarded whether or not it matches, the position is replaced
// wholesale, and the turn is recomputed from the snapshot alone.
func (m *Machine) handleMoveConfirmed(payload json.RawMessage) {
	var ev arenadto.MoveConfirmed
	if err := json.Unmarshal(payload, &ev); err != nil {
		obslog.L().Warn("session_confirm_decode", zap.Error(err))
		return
	}

	m.mu.Lock()
	if m.status != StatusActive || m.session == nil {
		m.mu.Unlock()
		obslog.L().Debug("session_confirm_dropped", zap.String("status", string(m.status)))
		return
	}

	pos, err := rules.FromFEN(ev.Position)
	if err != nil {
		// An untrusted snapshot poisons everything downstream; close the
		// session instead of guessing.
		m.status = StatusTerminated
		m.candidate = nil
		m.result = &Result{Kind: arenadto.ResultDisconnect, Reason: ReasonResyncFailed}
		m.setNoticeLocked("result.resync_failed", "Session could not be restored.", nil)
		sessionID := m.session.ID
		m.mu.Unlock()
		obslog.L().Error("session_snapshot_invalid", zap.String("session_id", sessionID), zap.Error(err))
		m.changed()
		return
	}

	m.candidate = nil
	m.position = pos
	m.history = recordsFrom(ev.MoveHistory)
	m.checkHint = hintFromHistory(m.history)
	// Opponent activity proves they are back.
	m.paused = false
	sessionID := m.session.ID
	m.mu.Unlock()

	obslog.L().Info("session_move_confirmed",
		zap.String("session_id", sessionID),
		zap.String("turn", string(pos.Turn)),
		zap.Int("history_len", len(ev.MoveHistory)),
	)
	m.changed()
}

// handleMoveRejected reverts to the last authoritative snapshot. Rejection is
// never fatal to the session.
func (m *Machine) handleMoveRejected(payload json.RawMessage) {
	var ev arenadto.MoveRejected
	if err := json.Unmarshal(payload, &ev); err != nil {
		obslog.L().Warn("session_reject_decode", zap.Error(err))
		return
	}

	reason := ev.Reason
	if reason == "" && ev.Error != nil {
		reason = ev.Error.Error()
	}

	m.mu.Lock()
	hadCandidate := m.candidate != nil
	m.candidate = nil
	m.mu.Unlock()

	obslog.L().Info("session_move_rejected",
		zap.String("reason", reason),
		zap.Bool("had_candidate", hadCandidate),
	)
	if hadCandidate {
		m.transientNotice("move.rejected", "Move rejected: "+reason, map[string]any{"Reason": reason})
	}
}

func (m *Machine) handleSessionEnded(payload json.RawMessage) {
	var ev arenadto.SessionEnded
	if err := json.Unmarshal(payload, &ev); err != nil {
		obslog.L().Warn("session_end_decode", zap.Error(err))
		return
	}

	m.mu.Lock()
	if m.session == nil || m.status == StatusTerminated {
		m.mu.Unlock()
		return
	}
	m.status = StatusTerminated
	m.candidate = nil
	m.paused = false
	m.result = &Result{Kind: ev.Kind, Reason: ev.Reason, Winner: ev.Winner, Resigned: ev.Resigned}
	sessionID := m.session.ID
	m.setNoticeLocked(resultNoticeKey(ev.Kind), "Game over.", resultNoticeData(&ev))
	m.mu.Unlock()

	obslog.L().Info("session_ended",
		zap.String("session_id", sessionID),
		zap.String("kind", string(ev.Kind)),
		zap.String("reason", ev.Reason),
	)
	m.changed()
}

// handleOpponentDisconnected pauses the session. This is not a forfeiture;
// the outcome, if any, arrives later as session-ended.
func (m *Machine) handleOpponentDisconnected(payload json.RawMessage) {
	var ev arenadto.OpponentDisconnected
	if err := json.Unmarshal(payload, &ev); err != nil {
		obslog.L().Warn("session_opp_disconnect_decode", zap.Error(err))
		return
	}

	m.mu.Lock()
	if m.status != StatusActive {
		m.mu.Unlock()
		return
	}
	m.paused = true
	name := ev.DisconnectedPlayer.DisplayName
	m.setNoticeLocked("opponent.disconnected", name+" disconnected.", map[string]any{"Name": name})
	m.mu.Unlock()

	obslog.L().Info("session_opponent_disconnected", zap.String("player", name))
	m.changed()
}

// handleTransportStatus implements the reconnection rule: a pending candidate
// is unconditionally discarded because its fate during the outage is unknown.
// The next state-bearing event replaces the position wholesale as usual.
func (m *Machine) handleTransportStatus(st transport.Status) {
	switch {
	case st.State == transport.StateConnected && st.Reconnected:
		m.mu.Lock()
		dropped := m.candidate != nil
		m.candidate = nil
		m.mu.Unlock()
		obslog.L().Info("session_reconnected", zap.Bool("candidate_dropped", dropped))
		m.transientNotice("connection.restored", "Connection restored.", nil)
	case st.State == transport.StateDisconnected || st.State == transport.StateReconnecting:
		m.transientNotice("connection.lost", "Connection lost.", nil)
	}
}

func (m *Machine) changed() {
	if m.onUpdate != nil {
		m.onUpdate()
	}
}

func (m *Machine) transientNotice(key, fallback string, data map[string]any) {
	m.mu.Lock()
	m.setNoticeLocked(key, fallback, data)
	m.mu.Unlock()
	m.changed()
}

func (m *Machine) setNoticeLocked(key, fallback string, data map[string]any) {
	text := fallback
	if m.notices != nil {
		text = m.notices.RenderOr(key, fallback, data)
	}
	m.notice = &notice{text: text, expiresAt: time.Now().Add(m.noticeTTL)}
}

func recordsFrom(entries []arenadto.MoveEntry) []MoveRecord {
	if len(entries) == 0 {
		return nil
	}
	out := make([]MoveRecord, 0, len(entries))
	for _, e := range entries {
		color := rules.White
		if strings.EqualFold(e.Color, "black") {
			color = rules.Black
		}
		out = append(out, MoveRecord{
			From:      e.From,
			To:        e.To,
			Promotion: e.Promotion,
			SAN:       e.SAN,
			Color:     color,
		})
	}
	return out
}

func hintFromHistory(history []MoveRecord) string {
	if len(history) == 0 {
		return ""
	}
	check, mate := rules.IsCheckHint(history[len(history)-1].SAN)
	switch {
	case mate:
		return "mate"
	case check:
		return "check"
	default:
		return ""
	}
}

func resultNoticeKey(kind arenadto.ResultKind) string {
	switch kind {
	case arenadto.ResultCheckmate:
		return "result.checkmate"
	case arenadto.ResultDraw:
		return "result.draw"
	case arenadto.ResultResignation:
		return "result.resignation"
	default:
		return "result.disconnect"
	}
}

func resultNoticeData(ev *arenadto.SessionEnded) map[string]any {
	data := map[string]any{"Reason": ev.Reason, "Winner": "", "Resigned": ""}
	if ev.Winner != nil {
		data["Winner"] = ev.Winner.DisplayName
	}
	if ev.Resigned != nil {
		data["Resigned"] = ev.Resigned.DisplayName
	}
	return data
}
