package session

import (
	"time"

	"github.com/chess-arena/client-go/internal/rules"
	"github.com/chess-arena/client-go/pkg/arenadto"
)

// Status is the session machine lifecycle state. Exactly one holds at a time.
type Status string

const (
	StatusNoSession          Status = "NO_SESSION"
	StatusWaitingForOpponent Status = "WAITING_FOR_OPPONENT"
	StatusActive             Status = "ACTIVE"
	StatusTerminated         Status = "TERMINATED"
)

// Session identifies one live game. Players and color are immutable once the
// session starts.
type Session struct {
	ID      string
	White   arenadto.Player
	Black   arenadto.Player
	MyColor rules.Color
}

// Opponent returns the remote player.
func (s Session) Opponent() arenadto.Player {
	if s.MyColor == rules.White {
		return s.Black
	}
	return s.White
}

// MoveRecord is one confirmed move. History holds only authoritative moves,
// never optimistic candidates.
type MoveRecord struct {
	From      string
	To        string
	Promotion string
	SAN       string
	Color     rules.Color
}

// CandidateMove is the single optimistic move awaiting the authority's
// verdict. Preview is the locally computed position overlay.
type CandidateMove struct {
	Move    rules.Move
	Preview rules.Position
	SAN     string
}

// Result is the terminal outcome. Created once, never revised.
type Result struct {
	Kind     arenadto.ResultKind
	Reason   string
	Winner   *arenadto.Player
	Resigned *arenadto.Player
}

// ReasonResyncFailed marks a session closed because a snapshot could not be
// trusted; the authority never reported an outcome.
const ReasonResyncFailed = "resync-failed"

// ChatMessage is one utterance in the session chat channel.
type ChatMessage struct {
	Sender string
	Text   string
	At     time.Time
}

// View is an immutable render snapshot of the machine.
type View struct {
	Status  Status
	Session *Session

	// Position is the displayed position: the last authoritative snapshot,
	// plus at most the pending candidate overlay.
	Position rules.Position
	Pending  *CandidateMove
	History  []MoveRecord

	// Turn is derived solely from the authoritative snapshot.
	Turn   rules.Color
	MyTurn bool
	Paused bool

	Result *Result
	Notice string

	// CheckHint is advisory display only ("check", "mate", or empty).
	CheckHint string
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrNoSession     = staticErr("no active session")
	ErrNotYourTurn   = staticErr("not your turn")
	ErrMovePending   = staticErr("a move is already awaiting confirmation")
	ErrTerminated    = staticErr("session already terminated")
	ErrPaused        = staticErr("session paused: opponent disconnected")
	ErrNotTerminated = staticErr("session still in progress")
	ErrChatScope     = staticErr("chat requires an active session")
)
