package arenadto

import "encoding/json"

// Event names exchanged with the session authority. Outbound names are
// client→authority, inbound names authority→client.
const (
	EvFindOpponent         = "find-opponent"
	EvCancelSearch         = "cancel-search"
	EvWaitingForOpponent   = "waiting-for-opponent"
	EvMatchFound           = "match-found"
	EvSessionResumed       = "session-resumed"
	EvSubmitMove           = "submit-move"
	EvMoveConfirmed        = "move-confirmed"
	EvMoveRejected         = "move-rejected"
	EvSessionEnded         = "session-ended"
	EvOpponentDisconnected = "opponent-disconnected"
	EvResign               = "resign"
	EvSendChat             = "send-chat"
	EvChatReceived         = "chat-received"
)

// Envelope is the single frame format on the wire: an event name plus its
// raw payload. Payload stays undecoded until a subscriber picks it up.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlayerKind distinguishes guest and registered identities.
type PlayerKind string

const (
	PlayerGuest      PlayerKind = "guest"
	PlayerRegistered PlayerKind = "registered"
)

// Player identifies one side of a session.
type Player struct {
	ID          string     `json:"id,omitempty"`
	DisplayName string     `json:"displayName"`
	Kind        PlayerKind `json:"kind"`
}

// FindOpponent is the matchmaking search request.
type FindOpponent struct {
	PlayerKind  PlayerKind `json:"playerKind"`
	DisplayName string     `json:"displayName"`
	PlayerID    string     `json:"playerId,omitempty"`
	Ticket      string     `json:"ticket,omitempty"`
}

// CancelSearch withdraws a pending search.
type CancelSearch struct {
	Ticket string `json:"ticket,omitempty"`
}

// MatchFound confirms a fresh pairing.
type MatchFound struct {
	SessionID   string `json:"sessionId"`
	MyColor     string `json:"myColor"`
	WhitePlayer Player `json:"whitePlayer"`
	BlackPlayer Player `json:"blackPlayer"`
}

// MoveEntry is one confirmed move as the authority records it.
type MoveEntry struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	Color     string `json:"color"`
}

// SessionResumed carries the full state needed to rejoin a running session.
type SessionResumed struct {
	SessionID   string      `json:"sessionId"`
	MyColor     string      `json:"myColor"`
	Position    string      `json:"position"`
	MoveHistory []MoveEntry `json:"moveHistory"`
	WhitePlayer Player      `json:"whitePlayer"`
	BlackPlayer Player      `json:"blackPlayer"`
}

// SubmitMove is the candidate move sent for authoritative validation.
type SubmitMove struct {
	SessionID string `json:"sessionId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// MoveConfirmed replaces client state wholesale. IsLocalTurn is transmitted
// by the authority but clients derive the turn from Position instead; the
// field is kept for wire compatibility.
type MoveConfirmed struct {
	Position    string      `json:"position"`
	MoveHistory []MoveEntry `json:"moveHistory"`
	IsLocalTurn bool        `json:"isLocalTurn"`
}

// MoveRejected reports an authoritative rejection of the pending candidate.
// Newer authorities attach a structured error; Reason alone is still valid.
type MoveRejected struct {
	Reason string       `json:"reason"`
	Error  *DomainError `json:"error,omitempty"`
}

// ResultKind enumerates terminal session outcomes.
type ResultKind string

const (
	ResultCheckmate   ResultKind = "checkmate"
	ResultDraw        ResultKind = "draw"
	ResultResignation ResultKind = "resignation"
	ResultDisconnect  ResultKind = "disconnect"
)

// SessionEnded is the authority's terminal determination.
type SessionEnded struct {
	Kind     ResultKind `json:"kind"`
	Reason   string     `json:"reason,omitempty"`
	Winner   *Player    `json:"winner,omitempty"`
	Resigned *Player    `json:"resigned,omitempty"`
}

// OpponentDisconnected pauses the session pending an authoritative outcome.
type OpponentDisconnected struct {
	DisconnectedPlayer Player `json:"disconnectedPlayer"`
}

// Resign forfeits the session; the terminal result still arrives as a
// separate SessionEnded event.
type Resign struct {
	SessionID string `json:"sessionId"`
}

// SendChat posts a message to the session chat channel.
type SendChat struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// ChatReceived is an inbound chat message.
type ChatReceived struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}
