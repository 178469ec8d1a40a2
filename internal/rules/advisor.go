package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Position is an immutable board-state value: a full FEN snapshot plus the
// side to move derived from it. It is replaced wholesale, never patched.
type Position struct {
	FEN  string
	Turn Color
}

// Move is a candidate move in coordinate form. Promotion is a single piece
// letter (q, r, b, n) and may be empty; promotions default to queen.
type Move struct {
	From      string
	To        string
	Promotion string
}

// UCI returns the move in UCI coordinate notation.
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

// Applied is the outcome of applying one legal move to a position.
type Applied struct {
	Position Position
	SAN      string
	UCI      string
	// Outcome is advisory only: "white", "black", "draw", or "" while the
	// game is still open. Terminal determinations belong to the authority.
	Outcome string
}

// Start returns the standard initial position.
func Start() Position {
	g := nchess.NewGame()
	return Position{FEN: g.FEN(), Turn: colorFrom(g.Position().Turn())}
}

// FromFEN validates a snapshot and derives the side to move. A failure here
// means the snapshot cannot be trusted at all.
func FromFEN(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return Position{}, fmt.Errorf("empty position snapshot")
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("parse position: %w", err)
	}
	g := nchess.NewGame(opt)
	return Position{FEN: g.FEN(), Turn: colorFrom(g.Position().Turn())}, nil
}

// Apply is the pure legality check: it never mutates its input and returns a
// fresh Position on success. Structurally illegal moves return an error
// without touching any shared state.
func Apply(pos Position, mv Move) (Applied, error) {
	opt, err := nchess.FEN(pos.FEN)
	if err != nil {
		return Applied{}, fmt.Errorf("parse position: %w", err)
	}
	g := nchess.NewGame(opt)
	before := g.Position()

	uci := mv.UCI()
	if len(uci) < 4 {
		return Applied{}, fmt.Errorf("malformed move %q", uci)
	}
	tryMove := func(coord string) (*nchess.Move, error) {
		decoded, err := nchess.UCINotation{}.Decode(before, coord)
		if err != nil {
			return nil, err
		}
		if err := g.Move(decoded, nil); err != nil {
			return nil, err
		}
		return decoded, nil
	}

	decoded, merr := tryMove(uci)
	if merr != nil && mv.Promotion == "" {
		// Auto-queen. Decode checks syntax only, so a bare a7a8 fails at
		// Move, not Decode; the queen retry has to cover both.
		decoded, merr = tryMove(uci + "q")
	}
	if merr != nil {
		return Applied{}, fmt.Errorf("illegal move %s: %w", uci, merr)
	}
	san := nchess.AlgebraicNotation{}.Encode(before, decoded)

	res := Applied{
		Position: Position{FEN: g.FEN(), Turn: colorFrom(g.Position().Turn())},
		SAN:      san,
		UCI:      decoded.String(),
	}
	switch g.Outcome() {
	case nchess.WhiteWon:
		res.Outcome = "white"
	case nchess.BlackWon:
		res.Outcome = "black"
	case nchess.Draw:
		res.Outcome = "draw"
	}
	return res, nil
}

// IsCheckHint reports whether a confirmed SAN move gave check or mate. Used
// for the advisory status banner only.
func IsCheckHint(san string) (check, mate bool) {
	san = strings.TrimSpace(san)
	return strings.HasSuffix(san, "+"), strings.HasSuffix(san, "#")
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}
