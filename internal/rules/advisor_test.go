package rules

import (
	"strings"
	"testing"
)

func TestStartPosition(t *testing.T) {
	pos := Start()
	if pos.Turn != White {
		t.Fatalf("expected white to move, got %s", pos.Turn)
	}
	if !strings.Contains(pos.FEN, "rnbqkbnr/pppppppp") {
		t.Fatalf("unexpected start FEN: %s", pos.FEN)
	}
}

func TestApplyLegalMove(t *testing.T) {
	pos := Start()
	res, err := Apply(pos, Move{From: "e2", To: "e4"})
	if err != nil {
		t.Fatalf("Apply e2e4: %v", err)
	}
	if res.SAN != "e4" {
		t.Fatalf("expected SAN e4, got %q", res.SAN)
	}
	if res.UCI != "e2e4" {
		t.Fatalf("expected UCI e2e4, got %q", res.UCI)
	}
	if res.Position.Turn != Black {
		t.Fatalf("expected black to move after e4, got %s", res.Position.Turn)
	}
	if res.Position.FEN == pos.FEN {
		t.Fatalf("position did not change")
	}
	// Input is untouched
	if pos.Turn != White {
		t.Fatalf("input position mutated")
	}
}

func TestApplyIllegalMove(t *testing.T) {
	pos := Start()
	if _, err := Apply(pos, Move{From: "e2", To: "e5"}); err == nil {
		t.Fatalf("expected error for e2e5")
	}
	if _, err := Apply(pos, Move{From: "e2", To: ""}); err == nil {
		t.Fatalf("expected error for malformed move")
	}
}

func TestApplyAutoQueenPromotion(t *testing.T) {
	pos, err := FromFEN("8/P7/8/8/8/8/7k/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	res, err := Apply(pos, Move{From: "a7", To: "a8"})
	if err != nil {
		t.Fatalf("Apply promotion without piece: %v", err)
	}
	if !strings.Contains(res.SAN, "=Q") {
		t.Fatalf("expected queen promotion, got SAN %q", res.SAN)
	}
	if !strings.HasSuffix(res.UCI, "q") {
		t.Fatalf("expected queen in UCI, got %q", res.UCI)
	}
}

func TestApplyExplicitUnderPromotion(t *testing.T) {
	pos, err := FromFEN("8/P7/8/8/8/8/7k/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	res, err := Apply(pos, Move{From: "a7", To: "a8", Promotion: "r"})
	if err != nil {
		t.Fatalf("Apply rook promotion: %v", err)
	}
	if !strings.Contains(res.SAN, "=R") {
		t.Fatalf("explicit piece must not be overridden, got SAN %q", res.SAN)
	}
}

func TestFromFENMalformed(t *testing.T) {
	if _, err := FromFEN(""); err == nil {
		t.Fatalf("expected error for empty FEN")
	}
	if _, err := FromFEN("not a position"); err == nil {
		t.Fatalf("expected error for garbage FEN")
	}
}

func TestTurnAlternatesAcrossConfirmedMoves(t *testing.T) {
	pos := Start()
	moves := []Move{
		{From: "e2", To: "e4"},
		{From: "e7", To: "e5"},
		{From: "g1", To: "f3"},
		{From: "b8", To: "c6"},
	}
	want := []Color{Black, White, Black, White}
	for i, mv := range moves {
		res, err := Apply(pos, mv)
		if err != nil {
			t.Fatalf("move %d (%s%s): %v", i, mv.From, mv.To, err)
		}
		if res.Position.Turn != want[i] {
			t.Fatalf("move %d: expected %s to move, got %s", i, want[i], res.Position.Turn)
		}
		pos = res.Position
	}
}

func TestIsCheckHint(t *testing.T) {
	if c, m := IsCheckHint("Qh5+"); !c || m {
		t.Fatalf("expected check hint for Qh5+")
	}
	if c, m := IsCheckHint("Qxf7#"); c || !m {
		t.Fatalf("expected mate hint for Qxf7#")
	}
	if c, m := IsCheckHint("e4"); c || m {
		t.Fatalf("expected no hint for e4")
	}
}
