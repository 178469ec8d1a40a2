package main

import (
	"strings"
	"testing"

	"github.com/chess-arena/client-go/internal/rules"
)

func TestAsciiBoardOrientation(t *testing.T) {
	fen := rules.Start().FEN

	white := strings.Split(asciiBoard(fen, false), "\n")
	if !strings.HasPrefix(white[0], "8 ") || !strings.Contains(white[8], "a b c") {
		t.Fatalf("white orientation broken:\n%s", asciiBoard(fen, false))
	}

	black := strings.Split(asciiBoard(fen, true), "\n")
	if !strings.HasPrefix(black[0], "1 ") || !strings.Contains(black[8], "h g f") {
		t.Fatalf("black orientation broken:\n%s", asciiBoard(fen, true))
	}
	// White's back rank renders at the top when flipped.
	if !strings.Contains(black[0], "R") {
		t.Fatalf("expected white pieces on the first printed rank:\n%s", asciiBoard(fen, true))
	}

	if asciiBoard("garbage", false) != "" {
		t.Fatalf("malformed FEN must render nothing")
	}
}

func TestParseMove(t *testing.T) {
	from, to, promo, err := parseMove([]string{"e2e4"})
	if err != nil || from != "e2" || to != "e4" || promo != "" {
		t.Fatalf("compact form: %s %s %s %v", from, to, promo, err)
	}
	from, to, promo, err = parseMove([]string{"a7a8q"})
	if err != nil || from != "a7" || to != "a8" || promo != "q" {
		t.Fatalf("compact promotion: %s %s %s %v", from, to, promo, err)
	}
	from, to, promo, err = parseMove([]string{"E2", "E4"})
	if err != nil || from != "e2" || to != "e4" {
		t.Fatalf("two-field form: %s %s %s %v", from, to, promo, err)
	}
	if _, _, _, err := parseMove([]string{"e2"}); err == nil {
		t.Fatalf("expected error for truncated move")
	}
	if _, _, _, err := parseMove(nil); err == nil {
		t.Fatalf("expected error for empty args")
	}
}
