package matchmaking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess-arena/client-go/internal/rules"
	"github.com/chess-arena/client-go/internal/transport/transporttest"
	"github.com/chess-arena/client-go/pkg/arenadto"
)

func newTestController(t *testing.T) (*Controller, *transporttest.Bus) {
	t.Helper()
	bus := transporttest.New()
	c := NewController(bus)
	t.Cleanup(c.Close)
	return c, bus
}

func TestSearchTransitionsToSearching(t *testing.T) {
	c, bus := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Search(ctx, Profile{Kind: arenadto.PlayerGuest, DisplayName: "anon"}))
	assert.Equal(t, PhaseSearching, c.Phase())

	var req arenadto.FindOpponent
	require.True(t, bus.LastEmitted(arenadto.EvFindOpponent, &req))
	assert.Equal(t, arenadto.PlayerGuest, req.PlayerKind)
	assert.Equal(t, "anon", req.DisplayName)
	assert.NotEmpty(t, req.Ticket)

	// Second search while one is pending is rejected without reaching the wire
	err := c.Search(ctx, Profile{Kind: arenadto.PlayerGuest, DisplayName: "anon"})
	assert.ErrorIs(t, err, ErrNotIdle)
	assert.Len(t, bus.EmittedNames(), 1)
}

func TestSearchFailsWhileDisconnected(t *testing.T) {
	c, bus := newTestController(t)
	bus.SetConnected(false, false)

	err := c.Search(context.Background(), Profile{Kind: arenadto.PlayerGuest, DisplayName: "anon"})
	require.Error(t, err)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestMatchFoundHandsOffAssignment(t *testing.T) {
	c, bus := newTestController(t)
	var got *Assignment
	c.OnMatched(func(a Assignment) { got = &a })

	require.NoError(t, c.Search(context.Background(), Profile{Kind: arenadto.PlayerRegistered, DisplayName: "kai", PlayerID: "p1"}))
	bus.Inject(t, arenadto.EvMatchFound, arenadto.MatchFound{
		SessionID:   "s1",
		MyColor:     "black",
		WhitePlayer: arenadto.Player{DisplayName: "vera", Kind: arenadto.PlayerRegistered},
		BlackPlayer: arenadto.Player{DisplayName: "kai", Kind: arenadto.PlayerRegistered},
	})

	require.NotNil(t, got)
	assert.Equal(t, PhaseMatched, c.Phase())
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, rules.Black, got.MyColor)
	assert.False(t, got.Resumed)
}

func TestCancelSuppressesLateMatch(t *testing.T) {
	c, bus := newTestController(t)
	matched := false
	c.OnMatched(func(Assignment) { matched = true })

	require.NoError(t, c.Search(context.Background(), Profile{Kind: arenadto.PlayerGuest, DisplayName: "anon"}))
	require.NoError(t, c.Cancel(context.Background()))
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Contains(t, bus.EmittedNames(), arenadto.EvCancelSearch)

	// The match raced the cancel: it must be dropped.
	bus.Inject(t, arenadto.EvMatchFound, arenadto.MatchFound{SessionID: "late", MyColor: "white"})
	assert.False(t, matched)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestCancelOutsideSearchingIsBenign(t *testing.T) {
	c, _ := newTestController(t)
	err := c.Cancel(context.Background())
	assert.ErrorIs(t, err, ErrNotSearching)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestResumeBypassesSearching(t *testing.T) {
	c, bus := newTestController(t)
	var got *Assignment
	c.OnMatched(func(a Assignment) { got = &a })

	bus.Inject(t, arenadto.EvSessionResumed, arenadto.SessionResumed{
		SessionID: "s9",
		MyColor:   "white",
		Position:  "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		MoveHistory: []arenadto.MoveEntry{
			{From: "e2", To: "e4", SAN: "e4", Color: "white"},
		},
		WhitePlayer: arenadto.Player{DisplayName: "kai"},
		BlackPlayer: arenadto.Player{DisplayName: "vera"},
	})

	require.NotNil(t, got)
	assert.Equal(t, PhaseMatched, c.Phase())
	assert.True(t, got.Resumed)
	assert.Len(t, got.History, 1)
	assert.Equal(t, rules.White, got.MyColor)
}

func TestWaitingNotification(t *testing.T) {
	c, bus := newTestController(t)
	waits := 0
	c.OnWaiting(func() { waits++ })

	// Ignored while idle
	bus.Inject(t, arenadto.EvWaitingForOpponent, nil)
	assert.Zero(t, waits)

	require.NoError(t, c.Search(context.Background(), Profile{Kind: arenadto.PlayerGuest, DisplayName: "anon"}))
	bus.Inject(t, arenadto.EvWaitingForOpponent, nil)
	assert.Equal(t, 1, waits)
}

func TestResetAfterMatch(t *testing.T) {
	c, bus := newTestController(t)
	c.OnMatched(func(Assignment) {})
	require.NoError(t, c.Search(context.Background(), Profile{Kind: arenadto.PlayerGuest, DisplayName: "anon"}))
	bus.Inject(t, arenadto.EvMatchFound, arenadto.MatchFound{SessionID: "s1", MyColor: "white"})
	require.Equal(t, PhaseMatched, c.Phase())

	c.Reset()
	assert.Equal(t, PhaseIdle, c.Phase())
	require.NoError(t, c.Search(context.Background(), Profile{Kind: arenadto.PlayerGuest, DisplayName: "anon"}))
}
