package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appcfg "github.com/chess-arena/client-go/internal/config"
	"github.com/chess-arena/client-go/internal/matchmaking"
	"github.com/chess-arena/client-go/internal/msgcat"
	"github.com/chess-arena/client-go/internal/obslog"
	"github.com/chess-arena/client-go/internal/rules"
	"github.com/chess-arena/client-go/internal/session"
	"github.com/chess-arena/client-go/internal/transport"
	"github.com/chess-arena/client-go/pkg/arenadto"
)

func main() {
	_ = godotenv.Load()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	wsURL := cfg.ArenaWSURL
	if wsURL == "" {
		// Bootstrap: the authority tells us where its websocket lives.
		client := transport.NewClient(cfg.ArenaBaseURL)
		bctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		sc, err := client.FetchSessionConfig(bctx)
		cancel()
		if err != nil {
			log.Fatalf("session config error: %v", err)
		}
		wsURL = sc.WSURL
		if sc.MOTD != "" {
			fmt.Println(sc.MOTD)
		}
		if cfg.PlayerKind == "guest" && !sc.GuestPlayAllowed {
			log.Fatalf("guest play is disabled on this server; set ARENA_PLAYER_KIND=registered")
		}
	}

	notices, err := msgcat.New(cfg.NoticeOverrides)
	if err != nil {
		log.Fatalf("notices init error: %v", err)
	}

	conn := transport.NewConn(wsURL, cfg.ReconnectMaxAttempts, cfg.ReconnectDelay)
	conn.SetPingInterval(cfg.PingInterval)

	machine := session.NewMachine(conn, notices, cfg.NoticeTTL)
	ctrl := matchmaking.NewController(conn)
	ctrl.OnWaiting(machine.MarkWaiting)
	ctrl.OnMatched(machine.Start)

	machine.OnUpdate(func() { render(machine.View()) })
	machine.OnChat(func(msg session.ChatMessage) {
		fmt.Printf("[chat] %s: %s\n", msg.Sender, msg.Text)
	})
	conn.OnStatus(func(st transport.Status) {
		if st.State == transport.StateFailed {
			fmt.Println("Connection failed permanently; restart the client.")
		}
	})

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = conn.Connect(cctx)
	cancel()
	if err != nil {
		log.Fatalf("ws connect error: %v", err)
	}
	obslog.L().Info("ws_connected", zap.String("url", wsURL))
	fmt.Println("Connected. Type 'help' for commands.")

	profile := matchmaking.Profile{
		Kind:        arenadto.PlayerKind(cfg.PlayerKind),
		DisplayName: cfg.DisplayName,
		PlayerID:    cfg.PlayerID,
	}
	if profile.DisplayName == "" {
		profile.DisplayName = "guest"
	}

	done := make(chan struct{})
	go inputLoop(machine, ctrl, profile, done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-done:
	}

	ctrl.Close()
	machine.Close()
	_ = conn.Close(context.Background())
	obslog.L().Info("client_shutdown")
}

func inputLoop(machine *session.Machine, ctrl *matchmaking.Controller, profile matchmaking.Profile, done chan<- struct{}) {
	defer close(done)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		ctx := context.Background()

		switch cmd {
		case "help":
			printHelp()
		case "search":
			if err := ctrl.Search(ctx, profile); err != nil {
				fmt.Println("search:", err)
			}
		case "cancel":
			if err := ctrl.Cancel(ctx); err != nil {
				fmt.Println("cancel:", err)
			}
		case "move":
			from, to, promo, err := parseMove(fields[1:])
			if err != nil {
				fmt.Println("move:", err)
				continue
			}
			if err := machine.SubmitMove(ctx, from, to, promo); err != nil {
				fmt.Println("move:", err)
			}
		case "resign":
			if err := machine.Resign(ctx); err != nil {
				fmt.Println("resign:", err)
			}
		case "chat":
			if err := machine.SendChat(ctx, strings.TrimSpace(strings.TrimPrefix(line, fields[0]))); err != nil {
				fmt.Println("chat:", err)
			}
		case "board":
			render(machine.View())
		case "history":
			fmt.Println(session.FormatHistory(machine.View().History))
		case "new":
			if err := machine.Reset(); err != nil {
				fmt.Println("new:", err)
				continue
			}
			ctrl.Reset()
			fmt.Println("Ready for a new game. Type 'search' to find an opponent.")
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command; type 'help'")
		}
	}
}

// parseMove accepts "e2e4", "e2 e4", and "e7 e8 q".
func parseMove(args []string) (from, to, promo string, err error) {
	switch len(args) {
	case 1:
		uci := strings.ToLower(args[0])
		if len(uci) < 4 {
			return "", "", "", fmt.Errorf("expected a move like e2e4")
		}
		from, to = uci[:2], uci[2:4]
		if len(uci) > 4 {
			promo = uci[4:]
		}
	case 2:
		from, to = strings.ToLower(args[0]), strings.ToLower(args[1])
	case 3:
		from, to, promo = strings.ToLower(args[0]), strings.ToLower(args[1]), strings.ToLower(args[2])
	default:
		return "", "", "", fmt.Errorf("usage: move e2e4 | move e2 e4 [q]")
	}
	return from, to, promo, nil
}

func render(v session.View) {
	switch v.Status {
	case session.StatusNoSession:
		fmt.Println("No game. Type 'search' to find an opponent.")
	case session.StatusWaitingForOpponent:
		fmt.Println("Waiting for an opponent...")
	case session.StatusActive, session.StatusTerminated:
		flip := v.Session != nil && v.Session.MyColor == rules.Black
		fmt.Print(asciiBoard(v.Position.FEN, flip))
		if hist := session.FormatHistory(v.History); hist != "" {
			fmt.Println(hist)
		}
		switch {
		case v.Status == session.StatusTerminated && v.Result != nil:
			fmt.Printf("Game over: %s", v.Result.Kind)
			if v.Result.Winner != nil {
				fmt.Printf(" — %s wins", v.Result.Winner.DisplayName)
			}
			fmt.Println()
		case v.Paused:
			fmt.Println("Opponent disconnected; game paused.")
		case v.Pending != nil:
			fmt.Printf("Sent %s, waiting for the server...\n", v.Pending.SAN)
		case v.MyTurn:
			fmt.Println("Your move.")
		default:
			fmt.Printf("%s to move.\n", v.Turn)
		}
		if v.CheckHint != "" {
			fmt.Printf("(%s)\n", v.CheckHint)
		}
	}
	if v.Notice != "" {
		fmt.Println("*", v.Notice)
	}
}

// asciiBoard prints the piece-placement field of a FEN, white at the bottom
// unless flipped.
func asciiBoard(fen string, flip bool) string {
	placement := strings.Fields(fen)
	if len(placement) == 0 {
		return ""
	}
	ranks := strings.Split(placement[0], "/")
	if len(ranks) != 8 {
		return ""
	}

	grid := make([][8]byte, 8)
	for r, rank := range ranks {
		file := 0
		for i := 0; i < len(rank) && file < 8; i++ {
			ch := rank[i]
			if ch >= '1' && ch <= '8' {
				for n := 0; n < int(ch-'0') && file < 8; n++ {
					grid[r][file] = '.'
					file++
				}
				continue
			}
			grid[r][file] = ch
			file++
		}
	}

	var b strings.Builder
	for i := 0; i < 8; i++ {
		r := i
		if flip {
			r = 7 - i
		}
		fmt.Fprintf(&b, "%d ", 8-r)
		for j := 0; j < 8; j++ {
			f := j
			if flip {
				f = 7 - j
			}
			b.WriteByte(' ')
			b.WriteByte(grid[r][f])
		}
		b.WriteByte('\n')
	}
	b.WriteString("  ")
	files := "abcdefgh"
	for j := 0; j < 8; j++ {
		f := j
		if flip {
			f = 7 - j
		}
		b.WriteByte(' ')
		b.WriteByte(files[f])
	}
	b.WriteByte('\n')
	return b.String()
}

func printHelp() {
	fmt.Println(`commands:
  search          find an opponent
  cancel          cancel a pending search
  move e2e4       submit a move (also: move e2 e4 [q])
  resign          resign the game
  chat <text>     send a chat message
  board           reprint the board
  history         print the move list
  new             leave a finished game
  quit            exit`)
}
