package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ArenaBaseURL string
	ArenaWSURL   string

	DisplayName string
	PlayerID    string
	PlayerKind  string

	ReconnectMaxAttempts int
	ReconnectDelay       time.Duration
	PingInterval         time.Duration

	NoticeTTL       time.Duration
	NoticeOverrides string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		PlayerKind:           "guest",
		ReconnectMaxAttempts: 5,
		ReconnectDelay:       time.Second,
		PingInterval:         30 * time.Second,
		NoticeTTL:            4 * time.Second,
	}

	cfg.ArenaBaseURL = strings.TrimSpace(os.Getenv("ARENA_BASE_URL"))
	cfg.ArenaWSURL = strings.TrimSpace(os.Getenv("ARENA_WS_URL"))

	cfg.DisplayName = strings.TrimSpace(os.Getenv("ARENA_DISPLAY_NAME"))
	cfg.PlayerID = strings.TrimSpace(os.Getenv("ARENA_PLAYER_ID"))
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("ARENA_PLAYER_KIND"))); v != "" {
		cfg.PlayerKind = v
	}
	if cfg.PlayerKind == "registered" && cfg.PlayerID == "" {
		return nil, errors.New("ARENA_PLAYER_ID required when ARENA_PLAYER_KIND=registered")
	}

	if v := strings.TrimSpace(os.Getenv("ARENA_RECONNECT_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ReconnectMaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_RECONNECT_DELAY")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ReconnectDelay = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_PING_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PingInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_NOTICE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.NoticeTTL = d
		}
	}
	cfg.NoticeOverrides = strings.TrimSpace(os.Getenv("ARENA_NOTICE_DIR"))

	if cfg.ArenaBaseURL == "" && cfg.ArenaWSURL == "" {
		return nil, errors.New("ARENA_BASE_URL or ARENA_WS_URL must be set")
	}
	return cfg, nil
}
