package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chess-arena/client-go/internal/obslog"
	"github.com/chess-arena/client-go/pkg/arenadto"
)

// SendChat posts a message on the session chat channel. Chat is scoped to the
// live session: with no session, or after termination, the message is
// rejected locally and never reaches the transport.
func (m *Machine) SendChat(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	if m.status != StatusActive || m.session == nil {
		m.mu.Unlock()
		m.transientNotice("chat.no_session", "You can only chat during a game.", nil)
		return ErrChatScope
	}
	sessionID := m.session.ID
	m.mu.Unlock()

	if err := m.bus.Emit(ctx, arenadto.EvSendChat, &arenadto.SendChat{SessionID: sessionID, Text: text}); err != nil {
		return err
	}
	obslog.L().Debug("chat_sent", zap.String("session_id", sessionID))
	return nil
}

// Chat returns a copy of the append-only message log for the current session.
func (m *Machine) Chat() []ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.chat) == 0 {
		return nil
	}
	out := make([]ChatMessage, len(m.chat))
	copy(out, m.chat)
	return out
}

func (m *Machine) handleChatReceived(payload json.RawMessage) {
	var ev arenadto.ChatReceived
	if err := json.Unmarshal(payload, &ev); err != nil {
		obslog.L().Warn("chat_decode", zap.Error(err))
		return
	}

	m.mu.Lock()
	if m.session == nil || m.status == StatusNoSession {
		m.mu.Unlock()
		return
	}
	msg := ChatMessage{Sender: ev.Sender, Text: ev.Text, At: time.Now()}
	m.chat = append(m.chat, msg)
	m.mu.Unlock()

	if m.onChat != nil {
		m.onChat(msg)
	}
	m.changed()
}
