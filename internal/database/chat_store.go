// Package database persists chat transcripts in MongoDB or SQLite.
package database

import (
	"context"
	"encoding/json"
	"errors"

	"rag-docqa-platform/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatStore keeps chats and their messages. Chat ids and message ids are
// increasing integers; chats list newest first, messages oldest first.
type ChatStore interface {
	ListChats(ctx context.Context) ([]models.Chat, error)
	GetChat(ctx context.Context, id int64) (models.Chat, error)
	CreateChat(ctx context.Context, title, sessionID string) (models.Chat, error)
	// DeleteChat removes the chat and its messages. Unknown ids are not an error.
	DeleteChat(ctx context.Context, id int64) error
	ListMessages(ctx context.Context, chatID int64) ([]models.Message, error)
	AddMessage(ctx context.Context, chatID int64, sender, text string, payload json.RawMessage) (models.Message, error)
	Close(ctx context.Context) error
}

// payloadString stores absent or null payloads as SQL NULL / missing field.
func payloadString(payload json.RawMessage) *string {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	s := string(payload)
	return &s
}

func payloadRaw(s *string) json.RawMessage {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}
