package models

import (
	"encoding/json"
	"time"
)

// Message senders used by the frontend.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message is one turn of a chat. PayloadJSON carries the structured answer
// (citations etc.) exactly as the client posted it.
type Message struct {
	ID          int64           `bson:"message_id" json:"id"`
	ChatID      int64           `bson:"chat_id" json:"chat_id"`
	Sender      string          `bson:"sender" json:"sender"`
	Text        string          `bson:"text" json:"text"`
	PayloadJSON json.RawMessage `bson:"-" json:"payload_json"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
}

type CreateMessageRequest struct {
	Sender      string          `json:"sender" binding:"required"`
	Text        string          `json:"text" binding:"required"`
	PayloadJSON json.RawMessage `json:"payload_json,omitempty"`
}

// AskPayload decodes PayloadJSON as a stored /ask response. ok is false
// when the message carries no payload or a different shape.
func (m Message) AskPayload() (AskResponse, bool) {
	var p AskResponse
	if len(m.PayloadJSON) == 0 || json.Unmarshal(m.PayloadJSON, &p) != nil {
		return AskResponse{}, false
	}
	return p, true
}
