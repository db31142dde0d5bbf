package models

import "time"

// Chat is a saved conversation tied to the session whose documents it asks about.
type Chat struct {
	ID        int64     `bson:"chat_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	SessionID string    `bson:"session_id" json:"session_id"`
}

type CreateChatRequest struct {
	Title     string `json:"title" binding:"required,min=1,max=200"`
	SessionID string `json:"session_id" binding:"required"`
}

type DeleteChatResponse struct {
	Status string `json:"status"`
}
