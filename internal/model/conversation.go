package model

import "time"

// Conversation is the message thread bound 1:1 to an accepted Application.
type Conversation struct {
	ID            uint64    `json:"id"`
	ApplicationID uint64    `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is an append-only entry in a Conversation.
type Message struct {
	ID             uint64    `json:"id"`
	ConversationID uint64    `json:"conversation_id"`
	SenderID       uint64    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
