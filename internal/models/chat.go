package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a message. The set is closed: a message is
// written either by the user or by the inference backend.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// Conversation is an ordered thread of messages owned by one user. The owner
// is set at creation and never reassigned.
type Conversation struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	Messages  []*Message `json:"messages,omitempty"`
}

// Message is immutable once created and belongs to exactly one conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationSummary is one sidebar entry: the conversation plus its
// earliest message as a preview and a human-relative timestamp label.
type ConversationSummary struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Preview   string    `json:"preview"`
	Timestamp string    `json:"timestamp"`
}

// ChatRequest is the payload for POST /api/chat. ConversationID is optional:
// absent starts a fresh conversation, present continues an existing one.
type ChatRequest struct {
	Prompt         string     `json:"prompt"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
}

type ChatResponse struct {
	Response       string    `json:"response"`
	ConversationID uuid.UUID `json:"conversationId"`
}

type ChatListResponse struct {
	Chats []ConversationSummary `json:"chats"`
}
