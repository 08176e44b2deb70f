package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultTitle is the placeholder given to a conversation before its
// first user message rewrites it.
const DefaultTitle = "New Conversation"

// TitleMaxLength is the number of characters of the first user message
// kept as the conversation title before the ellipsis is appended.
const TitleMaxLength = 30

// Conversation represents one chat thread owned by a single user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one immutable turn in a conversation. UserID is the owning
// user even for assistant turns.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// UsageRecord counts completed assistant turns for one user on one
// calendar day (UTC). At most one record exists per (user, day).
type UsageRecord struct {
	UserID        string `json:"user_id"`
	Day           string `json:"date"`
	RequestsCount int    `json:"requests_count"`
}

// ValidateMessage rejects input before it reaches any store.
func ValidateMessage(role Role, content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if role != RoleUser && role != RoleAssistant {
		return ErrInvalidRole
	}
	return nil
}

// TruncateTitle derives a conversation title from the first user
// message: text longer than TitleMaxLength characters keeps the first
// TitleMaxLength and gains an ellipsis marker.
func TruncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) > TitleMaxLength {
		return string(runes[:TitleMaxLength]) + "..."
	}
	return text
}
