package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/ravianlabs/quantum-chat/internal/models"
)

// Storage is the persistence contract the chat core depends on. Both
// implementations (PostgreSQL and in-memory) must provide the same
// ordering and atomicity guarantees.
type Storage interface {
	ConversationStore
	MessageLog
	UsageStore
	Close() error
}

// ConversationStore owns conversation records and their lifecycle.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	// ListConversations returns the user's conversations ordered by
	// updated_at descending. The ordering is a user-facing contract.
	ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error)
	RenameConversation(ctx context.Context, id uuid.UUID, title string) error
	// RenameConversationIfDefault sets the title only while it still
	// equals the creation placeholder, so the first-turn rename cannot
	// fire twice under concurrent turns.
	RenameConversationIfDefault(ctx context.Context, id uuid.UUID, title string) error
	TouchConversation(ctx context.Context, id uuid.UUID) error
	// DeleteConversation removes the conversation and all its messages.
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	CountConversations(ctx context.Context, userID string) (int, error)
}

// MessageLog owns the append-only message history of each conversation.
type MessageLog interface {
	AppendMessage(ctx context.Context, conversationID uuid.UUID, userID string, role models.Role, content string) (*models.Message, error)
	// ListMessages returns messages ordered by created_at ascending,
	// insertion order breaking ties.
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
}

// UsageStore owns per-user per-day request counters. Day is a UTC
// calendar date formatted as YYYY-MM-DD.
type UsageStore interface {
	// GetUsage returns the count for (userID, day); an absent record
	// reads as 0.
	GetUsage(ctx context.Context, userID, day string) (int, error)
	// IncrementUsage atomically creates-or-increments the record and
	// returns the new count, but only while the count is below limit;
	// at the limit it returns models.ErrQuotaExceeded and leaves the
	// record untouched. The check and the increment are one atomic
	// step, so concurrent callers can never push a day past the limit.
	IncrementUsage(ctx context.Context, userID, day string, limit int) (int, error)
	TotalRequests(ctx context.Context, userID string) (int, error)
}
