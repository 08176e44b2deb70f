package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ravianlabs/quantum-chat/internal/generator"
	"github.com/ravianlabs/quantum-chat/internal/models"
	"github.com/ravianlabs/quantum-chat/internal/storage"
)

// Turn is the result of one completed user turn: both new messages,
// the conversation they landed in, and the quota left afterwards.
type Turn struct {
	Conversation     *models.Conversation `json:"conversation"`
	UserMessage      *models.Message      `json:"user_message"`
	AssistantMessage *models.Message      `json:"assistant_message"`
	Remaining        int                  `json:"remaining"`
}

// UsageSummary is what the dashboard shows next to the input box.
type UsageSummary struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// Stats are the per-user dashboard totals.
type Stats struct {
	Conversations int `json:"conversations"`
	TotalRequests int `json:"total_requests"`
}

// Service orchestrates a chat turn: conversation resolution, quota
// gate, the two message appends, and the metadata updates. The UI
// layers (HTTP and Telegram) talk only to this type.
type Service struct {
	store     storage.Storage
	generator generator.Generator
	usage     *UsageCounter
	events    Events

	// Appends within one conversation are serialized so message order
	// reflects submission order even if store timestamps tie. Entries
	// are ref-counted and dropped once the last holder releases.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*convoLock
}

type convoLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(store storage.Storage, gen generator.Generator, usage *UsageCounter, events Events) *Service {
	if events == nil {
		events = NopEvents{}
	}
	return &Service{
		store:     store,
		generator: gen,
		usage:     usage,
		events:    events,
		locks:     make(map[uuid.UUID]*convoLock),
	}
}

func (s *Service) acquireLock(id uuid.UUID) *convoLock {
	s.locksMu.Lock()
	lock, exists := s.locks[id]
	if !exists {
		lock = &convoLock{}
		s.locks[id] = lock
	}
	lock.refs++
	s.locksMu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *Service) releaseLock(id uuid.UUID, lock *convoLock) {
	lock.mu.Unlock()

	s.locksMu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, id)
	}
	s.locksMu.Unlock()
}

// resolveOwned loads a conversation and checks it belongs to userID.
func (s *Service) resolveOwned(ctx context.Context, userID string, id uuid.UUID) (*models.Conversation, error) {
	convo, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if convo.UserID != userID {
		return nil, models.ErrForbidden
	}
	return convo, nil
}

// SendMessage runs one full turn. Passing uuid.Nil as conversationID
// lazily creates a new conversation owned by userID.
func (s *Service) SendMessage(ctx context.Context, userID string, conversationID uuid.UUID, content string) (*Turn, error) {
	content = strings.TrimSpace(content)
	if err := models.ValidateMessage(models.RoleUser, content); err != nil {
		return nil, err
	}

	// Resolve the conversation before any write.
	var convo *models.Conversation
	var err error
	if conversationID == uuid.Nil {
		convo, err = s.store.CreateConversation(ctx, userID)
		if err != nil {
			s.events.StoreError("create_conversation", err)
			return nil, fmt.Errorf("error creating conversation: %w", err)
		}
	} else {
		convo, err = s.resolveOwned(ctx, userID, conversationID)
		if err != nil {
			return nil, err
		}
	}

	s.events.TurnStarted(userID, convo.ID)

	// The quota gate doubles as the reservation: the store increments
	// atomically only while under the limit, so two racing turns at
	// one-below-the-limit cannot both get through. A refused turn has
	// written nothing.
	count, err := s.usage.Increment(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrQuotaExceeded) {
			s.events.QuotaExceeded(userID, s.usage.Limit())
			return nil, models.ErrQuotaExceeded
		}
		s.events.StoreError("increment_usage", err)
		return nil, err
	}
	remaining := s.usage.Limit() - count
	if remaining < 0 {
		remaining = 0
	}

	lock := s.acquireLock(convo.ID)
	defer s.releaseLock(convo.ID, lock)

	userMsg, err := s.store.AppendMessage(ctx, convo.ID, userID, models.RoleUser, content)
	if err != nil {
		s.events.StoreError("append_user_message", err)
		return nil, fmt.Errorf("error saving message: %w", err)
	}

	reply, err := s.generator.Generate(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("error generating reply: %w", err)
	}

	assistantMsg, err := s.store.AppendMessage(ctx, convo.ID, userID, models.RoleAssistant, reply)
	if err != nil {
		s.events.StoreError("append_assistant_message", err)
		return nil, fmt.Errorf("error saving reply: %w", err)
	}

	if err := s.store.TouchConversation(ctx, convo.ID); err != nil {
		s.events.StoreError("touch_conversation", err)
		return nil, fmt.Errorf("error updating conversation: %w", err)
	}

	// First turn: the placeholder title is rewritten from the user
	// text, once. The store-level guard keeps this from firing twice
	// under concurrent turns.
	if convo.Title == models.DefaultTitle {
		title := models.TruncateTitle(content)
		if err := s.store.RenameConversationIfDefault(ctx, convo.ID, title); err != nil {
			s.events.StoreError("rename_conversation", err)
			return nil, fmt.Errorf("error updating conversation title: %w", err)
		}
		convo.Title = title
	}

	s.events.TurnCompleted(userID, convo.ID, count)

	return &Turn{
		Conversation:     convo,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Remaining:        remaining,
	}, nil
}

// NewConversation explicitly starts an empty thread.
func (s *Service) NewConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	convo, err := s.store.CreateConversation(ctx, userID)
	if err != nil {
		s.events.StoreError("create_conversation", err)
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}
	return convo, nil
}

// ListConversations returns the user's threads, most recently active
// first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	convos, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		s.events.StoreError("list_conversations", err)
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	return convos, nil
}

// History returns the full message sequence of an owned conversation,
// oldest first.
func (s *Service) History(ctx context.Context, userID string, conversationID uuid.UUID) ([]*models.Message, error) {
	if _, err := s.resolveOwned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		s.events.StoreError("list_messages", err)
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return msgs, nil
}

// Rename sets a new title on an owned conversation.
func (s *Service) Rename(ctx context.Context, userID string, conversationID uuid.UUID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.ErrEmptyContent
	}
	if _, err := s.resolveOwned(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.store.RenameConversation(ctx, conversationID, title); err != nil {
		s.events.StoreError("rename_conversation", err)
		return fmt.Errorf("error renaming conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes an owned conversation and all of its
// messages.
func (s *Service) DeleteConversation(ctx context.Context, userID string, conversationID uuid.UUID) error {
	if _, err := s.resolveOwned(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		s.events.StoreError("delete_conversation", err)
		return fmt.Errorf("error deleting conversation: %w", err)
	}
	return nil
}

// Usage reports today's consumption for the quota banner.
func (s *Service) Usage(ctx context.Context, userID string) (*UsageSummary, error) {
	used, err := s.usage.TodayCount(ctx, userID)
	if err != nil {
		s.events.StoreError("read_usage", err)
		return nil, err
	}
	remaining := s.usage.Limit() - used
	if remaining < 0 {
		remaining = 0
	}
	return &UsageSummary{Used: used, Remaining: remaining, Limit: s.usage.Limit()}, nil
}

// Stats reports the dashboard totals for one user.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	convos, err := s.store.CountConversations(ctx, userID)
	if err != nil {
		s.events.StoreError("count_conversations", err)
		return nil, fmt.Errorf("error counting conversations: %w", err)
	}
	total, err := s.store.TotalRequests(ctx, userID)
	if err != nil {
		s.events.StoreError("total_requests", err)
		return nil, fmt.Errorf("error summing usage: %w", err)
	}
	return &Stats{Conversations: convos, TotalRequests: total}, nil
}
