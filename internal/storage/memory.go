package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ravianlabs/quantum-chat/internal/models"
)

// MemoryStorage keeps everything in process memory. Used for tests and
// for running the server without a database.
type MemoryStorage struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]models.Conversation
	messages      map[uuid.UUID][]models.Message
	usage         map[usageKey]int
}

// usageKey is a struct so opaque user ids need no reserved separator
// character.
type usageKey struct {
	userID string
	day    string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		conversations: make(map[uuid.UUID]models.Conversation),
		messages:      make(map[uuid.UUID][]models.Message),
		usage:         make(map[usageKey]int),
	}
}

func (s *MemoryStorage) CreateConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	convo := models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     models.DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[convo.ID] = convo
	result := convo
	return &result, nil
}

func (s *MemoryStorage) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convo, exists := s.conversations[id]
	if !exists {
		return nil, models.ErrNotFound
	}
	result := convo
	return &result, nil
}

func (s *MemoryStorage) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convos []*models.Conversation
	for _, convo := range s.conversations {
		if convo.UserID == userID {
			c := convo
			convos = append(convos, &c)
		}
	}
	sort.SliceStable(convos, func(i, j int) bool {
		return convos[i].UpdatedAt.After(convos[j].UpdatedAt)
	})
	return convos, nil
}

func (s *MemoryStorage) RenameConversation(ctx context.Context, id uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convo, exists := s.conversations[id]
	if !exists {
		return models.ErrNotFound
	}
	convo.Title = title
	convo.UpdatedAt = time.Now()
	s.conversations[id] = convo
	return nil
}

func (s *MemoryStorage) RenameConversationIfDefault(ctx context.Context, id uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convo, exists := s.conversations[id]
	if !exists {
		return models.ErrNotFound
	}
	if convo.Title != models.DefaultTitle {
		return nil
	}
	convo.Title = title
	convo.UpdatedAt = time.Now()
	s.conversations[id] = convo
	return nil
}

func (s *MemoryStorage) TouchConversation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convo, exists := s.conversations[id]
	if !exists {
		return models.ErrNotFound
	}
	convo.UpdatedAt = time.Now()
	s.conversations[id] = convo
	return nil
}

func (s *MemoryStorage) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return models.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStorage) CountConversations(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, convo := range s.conversations {
		if convo.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, conversationID uuid.UUID, userID string, role models.Role, content string) (*models.Message, error) {
	if err := models.ValidateMessage(role, content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conversationID]; !exists {
		return nil, models.ErrNotFound
	}

	msg := models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	result := msg
	return &result, nil
}

func (s *MemoryStorage) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Messages are stored in insertion order, which already satisfies
	// the created_at ascending contract with ties preserved.
	stored := s.messages[conversationID]
	msgs := make([]*models.Message, 0, len(stored))
	for _, msg := range stored {
		m := msg
		msgs = append(msgs, &m)
	}
	return msgs, nil
}

func (s *MemoryStorage) GetUsage(ctx context.Context, userID, day string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.usage[usageKey{userID, day}], nil
}

func (s *MemoryStorage) IncrementUsage(ctx context.Context, userID, day string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check and increment under the write lock so the cap holds under
	// concurrent callers.
	key := usageKey{userID, day}
	if s.usage[key] >= limit {
		return 0, models.ErrQuotaExceeded
	}
	s.usage[key]++
	return s.usage[key], nil
}

func (s *MemoryStorage) TotalRequests(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for key, count := range s.usage {
		if key.userID == userID {
			total += count
		}
	}
	return total, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
