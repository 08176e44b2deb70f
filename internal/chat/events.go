package chat

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Events receives turn lifecycle notifications for observability
// collaborators. Payloads carry ids and error kinds only, never message
// content. Implementations must not block the turn.
type Events interface {
	TurnStarted(userID string, conversationID uuid.UUID)
	TurnCompleted(userID string, conversationID uuid.UUID, usageCount int)
	QuotaExceeded(userID string, usageCount int)
	StoreError(op string, err error)
}

// LogEvents emits events as structured log lines.
type LogEvents struct {
	logger *zap.Logger
}

func NewLogEvents(logger *zap.Logger) *LogEvents {
	return &LogEvents{logger: logger}
}

func (e *LogEvents) TurnStarted(userID string, conversationID uuid.UUID) {
	e.logger.Info("Turn started",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID.String()))
}

func (e *LogEvents) TurnCompleted(userID string, conversationID uuid.UUID, usageCount int) {
	e.logger.Info("Turn completed",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID.String()),
		zap.Int("usage_count", usageCount))
}

func (e *LogEvents) QuotaExceeded(userID string, usageCount int) {
	e.logger.Warn("Daily quota exceeded",
		zap.String("user_id", userID),
		zap.Int("usage_count", usageCount))
}

func (e *LogEvents) StoreError(op string, err error) {
	e.logger.Error("Store operation failed",
		zap.String("op", op),
		zap.Error(err))
}

// NopEvents discards everything.
type NopEvents struct{}

func (NopEvents) TurnStarted(string, uuid.UUID)        {}
func (NopEvents) TurnCompleted(string, uuid.UUID, int) {}
func (NopEvents) QuotaExceeded(string, int)            {}
func (NopEvents) StoreError(string, error)             {}
