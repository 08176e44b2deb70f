package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ravianlabs/quantum-chat/internal/models"
	"github.com/ravianlabs/quantum-chat/internal/storage"
)

// DefaultDailyLimit is the free-plan request allowance per user per
// day.
const DefaultDailyLimit = 50

// Day formats t as the quota day key. Days roll over at midnight UTC
// so the reset point does not depend on where the server runs.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UsageCounter gates assistant turns on the per-user daily request
// quota.
type UsageCounter struct {
	store storage.UsageStore
	limit int
}

func NewUsageCounter(store storage.UsageStore, limit int) *UsageCounter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &UsageCounter{store: store, limit: limit}
}

func (c *UsageCounter) Limit() int {
	return c.limit
}

// TodayCount returns the number of completed assistant turns so far
// today; a user with no record yet reads as 0.
func (c *UsageCounter) TodayCount(ctx context.Context, userID string) (int, error) {
	count, err := c.store.GetUsage(ctx, userID, Day(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("error reading usage: %w", err)
	}
	return count, nil
}

// Increment reserves one turn against today's limit and returns the
// new count, or models.ErrQuotaExceeded once the day is full. The
// check and the increment are a single atomic store operation, so
// concurrent turns from the same user can neither lose an update nor
// push the count past the limit.
func (c *UsageCounter) Increment(ctx context.Context, userID string) (int, error) {
	count, err := c.store.IncrementUsage(ctx, userID, Day(time.Now()), c.limit)
	if errors.Is(err, models.ErrQuotaExceeded) {
		return 0, models.ErrQuotaExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("error incrementing usage: %w", err)
	}
	return count, nil
}

// Remaining returns how many turns the user has left today, never
// negative.
func (c *UsageCounter) Remaining(ctx context.Context, userID string) (int, error) {
	count, err := c.TodayCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count >= c.limit {
		return 0, nil
	}
	return c.limit - count, nil
}
