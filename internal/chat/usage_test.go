package chat

import (
	"context"
	"testing"
	"time"

	"github.com/ravianlabs/quantum-chat/internal/models"
	"github.com/ravianlabs/quantum-chat/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 02:30 local on Jan 2 is still Jan 1 in UTC.
	local := time.Date(2026, 1, 2, 2, 30, 0, 0, loc)
	assert.Equal(t, "2026-01-01", Day(local))
}

func TestUsageCounterRemaining(t *testing.T) {
	ctx := context.Background()
	counter := NewUsageCounter(storage.NewMemoryStorage(), 50)

	remaining, err := counter.Remaining(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, remaining)

	count, err := counter.Increment(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err = counter.Remaining(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 49, remaining)
}

func TestUsageCounterIncrementStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	counter := NewUsageCounter(storage.NewMemoryStorage(), 2)

	for i := 1; i <= 2; i++ {
		count, err := counter.Increment(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	// Once the day is full, further increments are refused and the
	// count stays pinned at the limit.
	for i := 0; i < 3; i++ {
		_, err := counter.Increment(ctx, "user-1")
		assert.ErrorIs(t, err, models.ErrQuotaExceeded)
	}

	count, err := counter.TodayCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remaining, err := counter.Remaining(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestUsageCounterDefaultLimit(t *testing.T) {
	counter := NewUsageCounter(storage.NewMemoryStorage(), 0)
	assert.Equal(t, DefaultDailyLimit, counter.Limit())
}
