package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "classbook/internal/domain/schedules"
	"classbook/internal/repository"
)

type countingScheduleGetter struct {
	reads     int
	schedules map[uuid.UUID]*domain.Schedule
}

func (g *countingScheduleGetter) GetSchedule(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	g.reads++
	if s, ok := g.schedules[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

func TestScheduleCache(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	source := &countingScheduleGetter{
		schedules: map[uuid.UUID]*domain.Schedule{
			id: {Id: id, Capacity: 10, Status: domain.StatusScheduled},
		},
	}
	cache := repository.NewScheduleCache(source)

	first, err := cache.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, first.Capacity)

	_, err = cache.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, source.reads, "second read is served from the cache")

	t.Run("invalidate forces a fresh read", func(t *testing.T) {
		source.schedules[id].Status = domain.StatusCancelled
		cache.Invalidate(id)

		refreshed, err := cache.GetSchedule(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, refreshed.Status)
		assert.Equal(t, 2, source.reads)
	})

	t.Run("misses pass through", func(t *testing.T) {
		_, err := cache.GetSchedule(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
