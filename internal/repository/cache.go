package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	domain "classbook/internal/domain/schedules"
)

type scheduleGetter interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
}

// ScheduleCache is a read-through cache over SchedulesRepo for the hot
// read paths (pricing, event handlers). Schedule cancellation invalidates
// the entry; transactional critical sections read the repo directly, never
// the cache.
type ScheduleCache struct {
	repo scheduleGetter

	mu      sync.RWMutex
	entries map[uuid.UUID]*domain.Schedule
}

func NewScheduleCache(repo scheduleGetter) *ScheduleCache {
	return &ScheduleCache{
		repo:    repo,
		entries: make(map[uuid.UUID]*domain.Schedule),
	}
}

func (c *ScheduleCache) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	c.mu.RLock()
	cached, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		copied := *cached
		return &copied, nil
	}

	schedule, err := c.repo.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = schedule
	c.mu.Unlock()

	copied := *schedule
	return &copied, nil
}

func (c *ScheduleCache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}
