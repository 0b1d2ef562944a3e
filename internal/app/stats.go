package app

import (
	"context"
	"time"

	"github.com/graaaaa/vintagepresence/internal/store"
)

// StatsResult represents the response for the stats endpoint.
type StatsResult struct {
	TodayStatusCounts map[string]int `json:"today_status_counts"`
	TodayActivities   int            `json:"today_activities"`
	LastStatus        *string        `json:"last_status,omitempty"`
	LastStatusAt      *string        `json:"last_status_at,omitempty"`
	LastActivityAt    *string        `json:"last_activity_at,omitempty"`
}

// StatsUsecase defines the interface for stats operations.
type StatsUsecase interface {
	GetStats(ctx context.Context) (*StatsResult, error)
}

// StatsStore defines the interface for stats data access.
type StatsStore interface {
	GetHistoryStats(ctx context.Context, since, until time.Time) (*store.HistoryStats, error)
}

// StatsService implements StatsUsecase.
type StatsService struct {
	store StatsStore
	now   func() time.Time
}

// NewStatsService creates a new StatsService.
func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store, now: time.Now}
}

// GetStats retrieves history statistics for today (local time).
func (s *StatsService) GetStats(ctx context.Context) (*StatsResult, error) {
	since, until := todayBoundary(s.now())

	stats, err := s.store.GetHistoryStats(ctx, since, until)
	if err != nil {
		return nil, err
	}

	counts := stats.StatusCounts
	if counts == nil {
		counts = map[string]int{}
	}
	return &StatsResult{
		TodayStatusCounts: counts,
		TodayActivities:   stats.ActivityCount,
		LastStatus:        stats.LastStatus,
		LastStatusAt:      stats.LastStatusAt,
		LastActivityAt:    stats.LastActivityAt,
	}, nil
}

// todayBoundary returns local midnight of now's day and the following midnight.
func todayBoundary(now time.Time) (since, until time.Time) {
	y, m, d := now.Date()
	since = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	until = since.AddDate(0, 0, 1)
	return since, until
}
