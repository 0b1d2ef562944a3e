package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// HistoryStats holds aggregated history for a time period.
type HistoryStats struct {
	StatusCounts   map[string]int `json:"status_counts"`
	ActivityCount  int            `json:"activity_count"`
	LastStatus     *string        `json:"last_status,omitempty"`
	LastStatusAt   *string        `json:"last_status_at,omitempty"`
	LastActivityAt *string        `json:"last_activity_at,omitempty"`
}

// GetHistoryStats aggregates records in [since, until).
// The last-seen fields consider all records regardless of the range.
func (s *Store) GetHistoryStats(ctx context.Context, since, until time.Time) (*HistoryStats, error) {
	stats := &HistoryStats{StatusCounts: map[string]int{}}

	sinceStr := since.UTC().Format(TimeFormat)
	untilStr := until.UTC().Format(TimeFormat)

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM status_log
		WHERE at >= ? AND at < ?
		GROUP BY status
	`, sinceStr, untilStr)
	if err != nil {
		return nil, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.StatusCounts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM activity_log WHERE at >= ? AND at < ?
	`, sinceStr, untilStr).Scan(&stats.ActivityCount); err != nil {
		return nil, fmt.Errorf("count activities: %w", err)
	}

	var status, at string
	err = s.db.QueryRowContext(ctx,
		`SELECT status, at FROM status_log ORDER BY id DESC LIMIT 1`).Scan(&status, &at)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("last status: %w", err)
	default:
		stats.LastStatus = &status
		stats.LastStatusAt = &at
	}

	var activityAt string
	err = s.db.QueryRowContext(ctx,
		`SELECT at FROM activity_log ORDER BY id DESC LIMIT 1`).Scan(&activityAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("last activity: %w", err)
	default:
		stats.LastActivityAt = &activityAt
	}

	return stats, nil
}
