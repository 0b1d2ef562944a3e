// Package app provides application use cases.
package app

import (
	"context"
	"time"
)

// HealthUsecase defines the health check use case.
type HealthUsecase interface {
	Handle(ctx context.Context) (HealthResult, error)
}

// HealthResult represents the health check response.
type HealthResult struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HealthService implements HealthUsecase.
type HealthService struct {
	Version   string
	StartedAt time.Time
	Now       func() time.Time
}

// Handle returns the current health status.
func (s HealthService) Handle(ctx context.Context) (HealthResult, error) {
	res := HealthResult{
		Status:  "ok",
		Version: s.Version,
	}
	if !s.StartedAt.IsZero() {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		res.UptimeSeconds = int64(now().Sub(s.StartedAt) / time.Second)
	}
	return res, nil
}
