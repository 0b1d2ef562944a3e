package app

import (
	"context"
	"sync"
	"time"

	"github.com/graaaaa/vintagepresence/internal/discord"
	"github.com/graaaaa/vintagepresence/internal/driver"
	"github.com/graaaaa/vintagepresence/internal/host"
)

// PresenceUsecase reports what is currently shown on Discord.
type PresenceUsecase interface {
	GetPresence(ctx context.Context) PresenceResult
}

// PresenceResult represents the presence response.
type PresenceResult struct {
	State        string           `json:"state"`
	Connected    bool             `json:"connected"`
	LastStatus   string           `json:"last_status,omitempty"`
	LastStatusAt *time.Time       `json:"last_status_at,omitempty"`
	Activity     *discord.Options `json:"activity"`
	LastRender   *driver.Render   `json:"last_render"`
	InWorld      bool             `json:"in_world"`
	SnapshotAt   *time.Time       `json:"snapshot_at,omitempty"`
}

// DeliveryState is the read side of the delivery service.
type DeliveryState interface {
	State() discord.State
	Current() *discord.Options
}

// RenderSource exposes the most recent published render.
type RenderSource interface {
	LastRender() *driver.Render
}

// SnapshotSource exposes the latest host snapshot.
type SnapshotSource interface {
	Get() (snap host.Snapshot, ok bool)
	ReceivedAt() time.Time
}

// PresenceService implements PresenceUsecase. ObserveStatus must be wired
// to the delivery service's status callback.
type PresenceService struct {
	delivery DeliveryState
	renders  RenderSource
	snaps    SnapshotSource
	now      func() time.Time

	mu           sync.Mutex
	lastStatus   discord.Status
	lastStatusAt time.Time
}

// PresenceOption configures a PresenceService.
type PresenceOption func(*PresenceService)

// WithPresenceNow sets the clock (for testing).
func WithPresenceNow(now func() time.Time) PresenceOption {
	return func(s *PresenceService) { s.now = now }
}

// WithSnapshotSource adds world state to the presence report.
func WithSnapshotSource(src SnapshotSource) PresenceOption {
	return func(s *PresenceService) { s.snaps = src }
}

// NewPresenceService creates a PresenceService.
func NewPresenceService(delivery DeliveryState, renders RenderSource, opts ...PresenceOption) *PresenceService {
	s := &PresenceService{
		delivery: delivery,
		renders:  renders,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ObserveStatus records a delivery status notification.
func (s *PresenceService) ObserveStatus(st discord.Status) {
	s.mu.Lock()
	s.lastStatus = st
	s.lastStatusAt = s.now()
	s.mu.Unlock()
}

// GetPresence returns the current presence report.
func (s *PresenceService) GetPresence(ctx context.Context) PresenceResult {
	state := s.delivery.State()
	res := PresenceResult{
		State:      state.String(),
		Connected:  state == discord.StateReady,
		Activity:   s.delivery.Current(),
		LastRender: s.renders.LastRender(),
	}

	s.mu.Lock()
	if s.lastStatus != "" {
		res.LastStatus = string(s.lastStatus)
		at := s.lastStatusAt
		res.LastStatusAt = &at
	}
	s.mu.Unlock()

	if s.snaps != nil {
		_, res.InWorld = s.snaps.Get()
		if at := s.snaps.ReceivedAt(); !at.IsZero() {
			res.SnapshotAt = &at
		}
	}
	return res
}
