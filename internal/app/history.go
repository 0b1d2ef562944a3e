package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graaaaa/vintagepresence/internal/discord"
	"github.com/graaaaa/vintagepresence/internal/event"
	"github.com/graaaaa/vintagepresence/internal/store"
)

// ErrUnknownKind is returned for a history kind other than status or activity.
var ErrUnknownKind = errors.New("unknown history kind")

// HistoryStore defines store operations needed by the history services.
type HistoryStore interface {
	InsertStatus(ctx context.Context, st *event.Status) error
	InsertActivity(ctx context.Context, a *event.Activity) error
	QueryStatus(ctx context.Context, f store.QueryFilter) (store.StatusPage, error)
	QueryActivities(ctx context.Context, f store.QueryFilter) (store.ActivityPage, error)
	LastActivity(ctx context.Context) (*event.Activity, error)
}

// EventPublisher broadcasts recorded history. *api.Hub implements it.
type EventPublisher interface {
	Publish(e *event.Event)
}

// HistoryUsecase defines the history query use case.
type HistoryUsecase interface {
	Query(ctx context.Context, kind string, filter store.QueryFilter) (HistoryResult, error)
}

// HistoryResult is one page of history records of a single kind.
type HistoryResult struct {
	Kind       string  `json:"kind"`
	Items      any     `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

// HistoryService implements HistoryUsecase.
type HistoryService struct {
	Store HistoryStore
}

// Query returns a page of kind records.
func (s *HistoryService) Query(ctx context.Context, kind string, filter store.QueryFilter) (HistoryResult, error) {
	switch kind {
	case event.KindStatus:
		page, err := s.Store.QueryStatus(ctx, filter)
		if err != nil {
			return HistoryResult{}, err
		}
		return HistoryResult{Kind: kind, Items: page.Items, NextCursor: page.NextCursor}, nil
	case event.KindActivity:
		page, err := s.Store.QueryActivities(ctx, filter)
		if err != nil {
			return HistoryResult{}, err
		}
		return HistoryResult{Kind: kind, Items: page.Items, NextCursor: page.NextCursor}, nil
	default:
		return HistoryResult{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

const defaultRecorderQueueSize = 64

// Recorder persists delivery statuses and published activities. Status and
// Activity never block; records are written by Run.
type Recorder struct {
	store  HistoryStore
	pub    EventPublisher
	logger *slog.Logger
	now    func() time.Time
	queue  chan *event.Event

	// owned by Run
	last       *event.Activity
	lastStatus string
	pending    *event.Event // repeated activity_updated awaiting its activity
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPublisher broadcasts each stored record.
func WithPublisher(pub EventPublisher) RecorderOption {
	return func(r *Recorder) { r.pub = pub }
}

// WithRecorderNow sets the clock (for testing).
func WithRecorderNow(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithQueueSize sets how many records may wait for Run.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan *event.Event, n)
		}
	}
}

// NewRecorder creates a Recorder.
func NewRecorder(st HistoryStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
		queue:  make(chan *event.Event, defaultRecorderQueueSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status queues a status notification. Repeated activity_updated
// notifications are recorded only when the activity content changed.
func (r *Recorder) Status(s discord.Status) {
	r.enqueue(&event.Event{
		Kind:   event.KindStatus,
		Status: &event.Status{At: r.now(), Status: string(s)},
	})
}

// Activity queues a published activity. Activities identical to the last
// recorded one are dropped by Run.
func (r *Recorder) Activity(opts discord.Options) {
	r.enqueue(&event.Event{
		Kind: event.KindActivity,
		Activity: &event.Activity{
			At:         r.now(),
			Details:    opts.Details,
			State:      opts.State,
			LargeImage: opts.LargeImageKey,
			SmallImage: opts.SmallImageKey,
		},
	})
}

func (r *Recorder) enqueue(e *event.Event) {
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("history queue full, record dropped", "kind", e.Kind)
	}
}

// Run writes queued records until ctx is cancelled. Returns ctx.Err().
func (r *Recorder) Run(ctx context.Context) error {
	last, err := r.store.LastActivity(ctx)
	if err != nil {
		r.logger.Warn("failed to load last activity", "error", err)
	}
	r.last = last

	r.logger.Debug("history recorder started")
	defer r.logger.Debug("history recorder stopped")

	for {
		select {
		case e := <-r.queue:
			r.handle(ctx, e)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle stores e. An activity_updated status that repeats the last stored
// status is held until its activity arrives and kept only if the activity
// content changed, so steady updates do not add a row per cycle.
func (r *Recorder) handle(ctx context.Context, e *event.Event) {
	switch e.Kind {
	case event.KindStatus:
		if e.Status.Status == string(discord.StatusActivityUpdated) && r.lastStatus == e.Status.Status {
			r.pending = e
			return
		}
		r.pending = nil
		r.insertStatus(ctx, e)
	case event.KindActivity:
		pending := r.pending
		r.pending = nil
		if r.last != nil && r.last.SameContent(*e.Activity) {
			return
		}
		if pending != nil {
			r.insertStatus(ctx, pending)
		}
		if err := r.store.InsertActivity(ctx, e.Activity); err != nil {
			r.logger.Error("failed to insert activity", "error", err)
			return
		}
		cp := *e.Activity
		r.last = &cp
		r.publish(e)
	}
}

func (r *Recorder) insertStatus(ctx context.Context, e *event.Event) {
	if err := r.store.InsertStatus(ctx, e.Status); err != nil {
		r.logger.Error("failed to insert status", "status", e.Status.Status, "error", err)
		return
	}
	r.lastStatus = e.Status.Status
	r.publish(e)
}

func (r *Recorder) publish(e *event.Event) {
	if r.pub != nil {
		r.pub.Publish(e)
	}
}
