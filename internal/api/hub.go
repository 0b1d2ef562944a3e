package api

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/graaaaa/vintagepresence/internal/event"
)

const (
	defaultSubscriberBufferSize = 16
	defaultBroadcastBufferSize  = 64
)

// Subscriber is one stream client's view of the history feed.
type Subscriber struct {
	events chan *event.Event
	done   chan struct{}
	kinds  []string

	// owned by the hub loop
	dropped int
}

// Events returns the records delivered to this subscriber.
func (s *Subscriber) Events() <-chan *event.Event {
	return s.events
}

// Done is closed once the subscriber is removed or the hub stops.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) wants(kind string) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, kind)
}

func (s *Subscriber) close() {
	close(s.done)
	close(s.events)
}

// Hub fans recorded status and activity events out to stream clients.
// The subscriber set belongs to the Run goroutine; a client that falls
// behind misses records instead of stalling the recorder.
type Hub struct {
	join    chan *Subscriber
	leave   chan *Subscriber
	records chan *event.Event
	quit    chan struct{}
	exited  chan struct{}
	once    sync.Once

	bufSize int
	logger  *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubSubscriberBufferSize sets how many records a subscriber may lag.
func WithHubSubscriberBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufSize = size
		}
	}
}

// WithHubLogger sets the logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates a Hub. Run must be started before records flow.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		join:    make(chan *Subscriber),
		leave:   make(chan *Subscriber),
		records: make(chan *event.Event, defaultBroadcastBufferSize),
		quit:    make(chan struct{}),
		exited:  make(chan struct{}),
		bufSize: defaultSubscriberBufferSize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers records until Stop is called.
func (h *Hub) Run() {
	subs := make(map[*Subscriber]struct{})
	defer close(h.exited)

	for {
		select {
		case sub := <-h.join:
			subs[sub] = struct{}{}
			h.logger.Debug("stream client joined", "clients", len(subs), "kinds", sub.kinds)

		case sub := <-h.leave:
			if _, ok := subs[sub]; !ok {
				continue
			}
			delete(subs, sub)
			sub.close()
			h.logger.Debug("stream client left", "clients", len(subs))

		case e := <-h.records:
			for sub := range subs {
				if sub.wants(e.Kind) {
					h.deliver(sub, e)
				}
			}

		case <-h.quit:
			for sub := range subs {
				sub.close()
			}
			return
		}
	}
}

// deliver hands e to sub without blocking. Only the first miss of a streak
// is logged.
func (h *Hub) deliver(sub *Subscriber, e *event.Event) {
	select {
	case sub.events <- e:
		if sub.dropped > 0 {
			h.logger.Info("stream client caught up", "missed", sub.dropped)
			sub.dropped = 0
		}
	default:
		if sub.dropped == 0 {
			h.logger.Warn("stream client lagging, dropping records", "record_id", e.ID(), "kind", e.Kind)
		}
		sub.dropped++
	}
}

// Stop ends Run and closes every subscriber. It waits for Run to return
// and may be called more than once.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
	<-h.exited
}

// Subscribe registers a client for the given record kinds, or for every
// kind when none are given. Unsubscribe must be called when done. After
// Stop the returned subscriber is already closed.
func (h *Hub) Subscribe(kinds ...string) *Subscriber {
	sub := &Subscriber{
		events: make(chan *event.Event, h.bufSize),
		done:   make(chan struct{}),
		kinds:  kinds,
	}
	select {
	case h.join <- sub:
	case <-h.exited:
		sub.close()
	}
	return sub
}

// Unsubscribe removes sub. Nil and already removed subscribers are ignored.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	select {
	case h.leave <- sub:
	case <-h.exited:
	}
}

// Publish queues e for delivery. It never blocks the recorder: when the
// queue is full or the hub has stopped, e is dropped.
func (h *Hub) Publish(e *event.Event) {
	if e == nil {
		return
	}
	select {
	case h.records <- e:
	case <-h.exited:
	default:
		h.logger.Warn("stream queue full, record dropped", "record_id", e.ID(), "kind", e.Kind)
	}
}
