package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/graaaaa/vintagepresence/internal/discord"
	"github.com/graaaaa/vintagepresence/internal/event"
	"github.com/graaaaa/vintagepresence/internal/store"
)

// memStore is an in-memory HistoryStore.
type memStore struct {
	mu         sync.Mutex
	statuses   []event.Status
	activities []event.Activity
	seed       *event.Activity
	insertErr  error
}

func (m *memStore) InsertStatus(ctx context.Context, st *event.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	st.ID = "s" + strconv.Itoa(len(m.statuses))
	m.statuses = append(m.statuses, *st)
	return nil
}

func (m *memStore) InsertActivity(ctx context.Context, a *event.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	a.ID = "a" + strconv.Itoa(len(m.activities))
	m.activities = append(m.activities, *a)
	return nil
}

func (m *memStore) QueryStatus(ctx context.Context, f store.QueryFilter) (store.StatusPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return store.StatusPage{Items: append([]event.Status(nil), m.statuses...)}, nil
}

func (m *memStore) QueryActivities(ctx context.Context, f store.QueryFilter) (store.ActivityPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return store.ActivityPage{Items: append([]event.Activity(nil), m.activities...)}, nil
}

func (m *memStore) LastActivity(ctx context.Context) (*event.Activity, error) {
	return m.seed, nil
}

func (m *memStore) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.statuses), len(m.activities)
}

type publishedEvents struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *publishedEvents) Publish(e *event.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *publishedEvents) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func runRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecorder_RecordsStatusesAndChangedActivities(t *testing.T) {
	st := &memStore{}
	pub := &publishedEvents{}
	r := NewRecorder(st, WithPublisher(pub))
	runRecorder(t, r)

	r.Status(discord.StatusConnected)
	r.Status(discord.StatusReady)
	r.Activity(discord.Options{Details: "Playing as Tyron", State: "0 deaths"})
	r.Activity(discord.Options{Details: "Playing as Tyron", State: "0 deaths"})
	r.Activity(discord.Options{Details: "Playing as Tyron", State: "1 deaths"})

	waitFor(t, func() bool { return pub.len() == 4 })

	statuses, activities := st.counts()
	if statuses != 2 {
		t.Errorf("statuses = %d, want 2", statuses)
	}
	if activities != 2 {
		t.Errorf("activities = %d, want 2 (duplicate dropped)", activities)
	}
	if got := st.activities[1].State; got != "1 deaths" {
		t.Errorf("second activity state = %q", got)
	}
}

func TestRecorder_RepeatedActivityUpdatedNeedsChangedContent(t *testing.T) {
	st := &memStore{}
	pub := &publishedEvents{}
	r := NewRecorder(st, WithPublisher(pub))
	runRecorder(t, r)

	cycle := func(state string) {
		r.Status(discord.StatusActivityUpdated)
		r.Activity(discord.Options{Details: "Playing as Tyron", State: state})
	}
	cycle("0 deaths")
	cycle("0 deaths")
	cycle("0 deaths")
	cycle("1 deaths")
	r.Status(discord.StatusDisconnected)

	// updated+activity, updated+activity, disconnected
	waitFor(t, func() bool { return pub.len() == 5 })

	st.mu.Lock()
	defer st.mu.Unlock()
	var got []string
	for _, s := range st.statuses {
		got = append(got, s.Status)
	}
	want := []string{"activity_updated", "activity_updated", "disconnected"}
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statuses[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(st.activities) != 2 {
		t.Errorf("activities = %d, want 2", len(st.activities))
	}
}

func TestRecorder_SeedsLastActivityFromStore(t *testing.T) {
	st := &memStore{seed: &event.Activity{Details: "Playing as Tyron", State: "idle"}}
	pub := &publishedEvents{}
	r := NewRecorder(st, WithPublisher(pub))
	runRecorder(t, r)

	r.Activity(discord.Options{Details: "Playing as Tyron", State: "idle"})
	r.Status(discord.StatusReady)

	waitFor(t, func() bool { return pub.len() == 1 })
	if _, activities := st.counts(); activities != 0 {
		t.Errorf("activities = %d, want 0", activities)
	}
}

func TestRecorder_InsertFailureIsNotPublished(t *testing.T) {
	st := &memStore{insertErr: errors.New("disk full")}
	pub := &publishedEvents{}
	r := NewRecorder(st, WithPublisher(pub))
	runRecorder(t, r)

	r.Status(discord.StatusError)
	time.Sleep(50 * time.Millisecond)

	if pub.len() != 0 {
		t.Errorf("published %d events, want 0", pub.len())
	}
}

func TestRecorder_FullQueueDrops(t *testing.T) {
	st := &memStore{}
	r := NewRecorder(st, WithQueueSize(1))

	r.Status(discord.StatusConnected)
	r.Status(discord.StatusReady) // dropped, Run not started

	if len(r.queue) != 1 {
		t.Errorf("queue length = %d, want 1", len(r.queue))
	}
}

func TestHistoryService_Query(t *testing.T) {
	st := &memStore{
		statuses:   []event.Status{{ID: "1", Status: "ready"}},
		activities: []event.Activity{{ID: "2", Details: "x"}},
	}
	svc := &HistoryService{Store: st}

	res, err := svc.Query(context.Background(), event.KindStatus, store.QueryFilter{})
	if err != nil {
		t.Fatalf("Query status: %v", err)
	}
	if items, ok := res.Items.([]event.Status); !ok || len(items) != 1 {
		t.Errorf("status items = %#v", res.Items)
	}

	res, err = svc.Query(context.Background(), event.KindActivity, store.QueryFilter{})
	if err != nil {
		t.Fatalf("Query activity: %v", err)
	}
	if items, ok := res.Items.([]event.Activity); !ok || len(items) != 1 {
		t.Errorf("activity items = %#v", res.Items)
	}

	_, err = svc.Query(context.Background(), "weather", store.QueryFilter{})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}
