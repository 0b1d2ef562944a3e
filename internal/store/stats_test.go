package store

import (
	"context"
	"testing"
	"time"

	"github.com/graaaaa/vintagepresence/internal/event"
)

func TestGetHistoryStats_Empty(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	stats, err := st.GetHistoryStats(context.Background(), since, until)
	if err != nil {
		t.Fatalf("GetHistoryStats: %v", err)
	}

	if len(stats.StatusCounts) != 0 {
		t.Errorf("StatusCounts = %v, want empty", stats.StatusCounts)
	}
	if stats.ActivityCount != 0 {
		t.Errorf("ActivityCount = %d, want 0", stats.ActivityCount)
	}
	if stats.LastStatus != nil || stats.LastActivityAt != nil {
		t.Error("last-seen fields should be nil")
	}
}

func TestGetHistoryStats_CountsRange(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	insertStatus(t, st, day.Add(-time.Hour), "ready") // previous day
	insertStatus(t, st, day.Add(1*time.Hour), "connected")
	insertStatus(t, st, day.Add(2*time.Hour), "ready")
	insertStatus(t, st, day.Add(3*time.Hour), "ready")
	insertStatus(t, st, day.Add(25*time.Hour), "disconnected") // next day

	for i := range 3 {
		a := &event.Activity{At: day.Add(time.Duration(i) * time.Minute), Details: "d", State: "s"}
		if err := st.InsertActivity(ctx, a); err != nil {
			t.Fatalf("InsertActivity: %v", err)
		}
	}

	stats, err := st.GetHistoryStats(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetHistoryStats: %v", err)
	}

	if stats.StatusCounts["ready"] != 2 {
		t.Errorf("ready = %d, want 2", stats.StatusCounts["ready"])
	}
	if stats.StatusCounts["connected"] != 1 {
		t.Errorf("connected = %d, want 1", stats.StatusCounts["connected"])
	}
	if _, ok := stats.StatusCounts["disconnected"]; ok {
		t.Error("out-of-range status counted")
	}
	if stats.ActivityCount != 3 {
		t.Errorf("ActivityCount = %d, want 3", stats.ActivityCount)
	}
	if stats.LastStatus == nil || *stats.LastStatus != "disconnected" {
		t.Errorf("LastStatus = %v, want disconnected", stats.LastStatus)
	}
}
