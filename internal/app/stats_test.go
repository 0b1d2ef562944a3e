package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/graaaaa/vintagepresence/internal/store"
)

// stubStatsStore is a test double for StatsStore.
type stubStatsStore struct {
	gotSince time.Time
	gotUntil time.Time
	result   *store.HistoryStats
	err      error
}

func (s *stubStatsStore) GetHistoryStats(ctx context.Context, since, until time.Time) (*store.HistoryStats, error) {
	s.gotSince = since
	s.gotUntil = until
	return s.result, s.err
}

func TestStatsService_GetStats_Success(t *testing.T) {
	lastStatus := "ready"
	lastAt := "2024-01-01T12:00:00.000000000Z"
	stub := &stubStatsStore{
		result: &store.HistoryStats{
			StatusCounts:   map[string]int{"ready": 3, "disconnected": 2},
			ActivityCount:  7,
			LastStatus:     &lastStatus,
			LastStatusAt:   &lastAt,
			LastActivityAt: &lastAt,
		},
	}
	svc := NewStatsService(stub)

	result, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}

	if result.TodayStatusCounts["ready"] != 3 {
		t.Errorf("ready count = %d, want 3", result.TodayStatusCounts["ready"])
	}
	if result.TodayStatusCounts["disconnected"] != 2 {
		t.Errorf("disconnected count = %d, want 2", result.TodayStatusCounts["disconnected"])
	}
	if result.TodayActivities != 7 {
		t.Errorf("TodayActivities = %d, want 7", result.TodayActivities)
	}
	if result.LastStatus == nil || *result.LastStatus != lastStatus {
		t.Errorf("LastStatus = %v, want %v", result.LastStatus, lastStatus)
	}
	if result.LastActivityAt == nil || *result.LastActivityAt != lastAt {
		t.Errorf("LastActivityAt = %v, want %v", result.LastActivityAt, lastAt)
	}
}

func TestStatsService_GetStats_DateRange(t *testing.T) {
	stub := &stubStatsStore{result: &store.HistoryStats{}}
	svc := NewStatsService(stub)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 17, 42, 5, 0, time.UTC) }

	if _, err := svc.GetStats(context.Background()); err != nil {
		t.Fatalf("GetStats error: %v", err)
	}

	// Verify that the date range is exactly 24 hours
	diff := stub.gotUntil.Sub(stub.gotSince)
	if diff != 24*time.Hour {
		t.Errorf("date range = %v, want 24h", diff)
	}

	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !stub.gotSince.Equal(want) {
		t.Errorf("since = %v, want %v", stub.gotSince, want)
	}
}

func TestStatsService_GetStats_Error(t *testing.T) {
	stub := &stubStatsStore{
		err: errors.New("database error"),
	}
	svc := NewStatsService(stub)

	_, err := svc.GetStats(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "database error" {
		t.Errorf("error = %q, want %q", err.Error(), "database error")
	}
}

func TestStatsService_GetStats_EmptyHistory(t *testing.T) {
	stub := &stubStatsStore{result: &store.HistoryStats{}}
	svc := NewStatsService(stub)

	result, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}

	if result.TodayStatusCounts == nil {
		t.Error("TodayStatusCounts should not be nil")
	}
	if result.LastStatus != nil {
		t.Errorf("LastStatus = %v, want nil", result.LastStatus)
	}
}
