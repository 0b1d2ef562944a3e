package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/graaaaa/vintagepresence/internal/app"
	"github.com/graaaaa/vintagepresence/internal/config"
	"github.com/graaaaa/vintagepresence/internal/event"
	"github.com/graaaaa/vintagepresence/internal/host"
	"github.com/graaaaa/vintagepresence/internal/store"
)

// newRequest builds a request addressed to the loopback bridge.
func newRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Host = "127.0.0.1:8765"
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	health := app.HealthService{Version: "test-version"}
	server := NewServer(":8765", health)

	rec := serve(server, newRequest(http.MethodGet, "/api/v1/health", ""))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	resp := decodeBody[app.HealthResult](t, rec)
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
	if resp.Version != "test-version" {
		t.Errorf("expected version 'test-version', got '%s'", resp.Version)
	}
}

func TestHealthEndpointMethodNotAllowed(t *testing.T) {
	server := NewServer(":8765", app.HealthService{})

	rec := serve(server, newRequest(http.MethodPost, "/api/v1/health", ""))

	// Go 1.22's ServeMux returns 405 for wrong method
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestRejectsForeignHost(t *testing.T) {
	server := NewServer(":8765", app.HealthService{})

	req := newRequest(http.MethodGet, "/api/v1/health", "")
	req.Host = "rebind.example:8765"
	rec := serve(server, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestOptionalRoutesNotRegistered(t *testing.T) {
	server := NewServer(":8765", app.HealthService{})

	rec := serve(server, newRequest(http.MethodGet, "/api/v1/presence", ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	latest := host.NewLatest()
	server := NewServer(":8765", app.HealthService{},
		WithSnapshotUsecase(app.SnapshotService{Latest: latest}))

	body := `{"in_world":true,"player_name":"Tyron","deaths":2,"position":{"x":1,"y":2,"z":3},"future_field":1}`
	rec := serve(server, newRequest(http.MethodPut, "/api/v1/snapshot", body))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body)
	}
	snap, ok := latest.Get()
	if !ok || snap.PlayerName != "Tyron" || *snap.Deaths != 2 {
		t.Errorf("stored snapshot = %+v ok=%v", snap, ok)
	}

	rec = serve(server, newRequest(http.MethodPut, "/api/v1/snapshot", `{"in_world":true,"hour_of_day":30}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for invalid snapshot, got %d", rec.Code)
	}

	rec = serve(server, newRequest(http.MethodPut, "/api/v1/snapshot", `{not json`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rec.Code)
	}

	rec = serve(server, newRequest(http.MethodDelete, "/api/v1/snapshot", ""))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, ok := latest.Get(); ok {
		t.Error("snapshot should be cleared")
	}
}

func TestSnapshotEndpoint_CrossOriginRejected(t *testing.T) {
	latest := host.NewLatest()
	server := NewServer(":8765", app.HealthService{},
		WithSnapshotUsecase(app.SnapshotService{Latest: latest}))

	req := newRequest(http.MethodPut, "/api/v1/snapshot", `{"in_world":true}`)
	req.Header.Set("Origin", "https://evil.example")
	rec := serve(server, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if _, ok := latest.Get(); ok {
		t.Error("snapshot should not be stored")
	}
}

type stubPresence struct{ res app.PresenceResult }

func (s stubPresence) GetPresence(ctx context.Context) app.PresenceResult { return s.res }

func TestPresenceEndpoint(t *testing.T) {
	server := NewServer(":8765", app.HealthService{},
		WithPresenceUsecase(stubPresence{res: app.PresenceResult{State: "ready", Connected: true}}))

	rec := serve(server, newRequest(http.MethodGet, "/api/v1/presence", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBody[app.PresenceResult](t, rec)
	if resp.State != "ready" || !resp.Connected {
		t.Errorf("resp = %+v", resp)
	}
}

type stubRenderer struct{}

func (stubRenderer) Preview(tmpl string) (string, bool) { return strings.ToUpper(tmpl), false }
func (stubRenderer) Tokens() []string                   { return []string{"day"} }

func TestPreviewEndpoint(t *testing.T) {
	server := NewServer(":8765", app.HealthService{},
		WithPreviewUsecase(app.PreviewService{Renderer: stubRenderer{}}))

	rec := serve(server, newRequest(http.MethodPost, "/api/v1/preview", `{"template":"day {day}"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBody[app.PreviewResult](t, rec)
	if resp.Rendered != "DAY {DAY}" || resp.ContextAvailable {
		t.Errorf("resp = %+v", resp)
	}

	rec = serve(server, newRequest(http.MethodPost, "/api/v1/preview", `{"template":"x","extra":1}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown field, got %d", rec.Code)
	}

	long := fmt.Sprintf(`{"template":%q}`, strings.Repeat("a", app.MaxPreviewTemplateLength+1))
	rec = serve(server, newRequest(http.MethodPost, "/api/v1/preview", long))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}

	rec = serve(server, newRequest(http.MethodGet, "/api/v1/tokens", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody[tokensResponse](t, rec); len(got.Tokens) != 1 || got.Tokens[0] != "day" {
		t.Errorf("tokens = %v", got.Tokens)
	}
}

type stubHistory struct {
	gotKind   string
	gotFilter store.QueryFilter
	result    app.HistoryResult
	err       error
}

func (s *stubHistory) Query(ctx context.Context, kind string, f store.QueryFilter) (app.HistoryResult, error) {
	s.gotKind = kind
	s.gotFilter = f
	if s.err != nil {
		return app.HistoryResult{}, s.err
	}
	res := s.result
	res.Kind = kind
	return res, nil
}

func TestHistoryEndpoint(t *testing.T) {
	next := "01HQZX3Y7N8V2K4M6P9R0S1T2U"
	stub := &stubHistory{result: app.HistoryResult{
		Items:      []event.Status{{ID: "01HQZX3Y7N8V2K4M6P9R0S1T2V", Status: "ready"}},
		NextCursor: &next,
	}}
	server := NewServer(":8765", app.HealthService{}, WithHistoryUsecase(stub))

	rec := serve(server, newRequest(http.MethodGet,
		"/api/v1/history?kind=status&limit=10&since=2024-01-01T00:00:00Z&cursor=abc", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if stub.gotKind != "status" {
		t.Errorf("kind = %q", stub.gotKind)
	}
	if stub.gotFilter.Limit != 10 || stub.gotFilter.Since == nil || stub.gotFilter.Cursor == nil {
		t.Errorf("filter = %+v", stub.gotFilter)
	}

	var resp struct {
		Kind       string         `json:"kind"`
		Items      []event.Status `json:"items"`
		NextCursor *string        `json:"next_cursor"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 || resp.NextCursor == nil || *resp.NextCursor != next {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHistoryEndpoint_DefaultsToActivityAndEmptyArray(t *testing.T) {
	stub := &stubHistory{result: app.HistoryResult{Items: []event.Activity(nil)}}
	server := NewServer(":8765", app.HealthService{}, WithHistoryUsecase(stub))

	rec := serve(server, newRequest(http.MethodGet, "/api/v1/history", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.gotKind != event.KindActivity {
		t.Errorf("kind = %q", stub.gotKind)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Errorf("expected empty items array, got %s", rec.Body)
	}
}

func TestHistoryEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
		want  int
	}{
		{"bad limit", "?limit=0", nil, http.StatusBadRequest},
		{"bad since", "?since=yesterday", nil, http.StatusBadRequest},
		{"unknown kind", "?kind=weather", app.ErrUnknownKind, http.StatusBadRequest},
		{"bad cursor", "?cursor=zzz", store.ErrInvalidCursor, http.StatusBadRequest},
		{"store failure", "", errors.New("disk gone"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(":8765", app.HealthService{}, WithHistoryUsecase(&stubHistory{err: tt.err}))
			rec := serve(server, newRequest(http.MethodGet, "/api/v1/history"+tt.query, ""))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

type stubStats struct {
	res *app.StatsResult
	err error
}

func (s stubStats) GetStats(ctx context.Context) (*app.StatsResult, error) { return s.res, s.err }

func TestStatsEndpoint(t *testing.T) {
	server := NewServer(":8765", app.HealthService{},
		WithStatsUsecase(stubStats{res: &app.StatsResult{TodayActivities: 4}}))

	rec := serve(server, newRequest(http.MethodGet, "/api/v1/stats", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody[app.StatsResult](t, rec); got.TodayActivities != 4 {
		t.Errorf("TodayActivities = %d", got.TodayActivities)
	}

	server = NewServer(":8765", app.HealthService{},
		WithStatsUsecase(stubStats{err: errors.New("boom")}))
	rec = serve(server, newRequest(http.MethodGet, "/api/v1/stats", ""))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestConfigEndpoints(t *testing.T) {
	path := t.TempDir() + "/config.json"
	active := config.DefaultConfig()
	svc := app.ConfigService{
		ConfigPath: path,
		Current:    func() config.Config { return active },
		Apply:      func(c config.Config) { active = c },
	}
	server := NewServer(":8765", app.HealthService{}, WithConfigUsecase(svc))

	rec := serve(server, newRequest(http.MethodGet, "/api/v1/config", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody[config.Config](t, rec); got != active {
		t.Errorf("GET config = %+v", got)
	}

	rec = serve(server, newRequest(http.MethodPut, "/api/v1/config",
		`{"details_template":"Day {day}","small_image_key":"dragon"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	resp := decodeBody[app.ConfigUpdateResponse](t, rec)
	if !resp.Success || !resp.Corrected {
		t.Errorf("resp = %+v", resp)
	}
	if active.DetailsTemplate != "Day {day}" || active.SmallImageKey != config.DefaultSmallImageKey {
		t.Errorf("active = %+v", active)
	}

	rec = serve(server, newRequest(http.MethodPut, "/api/v1/config", `{"no_such_field":true}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestStreamEndpoint_UnknownKind(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	server := NewServer(":0", app.HealthService{}, WithHub(hub))
	rec := serve(server, newRequest(http.MethodGet, "/api/v1/stream?kind=chat", ""))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestStreamEndpoint(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	server := NewServer(":0", app.HealthService{}, WithHub(hub))
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || line != ": connected\n" {
		t.Fatalf("first line = %q err=%v", line, err)
	}
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatal(err)
	}

	hub.Publish(statusEvent("01HQZX3Y7N8V2K4M6P9R0S1T2U"))

	var lines []string
	for len(lines) < 3 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		lines = append(lines, strings.TrimSuffix(line, "\n"))
	}

	if lines[0] != "id: 01HQZX3Y7N8V2K4M6P9R0S1T2U" {
		t.Errorf("id line = %q", lines[0])
	}
	if lines[1] != "event: status" {
		t.Errorf("event line = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "data: ") || !strings.Contains(lines[2], `"status":"ready"`) {
		t.Errorf("data line = %q", lines[2])
	}
}
