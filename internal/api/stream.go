package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/graaaaa/vintagepresence/internal/event"
)

// heartbeatInterval is the interval for sending SSE heartbeat comments.
const heartbeatInterval = 20 * time.Second

// handleStream handles GET /api/v1/stream (SSE). An optional kind query
// parameter limits the stream to status or activity records.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var kinds []string
	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
	case event.KindStatus, event.KindActivity:
		kinds = []string{kind}
	default:
		writeError(w, http.StatusBadRequest, "unknown kind", nil)
		return
	}

	// Check for streaming support
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.hub.Subscribe(kinds...)
	defer s.hub.Unsubscribe(sub)

	// Send initial comment to establish connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()

	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprintf(w, ":\n\n")
			flusher.Flush()

		case <-ctx.Done():
			return

		case <-sub.Done():
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format. The record ID is the
// SSE event ID and the kind is the SSE event name.
func writeSSEEvent(w http.ResponseWriter, e *event.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	if id := e.ID(); id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\n", e.Kind)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
