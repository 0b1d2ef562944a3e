package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/graaaaa/vintagepresence/internal/app"
	"github.com/graaaaa/vintagepresence/internal/event"
	"github.com/graaaaa/vintagepresence/internal/store"
)

// handleHistory handles GET /api/v1/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = event.KindActivity
	}

	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err)
		return
	}

	result, err := s.history.Query(r.Context(), kind, filter)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownKind):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid kind: %s", kind), err)
		case errors.Is(err, store.ErrInvalidCursor):
			writeError(w, http.StatusBadRequest, "invalid cursor", err)
		default:
			writeError(w, http.StatusInternalServerError, "", err)
		}
		return
	}

	// Ensure Items is an empty array, not null, for JSON serialization
	switch items := result.Items.(type) {
	case []event.Status:
		if items == nil {
			result.Items = []event.Status{}
		}
	case []event.Activity:
		if items == nil {
			result.Items = []event.Activity{}
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// parseHistoryFilter parses query parameters into a QueryFilter.
func parseHistoryFilter(r *http.Request) (store.QueryFilter, error) {
	var filter store.QueryFilter
	q := r.URL.Query()

	// Parse 'since' (RFC3339)
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, fmt.Errorf("invalid since: %w", err)
		}
		filter.Since = &t
	}

	// Parse 'limit'
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit: %s", l)
		}
		filter.Limit = limit
	}

	// Parse 'cursor'
	if c := q.Get("cursor"); c != "" {
		filter.Cursor = &c
	}

	return filter, nil
}
