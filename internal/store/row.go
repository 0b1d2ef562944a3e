package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/graaaaa/vintagepresence/internal/event"
)

// statusRow is the internal type representing a status_log row.
type statusRow struct {
	ID     string
	At     string
	Status string
}

func (r *statusRow) toStatus() (*event.Status, error) {
	at, err := time.Parse(TimeFormat, r.At)
	if err != nil {
		return nil, fmt.Errorf("parse at %q: %w", r.At, err)
	}
	return &event.Status{ID: r.ID, At: at, Status: r.Status}, nil
}

// activityRow is the internal type representing an activity_log row.
type activityRow struct {
	ID         string
	At         string
	Details    string
	State      string
	LargeImage sql.NullString
	SmallImage sql.NullString
}

func (r *activityRow) toActivity() (*event.Activity, error) {
	at, err := time.Parse(TimeFormat, r.At)
	if err != nil {
		return nil, fmt.Errorf("parse at %q: %w", r.At, err)
	}
	a := &event.Activity{
		ID:      r.ID,
		At:      at,
		Details: r.Details,
		State:   r.State,
	}
	if r.LargeImage.Valid {
		a.LargeImage = r.LargeImage.String
	}
	if r.SmallImage.Valid {
		a.SmallImage = r.SmallImage.String
	}
	return a, nil
}

func activityToRow(a *event.Activity) *activityRow {
	r := &activityRow{
		ID:      a.ID,
		At:      a.At.UTC().Format(TimeFormat),
		Details: a.Details,
		State:   a.State,
	}
	if a.LargeImage != "" {
		r.LargeImage = sql.NullString{String: a.LargeImage, Valid: true}
	}
	if a.SmallImage != "" {
		r.SmallImage = sql.NullString{String: a.SmallImage, Valid: true}
	}
	return r
}

// validateStatus checks that required fields are set.
func validateStatus(st *event.Status) error {
	if strings.TrimSpace(st.Status) == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidRecord)
	}
	if st.At.IsZero() {
		return fmt.Errorf("%w: at is required", ErrInvalidRecord)
	}
	return nil
}

// validateActivity checks that required fields are set.
func validateActivity(a *event.Activity) error {
	if a.At.IsZero() {
		return fmt.Errorf("%w: at is required", ErrInvalidRecord)
	}
	if a.Details == "" && a.State == "" {
		return fmt.Errorf("%w: details or state is required", ErrInvalidRecord)
	}
	return nil
}
