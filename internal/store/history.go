package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graaaaa/vintagepresence/internal/event"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// InsertStatus records a status notification and sets st.ID.
func (s *Store) InsertStatus(ctx context.Context, st *event.Status) error {
	if err := validateStatus(st); err != nil {
		return err
	}
	id, err := s.newID(st.At)
	if err != nil {
		return fmt.Errorf("new id: %w", err)
	}

	const query = `INSERT INTO status_log (id, at, status, schema_version) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		id.String(),
		st.At.UTC().Format(TimeFormat),
		st.Status,
		CurrentSchemaVersion,
	); err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	st.ID = id.String()
	return nil
}

// InsertActivity records a submitted activity and sets a.ID.
func (s *Store) InsertActivity(ctx context.Context, a *event.Activity) error {
	if err := validateActivity(a); err != nil {
		return err
	}
	id, err := s.newID(a.At)
	if err != nil {
		return fmt.Errorf("new id: %w", err)
	}
	a.ID = id.String()

	const query = `
	INSERT INTO activity_log (id, at, details, state, large_image, small_image, schema_version)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	row := activityToRow(a)
	if _, err := s.db.ExecContext(ctx, query,
		row.ID,
		row.At,
		row.Details,
		row.State,
		row.LargeImage,
		row.SmallImage,
		CurrentSchemaVersion,
	); err != nil {
		a.ID = ""
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// QueryFilter contains filter options for history queries.
type QueryFilter struct {
	Since  *time.Time
	Limit  int
	Cursor *string
}

// StatusPage is a page of status records, newest first.
type StatusPage struct {
	Items      []event.Status
	NextCursor *string
}

// ActivityPage is a page of activity records, newest first.
type ActivityPage struct {
	Items      []event.Activity
	NextCursor *string
}

// buildQuery appends the filter to base and returns the query and args.
func buildQuery(base string, f QueryFilter) (string, []any, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	} else if limit > maxLimit {
		limit = maxLimit
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(base)
	sb.WriteString(" WHERE 1=1")

	if f.Since != nil {
		sb.WriteString(" AND at >= ?")
		args = append(args, f.Since.UTC().Format(TimeFormat))
	}
	if f.Cursor != nil && *f.Cursor != "" {
		id, err := decodeCursor(*f.Cursor)
		if err != nil {
			return "", nil, 0, err
		}
		sb.WriteString(" AND id < ?")
		args = append(args, id.String())
	}

	sb.WriteString(" ORDER BY id DESC LIMIT ?")
	args = append(args, limit+1) // fetch one extra to detect next page
	return sb.String(), args, limit, nil
}

// QueryStatus returns status records, newest first.
func (s *Store) QueryStatus(ctx context.Context, f QueryFilter) (StatusPage, error) {
	query, args, limit, err := buildQuery(`SELECT id, at, status FROM status_log`, f)
	if err != nil {
		return StatusPage{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return StatusPage{}, fmt.Errorf("query status: %w", err)
	}
	defer rows.Close()

	items := make([]event.Status, 0, limit+1)
	for rows.Next() {
		var r statusRow
		if err := rows.Scan(&r.ID, &r.At, &r.Status); err != nil {
			return StatusPage{}, fmt.Errorf("scan status: %w", err)
		}
		st, err := r.toStatus()
		if err != nil {
			return StatusPage{}, err
		}
		items = append(items, *st)
	}
	if err := rows.Err(); err != nil {
		return StatusPage{}, fmt.Errorf("rows error: %w", err)
	}

	page := StatusPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = cursorAfter(items[limit-1].ID)
	}
	return page, nil
}

// QueryActivities returns activity records, newest first.
func (s *Store) QueryActivities(ctx context.Context, f QueryFilter) (ActivityPage, error) {
	query, args, limit, err := buildQuery(
		`SELECT id, at, details, state, large_image, small_image FROM activity_log`, f)
	if err != nil {
		return ActivityPage{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ActivityPage{}, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	items := make([]event.Activity, 0, limit+1)
	for rows.Next() {
		var r activityRow
		if err := rows.Scan(&r.ID, &r.At, &r.Details, &r.State, &r.LargeImage, &r.SmallImage); err != nil {
			return ActivityPage{}, fmt.Errorf("scan activity: %w", err)
		}
		a, err := r.toActivity()
		if err != nil {
			return ActivityPage{}, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return ActivityPage{}, fmt.Errorf("rows error: %w", err)
	}

	page := ActivityPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = cursorAfter(items[limit-1].ID)
	}
	return page, nil
}

func cursorAfter(id string) *string {
	parsed, err := decodeCursor(id)
	if err != nil {
		return nil
	}
	c := encodeCursor(parsed)
	return &c
}

// LastActivity returns the most recent activity record, or nil.
func (s *Store) LastActivity(ctx context.Context) (*event.Activity, error) {
	page, err := s.QueryActivities(ctx, QueryFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, nil
	}
	return &page.Items[0], nil
}

// Prune deletes records older than cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(TimeFormat)
	var total int64
	for _, table := range []string{"status_log", "activity_log"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE at < ?", ts)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}
