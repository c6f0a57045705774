// Package history stores slot connection transitions in SQLite so the API
// can answer "when did controller N drop out?".
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/wiimote-bridge/internal/bridges/wiimote"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Event is one stored slot transition.
type Event struct {
	ID         string                `json:"id"`
	BridgeID   string                `json:"bridge_id"`
	Slot       int                   `json:"slot"`
	Kind       wiimote.SlotEventKind `json:"kind"`
	Extension  string                `json:"extension"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// Filter controls which events to return.
type Filter struct {
	Slot   *int                  // optional: only this slot
	Kind   wiimote.SlotEventKind // optional: only this kind
	Limit  int                   // default 50, max 200
	Offset int
}

// ListResult contains one page of events, newest first.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository defines slot history operations.
type Repository interface {
	Record(ctx context.Context, event wiimote.SlotEvent) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository persists slot events for one bridge instance.
// It satisfies wiimote.EventRecorder.
type SQLiteRepository struct {
	db       *sql.DB
	bridgeID string
}

// NewSQLiteRepository creates a repository writing events tagged with bridgeID.
func NewSQLiteRepository(db *sql.DB, bridgeID string) *SQLiteRepository {
	return &SQLiteRepository{db: db, bridgeID: bridgeID}
}

// Record inserts a slot event. The ID and timestamp are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, event wiimote.SlotEvent) error {
	if event.Slot < 0 || event.Slot >= wiimote.SlotCount {
		return fmt.Errorf("%w: %d", wiimote.ErrInvalidSlot, event.Slot)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	extension := event.Extension
	if extension == "" {
		extension = wiimote.ExtensionNone.String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO slot_events (id, bridge_id, slot, kind, extension, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, r.bridgeID, event.Slot, string(event.Kind), extension,
		event.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting slot event: %w", err)
	}
	return nil
}

// List returns events matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conditions := []string{"bridge_id = ?"}
	args := []any{r.bridgeID}
	if filter.Slot != nil {
		conditions = append(conditions, "slot = ?")
		args = append(args, *filter.Slot)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM slot_events " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting slot events: %w", err)
	}

	query := "SELECT id, bridge_id, slot, kind, extension, occurred_at FROM slot_events " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying slot events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var kind, occurredAt string
		if err := rows.Scan(&e.ID, &e.BridgeID, &e.Slot, &kind, &e.Extension, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning slot event: %w", err)
		}
		e.Kind = wiimote.SlotEventKind(kind)

		t, err := time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing slot event timestamp %q: %w", occurredAt, err)
		}
		e.OccurredAt = t
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slot events: %w", err)
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
