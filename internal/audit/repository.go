package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action status values.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// timeLayout is fixed-width so created_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Page size limits for List queries.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// ActionRecord is one row of action_log.
type ActionRecord struct {
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	Priority     string    `json:"priority"`
	CommandCount int       `json:"command_count"`
	HasDelay     bool      `json:"has_delay"`
	Sensors      []int     `json:"sensors"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeliveryRecord is one row of delivery_log.
type DeliveryRecord struct {
	ID        string    `json:"id"`
	ActionID  string    `json:"action_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Priority  string    `json:"priority"`
	Payload   string    `json:"payload"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which actions ListActions returns.
type Filter struct {
	Status   string // optional: accepted or rejected
	Priority string // optional: high, medium or low
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult contains a page of actions.
type ListResult struct {
	Actions []ActionRecord `json:"actions"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// Repository defines dispatch history operations.
type Repository interface {
	RecordAction(ctx context.Context, rec *ActionRecord) error
	RecordDelivery(ctx context.Context, rec *DeliveryRecord) error
	ListActions(ctx context.Context, filter Filter) (*ListResult, error)
	ListDeliveries(ctx context.Context, actionID string) ([]DeliveryRecord, error)
}

// SQLiteRepository stores history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository. The action_log and delivery_log
// tables must exist (see the migrations package).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordAction inserts an action row. CreatedAt is set if zero.
func (r *SQLiteRepository) RecordAction(ctx context.Context, rec *ActionRecord) error {
	if rec.ID == "" || rec.Status == "" {
		return fmt.Errorf("%w: action id and status are required", ErrInvalidRecord)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	sensors := rec.Sensors
	if sensors == nil {
		sensors = []int{}
	}
	sensorsJSON, err := json.Marshal(sensors)
	if err != nil {
		return fmt.Errorf("marshalling sensors: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO action_log (id, description, priority, command_count, has_delay, sensors, source, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, error = excluded.error`,
		rec.ID, rec.Description, rec.Priority, rec.CommandCount, boolToInt(rec.HasDelay),
		string(sensorsJSON), rec.Source, rec.Status, nullableString(rec.Error),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting action log: %w", err)
	}
	return nil
}

// RecordDelivery inserts a delivery row. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) RecordDelivery(ctx context.Context, rec *DeliveryRecord) error {
	if rec.Outcome == "" {
		return fmt.Errorf("%w: delivery outcome is required", ErrInvalidRecord)
	}
	if rec.ID == "" {
		rec.ID = "dlv-" + uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_log (id, action_id, outcome, priority, payload, attempts, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullableString(rec.ActionID), rec.Outcome, rec.Priority, rec.Payload,
		rec.Attempts, nullableString(rec.Error), rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}
	return nil
}

// ListActions returns actions matching the filter, most recent first.
func (r *SQLiteRepository) ListActions(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, filter.Priority)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM action_log %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting action log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, description, priority, command_count, has_delay, sensors, source, status, error, created_at
		 FROM action_log %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying action log: %w", err)
	}
	defer rows.Close()

	actions := []ActionRecord{}
	for rows.Next() {
		var (
			rec         ActionRecord
			hasDelay    int
			sensorsJSON string
			errText     sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&rec.ID, &rec.Description, &rec.Priority, &rec.CommandCount,
			&hasDelay, &sensorsJSON, &rec.Source, &rec.Status, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning action log: %w", err)
		}

		rec.HasDelay = hasDelay != 0
		if errText.Valid {
			rec.Error = errText.String
		}
		if json.Unmarshal([]byte(sensorsJSON), &rec.Sensors) != nil {
			rec.Sensors = nil
		}
		if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}

		actions = append(actions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action log: %w", err)
	}

	return &ListResult{
		Actions: actions,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ListDeliveries returns the delivery rows of one action, oldest first.
func (r *SQLiteRepository) ListDeliveries(ctx context.Context, actionID string) ([]DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action_id, outcome, priority, payload, attempts, error, created_at
		 FROM delivery_log WHERE action_id = ? ORDER BY created_at ASC, rowid ASC`,
		actionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying delivery log: %w", err)
	}
	defer rows.Close()

	var records []DeliveryRecord
	for rows.Next() {
		var (
			rec       DeliveryRecord
			action    sql.NullString
			errText   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &action, &rec.Outcome, &rec.Priority, &rec.Payload,
			&rec.Attempts, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning delivery log: %w", err)
		}
		rec.ActionID = action.String
		rec.Error = errText.String
		if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery log: %w", err)
	}
	return records, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
