package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/soporteware/helpdesk/internal/model"
)

// EnqueueNotification inserts a new queue row. Rows with a future SendAt
// start in the scheduled state; everything else starts pending.
func (s *SQLiteStore) EnqueueNotification(ctx context.Context, n model.QueuedNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.MaxRetries == 0 {
		if s.maxRetries > 0 {
			n.MaxRetries = s.maxRetries
		} else {
			n.MaxRetries = model.DefaultMaxRetries
		}
	}
	if n.State == "" {
		n.State = model.QueuePending
		if n.SendAt != nil && n.SendAt.After(time.Now()) {
			n.State = model.QueueScheduled
		}
	}

	_, err := s.execContext(ctx, `
		INSERT INTO notification_queue (
			id, task_id, recipients_to, recipients_cc, subject, html, text,
			state, retry_count, max_retries, next_retry_at, send_at,
			priority, last_error, send_log, created_at, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.TaskID,
		marshalJSON(n.To, "[]"), marshalJSON(n.Cc, "[]"),
		n.Subject, n.HTML, n.Text,
		string(n.State), n.RetryCount, n.MaxRetries, n.NextRetryAt, n.SendAt,
		n.Priority, n.LastError, marshalJSON(n.SendLog, "[]"),
		n.CreatedAt, n.SentAt,
	)
	if err != nil {
		return fmt.Errorf("enqueuing notification: %w", err)
	}
	return nil
}

// GetNotification retrieves a queue row by ID.
func (s *SQLiteStore) GetNotification(ctx context.Context, id string) (*model.QueuedNotification, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM notification_queue WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying notification %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying notification %s: %w", id, err)
		}
		return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}

	n, err := scanQueued(rows)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// DueNotifications returns up to limit pending rows whose retry delay has
// elapsed, ordered by priority then creation time.
func (s *SQLiteStore) DueNotifications(ctx context.Context, now time.Time, limit int) ([]model.QueuedNotification, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT * FROM notification_queue
		WHERE state = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY priority, created_at
		LIMIT ?`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying due notifications: %w", err)
	}
	defer rows.Close()

	var due []model.QueuedNotification
	for rows.Next() {
		n, err := scanQueued(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, n)
	}

	return due, rows.Err()
}

// ClaimNotification conditionally moves a pending row to processing. The
// affected-row check makes this the mutual-exclusion point: two workers
// cannot both claim the same row.
func (s *SQLiteStore) ClaimNotification(ctx context.Context, id string) error {
	return s.conditionalState(ctx, id,
		"UPDATE notification_queue SET state = 'processing' WHERE id = ? AND state = 'pending'")
}

// MarkNotificationSent records a successful delivery.
func (s *SQLiteStore) MarkNotificationSent(ctx context.Context, id string, sentAt time.Time, log []model.SendLogEntry) error {
	return s.conditionalState(ctx, id, `
		UPDATE notification_queue
		SET state = 'sent', sent_at = ?, last_error = '', send_log = ?
		WHERE id = ? AND state = 'processing'`,
		sentAt.UTC(), marshalJSON(log, "[]"))
}

// ScheduleNotificationRetry returns a processing row to pending with an
// updated retry count and next eligible time.
func (s *SQLiteStore) ScheduleNotificationRetry(
	ctx context.Context, id string,
	retryCount int, nextRetryAt time.Time,
	lastError string, log []model.SendLogEntry,
) error {
	return s.conditionalState(ctx, id, `
		UPDATE notification_queue
		SET state = 'pending', retry_count = ?, next_retry_at = ?, last_error = ?, send_log = ?
		WHERE id = ? AND state = 'processing'`,
		retryCount, nextRetryAt.UTC(), lastError, marshalJSON(log, "[]"))
}

// FailNotification terminally errors a processing row.
func (s *SQLiteStore) FailNotification(ctx context.Context, id string, retryCount int, lastError string, log []model.SendLogEntry) error {
	return s.conditionalState(ctx, id, `
		UPDATE notification_queue
		SET state = 'error', retry_count = ?, last_error = ?, send_log = ?
		WHERE id = ? AND state = 'processing'`,
		retryCount, lastError, marshalJSON(log, "[]"))
}

// ResetNotification returns an error or cancelled row to pending with a
// cleared retry state.
func (s *SQLiteStore) ResetNotification(ctx context.Context, id string) error {
	return s.conditionalState(ctx, id, `
		UPDATE notification_queue
		SET state = 'pending', retry_count = 0, next_retry_at = NULL, last_error = ''
		WHERE id = ? AND state IN ('error', 'cancelled')`)
}

// CancelNotification cancels a pending row.
func (s *SQLiteStore) CancelNotification(ctx context.Context, id string) error {
	return s.conditionalState(ctx, id,
		"UPDATE notification_queue SET state = 'cancelled' WHERE id = ? AND state = 'pending'")
}

// PromoteScheduled moves scheduled rows whose send time has arrived into
// pending, returning how many were promoted.
func (s *SQLiteStore) PromoteScheduled(ctx context.Context, now time.Time) (int, error) {
	result, err := s.execContext(ctx, `
		UPDATE notification_queue
		SET state = 'pending'
		WHERE state = 'scheduled' AND send_at IS NOT NULL AND send_at <= ?`,
		now.UTC())
	if err != nil {
		return 0, fmt.Errorf("promoting scheduled notifications: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// conditionalState executes a state-guarded update. Queries must place the
// row id as the first trailing placeholder after the SET arguments.
func (s *SQLiteStore) conditionalState(ctx context.Context, id, query string, setArgs ...interface{}) error {
	args := append(setArgs, id)
	result, err := s.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating notification %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotClaimed)
	}
	return nil
}

// scanQueued scans a queue row from a sqlx.Rows result set.
func scanQueued(rows *sqlx.Rows) (model.QueuedNotification, error) {
	var (
		n           model.QueuedNotification
		taskID      sql.NullString
		to, cc      string
		state       string
		nextRetryAt sql.NullTime
		sendAt      sql.NullTime
		sentAt      sql.NullTime
		sendLog     string
	)

	err := rows.Scan(
		&n.ID, &taskID, &to, &cc, &n.Subject, &n.HTML, &n.Text,
		&state, &n.RetryCount, &n.MaxRetries, &nextRetryAt, &sendAt,
		&n.Priority, &n.LastError, &sendLog, &n.CreatedAt, &sentAt,
	)
	if err != nil {
		return model.QueuedNotification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	if taskID.Valid {
		v := taskID.String
		n.TaskID = &v
	}
	n.State = model.QueueState(state)
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		n.NextRetryAt = &t
	}
	if sendAt.Valid {
		t := sendAt.Time
		n.SendAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}

	if to != "" {
		if err := json.Unmarshal([]byte(to), &n.To); err != nil {
			return model.QueuedNotification{}, fmt.Errorf("unmarshaling to list: %w", err)
		}
	}
	if cc != "" {
		if err := json.Unmarshal([]byte(cc), &n.Cc); err != nil {
			return model.QueuedNotification{}, fmt.Errorf("unmarshaling cc list: %w", err)
		}
	}
	if sendLog != "" {
		if err := json.Unmarshal([]byte(sendLog), &n.SendLog); err != nil {
			return model.QueuedNotification{}, fmt.Errorf("unmarshaling send log: %w", err)
		}
	}

	return n, nil
}
