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

// insertEvent writes a task event row inside an existing transaction.
func insertEvent(ctx context.Context, tx *sqlx.Tx, event model.TaskEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO task_events (
			id, task_id, kind, actor, actor_id, body, payload,
			in_timeline, client_visible, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.TaskID, string(event.Kind), string(event.Actor),
		event.ActorID, event.Body, marshalJSON(event.Payload, "{}"),
		boolToInt(event.InTimeline), boolToInt(event.ClientVisible),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting task event: %w", err)
	}
	return nil
}

// AppendEvent appends a single event to a task's log.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event model.TaskEvent) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return insertEvent(ctx, tx, event)
	})
}

// GetEventsForTask retrieves a task's events ordered oldest first.
func (s *SQLiteStore) GetEventsForTask(ctx context.Context, taskID string) ([]model.TaskEvent, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM task_events WHERE task_id = ? ORDER BY created_at, id", taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var events []model.TaskEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// GetEventByID retrieves a single event by ID.
func (s *SQLiteStore) GetEventByID(ctx context.Context, id string) (*model.TaskEvent, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM task_events WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying event %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying event %s: %w", id, err)
		}
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}

	ev, err := scanEvent(rows)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// HasNewerEvent reports whether any event on the task was created after
// the given time.
func (s *SQLiteStore) HasNewerEvent(ctx context.Context, taskID string, after time.Time) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM task_events WHERE task_id = ? AND created_at > ?",
		taskID, after.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("checking newer events for task %s: %w", taskID, err)
	}
	return count > 0, nil
}

// UpdateEventBody replaces a comment's text.
func (s *SQLiteStore) UpdateEventBody(ctx context.Context, id, body string) error {
	result, err := s.execContext(ctx,
		"UPDATE task_events SET body = ? WHERE id = ?", body, id,
	)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteEvent removes an event by ID.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.execContext(ctx, "DELETE FROM task_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// scanEvent scans a task event row from a sqlx.Rows result set.
func scanEvent(rows *sqlx.Rows) (model.TaskEvent, error) {
	var (
		ev            model.TaskEvent
		kind, actor   string
		payload       string
		inTimeline    int
		clientVisible int
		actorID       sql.NullString
	)

	err := rows.Scan(
		&ev.ID, &ev.TaskID, &kind, &actor, &actorID, &ev.Body, &payload,
		&inTimeline, &clientVisible, &ev.CreatedAt,
	)
	if err != nil {
		return model.TaskEvent{}, fmt.Errorf("scanning event row: %w", err)
	}

	ev.Kind = model.EventKind(kind)
	ev.Actor = model.Actor(actor)
	if actorID.Valid {
		v := actorID.String
		ev.ActorID = &v
	}
	ev.InTimeline = inTimeline != 0
	ev.ClientVisible = clientVisible != 0

	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return model.TaskEvent{}, fmt.Errorf("unmarshaling event payload: %w", err)
		}
	}

	return ev, nil
}
