package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/soporteware/helpdesk/internal/model"
)

// actionColumns maps a workflow action kind to the task column it mutates.
var actionColumns = map[model.ActionKind]string{
	model.ActionSetStatus:     "status_id",
	model.ActionSetPriority:   "priority_id",
	model.ActionSetType:       "type_id",
	model.ActionSetModule:     "module_id",
	model.ActionSetRelease:    "release_id",
	model.ActionSetAssignment: "assigned_agent_id",
}

// CreateTask inserts a new task and its creation event in one transaction.
// Generates UUIDs for empty ids.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task, event model.TaskEvent) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (
				id, number, title, client_id, type_id, status_id, priority_id,
				module_id, release_id, hotfix_id, assigned_agent_id,
				created_by_agent_id, created_by_client_user_id, reviewer_agent_id,
				reproduced, closed_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.Number, task.Title, task.ClientID, task.TypeID,
			task.StatusID, task.PriorityID,
			task.ModuleID, task.ReleaseID, task.HotfixID, task.AssignedAgentID,
			task.CreatedByAgentID, task.CreatedByClientUserID, task.ReviewerAgentID,
			boolToInt(task.Reproduced), task.ClosedAt, task.CreatedAt, task.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating task %s: %w", task.Number, err)
		}

		event.TaskID = task.ID
		return insertEvent(ctx, tx, event)
	})
}

// GetTaskByID retrieves a single task by its ID.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	return s.getTask(ctx, "SELECT * FROM tasks WHERE id = ?", id)
}

// GetTaskByNumber retrieves a single task by its human-readable number.
func (s *SQLiteStore) GetTaskByNumber(ctx context.Context, number string) (*model.Task, error) {
	return s.getTask(ctx, "SELECT * FROM tasks WHERE number = ?", number)
}

func (s *SQLiteStore) getTask(ctx context.Context, query string, arg interface{}) (*model.Task, error) {
	row := s.db.QueryRowxContext(ctx, query, arg)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %v: %w", arg, err)
	}
	return &task, nil
}

// ApplyTaskChange updates one task field and appends the audit event in
// a single transaction, so a crash cannot record one without the other.
func (s *SQLiteStore) ApplyTaskChange(
	ctx context.Context,
	taskID string,
	field model.ActionKind,
	newID *string,
	event model.TaskEvent,
) error {
	column, ok := actionColumns[field]
	if !ok {
		return fmt.Errorf("unknown task field %q", field)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := fmt.Sprintf(
			"UPDATE tasks SET %s = ?, updated_at = ? WHERE id = ? AND closed_at IS NULL",
			column,
		)
		result, err := tx.ExecContext(ctx, query, newID, time.Now().UTC(), taskID)
		if err != nil {
			return fmt.Errorf("updating task %s field %s: %w", taskID, column, err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("task %s not found or closed: %w", taskID, ErrNotFound)
		}

		event.TaskID = taskID
		return insertEvent(ctx, tx, event)
	})
}

// UpdateTaskDetails rewrites the free-form task fields and appends the
// audit event in a single transaction.
func (s *SQLiteStore) UpdateTaskDetails(ctx context.Context, taskID, title string, reproduced bool, event model.TaskEvent) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("task title must not be empty")
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE tasks SET title = ?, reproduced = ?, updated_at = ? WHERE id = ? AND closed_at IS NULL",
			title, boolToInt(reproduced), time.Now().UTC(), taskID,
		)
		if err != nil {
			return fmt.Errorf("updating task %s details: %w", taskID, err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("task %s not found or closed: %w", taskID, ErrNotFound)
		}

		event.TaskID = taskID
		return insertEvent(ctx, tx, event)
	})
}

// CloseTask stamps the task's closed timestamp and appends the closure
// event in a single transaction.
func (s *SQLiteStore) CloseTask(ctx context.Context, taskID string, closedAt time.Time, event model.TaskEvent) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE tasks SET closed_at = ?, updated_at = ? WHERE id = ? AND closed_at IS NULL",
			closedAt.UTC(), time.Now().UTC(), taskID,
		)
		if err != nil {
			return fmt.Errorf("closing task %s: %w", taskID, err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("task %s not found or already closed: %w", taskID, ErrNotFound)
		}

		event.TaskID = taskID
		return insertEvent(ctx, tx, event)
	})
}

// scanTask scans a task row from a sqlx.Row.
func scanTask(row *sqlx.Row) (model.Task, error) {
	var (
		task       model.Task
		reproduced int
		closedAt   sql.NullTime
	)

	err := row.Scan(
		&task.ID, &task.Number, &task.Title, &task.ClientID, &task.TypeID,
		&task.StatusID, &task.PriorityID,
		&task.ModuleID, &task.ReleaseID, &task.HotfixID, &task.AssignedAgentID,
		&task.CreatedByAgentID, &task.CreatedByClientUserID, &task.ReviewerAgentID,
		&reproduced, &closedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	task.Reproduced = reproduced != 0
	if closedAt.Valid {
		t := closedAt.Time
		task.ClosedAt = &t
	}

	return task, nil
}
