package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/soporteware/helpdesk/internal/model"
)

// codeRow is the shared shape of the id/code/name master-data tables.
type codeRow struct {
	ID   string
	Code string
	Name string
}

func (s *SQLiteStore) getCodeRow(ctx context.Context, table, id string) (*codeRow, error) {
	var row codeRow
	err := s.db.QueryRowxContext(ctx,
		fmt.Sprintf("SELECT id, code, name FROM %s WHERE id = ?", table), id,
	).Scan(&row.ID, &row.Code, &row.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", table, id, err)
	}
	return &row, nil
}

func (s *SQLiteStore) saveCodeRow(ctx context.Context, table, id, code, name string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.execContext(ctx,
		fmt.Sprintf("INSERT OR REPLACE INTO %s (id, code, name) VALUES (?, ?, ?)", table),
		id, code, name,
	)
	if err != nil {
		return "", fmt.Errorf("saving %s %s: %w", table, id, err)
	}
	return id, nil
}

// GetStatus retrieves a status by ID.
func (s *SQLiteStore) GetStatus(ctx context.Context, id string) (*model.Status, error) {
	row, err := s.getCodeRow(ctx, "statuses", id)
	if err != nil {
		return nil, err
	}
	return &model.Status{ID: row.ID, Code: row.Code, Name: row.Name}, nil
}

// GetPriority retrieves a priority by ID.
func (s *SQLiteStore) GetPriority(ctx context.Context, id string) (*model.Priority, error) {
	row, err := s.getCodeRow(ctx, "priorities", id)
	if err != nil {
		return nil, err
	}
	return &model.Priority{ID: row.ID, Code: row.Code, Name: row.Name}, nil
}

// GetTaskType retrieves a task type by ID.
func (s *SQLiteStore) GetTaskType(ctx context.Context, id string) (*model.TaskType, error) {
	row, err := s.getCodeRow(ctx, "task_types", id)
	if err != nil {
		return nil, err
	}
	return &model.TaskType{ID: row.ID, Code: row.Code, Name: row.Name}, nil
}

// GetModule retrieves a module by ID.
func (s *SQLiteStore) GetModule(ctx context.Context, id string) (*model.Module, error) {
	row, err := s.getCodeRow(ctx, "modules", id)
	if err != nil {
		return nil, err
	}
	return &model.Module{ID: row.ID, Code: row.Code, Name: row.Name}, nil
}

// GetRelease retrieves a release by ID.
func (s *SQLiteStore) GetRelease(ctx context.Context, id string) (*model.Release, error) {
	row, err := s.getCodeRow(ctx, "releases", id)
	if err != nil {
		return nil, err
	}
	return &model.Release{ID: row.ID, Code: row.Code, Name: row.Name}, nil
}

// SaveStatus inserts or replaces a status.
func (s *SQLiteStore) SaveStatus(ctx context.Context, st model.Status) error {
	_, err := s.saveCodeRow(ctx, "statuses", st.ID, st.Code, st.Name)
	return err
}

// SavePriority inserts or replaces a priority.
func (s *SQLiteStore) SavePriority(ctx context.Context, p model.Priority) error {
	_, err := s.saveCodeRow(ctx, "priorities", p.ID, p.Code, p.Name)
	return err
}

// SaveTaskType inserts or replaces a task type.
func (s *SQLiteStore) SaveTaskType(ctx context.Context, t model.TaskType) error {
	_, err := s.saveCodeRow(ctx, "task_types", t.ID, t.Code, t.Name)
	return err
}

// SaveModule inserts or replaces a module.
func (s *SQLiteStore) SaveModule(ctx context.Context, m model.Module) error {
	_, err := s.saveCodeRow(ctx, "modules", m.ID, m.Code, m.Name)
	return err
}

// SaveRelease inserts or replaces a release.
func (s *SQLiteStore) SaveRelease(ctx context.Context, r model.Release) error {
	_, err := s.saveCodeRow(ctx, "releases", r.ID, r.Code, r.Name)
	return err
}
