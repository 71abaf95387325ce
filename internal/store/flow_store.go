package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/soporteware/helpdesk/internal/model"
)

// GetFlowForType retrieves the flow configured for a task type, with its
// allowed statuses and transitions. Returns nil (not an error) when no
// flow exists, so callers fail open.
func (s *SQLiteStore) GetFlowForType(ctx context.Context, taskTypeID string) (*model.Flow, error) {
	var (
		flow      model.Flow
		active    int
		initialID sql.NullString
	)

	err := s.db.QueryRowxContext(ctx,
		"SELECT id, task_type_id, active, initial_status_id FROM flows WHERE task_type_id = ?",
		taskTypeID,
	).Scan(&flow.ID, &flow.TaskTypeID, &active, &initialID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting flow for type %s: %w", taskTypeID, err)
	}

	flow.Active = active != 0
	if initialID.Valid {
		v := initialID.String
		flow.InitialStatusID = &v
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT status_id, client_visible, sort_order
		FROM flow_statuses WHERE flow_id = ? ORDER BY sort_order`, flow.ID)
	if err != nil {
		return nil, fmt.Errorf("querying flow statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fs      model.FlowStatus
			visible int
		)
		if err := rows.Scan(&fs.StatusID, &visible, &fs.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning flow status row: %w", err)
		}
		fs.ClientVisible = visible != 0
		flow.Statuses = append(flow.Statuses, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trows, err := s.db.QueryxContext(ctx, `
		SELECT origin_status_id, destination_status_id, allow_agent, allow_client, notify
		FROM flow_transitions WHERE flow_id = ?`, flow.ID)
	if err != nil {
		return nil, fmt.Errorf("querying flow transitions: %w", err)
	}
	defer trows.Close()

	for trows.Next() {
		var (
			ft                  model.FlowTransition
			agent, client, ntfy int
		)
		if err := trows.Scan(&ft.OriginStatusID, &ft.DestinationStatusID, &agent, &client, &ntfy); err != nil {
			return nil, fmt.Errorf("scanning flow transition row: %w", err)
		}
		ft.AllowAgent = agent != 0
		ft.AllowClient = client != 0
		ft.Notify = ntfy != 0
		flow.Transitions = append(flow.Transitions, ft)
	}

	return &flow, trows.Err()
}

// SaveFlow inserts or replaces a flow and its status/transition lists.
func (s *SQLiteStore) SaveFlow(ctx context.Context, flow model.Flow) error {
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO flows (id, task_type_id, active, initial_status_id)
			VALUES (?, ?, ?, ?)`,
			flow.ID, flow.TaskTypeID, boolToInt(flow.Active), flow.InitialStatusID,
		)
		if err != nil {
			return fmt.Errorf("saving flow %s: %w", flow.ID, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM flow_statuses WHERE flow_id = ?", flow.ID); err != nil {
			return fmt.Errorf("clearing flow statuses: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM flow_transitions WHERE flow_id = ?", flow.ID); err != nil {
			return fmt.Errorf("clearing flow transitions: %w", err)
		}

		for i, fs := range flow.Statuses {
			order := fs.SortOrder
			if order == 0 {
				order = i
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO flow_statuses (flow_id, status_id, client_visible, sort_order)
				VALUES (?, ?, ?, ?)`,
				flow.ID, fs.StatusID, boolToInt(fs.ClientVisible), order,
			)
			if err != nil {
				return fmt.Errorf("saving flow status %s: %w", fs.StatusID, err)
			}
		}

		for _, ft := range flow.Transitions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO flow_transitions (
					flow_id, origin_status_id, destination_status_id,
					allow_agent, allow_client, notify
				) VALUES (?, ?, ?, ?, ?, ?)`,
				flow.ID, ft.OriginStatusID, ft.DestinationStatusID,
				boolToInt(ft.AllowAgent), boolToInt(ft.AllowClient), boolToInt(ft.Notify),
			)
			if err != nil {
				return fmt.Errorf("saving flow transition %s->%s: %w",
					ft.OriginStatusID, ft.DestinationStatusID, err)
			}
		}

		return nil
	})
}
