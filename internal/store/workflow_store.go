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

// GetActiveWorkflows retrieves the active rules for a trigger, ordered by
// priority, with their conditions, recipients, and actions loaded.
func (s *SQLiteStore) GetActiveWorkflows(ctx context.Context, trigger model.Trigger) ([]model.Workflow, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, name, trigger, active, priority, stop_on_match,
		       template_id, subject, copy_lead1, copy_lead2
		FROM workflows
		WHERE trigger = ? AND active = 1
		ORDER BY priority, id`, string(trigger))
	if err != nil {
		return nil, fmt.Errorf("querying workflows for trigger %s: %w", trigger, err)
	}
	defer rows.Close()

	var workflows []model.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range workflows {
		if err := s.loadWorkflowDetails(ctx, &workflows[i]); err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

// loadWorkflowDetails fills a workflow's conditions, recipients, and
// actions.
func (s *SQLiteStore) loadWorkflowDetails(ctx context.Context, wf *model.Workflow) error {
	crows, err := s.db.QueryxContext(ctx, `
		SELECT id, workflow_id, field, operator, value, or_group
		FROM workflow_conditions WHERE workflow_id = ? ORDER BY or_group, id`, wf.ID)
	if err != nil {
		return fmt.Errorf("querying conditions for workflow %s: %w", wf.ID, err)
	}
	defer crows.Close()

	for crows.Next() {
		var (
			c  model.WorkflowCondition
			op string
		)
		if err := crows.Scan(&c.ID, &c.WorkflowID, &c.Field, &op, &c.Value, &c.OrGroup); err != nil {
			return fmt.Errorf("scanning condition row: %w", err)
		}
		c.Operator = model.ConditionOperator(op)
		wf.Conditions = append(wf.Conditions, c)
	}
	if err := crows.Err(); err != nil {
		return err
	}

	rrows, err := s.db.QueryxContext(ctx, `
		SELECT id, workflow_id, type, value, cc
		FROM workflow_recipients WHERE workflow_id = ? ORDER BY id`, wf.ID)
	if err != nil {
		return fmt.Errorf("querying recipients for workflow %s: %w", wf.ID, err)
	}
	defer rrows.Close()

	for rrows.Next() {
		var (
			r     model.WorkflowRecipient
			rtype string
			cc    int
		)
		if err := rrows.Scan(&r.ID, &r.WorkflowID, &rtype, &r.Value, &cc); err != nil {
			return fmt.Errorf("scanning recipient row: %w", err)
		}
		r.Type = model.RecipientType(rtype)
		r.CC = cc != 0
		wf.Recipients = append(wf.Recipients, r)
	}
	if err := rrows.Err(); err != nil {
		return err
	}

	arows, err := s.db.QueryxContext(ctx, `
		SELECT id, workflow_id, kind, target_id
		FROM workflow_actions WHERE workflow_id = ? ORDER BY id`, wf.ID)
	if err != nil {
		return fmt.Errorf("querying actions for workflow %s: %w", wf.ID, err)
	}
	defer arows.Close()

	for arows.Next() {
		var (
			a    model.WorkflowAction
			kind string
		)
		if err := arows.Scan(&a.ID, &a.WorkflowID, &kind, &a.TargetID); err != nil {
			return fmt.Errorf("scanning action row: %w", err)
		}
		a.Kind = model.ActionKind(kind)
		wf.Actions = append(wf.Actions, a)
	}
	return arows.Err()
}

// SaveWorkflow inserts or replaces a rule and its detail lists.
func (s *SQLiteStore) SaveWorkflow(ctx context.Context, wf model.Workflow) error {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO workflows (
				id, name, trigger, active, priority, stop_on_match,
				template_id, subject, copy_lead1, copy_lead2
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			wf.ID, wf.Name, string(wf.Trigger), boolToInt(wf.Active),
			wf.Priority, boolToInt(wf.StopOnMatch),
			wf.TemplateID, wf.Subject, boolToInt(wf.CopyLead1), boolToInt(wf.CopyLead2),
		)
		if err != nil {
			return fmt.Errorf("saving workflow %s: %w", wf.ID, err)
		}

		for _, table := range []string{"workflow_conditions", "workflow_recipients", "workflow_actions"} {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE workflow_id = ?", table), wf.ID); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		for _, c := range wf.Conditions {
			if c.ID == "" {
				c.ID = uuid.New().String()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO workflow_conditions (id, workflow_id, field, operator, value, or_group)
				VALUES (?, ?, ?, ?, ?, ?)`,
				c.ID, wf.ID, c.Field, string(c.Operator), c.Value, c.OrGroup,
			)
			if err != nil {
				return fmt.Errorf("saving condition: %w", err)
			}
		}

		for _, r := range wf.Recipients {
			if r.ID == "" {
				r.ID = uuid.New().String()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO workflow_recipients (id, workflow_id, type, value, cc)
				VALUES (?, ?, ?, ?, ?)`,
				r.ID, wf.ID, string(r.Type), r.Value, boolToInt(r.CC),
			)
			if err != nil {
				return fmt.Errorf("saving recipient: %w", err)
			}
		}

		for _, a := range wf.Actions {
			if a.ID == "" {
				a.ID = uuid.New().String()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO workflow_actions (id, workflow_id, kind, target_id)
				VALUES (?, ?, ?, ?)`,
				a.ID, wf.ID, string(a.Kind), a.TargetID,
			)
			if err != nil {
				return fmt.Errorf("saving action: %w", err)
			}
		}

		return nil
	})
}

// GetTemplate retrieves a notification template by ID.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	var tpl model.Template
	err := s.db.QueryRowxContext(ctx,
		"SELECT id, name, subject, html, text FROM templates WHERE id = ?", id,
	).Scan(&tpl.ID, &tpl.Name, &tpl.Subject, &tpl.HTML, &tpl.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting template %s: %w", id, err)
	}
	return &tpl, nil
}

// SaveTemplate inserts or replaces a notification template.
func (s *SQLiteStore) SaveTemplate(ctx context.Context, tpl model.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	_, err := s.execContext(ctx, `
		INSERT OR REPLACE INTO templates (id, name, subject, html, text)
		VALUES (?, ?, ?, ?, ?)`,
		tpl.ID, tpl.Name, tpl.Subject, tpl.HTML, tpl.Text,
	)
	if err != nil {
		return fmt.Errorf("saving template %s: %w", tpl.ID, err)
	}
	return nil
}

// scanWorkflow scans a workflow header row from a sqlx.Rows result set.
func scanWorkflow(rows *sqlx.Rows) (model.Workflow, error) {
	var (
		wf                   model.Workflow
		trigger              string
		active, stop         int
		copyLead1, copyLead2 int
		templateID           sql.NullString
	)

	err := rows.Scan(
		&wf.ID, &wf.Name, &trigger, &active, &wf.Priority, &stop,
		&templateID, &wf.Subject, &copyLead1, &copyLead2,
	)
	if err != nil {
		return model.Workflow{}, fmt.Errorf("scanning workflow row: %w", err)
	}

	wf.Trigger = model.Trigger(trigger)
	wf.Active = active != 0
	wf.StopOnMatch = stop != 0
	wf.CopyLead1 = copyLead1 != 0
	wf.CopyLead2 = copyLead2 != 0
	if templateID.Valid {
		v := templateID.String
		wf.TemplateID = &v
	}

	return wf, nil
}
