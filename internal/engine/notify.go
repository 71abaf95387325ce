package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soporteware/helpdesk/internal/model"
	"github.com/soporteware/helpdesk/internal/workflow"
)

// notify runs rule evaluation for a user-initiated mutation. The
// originating change is already committed, so evaluation failures are
// logged and swallowed rather than surfaced to the caller.
func (e *Engine) notify(ctx context.Context, trigger model.Trigger, task *model.Task, change *workflow.ChangeContext, body string) {
	e.evaluate(ctx, trigger, task, change, body, false)
}

// evaluate runs the rules for one trigger, enqueues the resulting
// notification, and executes any matched field actions. Actions
// re-enter changeField with fromWorkflow set, and the evaluator returns
// no actions on such calls, so a rule action can trigger notifications
// for its own change but never a second round of actions.
func (e *Engine) evaluate(
	ctx context.Context,
	trigger model.Trigger,
	task *model.Task,
	change *workflow.ChangeContext,
	body string,
	fromWorkflow bool,
) {
	outcome, err := e.eval.Evaluate(ctx, trigger, task, change, fromWorkflow)
	if err != nil {
		slog.Error("rule evaluation failed",
			"task_id", task.ID, "trigger", string(trigger), "err", err)
		return
	}
	if len(outcome.Matched) == 0 {
		return
	}

	slog.Debug("rules matched",
		"task_id", task.ID, "trigger", string(trigger), "rules", outcome.Matched)

	if len(outcome.To) > 0 || len(outcome.Cc) > 0 {
		if err := e.enqueueOutcome(ctx, task, change, body, outcome); err != nil {
			slog.Error("enqueueing notification failed",
				"task_id", task.ID, "trigger", string(trigger), "err", err)
		}
	}

	for _, action := range outcome.Actions {
		e.executeAction(ctx, task.ID, action)
	}
}

// enqueueOutcome renders the selected template and persists one queue
// row for the evaluation outcome.
func (e *Engine) enqueueOutcome(
	ctx context.Context,
	task *model.Task,
	change *workflow.ChangeContext,
	body string,
	outcome *workflow.Outcome,
) error {
	subject, html, text, err := e.renderMessage(ctx, task, change, body, outcome)
	if err != nil {
		return err
	}

	taskID := task.ID
	return e.store.EnqueueNotification(ctx, model.QueuedNotification{
		TaskID:  &taskID,
		To:      outcome.To,
		Cc:      outcome.Cc,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
}

// renderMessage expands the outcome's template, if any. A rule subject
// overrides the template subject; without a template the comment body
// is sent as plain text.
func (e *Engine) renderMessage(
	ctx context.Context,
	task *model.Task,
	change *workflow.ChangeContext,
	body string,
	outcome *workflow.Outcome,
) (subject, html, text string, err error) {
	subject = outcome.Subject
	text = body

	if outcome.TemplateID != nil {
		tpl, err := e.store.GetTemplate(ctx, *outcome.TemplateID)
		if err != nil {
			return "", "", "", fmt.Errorf("loading template %s: %w", *outcome.TemplateID, err)
		}

		snap, err := workflow.BuildSnapshot(ctx, e.store, task, change)
		if err != nil {
			return "", "", "", err
		}
		data := workflow.NewTemplateData(snap, body)

		tplSubject, tplHTML, tplText, err := workflow.RenderTemplate(tpl, data)
		if err != nil {
			return "", "", "", err
		}
		if subject == "" {
			subject = tplSubject
		}
		html = tplHTML
		text = tplText
	}

	if subject == "" {
		subject = fmt.Sprintf("[TAREA-%s] %s", task.Number, task.Title)
	}
	return subject, html, text, nil
}

// executeAction applies one matched rule's field mutation. Failures are
// logged with the action context and never affect the originating
// request.
func (e *Engine) executeAction(ctx context.Context, taskID string, action model.WorkflowAction) {
	if _, ok := fieldSpecs[action.Kind]; !ok {
		slog.Warn("skipping unknown workflow action kind",
			"task_id", taskID, "rule_id", action.WorkflowID, "kind", string(action.Kind))
		return
	}

	var target *string
	if action.TargetID != "" {
		target = &action.TargetID
	}

	err := e.changeField(ctx, taskID, action.Kind, target, model.ActorAgent, nil, true)
	if err != nil {
		slog.Error("workflow action failed",
			"task_id", taskID, "rule_id", action.WorkflowID,
			"kind", string(action.Kind), "target_id", action.TargetID, "err", err)
	}
}
