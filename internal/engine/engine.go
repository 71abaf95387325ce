// Package engine implements the task operations: create, field changes,
// assignment, closure, and comments. Every mutation validates against
// the type's flow where applicable, commits the change together with its
// audit event, and then runs notification rule evaluation for the
// resulting trigger. Rule evaluation failures never roll back the
// committed mutation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soporteware/helpdesk/internal/flow"
	"github.com/soporteware/helpdesk/internal/model"
	"github.com/soporteware/helpdesk/internal/store"
	"github.com/soporteware/helpdesk/internal/workflow"
)

// Operation rejection reasons.
var (
	// ErrTaskClosed rejects mutations of a closed task.
	ErrTaskClosed = errors.New("task is closed")

	// ErrNotComment rejects edit or delete of a non-comment event.
	ErrNotComment = errors.New("event is not a comment")

	// ErrCommentSuperseded rejects edit or delete of a comment once a
	// newer event exists on the task.
	ErrCommentSuperseded = errors.New("newer activity exists on task")

	// ErrValueRequired rejects clearing a field that must keep a value.
	ErrValueRequired = errors.New("field requires a value")
)

// Engine coordinates task mutations, flow validation, and notification
// rule evaluation.
type Engine struct {
	store store.Store
	flows *flow.Validator
	eval  *workflow.Evaluator
}

// New creates an Engine over the given store.
func New(s store.Store) *Engine {
	return &Engine{
		store: s,
		flows: flow.NewValidator(s),
		eval:  workflow.NewEvaluator(s, s, s),
	}
}

// CreateTask validates and persists a new task with its creation event,
// then evaluates creation rules. When the type has an active flow and no
// status was given, the flow's initial status is used.
func (e *Engine) CreateTask(ctx context.Context, task model.Task, actor model.Actor, actorID *string) (*model.Task, error) {
	if task.StatusID == "" {
		fl, err := e.store.GetFlowForType(ctx, task.TypeID)
		if err != nil {
			return nil, fmt.Errorf("loading flow for type %s: %w", task.TypeID, err)
		}
		if fl != nil && fl.Active && fl.InitialStatusID != nil {
			task.StatusID = *fl.InitialStatusID
		}
	}

	if err := e.flows.Validate(ctx, task.TypeID, nil, task.StatusID, actor); err != nil {
		return nil, err
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	event := model.TaskEvent{
		TaskID:        task.ID,
		Kind:          model.EventSystem,
		Actor:         actor,
		ActorID:       actorID,
		Body:          "Tarea creada",
		InTimeline:    true,
		ClientVisible: true,
	}
	if err := e.store.CreateTask(ctx, task, event); err != nil {
		return nil, err
	}

	created, err := e.store.GetTaskByID(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	e.notify(ctx, model.TriggerCreated, created, nil, "")
	return created, nil
}

// ChangeStatus moves the task to a new status after flow validation.
func (e *Engine) ChangeStatus(ctx context.Context, taskID, statusID string, actor model.Actor, actorID *string) error {
	return e.changeField(ctx, taskID, model.ActionSetStatus, &statusID, actor, actorID, false)
}

// ChangePriority sets the task's priority.
func (e *Engine) ChangePriority(ctx context.Context, taskID, priorityID string, actor model.Actor, actorID *string) error {
	return e.changeField(ctx, taskID, model.ActionSetPriority, &priorityID, actor, actorID, false)
}

// ChangeType sets the task's type.
func (e *Engine) ChangeType(ctx context.Context, taskID, typeID string, actor model.Actor, actorID *string) error {
	return e.changeField(ctx, taskID, model.ActionSetType, &typeID, actor, actorID, false)
}

// ChangeModule sets or clears the task's module.
func (e *Engine) ChangeModule(ctx context.Context, taskID string, moduleID *string, actor model.Actor, actorID *string) error {
	return e.changeField(ctx, taskID, model.ActionSetModule, moduleID, actor, actorID, false)
}

// ChangeRelease sets or clears the task's release.
func (e *Engine) ChangeRelease(ctx context.Context, taskID string, releaseID *string, actor model.Actor, actorID *string) error {
	return e.changeField(ctx, taskID, model.ActionSetRelease, releaseID, actor, actorID, false)
}

// Assign sets or clears the task's assigned agent.
func (e *Engine) Assign(ctx context.Context, taskID string, agentID *string, actor model.Actor, actorID *string) error {
	return e.changeField(ctx, taskID, model.ActionSetAssignment, agentID, actor, actorID, false)
}

// UpdateDetails rewrites the task's title and reproduced flag.
func (e *Engine) UpdateDetails(ctx context.Context, taskID, title string, reproduced bool, actor model.Actor, actorID *string) error {
	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Closed() {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskClosed)
	}

	event := model.TaskEvent{
		TaskID:        taskID,
		Kind:          model.EventSystem,
		Actor:         actor,
		ActorID:       actorID,
		Body:          "Tarea modificada",
		InTimeline:    true,
		ClientVisible: true,
	}
	if err := e.store.UpdateTaskDetails(ctx, taskID, title, reproduced, event); err != nil {
		return err
	}

	task.Title = title
	task.Reproduced = reproduced
	e.notify(ctx, model.TriggerModified, task, nil, "")
	return nil
}

// Close stamps the task closed and evaluates closure rules.
func (e *Engine) Close(ctx context.Context, taskID string, actor model.Actor, actorID *string) error {
	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Closed() {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskClosed)
	}

	now := time.Now().UTC()
	event := model.TaskEvent{
		TaskID:        taskID,
		Kind:          model.EventSystem,
		Actor:         actor,
		ActorID:       actorID,
		Body:          "Tarea cerrada",
		InTimeline:    true,
		ClientVisible: true,
	}
	if err := e.store.CloseTask(ctx, taskID, now, event); err != nil {
		return err
	}

	task.ClosedAt = &now
	e.notify(ctx, model.TriggerClosed, task, nil, "")
	return nil
}

// AddComment appends a message, reply, or note to the task and evaluates
// the matching trigger.
func (e *Engine) AddComment(
	ctx context.Context,
	taskID string,
	kind model.EventKind,
	actor model.Actor,
	actorID *string,
	body string,
	clientVisible bool,
) (*model.TaskEvent, error) {
	if !kind.IsComment() {
		return nil, fmt.Errorf("event kind %s: %w", kind, ErrNotComment)
	}

	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Closed() {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskClosed)
	}

	event := model.TaskEvent{
		ID:            uuid.New().String(),
		TaskID:        taskID,
		Kind:          kind,
		Actor:         actor,
		ActorID:       actorID,
		Body:          body,
		InTimeline:    true,
		ClientVisible: clientVisible,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.store.AppendEvent(ctx, event); err != nil {
		return nil, err
	}

	e.notify(ctx, commentTriggers[kind], task, nil, body)
	return &event, nil
}

// commentTriggers maps a comment kind to its rule trigger.
var commentTriggers = map[model.EventKind]model.Trigger{
	model.EventMessage: model.TriggerMessage,
	model.EventReply:   model.TriggerReply,
	model.EventNote:    model.TriggerNote,
}

// EditComment replaces a comment's body. Rejected once newer activity
// exists on the task, so the timeline reads as it was seen.
func (e *Engine) EditComment(ctx context.Context, eventID, body string) error {
	event, err := e.requireEditableComment(ctx, eventID)
	if err != nil {
		return err
	}
	return e.store.UpdateEventBody(ctx, event.ID, body)
}

// DeleteComment removes a comment under the same ordering rule as
// EditComment.
func (e *Engine) DeleteComment(ctx context.Context, eventID string) error {
	event, err := e.requireEditableComment(ctx, eventID)
	if err != nil {
		return err
	}
	return e.store.DeleteEvent(ctx, event.ID)
}

func (e *Engine) requireEditableComment(ctx context.Context, eventID string) (*model.TaskEvent, error) {
	event, err := e.store.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Kind.IsComment() {
		return nil, fmt.Errorf("event %s kind %s: %w", eventID, event.Kind, ErrNotComment)
	}

	newer, err := e.store.HasNewerEvent(ctx, event.TaskID, event.CreatedAt)
	if err != nil {
		return nil, err
	}
	if newer {
		return nil, fmt.Errorf("comment %s: %w", eventID, ErrCommentSuperseded)
	}
	return event, nil
}

// changeField applies one field mutation: closed check, flow validation
// for status moves, transactional update plus audit event, then rule
// evaluation for the field's trigger. fromWorkflow marks mutations
// applied by a rule action; their re-evaluation yields no further
// actions.
func (e *Engine) changeField(
	ctx context.Context,
	taskID string,
	kind model.ActionKind,
	newID *string,
	actor model.Actor,
	actorID *string,
	fromWorkflow bool,
) error {
	spec, ok := fieldSpecs[kind]
	if !ok {
		return fmt.Errorf("unknown task field %q", kind)
	}
	if (newID == nil || *newID == "") && !spec.nullable {
		return fmt.Errorf("field %s: %w", kind, ErrValueRequired)
	}

	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Closed() {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskClosed)
	}

	oldID := spec.current(task)
	if equalRef(oldID, newID) {
		return nil
	}

	if kind == model.ActionSetStatus {
		if err := e.flows.Validate(ctx, task.TypeID, oldID, *newID, actor); err != nil {
			return err
		}
	}

	oldCode := e.lookupCode(ctx, kind, oldID)
	newCode := e.lookupCode(ctx, kind, newID)

	event := model.TaskEvent{
		TaskID:  taskID,
		Kind:    spec.event,
		Actor:   actor,
		ActorID: actorID,
		Body:    changeBody(spec.label, oldCode, newCode),
		Payload: model.EventPayload{
			OldID:        oldID,
			NewID:        newID,
			OldCode:      oldCode,
			NewCode:      newCode,
			FromWorkflow: fromWorkflow,
		},
		InTimeline:    true,
		ClientVisible: true,
	}
	if err := e.store.ApplyTaskChange(ctx, taskID, kind, newID, event); err != nil {
		return err
	}

	spec.apply(task, newID)
	change := &workflow.ChangeContext{
		OldID: oldID, NewID: newID, OldCode: oldCode, NewCode: newCode,
	}
	e.evaluate(ctx, spec.trigger, task, change, "", fromWorkflow)
	return nil
}

// fieldSpec describes how one mutable task reference behaves: its audit
// event kind, rule trigger, timeline label, and accessors.
type fieldSpec struct {
	event    model.EventKind
	trigger  model.Trigger
	label    string
	nullable bool
	current  func(t *model.Task) *string
	apply    func(t *model.Task, id *string)
}

var fieldSpecs = map[model.ActionKind]fieldSpec{
	model.ActionSetStatus: {
		event: model.EventStatusChange, trigger: model.TriggerStatusChange, label: "Estado",
		current: func(t *model.Task) *string { v := t.StatusID; return &v },
		apply:   func(t *model.Task, id *string) { t.StatusID = *id },
	},
	model.ActionSetPriority: {
		event: model.EventPriorityChange, trigger: model.TriggerPriorityChange, label: "Prioridad",
		current: func(t *model.Task) *string { v := t.PriorityID; return &v },
		apply:   func(t *model.Task, id *string) { t.PriorityID = *id },
	},
	model.ActionSetType: {
		event: model.EventTypeChange, trigger: model.TriggerTypeChange, label: "Tipo",
		current: func(t *model.Task) *string { v := t.TypeID; return &v },
		apply:   func(t *model.Task, id *string) { t.TypeID = *id },
	},
	model.ActionSetModule: {
		event: model.EventModuleChange, trigger: model.TriggerModuleChange, label: "Modulo", nullable: true,
		current: func(t *model.Task) *string { return t.ModuleID },
		apply:   func(t *model.Task, id *string) { t.ModuleID = id },
	},
	model.ActionSetRelease: {
		event: model.EventReleaseChange, trigger: model.TriggerReleaseChange, label: "Release", nullable: true,
		current: func(t *model.Task) *string { return t.ReleaseID },
		apply:   func(t *model.Task, id *string) { t.ReleaseID = id },
	},
	model.ActionSetAssignment: {
		event: model.EventAssignment, trigger: model.TriggerAssignmentChange, label: "Asignacion", nullable: true,
		current: func(t *model.Task) *string { return t.AssignedAgentID },
		apply:   func(t *model.Task, id *string) { t.AssignedAgentID = id },
	},
}

// lookupCode resolves the human-facing code (or agent name) behind a
// field reference. Lookup failures degrade to an empty code; the audit
// payload still carries the raw ids.
func (e *Engine) lookupCode(ctx context.Context, kind model.ActionKind, id *string) string {
	if id == nil {
		return ""
	}
	var (
		code string
		err  error
	)
	switch kind {
	case model.ActionSetStatus:
		var s *model.Status
		if s, err = e.store.GetStatus(ctx, *id); err == nil {
			code = s.Code
		}
	case model.ActionSetPriority:
		var p *model.Priority
		if p, err = e.store.GetPriority(ctx, *id); err == nil {
			code = p.Code
		}
	case model.ActionSetType:
		var t *model.TaskType
		if t, err = e.store.GetTaskType(ctx, *id); err == nil {
			code = t.Code
		}
	case model.ActionSetModule:
		var m *model.Module
		if m, err = e.store.GetModule(ctx, *id); err == nil {
			code = m.Code
		}
	case model.ActionSetRelease:
		var r *model.Release
		if r, err = e.store.GetRelease(ctx, *id); err == nil {
			code = r.Code
		}
	case model.ActionSetAssignment:
		var a *model.Agent
		if a, err = e.store.GetAgent(ctx, *id); err == nil {
			code = a.Name
		}
	}
	if err != nil {
		slog.Warn("code lookup failed", "field", string(kind), "id", *id, "err", err)
	}
	return code
}

func changeBody(label, oldCode, newCode string) string {
	if oldCode == "" {
		oldCode = "(sin valor)"
	}
	if newCode == "" {
		newCode = "(sin valor)"
	}
	return fmt.Sprintf("%s: %s -> %s", label, oldCode, newCode)
}

func equalRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
