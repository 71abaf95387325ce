package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soporteware/helpdesk/internal/engine"
	"github.com/soporteware/helpdesk/internal/flow"
	"github.com/soporteware/helpdesk/internal/model"
	"github.com/soporteware/helpdesk/internal/store"
	"github.com/soporteware/helpdesk/tests/testutil"
)

func newEngine(t *testing.T) (*engine.Engine, *store.SQLiteStore, *model.Task) {
	t.Helper()
	s := testutil.NewTestStore(t)
	testutil.SeedMasterData(t, s)
	testutil.SeedDirectory(t, s)
	task := testutil.SeedTask(t, s)
	return engine.New(s), s, task
}

func saveScenarioFlow(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	initial := "status-open"
	require.NoError(t, s.SaveFlow(context.Background(), model.Flow{
		ID: "flow-1", TaskTypeID: "type-incident", Active: true, InitialStatusID: &initial,
		Statuses: []model.FlowStatus{
			{StatusID: "status-open", ClientVisible: true, SortOrder: 0},
			{StatusID: "status-progress", ClientVisible: true, SortOrder: 1},
			{StatusID: "status-closed", ClientVisible: true, SortOrder: 2},
		},
		Transitions: []model.FlowTransition{
			// Agent-only move into progress.
			{OriginStatusID: "status-open", DestinationStatusID: "status-progress", AllowAgent: true},
			{OriginStatusID: "status-progress", DestinationStatusID: "status-closed", AllowAgent: true, AllowClient: true},
		},
	}))
}

// Without a flow, any existing status can be set without transition
// checks.
func TestChangeStatusWithoutFlowIsUnrestricted(t *testing.T) {
	eng, s, task := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.ChangeStatus(ctx, task.ID, "status-closed", model.ActorClient, nil))

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "status-closed", got.StatusID)
}

// Flow configured: a client-initiated agent-only transition is rejected;
// the same move by an agent succeeds and appends exactly one audit
// event.
func TestChangeStatusEnforcesFlow(t *testing.T) {
	eng, s, task := newEngine(t)
	ctx := context.Background()
	saveScenarioFlow(t, s)

	err := eng.ChangeStatus(ctx, task.ID, "status-progress", model.ActorClient, nil)
	assert.ErrorIs(t, err, flow.ErrActorNotPermitted)

	before, err := s.GetEventsForTask(ctx, task.ID)
	require.NoError(t, err)

	agentID := "agent-1"
	require.NoError(t, eng.ChangeStatus(ctx, task.ID, "status-progress", model.ActorAgent, &agentID))

	after, err := s.GetEventsForTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)

	event := after[len(after)-1]
	assert.Equal(t, model.EventStatusChange, event.Kind)
	assert.Equal(t, "ABIERTO", event.Payload.OldCode)
	assert.Equal(t, "EN_PROCESO", event.Payload.NewCode)
	assert.False(t, event.Payload.FromWorkflow)
}

func TestCreateTaskUsesFlowInitialStatus(t *testing.T) {
	eng, s, _ := newEngine(t)
	ctx := context.Background()
	saveScenarioFlow(t, s)

	created, err := eng.CreateTask(ctx, model.Task{
		Number:     "1002",
		Title:      "Otra incidencia",
		ClientID:   "client-acme",
		TypeID:     "type-incident",
		PriorityID: "prio-normal",
	}, model.ActorAgent, nil)
	require.NoError(t, err)
	assert.Equal(t, "status-open", created.StatusID)

	events, err := s.GetEventsForTask(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventSystem, events[0].Kind)
}

func TestCreateTaskRejectsStatusOutsideFlow(t *testing.T) {
	eng, s, _ := newEngine(t)
	saveScenarioFlow(t, s)

	_, err := eng.CreateTask(context.Background(), model.Task{
		Number:     "1003",
		Title:      "Estado invalido",
		ClientID:   "client-acme",
		TypeID:     "type-incident",
		StatusID:   "status-nonexistent",
		PriorityID: "prio-normal",
	}, model.ActorAgent, nil)
	assert.ErrorIs(t, err, flow.ErrStatusNotAllowed)
}

func TestMutationsRejectClosedTask(t *testing.T) {
	eng, _, task := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Close(ctx, task.ID, model.ActorAgent, nil))

	assert.ErrorIs(t, eng.ChangePriority(ctx, task.ID, "prio-urgent", model.ActorAgent, nil), engine.ErrTaskClosed)
	assert.ErrorIs(t, eng.Close(ctx, task.ID, model.ActorAgent, nil), engine.ErrTaskClosed)
	assert.ErrorIs(t, eng.UpdateDetails(ctx, task.ID, "x", false, model.ActorAgent, nil), engine.ErrTaskClosed)

	_, err := eng.AddComment(ctx, task.ID, model.EventMessage, model.ActorClient, nil, "hola", true)
	assert.ErrorIs(t, err, engine.ErrTaskClosed)
}

// Priority change to URGENTE with a matching rule enqueues exactly one
// notification addressed to the assigned agent.
func TestUrgentPriorityChangeEnqueuesNotification(t *testing.T) {
	eng, s, task := newEngine(t)
	ctx := context.Background()

	require.NoError(t, s.SaveWorkflow(ctx, model.Workflow{
		ID: "wf-urgent", Name: "Aviso urgente",
		Trigger: model.TriggerPriorityChange, Active: true,
		Conditions: []model.WorkflowCondition{
			{ID: "c-1", Field: "prioridad_codigo", Operator: model.OpEquals, Value: "URGENTE", OrGroup: 0},
		},
		Recipients: []model.WorkflowRecipient{
			{ID: "r-1", Type: model.RecipientAssignedAgent},
		},
	}))

	require.NoError(t, eng.ChangePriority(ctx, task.ID, "prio-urgent", model.ActorAgent, nil))

	due, err := s.DueNotifications(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, []string{"ana@soporte.test"}, due[0].To)
	assert.Empty(t, due[0].Cc)
	require.NotNil(t, due[0].TaskID)
	assert.Equal(t, task.ID, *due[0].TaskID)
}

func TestNotificationUsesTemplate(t *testing.T) {
	eng, s, task := newEngine(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTemplate(ctx, model.Template{
		ID:      "tpl-1",
		Name:    "Cambio de prioridad",
		Subject: "[TAREA-{{.Number}}] prioridad {{.NewCode}}",
		HTML:    "<p>La tarea {{.Number}} ahora es {{.NewCode}}</p>",
		Text:    "La tarea {{.Number}} ahora es {{.NewCode}}",
	}))
	tplID := "tpl-1"
	require.NoError(t, s.SaveWorkflow(ctx, model.Workflow{
		ID: "wf-tpl", Name: "Con plantilla",
		Trigger: model.TriggerPriorityChange, Active: true, TemplateID: &tplID,
		Recipients: []model.WorkflowRecipient{{ID: "r-1", Type: model.RecipientAssignedAgent}},
	}))

	require.NoError(t, eng.ChangePriority(ctx, task.ID, "prio-urgent", model.ActorAgent, nil))

	due, err := s.DueNotifications(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "[TAREA-1001] prioridad URGENTE", due[0].Subject)
	assert.Contains(t, due[0].HTML, "ahora es URGENTE")
	assert.Contains(t, due[0].Text, "ahora es URGENTE")
}

// A rule action mutates the task, appends its own audit event, and the
// chained evaluation notifies but never triggers further actions.
func TestWorkflowActionChainsStopAtDepthOne(t *testing.T) {
	eng, s, task := newEngine(t)
	ctx := context.Background()

	// Priority change escalates the task into progress.
	require.NoError(t, s.SaveWorkflow(ctx, model.Workflow{
		ID: "wf-escalate", Name: "Escalar",
		Trigger: model.TriggerPriorityChange, Active: true,
		Actions: []model.WorkflowAction{
			{ID: "a-1", Kind: model.ActionSetStatus, TargetID: "status-progress"},
		},
	}))
	// Status change notifies and, if actions ever chained, would close
	// the task.
	require.NoError(t, s.SaveWorkflow(ctx, model.Workflow{
		ID: "wf-status", Name: "Aviso de estado",
		Trigger: model.TriggerStatusChange, Active: true,
		Recipients: []model.WorkflowRecipient{{ID: "r-1", Type: model.RecipientAssignedAgent}},
		Actions: []model.WorkflowAction{
			{ID: "a-2", Kind: model.ActionSetStatus, TargetID: "status-closed"},
		},
	}))

	require.NoError(t, eng.ChangePriority(ctx, task.ID, "prio-urgent", model.ActorAgent, nil))

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	// The first action ran; the second round of actions did not.
	assert.Equal(t, "status-progress", got.StatusID)

	events, err := s.GetEventsForTask(ctx, task.ID)
	require.NoError(t, err)
	// Seed event, priority change, action-applied status change.
	require.Len(t, events, 3)
	statusEvent := events[2]
	assert.Equal(t, model.EventStatusChange, statusEvent.Kind)
	assert.True(t, statusEvent.Payload.FromWorkflow)

	// The chained status-change evaluation still notifies.
	due, err := s.DueNotifications(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, []string{"ana@soporte.test"}, due[0].To)
}

func TestCommentEditAndDeleteOrdering(t *testing.T) {
	eng, _, task := newEngine(t)
	ctx := context.Background()

	comment, err := eng.AddComment(ctx, task.ID, model.EventMessage, model.ActorClient, nil, "hola", true)
	require.NoError(t, err)

	// Still the newest event: edit succeeds.
	require.NoError(t, eng.EditComment(ctx, comment.ID, "hola editado"))

	// A later note freezes the comment.
	_, err = eng.AddComment(ctx, task.ID, model.EventNote, model.ActorAgent, nil, "nota interna", false)
	require.NoError(t, err)

	assert.ErrorIs(t, eng.EditComment(ctx, comment.ID, "otra vez"), engine.ErrCommentSuperseded)
	assert.ErrorIs(t, eng.DeleteComment(ctx, comment.ID), engine.ErrCommentSuperseded)
}

func TestEditRejectsNonComment(t *testing.T) {
	eng, s, task := newEngine(t)
	ctx := context.Background()

	events, err := s.GetEventsForTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	err = eng.EditComment(ctx, events[0].ID, "no")
	assert.ErrorIs(t, err, engine.ErrNotComment)
}

func TestChangeFieldNoOpSkipsEventAndRules(t *testing.T) {
	eng, s, task := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.ChangePriority(ctx, task.ID, task.PriorityID, model.ActorAgent, nil))

	events, err := s.GetEventsForTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestChangeFieldRequiresValueForMandatoryFields(t *testing.T) {
	eng, _, task := newEngine(t)

	err := eng.ChangeStatus(context.Background(), task.ID, "", model.ActorAgent, nil)
	assert.Error(t, err)
}

func TestAssignmentAndClearModule(t *testing.T) {
	eng, s, task := newEngine(t)
	ctx := context.Background()

	moduleID := "module-billing"
	require.NoError(t, eng.ChangeModule(ctx, task.ID, &moduleID, model.ActorAgent, nil))
	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ModuleID)
	assert.Equal(t, moduleID, *got.ModuleID)

	require.NoError(t, eng.ChangeModule(ctx, task.ID, nil, model.ActorAgent, nil))
	got, err = s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ModuleID)

	agentID := "agent-2"
	require.NoError(t, eng.Assign(ctx, task.ID, &agentID, model.ActorAgent, nil))
	got, err = s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedAgentID)
	assert.Equal(t, "agent-2", *got.AssignedAgentID)

	events, err := s.GetEventsForTask(ctx, task.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, model.EventAssignment, last.Kind)
	assert.Equal(t, "Luis Mora", last.Payload.NewCode)
}
