package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soporteware/helpdesk/internal/model"
)

type fakeRuleSource struct {
	rules []model.Workflow
}

func (f *fakeRuleSource) GetActiveWorkflows(context.Context, model.Trigger) ([]model.Workflow, error) {
	return f.rules, nil
}

type fakeDirectory struct {
	agents    map[string]model.Agent
	users     map[string]model.ClientUser
	clients   map[string]model.Client
	roleLists map[string][]model.Agent
}

func (f *fakeDirectory) GetAgent(_ context.Context, id string) (*model.Agent, error) {
	if a, ok := f.agents[id]; ok {
		return &a, nil
	}
	return nil, assert.AnError
}

func (f *fakeDirectory) GetAgentsByIDs(_ context.Context, ids []string) ([]model.Agent, error) {
	var out []model.Agent
	for _, id := range ids {
		if a, ok := f.agents[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeDirectory) GetAgentsByRoleIDs(_ context.Context, roleIDs []string) ([]model.Agent, error) {
	var out []model.Agent
	for _, id := range roleIDs {
		out = append(out, f.roleLists[id]...)
	}
	return out, nil
}

func (f *fakeDirectory) GetClient(_ context.Context, id string) (*model.Client, error) {
	if c, ok := f.clients[id]; ok {
		return &c, nil
	}
	return nil, assert.AnError
}

func (f *fakeDirectory) GetClientUser(_ context.Context, id string) (*model.ClientUser, error) {
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, assert.AnError
}

func (f *fakeDirectory) GetActiveClientUsers(_ context.Context, clientID string) ([]model.ClientUser, error) {
	var out []model.ClientUser
	for _, u := range f.users {
		if u.ClientID == clientID && u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeLookups struct {
	statuses   map[string]string
	priorities map[string]string
	types      map[string]string
}

func (f *fakeLookups) GetStatus(_ context.Context, id string) (*model.Status, error) {
	if code, ok := f.statuses[id]; ok {
		return &model.Status{ID: id, Code: code}, nil
	}
	return nil, assert.AnError
}

func (f *fakeLookups) GetPriority(_ context.Context, id string) (*model.Priority, error) {
	if code, ok := f.priorities[id]; ok {
		return &model.Priority{ID: id, Code: code}, nil
	}
	return nil, assert.AnError
}

func (f *fakeLookups) GetTaskType(_ context.Context, id string) (*model.TaskType, error) {
	if code, ok := f.types[id]; ok {
		return &model.TaskType{ID: id, Code: code}, nil
	}
	return nil, assert.AnError
}

func (f *fakeLookups) GetModule(context.Context, string) (*model.Module, error) {
	return nil, assert.AnError
}

func (f *fakeLookups) GetRelease(context.Context, string) (*model.Release, error) {
	return nil, assert.AnError
}

func evaluatorFixture() (*Evaluator, *fakeRuleSource, *model.Task) {
	agentID := "agent-1"
	task := &model.Task{
		ID:              "task-1",
		Number:          "1001",
		Title:           "Error al facturar",
		ClientID:        "client-acme",
		TypeID:          "type-incident",
		StatusID:        "status-open",
		PriorityID:      "prio-urgent",
		AssignedAgentID: &agentID,
	}

	rules := &fakeRuleSource{}
	dir := &fakeDirectory{
		agents: map[string]model.Agent{
			"agent-1": {ID: "agent-1", Email: "ana@soporte.test", Active: true},
			"agent-2": {ID: "agent-2", Email: "luis@soporte.test", Active: true},
		},
		users: map[string]model.ClientUser{
			"cuser-1": {ID: "cuser-1", ClientID: "client-acme", Email: "laura@acme.test", Active: true},
		},
		clients: map[string]model.Client{
			"client-acme": {ID: "client-acme", ProjectLead1ID: strPtr("cuser-1")},
		},
	}
	lookups := &fakeLookups{
		statuses:   map[string]string{"status-open": "ABIERTO"},
		priorities: map[string]string{"prio-urgent": "URGENTE"},
		types:      map[string]string{"type-incident": "INCIDENTE"},
	}

	return NewEvaluator(rules, dir, lookups), rules, task
}

// Priority change to URGENTE with a matching condition notifies the
// assigned agent and nobody else.
func TestEvaluateUrgentPriorityNotifiesAssignedAgent(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	rules.rules = []model.Workflow{{
		ID:      "wf-1",
		Trigger: model.TriggerPriorityChange,
		Active:  true,
		Conditions: []model.WorkflowCondition{
			{Field: FieldPriorityCode, Operator: model.OpEquals, Value: "URGENTE", OrGroup: 0},
		},
		Recipients: []model.WorkflowRecipient{
			{Type: model.RecipientAssignedAgent},
		},
	}}

	outcome, err := eval.Evaluate(context.Background(), model.TriggerPriorityChange, task,
		&ChangeContext{OldCode: "NORMAL", NewCode: "URGENTE"}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"ana@soporte.test"}, outcome.To)
	assert.Empty(t, outcome.Cc)
	assert.Equal(t, []string{"wf-1"}, outcome.Matched)
}

func TestEvaluateToTakesPrecedenceOverCc(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	rules.rules = []model.Workflow{{
		ID:     "wf-1",
		Active: true,
		Recipients: []model.WorkflowRecipient{
			{Type: model.RecipientAssignedAgent},
			{Type: model.RecipientAssignedAgent, CC: true},
			{Type: model.RecipientEmailList, Value: `["luis@soporte.test"]`, CC: true},
		},
	}}

	outcome, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"ana@soporte.test"}, outcome.To)
	assert.Equal(t, []string{"luis@soporte.test"}, outcome.Cc)
}

func TestEvaluateStopOnMatchHaltsLowerPriorityRules(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	rules.rules = []model.Workflow{
		{
			ID: "wf-first", Active: true, Priority: 1, StopOnMatch: true,
			Recipients: []model.WorkflowRecipient{{Type: model.RecipientAssignedAgent}},
		},
		{
			ID: "wf-second", Active: true, Priority: 2,
			Recipients: []model.WorkflowRecipient{{Type: model.RecipientEmailList, Value: `["luis@soporte.test"]`}},
			Actions:    []model.WorkflowAction{{ID: "act-1", Kind: model.ActionSetStatus, TargetID: "x"}},
		},
	}

	outcome, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"wf-first"}, outcome.Matched)
	assert.Equal(t, []string{"ana@soporte.test"}, outcome.To)
	assert.Empty(t, outcome.Actions)
}

func TestEvaluateStopOnMatchOnlyAppliesWhenMatched(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	rules.rules = []model.Workflow{
		{
			ID: "wf-first", Active: true, Priority: 1, StopOnMatch: true,
			Conditions: []model.WorkflowCondition{
				{Field: FieldStatusCode, Operator: model.OpEquals, Value: "CERRADO", OrGroup: 0},
			},
		},
		{
			ID: "wf-second", Active: true, Priority: 2,
			Recipients: []model.WorkflowRecipient{{Type: model.RecipientAssignedAgent}},
		},
	}

	outcome, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"wf-second"}, outcome.Matched)
	assert.Equal(t, []string{"ana@soporte.test"}, outcome.To)
}

func TestEvaluateFromWorkflowSuppressesActions(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	rules.rules = []model.Workflow{{
		ID: "wf-1", Active: true,
		Recipients: []model.WorkflowRecipient{{Type: model.RecipientAssignedAgent}},
		Actions:    []model.WorkflowAction{{ID: "act-1", Kind: model.ActionSetStatus, TargetID: "status-closed"}},
	}}

	direct, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, false)
	require.NoError(t, err)
	assert.Len(t, direct.Actions, 1)

	chained, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, true)
	require.NoError(t, err)
	assert.Empty(t, chained.Actions)
	assert.Equal(t, direct.To, chained.To)
}

func TestEvaluateCopyLeadsGoToCc(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	rules.rules = []model.Workflow{{
		ID: "wf-1", Active: true, CopyLead1: true, CopyLead2: true,
		Recipients: []model.WorkflowRecipient{{Type: model.RecipientAssignedAgent}},
	}}

	outcome, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"ana@soporte.test"}, outcome.To)
	// Lead 2 is unset on the client and resolves to nothing.
	assert.Equal(t, []string{"laura@acme.test"}, outcome.Cc)
}

func TestEvaluateFirstMatchSelectsTemplateAndSubject(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	tplA, tplB := "tpl-a", "tpl-b"
	rules.rules = []model.Workflow{
		{ID: "wf-1", Active: true, TemplateID: &tplA, Subject: "Primero"},
		{ID: "wf-2", Active: true, TemplateID: &tplB, Subject: "Segundo",
			Recipients: []model.WorkflowRecipient{{Type: model.RecipientAssignedAgent}}},
	}

	outcome, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, false)
	require.NoError(t, err)

	require.NotNil(t, outcome.TemplateID)
	assert.Equal(t, tplA, *outcome.TemplateID)
	assert.Equal(t, "Primero", outcome.Subject)
	// Both rules still contribute recipients.
	assert.Equal(t, []string{"ana@soporte.test"}, outcome.To)
}

func TestEvaluateMalformedRecipientListIsIgnored(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	rules.rules = []model.Workflow{{
		ID: "wf-1", Active: true,
		Recipients: []model.WorkflowRecipient{
			{Type: model.RecipientAgentList, Value: `{"broken":`},
			{Type: model.RecipientAssignedAgent},
		},
	}}

	outcome, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, false)
	require.NoError(t, err)

	// The bad entry drops out; the rule still notifies the good one.
	assert.Equal(t, []string{"ana@soporte.test"}, outcome.To)
}

func TestEvaluateDeterministicOrdering(t *testing.T) {
	eval, rules, task := evaluatorFixture()
	rules.rules = []model.Workflow{{
		ID: "wf-1", Active: true,
		Recipients: []model.WorkflowRecipient{
			{Type: model.RecipientEmailList, Value: `["zeta@x.test","alfa@x.test","mida@x.test"]`},
		},
	}}

	for i := 0; i < 5; i++ {
		outcome, err := eval.Evaluate(context.Background(), model.TriggerModified, task, nil, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"alfa@x.test", "mida@x.test", "zeta@x.test"}, outcome.To)
	}
}
