package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soporteware/helpdesk/internal/model"
)

type fakeFlowSource struct {
	flow *model.Flow
	err  error
}

func (f *fakeFlowSource) GetFlowForType(context.Context, string) (*model.Flow, error) {
	return f.flow, f.err
}

func ptr(s string) *string { return &s }

func testFlow() *model.Flow {
	return &model.Flow{
		ID:         "flow-1",
		TaskTypeID: "type-incident",
		Active:     true,
		Statuses: []model.FlowStatus{
			{StatusID: "open", ClientVisible: true, SortOrder: 0},
			{StatusID: "in_progress", ClientVisible: false, SortOrder: 1},
			{StatusID: "closed", ClientVisible: true, SortOrder: 2},
		},
		Transitions: []model.FlowTransition{
			{OriginStatusID: "open", DestinationStatusID: "in_progress", AllowAgent: true},
			{OriginStatusID: "in_progress", DestinationStatusID: "closed", AllowAgent: true, AllowClient: true},
		},
	}
}

func TestValidateNoFlowPermitsEverything(t *testing.T) {
	v := NewValidator(&fakeFlowSource{flow: nil})

	err := v.Validate(context.Background(), "type-incident", ptr("anything"), "whatever", model.ActorClient)
	assert.NoError(t, err)
}

func TestValidateInactiveFlowPermitsEverything(t *testing.T) {
	fl := testFlow()
	fl.Active = false
	v := NewValidator(&fakeFlowSource{flow: fl})

	err := v.Validate(context.Background(), "type-incident", ptr("open"), "unknown-status", model.ActorAgent)
	assert.NoError(t, err)
}

func TestValidateStatusNotInFlow(t *testing.T) {
	v := NewValidator(&fakeFlowSource{flow: testFlow()})

	err := v.Validate(context.Background(), "type-incident", ptr("open"), "unknown-status", model.ActorAgent)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatusNotAllowed)
}

func TestValidateClientCannotUseHiddenStatus(t *testing.T) {
	v := NewValidator(&fakeFlowSource{flow: testFlow()})

	err := v.Validate(context.Background(), "type-incident", ptr("open"), "in_progress", model.ActorClient)
	assert.ErrorIs(t, err, ErrStatusNotVisible)
}

func TestValidateNewTaskNeedsNoTransition(t *testing.T) {
	v := NewValidator(&fakeFlowSource{flow: testFlow()})

	assert.NoError(t, v.Validate(context.Background(), "type-incident", nil, "open", model.ActorClient))
	assert.NoError(t, v.Validate(context.Background(), "type-incident", nil, "in_progress", model.ActorAgent))
}

func TestValidateNoOpUpdateAllowed(t *testing.T) {
	v := NewValidator(&fakeFlowSource{flow: testFlow()})

	err := v.Validate(context.Background(), "type-incident", ptr("in_progress"), "in_progress", model.ActorAgent)
	assert.NoError(t, err)
}

func TestValidateUndefinedTransitionRejected(t *testing.T) {
	v := NewValidator(&fakeFlowSource{flow: testFlow()})

	err := v.Validate(context.Background(), "type-incident", ptr("open"), "closed", model.ActorAgent)
	assert.ErrorIs(t, err, ErrTransitionNotDefined)
}

func TestValidateActorPermits(t *testing.T) {
	v := NewValidator(&fakeFlowSource{flow: testFlow()})

	// open -> in_progress is agent-only.
	err := v.Validate(context.Background(), "type-incident", ptr("open"), "in_progress", model.ActorAgent)
	assert.NoError(t, err)

	// Visible destination but forbidden actor: closed -> filtered by
	// actor permit, not by visibility.
	fl := testFlow()
	fl.Transitions = append(fl.Transitions, model.FlowTransition{
		OriginStatusID: "open", DestinationStatusID: "closed", AllowAgent: true,
	})
	v = NewValidator(&fakeFlowSource{flow: fl})
	err = v.Validate(context.Background(), "type-incident", ptr("open"), "closed", model.ActorClient)
	assert.ErrorIs(t, err, ErrActorNotPermitted)
}

func TestValidateSourceErrorSurfaces(t *testing.T) {
	v := NewValidator(&fakeFlowSource{err: assert.AnError})

	err := v.Validate(context.Background(), "type-incident", nil, "open", model.ActorAgent)
	assert.ErrorIs(t, err, assert.AnError)
}
