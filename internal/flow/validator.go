// Package flow validates task status transitions against the per-type
// flow configuration. A task type without an active flow is
// unrestricted: every status and transition is permitted.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/soporteware/helpdesk/internal/model"
)

// Validation failure reasons. These are expected, user-facing rejections
// rather than bugs.
var (
	ErrStatusNotAllowed     = errors.New("status not allowed by flow")
	ErrStatusNotVisible     = errors.New("status not available to clients")
	ErrTransitionNotDefined = errors.New("transition not permitted by flow")
	ErrActorNotPermitted    = errors.New("actor not permitted for transition")
)

// FlowSource provides flow configuration lookups.
type FlowSource interface {
	GetFlowForType(ctx context.Context, taskTypeID string) (*model.Flow, error)
}

// Validator decides whether a status move is legal under the task type's
// flow. It is a pure read/decide component with no side effects.
type Validator struct {
	flows FlowSource
}

// NewValidator creates a Validator reading flows from the given source.
func NewValidator(flows FlowSource) *Validator {
	return &Validator{flows: flows}
}

// Validate checks a candidate status move. currentStatusID is nil for
// new tasks. Returns nil when the move is legal, or one of the Err*
// reasons wrapped with detail.
func (v *Validator) Validate(
	ctx context.Context,
	taskTypeID string,
	currentStatusID *string,
	targetStatusID string,
	actor model.Actor,
) error {
	fl, err := v.flows.GetFlowForType(ctx, taskTypeID)
	if err != nil {
		return fmt.Errorf("loading flow for type %s: %w", taskTypeID, err)
	}

	// No flow, or flow switched off: everything is permitted.
	if fl == nil || !fl.Active {
		return nil
	}

	entry := fl.StatusEntry(targetStatusID)
	if entry == nil {
		return fmt.Errorf("status %s: %w", targetStatusID, ErrStatusNotAllowed)
	}
	if actor == model.ActorClient && !entry.ClientVisible {
		return fmt.Errorf("status %s: %w", targetStatusID, ErrStatusNotVisible)
	}

	// New tasks and no-op updates need no transition entry.
	if currentStatusID == nil || *currentStatusID == targetStatusID {
		return nil
	}

	tr := fl.Transition(*currentStatusID, targetStatusID)
	if tr == nil {
		return fmt.Errorf("%s -> %s: %w", *currentStatusID, targetStatusID, ErrTransitionNotDefined)
	}

	permitted := tr.AllowAgent
	if actor == model.ActorClient {
		permitted = tr.AllowClient
	}
	if !permitted {
		return fmt.Errorf("%s -> %s as %s: %w", *currentStatusID, targetStatusID, actor, ErrActorNotPermitted)
	}

	return nil
}
