package model

// FlowStatus is one entry of a flow's ordered allowed-status list.
type FlowStatus struct {
	// StatusID references the allowed status.
	StatusID string `json:"status_id"`

	// ClientVisible controls whether client users may move a task into
	// this status (and see it).
	ClientVisible bool `json:"client_visible"`

	// SortOrder positions the status within the flow.
	SortOrder int `json:"sort_order"`
}

// FlowTransition is one permitted origin -> destination move.
type FlowTransition struct {
	// OriginStatusID is the status the task must currently hold.
	OriginStatusID string `json:"origin_status_id"`

	// DestinationStatusID is the status the task may move to.
	DestinationStatusID string `json:"destination_status_id"`

	// AllowAgent permits agents to perform this transition.
	AllowAgent bool `json:"allow_agent"`

	// AllowClient permits client users to perform this transition.
	AllowClient bool `json:"allow_client"`

	// Notify flags the transition for notification on use.
	Notify bool `json:"notify"`
}

// Flow is the per-task-type status state machine configuration. A task
// type without an active flow is unrestricted: every status and every
// transition is permitted.
type Flow struct {
	// ID is the unique identifier for this flow.
	ID string `json:"id"`

	// TaskTypeID is the task type this flow governs. At most one flow
	// exists per task type.
	TaskTypeID string `json:"task_type_id"`

	// Active disables the flow without deleting it. An inactive flow
	// behaves as if absent.
	Active bool `json:"active"`

	// InitialStatusID is the status assigned to new tasks, if set.
	InitialStatusID *string `json:"initial_status_id,omitempty"`

	// Statuses is the ordered allowed-status list.
	Statuses []FlowStatus `json:"statuses"`

	// Transitions is the permitted-transition list.
	Transitions []FlowTransition `json:"transitions"`
}

// StatusEntry returns the allowed-status entry for statusID, or nil if
// the status is not part of the flow.
func (f *Flow) StatusEntry(statusID string) *FlowStatus {
	for i := range f.Statuses {
		if f.Statuses[i].StatusID == statusID {
			return &f.Statuses[i]
		}
	}
	return nil
}

// Transition returns the transition entry for the exact origin and
// destination pair, or nil if none is configured.
func (f *Flow) Transition(originID, destinationID string) *FlowTransition {
	for i := range f.Transitions {
		t := &f.Transitions[i]
		if t.OriginStatusID == originID && t.DestinationStatusID == destinationID {
			return t
		}
	}
	return nil
}
