package model

import "time"

// Actor identifies who initiated a task operation.
type Actor string

const (
	ActorAgent  Actor = "agente"
	ActorClient Actor = "cliente"
)

// Task is a helpdesk ticket.
type Task struct {
	// ID is the internal unique identifier for this task.
	ID string `json:"id"`

	// Number is the human-readable ticket number (e.g., "TAREA-1042").
	Number string `json:"number"`

	// Title is the one-line summary of the task.
	Title string `json:"title"`

	// ClientID references the client organization that owns this task.
	ClientID string `json:"client_id"`

	// TypeID references the task type, which selects the status flow.
	TypeID string `json:"type_id"`

	// StatusID references the current status.
	StatusID string `json:"status_id"`

	// PriorityID references the current priority.
	PriorityID string `json:"priority_id"`

	// ModuleID references the affected product module, if any.
	ModuleID *string `json:"module_id,omitempty"`

	// ReleaseID references the target release, if any.
	ReleaseID *string `json:"release_id,omitempty"`

	// HotfixID references the associated hotfix, if any.
	HotfixID *string `json:"hotfix_id,omitempty"`

	// AssignedAgentID references the agent currently assigned, if any.
	AssignedAgentID *string `json:"assigned_agent_id,omitempty"`

	// CreatedByAgentID is set when an agent opened the task.
	CreatedByAgentID *string `json:"created_by_agent_id,omitempty"`

	// CreatedByClientUserID is set when a client user opened the task.
	CreatedByClientUserID *string `json:"created_by_client_user_id,omitempty"`

	// ReviewerAgentID is the agent who last reviewed the task, if any.
	ReviewerAgentID *string `json:"reviewer_agent_id,omitempty"`

	// Reproduced indicates whether the reported behavior was reproduced.
	Reproduced bool `json:"reproduced"`

	// ClosedAt is when the task was closed. Nil while open. A closed
	// task accepts no further field mutation.
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Closed reports whether the task has been closed.
func (t *Task) Closed() bool {
	return t.ClosedAt != nil
}

// Status is a configurable task status (master data).
type Status struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Priority is a configurable task priority (master data).
type Priority struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// TaskType is a configurable task category. Each type may have at most
// one Flow attached.
type TaskType struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Module is a product module referenced by tasks.
type Module struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Release is a product release referenced by tasks.
type Release struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
