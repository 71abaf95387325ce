package model

import "time"

// EventKind categorizes a task event.
type EventKind string

const (
	EventMessage        EventKind = "MENSAJE"
	EventReply          EventKind = "RESPUESTA"
	EventNote           EventKind = "NOTA"
	EventStatusChange   EventKind = "CAMBIO_ESTADO"
	EventPriorityChange EventKind = "CAMBIO_PRIORIDAD"
	EventTypeChange     EventKind = "CAMBIO_TIPO"
	EventModuleChange   EventKind = "CAMBIO_MODULO"
	EventReleaseChange  EventKind = "CAMBIO_RELEASE"
	EventAssignment     EventKind = "ASIGNACION"
	EventSystem         EventKind = "SISTEMA"
)

// IsComment reports whether the kind is a user-entered comment, which may
// be edited or deleted while it is still the newest event on its task.
func (k EventKind) IsComment() bool {
	switch k {
	case EventMessage, EventReply, EventNote:
		return true
	}
	return false
}

// EventPayload carries the structured data attached to a task event. For
// field-change events it records the old and new references.
type EventPayload struct {
	OldID   *string `json:"old_id,omitempty"`
	NewID   *string `json:"new_id,omitempty"`
	OldCode string  `json:"old_code,omitempty"`
	NewCode string  `json:"new_code,omitempty"`

	// FromWorkflow marks changes applied by a notification rule action
	// rather than by a user.
	FromWorkflow bool `json:"from_workflow,omitempty"`
}

// TaskEvent is one row of a task's append-only activity log.
type TaskEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// TaskID links the event to its task.
	TaskID string `json:"task_id"`

	// Kind categorizes the event (use Event* constants).
	Kind EventKind `json:"kind"`

	// Actor records whether an agent or a client produced the event.
	Actor Actor `json:"actor"`

	// ActorID references the agent or client user, if known.
	ActorID *string `json:"actor_id,omitempty"`

	// Body is the free-text content (comment text, change summary).
	Body string `json:"body"`

	// Payload holds structured old/new values for change events.
	Payload EventPayload `json:"payload"`

	// InTimeline controls whether the event appears in the task timeline.
	InTimeline bool `json:"in_timeline"`

	// ClientVisible controls whether client users can see the event.
	ClientVisible bool `json:"client_visible"`

	CreatedAt time.Time `json:"created_at"`
}
