package store

import (
	"context"
	"errors"
	"time"

	"github.com/soporteware/helpdesk/internal/model"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotClaimed is returned when a conditional queue state transition
// matched no row, meaning another worker already moved it or the row is
// not in the required state.
var ErrNotClaimed = errors.New("row not in required state")

// Store defines the persistence interface for tasks, their event log,
// flow and workflow configuration, the notification queue, and the
// directory entities recipient resolution depends on.
type Store interface {
	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task, event model.TaskEvent) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	// ApplyTaskChange updates one task field and appends the audit event
	// inside a single transaction.
	ApplyTaskChange(ctx context.Context, taskID string, field model.ActionKind, newID *string, event model.TaskEvent) error
	// UpdateTaskDetails rewrites the free-form fields (title,
	// reproduced flag) with the audit event in one transaction.
	UpdateTaskDetails(ctx context.Context, taskID, title string, reproduced bool, event model.TaskEvent) error
	CloseTask(ctx context.Context, taskID string, closedAt time.Time, event model.TaskEvent) error

	// === Task events ===

	AppendEvent(ctx context.Context, event model.TaskEvent) error
	GetEventsForTask(ctx context.Context, taskID string) ([]model.TaskEvent, error)
	GetEventByID(ctx context.Context, id string) (*model.TaskEvent, error)
	// HasNewerEvent reports whether any event on the task was created
	// after the given time. Comment edits and deletes are rejected once
	// this is true.
	HasNewerEvent(ctx context.Context, taskID string, after time.Time) (bool, error)
	UpdateEventBody(ctx context.Context, id, body string) error
	DeleteEvent(ctx context.Context, id string) error

	// === Flow configuration ===

	GetFlowForType(ctx context.Context, taskTypeID string) (*model.Flow, error)
	SaveFlow(ctx context.Context, flow model.Flow) error

	// === Workflow (notification rule) configuration ===

	GetActiveWorkflows(ctx context.Context, trigger model.Trigger) ([]model.Workflow, error)
	SaveWorkflow(ctx context.Context, wf model.Workflow) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	SaveTemplate(ctx context.Context, tpl model.Template) error

	// === Notification queue ===

	EnqueueNotification(ctx context.Context, n model.QueuedNotification) error
	GetNotification(ctx context.Context, id string) (*model.QueuedNotification, error)
	// DueNotifications returns up to limit pending rows whose retry
	// delay has elapsed, ordered by priority then creation time.
	DueNotifications(ctx context.Context, now time.Time, limit int) ([]model.QueuedNotification, error)
	// ClaimNotification conditionally moves a pending row to processing.
	// Returns ErrNotClaimed if the row was not pending.
	ClaimNotification(ctx context.Context, id string) error
	MarkNotificationSent(ctx context.Context, id string, sentAt time.Time, log []model.SendLogEntry) error
	// ScheduleNotificationRetry moves a processing row back to pending
	// with the given retry count and next eligible time.
	ScheduleNotificationRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, lastError string, log []model.SendLogEntry) error
	// FailNotification terminally errors a processing row.
	FailNotification(ctx context.Context, id string, retryCount int, lastError string, log []model.SendLogEntry) error
	// ResetNotification returns an error or cancelled row to pending
	// with a cleared retry state. Returns ErrNotClaimed otherwise.
	ResetNotification(ctx context.Context, id string) error
	// CancelNotification cancels a pending row. Returns ErrNotClaimed
	// if the row is in any other state.
	CancelNotification(ctx context.Context, id string) error
	// PromoteScheduled moves scheduled rows whose send time has arrived
	// into pending, returning how many were promoted.
	PromoteScheduled(ctx context.Context, now time.Time) (int, error)

	// === Directory ===

	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	GetAgentsByIDs(ctx context.Context, ids []string) ([]model.Agent, error)
	GetAgentsByRoleIDs(ctx context.Context, roleIDs []string) ([]model.Agent, error)
	GetClient(ctx context.Context, id string) (*model.Client, error)
	GetClientUser(ctx context.Context, id string) (*model.ClientUser, error)
	GetClientUserByEmail(ctx context.Context, email string) (*model.ClientUser, error)
	GetActiveClientUsers(ctx context.Context, clientID string) ([]model.ClientUser, error)
	SaveAgent(ctx context.Context, a model.Agent) error
	SaveRole(ctx context.Context, r model.Role, agentIDs []string) error
	SaveClient(ctx context.Context, c model.Client) error
	SaveClientUser(ctx context.Context, u model.ClientUser) error

	// === Master data ===

	GetStatus(ctx context.Context, id string) (*model.Status, error)
	GetPriority(ctx context.Context, id string) (*model.Priority, error)
	GetTaskType(ctx context.Context, id string) (*model.TaskType, error)
	GetModule(ctx context.Context, id string) (*model.Module, error)
	GetRelease(ctx context.Context, id string) (*model.Release, error)
	GetTaskByNumber(ctx context.Context, number string) (*model.Task, error)
	SaveStatus(ctx context.Context, s model.Status) error
	SavePriority(ctx context.Context, p model.Priority) error
	SaveTaskType(ctx context.Context, t model.TaskType) error
	SaveModule(ctx context.Context, m model.Module) error
	SaveRelease(ctx context.Context, r model.Release) error
}
