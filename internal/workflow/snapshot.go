package workflow

import (
	"context"
	"fmt"

	"github.com/soporteware/helpdesk/internal/model"
)

// Condition field keys. Id fields hold raw references; *_codigo fields
// hold the human-facing code of the referenced master-data row. The
// anterior/nuevo keys carry the change context for CAMBIO_* triggers.
const (
	FieldClientID     = "cliente_id"
	FieldTypeID       = "tipo_id"
	FieldStatusID     = "estado_id"
	FieldPriorityID   = "prioridad_id"
	FieldModuleID     = "modulo_id"
	FieldReleaseID    = "release_id"
	FieldHotfixID     = "hotfix_id"
	FieldAgentID      = "agente_id"
	FieldNumber       = "numero"
	FieldTitle        = "titulo"
	FieldReproduced   = "reproducido"
	FieldStatusCode   = "estado_codigo"
	FieldPriorityCode = "prioridad_codigo"
	FieldTypeCode     = "tipo_codigo"
	FieldModuleCode   = "modulo_codigo"
	FieldReleaseCode  = "release_codigo"
	FieldOldID        = "anterior_id"
	FieldNewID        = "nuevo_id"
	FieldOldCode      = "anterior_codigo"
	FieldNewCode      = "nuevo_codigo"
)

// ChangeContext carries the old/new values of the field change that
// triggered evaluation. Codes are resolved by the caller.
type ChangeContext struct {
	OldID   *string
	NewID   *string
	OldCode string
	NewCode string
}

// Snapshot is the task field map conditions evaluate against. A nil
// value means the field is null on the task.
type Snapshot map[string]*string

// Lookups provides the master-data reads needed to resolve codes.
type Lookups interface {
	GetStatus(ctx context.Context, id string) (*model.Status, error)
	GetPriority(ctx context.Context, id string) (*model.Priority, error)
	GetTaskType(ctx context.Context, id string) (*model.TaskType, error)
	GetModule(ctx context.Context, id string) (*model.Module, error)
	GetRelease(ctx context.Context, id string) (*model.Release, error)
}

// BuildSnapshot flattens a task (and optional change context) into the
// field map. Code lookups that fail leave the code field null rather
// than failing evaluation.
func BuildSnapshot(ctx context.Context, lk Lookups, task *model.Task, change *ChangeContext) (Snapshot, error) {
	if task == nil {
		return nil, fmt.Errorf("nil task")
	}

	snap := Snapshot{
		FieldClientID:   strPtr(task.ClientID),
		FieldTypeID:     strPtr(task.TypeID),
		FieldStatusID:   strPtr(task.StatusID),
		FieldPriorityID: strPtr(task.PriorityID),
		FieldModuleID:   task.ModuleID,
		FieldReleaseID:  task.ReleaseID,
		FieldHotfixID:   task.HotfixID,
		FieldAgentID:    task.AssignedAgentID,
		FieldNumber:     strPtr(task.Number),
		FieldTitle:      strPtr(task.Title),
	}
	if task.Reproduced {
		snap[FieldReproduced] = strPtr("true")
	} else {
		snap[FieldReproduced] = strPtr("false")
	}

	if st, err := lk.GetStatus(ctx, task.StatusID); err == nil {
		snap[FieldStatusCode] = strPtr(st.Code)
	}
	if pr, err := lk.GetPriority(ctx, task.PriorityID); err == nil {
		snap[FieldPriorityCode] = strPtr(pr.Code)
	}
	if tt, err := lk.GetTaskType(ctx, task.TypeID); err == nil {
		snap[FieldTypeCode] = strPtr(tt.Code)
	}
	if task.ModuleID != nil {
		if m, err := lk.GetModule(ctx, *task.ModuleID); err == nil {
			snap[FieldModuleCode] = strPtr(m.Code)
		}
	}
	if task.ReleaseID != nil {
		if r, err := lk.GetRelease(ctx, *task.ReleaseID); err == nil {
			snap[FieldReleaseCode] = strPtr(r.Code)
		}
	}

	if change != nil {
		snap[FieldOldID] = change.OldID
		snap[FieldNewID] = change.NewID
		if change.OldCode != "" {
			snap[FieldOldCode] = strPtr(change.OldCode)
		}
		if change.NewCode != "" {
			snap[FieldNewCode] = strPtr(change.NewCode)
		}
	}

	return snap, nil
}

func strPtr(s string) *string {
	return &s
}
