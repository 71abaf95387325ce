// Package testutil provides shared helpers for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/soporteware/helpdesk/internal/model"
	"github.com/soporteware/helpdesk/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedMasterData inserts the master-data rows most tests need and
// returns nothing; rows are addressable by their fixed ids
// (status-open, status-progress, status-closed, prio-normal,
// prio-urgent, type-incident, module-billing, release-2024-1).
func SeedMasterData(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	statuses := []model.Status{
		{ID: "status-open", Code: "ABIERTO", Name: "Abierto"},
		{ID: "status-progress", Code: "EN_PROCESO", Name: "En proceso"},
		{ID: "status-closed", Code: "CERRADO", Name: "Cerrado"},
	}
	for _, st := range statuses {
		if err := s.SaveStatus(ctx, st); err != nil {
			t.Fatalf("seeding status %s: %v", st.ID, err)
		}
	}

	priorities := []model.Priority{
		{ID: "prio-normal", Code: "NORMAL", Name: "Normal"},
		{ID: "prio-urgent", Code: "URGENTE", Name: "Urgente"},
	}
	for _, p := range priorities {
		if err := s.SavePriority(ctx, p); err != nil {
			t.Fatalf("seeding priority %s: %v", p.ID, err)
		}
	}

	if err := s.SaveTaskType(ctx, model.TaskType{ID: "type-incident", Code: "INCIDENTE", Name: "Incidente"}); err != nil {
		t.Fatalf("seeding task type: %v", err)
	}
	if err := s.SaveModule(ctx, model.Module{ID: "module-billing", Code: "FACTURACION", Name: "Facturacion"}); err != nil {
		t.Fatalf("seeding module: %v", err)
	}
	if err := s.SaveRelease(ctx, model.Release{ID: "release-2024-1", Code: "2024.1", Name: "Release 2024.1"}); err != nil {
		t.Fatalf("seeding release: %v", err)
	}
}

// SeedDirectory inserts a client with two users (the first is project
// lead 1) and two agents. Fixed ids: client-acme, cuser-1, cuser-2,
// agent-1, agent-2.
func SeedDirectory(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	lead1 := "cuser-1"
	if err := s.SaveClient(ctx, model.Client{ID: "client-acme", Name: "ACME", ProjectLead1ID: &lead1}); err != nil {
		t.Fatalf("seeding client: %v", err)
	}

	users := []model.ClientUser{
		{ID: "cuser-1", ClientID: "client-acme", Name: "Laura Perez", Email: "laura@acme.test", Active: true},
		{ID: "cuser-2", ClientID: "client-acme", Name: "Pedro Gomez", Email: "pedro@acme.test", Active: true},
	}
	for _, u := range users {
		if err := s.SaveClientUser(ctx, u); err != nil {
			t.Fatalf("seeding client user %s: %v", u.ID, err)
		}
	}

	agents := []model.Agent{
		{ID: "agent-1", Name: "Ana Ruiz", Email: "ana@soporte.test", Active: true},
		{ID: "agent-2", Name: "Luis Mora", Email: "luis@soporte.test", Active: true},
	}
	for _, a := range agents {
		if err := s.SaveAgent(ctx, a); err != nil {
			t.Fatalf("seeding agent %s: %v", a.ID, err)
		}
	}
}

// SeedTask inserts a baseline open task owned by client-acme and
// assigned to agent-1, returning it.
func SeedTask(t *testing.T, s *store.SQLiteStore) *model.Task {
	t.Helper()
	ctx := context.Background()

	agentID := "agent-1"
	task := model.Task{
		ID:              "task-1",
		Number:          "1001",
		Title:           "Error al facturar",
		ClientID:        "client-acme",
		TypeID:          "type-incident",
		StatusID:        "status-open",
		PriorityID:      "prio-normal",
		AssignedAgentID: &agentID,
	}
	event := model.TaskEvent{
		Kind:          model.EventSystem,
		Actor:         model.ActorAgent,
		Body:          "Tarea creada",
		InTimeline:    true,
		ClientVisible: true,
	}
	if err := s.CreateTask(ctx, task, event); err != nil {
		t.Fatalf("seeding task: %v", err)
	}

	created, err := s.GetTaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("reloading seeded task: %v", err)
	}
	return created
}
