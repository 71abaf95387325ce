package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/soporteware/helpdesk/internal/model"
)

// Directory provides the lookups recipient resolution depends on.
type Directory interface {
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	GetAgentsByIDs(ctx context.Context, ids []string) ([]model.Agent, error)
	GetAgentsByRoleIDs(ctx context.Context, roleIDs []string) ([]model.Agent, error)
	GetClient(ctx context.Context, id string) (*model.Client, error)
	GetClientUser(ctx context.Context, id string) (*model.ClientUser, error)
	GetActiveClientUsers(ctx context.Context, clientID string) ([]model.ClientUser, error)
}

// resolverFunc expands one recipient entry value into concrete addresses
// for the given task.
type resolverFunc func(ctx context.Context, value string, task *model.Task, dir Directory) []string

// resolvers dispatches recipient resolution by type tag.
var resolvers = map[model.RecipientType]resolverFunc{
	model.RecipientClientUsers:   resolveClientUsers,
	model.RecipientClientCreator: resolveClientCreator,
	model.RecipientProjectLead1:  resolveProjectLead(1),
	model.RecipientProjectLead2:  resolveProjectLead(2),
	model.RecipientAssignedAgent: resolveAssignedAgent,
	model.RecipientCreatorAgent:  resolveCreatorAgent,
	model.RecipientReviewerAgent: resolveReviewerAgent,
	model.RecipientAgentList:     resolveAgentList,
	model.RecipientRoleList:      resolveRoleList,
	model.RecipientEmailList:     resolveEmailList,
}

// resolveRecipient expands a recipient entry. Unknown types and
// resolution failures return no addresses; notifications are never
// blocked by a bad recipient entry, the anomaly is only logged.
func resolveRecipient(ctx context.Context, r model.WorkflowRecipient, task *model.Task, dir Directory) []string {
	resolve, ok := resolvers[r.Type]
	if !ok {
		slog.Warn("unknown recipient type", "type", string(r.Type), "task_id", task.ID)
		return nil
	}
	return resolve(ctx, r.Value, task, dir)
}

func resolveClientUsers(ctx context.Context, _ string, task *model.Task, dir Directory) []string {
	users, err := dir.GetActiveClientUsers(ctx, task.ClientID)
	if err != nil {
		slog.Warn("resolving client users failed", "client_id", task.ClientID, "err", err)
		return nil
	}
	var emails []string
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails
}

func resolveClientCreator(ctx context.Context, _ string, task *model.Task, dir Directory) []string {
	if task.CreatedByClientUserID == nil {
		return nil
	}
	u, err := dir.GetClientUser(ctx, *task.CreatedByClientUserID)
	if err != nil {
		slog.Warn("resolving creating client user failed",
			"client_user_id", *task.CreatedByClientUserID, "err", err)
		return nil
	}
	return []string{u.Email}
}

// resolveProjectLead builds the resolver for one of the two project-lead
// slots on the client record.
func resolveProjectLead(slot int) resolverFunc {
	return func(ctx context.Context, _ string, task *model.Task, dir Directory) []string {
		client, err := dir.GetClient(ctx, task.ClientID)
		if err != nil {
			slog.Warn("resolving client failed", "client_id", task.ClientID, "err", err)
			return nil
		}

		leadID := client.ProjectLead1ID
		if slot == 2 {
			leadID = client.ProjectLead2ID
		}
		if leadID == nil {
			return nil
		}

		u, err := dir.GetClientUser(ctx, *leadID)
		if err != nil {
			slog.Warn("resolving project lead failed", "client_user_id", *leadID, "err", err)
			return nil
		}
		return []string{u.Email}
	}
}

func resolveAssignedAgent(ctx context.Context, _ string, task *model.Task, dir Directory) []string {
	return agentEmail(ctx, task.AssignedAgentID, dir)
}

func resolveCreatorAgent(ctx context.Context, _ string, task *model.Task, dir Directory) []string {
	return agentEmail(ctx, task.CreatedByAgentID, dir)
}

func resolveReviewerAgent(ctx context.Context, _ string, task *model.Task, dir Directory) []string {
	return agentEmail(ctx, task.ReviewerAgentID, dir)
}

func agentEmail(ctx context.Context, agentID *string, dir Directory) []string {
	if agentID == nil {
		return nil
	}
	a, err := dir.GetAgent(ctx, *agentID)
	if err != nil {
		slog.Warn("resolving agent failed", "agent_id", *agentID, "err", err)
		return nil
	}
	return []string{a.Email}
}

func resolveAgentList(ctx context.Context, value string, task *model.Task, dir Directory) []string {
	ids := parseIDList(value, task.ID)
	agents, err := dir.GetAgentsByIDs(ctx, ids)
	if err != nil {
		slog.Warn("resolving agent list failed", "task_id", task.ID, "err", err)
		return nil
	}
	var emails []string
	for _, a := range agents {
		if a.Active {
			emails = append(emails, a.Email)
		}
	}
	return emails
}

func resolveRoleList(ctx context.Context, value string, task *model.Task, dir Directory) []string {
	ids := parseIDList(value, task.ID)
	agents, err := dir.GetAgentsByRoleIDs(ctx, ids)
	if err != nil {
		slog.Warn("resolving role list failed", "task_id", task.ID, "err", err)
		return nil
	}
	var emails []string
	for _, a := range agents {
		if a.Active {
			emails = append(emails, a.Email)
		}
	}
	return emails
}

func resolveEmailList(_ context.Context, value string, task *model.Task, _ Directory) []string {
	var emails []string
	for _, addr := range parseIDList(value, task.ID) {
		if addr = strings.TrimSpace(addr); addr != "" {
			emails = append(emails, addr)
		}
	}
	return emails
}

// parseIDList decodes a JSON id/email array. Malformed lists resolve to
// empty so a bad rule entry never blocks notifications; the anomaly is
// logged because it indicates misconfiguration.
func parseIDList(raw, taskID string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		slog.Warn("malformed recipient list ignored", "task_id", taskID, "value", raw, "err", err)
		return nil
	}
	return ids
}
