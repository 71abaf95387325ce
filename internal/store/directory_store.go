package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/soporteware/helpdesk/internal/model"
)

// GetAgent retrieves a single agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	var (
		a      model.Agent
		active int
	)
	err := s.db.QueryRowxContext(ctx,
		"SELECT id, name, email, active FROM agents WHERE id = ?", id,
	).Scan(&a.ID, &a.Name, &a.Email, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting agent %s: %w", id, err)
	}
	a.Active = active != 0
	return &a, nil
}

// GetAgentsByIDs retrieves the agents for a list of ids. Unknown ids are
// skipped silently.
func (s *SQLiteStore) GetAgentsByIDs(ctx context.Context, ids []string) ([]model.Agent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		"SELECT id, name, email, active FROM agents WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, fmt.Errorf("building agent query: %w", err)
	}

	return s.queryAgents(ctx, s.db.Rebind(query), args...)
}

// GetAgentsByRoleIDs retrieves the distinct agents assigned to any of the
// given roles.
func (s *SQLiteStore) GetAgentsByRoleIDs(ctx context.Context, roleIDs []string) ([]model.Agent, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT a.id, a.name, a.email, a.active
		FROM agents a
		JOIN role_agents ra ON ra.agent_id = a.id
		WHERE ra.role_id IN (?)
		ORDER BY a.id`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("building role agent query: %w", err)
	}

	return s.queryAgents(ctx, s.db.Rebind(query), args...)
}

func (s *SQLiteStore) queryAgents(ctx context.Context, query string, args ...interface{}) ([]model.Agent, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []model.Agent
	for rows.Next() {
		var (
			a      model.Agent
			active int
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &active); err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		a.Active = active != 0
		agents = append(agents, a)
	}

	return agents, rows.Err()
}

// GetClient retrieves a single client by ID.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	var (
		c            model.Client
		lead1, lead2 sql.NullString
	)
	err := s.db.QueryRowxContext(ctx,
		"SELECT id, name, project_lead1_id, project_lead2_id FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &lead1, &lead2)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting client %s: %w", id, err)
	}
	if lead1.Valid {
		v := lead1.String
		c.ProjectLead1ID = &v
	}
	if lead2.Valid {
		v := lead2.String
		c.ProjectLead2ID = &v
	}
	return &c, nil
}

// GetClientUser retrieves a single client user by ID.
func (s *SQLiteStore) GetClientUser(ctx context.Context, id string) (*model.ClientUser, error) {
	var (
		u      model.ClientUser
		active int
	)
	err := s.db.QueryRowxContext(ctx,
		"SELECT id, client_id, name, email, active FROM client_users WHERE id = ?", id,
	).Scan(&u.ID, &u.ClientID, &u.Name, &u.Email, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting client user %s: %w", id, err)
	}
	u.Active = active != 0
	return &u, nil
}

// GetClientUserByEmail retrieves an active client user by email address.
func (s *SQLiteStore) GetClientUserByEmail(ctx context.Context, email string) (*model.ClientUser, error) {
	var (
		u      model.ClientUser
		active int
	)
	err := s.db.QueryRowxContext(ctx,
		"SELECT id, client_id, name, email, active FROM client_users WHERE email = ? AND active = 1", email,
	).Scan(&u.ID, &u.ClientID, &u.Name, &u.Email, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting client user %s: %w", email, err)
	}
	u.Active = active != 0
	return &u, nil
}

// GetActiveClientUsers retrieves all active users of a client, ordered by
// id for deterministic recipient resolution.
func (s *SQLiteStore) GetActiveClientUsers(ctx context.Context, clientID string) ([]model.ClientUser, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, client_id, name, email, active FROM client_users WHERE client_id = ? AND active = 1 ORDER BY id",
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying client users for %s: %w", clientID, err)
	}
	defer rows.Close()

	var users []model.ClientUser
	for rows.Next() {
		var (
			u      model.ClientUser
			active int
		)
		if err := rows.Scan(&u.ID, &u.ClientID, &u.Name, &u.Email, &active); err != nil {
			return nil, fmt.Errorf("scanning client user row: %w", err)
		}
		u.Active = active != 0
		users = append(users, u)
	}

	return users, rows.Err()
}

// SaveAgent inserts or replaces an agent.
func (s *SQLiteStore) SaveAgent(ctx context.Context, a model.Agent) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.execContext(ctx,
		"INSERT OR REPLACE INTO agents (id, name, email, active) VALUES (?, ?, ?, ?)",
		a.ID, a.Name, a.Email, boolToInt(a.Active),
	)
	if err != nil {
		return fmt.Errorf("saving agent %s: %w", a.ID, err)
	}
	return nil
}

// SaveRole inserts or replaces a role and its agent membership.
func (s *SQLiteStore) SaveRole(ctx context.Context, r model.Role, agentIDs []string) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO roles (id, name) VALUES (?, ?)", r.ID, r.Name); err != nil {
			return fmt.Errorf("saving role %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM role_agents WHERE role_id = ?", r.ID); err != nil {
			return fmt.Errorf("clearing role agents: %w", err)
		}
		for _, agentID := range agentIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO role_agents (role_id, agent_id) VALUES (?, ?)", r.ID, agentID); err != nil {
				return fmt.Errorf("saving role agent %s: %w", agentID, err)
			}
		}
		return nil
	})
}

// SaveClient inserts or replaces a client.
func (s *SQLiteStore) SaveClient(ctx context.Context, c model.Client) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.execContext(ctx, `
		INSERT OR REPLACE INTO clients (id, name, project_lead1_id, project_lead2_id)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.ProjectLead1ID, c.ProjectLead2ID,
	)
	if err != nil {
		return fmt.Errorf("saving client %s: %w", c.ID, err)
	}
	return nil
}

// SaveClientUser inserts or replaces a client user.
func (s *SQLiteStore) SaveClientUser(ctx context.Context, u model.ClientUser) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := s.execContext(ctx, `
		INSERT OR REPLACE INTO client_users (id, client_id, name, email, active)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.ClientID, u.Name, u.Email, boolToInt(u.Active),
	)
	if err != nil {
		return fmt.Errorf("saving client user %s: %w", u.ID, err)
	}
	return nil
}
