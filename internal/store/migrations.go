package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS statuses (
	id   TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS priorities (
	id   TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS task_types (
	id   TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS modules (
	id   TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS releases (
	id   TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	email  TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS roles (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS role_agents (
	role_id  TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	PRIMARY KEY (role_id, agent_id)
);

CREATE TABLE IF NOT EXISTS clients (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	project_lead1_id TEXT,
	project_lead2_id TEXT
);

CREATE TABLE IF NOT EXISTS client_users (
	id        TEXT PRIMARY KEY,
	client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	email     TEXT NOT NULL,
	active    INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS tasks (
	id                        TEXT PRIMARY KEY,
	number                    TEXT NOT NULL UNIQUE,
	title                     TEXT NOT NULL,
	client_id                 TEXT NOT NULL,
	type_id                   TEXT NOT NULL,
	status_id                 TEXT NOT NULL,
	priority_id               TEXT NOT NULL,
	module_id                 TEXT,
	release_id                TEXT,
	hotfix_id                 TEXT,
	assigned_agent_id         TEXT,
	created_by_agent_id       TEXT,
	created_by_client_user_id TEXT,
	reviewer_agent_id         TEXT,
	reproduced                INTEGER NOT NULL DEFAULT 0,
	closed_at                 DATETIME,
	created_at                DATETIME NOT NULL,
	updated_at                DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_events (
	id             TEXT PRIMARY KEY,
	task_id        TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	kind           TEXT NOT NULL,
	actor          TEXT NOT NULL,
	actor_id       TEXT,
	body           TEXT NOT NULL DEFAULT '',
	payload        TEXT NOT NULL DEFAULT '{}',
	in_timeline    INTEGER NOT NULL DEFAULT 1,
	client_visible INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS flows (
	id                TEXT PRIMARY KEY,
	task_type_id      TEXT NOT NULL UNIQUE,
	active            INTEGER NOT NULL DEFAULT 1,
	initial_status_id TEXT
);

CREATE TABLE IF NOT EXISTS flow_statuses (
	flow_id        TEXT NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
	status_id      TEXT NOT NULL,
	client_visible INTEGER NOT NULL DEFAULT 0,
	sort_order     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (flow_id, status_id)
);

CREATE TABLE IF NOT EXISTS flow_transitions (
	flow_id               TEXT NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
	origin_status_id      TEXT NOT NULL,
	destination_status_id TEXT NOT NULL,
	allow_agent           INTEGER NOT NULL DEFAULT 1,
	allow_client          INTEGER NOT NULL DEFAULT 0,
	notify                INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (flow_id, origin_status_id, destination_status_id)
);

CREATE TABLE IF NOT EXISTS templates (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	html    TEXT NOT NULL DEFAULT '',
	text    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS workflows (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	trigger       TEXT NOT NULL,
	active        INTEGER NOT NULL DEFAULT 1,
	priority      INTEGER NOT NULL DEFAULT 0,
	stop_on_match INTEGER NOT NULL DEFAULT 0,
	template_id   TEXT REFERENCES templates(id),
	subject       TEXT NOT NULL DEFAULT '',
	copy_lead1    INTEGER NOT NULL DEFAULT 0,
	copy_lead2    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS workflow_conditions (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	field       TEXT NOT NULL,
	operator    TEXT NOT NULL,
	value       TEXT NOT NULL DEFAULT '',
	or_group    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS workflow_recipients (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	type        TEXT NOT NULL,
	value       TEXT NOT NULL DEFAULT '',
	cc          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS workflow_actions (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	kind        TEXT NOT NULL,
	target_id   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notification_queue (
	id            TEXT PRIMARY KEY,
	task_id       TEXT,
	recipients_to TEXT NOT NULL DEFAULT '[]',
	recipients_cc TEXT NOT NULL DEFAULT '[]',
	subject       TEXT NOT NULL DEFAULT '',
	html          TEXT NOT NULL DEFAULT '',
	text          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT 'pending',
	retry_count   INTEGER NOT NULL DEFAULT 0,
	max_retries   INTEGER NOT NULL DEFAULT 3,
	next_retry_at DATETIME,
	send_at       DATETIME,
	priority      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	send_log      TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL,
	sent_at       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_client ON tasks(client_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status_id);
CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, created_at);
CREATE INDEX IF NOT EXISTS idx_workflows_trigger ON workflows(trigger, priority);
CREATE INDEX IF NOT EXISTS idx_queue_state ON notification_queue(state, next_retry_at);
CREATE INDEX IF NOT EXISTS idx_queue_order ON notification_queue(priority, created_at);
CREATE INDEX IF NOT EXISTS idx_client_users_client ON client_users(client_id, active);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_queue_send_at ON notification_queue(send_at)
	WHERE state = 'scheduled';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
