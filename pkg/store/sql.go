package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements Store with a SQL backend.
// Supports PostgreSQL, MySQL and SQLite via database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect string // "postgres", "mysql" or "sqlite"
}

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS workspaces (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    default_model VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
    id VARCHAR(64) PRIMARY KEY,
    workspace_id VARCHAR(64) NOT NULL,
    name VARCHAR(255) NOT NULL,
    role VARCHAR(64) NOT NULL,
    level VARCHAR(32) NOT NULL,
    state VARCHAR(32) NOT NULL,
    temperature DOUBLE PRECISION NOT NULL,
    max_tokens INTEGER NOT NULL,
    model VARCHAR(255) NOT NULL,
    system_prompt TEXT NOT NULL,
    wake_interval_ms BIGINT NOT NULL,
    last_wake TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    id VARCHAR(64) PRIMARY KEY,
    workspace_id VARCHAR(64) NOT NULL,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    status VARCHAR(32) NOT NULL,
    priority VARCHAR(16) NOT NULL,
    assigned_to VARCHAR(64) NOT NULL,
    created_by VARCHAR(64) NOT NULL,
    version BIGINT NOT NULL,
    tags TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS task_history (
    id VARCHAR(64) PRIMARY KEY,
    workspace_id VARCHAR(64) NOT NULL,
    task_id VARCHAR(64) NOT NULL,
    old_status VARCHAR(32) NOT NULL,
    new_status VARCHAR(32) NOT NULL,
    changed_by VARCHAR(64) NOT NULL,
    changed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS api_keys (
    id VARCHAR(64) PRIMARY KEY,
    workspace_id VARCHAR(64) NOT NULL,
    provider VARCHAR(32) NOT NULL,
    encrypted_key TEXT NOT NULL,
    is_active BOOLEAN NOT NULL,
    last_validated TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS api_usage (
    id VARCHAR(64) PRIMARY KEY,
    workspace_id VARCHAR(64) NOT NULL,
    agent_id VARCHAR(64) NOT NULL,
    provider VARCHAR(32) NOT NULL,
    model VARCHAR(255) NOT NULL,
    tokens INTEGER NOT NULL,
    cost DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_metrics (
    workspace_id VARCHAR(64) NOT NULL,
    day VARCHAR(10) NOT NULL,
    provider VARCHAR(32) NOT NULL,
    api_calls BIGINT NOT NULL,
    PRIMARY KEY (workspace_id, day, provider)
);

CREATE TABLE IF NOT EXISTS telegram_chats (
    id VARCHAR(64) PRIMARY KEY,
    workspace_id VARCHAR(64) NOT NULL,
    chat_id BIGINT NOT NULL,
    type VARCHAR(16) NOT NULL,
    title VARCHAR(255) NOT NULL,
    username VARCHAR(255) NOT NULL,
    status VARCHAR(16) NOT NULL,
    last_seen TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_workspace_status ON tasks(workspace_id, status);
CREATE INDEX IF NOT EXISTS idx_task_history_task ON task_history(task_id);
CREATE INDEX IF NOT EXISTS idx_agents_workspace ON agents(workspace_id);
CREATE INDEX IF NOT EXISTS idx_api_keys_workspace ON api_keys(workspace_id);
CREATE INDEX IF NOT EXISTS idx_api_usage_workspace ON api_usage(workspace_id);
CREATE INDEX IF NOT EXISTS idx_telegram_chats_chat ON telegram_chats(chat_id);
`

// NewSQLStore creates a new SQL-backed store over an existing
// connection and initializes the schema.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":
		// Valid
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Open opens a database connection for the given driver and DSN and
// returns an initialized store.
func Open(driver, dsn string, maxConns, maxIdle int) (*SQLStore, error) {
	// The go-sqlite3 driver registers as "sqlite3"
	driverName := driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLStore(db, driver)
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// MySQL cannot run multiple statements in one Exec by default
	for _, stmt := range strings.Split(createSchemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; ignore duplicates
			if s.dialect == "mysql" && strings.HasPrefix(stmt, "CREATE INDEX") {
				continue
			}
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// TASKS
// ============================================================================

func (s *SQLStore) CreateTask(ctx context.Context, t *Task) (string, error) {
	if t.WorkspaceID == "" {
		return "", fmt.Errorf("workspace id is required")
	}

	t.ID = uuid.NewString()
	t.Status = TaskStatusInbox
	t.Version = 1
	if t.Priority == "" {
		t.Priority = TaskPriorityNormal
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return "", fmt.Errorf("failed to serialize tags: %w", err)
	}

	query := s.rebind(`
INSERT INTO tasks (id, workspace_id, title, description, status, priority, assigned_to, created_by, version, tags, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	_, err = s.db.ExecContext(ctx, query,
		t.ID, t.WorkspaceID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.AssignedTo, t.CreatedBy, t.Version, string(tags), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert task: %w", err)
	}
	return t.ID, nil
}

func (s *SQLStore) GetTask(ctx context.Context, taskID string) (*Task, error) {
	query := s.rebind(`
SELECT id, workspace_id, title, description, status, priority, assigned_to, created_by, version, tags, created_at, updated_at
FROM tasks WHERE id = ?
`)
	return s.scanTask(s.db.QueryRowContext(ctx, query, taskID))
}

func (s *SQLStore) ListTasks(ctx context.Context, workspaceID string, status TaskStatus) ([]*Task, error) {
	query := s.rebind(`
SELECT id, workspace_id, title, description, status, priority, assigned_to, created_by, version, tags, created_at, updated_at
FROM tasks WHERE workspace_id = ? AND status = ?
ORDER BY created_at
`)
	rows, err := s.db.QueryContext(ctx, query, workspaceID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*Task
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanTask(row rowScanner) (*Task, error) {
	var t Task
	var status, priority, tags string
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &status, &priority,
		&t.AssignedTo, &t.CreatedBy, &t.Version, &tags, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.Status = TaskStatus(status)
	t.Priority = TaskPriority(priority)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %w", err)
	}
	return &t, nil
}

func (s *SQLStore) AssignTask(ctx context.Context, taskID, agentID, assignedBy string, expectedVersion int64) error {
	return s.transitionTask(ctx, taskID, TaskStatusAssigned, agentID, assignedBy, expectedVersion)
}

func (s *SQLStore) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, changedBy string, expectedVersion int64) error {
	return s.transitionTask(ctx, taskID, status, "", changedBy, expectedVersion)
}

// transitionTask performs a compare-and-swap status transition and
// appends the history record in one transaction. assignee is only set
// for assignment transitions.
func (s *SQLStore) transitionTask(ctx context.Context, taskID string, status TaskStatus, assignee, changedBy string, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var workspaceID, oldStatus string
	query := s.rebind(`SELECT workspace_id, status FROM tasks WHERE id = ?`)
	err = tx.QueryRowContext(ctx, query, taskID).Scan(&workspaceID, &oldStatus)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read task: %w", err)
	}

	now := time.Now().UTC()
	var res sql.Result
	if assignee != "" {
		query = s.rebind(`
UPDATE tasks SET status = ?, assigned_to = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?
`)
		res, err = tx.ExecContext(ctx, query, string(status), assignee, now, taskID, expectedVersion)
	} else {
		query = s.rebind(`
UPDATE tasks SET status = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?
`)
		res, err = tx.ExecContext(ctx, query, string(status), now, taskID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	query = s.rebind(`
INSERT INTO task_history (id, workspace_id, task_id, old_status, new_status, changed_by, changed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	_, err = tx.ExecContext(ctx, query, uuid.NewString(), workspaceID, taskID, oldStatus, string(status), changedBy, now)
	if err != nil {
		return fmt.Errorf("failed to insert task history: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStore) ListTaskHistory(ctx context.Context, taskID string) ([]*TaskHistory, error) {
	query := s.rebind(`
SELECT id, workspace_id, task_id, old_status, new_status, changed_by, changed_at
FROM task_history WHERE task_id = ?
ORDER BY changed_at
`)
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []*TaskHistory
	for rows.Next() {
		var h TaskHistory
		var oldStatus, newStatus string
		if err := rows.Scan(&h.ID, &h.WorkspaceID, &h.TaskID, &oldStatus, &newStatus, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task history: %w", err)
		}
		h.OldStatus = TaskStatus(oldStatus)
		h.NewStatus = TaskStatus(newStatus)
		history = append(history, &h)
	}
	return history, rows.Err()
}

// ============================================================================
// AGENTS
// ============================================================================

func (s *SQLStore) CreateAgent(ctx context.Context, a *Agent) (string, error) {
	if a.WorkspaceID == "" {
		return "", fmt.Errorf("workspace id is required")
	}

	a.ID = uuid.NewString()
	if a.State == "" {
		a.State = StateSleeping
	}
	if a.WakeInterval == 0 {
		a.WakeInterval = 15 * time.Minute
	}
	a.LastWake = time.Now().UTC()

	query := s.rebind(`
INSERT INTO agents (id, workspace_id, name, role, level, state, temperature, max_tokens, model, system_prompt, wake_interval_ms, last_wake)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.WorkspaceID, a.Name, string(a.Role), string(a.Level), string(a.State),
		a.Config.Temperature, a.Config.MaxTokens, a.Config.Model, a.Config.SystemPrompt,
		a.WakeInterval.Milliseconds(), a.LastWake,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert agent: %w", err)
	}
	return a.ID, nil
}

func (s *SQLStore) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	query := s.rebind(`
SELECT id, workspace_id, name, role, level, state, temperature, max_tokens, model, system_prompt, wake_interval_ms, last_wake
FROM agents WHERE id = ?
`)
	return s.scanAgent(s.db.QueryRowContext(ctx, query, agentID))
}

func (s *SQLStore) ListAgents(ctx context.Context, workspaceID string) ([]*Agent, error) {
	query := s.rebind(`
SELECT id, workspace_id, name, role, level, state, temperature, max_tokens, model, system_prompt, wake_interval_ms, last_wake
FROM agents WHERE workspace_id = ?
ORDER BY name
`)
	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []*Agent
	for rows.Next() {
		a, err := s.scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *SQLStore) scanAgent(row rowScanner) (*Agent, error) {
	var a Agent
	var role, level, state string
	var wakeMS int64
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.Name, &role, &level, &state,
		&a.Config.Temperature, &a.Config.MaxTokens, &a.Config.Model, &a.Config.SystemPrompt,
		&wakeMS, &a.LastWake)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan agent: %w", err)
	}
	a.Role = AgentRole(role)
	a.Level = AgentLevel(level)
	a.State = AgentState(state)
	a.WakeInterval = time.Duration(wakeMS) * time.Millisecond
	return &a, nil
}

func (s *SQLStore) UpdateAgentState(ctx context.Context, agentID string, state AgentState) error {
	query := s.rebind(`UPDATE agents SET state = ?, last_wake = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, string(state), time.Now().UTC(), agentID)
	if err != nil {
		return fmt.Errorf("failed to update agent state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// WORKSPACES
// ============================================================================

func (s *SQLStore) CreateWorkspace(ctx context.Context, w *Workspace) (string, error) {
	w.ID = uuid.NewString()
	w.CreatedAt = time.Now().UTC()

	query := s.rebind(`INSERT INTO workspaces (id, name, default_model, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, w.ID, w.Name, w.DefaultModel, w.CreatedAt); err != nil {
		return "", fmt.Errorf("failed to insert workspace: %w", err)
	}
	return w.ID, nil
}

func (s *SQLStore) GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	query := s.rebind(`SELECT id, name, default_model, created_at FROM workspaces WHERE id = ?`)
	var w Workspace
	err := s.db.QueryRowContext(ctx, query, workspaceID).Scan(&w.ID, &w.Name, &w.DefaultModel, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspace: %w", err)
	}
	return &w, nil
}

func (s *SQLStore) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	query := `SELECT id, name, default_model, created_at FROM workspaces ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var workspaces []*Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.DefaultModel, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, &w)
	}
	return workspaces, rows.Err()
}

// ============================================================================
// CREDENTIALS
// ============================================================================

func (s *SQLStore) SaveCredential(ctx context.Context, c *Credential) (string, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	if c.LastValidated.IsZero() {
		c.LastValidated = c.CreatedAt
	}

	query := s.rebind(`
INSERT INTO api_keys (id, workspace_id, provider, encrypted_key, is_active, last_validated, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	_, err := s.db.ExecContext(ctx, query, c.ID, c.WorkspaceID, c.Provider, c.EncryptedKey, c.IsActive, c.LastValidated, c.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert credential: %w", err)
	}
	return c.ID, nil
}

func (s *SQLStore) GetActiveCredentials(ctx context.Context, workspaceID string) ([]*Credential, error) {
	query := s.rebind(`
SELECT id, workspace_id, provider, encrypted_key, is_active, last_validated, created_at
FROM api_keys WHERE workspace_id = ? AND is_active = ?
ORDER BY created_at, id
`)
	rows, err := s.db.QueryContext(ctx, query, workspaceID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Provider, &c.EncryptedKey, &c.IsActive, &c.LastValidated, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}

// ============================================================================
// USAGE ACCOUNTING
// ============================================================================

func (s *SQLStore) RecordUsage(ctx context.Context, u *UsageRecord) error {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	query := s.rebind(`
INSERT INTO api_usage (id, workspace_id, agent_id, provider, model, tokens, cost, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	_, err := s.db.ExecContext(ctx, query, u.ID, u.WorkspaceID, u.AgentID, u.Provider, u.Model, u.Tokens, u.Cost, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

func (s *SQLStore) IncrementDailyMetric(ctx context.Context, workspaceID, date, provider string) error {
	var query string
	switch s.dialect {
	case "mysql":
		query = `
INSERT INTO usage_metrics (workspace_id, day, provider, api_calls) VALUES (?, ?, ?, 1)
ON DUPLICATE KEY UPDATE api_calls = api_calls + 1
`
	default: // sqlite, postgres
		query = s.rebind(`
INSERT INTO usage_metrics (workspace_id, day, provider, api_calls) VALUES (?, ?, ?, 1)
ON CONFLICT (workspace_id, day, provider) DO UPDATE SET api_calls = usage_metrics.api_calls + 1
`)
	}
	if _, err := s.db.ExecContext(ctx, query, workspaceID, date, provider); err != nil {
		return fmt.Errorf("failed to increment daily metric: %w", err)
	}
	return nil
}

func (s *SQLStore) GetDailyMetric(ctx context.Context, workspaceID, date, provider string) (int64, error) {
	query := s.rebind(`SELECT api_calls FROM usage_metrics WHERE workspace_id = ? AND day = ? AND provider = ?`)
	var calls int64
	err := s.db.QueryRowContext(ctx, query, workspaceID, date, provider).Scan(&calls)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query daily metric: %w", err)
	}
	return calls, nil
}

// ============================================================================
// MESSAGING
// ============================================================================

func (s *SQLStore) RegisterChat(ctx context.Context, c *TelegramChat) (string, error) {
	existing, err := s.GetChatByTelegramID(ctx, c.ChatID)
	if err == nil {
		return existing.ID, nil
	}
	if err != ErrNotFound {
		return "", err
	}

	c.ID = uuid.NewString()
	if c.Status == "" {
		c.Status = "active"
	}
	c.LastSeen = time.Now().UTC()

	query := s.rebind(`
INSERT INTO telegram_chats (id, workspace_id, chat_id, type, title, username, status, last_seen)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	_, err = s.db.ExecContext(ctx, query, c.ID, c.WorkspaceID, c.ChatID, c.Type, c.Title, c.Username, c.Status, c.LastSeen)
	if err != nil {
		return "", fmt.Errorf("failed to insert telegram chat: %w", err)
	}
	return c.ID, nil
}

func (s *SQLStore) GetChatByTelegramID(ctx context.Context, chatID int64) (*TelegramChat, error) {
	query := s.rebind(`
SELECT id, workspace_id, chat_id, type, title, username, status, last_seen
FROM telegram_chats WHERE chat_id = ?
`)
	var c TelegramChat
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(&c.ID, &c.WorkspaceID, &c.ChatID, &c.Type, &c.Title, &c.Username, &c.Status, &c.LastSeen)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan telegram chat: %w", err)
	}
	return &c, nil
}

func (s *SQLStore) GetWorkspaceChatID(ctx context.Context, workspaceID string) (int64, error) {
	query := s.rebind(`
SELECT chat_id FROM telegram_chats WHERE workspace_id = ?
ORDER BY last_seen DESC LIMIT 1
`)
	var chatID int64
	err := s.db.QueryRowContext(ctx, query, workspaceID).Scan(&chatID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query workspace chat: %w", err)
	}
	return chatID, nil
}
