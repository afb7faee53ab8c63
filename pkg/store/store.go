// Package store defines the persisted workspace store: tasks, agents,
// credentials and usage accounting. Every call is atomic and strongly
// consistent within a single workspace; cross-call transactions are not
// offered, callers tolerate partial failure between calls.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrVersionConflict is returned when a compare-and-swap mutation
	// observes a version other than the one the caller read.
	ErrVersionConflict = errors.New("store: task version conflict")
)

// Store is the persisted store contract. It replaces the generated
// client shim of earlier iterations with an explicit interface so the
// runtime is decoupled from any particular backing database.
type Store interface {
	// Tasks. CreateTask assigns the ID, sets status inbox and version 1.
	CreateTask(ctx context.Context, t *Task) (string, error)
	GetTask(ctx context.Context, taskID string) (*Task, error)
	ListTasks(ctx context.Context, workspaceID string, status TaskStatus) ([]*Task, error)

	// AssignTask commits an assignment: sets assignedTo, moves the task
	// to assigned, increments version and appends one history record.
	// The mutation is conditional on expectedVersion; a concurrent
	// writer causes ErrVersionConflict and no change.
	AssignTask(ctx context.Context, taskID, agentID, assignedBy string, expectedVersion int64) error

	// UpdateTaskStatus transitions a task with the same version and
	// history bookkeeping as AssignTask.
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, changedBy string, expectedVersion int64) error
	ListTaskHistory(ctx context.Context, taskID string) ([]*TaskHistory, error)

	// Agents.
	CreateAgent(ctx context.Context, a *Agent) (string, error)
	GetAgent(ctx context.Context, agentID string) (*Agent, error)
	ListAgents(ctx context.Context, workspaceID string) ([]*Agent, error)
	UpdateAgentState(ctx context.Context, agentID string, state AgentState) error

	// Workspaces.
	CreateWorkspace(ctx context.Context, w *Workspace) (string, error)
	GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]*Workspace, error)

	// Credentials. GetActiveCredentials returns active keys in stable
	// creation order, oldest first.
	SaveCredential(ctx context.Context, c *Credential) (string, error)
	GetActiveCredentials(ctx context.Context, workspaceID string) ([]*Credential, error)

	// Usage accounting.
	RecordUsage(ctx context.Context, u *UsageRecord) error
	IncrementDailyMetric(ctx context.Context, workspaceID, date, provider string) error
	GetDailyMetric(ctx context.Context, workspaceID, date, provider string) (int64, error)

	// Messaging.
	RegisterChat(ctx context.Context, c *TelegramChat) (string, error)
	GetChatByTelegramID(ctx context.Context, chatID int64) (*TelegramChat, error)
	GetWorkspaceChatID(ctx context.Context, workspaceID string) (int64, error)

	Close() error
}
