package store

import "time"

// ============================================================================
// DOMAIN RECORDS
// ============================================================================

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskStatusInbox      TaskStatus = "inbox"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

// TaskPriority orders tasks by urgency.
type TaskPriority string

const (
	TaskPriorityUrgent TaskPriority = "urgent"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityLow    TaskPriority = "low"
)

// Task is a unit of work routed between agents. Version strictly
// increases with every committed mutation; a task is unassigned and
// actionable iff Status == TaskStatusInbox.
type Task struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	AssignedTo  string // agent ID, empty when unassigned
	CreatedBy   string // agent ID
	Version     int64
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskHistory is one audit record per status transition.
type TaskHistory struct {
	ID          string
	WorkspaceID string
	TaskID      string
	OldStatus   TaskStatus
	NewStatus   TaskStatus
	ChangedBy   string
	ChangedAt   time.Time
}

// AgentState is the runtime lifecycle state of an agent.
type AgentState string

const (
	StateSleeping AgentState = "SLEEPING" // idle, waiting for next heartbeat
	StateWaking   AgentState = "WAKING"   // checking for work
	StateActive   AgentState = "ACTIVE"   // currently executing
	StateWaiting  AgentState = "WAITING"  // reserved: blocked on external response
	StateOffline  AgentState = "OFFLINE"  // disabled or error state
)

// AgentRole is the closed set of agent specialties.
type AgentRole string

const (
	RoleMainCoordinator         AgentRole = "main-coordinator"
	RoleSEOSpecialist           AgentRole = "seo-specialist"
	RoleContentWriter           AgentRole = "content-writer"
	RoleResearcher              AgentRole = "researcher"
	RoleSocialMediaManager      AgentRole = "social-media-manager"
	RoleDeveloper               AgentRole = "developer"
	RoleDesigner                AgentRole = "designer"
	RoleEmailMarketer           AgentRole = "email-marketer"
	RoleProductAnalyst          AgentRole = "product-analyst"
	RoleDocumentationSpecialist AgentRole = "documentation-specialist"
)

// AgentLevel governs autonomy. Currently advisory: the runtime does not
// enforce it.
type AgentLevel string

const (
	LevelIntern     AgentLevel = "INTERN"
	LevelSpecialist AgentLevel = "SPECIALIST"
	LevelLead       AgentLevel = "LEAD"
)

// AgentConfig holds per-agent generation settings. Model and
// SystemPrompt override workspace defaults when non-empty.
type AgentConfig struct {
	Temperature  float64
	MaxTokens    int
	Model        string
	SystemPrompt string
}

// Agent is a provisioned digital employee. Created once per workspace;
// state and LastWake are mutated only by its own runtime, config by an
// external admin path.
type Agent struct {
	ID           string
	WorkspaceID  string
	Name         string
	Role         AgentRole
	Level        AgentLevel
	State        AgentState
	Config       AgentConfig
	WakeInterval time.Duration
	LastWake     time.Time
}

// Workspace is the tenant boundary. All agents, tasks and credentials
// are scoped to exactly one workspace.
type Workspace struct {
	ID           string
	Name         string
	DefaultModel string
	CreatedAt    time.Time
}

// Credential is an encrypted per-workspace per-provider API key.
// Exactly one key set is expected active per provider per workspace;
// when multiple are active the oldest wins (stable creation order).
type Credential struct {
	ID            string
	WorkspaceID   string
	Provider      string
	EncryptedKey  string
	IsActive      bool
	LastValidated time.Time
	CreatedAt     time.Time
}

// UsageRecord is one append-only audit row per AI call.
type UsageRecord struct {
	ID          string
	WorkspaceID string
	AgentID     string
	Provider    string
	Model       string
	Tokens      int
	Cost        float64
	CreatedAt   time.Time
}

// TelegramChat links an external chat to a workspace.
type TelegramChat struct {
	ID          string
	WorkspaceID string
	ChatID      int64
	Type        string // private, group or channel
	Title       string
	Username    string
	Status      string // active or blocked
	LastSeen    time.Time
}
