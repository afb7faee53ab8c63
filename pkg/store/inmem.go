package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemory is a Store backed by process memory. It is used in tests and
// for single-process development setups; every method is atomic under
// one mutex, matching the contract's per-call atomicity.
type InMemory struct {
	mu          sync.Mutex
	tasks       map[string]*Task
	history     map[string][]*TaskHistory // by task ID
	agents      map[string]*Agent
	workspaces  map[string]*Workspace
	credentials map[string]*Credential
	usage       []*UsageRecord
	metrics     map[string]int64 // workspaceID|day|provider
	chats       map[string]*TelegramChat
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		tasks:       make(map[string]*Task),
		history:     make(map[string][]*TaskHistory),
		agents:      make(map[string]*Agent),
		workspaces:  make(map[string]*Workspace),
		credentials: make(map[string]*Credential),
		metrics:     make(map[string]int64),
		chats:       make(map[string]*TelegramChat),
	}
}

func (s *InMemory) CreateTask(_ context.Context, t *Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	cp.ID = uuid.NewString()
	cp.Status = TaskStatusInbox
	cp.Version = 1
	if cp.Priority == "" {
		cp.Priority = TaskPriorityNormal
	}
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.tasks[cp.ID] = &cp
	*t = cp
	return cp.ID, nil
}

func (s *InMemory) GetTask(_ context.Context, taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemory) ListTasks(_ context.Context, workspaceID string, status TaskStatus) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*Task
	for _, t := range s.tasks {
		if t.WorkspaceID == workspaceID && t.Status == status {
			cp := *t
			tasks = append(tasks, &cp)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

func (s *InMemory) AssignTask(_ context.Context, taskID, agentID, assignedBy string, expectedVersion int64) error {
	return s.transition(taskID, TaskStatusAssigned, agentID, assignedBy, expectedVersion)
}

func (s *InMemory) UpdateTaskStatus(_ context.Context, taskID string, status TaskStatus, changedBy string, expectedVersion int64) error {
	return s.transition(taskID, status, "", changedBy, expectedVersion)
}

func (s *InMemory) transition(taskID string, status TaskStatus, assignee, changedBy string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	if t.Version != expectedVersion {
		return ErrVersionConflict
	}

	old := t.Status
	t.Status = status
	if assignee != "" {
		t.AssignedTo = assignee
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()

	s.history[taskID] = append(s.history[taskID], &TaskHistory{
		ID:          uuid.NewString(),
		WorkspaceID: t.WorkspaceID,
		TaskID:      taskID,
		OldStatus:   old,
		NewStatus:   status,
		ChangedBy:   changedBy,
		ChangedAt:   t.UpdatedAt,
	})
	return nil
}

func (s *InMemory) ListTaskHistory(_ context.Context, taskID string) ([]*TaskHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]*TaskHistory, 0, len(s.history[taskID]))
	for _, h := range s.history[taskID] {
		cp := *h
		history = append(history, &cp)
	}
	return history, nil
}

func (s *InMemory) CreateAgent(_ context.Context, a *Agent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	cp.ID = uuid.NewString()
	if cp.State == "" {
		cp.State = StateSleeping
	}
	if cp.WakeInterval == 0 {
		cp.WakeInterval = 15 * time.Minute
	}
	cp.LastWake = time.Now().UTC()
	s.agents[cp.ID] = &cp
	*a = cp
	return cp.ID, nil
}

func (s *InMemory) GetAgent(_ context.Context, agentID string) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemory) ListAgents(_ context.Context, workspaceID string) ([]*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []*Agent
	for _, a := range s.agents {
		if a.WorkspaceID == workspaceID {
			cp := *a
			agents = append(agents, &cp)
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

func (s *InMemory) UpdateAgentState(_ context.Context, agentID string, state AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return ErrNotFound
	}
	a.State = state
	a.LastWake = time.Now().UTC()
	return nil
}

func (s *InMemory) CreateWorkspace(_ context.Context, w *Workspace) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now().UTC()
	s.workspaces[cp.ID] = &cp
	*w = cp
	return cp.ID, nil
}

func (s *InMemory) GetWorkspace(_ context.Context, workspaceID string) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workspaces[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *InMemory) ListWorkspaces(_ context.Context) ([]*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var workspaces []*Workspace
	for _, w := range s.workspaces {
		cp := *w
		workspaces = append(workspaces, &cp)
	}
	sort.Slice(workspaces, func(i, j int) bool { return workspaces[i].CreatedAt.Before(workspaces[j].CreatedAt) })
	return workspaces, nil
}

func (s *InMemory) SaveCredential(_ context.Context, c *Credential) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now().UTC()
	if cp.LastValidated.IsZero() {
		cp.LastValidated = cp.CreatedAt
	}
	s.credentials[cp.ID] = &cp
	*c = cp
	return cp.ID, nil
}

func (s *InMemory) GetActiveCredentials(_ context.Context, workspaceID string) ([]*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var creds []*Credential
	for _, c := range s.credentials {
		if c.WorkspaceID == workspaceID && c.IsActive {
			cp := *c
			creds = append(creds, &cp)
		}
	}
	sort.Slice(creds, func(i, j int) bool {
		if creds[i].CreatedAt.Equal(creds[j].CreatedAt) {
			return creds[i].ID < creds[j].ID
		}
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
	return creds, nil
}

func (s *InMemory) RecordUsage(_ context.Context, u *UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now().UTC()
	s.usage = append(s.usage, &cp)
	return nil
}

// UsageRecords returns a copy of all recorded usage rows, oldest first.
func (s *InMemory) UsageRecords() []*UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*UsageRecord, 0, len(s.usage))
	for _, u := range s.usage {
		cp := *u
		out = append(out, &cp)
	}
	return out
}

func (s *InMemory) IncrementDailyMetric(_ context.Context, workspaceID, date, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics[workspaceID+"|"+date+"|"+provider]++
	return nil
}

func (s *InMemory) GetDailyMetric(_ context.Context, workspaceID, date, provider string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.metrics[workspaceID+"|"+date+"|"+provider], nil
}

func (s *InMemory) RegisterChat(_ context.Context, c *TelegramChat) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.chats {
		if existing.ChatID == c.ChatID {
			return existing.ID, nil
		}
	}

	cp := *c
	cp.ID = uuid.NewString()
	if cp.Status == "" {
		cp.Status = "active"
	}
	cp.LastSeen = time.Now().UTC()
	s.chats[cp.ID] = &cp
	*c = cp
	return cp.ID, nil
}

func (s *InMemory) GetChatByTelegramID(_ context.Context, chatID int64) (*TelegramChat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chats {
		if c.ChatID == chatID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) GetWorkspaceChatID(_ context.Context, workspaceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *TelegramChat
	for _, c := range s.chats {
		if c.WorkspaceID != workspaceID {
			continue
		}
		if best == nil || c.LastSeen.After(best.LastSeen) {
			best = c
		}
	}
	if best == nil {
		return 0, ErrNotFound
	}
	return best.ChatID, nil
}

func (s *InMemory) Close() error { return nil }
