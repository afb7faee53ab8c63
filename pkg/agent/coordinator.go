package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/crewdhq/crewd/pkg/llms"
	"github.com/crewdhq/crewd/pkg/metrics"
	"github.com/crewdhq/crewd/pkg/notify"
	"github.com/crewdhq/crewd/pkg/store"
)

// Coordinator is the task-routing role: it inspects the workspace's
// inbox, asks the AI to pick an owner for each task and commits the
// assignment.
type Coordinator struct {
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

// NewCoordinator creates the coordinator role. notifier and metrics may
// be nil.
func NewCoordinator(notifier notify.Notifier, m *metrics.Metrics) *Coordinator {
	return &Coordinator{notifier: notifier, metrics: m}
}

// assignmentDecision is the strict JSON shape the model must return.
type assignmentDecision struct {
	Analysis     string  `json:"analysis"`
	AssignedToID string  `json:"assignedToId"`
	Confidence   float64 `json:"confidence"`
}

// CheckForWork reports true iff at least one task sits in the inbox.
func (c *Coordinator) CheckForWork(ctx context.Context, rt *Runtime) (bool, error) {
	tasks, err := rt.Store().ListTasks(ctx, rt.Agent().WorkspaceID, store.TaskStatusInbox)
	if err != nil {
		return false, err
	}
	if len(tasks) == 0 {
		return false, nil
	}
	rt.LogActivity(ctx, fmt.Sprintf("Found %d tasks in inbox", len(tasks)))
	return true, nil
}

// ProcessWork runs the assignment protocol for every inbox task,
// sequentially. A failure on one task is logged and skipped; it never
// aborts the batch or changes the runtime's overall state.
func (c *Coordinator) ProcessWork(ctx context.Context, rt *Runtime) error {
	tasks, err := rt.Store().ListTasks(ctx, rt.Agent().WorkspaceID, store.TaskStatusInbox)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if err := c.handleInboxTask(ctx, rt, task); err != nil {
			rt.LogActivity(ctx, fmt.Sprintf("Failed to assign task %q: %v", task.Title, err))
			c.metrics.ObserveTaskRouted(task.WorkspaceID, "skipped")
			continue
		}
		c.metrics.ObserveTaskRouted(task.WorkspaceID, "assigned")
	}
	return nil
}

func (c *Coordinator) handleInboxTask(ctx context.Context, rt *Runtime, task *store.Task) error {
	rt.LogActivity(ctx, fmt.Sprintf("Processing task (INBOX): %s", task.Title))

	agents, err := rt.Store().ListAgents(ctx, task.WorkspaceID)
	if err != nil {
		return fmt.Errorf("failed to load agents: %w", err)
	}

	prompt := buildAssignmentPrompt(task, agents)
	response, err := rt.CallAI(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: "You are the Main Coordinator. Return JSON only."},
		{Role: llms.RoleUser, Content: prompt},
	})
	if err != nil {
		return err
	}

	var decision assignmentDecision
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &decision); err != nil {
		return fmt.Errorf("failed to parse AI decision: %w", err)
	}
	if decision.AssignedToID == "" {
		return errors.New("AI did not return a valid agent ID")
	}

	rt.LogActivity(ctx, fmt.Sprintf("AI Decision: Assigned to %s (%s)", decision.AssignedToID, decision.Analysis))

	// Conditional on the version read with the task: a concurrent
	// assignment leaves this task untouched and skips it.
	err = rt.Store().AssignTask(ctx, task.ID, decision.AssignedToID, rt.Agent().ID, task.Version)
	if err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}

	c.notifyRequester(ctx, rt, task, &decision)
	return nil
}

// buildAssignmentPrompt renders the deterministic assignment prompt:
// the task's title, description and priority plus a stable-ordered
// roster of the workspace's agents.
func buildAssignmentPrompt(task *store.Task, agents []*store.Agent) string {
	roster := make([]string, 0, len(agents))
	for _, a := range agents {
		roster = append(roster, fmt.Sprintf("- %s (%s) [ID: %s]", a.Name, a.Role, a.ID))
	}

	priority := task.Priority
	if priority == "" {
		priority = store.TaskPriorityNormal
	}

	return fmt.Sprintf(`You are the Main Coordinator of an AI Agency.
Your goal is to assign the following task to the most suitable agent.

TASK:
Title: %s
Description: %s
Priority: %s

AVAILABLE AGENTS:
%s

- If the task is clear, assign it to the most relevant agent.
- If the task is vague, assign it to yourself (Coordinator) to ask clarifying questions.
- Return strictly valid JSON.

Response Format:
{
    "analysis": "Brief reasoning...",
    "assignedToId": "Agent ID from the list",
    "confidence": 0-1
}`, task.Title, task.Description, priority, strings.Join(roster, "\n"))
}

// notifyRequester tells the workspace's chat about the assignment.
// Failures are logged and swallowed; the assignment is already
// committed and never rolls back over a missed notification.
func (c *Coordinator) notifyRequester(ctx context.Context, rt *Runtime, task *store.Task, decision *assignmentDecision) {
	if c.notifier == nil {
		return
	}

	chatID, err := rt.Store().GetWorkspaceChatID(ctx, task.WorkspaceID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			rt.LogActivity(ctx, fmt.Sprintf("Failed to resolve workspace chat: %v", err))
		}
		return
	}

	text := fmt.Sprintf("✅ *Task Assigned*\n\nTask: _%s_\nAssigned To: *%s* (by Main Coordinator)\n\nReasoning: %s",
		task.Title, decision.AssignedToID, decision.Analysis)
	if err := c.notifier.Notify(ctx, chatID, text); err != nil {
		rt.LogActivity(ctx, fmt.Sprintf("Failed to notify requester: %v", err))
	}
}

// stripCodeFences removes Markdown code-fence wrappers some models put
// around JSON.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
