package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdhq/crewd/pkg/store"
)

// recordingNotifier captures outgoing chat notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	chatIDs  []int64
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.chatIDs = append(n.chatIDs, chatID)
	n.messages = append(n.messages, text)
	return nil
}

type coordinatorFixture struct {
	*runtimeFixture
	notifier *recordingNotifier
	writerID string
	devID    string
}

// newCoordinatorFixture provisions a coordinator plus two specialists
// in one workspace.
func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	notifier := &recordingNotifier{}
	f := &coordinatorFixture{notifier: notifier}
	f.runtimeFixture = newRuntimeFixture(t, NewCoordinator(notifier, nil))

	ctx := context.Background()
	writer := &store.Agent{WorkspaceID: "ws-1", Name: "Wren", Role: store.RoleContentWriter, State: store.StateSleeping}
	var err error
	f.writerID, err = f.st.CreateAgent(ctx, writer)
	require.NoError(t, err)

	dev := &store.Agent{WorkspaceID: "ws-1", Name: "Dex", Role: store.RoleDeveloper, State: store.StateSleeping}
	f.devID, err = f.st.CreateAgent(ctx, dev)
	require.NoError(t, err)

	return f
}

func (f *coordinatorFixture) createInboxTask(t *testing.T, title string) *store.Task {
	t.Helper()
	task := &store.Task{WorkspaceID: "ws-1", Title: title, Description: "details for " + title}
	_, err := f.st.CreateTask(context.Background(), task)
	require.NoError(t, err)
	return task
}

func decisionJSON(agentID string) string {
	return fmt.Sprintf(`{"analysis": "best fit", "assignedToId": %q, "confidence": 0.9}`, agentID)
}

func TestCoordinatorAssignsInboxTask(t *testing.T) {
	f := newCoordinatorFixture(t)
	task := f.createInboxTask(t, "Write launch post")
	f.gateway.responses = []string{decisionJSON(f.writerID)}

	f.rt.Wake(context.Background())

	assert.Equal(t, store.StateSleeping, f.rt.State())

	got, err := f.st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusAssigned, got.Status)
	assert.Equal(t, f.writerID, got.AssignedTo)
	assert.Equal(t, int64(2), got.Version)

	history, err := f.st.ListTaskHistory(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, store.TaskStatusInbox, history[0].OldStatus)
	assert.Equal(t, store.TaskStatusAssigned, history[0].NewStatus)
	assert.Equal(t, f.rt.Agent().ID, history[0].ChangedBy)
}

func TestCoordinatorPromptContainsTaskAndRoster(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.createInboxTask(t, "Audit keywords")
	f.gateway.responses = []string{decisionJSON(f.writerID)}

	f.rt.Wake(context.Background())

	require.Len(t, f.gateway.prompts, 1)
	messages := f.gateway.prompts[0]
	require.Len(t, messages, 2)
	assert.Equal(t, "You are the Main Coordinator. Return JSON only.", messages[0].Content)

	prompt := messages[1].Content
	assert.Contains(t, prompt, "Title: Audit keywords")
	assert.Contains(t, prompt, fmt.Sprintf("- Wren (content-writer) [ID: %s]", f.writerID))
	assert.Contains(t, prompt, fmt.Sprintf("- Dex (developer) [ID: %s]", f.devID))
	assert.Contains(t, prompt, "Return strictly valid JSON")
}

func TestCoordinatorStripsCodeFences(t *testing.T) {
	f := newCoordinatorFixture(t)
	task := f.createInboxTask(t, "Fix login bug")
	f.gateway.responses = []string{"```json\n" + decisionJSON(f.devID) + "\n```"}

	f.rt.Wake(context.Background())

	got, err := f.st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, f.devID, got.AssignedTo)
}

func TestCoordinatorUnparsableDecisionLeavesTaskInInbox(t *testing.T) {
	f := newCoordinatorFixture(t)
	task := f.createInboxTask(t, "Mystery task")
	f.gateway.responses = []string{"I think Wren should take this one."}

	f.rt.Wake(context.Background())

	// A routing failure is logged and skipped; the agent itself stays
	// healthy.
	assert.Equal(t, store.StateSleeping, f.rt.State())

	got, err := f.st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusInbox, got.Status)
	assert.Equal(t, int64(1), got.Version)

	history, err := f.st.ListTaskHistory(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.Contains(t, f.dailyLog(t), "Failed to assign task")
}

func TestCoordinatorEmptyAgentIDLeavesTaskInInbox(t *testing.T) {
	f := newCoordinatorFixture(t)
	task := f.createInboxTask(t, "Vague request")
	f.gateway.responses = []string{`{"analysis": "unclear", "assignedToId": "", "confidence": 0.2}`}

	f.rt.Wake(context.Background())

	got, err := f.st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusInbox, got.Status)
}

func TestCoordinatorProcessesWholeBatch(t *testing.T) {
	f := newCoordinatorFixture(t)
	first := f.createInboxTask(t, "First task")
	second := f.createInboxTask(t, "Second task")

	// The first decision is garbage; the second must still be applied.
	f.gateway.responses = []string{"not json", decisionJSON(f.devID)}

	f.rt.Wake(context.Background())

	assert.Equal(t, store.StateSleeping, f.rt.State())

	got, err := f.st.GetTask(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusInbox, got.Status)

	got, err = f.st.GetTask(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusAssigned, got.Status)
	assert.Equal(t, f.devID, got.AssignedTo)
}

func TestCoordinatorVersionConflictSkipsTask(t *testing.T) {
	f := newCoordinatorFixture(t)
	task := f.createInboxTask(t, "Contested task")
	f.gateway.responses = []string{decisionJSON(f.writerID)}

	coordinator := NewCoordinator(nil, nil)

	// Someone else assigned the task between the inbox read and the
	// AI decision.
	stale := *task
	require.NoError(t, f.st.AssignTask(context.Background(), task.ID, f.devID, "other", task.Version))

	err := coordinator.handleInboxTask(context.Background(), f.rt, &stale)
	assert.Error(t, err)

	got, err := f.st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, f.devID, got.AssignedTo, "the earlier assignment must stand")
	assert.Equal(t, int64(2), got.Version)
}

func TestCoordinatorNotifiesWorkspaceChat(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.createInboxTask(t, "Write launch post")
	f.gateway.responses = []string{decisionJSON(f.writerID)}

	_, err := f.st.RegisterChat(context.Background(), &store.TelegramChat{
		WorkspaceID: "ws-1",
		ChatID:      4242,
		Type:        "group",
	})
	require.NoError(t, err)

	f.rt.Wake(context.Background())

	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, int64(4242), f.notifier.chatIDs[0])
	assert.Contains(t, f.notifier.messages[0], "Task Assigned")
	assert.Contains(t, f.notifier.messages[0], "Write launch post")
}

func TestCoordinatorNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newCoordinatorFixture(t)
	task := f.createInboxTask(t, "Write launch post")
	f.gateway.responses = []string{decisionJSON(f.writerID)}
	f.notifier.err = fmt.Errorf("telegram unreachable")

	_, err := f.st.RegisterChat(context.Background(), &store.TelegramChat{
		WorkspaceID: "ws-1", ChatID: 4242, Type: "group",
	})
	require.NoError(t, err)

	f.rt.Wake(context.Background())

	got, err := f.st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusAssigned, got.Status)
	assert.Equal(t, store.StateSleeping, f.rt.State())
}

func TestCoordinatorNoChatRegisteredIsQuiet(t *testing.T) {
	f := newCoordinatorFixture(t)
	task := f.createInboxTask(t, "Write launch post")
	f.gateway.responses = []string{decisionJSON(f.writerID)}

	f.rt.Wake(context.Background())

	assert.Empty(t, f.notifier.messages)

	got, err := f.st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusAssigned, got.Status)
}

func TestCoordinatorCheckForWork(t *testing.T) {
	f := newCoordinatorFixture(t)
	coordinator := NewCoordinator(nil, nil)

	hasWork, err := coordinator.CheckForWork(context.Background(), f.rt)
	require.NoError(t, err)
	assert.False(t, hasWork)

	f.createInboxTask(t, "Anything")

	hasWork, err = coordinator.CheckForWork(context.Background(), f.rt)
	require.NoError(t, err)
	assert.True(t, hasWork)
	assert.Contains(t, f.dailyLog(t), "Found 1 tasks in inbox")
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFences(tt.in))
	}
}
