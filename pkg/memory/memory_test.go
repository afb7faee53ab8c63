package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "ws-1", "agent-1")
	require.NoError(t, err)
	return s
}

func TestNewStoreCreatesDirectories(t *testing.T) {
	base := t.TempDir()
	_, err := NewStore(base, "ws-1", "agent-1")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(base, "ws-1", "agent-1", "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWorkingMemoryRoundTrip(t *testing.T) {
	s := newTestStore(t)

	want := &WorkingMemory{
		CurrentTask: "Review PR #42",
		Status:      "In progress",
		NextSteps:   []string{"read the diff", "leave comments"},
		BlockedOn:   []string{"waiting on CI"},
		LastUpdate:  time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
	}
	require.NoError(t, s.WriteWorkingMemory(want))

	got, err := s.ReadWorkingMemory()
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.CurrentTask, got.CurrentTask)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.NextSteps, got.NextSteps)
	assert.Equal(t, want.BlockedOn, got.BlockedOn)
	assert.True(t, want.LastUpdate.Equal(got.LastUpdate))
}

func TestWorkingMemoryEmptyFields(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteWorkingMemory(&WorkingMemory{LastUpdate: time.Now()}))

	got, err := s.ReadWorkingMemory()
	require.NoError(t, err)
	require.NotNil(t, got)

	// "None" decodes back to empty; the idle status keeps its literal.
	assert.Empty(t, got.CurrentTask)
	assert.Equal(t, "Idle", got.Status)
	assert.Empty(t, got.NextSteps)
	assert.Empty(t, got.BlockedOn)
}

func TestReadWorkingMemoryAbsent(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ReadWorkingMemory()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWriteWorkingMemoryOverwrites(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteWorkingMemory(&WorkingMemory{
		CurrentTask: "first",
		NextSteps:   []string{"a", "b", "c"},
		LastUpdate:  time.Now(),
	}))
	require.NoError(t, s.WriteWorkingMemory(&WorkingMemory{
		CurrentTask: "second",
		LastUpdate:  time.Now(),
	}))

	got, err := s.ReadWorkingMemory()
	require.NoError(t, err)
	assert.Equal(t, "second", got.CurrentTask)
	assert.Empty(t, got.NextSteps)
}

func TestAppendLongTermMemory(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC) }

	require.NoError(t, s.AppendLongTermMemory("learned the deploy process"))
	require.NoError(t, s.AppendLongTermMemory("met the new teammate"))

	content, err := s.ReadLongTermMemory()
	require.NoError(t, err)

	assert.Contains(t, content, "### [2026-01-02T10:30:00Z]\nlearned the deploy process")
	assert.Contains(t, content, "met the new teammate")
	assert.Less(t,
		strings.Index(content, "learned the deploy process"),
		strings.Index(content, "met the new teammate"),
		"entries must stay in append order")
}

func TestLogDailyActivity(t *testing.T) {
	base := t.TempDir()
	s, err := NewStore(base, "ws-1", "agent-1")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 10, 30, 45, 0, time.UTC) }

	require.NoError(t, s.LogDailyActivity("Waking up"))

	dayLog, err := os.ReadFile(filepath.Join(base, "ws-1", "agent-1", "logs", "2026-01-02.md"))
	require.NoError(t, err)
	assert.Contains(t, string(dayLog), "- **10:30:45**: Waking up")

	combined, err := os.ReadFile(filepath.Join(base, "ws-1", "agent-1", "DAILY_LOG.md"))
	require.NoError(t, err)
	assert.Contains(t, string(combined), "- **10:30:45**: Waking up")
}

func TestReadContextAbsent(t *testing.T) {
	s := newTestStore(t)

	content, err := s.ReadContext()
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestAgentIsolation(t *testing.T) {
	base := t.TempDir()

	a, err := NewStore(base, "ws-1", "agent-a")
	require.NoError(t, err)
	b, err := NewStore(base, "ws-1", "agent-b")
	require.NoError(t, err)

	require.NoError(t, a.AppendLongTermMemory("private note"))

	content, err := b.ReadLongTermMemory()
	require.NoError(t, err)
	assert.Empty(t, content)
}
