// Package memory is the per-agent durable memory store.
//
// Each agent owns a directory of markdown sections under
// <base>/<workspaceID>/<agentID>/: WORKING.md (scratch state,
// overwritten wholesale), LONG_TERM_MEMORY.md and DAILY_LOG.md
// (append-only), CONTEXT.md (static workspace context) and
// logs/<date>.md (per-day activity). Isolation between agents is
// structural: distinct directories, no cross-agent access.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	workingFile  = "WORKING.md"
	longTermFile = "LONG_TERM_MEMORY.md"
	contextFile  = "CONTEXT.md"
	dailyLogFile = "DAILY_LOG.md"
	logsDir      = "logs"
)

// WorkingMemory is the agent's scratch state. It is overwritten
// wholesale on each write; there is no merge.
type WorkingMemory struct {
	CurrentTask string
	Status      string
	NextSteps   []string
	BlockedOn   []string
	LastUpdate  time.Time
}

// Store reads and writes one agent's memory sections.
type Store struct {
	baseDir string
	now     func() time.Time
}

// NewStore creates the memory store for one (workspace, agent) pair and
// ensures its directories exist.
func NewStore(baseDir, workspaceID, agentID string) (*Store, error) {
	dir := filepath.Join(baseDir, workspaceID, agentID)
	if err := os.MkdirAll(filepath.Join(dir, logsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directories: %w", err)
	}
	return &Store{baseDir: dir, now: time.Now}, nil
}

// ============================================================================
// WORKING MEMORY
// ============================================================================

// ReadWorkingMemory returns the current scratch state, or nil when the
// section has never been written. Absence is not a fault.
func (s *Store) ReadWorkingMemory() (*WorkingMemory, error) {
	content, err := s.readFile(workingFile)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}
	return parseWorkingMemory(content), nil
}

// WriteWorkingMemory overwrites the working-memory section with a
// deterministic markdown encoding of m.
func (s *Store) WriteWorkingMemory(m *WorkingMemory) error {
	return s.writeFile(workingFile, formatWorkingMemory(m))
}

// ============================================================================
// LONG-TERM MEMORY, CONTEXT AND DAILY LOG
// ============================================================================

// ReadLongTermMemory returns the long-term notes, empty when never
// written.
func (s *Store) ReadLongTermMemory() (string, error) {
	return s.readFile(longTermFile)
}

// AppendLongTermMemory appends a timestamped entry. No append ever
// truncates the section.
func (s *Store) AppendLongTermMemory(entry string) error {
	timestamp := s.now().UTC().Format(time.RFC3339)
	return s.appendFile(longTermFile, fmt.Sprintf("\n\n### [%s]\n%s", timestamp, entry))
}

// ReadContext returns the workspace's static context document, empty
// when never written.
func (s *Store) ReadContext() (string, error) {
	return s.readFile(contextFile)
}

// LogDailyActivity appends a timestamped entry to the day's log and to
// DAILY_LOG.md for quick access.
func (s *Store) LogDailyActivity(entry string) error {
	now := s.now().UTC()
	formatted := fmt.Sprintf("\n- **%s**: %s", now.Format("15:04:05"), entry)

	dayFile := filepath.Join(logsDir, now.Format("2006-01-02")+".md")
	if err := s.appendFile(dayFile, formatted); err != nil {
		return err
	}
	return s.appendFile(dailyLogFile, formatted)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Store) readFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

func (s *Store) writeFile(name, content string) error {
	if err := os.WriteFile(filepath.Join(s.baseDir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *Store) appendFile(name, content string) error {
	f, err := os.OpenFile(filepath.Join(s.baseDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to append to %s: %w", name, err)
	}
	return nil
}

// formatWorkingMemory renders the deterministic encoding: task line,
// status line, ordered next-steps list, optional blocked-on list and
// the last-update timestamp.
func formatWorkingMemory(m *WorkingMemory) string {
	var b strings.Builder

	b.WriteString("# Current Task\n")
	if m.CurrentTask != "" {
		b.WriteString(m.CurrentTask)
	} else {
		b.WriteString("None")
	}

	b.WriteString("\n\n## Status\n")
	if m.Status != "" {
		b.WriteString(m.Status)
	} else {
		b.WriteString("Idle")
	}

	b.WriteString("\n\n## Next Steps\n")
	for _, step := range m.NextSteps {
		b.WriteString("- " + step + "\n")
	}

	b.WriteString("\n## Blocked On\n")
	if len(m.BlockedOn) == 0 {
		b.WriteString("None\n")
	} else {
		for _, item := range m.BlockedOn {
			b.WriteString("- " + item + "\n")
		}
	}

	b.WriteString("\n## Last Update\n")
	b.WriteString(m.LastUpdate.UTC().Format(time.RFC3339Nano))
	b.WriteString("\n")

	return b.String()
}

// parseWorkingMemory inverts formatWorkingMemory. Free-form lines that
// don't match the expected section markers or list prefixes are
// silently dropped; that is a documented property of the format, not a
// hidden one.
func parseWorkingMemory(content string) *WorkingMemory {
	m := &WorkingMemory{}

	section := ""
	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "# Current Task"):
			section = "task"
			continue
		case strings.HasPrefix(line, "## Status"):
			section = "status"
			continue
		case strings.HasPrefix(line, "## Next Steps"):
			section = "steps"
			continue
		case strings.HasPrefix(line, "## Blocked On"):
			section = "blocked"
			continue
		case strings.HasPrefix(line, "## Last Update"):
			section = "update"
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch section {
		case "task":
			if m.CurrentTask == "" && trimmed != "None" {
				m.CurrentTask = trimmed
			}
		case "status":
			if m.Status == "" {
				m.Status = trimmed
			}
		case "steps":
			if strings.HasPrefix(trimmed, "- ") {
				m.NextSteps = append(m.NextSteps, strings.TrimPrefix(trimmed, "- "))
			}
		case "blocked":
			if strings.HasPrefix(trimmed, "- ") {
				m.BlockedOn = append(m.BlockedOn, strings.TrimPrefix(trimmed, "- "))
			}
		case "update":
			if m.LastUpdate.IsZero() {
				if ts, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
					m.LastUpdate = ts
				}
			}
		}
	}
	return m
}
