// Package agent implements the per-agent lifecycle state machine and
// the concrete agent roles that plug into it.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/crewdhq/crewd/pkg/llms"
	"github.com/crewdhq/crewd/pkg/logger"
	"github.com/crewdhq/crewd/pkg/memory"
	"github.com/crewdhq/crewd/pkg/metrics"
	"github.com/crewdhq/crewd/pkg/store"
)

// Worker is the role strategy behind the state machine: the only two
// extension points a concrete role implements. The state machine itself
// is identical across roles.
type Worker interface {
	// CheckForWork reports whether the agent has anything actionable.
	CheckForWork(ctx context.Context, rt *Runtime) (bool, error)

	// ProcessWork performs the role's work for one wake cycle.
	ProcessWork(ctx context.Context, rt *Runtime) error
}

// AICaller is the slice of the provider gateway the runtime needs.
type AICaller interface {
	Call(ctx context.Context, workspaceID, agentID string, messages []llms.Message, opts llms.CallOptions) (*llms.Response, error)
}

// Runtime drives one agent's wake cycle. State transitions happen under
// an internal mutex, so overlapping scheduler triggers for the same
// agent serialize instead of racing on state.
type Runtime struct {
	mu    sync.Mutex
	state store.AgentState

	agent   *store.Agent
	store   store.Store
	gateway AICaller
	memory  *memory.Store
	worker  Worker
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewRuntime wires a runtime for one agent. metrics may be nil.
func NewRuntime(a *store.Agent, st store.Store, gateway AICaller, mem *memory.Store, worker Worker, m *metrics.Metrics) *Runtime {
	state := a.State
	if state == "" {
		state = store.StateSleeping
	}
	return &Runtime{
		state:   state,
		agent:   a,
		store:   st,
		gateway: gateway,
		memory:  mem,
		worker:  worker,
		metrics: m,
		log: logger.Get().With(
			"workspace", a.WorkspaceID,
			"agent", a.ID,
			"role", string(a.Role),
		),
	}
}

// State returns the current lifecycle state.
func (r *Runtime) State() store.AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Agent returns the agent record this runtime drives.
func (r *Runtime) Agent() *store.Agent { return r.agent }

// Store returns the persisted workspace store.
func (r *Runtime) Store() store.Store { return r.store }

// Memory returns the agent's memory store.
func (r *Runtime) Memory() *memory.Store { return r.memory }

// Wake runs one lifecycle cycle: SLEEPING -> WAKING -> (ACTIVE) ->
// SLEEPING, or OFFLINE on any failure. Calling it in any state other
// than SLEEPING is a logged no-op; OFFLINE is absorbing until an
// external operator resets the agent. Wake never returns an error:
// failures are a log-and-disable concern, not the scheduler's.
func (r *Runtime) Wake(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != store.StateSleeping {
		r.log.Warn("wake called outside SLEEPING, ignoring", "state", string(r.state))
		return
	}

	r.setState(ctx, store.StateWaking)
	r.logActivity(ctx, "Waking up")

	outcome := "idle"
	err := r.runCycle(ctx, &outcome)

	if err != nil {
		// A single failed cycle disables the agent until an operator
		// resets it: fail safe, not fail silent.
		r.log.Error("wake cycle failed, going offline", "error", err)
		r.setState(ctx, store.StateOffline)
		outcome = "failed"
	} else if r.state != store.StateOffline {
		r.setState(ctx, store.StateSleeping)
	}

	r.metrics.ObserveWakeCycle(r.agent.WorkspaceID, outcome)
}

// runCycle executes the two role hooks, converting panics into errors
// so the cleanup path always runs.
func (r *Runtime) runCycle(ctx context.Context, outcome *string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("wake cycle panic: %v", rec)
		}
	}()

	hasWork, err := r.worker.CheckForWork(ctx, r)
	if err != nil {
		return err
	}

	if !hasWork {
		r.logActivity(ctx, "HEARTBEAT_OK - No work found")
		return nil
	}

	r.setState(ctx, store.StateActive)
	*outcome = "work"
	return r.worker.ProcessWork(ctx, r)
}

// setState updates the in-memory state and mirrors it to the store.
// Persistence is best effort; the in-memory machine is authoritative
// within a cycle.
func (r *Runtime) setState(ctx context.Context, state store.AgentState) {
	r.state = state
	r.agent.State = state
	if err := r.store.UpdateAgentState(ctx, r.agent.ID, state); err != nil {
		r.log.Error("failed to persist agent state", "state", string(state), "error", err)
	}
}

// LoadContext assembles the agent's context blob: static workspace
// context, long-term memory and the working-memory snapshot, in that
// fixed order. Roles include it in AI prompts as needed; it is not
// passed anywhere automatically.
func (r *Runtime) LoadContext(ctx context.Context) (string, error) {
	_ = ctx

	projectContext, err := r.memory.ReadContext()
	if err != nil {
		return "", err
	}
	longTerm, err := r.memory.ReadLongTermMemory()
	if err != nil {
		return "", err
	}
	working, err := r.memory.ReadWorkingMemory()
	if err != nil {
		return "", err
	}

	status := "Idle"
	if working != nil {
		rendered, err := json.MarshalIndent(workingMemoryView(working), "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to render working memory: %w", err)
		}
		status = string(rendered)
	}

	return fmt.Sprintf(`
# PROJECT CONTEXT
%s

# LONG TERM MEMORY
%s

# CURRENT STATUS
%s
`, projectContext, longTerm, status), nil
}

// workingMemoryView gives the JSON rendering stable field names.
func workingMemoryView(m *memory.WorkingMemory) map[string]any {
	view := map[string]any{
		"currentTask": m.CurrentTask,
		"status":      m.Status,
		"nextSteps":   m.NextSteps,
		"lastUpdate":  m.LastUpdate,
	}
	if len(m.BlockedOn) > 0 {
		view["blockedOn"] = m.BlockedOn
	}
	return view
}

// CallAI executes one completion scoped to this agent's workspace and
// identity, with the agent's configured model, temperature and token
// limit. Only the content comes back; usage accounting happens inside
// the gateway.
func (r *Runtime) CallAI(ctx context.Context, messages []llms.Message) (string, error) {
	response, err := r.gateway.Call(ctx, r.agent.WorkspaceID, r.agent.ID, messages, llms.CallOptions{
		Model:       r.agent.Config.Model,
		Temperature: r.agent.Config.Temperature,
		MaxTokens:   r.agent.Config.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// LogActivity writes one line to the structured log and the agent's
// daily activity log.
func (r *Runtime) LogActivity(ctx context.Context, action string) {
	r.logActivity(ctx, action)
}

func (r *Runtime) logActivity(ctx context.Context, action string) {
	_ = ctx
	r.log.Info(action)
	if err := r.memory.LogDailyActivity(action); err != nil {
		r.log.Error("failed to write daily activity", "error", err)
	}
}
