// Package pool implements the EFAP-C stateless agent pool.
//
// The pool pre-allocates a fixed number of agents and never grows. Agents
// are stateless by construction: execution always restores IDLE and nothing
// about a work unit persists on the agent itself. Only the returned
// ExecutionOutcome and the pool-level outcome log survive.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synaptiq-labs/neurofabric/pkg/laws"
	"github.com/synaptiq-labs/neurofabric/pkg/work"
)

// AgentState is the observable lifecycle state of an agent.
type AgentState string

const (
	StateIdle      AgentState = "IDLE"
	StateExecuting AgentState = "EXECUTING"
	StateCompleted AgentState = "COMPLETED"
	StateFailed    AgentState = "FAILED"
)

var (
	// ErrUnknownAgent is returned for agent ids the pool does not own.
	ErrUnknownAgent = errors.New("pool: unknown agent")
	// ErrAgentNotAcquired is returned when Execute is called on an agent the
	// caller has not acquired.
	ErrAgentNotAcquired = errors.New("pool: agent was not acquired")
	// ErrNilWorkUnit is returned when Execute is called without a work unit.
	ErrNilWorkUnit = errors.New("pool: nil work unit")
)

// Agent is a point-in-time snapshot of one pooled agent. The pool owns the
// underlying record exclusively; snapshots never mutate pool state.
type Agent struct {
	AgentID      string     `json:"agent_id"`
	State        AgentState `json:"state"`
	Capabilities []string   `json:"capabilities"`
	CurrentWork  string     `json:"current_work,omitempty"`
}

// ExecutionOutcome is the immutable record of one execution. It is created
// once, appended to the pool's outcome log, and never mutated.
type ExecutionOutcome struct {
	WorkID        string    `json:"work_id"`
	AgentID       string    `json:"agent_id"`
	Success       bool      `json:"success"`
	Output        []byte    `json:"output"`
	Deterministic bool      `json:"deterministic"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
}

// ExecutorFunc performs the actual work. It reports the output, whether the
// execution was deterministic, and any execution error.
type ExecutorFunc func(ctx context.Context, unit *work.WorkUnit) (output []byte, deterministic bool, err error)

type agentRecord struct {
	id           string
	state        AgentState
	capabilities []string
	currentWork  string
	acquired     bool
}

// Pool is a fixed-size, mutex-guarded agent pool.
type Pool struct {
	mu       sync.Mutex
	agents   map[string]*agentRecord
	freeList []string
	outcomes []ExecutionOutcome
	clock    func() time.Time
	logger   *slog.Logger
}

// New pre-allocates size agents, all IDLE, sharing the given capabilities.
func New(size int, capabilities []string) *Pool {
	p := &Pool{
		agents: make(map[string]*agentRecord, size),
		clock:  time.Now,
		logger: slog.Default().With("component", "pool"),
	}
	for i := 0; i < size; i++ {
		id := "agent-" + uuid.New().String()
		p.agents[id] = &agentRecord{
			id:           id,
			state:        StateIdle,
			capabilities: append([]string(nil), capabilities...),
		}
		p.freeList = append(p.freeList, id)
	}
	return p
}

// WithClock overrides the clock for testing.
func (p *Pool) WithClock(clock func() time.Time) *Pool {
	p.clock = clock
	return p
}

// Size returns the fixed pool size.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.agents)
}

// Acquire reserves and returns the first idle agent, or nil when the pool is
// exhausted. The pool never blocks or grows; callers handle exhaustion with
// their own retry/backoff.
func (p *Pool) Acquire() *Agent {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.freeList) == 0 {
		return nil
	}
	id := p.freeList[0]
	p.freeList = p.freeList[1:]
	rec := p.agents[id]
	rec.acquired = true
	snap := snapshot(rec)
	return &snap
}

// Release returns an acquired agent to the free list without executing.
func (p *Pool) Release(agentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.agents[agentID]
	if !ok {
		return ErrUnknownAgent
	}
	if !rec.acquired {
		return ErrAgentNotAcquired
	}
	rec.acquired = false
	rec.state = StateIdle
	rec.currentWork = ""
	p.freeList = append(p.freeList, agentID)
	return nil
}

// Execute runs a work unit on an acquired agent. The agent transitions
// IDLE→EXECUTING→COMPLETED→IDLE atomically from the caller's perspective:
// its state is never observable as COMPLETED, and nothing about the work
// persists on the agent afterwards. The outcome is appended to the pool's
// outcome log and returned.
func (p *Pool) Execute(ctx context.Context, agentID string, unit *work.WorkUnit, fn ExecutorFunc) (*ExecutionOutcome, error) {
	if unit == nil {
		return nil, ErrNilWorkUnit
	}

	p.mu.Lock()
	rec, ok := p.agents[agentID]
	if !ok {
		p.mu.Unlock()
		return nil, ErrUnknownAgent
	}
	if !rec.acquired {
		p.mu.Unlock()
		return nil, ErrAgentNotAcquired
	}
	rec.state = StateExecuting
	rec.currentWork = unit.WorkID
	p.mu.Unlock()

	started := p.clock().UTC()
	output, deterministic, execErr := fn(ctx, unit)
	completed := p.clock().UTC()

	outcome := ExecutionOutcome{
		WorkID:        unit.WorkID,
		AgentID:       agentID,
		Success:       execErr == nil,
		Output:        output,
		Deterministic: deterministic,
		StartedAt:     started,
		CompletedAt:   completed,
	}

	p.mu.Lock()
	// COMPLETED/FAILED exist only as outcome statuses; the agent goes straight
	// back to IDLE and the free list before the lock is released, so callers
	// never observe a terminal agent state.
	rec.state = StateIdle
	rec.currentWork = ""
	rec.acquired = false
	p.freeList = append(p.freeList, agentID)
	p.outcomes = append(p.outcomes, outcome)
	p.mu.Unlock()

	if execErr != nil {
		p.logger.Warn("execution failed", "agent_id", agentID, "work_id", unit.WorkID, "error", execErr)
		return &outcome, execErr
	}
	return &outcome, nil
}

// AgentSnapshot returns the current observable state of an agent.
func (p *Pool) AgentSnapshot(agentID string) (Agent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.agents[agentID]
	if !ok {
		return Agent{}, ErrUnknownAgent
	}
	return snapshot(rec), nil
}

// Idle returns the number of idle, unacquired agents.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freeList)
}

// Outcomes returns a copy of the append-only outcome log.
func (p *Pool) Outcomes() []ExecutionOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ExecutionOutcome(nil), p.outcomes...)
}

// RetainMemory is a permanently disabled entry point (Law 4): agents never
// store history across invocations.
func (p *Pool) RetainMemory() error {
	return laws.AutonomyViolation{Capability: "retain_memory"}
}

// SetGoal is a permanently disabled entry point (Law 4): agents never set
// their own goals.
func (p *Pool) SetGoal() error {
	return laws.AutonomyViolation{Capability: "set_goal"}
}

// SpawnAgent is a permanently disabled entry point (Law 4): agents never
// spawn agents; the pool is fixed-size.
func (p *Pool) SpawnAgent() error {
	return laws.AutonomyViolation{Capability: "spawn_agent"}
}

func snapshot(rec *agentRecord) Agent {
	return Agent{
		AgentID:      rec.id,
		State:        rec.state,
		Capabilities: append([]string(nil), rec.capabilities...),
		CurrentWork:  rec.currentWork,
	}
}
