// Package lifecycle implements the eight-stage EFAP-C execution lifecycle.
//
// Every execution passes through all eight stages in order. There is no way
// to skip a stage: the tracker advances exactly one stage at a time and the
// jump entry point is permanently disabled. Advancing past the terminal
// stage is idempotent.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Stage is one of the eight ordered lifecycle stages.
type Stage int

const (
	StageKernelAuthorization Stage = iota
	StageWorkUnitCreation
	StageChannelAssignment
	StageAgentBinding
	StageExecution
	StageOutcomeValidation
	StageFeedbackSignal
	StageMemoryUpdate
)

var stageNames = [...]string{
	"KERNEL_AUTHORIZATION",
	"WORK_UNIT_CREATION",
	"CHANNEL_ASSIGNMENT",
	"AGENT_BINDING",
	"EXECUTION",
	"OUTCOME_VALIDATION",
	"FEEDBACK_SIGNAL",
	"MEMORY_UPDATE",
}

// StageCount is the total number of lifecycle stages.
const StageCount = len(stageNames)

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("STAGE(%d)", int(s))
	}
	return stageNames[s]
}

var (
	// ErrAlreadyTracked is returned when Start is called for an execution
	// that already has a record.
	ErrAlreadyTracked = errors.New("lifecycle: execution already tracked")
	// ErrNotTracked is returned when Advance is called before Start.
	ErrNotTracked = errors.New("lifecycle: execution not tracked")
	// ErrStageJumpDisabled is the permanent refusal of the stage-jump entry
	// point: every stage executes in order, with no exceptions.
	ErrStageJumpDisabled = errors.New("lifecycle: stage jumping is permanently disabled")
)

// Transition is one recorded stage change.
type Transition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}

// Record is the append-only lifecycle history of one execution.
type Record struct {
	ExecutionID string       `json:"execution_id"`
	Current     Stage        `json:"current"`
	StartedAt   time.Time    `json:"started_at"`
	Transitions []Transition `json:"transitions"`
}

// Complete reports whether the execution has reached the terminal stage.
func (r Record) Complete() bool {
	return r.Current == StageMemoryUpdate
}

// Tracker drives executions through the lifecycle one stage at a time.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
	clock   func() time.Time
	logger  *slog.Logger
}

// NewTracker creates an empty lifecycle tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*Record),
		clock:   time.Now,
		logger:  slog.Default().With("component", "lifecycle"),
	}
}

// WithClock overrides the clock for testing.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.clock = clock
	return t
}

// Start begins tracking an execution at KERNEL_AUTHORIZATION. Starting an
// execution id that is already tracked is an error: lifecycle history is
// never reset.
func (t *Tracker) Start(executionID string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[executionID]; ok {
		return Record{}, fmt.Errorf("%w: %s", ErrAlreadyTracked, executionID)
	}
	rec := &Record{
		ExecutionID: executionID,
		Current:     StageKernelAuthorization,
		StartedAt:   t.clock().UTC(),
	}
	t.records[executionID] = rec
	return snapshot(rec), nil
}

// Advance moves the execution forward exactly one stage and records the
// transition. Advancing at MEMORY_UPDATE is a no-op that returns the
// unchanged record: completion is idempotent.
func (t *Tracker) Advance(executionID string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[executionID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotTracked, executionID)
	}
	if rec.Current == StageMemoryUpdate {
		return snapshot(rec), nil
	}

	from := rec.Current
	rec.Current = from + 1
	rec.Transitions = append(rec.Transitions, Transition{
		From: from,
		To:   rec.Current,
		At:   t.clock().UTC(),
	})
	t.logger.Debug("stage advanced",
		"execution_id", executionID, "from", from.String(), "to", rec.Current.String())
	return snapshot(rec), nil
}

// JumpTo is a permanently disabled entry point. The lifecycle has no fast
// path: every stage executes in order.
func (t *Tracker) JumpTo(executionID string, target Stage) error {
	return ErrStageJumpDisabled
}

// Lookup returns the current record for an execution.
func (t *Tracker) Lookup(executionID string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[executionID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotTracked, executionID)
	}
	return snapshot(rec), nil
}

// IsComplete reports whether an execution has reached MEMORY_UPDATE.
func (t *Tracker) IsComplete(executionID string) (bool, error) {
	rec, err := t.Lookup(executionID)
	if err != nil {
		return false, err
	}
	return rec.Complete(), nil
}

func snapshot(rec *Record) Record {
	out := *rec
	out.Transitions = append([]Transition(nil), rec.Transitions...)
	return out
}
