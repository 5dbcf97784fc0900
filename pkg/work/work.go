// Package work defines the EFAP-C atomic work unit and its factory.
//
// A WorkUnit is immutable after creation and logically destroyed once its
// outcome is recorded: it is never deleted, it becomes historical. Invalid
// work is never instantiated; Laws 1 and 2 are enforced at construction.
package work

import (
	"time"

	"github.com/google/uuid"

	"github.com/synaptiq-labs/neurofabric/pkg/laws"
	"github.com/synaptiq-labs/neurofabric/pkg/signal"
)

// ActionType classifies what a work unit does to the world.
type ActionType string

const (
	ActionRead      ActionType = "READ"
	ActionWrite     ActionType = "WRITE"
	ActionTransform ActionType = "TRANSFORM"
	ActionNotify    ActionType = "NOTIFY"
	ActionDelete    ActionType = "DELETE"
)

// WorkUnit is the atomic, goal-traced, effect-declared unit of execution.
type WorkUnit struct {
	WorkID              string               `json:"work_id"`
	ParentGoal          string               `json:"parent_goal"`
	ActionType          ActionType           `json:"action_type"`
	InputState          string               `json:"input_state"`
	ExpectedEffect      string               `json:"expected_effect"`
	Reversibility       signal.Reversibility `json:"reversibility"`
	DeclaredSideEffects []string             `json:"declared_side_effects"`
	CreatedAt           time.Time            `json:"created_at"`
}

// Request carries the inputs for work unit construction.
type Request struct {
	ParentGoal          string
	ActionType          ActionType
	InputState          string
	ExpectedEffect      string
	Reversibility       signal.Reversibility
	DeclaredSideEffects []string
}

// Factory constructs work units under Law 1 and Law 2.
type Factory struct {
	clock func() time.Time
}

// NewFactory creates a work unit factory.
func NewFactory() *Factory {
	return &Factory{clock: time.Now}
}

// WithClock overrides the clock for testing.
func (f *Factory) WithClock(clock func() time.Time) *Factory {
	f.clock = clock
	return f
}

// Create builds an immutable WorkUnit. Law 1: the parent goal must be
// non-empty. Law 2: a non-read action with an expected effect must declare
// at least one side effect and a reversibility. Violations fail creation;
// invalid work is never produced.
func (f *Factory) Create(req Request) (*WorkUnit, error) {
	if _, err := laws.CheckGoalTrace(req.ParentGoal); err != nil {
		return nil, err
	}

	isRead := req.ActionType == ActionRead
	expectsEffect := req.ExpectedEffect != ""
	if _, err := laws.CheckDeclaredEffects(isRead, expectsEffect, req.DeclaredSideEffects, string(req.Reversibility)); err != nil {
		return nil, err
	}

	return &WorkUnit{
		WorkID:              uuid.New().String(),
		ParentGoal:          req.ParentGoal,
		ActionType:          req.ActionType,
		InputState:          req.InputState,
		ExpectedEffect:      req.ExpectedEffect,
		Reversibility:       req.Reversibility,
		DeclaredSideEffects: append([]string(nil), req.DeclaredSideEffects...),
		CreatedAt:           f.clock().UTC(),
	}, nil
}
