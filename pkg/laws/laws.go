// Package laws implements the five EFAP-C agent laws as independent static
// checks. Each check returns an immutable LawCheck on success and a distinct
// typed violation error on failure.
//
// Law 3 (determinism) violations represent corrupted system assumptions, not
// expected input variation; callers must treat them as fatal.
package laws

import (
	"bytes"
	"fmt"
)

// Law identifies one of the five agent laws.
type Law int

const (
	// LawNoFreeWork: every work unit must trace to a goal.
	LawNoFreeWork Law = 1
	// LawDeclaredEffects: effectful work requires declared side effects and
	// a stated reversibility.
	LawDeclaredEffects Law = 2
	// LawDeterminism: identical input and environment must produce bit-equal
	// output.
	LawDeterminism Law = 3
	// LawBoundedAutonomy: agents must not spawn agents, set goals, access
	// memory directly, or override kernel decisions.
	LawBoundedAutonomy Law = 4
	// LawSuperfluidRouting: one agent's failure must never simultaneously
	// block the whole system.
	LawSuperfluidRouting Law = 5
)

// LawCheck is the immutable record of a passed law check.
type LawCheck struct {
	Law         Law    `json:"law_number"`
	Passed      bool   `json:"passed"`
	Description string `json:"description"`
}

// GoalTraceViolation is the Law 1 failure: work without a parent goal.
type GoalTraceViolation struct{}

func (GoalTraceViolation) Error() string {
	return "law 1 (no free work): work unit does not trace to a goal"
}

// UndeclaredEffectViolation is the Law 2 failure: an expected effect without
// declared side effects or a stated reversibility.
type UndeclaredEffectViolation struct {
	Reason string
}

func (e UndeclaredEffectViolation) Error() string {
	return fmt.Sprintf("law 2 (declared effects): %s", e.Reason)
}

// DeterminismViolation is the Law 3 failure: two outputs for identical input
// diverge. This is a hard failure; it is never averaged or tolerated.
type DeterminismViolation struct {
	WorkID string
}

func (e DeterminismViolation) Error() string {
	return fmt.Sprintf("law 3 (determinism): outputs diverge for work %s", e.WorkID)
}

// AutonomyViolation is the Law 4 failure: an agent attempted a forbidden
// capability.
type AutonomyViolation struct {
	Capability string
}

func (e AutonomyViolation) Error() string {
	return fmt.Sprintf("law 4 (bounded autonomy): forbidden capability %q", e.Capability)
}

// RoutingViolation is the Law 5 failure: a blocked work item coincided with
// a blocked system.
type RoutingViolation struct{}

func (RoutingViolation) Error() string {
	return "law 5 (superfluid routing): work blocked and system blocked simultaneously"
}

// CheckGoalTrace enforces Law 1.
func CheckGoalTrace(parentGoal string) (LawCheck, error) {
	if parentGoal == "" {
		return LawCheck{}, GoalTraceViolation{}
	}
	return LawCheck{Law: LawNoFreeWork, Passed: true, Description: "work unit traces to goal " + parentGoal}, nil
}

// CheckDeclaredEffects enforces Law 2: if the action is effectful (non-read
// with an expected effect), side effects must be declared and reversibility
// stated.
func CheckDeclaredEffects(isRead bool, expectsEffect bool, declaredSideEffects []string, reversibility string) (LawCheck, error) {
	if !isRead && expectsEffect {
		if len(declaredSideEffects) == 0 {
			return LawCheck{}, UndeclaredEffectViolation{Reason: "effectful action declares no side effects"}
		}
		if reversibility == "" {
			return LawCheck{}, UndeclaredEffectViolation{Reason: "declared effect has no stated reversibility"}
		}
	}
	return LawCheck{Law: LawDeclaredEffects, Passed: true, Description: "effects declared"}, nil
}

// CheckDeterminism enforces Law 3: the two outputs must be bit-equal.
func CheckDeterminism(workID string, outputA, outputB []byte) (LawCheck, error) {
	if !bytes.Equal(outputA, outputB) {
		return LawCheck{}, DeterminismViolation{WorkID: workID}
	}
	return LawCheck{Law: LawDeterminism, Passed: true, Description: "outputs bit-equal"}, nil
}

// AutonomyFlags captures the forbidden capabilities an agent might claim.
// Each flag is independently forbidden; any one set is a violation.
type AutonomyFlags struct {
	SpawnsAgents    bool
	SetsGoals       bool
	AccessesMemory  bool
	OverridesKernel bool
}

// CheckBoundedAutonomy enforces Law 4.
func CheckBoundedAutonomy(flags AutonomyFlags) (LawCheck, error) {
	switch {
	case flags.SpawnsAgents:
		return LawCheck{}, AutonomyViolation{Capability: "spawn_agent"}
	case flags.SetsGoals:
		return LawCheck{}, AutonomyViolation{Capability: "set_goal"}
	case flags.AccessesMemory:
		return LawCheck{}, AutonomyViolation{Capability: "access_memory"}
	case flags.OverridesKernel:
		return LawCheck{}, AutonomyViolation{Capability: "override_kernel"}
	}
	return LawCheck{Law: LawBoundedAutonomy, Passed: true, Description: "agent within autonomy bounds"}, nil
}

// CheckSuperfluidRouting enforces Law 5. The violation condition is the
// conjunction: a blocked work item alone is acceptable as long as the system
// as a whole can still make progress.
func CheckSuperfluidRouting(workBlocked, systemBlocked bool) (LawCheck, error) {
	if workBlocked && systemBlocked {
		return LawCheck{}, RoutingViolation{}
	}
	return LawCheck{Law: LawSuperfluidRouting, Passed: true, Description: "system remains routable"}, nil
}
