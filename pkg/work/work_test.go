package work

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurofabric/pkg/laws"
	"github.com/synaptiq-labs/neurofabric/pkg/signal"
)

func TestCreate_RequiresParentGoal(t *testing.T) {
	f := NewFactory()

	_, err := f.Create(Request{
		ParentGoal: "",
		ActionType: ActionRead,
		InputState: "s0",
	})
	assert.ErrorAs(t, err, &laws.GoalTraceViolation{})

	unit, err := f.Create(Request{
		ParentGoal: "goal_42",
		ActionType: ActionRead,
		InputState: "s0",
	})
	require.NoError(t, err)
	assert.Equal(t, "goal_42", unit.ParentGoal)
	assert.NotEmpty(t, unit.WorkID)
}

func TestCreate_ReadNeedsNoSideEffects(t *testing.T) {
	f := NewFactory()

	unit, err := f.Create(Request{
		ParentGoal:     "goal_42",
		ActionType:     ActionRead,
		InputState:     "s0",
		ExpectedEffect: "none observed",
	})
	require.NoError(t, err)
	assert.Empty(t, unit.DeclaredSideEffects)
}

func TestCreate_EffectfulWriteRequiresDeclaredSideEffects(t *testing.T) {
	f := NewFactory()

	_, err := f.Create(Request{
		ParentGoal:     "goal_42",
		ActionType:     ActionWrite,
		InputState:     "s0",
		ExpectedEffect: "file created",
		Reversibility:  signal.Reversible,
	})
	var uev laws.UndeclaredEffectViolation
	assert.ErrorAs(t, err, &uev)

	unit, err := f.Create(Request{
		ParentGoal:          "goal_42",
		ActionType:          ActionWrite,
		InputState:          "s0",
		ExpectedEffect:      "file created",
		Reversibility:       signal.Reversible,
		DeclaredSideEffects: []string{"file_write"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"file_write"}, unit.DeclaredSideEffects)
}

func TestCreate_EffectRequiresStatedReversibility(t *testing.T) {
	f := NewFactory()

	_, err := f.Create(Request{
		ParentGoal:          "goal_42",
		ActionType:          ActionWrite,
		InputState:          "s0",
		ExpectedEffect:      "file created",
		DeclaredSideEffects: []string{"file_write"},
	})
	var uev laws.UndeclaredEffectViolation
	assert.ErrorAs(t, err, &uev)
}

func TestCreate_UnitsGetDistinctIDs(t *testing.T) {
	f := NewFactory()
	req := Request{ParentGoal: "goal_42", ActionType: ActionRead, InputState: "s0"}

	a, err := f.Create(req)
	require.NoError(t, err)
	b, err := f.Create(req)
	require.NoError(t, err)
	assert.NotEqual(t, a.WorkID, b.WorkID)
}
