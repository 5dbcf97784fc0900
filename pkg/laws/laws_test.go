package laws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckGoalTrace(t *testing.T) {
	check, err := CheckGoalTrace("goal_42")
	require.NoError(t, err)
	assert.Equal(t, LawNoFreeWork, check.Law)
	assert.True(t, check.Passed)

	_, err = CheckGoalTrace("")
	assert.ErrorAs(t, err, &GoalTraceViolation{})
}

func TestCheckDeclaredEffects(t *testing.T) {
	// Reads never need declared side effects.
	_, err := CheckDeclaredEffects(true, true, nil, "")
	assert.NoError(t, err)

	// Effectful work without declared side effects fails.
	_, err = CheckDeclaredEffects(false, true, nil, "reversible")
	var uev UndeclaredEffectViolation
	assert.ErrorAs(t, err, &uev)

	// Declared effect without stated reversibility fails.
	_, err = CheckDeclaredEffects(false, true, []string{"file_write"}, "")
	assert.ErrorAs(t, err, &uev)

	check, err := CheckDeclaredEffects(false, true, []string{"file_write"}, "reversible")
	require.NoError(t, err)
	assert.Equal(t, LawDeclaredEffects, check.Law)

	// No expected effect: nothing to declare.
	_, err = CheckDeclaredEffects(false, false, nil, "")
	assert.NoError(t, err)
}

func TestCheckDeterminism(t *testing.T) {
	check, err := CheckDeterminism("w1", []byte("out"), []byte("out"))
	require.NoError(t, err)
	assert.Equal(t, LawDeterminism, check.Law)

	_, err = CheckDeterminism("w1", []byte("out"), []byte("OUT"))
	var dv DeterminismViolation
	require.ErrorAs(t, err, &dv)
	assert.Equal(t, "w1", dv.WorkID)
}

func TestCheckBoundedAutonomy(t *testing.T) {
	_, err := CheckBoundedAutonomy(AutonomyFlags{})
	assert.NoError(t, err)

	cases := []struct {
		flags      AutonomyFlags
		capability string
	}{
		{AutonomyFlags{SpawnsAgents: true}, "spawn_agent"},
		{AutonomyFlags{SetsGoals: true}, "set_goal"},
		{AutonomyFlags{AccessesMemory: true}, "access_memory"},
		{AutonomyFlags{OverridesKernel: true}, "override_kernel"},
	}
	for _, tc := range cases {
		_, err := CheckBoundedAutonomy(tc.flags)
		var av AutonomyViolation
		require.ErrorAs(t, err, &av)
		assert.Equal(t, tc.capability, av.Capability)
	}
}

func TestCheckSuperfluidRouting(t *testing.T) {
	// A blocked work item alone is not a violation.
	_, err := CheckSuperfluidRouting(true, false)
	assert.NoError(t, err)
	_, err = CheckSuperfluidRouting(false, true)
	assert.NoError(t, err)
	_, err = CheckSuperfluidRouting(false, false)
	assert.NoError(t, err)

	_, err = CheckSuperfluidRouting(true, true)
	assert.ErrorAs(t, err, &RoutingViolation{})
}
