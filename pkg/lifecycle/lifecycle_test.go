package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullLifecycleOrder(t *testing.T) {
	tracker := NewTracker().WithClock(func() time.Time { return time.Unix(1700000000, 0) })

	rec, err := tracker.Start("exec-1")
	require.NoError(t, err)
	assert.Equal(t, StageKernelAuthorization, rec.Current)

	want := []Stage{
		StageWorkUnitCreation,
		StageChannelAssignment,
		StageAgentBinding,
		StageExecution,
		StageOutcomeValidation,
		StageFeedbackSignal,
		StageMemoryUpdate,
	}
	for _, stage := range want {
		rec, err = tracker.Advance("exec-1")
		require.NoError(t, err)
		assert.Equal(t, stage, rec.Current)
	}

	assert.True(t, rec.Complete())
	require.Len(t, rec.Transitions, StageCount-1)
	for i, tr := range rec.Transitions {
		assert.Equal(t, Stage(i), tr.From)
		assert.Equal(t, Stage(i+1), tr.To)
	}
}

func TestAdvanceIdempotentAtTerminal(t *testing.T) {
	tracker := NewTracker()
	_, err := tracker.Start("exec-1")
	require.NoError(t, err)

	for i := 0; i < StageCount-1; i++ {
		_, err = tracker.Advance("exec-1")
		require.NoError(t, err)
	}

	// Repeated advances at MEMORY_UPDATE change nothing.
	for i := 0; i < 3; i++ {
		rec, err := tracker.Advance("exec-1")
		require.NoError(t, err)
		assert.Equal(t, StageMemoryUpdate, rec.Current)
		assert.Len(t, rec.Transitions, StageCount-1)
	}

	done, err := tracker.IsComplete("exec-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestStartRejectsDuplicates(t *testing.T) {
	tracker := NewTracker()
	_, err := tracker.Start("exec-1")
	require.NoError(t, err)

	_, err = tracker.Start("exec-1")
	assert.ErrorIs(t, err, ErrAlreadyTracked)
}

func TestAdvanceRequiresStart(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.Advance("exec-unknown")
	assert.ErrorIs(t, err, ErrNotTracked)

	_, err = tracker.Lookup("exec-unknown")
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestJumpToPermanentlyDisabled(t *testing.T) {
	tracker := NewTracker()
	_, err := tracker.Start("exec-1")
	require.NoError(t, err)

	err = tracker.JumpTo("exec-1", StageExecution)
	assert.ErrorIs(t, err, ErrStageJumpDisabled)

	// The refusal leaves the record untouched.
	rec, err := tracker.Lookup("exec-1")
	require.NoError(t, err)
	assert.Equal(t, StageKernelAuthorization, rec.Current)
	assert.Empty(t, rec.Transitions)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "KERNEL_AUTHORIZATION", StageKernelAuthorization.String())
	assert.Equal(t, "MEMORY_UPDATE", StageMemoryUpdate.String())
	assert.Equal(t, "STAGE(42)", Stage(42).String())
}
