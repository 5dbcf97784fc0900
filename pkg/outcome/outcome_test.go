package outcome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurofabric/pkg/laws"
)

func TestValidOutcome(t *testing.T) {
	v := NewValidator().WithClock(func() time.Time { return time.Unix(1700000000, 0) })

	rec, err := v.Validate("work-1", "rows migrated", "rows migrated", true, true)
	require.NoError(t, err)
	assert.Equal(t, StatusValid, rec.Status)
	assert.Equal(t, "work-1", rec.WorkID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rec.ValidatedAt)

	history := v.History()
	require.Len(t, history, 1)
	assert.Equal(t, StatusValid, history[0].Status)
}

func TestNondeterministicOutcomeRecordsThenFails(t *testing.T) {
	v := NewValidator()

	rec, err := v.Validate("work-1", "rows migrated", "rows migrated", false, true)

	var dv laws.DeterminismViolation
	require.ErrorAs(t, err, &dv)
	assert.Equal(t, "work-1", dv.WorkID)
	assert.Equal(t, StatusNondeterministic, rec.Status)

	// The failure was recorded before the error propagated.
	history := v.HistoryFor("work-1")
	require.Len(t, history, 1)
	assert.Equal(t, StatusNondeterministic, history[0].Status)
}

func TestIntegrityFailureRecordsThenFails(t *testing.T) {
	v := NewValidator()

	rec, err := v.Validate("work-2", "rows migrated", "rows dropped", true, false)

	var ie IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "work-2", ie.WorkID)
	assert.Equal(t, StatusNoIntegrity, rec.Status)

	history := v.HistoryFor("work-2")
	require.Len(t, history, 1)
	assert.Equal(t, StatusNoIntegrity, history[0].Status)
}

func TestDeterminismTakesPrecedenceOverIntegrity(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate("work-3", "e", "e", false, false)

	var dv laws.DeterminismViolation
	assert.ErrorAs(t, err, &dv)
}

func TestSkipValidationPermanentlyDisabled(t *testing.T) {
	v := NewValidator()

	err := v.SkipValidation("work-1")
	assert.ErrorIs(t, err, ErrSkipValidationDisabled)

	// The refusal records nothing.
	assert.Empty(t, v.History())
}
