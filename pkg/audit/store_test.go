package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time { return time.Unix(1700000000, 0) }

func TestAppendChainsEntries(t *testing.T) {
	trail := NewTrail().WithClock(fixedClock)

	first, err := trail.Append(EntrySignalAccepted, "signal-1", "filter.accept",
		map[string]string{"sender": "cortex-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, "genesis", first.PreviousHash)
	assert.NotEmpty(t, first.EntryHash)

	second, err := trail.Append(EntryDelivery, "signal-1", "transport.deliver", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first.EntryHash, second.PreviousHash)
	assert.Equal(t, second.EntryHash, trail.ChainHead())
	assert.Equal(t, 2, trail.Size())

	require.NoError(t, trail.VerifyChain())
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	trail := NewTrail()
	for i := 0; i < 3; i++ {
		_, err := trail.Append(EntryStageTransition, "work-1", "lifecycle.advance", i, nil)
		require.NoError(t, err)
	}
	require.NoError(t, trail.VerifyChain())

	// Rewriting any field breaks verification for the whole chain.
	trail.entries[1].Action = "lifecycle.skip"
	assert.ErrorIs(t, trail.VerifyChain(), ErrChainBroken)
}

func TestQueryFilters(t *testing.T) {
	trail := NewTrail()
	_, err := trail.Append(EntrySignalAccepted, "signal-1", "filter.accept", nil, nil)
	require.NoError(t, err)
	_, err = trail.Append(EntrySignalRejected, "signal-2", "filter.reject", nil, nil)
	require.NoError(t, err)
	_, err = trail.Append(EntrySignalRejected, "signal-3", "filter.reject", nil, nil)
	require.NoError(t, err)

	rejected := trail.Query(QueryFilter{EntryType: EntrySignalRejected})
	assert.Len(t, rejected, 2)

	bySubject := trail.Query(QueryFilter{Subject: "signal-2"})
	require.Len(t, bySubject, 1)
	assert.Equal(t, EntrySignalRejected, bySubject[0].EntryType)

	limited := trail.Query(QueryFilter{MaxResults: 1})
	assert.Len(t, limited, 1)
}

func TestGetByID(t *testing.T) {
	trail := NewTrail()
	entry, err := trail.Append(EntryOutcome, "work-1", "outcome.validate", nil, nil)
	require.NoError(t, err)

	got, err := trail.Get(entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, entry.EntryHash, got.EntryHash)

	_, err = trail.Get("missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestHandlersSeeEveryEntry(t *testing.T) {
	trail := NewTrail()

	var seen []EntryType
	trail.AddHandler(func(e *Entry) { seen = append(seen, e.EntryType) })

	_, err := trail.Append(EntryIncident, "signal-1", "filter.incident", nil, nil)
	require.NoError(t, err)
	_, err = trail.Append(EntryRouting, "work-1", "router.route", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []EntryType{EntryIncident, EntryRouting}, seen)
}

func TestBundleExportAndVerify(t *testing.T) {
	trail := NewTrail()
	for i := 0; i < 4; i++ {
		_, err := trail.Append(EntryDelivery, "signal-1", "transport.deliver", i, nil)
		require.NoError(t, err)
	}

	bundle, err := trail.ExportBundle(QueryFilter{EntryType: EntryDelivery})
	require.NoError(t, err)
	assert.Equal(t, 4, bundle.EntryCount)
	assert.Equal(t, trail.ChainHead(), bundle.ChainHead)
	require.NoError(t, VerifyBundle(bundle))

	// Tampering with a bundled entry is caught by the bundle hash.
	bundle.Entries[0].Subject = "signal-forged"
	assert.Error(t, VerifyBundle(bundle))
}

func TestExportBundleEmptyFilter(t *testing.T) {
	trail := NewTrail()
	_, err := trail.ExportBundle(QueryFilter{EntryType: EntryRollback})
	assert.Error(t, err)
}
