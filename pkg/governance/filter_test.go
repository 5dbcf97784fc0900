package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurofabric/pkg/identity"
	"github.com/synaptiq-labs/neurofabric/pkg/signal"
)

var testRootKey = []byte("0123456789abcdef0123456789abcdef")

func newSignal(t *testing.T, mutate func(*signal.Draft)) *signal.NeuralSignal {
	t.Helper()
	ident, err := identity.NewSenderIdentity("op1", testRootKey)
	require.NoError(t, err)
	f := signal.NewFactory(ident)

	d := signal.Draft{
		ReceiverID:      "r1",
		StateDelta:      "dispatch task X",
		IntentReference: "goal_42",
		Confidence:      0.95,
		Context:         "compressed",
		MemoryRefs:      []string{},
		Permissions:     []string{"execute"},
		RiskLevel:       signal.RiskMedium,
		Reversibility:   signal.Reversible,
	}
	if mutate != nil {
		mutate(&d)
	}
	sig, err := f.Create(d)
	require.NoError(t, err)
	return sig
}

func TestFilter_AcceptsWellFormedSignal(t *testing.T) {
	ledger := NewIncidentLedger()
	filter := NewFilter(ledger)

	dec := filter.Filter(newSignal(t, nil))
	assert.True(t, dec.Accepted())
	assert.Empty(t, dec.Violation)
	assert.Equal(t, 0, ledger.Length())
}

func TestFilter_ForbiddenPatternAlwaysRejected(t *testing.T) {
	ledger := NewIncidentLedger()
	filter := NewFilter(ledger)

	for _, pattern := range []string{
		"bypass_governance", "override_canon", "modify_objective",
		"grant_autonomy", "remove_constraint", "escalate_privilege",
	} {
		sig := newSignal(t, func(d *signal.Draft) {
			d.StateDelta = "please " + pattern + " now"
			// All permissions present: the pattern check must still win.
			d.Permissions = []string{"execute", "write", "admin"}
		})
		dec := filter.Filter(sig)
		assert.Equal(t, VerdictReject, dec.Verdict, pattern)
		assert.Contains(t, dec.Violation, ViolationPattern)
	}
	assert.Equal(t, 6, ledger.Length())
}

func TestFilter_PatternScanIsCaseInsensitive(t *testing.T) {
	filter := NewFilter(NewIncidentLedger())

	sig := newSignal(t, func(d *signal.Draft) {
		d.StateDelta = "BYPASS_Governance attempt"
	})
	dec := filter.Filter(sig)
	assert.Equal(t, VerdictReject, dec.Verdict)
}

func TestFilter_RiskPermissionMatrix(t *testing.T) {
	filter := NewFilter(NewIncidentLedger())

	cases := []struct {
		risk  signal.RiskLevel
		perms []string
		want  Verdict
	}{
		{signal.RiskLow, []string{}, VerdictAccept},
		{signal.RiskMedium, []string{}, VerdictReject},
		{signal.RiskMedium, []string{"execute"}, VerdictAccept},
		{signal.RiskHigh, []string{"execute"}, VerdictReject},
		{signal.RiskHigh, []string{"execute", "write"}, VerdictAccept},
		{signal.RiskCritical, []string{"execute", "write"}, VerdictReject},
		{signal.RiskCritical, []string{"execute", "write", "admin"}, VerdictAccept},
	}
	for _, tc := range cases {
		sig := newSignal(t, func(d *signal.Draft) {
			d.RiskLevel = tc.risk
			d.Permissions = tc.perms
		})
		dec := filter.Filter(sig)
		assert.Equal(t, tc.want, dec.Verdict, "risk=%s perms=%v", tc.risk, tc.perms)
		if tc.want == VerdictReject {
			assert.Equal(t, ViolationPermissions, dec.Violation)
		}
	}
}

func TestFilter_ChecksumMismatchRejected(t *testing.T) {
	ledger := NewIncidentLedger()
	filter := NewFilter(ledger)

	sig := newSignal(t, nil)
	tampered := *sig
	tampered.Payload.StateDelta = "dispatch task Y"

	dec := filter.Filter(&tampered)
	assert.Equal(t, VerdictReject, dec.Verdict)
	assert.Equal(t, ViolationChecksum, dec.Violation)
}

func TestFilter_PermissionCheckPrecedesChecksum(t *testing.T) {
	ledger := NewIncidentLedger()
	filter := NewFilter(ledger)

	// Fails both the permission superset check and the integrity check. The
	// earlier check in the order must be the one reported.
	sig := newSignal(t, func(d *signal.Draft) {
		d.RiskLevel = signal.RiskHigh
		d.Permissions = []string{"execute"}
	})
	tampered := *sig
	tampered.Payload.StateDelta = "dispatch task Y"

	dec := filter.Filter(&tampered)
	assert.Equal(t, VerdictReject, dec.Verdict)
	assert.Equal(t, ViolationPermissions, dec.Violation)

	incidents := ledger.QueryBySender("op1")
	require.Len(t, incidents, 1)
	assert.Equal(t, ViolationPermissions, incidents[0].Violation)
}

func TestFilter_NilAndMalformedNeverPass(t *testing.T) {
	filter := NewFilter(NewIncidentLedger())

	dec := filter.Filter(nil)
	assert.Equal(t, VerdictReject, dec.Verdict)
	assert.Equal(t, ViolationMalformed, dec.Violation)

	dec = filter.Filter(&signal.NeuralSignal{})
	assert.Equal(t, VerdictReject, dec.Verdict)
}

func TestFilter_IncidentRecordedOnRejection(t *testing.T) {
	ledger := NewIncidentLedger()
	filter := NewFilter(ledger)

	sig := newSignal(t, func(d *signal.Draft) {
		d.StateDelta = "bypass_governance"
	})
	filter.Filter(sig)

	incidents := ledger.QueryBySender("op1")
	require.Len(t, incidents, 1)
	assert.Equal(t, sig.Header.SignalID, incidents[0].SignalID)
	assert.Contains(t, incidents[0].Violation, ViolationPattern)
	assert.NotEmpty(t, incidents[0].ContentHash)
}

func TestIncidentLedger_HandlersReceiveEveryIncident(t *testing.T) {
	ledger := NewIncidentLedger()
	filter := NewFilter(ledger)

	var seen []FilterIncident
	ledger.OnIncident(func(inc FilterIncident) {
		seen = append(seen, inc)
	})

	filter.Filter(newSignal(t, func(d *signal.Draft) {
		d.StateDelta = "bypass_governance"
	}))
	filter.Filter(newSignal(t, func(d *signal.Draft) {
		d.RiskLevel = signal.RiskCritical
	}))

	require.Len(t, seen, 2)
	assert.Contains(t, seen[0].Violation, ViolationPattern)
	assert.Equal(t, ViolationPermissions, seen[1].Violation)
}

func TestFilter_NoOverridePath(t *testing.T) {
	filter := NewFilter(NewIncidentLedger())
	assert.ErrorIs(t, filter.Bypass(), ErrFilterImmutable)
	assert.ErrorIs(t, filter.Disable(), ErrFilterImmutable)
}

func TestFilter_CELRules(t *testing.T) {
	rules, err := NewRuleSet()
	require.NoError(t, err)
	require.NoError(t, rules.Add("no-low-confidence-critical", `risk_level == "critical" && confidence < 0.9`))

	filter := NewFilter(NewIncidentLedger()).WithRules(rules)

	denied := newSignal(t, func(d *signal.Draft) {
		d.RiskLevel = signal.RiskCritical
		d.Permissions = []string{"execute", "write", "admin"}
		d.Confidence = 0.5
	})
	dec := filter.Filter(denied)
	assert.Equal(t, VerdictReject, dec.Verdict)
	assert.Contains(t, dec.Violation, ViolationPolicyRule)

	allowed := newSignal(t, func(d *signal.Draft) {
		d.RiskLevel = signal.RiskCritical
		d.Permissions = []string{"execute", "write", "admin"}
		d.Confidence = 0.99
	})
	assert.True(t, filter.Filter(allowed).Accepted())
}

func TestRuleSet_RejectsInvalidRules(t *testing.T) {
	rules, err := NewRuleSet()
	require.NoError(t, err)

	assert.Error(t, rules.Add("bad-syntax", `risk_level ==`))
	assert.Error(t, rules.Add("non-bool", `confidence`))
	assert.Equal(t, 0, rules.Len())
}
