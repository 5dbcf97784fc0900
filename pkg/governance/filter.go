// Package governance implements the mandatory NLP-C policy gate.
//
// Fail-closed filtering: every signal must pass the filter before the link
// transport may deliver it. Unknown or malformed signals never pass, every
// rejection is receipted as a FilterIncident, and there is no override path.
package governance

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/synaptiq-labs/neurofabric/pkg/signal"
)

// Verdict is the filter outcome for one signal.
type Verdict string

const (
	VerdictAccept Verdict = "ACCEPT"
	VerdictReject Verdict = "REJECT"
)

// Violation codes recorded on rejection.
const (
	ViolationMalformed     = "malformed_signal"
	ViolationPattern       = "forbidden_pattern"
	ViolationPermissions   = "insufficient_permissions"
	ViolationChecksum      = "checksum_mismatch"
	ViolationPolicyRule    = "policy_rule"
	ViolationPolicyFailure = "policy_evaluation_failure"
)

// ErrFilterImmutable is returned by the permanently disabled override entry
// points. The filter cannot be bypassed or disabled at runtime.
var ErrFilterImmutable = errors.New("governance: the filter cannot be bypassed or disabled")

// forbiddenPatterns is the fixed deny-list scanned against state_delta.
// Matching is case-insensitive over the NFKC-normalized payload.
var forbiddenPatterns = []string{
	"bypass_governance",
	"override_canon",
	"modify_objective",
	"grant_autonomy",
	"remove_constraint",
	"escalate_privilege",
}

// requiredPermissions maps each risk grade to the permission set a signal
// must carry (as a superset) to be deliverable.
var requiredPermissions = map[signal.RiskLevel][]string{
	signal.RiskLow:      {},
	signal.RiskMedium:   {"execute"},
	signal.RiskHigh:     {"execute", "write"},
	signal.RiskCritical: {"execute", "write", "admin"},
}

// Decision records the outcome of one filter pass. Rejection is terminal for
// the signal; re-submission is a new signal with a new id.
type Decision struct {
	SignalID  string    `json:"signal_id"`
	Verdict   Verdict   `json:"verdict"`
	Violation string    `json:"violation,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Accepted reports whether the signal may proceed to the transport.
func (d Decision) Accepted() bool { return d.Verdict == VerdictAccept }

// Filter is the mandatory governance gate.
type Filter struct {
	incidents *IncidentLedger
	rules     *RuleSet
	clock     func() time.Time
	logger    *slog.Logger
}

// NewFilter creates a filter with an empty custom rule set.
func NewFilter(incidents *IncidentLedger) *Filter {
	return &Filter{
		incidents: incidents,
		clock:     time.Now,
		logger:    slog.Default().With("component", "governance"),
	}
}

// WithRules attaches operator-defined CEL deny rules. Rules are evaluated
// after the fixed checks; evaluation errors fail closed.
func (f *Filter) WithRules(rules *RuleSet) *Filter {
	f.rules = rules
	return f
}

// WithClock overrides the clock for testing.
func (f *Filter) WithClock(clock func() time.Time) *Filter {
	f.clock = clock
	return f
}

// Filter evaluates a signal against the gate. Checks run in strict order and
// short-circuit on first failure:
//
//  1. forbidden-pattern scan over state_delta
//  2. risk-level permission superset check
//  3. integrity checksum recomputation
//  4. operator CEL deny rules (supplemental)
//
// Rejections record both the Decision and a FilterIncident.
func (f *Filter) Filter(sig *signal.NeuralSignal) Decision {
	if sig == nil {
		return f.reject("", "", ViolationMalformed)
	}
	if err := sig.Validate(); err != nil {
		// Validate covers the checksum too, but pattern and permission scans
		// must report first per the check order; run them on whatever fields
		// are present before falling back to the structural violation.
		if v, bad := f.scanPatterns(sig); bad {
			return f.reject(sig.Header.SignalID, sig.Header.SenderID, v)
		}
		if !hasPermissions(sig.Tags.Permissions, requiredPermissions[sig.Tags.RiskLevel]) {
			return f.reject(sig.Header.SignalID, sig.Header.SenderID, ViolationPermissions)
		}
		var verr *signal.ValidationError
		if errors.As(err, &verr) && verr.Field == "integrity.checksum" {
			return f.reject(sig.Header.SignalID, sig.Header.SenderID, ViolationChecksum)
		}
		return f.reject(sig.Header.SignalID, sig.Header.SenderID, ViolationMalformed)
	}

	// 1. Forbidden-pattern scan.
	if v, bad := f.scanPatterns(sig); bad {
		return f.reject(sig.Header.SignalID, sig.Header.SenderID, v)
	}

	// 2. Risk/permission check.
	if !hasPermissions(sig.Tags.Permissions, requiredPermissions[sig.Tags.RiskLevel]) {
		return f.reject(sig.Header.SignalID, sig.Header.SenderID, ViolationPermissions)
	}

	// 3. Integrity check.
	want := signal.ComputeChecksum(sig.Header.SignalID, sig.Payload.StateDelta, sig.Header.LogicalTimestamp)
	if sig.Integrity.Checksum != want {
		return f.reject(sig.Header.SignalID, sig.Header.SenderID, ViolationChecksum)
	}

	// 4. Operator rules.
	if f.rules != nil {
		denied, ruleID, err := f.rules.Evaluate(sig)
		if err != nil {
			// A rule that cannot be evaluated denies the signal.
			return f.reject(sig.Header.SignalID, sig.Header.SenderID, ViolationPolicyFailure)
		}
		if denied {
			return f.reject(sig.Header.SignalID, sig.Header.SenderID, ViolationPolicyRule+":"+ruleID)
		}
	}

	return Decision{
		SignalID:  sig.Header.SignalID,
		Verdict:   VerdictAccept,
		CheckedAt: f.clock(),
	}
}

// Bypass is a permanently disabled entry point.
func (f *Filter) Bypass() error { return ErrFilterImmutable }

// Disable is a permanently disabled entry point.
func (f *Filter) Disable() error { return ErrFilterImmutable }

func (f *Filter) scanPatterns(sig *signal.NeuralSignal) (string, bool) {
	folded := strings.ToLower(norm.NFKC.String(sig.Payload.StateDelta))
	for _, p := range forbiddenPatterns {
		if strings.Contains(folded, p) {
			return ViolationPattern + ":" + p, true
		}
	}
	return "", false
}

func (f *Filter) reject(signalID, senderID, violation string) Decision {
	d := Decision{
		SignalID:  signalID,
		Verdict:   VerdictReject,
		Violation: violation,
		CheckedAt: f.clock(),
	}
	if f.incidents != nil {
		f.incidents.Record(signalID, senderID, violation)
	}
	f.logger.Warn("signal rejected", "signal_id", signalID, "sender_id", senderID, "violation", violation)
	return d
}

func hasPermissions(held, required []string) bool {
	set := make(map[string]bool, len(held))
	for _, p := range held {
		set[p] = true
	}
	for _, r := range required {
		if !set[r] {
			return false
		}
	}
	return true
}
