// Package outcome implements the EFAP-C outcome validator, the stage-5 gate
// of the execution lifecycle. No work item reaches FEEDBACK_SIGNAL without
// passing here.
package outcome

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/synaptiq-labs/neurofabric/pkg/laws"
)

// Status classifies a recorded validation.
type Status string

const (
	StatusValid            Status = "VALID"
	StatusNondeterministic Status = "INVALID_NONDETERMINISTIC"
	StatusNoIntegrity      Status = "INVALID_INTEGRITY"
)

var (
	// ErrSkipValidationDisabled is the permanent refusal of the validation
	// bypass: every outcome is validated, no exceptions.
	ErrSkipValidationDisabled = errors.New("outcome: skipping validation is permanently disabled")
)

// IntegrityError reports an outcome whose effect does not hold together.
// Like a determinism failure this is a violated system invariant, not a
// recoverable condition.
type IntegrityError struct {
	WorkID string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("outcome %s failed integrity validation", e.WorkID)
}

// Validation is the immutable record of one validation. Failed validations
// are recorded before the failure propagates, so the log always explains a
// halted execution.
type Validation struct {
	WorkID         string    `json:"work_id"`
	Status         Status    `json:"status"`
	ExpectedEffect string    `json:"expected_effect"`
	ActualEffect   string    `json:"actual_effect"`
	ValidatedAt    time.Time `json:"validated_at"`
}

// Validator records and enforces outcome validity.
type Validator struct {
	mu      sync.Mutex
	history []Validation
	clock   func() time.Time
	logger  *slog.Logger
}

// NewValidator creates an outcome validator with an empty history.
func NewValidator() *Validator {
	return &Validator{
		clock:  time.Now,
		logger: slog.Default().With("component", "outcome"),
	}
}

// WithClock overrides the clock for testing.
func (v *Validator) WithClock(clock func() time.Time) *Validator {
	v.clock = clock
	return v
}

// Validate checks an execution outcome. A non-deterministic outcome is
// recorded as INVALID_NONDETERMINISTIC and fails with a Law 3 violation; a
// non-integral outcome is recorded as INVALID_INTEGRITY and fails with an
// IntegrityError. Recording always happens before the error is returned.
func (v *Validator) Validate(workID, expectedEffect, actualEffect string, isDeterministic, hasIntegrity bool) (Validation, error) {
	switch {
	case !isDeterministic:
		rec := v.record(workID, StatusNondeterministic, expectedEffect, actualEffect)
		v.logger.Error("non-deterministic outcome", "work_id", workID)
		return rec, laws.DeterminismViolation{WorkID: workID}
	case !hasIntegrity:
		rec := v.record(workID, StatusNoIntegrity, expectedEffect, actualEffect)
		v.logger.Error("outcome integrity failure", "work_id", workID)
		return rec, IntegrityError{WorkID: workID}
	default:
		return v.record(workID, StatusValid, expectedEffect, actualEffect), nil
	}
}

// SkipValidation is a permanently disabled entry point.
func (v *Validator) SkipValidation(workID string) error {
	return ErrSkipValidationDisabled
}

// History returns a copy of the append-only validation log.
func (v *Validator) History() []Validation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Validation(nil), v.history...)
}

// HistoryFor returns the recorded validations for one work id.
func (v *Validator) HistoryFor(workID string) []Validation {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []Validation
	for _, rec := range v.history {
		if rec.WorkID == workID {
			out = append(out, rec)
		}
	}
	return out
}

func (v *Validator) record(workID string, status Status, expected, actual string) Validation {
	rec := Validation{
		WorkID:         workID,
		Status:         status,
		ExpectedEffect: expected,
		ActualEffect:   actual,
		ValidatedAt:    v.clock().UTC(),
	}
	v.mu.Lock()
	v.history = append(v.history, rec)
	v.mu.Unlock()
	return rec
}
