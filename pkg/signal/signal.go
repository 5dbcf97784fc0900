// Package signal defines the NLP-C neural signal wire structure and the
// factory that is the only legal way to construct one.
//
// A NeuralSignal is immutable after construction: it is created once by a
// Factory, consumed by the governance filter and the link transport, and is
// terminal after delivery or rejection. Signals are never reused.
package signal

import (
	"fmt"
	"strconv"

	"github.com/synaptiq-labs/neurofabric/pkg/canonicalize"
)

// RiskLevel grades the blast radius a signal claims for itself.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether the risk level is one of the four defined grades.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Reversibility states whether the effect a signal requests can be undone.
type Reversibility string

const (
	Reversible   Reversibility = "reversible"
	Irreversible Reversibility = "irreversible"
)

// Valid reports whether the reversibility value is defined.
func (r Reversibility) Valid() bool {
	return r == Reversible || r == Irreversible
}

// MaxContextEnvelopeBytes bounds the canonical size of a ContextEnvelope.
const MaxContextEnvelopeBytes = 16 * 1024

// Header carries identity and causal-ordering metadata.
type Header struct {
	SignalID         string `json:"signal_id"`
	ParentSignalID   string `json:"parent_signal_id,omitempty"`
	LogicalTimestamp uint64 `json:"logical_timestamp"`
	SenderID         string `json:"sender_id"`
	ReceiverID       string `json:"receiver_id"`
}

// Payload carries the cognitive content of the signal.
type Payload struct {
	StateDelta         string  `json:"state_delta"`
	IntentReference    string  `json:"intent_reference"`
	ConfidenceEstimate float64 `json:"confidence_estimate"`
}

// SalienceEntry weights one context element.
type SalienceEntry struct {
	Key    string  `json:"key"`
	Weight float64 `json:"weight"`
}

// ContextEnvelope carries bounded compressed context and memory references.
type ContextEnvelope struct {
	CompressedContext string          `json:"compressed_context"`
	MemoryRefs        []string        `json:"memory_refs"`
	SalienceMap       []SalienceEntry `json:"salience_map"`
}

// GovernanceTags carry the inline permission set and risk declaration the
// governance filter evaluates. The core never consults a live authority
// registry; everything needed for the decision rides on the signal.
type GovernanceTags struct {
	Permissions   []string      `json:"permissions"`
	RiskLevel     RiskLevel     `json:"risk_level"`
	Reversibility Reversibility `json:"reversibility"`
}

// Integrity binds the signal content to its sender.
type Integrity struct {
	Checksum  string `json:"checksum"`
	Signature string `json:"signature"`
}

// NeuralSignal is the immutable NLP-C wire unit.
type NeuralSignal struct {
	Header    Header          `json:"header"`
	Payload   Payload         `json:"payload"`
	Context   ContextEnvelope `json:"context"`
	Tags      GovernanceTags  `json:"governance_tags"`
	Integrity Integrity       `json:"integrity"`
}

// ValidationError reports a structurally invalid signal or draft.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("signal: invalid field %s: %s", e.Field, e.Reason)
}

// ComputeChecksum derives the deterministic content checksum of a signal:
// SHA-256 over "signal_id|state_delta|logical_timestamp".
func ComputeChecksum(signalID, stateDelta string, logicalTimestamp uint64) string {
	return canonicalize.HashString(signalID + "|" + stateDelta + "|" + strconv.FormatUint(logicalTimestamp, 10))
}

// EnvelopeSize returns the canonical encoded size of the context envelope.
func (c ContextEnvelope) EnvelopeSize() (int, error) {
	b, err := canonicalize.JCS(c)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Validate checks that every field of the signal is present and coherent.
// A signal failing Validate must never be delivered.
func (s *NeuralSignal) Validate() error {
	switch {
	case s.Header.SignalID == "":
		return &ValidationError{Field: "header.signal_id", Reason: "absent"}
	case s.Header.SenderID == "":
		return &ValidationError{Field: "header.sender_id", Reason: "absent"}
	case s.Header.ReceiverID == "":
		return &ValidationError{Field: "header.receiver_id", Reason: "absent"}
	case s.Header.LogicalTimestamp == 0:
		return &ValidationError{Field: "header.logical_timestamp", Reason: "absent"}
	case s.Payload.StateDelta == "":
		return &ValidationError{Field: "payload.state_delta", Reason: "absent"}
	case s.Payload.IntentReference == "":
		return &ValidationError{Field: "payload.intent_reference", Reason: "absent"}
	case s.Payload.ConfidenceEstimate < 0 || s.Payload.ConfidenceEstimate > 1:
		return &ValidationError{Field: "payload.confidence_estimate", Reason: "outside [0,1]"}
	case !s.Tags.RiskLevel.Valid():
		return &ValidationError{Field: "governance_tags.risk_level", Reason: "unknown grade"}
	case !s.Tags.Reversibility.Valid():
		return &ValidationError{Field: "governance_tags.reversibility", Reason: "unknown value"}
	case s.Tags.Permissions == nil:
		return &ValidationError{Field: "governance_tags.permissions", Reason: "absent"}
	case s.Integrity.Checksum == "":
		return &ValidationError{Field: "integrity.checksum", Reason: "absent"}
	case s.Integrity.Signature == "":
		return &ValidationError{Field: "integrity.signature", Reason: "absent"}
	}

	size, err := s.Context.EnvelopeSize()
	if err != nil {
		return &ValidationError{Field: "context", Reason: err.Error()}
	}
	if size > MaxContextEnvelopeBytes {
		return &ValidationError{
			Field:  "context",
			Reason: fmt.Sprintf("envelope %d bytes exceeds bound %d", size, MaxContextEnvelopeBytes),
		}
	}

	want := ComputeChecksum(s.Header.SignalID, s.Payload.StateDelta, s.Header.LogicalTimestamp)
	if s.Integrity.Checksum != want {
		return &ValidationError{Field: "integrity.checksum", Reason: "does not match content"}
	}
	return nil
}
