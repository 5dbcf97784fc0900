package signal

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/synaptiq-labs/neurofabric/pkg/identity"
)

// ErrRawTransmissionDisabled is returned by the permanently disabled raw
// transmission entry points. There is no code path that sends unstructured
// content through the fabric; the functions exist so the prohibition is
// discoverable and testable, not to be handled and retried.
var ErrRawTransmissionDisabled = errors.New("signal: raw transmission is permanently disabled; construct a NeuralSignal via Factory.Create")

// Draft holds the mandatory inputs for signal construction. Every field
// except ParentSignalID is required; the factory refuses drafts with any
// payload field left at its zero value.
type Draft struct {
	ReceiverID      string
	StateDelta      string
	IntentReference string
	Confidence      float64
	Context         string
	MemoryRefs      []string
	Salience        []SalienceEntry
	Permissions     []string
	RiskLevel       RiskLevel
	Reversibility   Reversibility
	ParentSignalID  string
}

// Factory is the single source of logical time for its sender identity.
// It owns a private Lamport clock: each Create advances the clock by one, so
// no two signals from the same factory ever share a timestamp.
type Factory struct {
	mu       sync.Mutex
	clock    uint64
	identity *identity.SenderIdentity
}

// NewFactory creates a factory bound to the given sender identity.
func NewFactory(ident *identity.SenderIdentity) *Factory {
	return &Factory{identity: ident}
}

// SenderID returns the identity this factory stamps on every signal.
func (f *Factory) SenderID() string { return f.identity.ID() }

// Clock returns the current Lamport clock value (the timestamp of the most
// recently created signal, or 0 if none has been created).
func (f *Factory) Clock() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

// Create builds an immutable NeuralSignal from the draft, stamping the next
// Lamport timestamp, the content checksum and the identity-bound signature.
// Invalid drafts never produce a signal.
func (f *Factory) Create(d Draft) (*NeuralSignal, error) {
	if err := checkDraft(d); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.clock++
	ts := f.clock
	f.mu.Unlock()

	sig := &NeuralSignal{
		Header: Header{
			SignalID:         uuid.New().String(),
			ParentSignalID:   d.ParentSignalID,
			LogicalTimestamp: ts,
			SenderID:         f.identity.ID(),
			ReceiverID:       d.ReceiverID,
		},
		Payload: Payload{
			StateDelta:         d.StateDelta,
			IntentReference:    d.IntentReference,
			ConfidenceEstimate: d.Confidence,
		},
		Context: ContextEnvelope{
			CompressedContext: d.Context,
			MemoryRefs:        append([]string(nil), d.MemoryRefs...),
			SalienceMap:       append([]SalienceEntry(nil), d.Salience...),
		},
		Tags: GovernanceTags{
			Permissions:   append([]string(nil), d.Permissions...),
			RiskLevel:     d.RiskLevel,
			Reversibility: d.Reversibility,
		},
	}

	sig.Integrity.Checksum = ComputeChecksum(sig.Header.SignalID, sig.Payload.StateDelta, ts)
	sig.Integrity.Signature = f.identity.Sign(f.identity.ID() + "|" + sig.Integrity.Checksum)

	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return sig, nil
}

// RawTransmission is a permanently disabled entry point. Attempting to send
// raw bytes past the signal schema always fails.
func (f *Factory) RawTransmission() error { return ErrRawTransmissionDisabled }

// RawPrompt is a permanently disabled entry point. Attempting to send an
// unstructured prompt past the signal schema always fails.
func (f *Factory) RawPrompt() error { return ErrRawTransmissionDisabled }

func checkDraft(d Draft) error {
	switch {
	case d.ReceiverID == "":
		return &ValidationError{Field: "receiver_id", Reason: "required"}
	case d.StateDelta == "":
		return &ValidationError{Field: "state_delta", Reason: "required"}
	case d.IntentReference == "":
		return &ValidationError{Field: "intent_reference", Reason: "required"}
	case d.Confidence < 0 || d.Confidence > 1:
		return &ValidationError{Field: "confidence", Reason: "outside [0,1]"}
	case d.Context == "":
		return &ValidationError{Field: "context", Reason: "required"}
	case d.MemoryRefs == nil:
		return &ValidationError{Field: "memory_refs", Reason: "required (may be empty, not nil)"}
	case d.Permissions == nil:
		return &ValidationError{Field: "permissions", Reason: "required (may be empty, not nil)"}
	case !d.RiskLevel.Valid():
		return &ValidationError{Field: "risk_level", Reason: "unknown grade"}
	case !d.Reversibility.Valid():
		return &ValidationError{Field: "reversibility", Reason: "unknown value"}
	}
	return nil
}
