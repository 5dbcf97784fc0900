// Package audit implements append-only trail storage with content addressing
// and hash chaining. Every governance decision, delivery, stage transition
// and validation lands here; nothing is ever updated or deleted.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synaptiq-labs/neurofabric/pkg/canonicalize"
)

var (
	ErrEntryNotFound = errors.New("audit: entry not found")
	ErrChainBroken   = errors.New("audit: hash chain is broken")
)

// EntryType categorizes trail entries.
type EntryType string

const (
	EntrySignalAccepted  EntryType = "signal_accepted"
	EntrySignalRejected  EntryType = "signal_rejected"
	EntryIncident        EntryType = "incident"
	EntryDelivery        EntryType = "delivery"
	EntryStageTransition EntryType = "stage_transition"
	EntryOutcome         EntryType = "outcome"
	EntryRouting         EntryType = "routing"
	EntryRollback        EntryType = "rollback"
)

// Entry is a single immutable entry in the trail.
type Entry struct {
	EntryID      string            `json:"entry_id"`
	Sequence     uint64            `json:"sequence"`
	Timestamp    time.Time         `json:"timestamp"`
	EntryType    EntryType         `json:"entry_type"`
	Subject      string            `json:"subject"`
	Action       string            `json:"action"`
	Payload      json.RawMessage   `json:"payload"`
	PayloadHash  string            `json:"payload_hash"`
	PreviousHash string            `json:"previous_hash"`
	EntryHash    string            `json:"entry_hash"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// EntryHandler is called when new entries are appended.
type EntryHandler func(entry *Entry)

// Trail is an in-memory, append-only audit log with hash chaining.
type Trail struct {
	mu        sync.RWMutex
	entries   []*Entry
	entryByID map[string]*Entry
	sequence  uint64
	chainHead string
	handlers  []EntryHandler
	clock     func() time.Time
}

// NewTrail creates an empty hash-chained trail.
func NewTrail() *Trail {
	return &Trail{
		entryByID: make(map[string]*Entry),
		chainHead: "genesis",
		clock:     time.Now,
	}
}

// WithClock overrides the clock for testing.
func (t *Trail) WithClock(clock func() time.Time) *Trail {
	t.clock = clock
	return t
}

// Append adds a new entry and extends the chain.
func (t *Trail) Append(entryType EntryType, subject, action string, payload any, metadata map[string]string) (*Entry, error) {
	payloadBytes, err := canonicalize.JCS(payload)
	if err != nil {
		return nil, fmt.Errorf("audit: serialize payload: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sequence++
	entry := &Entry{
		EntryID:      uuid.New().String(),
		Sequence:     t.sequence,
		Timestamp:    t.clock().UTC(),
		EntryType:    entryType,
		Subject:      subject,
		Action:       action,
		Payload:      payloadBytes,
		PayloadHash:  canonicalize.HashBytes(payloadBytes),
		PreviousHash: t.chainHead,
		Metadata:     metadata,
	}

	entryHash, err := computeEntryHash(entry)
	if err != nil {
		t.sequence--
		return nil, fmt.Errorf("audit: compute entry hash: %w", err)
	}
	entry.EntryHash = entryHash
	t.chainHead = entryHash

	t.entries = append(t.entries, entry)
	t.entryByID[entry.EntryID] = entry

	for _, h := range t.handlers {
		h(entry)
	}
	return entry, nil
}

// computeEntryHash hashes the chaining-relevant fields. PreviousHash is part
// of the hash, so any rewrite breaks every later entry.
func computeEntryHash(entry *Entry) (string, error) {
	hashable := struct {
		Sequence     uint64    `json:"sequence"`
		Timestamp    time.Time `json:"timestamp"`
		EntryType    EntryType `json:"entry_type"`
		Subject      string    `json:"subject"`
		Action       string    `json:"action"`
		PayloadHash  string    `json:"payload_hash"`
		PreviousHash string    `json:"previous_hash"`
	}{
		Sequence:     entry.Sequence,
		Timestamp:    entry.Timestamp,
		EntryType:    entry.EntryType,
		Subject:      entry.Subject,
		Action:       entry.Action,
		PayloadHash:  entry.PayloadHash,
		PreviousHash: entry.PreviousHash,
	}
	data, err := canonicalize.JCS(hashable)
	if err != nil {
		return "", err
	}
	return canonicalize.HashBytes(data), nil
}

// Get retrieves an entry by id.
func (t *Trail) Get(entryID string) (*Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entryByID[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// ChainHead returns the current chain head hash.
func (t *Trail) ChainHead() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.chainHead
}

// Size returns the number of entries in the trail.
func (t *Trail) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// QueryFilter defines filtering criteria for trail queries.
type QueryFilter struct {
	EntryType  EntryType
	Subject    string
	StartSeq   uint64
	EndSeq     uint64
	MaxResults int
}

func (f QueryFilter) matches(e *Entry) bool {
	if f.EntryType != "" && e.EntryType != f.EntryType {
		return false
	}
	if f.Subject != "" && e.Subject != f.Subject {
		return false
	}
	if f.StartSeq > 0 && e.Sequence < f.StartSeq {
		return false
	}
	if f.EndSeq > 0 && e.Sequence > f.EndSeq {
		return false
	}
	return true
}

// Query returns entries matching the filter, in append order.
func (t *Trail) Query(filter QueryFilter) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	results := make([]*Entry, 0)
	for _, e := range t.entries {
		if filter.matches(e) {
			results = append(results, e)
			if filter.MaxResults > 0 && len(results) >= filter.MaxResults {
				break
			}
		}
	}
	return results
}

// VerifyChain recomputes every entry hash and checks the chain links.
func (t *Trail) VerifyChain() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	expectedPrev := "genesis"
	for i, entry := range t.entries {
		if entry.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has previous_hash %s, expected %s",
				ErrChainBroken, i, entry.PreviousHash, expectedPrev)
		}
		computed, err := computeEntryHash(entry)
		if err != nil {
			return fmt.Errorf("%w: entry %d hash computation failed: %w", ErrChainBroken, i, err)
		}
		if computed != entry.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch (computed %s, stored %s)",
				ErrChainBroken, i, computed, entry.EntryHash)
		}
		expectedPrev = entry.EntryHash
	}
	return nil
}

// AddHandler registers a handler invoked for every appended entry. Handlers
// run under the write lock and must not call back into the trail.
func (t *Trail) AddHandler(h EntryHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}
