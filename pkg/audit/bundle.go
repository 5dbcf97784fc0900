package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/synaptiq-labs/neurofabric/pkg/canonicalize"
)

// Bundle is an exportable, self-verifying slice of the trail.
type Bundle struct {
	BundleID   string    `json:"bundle_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	StartSeq   uint64    `json:"start_sequence"`
	EndSeq     uint64    `json:"end_sequence"`
	EntryCount int       `json:"entry_count"`
	Entries    []*Entry  `json:"entries"`
	ChainHead  string    `json:"chain_head"`
	BundleHash string    `json:"bundle_hash"`
}

// ExportBundle packages the entries matching the filter for offsite storage.
func (t *Trail) ExportBundle(filter QueryFilter) (*Bundle, error) {
	entries := t.Query(filter)
	if len(entries) == 0 {
		return nil, fmt.Errorf("audit: no entries match filter")
	}

	bundle := &Bundle{
		BundleID:   uuid.New().String(),
		Version:    "1.0.0",
		CreatedAt:  t.clock().UTC(),
		StartSeq:   entries[0].Sequence,
		EndSeq:     entries[len(entries)-1].Sequence,
		EntryCount: len(entries),
		Entries:    entries,
		ChainHead:  entries[len(entries)-1].EntryHash,
	}

	data, err := canonicalize.JCS(bundle.Entries)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal bundle entries: %w", err)
	}
	bundle.BundleHash = canonicalize.HashBytes(data)
	return bundle, nil
}

// VerifyBundle checks a bundle's hash and internal chain links.
func VerifyBundle(bundle *Bundle) error {
	if len(bundle.Entries) == 0 {
		return fmt.Errorf("audit: bundle is empty")
	}

	data, err := canonicalize.JCS(bundle.Entries)
	if err != nil {
		return fmt.Errorf("audit: marshal bundle entries: %w", err)
	}
	if canonicalize.HashBytes(data) != bundle.BundleHash {
		return fmt.Errorf("audit: bundle hash mismatch")
	}

	for i := 1; i < len(bundle.Entries); i++ {
		if bundle.Entries[i].PreviousHash != bundle.Entries[i-1].EntryHash {
			return fmt.Errorf("%w: bundle entry %d", ErrChainBroken, i)
		}
	}
	return nil
}
