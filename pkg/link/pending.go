package link

import (
	"context"
	"sync"
)

// PendingStore tracks per-receiver pending message counts. Implementations
// must make Incr atomic with respect to the capacity check so concurrent
// senders cannot overshoot a receiver's bound.
type PendingStore interface {
	// Incr increments the receiver's pending count if it is below capacity.
	// It returns false, without incrementing, when the receiver is full.
	Incr(ctx context.Context, receiverID string, capacity int) (bool, error)

	// Decr decrements the receiver's pending count, flooring at zero, and
	// returns the new count.
	Decr(ctx context.Context, receiverID string) (int, error)

	// Count returns the receiver's current pending count.
	Count(ctx context.Context, receiverID string) (int, error)
}

// MemoryPendingStore is the in-process PendingStore.
type MemoryPendingStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryPendingStore creates an empty in-memory store.
func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{counts: make(map[string]int)}
}

// Incr implements PendingStore.
func (m *MemoryPendingStore) Incr(_ context.Context, receiverID string, capacity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[receiverID] >= capacity {
		return false, nil
	}
	m.counts[receiverID]++
	return true, nil
}

// Decr implements PendingStore.
func (m *MemoryPendingStore) Decr(_ context.Context, receiverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[receiverID] > 0 {
		m.counts[receiverID]--
	}
	return m.counts[receiverID], nil
}

// Count implements PendingStore.
func (m *MemoryPendingStore) Count(_ context.Context, receiverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[receiverID], nil
}
