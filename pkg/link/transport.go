// Package link implements the NLP-C causally-ordered, backpressure-bounded
// delivery channel between named endpoints.
//
// The transport models a single-writer-per-receiver causal log with explicit
// flow control, not a general pub/sub: each receiver has a highest delivered
// timestamp and a bounded pending count. Causally stale sends and sends past
// capacity fail synchronously; nothing is queued or silently dropped.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/synaptiq-labs/neurofabric/pkg/identity"
	"github.com/synaptiq-labs/neurofabric/pkg/signal"
)

// DefaultCapacity is the per-receiver pending bound used when a receiver has
// not been explicitly registered.
const DefaultCapacity = 100

var (
	// ErrNilSignal is returned when Send is called without a signal.
	ErrNilSignal = errors.New("link: nil signal")
	// ErrSenderRateLimited is returned when a sender exceeds its send rate.
	ErrSenderRateLimited = errors.New("link: sender rate limit exceeded")
	// ErrTokenRequired is returned when endpoint registration lacks a sender token.
	ErrTokenRequired = errors.New("link: sender token required for endpoint registration")
)

// CausalViolationError reports a send whose timestamp is not strictly newer
// than every prior delivery to the receiver.
type CausalViolationError struct {
	ReceiverID    string
	Timestamp     uint64
	LastDelivered uint64
}

func (e *CausalViolationError) Error() string {
	return fmt.Sprintf("link: causal violation for receiver %s: timestamp %d <= last delivered %d",
		e.ReceiverID, e.Timestamp, e.LastDelivered)
}

// BackpressureError reports a send refused because the receiver is at
// capacity. The signal is not queued; the caller must retry or drop.
type BackpressureError struct {
	ReceiverID string
	Capacity   int
}

func (e *BackpressureError) Error() string {
	return fmt.Sprintf("link: backpressure for receiver %s: pending count at capacity %d",
		e.ReceiverID, e.Capacity)
}

// DeliveryRecord is the immutable receipt for one accepted delivery.
type DeliveryRecord struct {
	SignalID         string    `json:"signal_id"`
	SenderID         string    `json:"sender_id"`
	ReceiverID       string    `json:"receiver_id"`
	LogicalTimestamp uint64    `json:"logical_timestamp"`
	DeliveredAt      time.Time `json:"delivered_at"`
}

type receiverState struct {
	lastTimestamp uint64
	capacity      int
	protocol      string
}

// Transport delivers signals to named receivers under causal ordering and
// backpressure. All mutable state is mutex-guarded; ordering guarantees are
// per-receiver only.
type Transport struct {
	mu         sync.Mutex
	receivers  map[string]*receiverState
	deliveries []DeliveryRecord

	pending PendingStore
	limiter *SenderLimiter
	tokens  *identity.TokenManager

	defaultCapacity int
	clock           func() time.Time
	logger          *slog.Logger
}

// NewTransport creates a transport with in-memory pending counts and the
// default per-receiver capacity.
func NewTransport() *Transport {
	return &Transport{
		receivers:       make(map[string]*receiverState),
		pending:         NewMemoryPendingStore(),
		defaultCapacity: DefaultCapacity,
		clock:           time.Now,
		logger:          slog.Default().With("component", "link"),
	}
}

// WithPendingStore swaps the pending-count backend (e.g. Redis for a
// multi-process fabric).
func (t *Transport) WithPendingStore(store PendingStore) *Transport {
	t.pending = store
	return t
}

// WithSenderLimiter enables per-sender send rate limiting.
func (t *Transport) WithSenderLimiter(l *SenderLimiter) *Transport {
	t.limiter = l
	return t
}

// WithTokenVerifier requires endpoint registrations to present a valid
// sender token minted by the governance layer.
func (t *Transport) WithTokenVerifier(tm *identity.TokenManager) *Transport {
	t.tokens = tm
	return t
}

// WithDefaultCapacity overrides the capacity applied to lazily-created
// receivers.
func (t *Transport) WithDefaultCapacity(capacity int) *Transport {
	if capacity > 0 {
		t.defaultCapacity = capacity
	}
	return t
}

// WithClock overrides the clock for testing.
func (t *Transport) WithClock(clock func() time.Time) *Transport {
	t.clock = clock
	return t
}

// RegisterEndpoint declares a receiver with an explicit capacity and NLP-C
// protocol version. The version must satisfy the transport's compatibility
// constraint; when a token verifier is configured, the registration must
// carry a valid sender token whose subject matches the endpoint id.
func (t *Transport) RegisterEndpoint(receiverID, protocolVersion, token string, capacity int) error {
	if err := CheckCompatibility(protocolVersion); err != nil {
		return err
	}
	if t.tokens != nil {
		if token == "" {
			return ErrTokenRequired
		}
		claims, err := t.tokens.Verify(token)
		if err != nil {
			return err
		}
		if claims.Subject != receiverID {
			return fmt.Errorf("link: token subject %q does not match endpoint %q", claims.Subject, receiverID)
		}
	}
	if capacity <= 0 {
		capacity = t.defaultCapacity
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.receivers[receiverID]; ok {
		st.capacity = capacity
		st.protocol = protocolVersion
		return nil
	}
	t.receivers[receiverID] = &receiverState{capacity: capacity, protocol: protocolVersion}
	return nil
}

// Send delivers a signal to its receiver. It fails fast with a
// CausalViolationError when the signal is not causally newer than every
// prior delivery to that receiver, and with a BackpressureError when the
// receiver's pending count is at capacity. Neither failure queues the
// signal; retry policy is a caller concern.
func (t *Transport) Send(ctx context.Context, sig *signal.NeuralSignal) (*DeliveryRecord, error) {
	if sig == nil {
		return nil, ErrNilSignal
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	if t.limiter != nil && !t.limiter.Allow(sig.Header.SenderID) {
		return nil, fmt.Errorf("%w: sender %s", ErrSenderRateLimited, sig.Header.SenderID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.receivers[sig.Header.ReceiverID]
	if !ok {
		st = &receiverState{capacity: t.defaultCapacity}
		t.receivers[sig.Header.ReceiverID] = st
	}

	if sig.Header.LogicalTimestamp <= st.lastTimestamp {
		return nil, &CausalViolationError{
			ReceiverID:    sig.Header.ReceiverID,
			Timestamp:     sig.Header.LogicalTimestamp,
			LastDelivered: st.lastTimestamp,
		}
	}

	admitted, err := t.pending.Incr(ctx, sig.Header.ReceiverID, st.capacity)
	if err != nil {
		return nil, fmt.Errorf("link: pending store: %w", err)
	}
	if !admitted {
		return nil, &BackpressureError{ReceiverID: sig.Header.ReceiverID, Capacity: st.capacity}
	}

	st.lastTimestamp = sig.Header.LogicalTimestamp
	rec := DeliveryRecord{
		SignalID:         sig.Header.SignalID,
		SenderID:         sig.Header.SenderID,
		ReceiverID:       sig.Header.ReceiverID,
		LogicalTimestamp: sig.Header.LogicalTimestamp,
		DeliveredAt:      t.clock().UTC(),
	}
	t.deliveries = append(t.deliveries, rec)
	t.logger.Debug("signal delivered",
		"signal_id", rec.SignalID, "receiver_id", rec.ReceiverID, "timestamp", rec.LogicalTimestamp)
	return &rec, nil
}

// Acknowledge marks one message as processed by the receiver, freeing one
// unit of capacity. The pending count never goes below zero.
func (t *Transport) Acknowledge(ctx context.Context, receiverID string) (int, error) {
	return t.pending.Decr(ctx, receiverID)
}

// Pending returns the current pending count for a receiver.
func (t *Transport) Pending(ctx context.Context, receiverID string) (int, error) {
	return t.pending.Count(ctx, receiverID)
}

// LastDelivered returns the highest timestamp delivered to a receiver.
func (t *Transport) LastDelivered(receiverID string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.receivers[receiverID]; ok {
		return st.lastTimestamp
	}
	return 0
}

// Deliveries returns a copy of the delivery log.
func (t *Transport) Deliveries() []DeliveryRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]DeliveryRecord(nil), t.deliveries...)
}

// VerifyOrdering is a pure check that a signal sequence is strictly
// increasing in logical timestamp.
func VerifyOrdering(signals []*signal.NeuralSignal) bool {
	for i := 1; i < len(signals); i++ {
		if signals[i].Header.LogicalTimestamp <= signals[i-1].Header.LogicalTimestamp {
			return false
		}
	}
	return true
}
