package governance

import (
	"fmt"
	"sync"
	"time"

	"github.com/synaptiq-labs/neurofabric/pkg/canonicalize"
)

// FilterIncident is the receipt emitted for every rejected signal.
// Every refusal is receipted; there are no silent drops.
type FilterIncident struct {
	IncidentID  string    `json:"incident_id"`
	SignalID    string    `json:"signal_id"`
	SenderID    string    `json:"sender_id"`
	Violation   string    `json:"violation"`
	LoggedAt    time.Time `json:"logged_at"`
	ContentHash string    `json:"content_hash"`
}

// IncidentLedger records filter incidents for audit. Append-only.
type IncidentLedger struct {
	mu        sync.Mutex
	incidents []FilterIncident
	seq       int64
	clock     func() time.Time
	handlers  []func(FilterIncident)
}

// NewIncidentLedger creates an empty ledger.
func NewIncidentLedger() *IncidentLedger {
	return &IncidentLedger{clock: time.Now}
}

// WithClock overrides the clock for testing.
func (l *IncidentLedger) WithClock(clock func() time.Time) *IncidentLedger {
	l.clock = clock
	return l
}

// OnIncident registers a handler invoked for each recorded incident, e.g. to
// mirror incidents into the audit store.
func (l *IncidentLedger) OnIncident(h func(FilterIncident)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Record appends an incident and returns its receipt.
func (l *IncidentLedger) Record(signalID, senderID, violation string) FilterIncident {
	l.mu.Lock()
	l.seq++
	inc := FilterIncident{
		IncidentID: fmt.Sprintf("incident-%d", l.seq),
		SignalID:   signalID,
		SenderID:   senderID,
		Violation:  violation,
		LoggedAt:   l.clock().UTC(),
	}
	inc.ContentHash = canonicalize.HashString(inc.IncidentID + ":" + signalID + ":" + senderID + ":" + violation)
	l.incidents = append(l.incidents, inc)
	handlers := make([]func(FilterIncident), len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()

	for _, h := range handlers {
		h(inc)
	}
	return inc
}

// QueryBySender returns all incidents attributed to one sender.
func (l *IncidentLedger) QueryBySender(senderID string) []FilterIncident {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []FilterIncident
	for _, inc := range l.incidents {
		if inc.SenderID == senderID {
			out = append(out, inc)
		}
	}
	return out
}

// Get retrieves an incident by id.
func (l *IncidentLedger) Get(incidentID string) (FilterIncident, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, inc := range l.incidents {
		if inc.IncidentID == incidentID {
			return inc, true
		}
	}
	return FilterIncident{}, false
}

// Length returns the number of recorded incidents.
func (l *IncidentLedger) Length() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.incidents)
}
