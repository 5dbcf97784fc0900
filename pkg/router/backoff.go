package router

import (
	"sync"
	"time"
)

// maxBackoff caps retry delay regardless of attempt count.
const maxBackoff = 60 * time.Second

// FailureRerouter tracks retry attempts per work item and hands out the
// reference backoff schedule for the rest of the system: exponential,
// capped at 60 seconds.
type FailureRerouter struct {
	mu       sync.Mutex
	attempts map[string]int
}

// NewFailureRerouter creates a rerouter with no recorded attempts.
func NewFailureRerouter() *FailureRerouter {
	return &FailureRerouter{attempts: make(map[string]int)}
}

// RecordAttempt increments and returns the attempt count for a work item.
func (f *FailureRerouter) RecordAttempt(workID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[workID]++
	return f.attempts[workID]
}

// Attempts returns the recorded attempt count for a work item.
func (f *FailureRerouter) Attempts(workID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[workID]
}

// Reset clears the attempt count, typically after a successful reroute.
func (f *FailureRerouter) Reset(workID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attempts, workID)
}

// Backoff returns min(2^attempt, 60) seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		return time.Second
	}
	// 2^6 = 64 already exceeds the cap.
	if attempt >= 6 {
		return maxBackoff
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// NextBackoff records an attempt and returns the delay before the next try.
func (f *FailureRerouter) NextBackoff(workID string) time.Duration {
	return Backoff(f.RecordAttempt(workID))
}
