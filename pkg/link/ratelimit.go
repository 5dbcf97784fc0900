package link

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SenderLimiter applies a token-bucket send rate per sender identity. Idle
// sender entries are evicted in the background so the map does not grow
// unboundedly with short-lived senders.
type SenderLimiter struct {
	mu      sync.Mutex
	senders map[string]*senderEntry
	rps     rate.Limit
	burst   int
}

type senderEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSenderLimiter creates a limiter allowing rps sends per second with the
// given burst per sender.
func NewSenderLimiter(rps int, burst int) *SenderLimiter {
	sl := &SenderLimiter{
		senders: make(map[string]*senderEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go sl.cleanup()
	return sl
}

// Allow reports whether the sender may send now.
func (sl *SenderLimiter) Allow(senderID string) bool {
	sl.mu.Lock()
	e, ok := sl.senders[senderID]
	if !ok {
		e = &senderEntry{limiter: rate.NewLimiter(sl.rps, sl.burst)}
		sl.senders[senderID] = e
	}
	e.lastSeen = time.Now()
	sl.mu.Unlock()

	return e.limiter.Allow()
}

func (sl *SenderLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)

		sl.mu.Lock()
		for id, e := range sl.senders {
			if time.Since(e.lastSeen) > 3*time.Minute {
				delete(sl.senders, id)
			}
		}
		sl.mu.Unlock()
	}
}
