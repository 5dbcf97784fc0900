// Package rollback implements the EFAP-C rollback controller. The controller
// registers compensation entries for reversible work and issues rollback
// plans; executing a compensation is a collaborator concern.
package rollback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/synaptiq-labs/neurofabric/pkg/signal"
	"github.com/synaptiq-labs/neurofabric/pkg/work"
)

var (
	// ErrNilWorkUnit is returned when registering without a work unit.
	ErrNilWorkUnit = errors.New("rollback: nil work unit")
	// ErrEmptyCompensation is returned when no compensation is supplied.
	ErrEmptyCompensation = errors.New("rollback: compensation required")
	// ErrAlreadyRegistered is returned for duplicate registrations.
	ErrAlreadyRegistered = errors.New("rollback: work already registered")
	// ErrNotRegistered is returned when planning for unregistered work.
	ErrNotRegistered = errors.New("rollback: work not registered")
)

// IrreversibleWorkError reports an attempt to register compensation for work
// declared irreversible. Irreversible work has no undo path; pretending
// otherwise would be worse than refusing.
type IrreversibleWorkError struct {
	WorkID string
}

func (e IrreversibleWorkError) Error() string {
	return fmt.Sprintf("work %s is irreversible and cannot be registered for rollback", e.WorkID)
}

// Entry pairs a reversible work unit with its compensation action.
type Entry struct {
	WorkID       string    `json:"work_id"`
	ParentGoal   string    `json:"parent_goal"`
	Compensation string    `json:"compensation"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Plan is an immutable rollback plan issued for one work item.
type Plan struct {
	PlanID       string    `json:"plan_id"`
	WorkID       string    `json:"work_id"`
	Compensation string    `json:"compensation"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Controller keeps the append-only compensation registry.
type Controller struct {
	mu      sync.Mutex
	entries map[string]Entry
	plans   []Plan
	seq     int
	clock   func() time.Time
}

// NewController creates an empty rollback controller.
func NewController() *Controller {
	return &Controller{
		entries: make(map[string]Entry),
		clock:   time.Now,
	}
}

// WithClock overrides the clock for testing.
func (c *Controller) WithClock(clock func() time.Time) *Controller {
	c.clock = clock
	return c
}

// Register records a compensation for a reversible work unit. Irreversible
// work is refused and duplicate registrations are rejected.
func (c *Controller) Register(unit *work.WorkUnit, compensation string) (Entry, error) {
	if unit == nil {
		return Entry{}, ErrNilWorkUnit
	}
	if compensation == "" {
		return Entry{}, ErrEmptyCompensation
	}
	if unit.Reversibility != signal.Reversible {
		return Entry{}, IrreversibleWorkError{WorkID: unit.WorkID}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[unit.WorkID]; ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrAlreadyRegistered, unit.WorkID)
	}
	entry := Entry{
		WorkID:       unit.WorkID,
		ParentGoal:   unit.ParentGoal,
		Compensation: compensation,
		RegisteredAt: c.clock().UTC(),
	}
	c.entries[unit.WorkID] = entry
	return entry, nil
}

// IssuePlan produces a rollback plan for registered work. The plan is
// appended to the issued-plan log; the controller never executes it.
func (c *Controller) IssuePlan(workID string) (Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[workID]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrNotRegistered, workID)
	}
	c.seq++
	plan := Plan{
		PlanID:       fmt.Sprintf("plan-%d", c.seq),
		WorkID:       workID,
		Compensation: entry.Compensation,
		IssuedAt:     c.clock().UTC(),
	}
	c.plans = append(c.plans, plan)
	return plan, nil
}

// Entry returns the registered compensation for a work id.
func (c *Controller) Entry(workID string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[workID]
	return entry, ok
}

// Plans returns a copy of the append-only issued-plan log.
func (c *Controller) Plans() []Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Plan(nil), c.plans...)
}
