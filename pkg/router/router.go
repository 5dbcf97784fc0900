// Package router implements the EFAP-C superfluid router. The router, not
// the agent, is the unit of continuity: callers always get a live agent or
// an explicit no-route failure, never a silent stall (Law 5).
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RouteStatus is the derived health of a route.
type RouteStatus string

const (
	// StatusAvailable means no agent on the route has failed.
	StatusAvailable RouteStatus = "AVAILABLE"
	// StatusDegraded means some but not all agents have failed.
	StatusDegraded RouteStatus = "DEGRADED"
	// StatusBlocked means every agent on the route has failed.
	StatusBlocked RouteStatus = "BLOCKED"
)

var (
	// ErrEmptyRoute is returned when a route is created with no agents.
	ErrEmptyRoute = errors.New("router: route requires at least one agent")
	// ErrUnknownRoute is returned for route ids the router does not own.
	ErrUnknownRoute = errors.New("router: unknown route")
	// ErrAgentNotOnRoute is returned when marking or recovering an agent the
	// route does not contain.
	ErrAgentNotOnRoute = errors.New("router: agent not on route")
)

// NoRouteError reports that every agent on a route has failed. This is an
// explicit no-capacity condition; callers retry with their own backoff.
type NoRouteError struct {
	RouteID string
	WorkID  string
}

func (e NoRouteError) Error() string {
	return fmt.Sprintf("no available agent on route %s for work %s", e.RouteID, e.WorkID)
}

// Route groups candidate agents for one logical execution path.
type Route struct {
	RouteID  string      `json:"route_id"`
	AgentIDs []string    `json:"agent_ids"`
	Failed   []string    `json:"failed_agents"`
	Status   RouteStatus `json:"status"`
}

// RoutingDecision is the immutable record of one routing choice.
type RoutingDecision struct {
	WorkID         string    `json:"work_id"`
	RouteID        string    `json:"route_id"`
	AgentID        string    `json:"agent_id"`
	PreferredAgent string    `json:"preferred_agent,omitempty"`
	Rerouted       bool      `json:"rerouted"`
	DecidedAt      time.Time `json:"decided_at"`
}

type routeState struct {
	agentIDs []string
	failed   map[string]bool
}

func (r *routeState) status() RouteStatus {
	switch {
	case len(r.failed) == 0:
		return StatusAvailable
	case len(r.failed) == len(r.agentIDs):
		return StatusBlocked
	default:
		return StatusDegraded
	}
}

// Router owns routes and their routing history.
type Router struct {
	mu      sync.Mutex
	routes  map[string]*routeState
	history []RoutingDecision
	clock   func() time.Time
	logger  *slog.Logger
}

// New creates an empty router.
func New() *Router {
	return &Router{
		routes: make(map[string]*routeState),
		clock:  time.Now,
		logger: slog.Default().With("component", "router"),
	}
}

// WithClock overrides the clock for testing.
func (r *Router) WithClock(clock func() time.Time) *Router {
	r.clock = clock
	return r
}

// CreateRoute registers an ordered list of candidate agents and returns the
// new route, AVAILABLE with an empty failed set.
func (r *Router) CreateRoute(agentIDs []string) (Route, error) {
	if len(agentIDs) == 0 {
		return Route{}, ErrEmptyRoute
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := "route-" + uuid.New().String()
	state := &routeState{
		agentIDs: append([]string(nil), agentIDs...),
		failed:   make(map[string]bool),
	}
	r.routes[id] = state
	return r.snapshot(id, state), nil
}

// Route picks an agent for a work item. The preferred agent is used when it
// is available; otherwise the first available agent is picked and the
// decision is flagged rerouted. With no preference the first available agent
// is picked without the reroute flag. When every agent has failed the call
// fails with NoRouteError.
func (r *Router) Route(workID, routeID, preferredAgent string) (RoutingDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.routes[routeID]
	if !ok {
		return RoutingDecision{}, fmt.Errorf("%w: %s", ErrUnknownRoute, routeID)
	}

	var available []string
	for _, id := range state.agentIDs {
		if !state.failed[id] {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		return RoutingDecision{}, NoRouteError{RouteID: routeID, WorkID: workID}
	}

	chosen := available[0]
	rerouted := false
	if preferredAgent != "" {
		rerouted = true
		for _, id := range available {
			if id == preferredAgent {
				chosen = id
				rerouted = false
				break
			}
		}
	}

	decision := RoutingDecision{
		WorkID:         workID,
		RouteID:        routeID,
		AgentID:        chosen,
		PreferredAgent: preferredAgent,
		Rerouted:       rerouted,
		DecidedAt:      r.clock().UTC(),
	}
	r.history = append(r.history, decision)
	if rerouted {
		r.logger.Info("work rerouted",
			"work_id", workID, "route_id", routeID,
			"preferred", preferredAgent, "chosen", chosen)
	}
	return decision, nil
}

// MarkFailed records an agent failure and recomputes the route status.
func (r *Router) MarkFailed(routeID, agentID string) (Route, error) {
	return r.setFailed(routeID, agentID, true)
}

// Recover clears an agent failure and recomputes the route status.
func (r *Router) Recover(routeID, agentID string) (Route, error) {
	return r.setFailed(routeID, agentID, false)
}

// Lookup returns the current state of a route.
func (r *Router) Lookup(routeID string) (Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.routes[routeID]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, routeID)
	}
	return r.snapshot(routeID, state), nil
}

// History returns a copy of the append-only decision log.
func (r *Router) History() []RoutingDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RoutingDecision(nil), r.history...)
}

func (r *Router) setFailed(routeID, agentID string, failed bool) (Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.routes[routeID]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, routeID)
	}
	onRoute := false
	for _, id := range state.agentIDs {
		if id == agentID {
			onRoute = true
			break
		}
	}
	if !onRoute {
		return Route{}, fmt.Errorf("%w: %s on %s", ErrAgentNotOnRoute, agentID, routeID)
	}

	if failed {
		state.failed[agentID] = true
	} else {
		delete(state.failed, agentID)
	}
	return r.snapshot(routeID, state), nil
}

func (r *Router) snapshot(routeID string, state *routeState) Route {
	failed := make([]string, 0, len(state.failed))
	for _, id := range state.agentIDs {
		if state.failed[id] {
			failed = append(failed, id)
		}
	}
	return Route{
		RouteID:  routeID,
		AgentIDs: append([]string(nil), state.agentIDs...),
		Failed:   failed,
		Status:   state.status(),
	}
}
