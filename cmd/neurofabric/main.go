package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/synaptiq-labs/neurofabric/pkg/audit"
	"github.com/synaptiq-labs/neurofabric/pkg/config"
	"github.com/synaptiq-labs/neurofabric/pkg/governance"
	"github.com/synaptiq-labs/neurofabric/pkg/identity"
	"github.com/synaptiq-labs/neurofabric/pkg/lifecycle"
	"github.com/synaptiq-labs/neurofabric/pkg/link"
	"github.com/synaptiq-labs/neurofabric/pkg/observability"
	"github.com/synaptiq-labs/neurofabric/pkg/outcome"
	"github.com/synaptiq-labs/neurofabric/pkg/pool"
	"github.com/synaptiq-labs/neurofabric/pkg/rollback"
	"github.com/synaptiq-labs/neurofabric/pkg/router"
	"github.com/synaptiq-labs/neurofabric/pkg/signal"
	"github.com/synaptiq-labs/neurofabric/pkg/work"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runDemo(stdout, stderr)
	}

	switch args[1] {
	case "demo":
		return runDemo(stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "neurofabric %s (NLP-C protocol %s)\n", version, link.ProtocolVersion)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

const version = "1.2.0"

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: neurofabric <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  demo      Run one governed dispatch through the full fabric (default)")
	fmt.Fprintln(w, "  version   Print version and protocol compatibility")
	fmt.Fprintln(w, "  help      Show this help")
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// attachTrailSink mirrors every trail entry into the persistent sink selected
// by TRAIL_SINK. The in-memory trail stays authoritative; sinks are
// write-behind copies keyed by DATABASE_URL (a file path or DSN for sqlite).
// Returns a close function for the sink, a no-op when no sink is configured.
func attachTrailSink(ctx context.Context, trail *audit.Trail, cfg *config.Config, logger *slog.Logger) (func(), error) {
	store := func(do func(context.Context, *audit.Entry) error) audit.EntryHandler {
		return func(e *audit.Entry) {
			if err := do(ctx, e); err != nil {
				logger.Error("trail sink store failed", "entry_id", e.EntryID, "error", err)
			}
		}
	}

	switch cfg.TrailSink {
	case "":
		return func() {}, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		sink, err := audit.NewSQLiteSink(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		trail.AddHandler(store(sink.Store))
		return func() { _ = sink.Close() }, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		sink := audit.NewPostgresSink(db)
		if err := sink.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		trail.AddHandler(store(sink.Store))
		return func() { _ = db.Close() }, nil
	default:
		return nil, fmt.Errorf("unknown trail sink %q", cfg.TrailSink)
	}
}

// runDemo drives one operator dispatch end to end: signal construction,
// governance filtering, causal delivery, work creation, routed execution on
// the pool, outcome validation, and the full eight-stage lifecycle, with
// every step landing in the hash-chained trail.
func runDemo(stdout, stderr io.Writer) int {
	ctx := context.Background()
	cfg := config.Load()
	logger := setupLogger(cfg.LogLevel, stderr)

	rootKey := []byte(cfg.RootKey)
	if len(rootKey) == 0 {
		// Demo only. A deployment must supply FABRIC_ROOT_KEY.
		rootKey = []byte("neurofabric-demo-root-key-000001")
		logger.Warn("FABRIC_ROOT_KEY not set, using demo key")
	}

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "neurofabric",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        false, // demo runs without a collector
	})
	if err != nil {
		logger.Error("observability init failed", "error", err)
		return 1
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	trail := audit.NewTrail()
	sinkClose, err := attachTrailSink(ctx, trail, cfg, logger)
	if err != nil {
		logger.Error("trail sink setup failed", "error", err)
		return 1
	}
	defer sinkClose()

	ident, err := identity.NewSenderIdentity("op1", rootKey)
	if err != nil {
		logger.Error("identity derivation failed", "error", err)
		return 1
	}
	factory := signal.NewFactory(ident)

	incidents := governance.NewIncidentLedger()
	incidents.OnIncident(func(inc governance.FilterIncident) {
		_, _ = trail.Append(audit.EntryIncident, inc.SignalID, "filter.incident", inc, nil)
	})
	filter := governance.NewFilter(incidents)

	capacity := cfg.ChannelCapacity
	poolSize := cfg.PoolSize
	capabilities := []string{"execute", "write"}
	var limiter *link.SenderLimiter

	if cfg.Profile != "" {
		profile, err := config.LoadProfile(cfg.ProfileDir, cfg.Profile)
		if err != nil {
			logger.Error("profile load failed", "profile", cfg.Profile, "error", err)
			return 1
		}
		if profile.Transport.DefaultCapacity > 0 {
			capacity = profile.Transport.DefaultCapacity
		}
		if profile.Transport.SenderRateRPS > 0 {
			limiter = link.NewSenderLimiter(int(profile.Transport.SenderRateRPS), profile.Transport.SenderBurst)
		}
		if profile.Pool.Size > 0 {
			poolSize = profile.Pool.Size
		}
		if len(profile.Pool.Capabilities) > 0 {
			capabilities = profile.Pool.Capabilities
		}
		if len(profile.Governance.Rules) > 0 {
			rules, err := governance.NewRuleSet()
			if err != nil {
				logger.Error("rule set init failed", "error", err)
				return 1
			}
			for _, r := range profile.Governance.Rules {
				if err := rules.Add(r.ID, r.Expression); err != nil {
					logger.Error("policy rule rejected", "rule_id", r.ID, "error", err)
					return 1
				}
			}
			filter = filter.WithRules(rules)
		}
		logger.Info("profile applied", "profile", profile.Code, "capacity", capacity, "pool_size", poolSize)
	}

	transport := link.NewTransport().WithDefaultCapacity(capacity)
	if limiter != nil {
		transport = transport.WithSenderLimiter(limiter)
	}
	if cfg.PendingStore == "redis" {
		transport = transport.WithPendingStore(link.NewRedisPendingStore(cfg.RedisAddr, "", 0))
	}
	if err := transport.RegisterEndpoint("r1", link.ProtocolVersion, "", capacity); err != nil {
		logger.Error("endpoint registration failed", "error", err)
		return 1
	}

	agents := pool.New(poolSize, capabilities)
	tracker := lifecycle.NewTracker()
	validator := outcome.NewValidator()
	routes := router.New()

	// 1. Construct the signal.
	sig, err := factory.Create(signal.Draft{
		ReceiverID:      "r1",
		StateDelta:      "dispatch task X",
		IntentReference: "goal_42",
		Confidence:      0.95,
		Context:         "operator-initiated dispatch",
		MemoryRefs:      []string{},
		Permissions:     []string{"execute"},
		RiskLevel:       signal.RiskMedium,
		Reversibility:   signal.Reversible,
	})
	if err != nil {
		logger.Error("signal construction failed", "error", err)
		return 1
	}

	// 2. Governance gate.
	decision := filter.Filter(sig)
	if !decision.Accepted() {
		obs.RecordSignalRejected(ctx, decision.Violation)
		logger.Error("signal rejected", "signal_id", sig.Header.SignalID, "violation", decision.Violation)
		return 1
	}
	obs.RecordSignalAccepted(ctx)
	_, _ = trail.Append(audit.EntrySignalAccepted, sig.Header.SignalID, "filter.accept", decision, nil)

	// 3. Causal delivery.
	sendStart := time.Now()
	record, err := transport.Send(ctx, sig)
	if err != nil {
		logger.Error("delivery failed", "error", err)
		return 1
	}
	obs.RecordDelivery(ctx, time.Since(sendStart))
	_, _ = trail.Append(audit.EntryDelivery, sig.Header.SignalID, "transport.deliver", record, nil)

	// 4. Work creation under the laws.
	unit, err := work.NewFactory().Create(work.Request{
		ParentGoal:          "goal_42",
		ActionType:          work.ActionWrite,
		InputState:          sig.Payload.StateDelta,
		ExpectedEffect:      "task X dispatched",
		Reversibility:       signal.Reversible,
		DeclaredSideEffects: []string{"file_write"},
	})
	if err != nil {
		logger.Error("work creation failed", "error", err)
		return 1
	}

	// Reversible work gets a compensation before it runs.
	compensations := rollback.NewController()
	entry, err := compensations.Register(unit, "revoke dispatch of task X")
	if err != nil {
		logger.Error("rollback registration failed", "error", err)
		return 1
	}
	_, _ = trail.Append(audit.EntryRollback, unit.WorkID, "rollback.register", entry, nil)

	// 5. Lifecycle, routed execution, validation.
	if _, err := tracker.Start(unit.WorkID); err != nil {
		logger.Error("lifecycle start failed", "error", err)
		return 1
	}
	advance := func() bool {
		rec, err := tracker.Advance(unit.WorkID)
		if err != nil {
			logger.Error("lifecycle advance failed", "error", err)
			return false
		}
		if n := len(rec.Transitions); n > 0 {
			last := rec.Transitions[n-1]
			obs.RecordStageTransition(ctx, last.From.String(), last.To.String())
		}
		_, _ = trail.Append(audit.EntryStageTransition, unit.WorkID, "lifecycle.advance", rec.Current.String(), nil)
		return true
	}

	if !advance() { // WORK_UNIT_CREATION
		return 1
	}
	if !advance() { // CHANNEL_ASSIGNMENT
		return 1
	}

	agent := agents.Acquire()
	if agent == nil {
		logger.Error("agent pool exhausted")
		return 1
	}
	route, err := routes.CreateRoute([]string{agent.AgentID})
	if err != nil {
		logger.Error("route creation failed", "error", err)
		return 1
	}
	routed, err := routes.Route(unit.WorkID, route.RouteID, agent.AgentID)
	if err != nil {
		logger.Error("routing failed", "error", err)
		return 1
	}
	if routed.Rerouted {
		obs.RecordReroute(ctx, routed.RouteID)
	}
	_, _ = trail.Append(audit.EntryRouting, unit.WorkID, "router.route", routed, nil)
	if !advance() { // AGENT_BINDING
		return 1
	}

	execCtx, done := obs.TrackExecution(ctx, unit.WorkID)
	result, err := agents.Execute(execCtx, routed.AgentID, unit, func(ctx context.Context, u *work.WorkUnit) ([]byte, bool, error) {
		return []byte(u.ExpectedEffect), true, nil
	})
	done(err)
	if err != nil {
		logger.Error("execution failed", "error", err)
		return 1
	}
	if !advance() { // EXECUTION
		return 1
	}

	validation, err := validator.Validate(unit.WorkID, unit.ExpectedEffect, string(result.Output), result.Deterministic, true)
	_, _ = trail.Append(audit.EntryOutcome, unit.WorkID, "outcome.validate", validation, nil)
	if err != nil {
		logger.Error("outcome validation failed", "error", err)
		return 1
	}
	if !advance() { // OUTCOME_VALIDATION
		return 1
	}
	if !advance() { // FEEDBACK_SIGNAL
		return 1
	}
	if !advance() { // MEMORY_UPDATE
		return 1
	}

	complete, err := tracker.IsComplete(unit.WorkID)
	if err != nil || !complete {
		logger.Error("lifecycle did not complete", "error", err)
		return 1
	}
	if err := trail.VerifyChain(); err != nil {
		logger.Error("trail verification failed", "error", err)
		return 1
	}

	fmt.Fprintf(stdout, "signal %s delivered to r1 at logical timestamp %d\n",
		sig.Header.SignalID, record.LogicalTimestamp)
	fmt.Fprintf(stdout, "work %s completed all %d stages on %s (validation %s)\n",
		unit.WorkID, lifecycle.StageCount, routed.AgentID, validation.Status)
	fmt.Fprintf(stdout, "trail verified: %d entries, head %s\n", trail.Size(), trail.ChainHead())

	logger.Info("demo complete",
		"signal_id", sig.Header.SignalID,
		"work_id", unit.WorkID,
		"agent_id", routed.AgentID,
		"duration", time.Since(validation.ValidatedAt).Truncate(time.Millisecond).String(),
	)
	return 0
}
