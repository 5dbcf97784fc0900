package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "neurofabric", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.Insecure)
}

func TestDisabledProviderIsSafe(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, &Config{Enabled: false})
	require.NoError(t, err)

	// Every record method must be a no-op, not a panic.
	p.RecordSignalAccepted(ctx)
	p.RecordSignalRejected(ctx, "forbidden_pattern")
	p.RecordDelivery(ctx, 10*time.Millisecond)
	p.RecordStageTransition(ctx, "EXECUTION", "OUTCOME_VALIDATION")
	p.RecordReroute(ctx, "route-1")

	execCtx, done := p.TrackExecution(ctx, "work-1")
	assert.NotNil(t, execCtx)
	done(errors.New("boom"))

	assert.NotNil(t, p.Tracer())
	require.NoError(t, p.Shutdown(ctx))
}

func TestDisabledProviderSpans(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, &Config{Enabled: false})
	require.NoError(t, err)

	spanCtx, span := p.StartSpan(ctx, "fabric.test")
	assert.NotNil(t, spanCtx)
	span.End()
}
