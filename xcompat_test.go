package xcompat

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxcorr/xcompat/artifact"
	"github.com/openxcorr/xcompat/cleanup"
	"github.com/openxcorr/xcompat/compare"
	"github.com/openxcorr/xcompat/env"
	"github.com/openxcorr/xcompat/registry"
	"github.com/openxcorr/xcompat/runner"
	"github.com/openxcorr/xcompat/types"
)

// setupService wires a service around a fake orchestrator and workload
// runner, with a real registry, collector and comparator.
func setupService(t *testing.T, cfg *Config, wr runner.WorkloadRunner) *xcompat {
	t.Helper()
	logger := log.New()
	cfg.Log = logger

	reg, err := registry.NewRegistry(registry.Config{Log: logger})
	require.NoError(t, err)

	collector, err := artifact.NewCollector(logger, filepath.Join(t.TempDir(), "results"))
	require.NoError(t, err)

	comparator, err := compare.NewComparator(logger, 0)
	require.NoError(t, err)

	return &xcompat{
		ctx:              context.Background(),
		config:           cfg,
		version:          "test",
		registry:         reg,
		pipeline:         newPipeline(logger, testPair(), &fakeOrchestrator{}, wr, collector, comparator),
		done:             make(chan struct{}),
		shutdownCallback: func(error) {},
	}
}

func TestRunOnceSingleConfiguration(t *testing.T) {
	fake := &fakeWorkloadRunner{}
	svc := setupService(t, &Config{ConfigName: "micro", RunOnce: true}, fake)

	require.NoError(t, svc.runOnce(context.Background()))

	require.NotNil(t, svc.result)
	assert.Equal(t, types.VerdictPass, svc.result.Status)
	assert.Equal(t, 1, svc.result.Passed)
	assert.Zero(t, svc.result.Failed)
	assert.Equal(t, []string{"reference/micro", "candidate/micro"}, fake.runs)
}

func TestRunOnceUnknownConfiguration(t *testing.T) {
	fake := &fakeWorkloadRunner{}
	svc := setupService(t, &Config{ConfigName: "nonexistent", RunOnce: true}, fake)

	err := svc.runOnce(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err), "an unknown configuration is fatal to the invocation")
	assert.True(t, types.IsUnknownConfiguration(err))
	assert.Empty(t, fake.runs, "no environment work before the name resolves")
}

func TestRunOnceComprehensive(t *testing.T) {
	fake := &fakeWorkloadRunner{}
	svc := setupService(t, &Config{Comprehensive: true, RunOnce: true}, fake)

	require.NoError(t, svc.runOnce(context.Background()))

	require.NotNil(t, svc.result)
	assert.Equal(t, types.VerdictPass, svc.result.Status)
	assert.Equal(t, 8, svc.result.Passed)

	// Registry order, reference before candidate within each.
	require.Len(t, fake.runs, 16)
	assert.Equal(t, "reference/micro", fake.runs[0])
	assert.Equal(t, "candidate/micro", fake.runs[1])
	assert.Equal(t, "reference/full", fake.runs[14])
	assert.Equal(t, "candidate/full", fake.runs[15])
}

func TestRunOnceComprehensiveWithFailure(t *testing.T) {
	fake := &fakeWorkloadRunner{
		timeoutOn: map[string]bool{"candidate/large": true},
	}
	svc := setupService(t, &Config{Comprehensive: true, RunOnce: true}, fake)

	require.NoError(t, svc.runOnce(context.Background()),
		"a per-configuration failure is recorded, not propagated")

	require.NotNil(t, svc.result)
	assert.Equal(t, types.VerdictFail, svc.result.Status)
	assert.Equal(t, 7, svc.result.Passed)
	assert.Equal(t, 1, svc.result.Failed)
	require.Len(t, svc.result.Reports, 8)

	// Every configuration after the failed one was still attempted.
	assert.Contains(t, fake.runs, "reference/full")
	assert.Contains(t, fake.runs, "candidate/full")

	for _, r := range svc.result.Reports {
		if r.Config.Name == "large" {
			assert.Equal(t, types.ReasonExecutionTimeout, r.Reason)
		} else {
			assert.Equal(t, types.VerdictPass, r.Verdict)
		}
	}
}

// cancelingRunner cancels the run context after a fixed number of
// workload executions.
type cancelingRunner struct {
	inner       *fakeWorkloadRunner
	count       atomic.Int32
	cancelAfter int32
	cancel      context.CancelFunc
}

func (c *cancelingRunner) RunWorkload(ctx context.Context, ec *env.Context, cfg types.TestConfiguration, scope *cleanup.Scope) (*runner.Result, error) {
	res, err := c.inner.RunWorkload(ctx, ec, cfg, scope)
	if c.count.Add(1) == c.cancelAfter {
		c.cancel()
	}
	return res, err
}

func TestRunOnceComprehensiveInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel during the second configuration's candidate run; the rest
	// must be recorded as failed rather than silently skipped.
	wr := &cancelingRunner{inner: &fakeWorkloadRunner{}, cancelAfter: 4, cancel: cancel}
	svc := setupService(t, &Config{Comprehensive: true, RunOnce: true}, wr)

	require.NoError(t, svc.runOnce(ctx))

	require.NotNil(t, svc.result)
	assert.Equal(t, types.VerdictFail, svc.result.Status)
	require.Len(t, svc.result.Reports, 8, "interrupted configurations are still reported")
	assert.Equal(t, 2, svc.result.Passed)
	assert.Equal(t, 6, svc.result.Failed)
}

func TestStartRunOnceComparisonFailure(t *testing.T) {
	wr := &fakeWorkloadRunner{candidateDrift: 0.5}
	svc := setupService(t, &Config{ConfigName: "micro", RunOnce: true}, wr)

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsComparisonFailureError(err))
	assert.Contains(t, err.Error(), "ValueMismatch")
}

func TestStopStopped(t *testing.T) {
	svc := setupService(t, &Config{ConfigName: "micro", RunOnce: true}, &fakeWorkloadRunner{})

	svc.running.Store(true)
	assert.False(t, svc.Stopped())

	require.NoError(t, svc.Stop(context.Background()))
	assert.True(t, svc.Stopped())

	// A second stop is a no-op.
	require.NoError(t, svc.Stop(context.Background()))
}
