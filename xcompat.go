package xcompat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/openxcorr/xcompat/artifact"
	"github.com/openxcorr/xcompat/compare"
	"github.com/openxcorr/xcompat/env"
	"github.com/openxcorr/xcompat/exitcodes"
	"github.com/openxcorr/xcompat/metrics"
	"github.com/openxcorr/xcompat/registry"
	"github.com/openxcorr/xcompat/reporting"
	"github.com/openxcorr/xcompat/runner"
	"github.com/openxcorr/xcompat/types"
)

// xcompat implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &xcompat{}

// xcompat is the correlator cross-version acceptance tester service.
type xcompat struct {
	ctx      context.Context
	config   *Config
	version  string
	registry *registry.Registry
	pipeline *pipeline
	result   *reporting.ComprehensiveReport

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*xcompat, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating xcompat with config",
		"envConfig", config.EnvConfigFile,
		"configName", config.ConfigName,
		"comprehensive", config.Comprehensive,
		"resultsDir", config.ResultsDir,
		"computeTimeout", config.ComputeTimeout,
		"tolerance", config.Tolerance)

	reg, err := registry.NewRegistry(registry.Config{
		Log:        config.Log,
		ConfigFile: config.RegistryFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	envs, err := env.LoadPair(config.EnvConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment descriptors: %w", err)
	}

	orch, err := env.NewOrchestrator(env.Config{
		Log:          config.Log,
		DockerBinary: config.DockerBinary,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	collector, err := artifact.NewCollector(config.Log, config.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create collector: %w", err)
	}

	comparator, err := compare.NewComparator(config.Log, config.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to create comparator: %w", err)
	}

	workloadRunner, err := runner.NewRunner(runner.Config{
		Log:            config.Log,
		EnvRunner:      orch,
		Binary:         config.WorkloadBinary,
		WorkDir:        config.WorkDir,
		ComputeTimeout: config.ComputeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workload runner: %w", err)
	}

	config.Log.Info("xcompat.New: created registry, orchestrator and workload runner",
		"reference", envs.Reference.RuntimeVersion, "candidate", envs.Candidate.RuntimeVersion)

	return &xcompat{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		pipeline:         newPipeline(config.Log, envs, orch, workloadRunner, collector, comparator),
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the configured comparison once, then either exits (run-once
// mode) or repeats at the configured interval.
// Start implements the cliapp.Lifecycle interface.
func (x *xcompat) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			x.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	x.ctx = ctx
	x.done = make(chan struct{})
	x.running.Store(true)

	if x.config.RunOnce {
		x.config.Log.Info("Starting xcompat in run-once mode")
	} else {
		x.config.Log.Info("Starting xcompat in continuous mode", "interval", x.config.RunInterval)
	}

	err := x.runOnce(ctx)
	if err != nil {
		x.config.Log.Error("Runtime error running comparison", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if x.config.RunOnce {
		x.config.Log.Info("Run completed, exiting (run-once mode)")

		if x.result != nil && x.result.Status == types.VerdictFail {
			x.config.Log.Warn("Run completed with failures, returning exit code 1")
			return NewComparisonFailureError(x.result.String())
		}

		// Only need to call this when we're in run-once mode and everything passed
		go func() {
			x.shutdownCallback(nil)
		}()
		return nil // Success (exit code 0)
	}

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		x.config.Log.Debug("Starting periodic runner goroutine", "interval", x.config.RunInterval)

		for {
			select {
			case <-time.After(x.config.RunInterval):
				if !x.running.Load() {
					x.config.Log.Debug("Service stopped, exiting periodic runner")
					return
				}

				x.config.Log.Info("Running periodic comparison")
				if err := x.runOnce(ctx); err != nil {
					x.config.Log.Error("Error running periodic comparison", "error", err)
				}

			case <-x.done:
				x.config.Log.Debug("Done signal received, stopping periodic runner")
				return

			case <-ctx.Done():
				x.config.Log.Debug("Context canceled, stopping periodic runner")
				x.running.Store(false)
				return
			}
		}
	}()
	x.config.Log.Debug("xcompat started successfully")
	return nil
}

// runOnce executes one full run and stores the resulting report. Only
// UnknownConfiguration surfaces as an error; per-configuration failures
// are recorded in the report.
func (x *xcompat) runOnce(ctx context.Context) error {
	runID := uuid.New().String()
	started := time.Now()

	var result *reporting.ComprehensiveReport
	if x.config.Comprehensive {
		result = x.runComprehensive(ctx, runID)
	} else {
		cfg, err := x.registry.Get(x.config.ConfigName)
		if err != nil {
			// Detected before any environment work begins; fatal to the
			// whole invocation.
			metrics.RecordError(string(types.ReasonUnknownConfiguration))
			return NewRuntimeError(err)
		}
		agg := reporting.NewAggregator(runID)
		agg.Add(x.pipeline.RunConfiguration(ctx, cfg, runID))
		result = agg.Finalize()
	}

	x.result = result
	metrics.RecordRunDuration(runID, time.Since(started))

	x.printResultsTable(result)
	fmt.Println(result.String())
	x.config.Log.Info("Run completed", "run_id", runID, "status", result.Status,
		"passed", result.Passed, "failed", result.Failed)
	return nil
}

// runComprehensive processes every registered configuration in registry
// order. One configuration's failure never aborts the run.
func (x *xcompat) runComprehensive(ctx context.Context, runID string) *reporting.ComprehensiveReport {
	agg := reporting.NewAggregator(runID)
	for _, cfg := range x.registry.Enumerate() {
		select {
		case <-ctx.Done():
			x.config.Log.Warn("Run interrupted, recording remaining configurations as failed", "config", cfg.Name)
			agg.Add(reporting.NewFailedReport(cfg, fmt.Errorf("run interrupted: %w", ctx.Err())))
			continue
		default:
		}
		agg.Add(x.pipeline.RunConfiguration(ctx, cfg, runID))
	}
	return agg.Finalize()
}

// Clean tears down both environments and, when purge is set, removes the
// persisted results tree as well.
func (x *xcompat) Clean(ctx context.Context, purge bool) error {
	x.config.Log.Info("Cleaning up environments", "purgeResults", purge)
	return x.pipeline.Clean(ctx, purge)
}

// Stop stops the xcompat service.
// Stop implements the cliapp.Lifecycle interface.
func (x *xcompat) Stop(ctx context.Context) error {
	x.config.Log.Info("Stopping xcompat")

	if !x.running.Load() {
		x.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	x.running.Store(false)
	x.config.Log.Debug("Sending done signal to goroutines")
	close(x.done)

	x.config.Log.Info("xcompat stopped successfully")
	return nil
}

// Stopped returns true if the xcompat service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (x *xcompat) Stopped() bool {
	return !x.running.Load()
}
