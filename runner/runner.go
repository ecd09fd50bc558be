// Package runner executes the opaque correlator workload inside one
// environment for one configuration, with a bounded time budget.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/openxcorr/xcompat/artifact"
	"github.com/openxcorr/xcompat/cleanup"
	"github.com/openxcorr/xcompat/env"
	"github.com/openxcorr/xcompat/types"
	"github.com/openxcorr/xcompat/workload"
)

// DefaultComputeTimeout bounds one compute call. On expiry the container
// process is forcibly terminated.
const DefaultComputeTimeout = 300 * time.Second

// Result is the observed outcome of one workload run.
type Result struct {
	Artifact *types.ExecutionArtifact
	Log      string
	Duration time.Duration
}

// WorkloadRunner executes the workload once per (environment,
// configuration). Implementations are synchronous; the two environments
// contend for the same exclusive GPU, so calls must never overlap.
type WorkloadRunner interface {
	RunWorkload(ctx context.Context, ec *env.Context, cfg types.TestConfiguration, scope *cleanup.Scope) (*Result, error)
}

var _ WorkloadRunner = (*Runner)(nil)

// Runner drives the workload through its info/generate/compute/free
// contract via container invocations.
type Runner struct {
	log            log.Logger
	envRunner      workload.EnvRunner
	binary         string
	workDir        string
	computeTimeout time.Duration
	tracer         trace.Tracer
}

// Config contains runner configuration.
type Config struct {
	Log log.Logger
	// EnvRunner executes commands inside a built environment.
	EnvRunner workload.EnvRunner
	// Binary is the workload test binary path inside the environment.
	Binary string
	// WorkDir is the host directory under which per-run work
	// directories are created and mounted into the environment.
	WorkDir string
	// ComputeTimeout bounds one compute call; 0 means the default.
	ComputeTimeout time.Duration
}

// NewRunner creates a workload runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.EnvRunner == nil {
		return nil, fmt.Errorf("environment runner cannot be nil")
	}
	if cfg.Binary == "" {
		return nil, fmt.Errorf("workload binary cannot be empty")
	}
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory cannot be empty")
	}
	if cfg.ComputeTimeout == 0 {
		cfg.ComputeTimeout = DefaultComputeTimeout
	}

	return &Runner{
		log:            cfg.Log,
		envRunner:      cfg.EnvRunner,
		binary:         cfg.Binary,
		workDir:        cfg.WorkDir,
		computeTimeout: cfg.ComputeTimeout,
		tracer:         otel.Tracer("workload runner"),
	}, nil
}

// RunWorkload executes one full contract cycle in the given environment.
// The work directory and the workload's own resources are registered on
// the scope so they are released on every exit path, including the
// forced termination of a timed-out compute call.
func (r *Runner) RunWorkload(ctx context.Context, ec *env.Context, cfg types.TestConfiguration, scope *cleanup.Scope) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("workload %s/%s", ec.Role, cfg.Name))
	defer span.End()

	r.log.Info("Running workload", "environment", ec.Role, "config", cfg.Name,
		"stations", cfg.Stations, "frequencies", cfg.Frequencies, "timeSamples", cfg.TimeSamples)

	hostWorkDir, err := os.MkdirTemp(r.workDir, fmt.Sprintf("run-%s-%s-", cfg.Name, ec.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	scope.Defer("work directory "+hostWorkDir, func() error {
		return os.RemoveAll(hostWorkDir)
	})

	w, err := workload.NewProcessWorkload(r.log, r.envRunner, ec, cfg, r.binary, hostWorkDir, r.computeTimeout)
	if err != nil {
		return nil, err
	}
	scope.Defer("workload resources", func() error {
		// Free runs on a fresh context; the run context may already be
		// canceled when cleanup fires.
		freeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return w.Free(freeCtx)
	})

	if err := r.checkSelfConsistency(ctx, w, cfg); err != nil {
		return nil, err
	}

	if err := w.Generate(ctx, types.TestSeed); err != nil {
		return nil, err
	}

	captured, err := w.Compute(ctx)
	if captured != nil && captured.TimedOut {
		return &Result{Log: w.Transcript(), Duration: captured.Duration},
			&types.ExecutionTimeoutError{Environment: ec.Role, Config: cfg.Name, Timeout: r.computeTimeout}
	}
	if err != nil {
		return &Result{Log: w.Transcript()}, fmt.Errorf("workload compute failed: %w", err)
	}

	outputPath := filepath.Join(hostWorkDir, workload.OutputFilename)
	a, err := artifact.Read(outputPath)
	if err != nil {
		return &Result{Log: w.Transcript(), Duration: captured.Duration}, err
	}

	// Stamp the artifact with the run's identity; the workload only
	// knows its own dimensions.
	a.Environment = ec.Role
	a.Config = cfg.Name
	if a.RuntimeVersion == "" {
		a.RuntimeVersion = ec.RuntimeVersion
	}
	if a.Stations == 0 {
		a.Stations = cfg.Stations
		a.Frequencies = cfg.Frequencies
		a.TimeSamples = cfg.TimeSamples
	}
	if a.Generated.IsZero() {
		a.Generated = time.Now()
	}

	r.log.Info("Workload completed", "environment", ec.Role, "config", cfg.Name,
		"records", len(a.Records), "duration", captured.Duration)

	return &Result{
		Artifact: a,
		Log:      w.Transcript(),
		Duration: captured.Duration,
	}, nil
}

// checkSelfConsistency verifies the workload's reported dimensions match
// the registered configuration before any data is generated.
func (r *Runner) checkSelfConsistency(ctx context.Context, w workload.Workload, cfg types.TestConfiguration) error {
	info, err := w.Info(ctx)
	if err != nil {
		return err
	}

	if info.Stations != cfg.Stations || info.Frequencies != cfg.Frequencies || info.TimeSamples != cfg.TimeSamples {
		return fmt.Errorf("workload dimensions (stations=%d freqs=%d samples=%d) do not match configuration %q (stations=%d freqs=%d samples=%d)",
			info.Stations, info.Frequencies, info.TimeSamples,
			cfg.Name, cfg.Stations, cfg.Frequencies, cfg.TimeSamples)
	}
	if info.MatrixLength != cfg.MatrixLength() {
		return fmt.Errorf("workload matrix length %d does not match configuration %q derived length %d",
			info.MatrixLength, cfg.Name, cfg.MatrixLength())
	}
	return nil
}
