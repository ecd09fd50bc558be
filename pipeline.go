package xcompat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/openxcorr/xcompat/artifact"
	"github.com/openxcorr/xcompat/cleanup"
	"github.com/openxcorr/xcompat/compare"
	"github.com/openxcorr/xcompat/env"
	"github.com/openxcorr/xcompat/metrics"
	"github.com/openxcorr/xcompat/reporting"
	"github.com/openxcorr/xcompat/runner"
	"github.com/openxcorr/xcompat/types"
)

// environmentOrchestrator is the slice of env.Orchestrator the pipeline
// depends on; tests substitute fakes.
type environmentOrchestrator interface {
	Ensure(ctx context.Context, d env.Descriptor) (*env.Context, error)
	Destroy(ctx context.Context, ec *env.Context) error
}

// pipeline drives one configuration at a time through the fixed stage
// sequence. Execution is strictly sequential: the two environments
// contend for the same exclusive GPU, so the reference run completes and
// is persisted before the candidate starts, and both complete before
// comparison begins.
type pipeline struct {
	log        log.Logger
	envs       env.Pair
	orch       environmentOrchestrator
	runner     runner.WorkloadRunner
	collector  *artifact.Collector
	comparator *compare.Comparator
	tracer     trace.Tracer

	state  atomic.Value // types.PipelineState
	active atomic.Bool
}

func newPipeline(logger log.Logger, envs env.Pair, orch environmentOrchestrator,
	wr runner.WorkloadRunner, collector *artifact.Collector, comparator *compare.Comparator) *pipeline {
	p := &pipeline{
		log:        logger,
		envs:       envs,
		orch:       orch,
		runner:     wr,
		collector:  collector,
		comparator: comparator,
		tracer:     otel.Tracer("pipeline"),
	}
	p.state.Store(types.StateIdle)
	return p
}

// State returns the pipeline's current tagged state.
func (p *pipeline) State() types.PipelineState {
	return p.state.Load().(types.PipelineState)
}

func (p *pipeline) setState(s types.PipelineState) {
	p.state.Store(s)
	p.log.Debug("Pipeline state", "state", s)
}

// RunConfiguration executes the full stage sequence for one
// configuration and always returns a report; errors are caught at this
// boundary and recorded as a failed verdict, never propagated.
func (p *pipeline) RunConfiguration(ctx context.Context, cfg types.TestConfiguration, runID string) *reporting.ConfigReport {
	if !p.active.CompareAndSwap(false, true) {
		err := fmt.Errorf("pipeline is already processing a configuration")
		return p.failed(cfg, runID, err)
	}
	defer p.active.Store(false)

	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("configuration %s", cfg.Name))
	defer span.End()

	scope := cleanup.NewScope(p.log)
	defer func() {
		p.setState(types.StateCleaningUp)
		if err := scope.Release(); err != nil {
			p.log.Error("Cleanup failed", "config", cfg.Name, "error", err)
			metrics.RecordErrorDetails("cleanup failed", err)
		}
	}()

	report := p.run(ctx, cfg, runID, scope)
	if report.Verdict == types.VerdictPass {
		p.setState(types.StateDone)
	} else {
		p.setState(types.StateFailed)
	}
	return report
}

func (p *pipeline) run(ctx context.Context, cfg types.TestConfiguration, runID string, scope *cleanup.Scope) *reporting.ConfigReport {
	refRun, refPath, err := p.runEnvironment(ctx, p.envs.Reference,
		types.StateBuildingReference, types.StateRunningReference, cfg, scope)
	if err != nil {
		return p.failed(cfg, runID, err)
	}

	candRun, candPath, err := p.runEnvironment(ctx, p.envs.Candidate,
		types.StateBuildingCandidate, types.StateRunningCandidate, cfg, scope)
	if err != nil {
		return p.failed(cfg, runID, err)
	}

	p.setState(types.StateComparing)
	cmp, err := p.comparator.CompareFiles(cfg.Name, refPath, candPath)
	if err != nil {
		return p.failed(cfg, runID, err)
	}

	p.setState(types.StateReporting)

	// Memory figures are only reported when both environments produced
	// a complete memory block; a one-sided figure has no delta to offer.
	if refRun.Memory == nil || candRun.Memory == nil {
		refRun.Memory = nil
		candRun.Memory = nil
	}

	metrics.RecordComparison(runID, cmp)
	report := reporting.NewComparisonReport(cfg, cmp, refRun, candRun)

	p.log.Info("Configuration compared", "config", cfg.Name, "verdict", cmp.Verdict,
		"records", cmp.TotalRecords, "differing", cmp.DifferingRecords)
	return report
}

// runEnvironment builds one environment, executes the workload in it and
// persists the resulting artifact, returning the reporting view of the
// run and the persisted artifact path.
func (p *pipeline) runEnvironment(ctx context.Context, d env.Descriptor,
	buildState, runState types.PipelineState, cfg types.TestConfiguration,
	scope *cleanup.Scope) (*reporting.EnvironmentRun, string, error) {

	p.setState(buildState)
	ec, err := p.orch.Ensure(ctx, d)
	if err != nil {
		return nil, "", err
	}

	p.setState(runState)
	res, err := p.runner.RunWorkload(ctx, ec, cfg, scope)
	if res != nil && res.Log != "" {
		// Keep the log even when the run failed; it is the evidence.
		if logErr := p.collector.CollectLog(d.Role, cfg.Name, res.Log); logErr != nil {
			p.log.Error("Failed to persist execution log", "environment", d.Role, "config", cfg.Name, "error", logErr)
		}
	}
	if err != nil {
		return nil, "", err
	}

	metrics.RecordWorkloadDuration(cfg.Name, d.Role, res.Duration)

	path, err := p.collector.Collect(res.Artifact, res.Log)
	if err != nil {
		return nil, "", err
	}

	run := &reporting.EnvironmentRun{
		Role:           d.Role,
		RuntimeVersion: ec.RuntimeVersion,
		ExecTime:       res.Artifact.ExecTime,
		Duration:       res.Duration,
		Memory:         reporting.ExtractMemoryStats(res.Log),
	}
	return run, path, nil
}

// Clean destroys both environments' images and optionally purges the
// persisted results tree. It is the explicit counterpart of the
// idempotent build: a cleaned environment is rebuilt from its descriptor
// on the next run.
func (p *pipeline) Clean(ctx context.Context, purge bool) error {
	var errs []error
	for _, d := range []env.Descriptor{p.envs.Reference, p.envs.Candidate} {
		ec := &env.Context{Role: d.Role, RuntimeVersion: d.RuntimeVersion, ImageTag: d.ImageTag}
		if err := p.orch.Destroy(ctx, ec); err != nil {
			p.log.Error("Failed to destroy environment", "environment", d.Role, "error", err)
			errs = append(errs, err)
		}
	}
	if purge {
		if err := p.collector.Purge(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *pipeline) failed(cfg types.TestConfiguration, runID string, err error) *reporting.ConfigReport {
	reason := types.ReasonForError(err)
	p.log.Error("Configuration failed", "config", cfg.Name, "reason", reason, "error", err)
	metrics.RecordFailure(runID, cfg.Name, reason)
	return reporting.NewFailedReport(cfg, err)
}
