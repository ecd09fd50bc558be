// Package reporting builds per-configuration and comprehensive reports
// from comparison results and captured execution logs.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/openxcorr/xcompat/types"
)

// EnvironmentRun summarizes one environment's workload execution for
// reporting purposes.
type EnvironmentRun struct {
	Role           types.EnvironmentRole
	RuntimeVersion string
	ExecTime       float64 // seconds, from the artifact header
	Duration       time.Duration
	Memory         *MemoryStats // nil when the log carried no memory report
}

// MemoryStats holds the peak memory figures extracted from one
// environment's execution log.
type MemoryStats struct {
	PeakSystemMB float64
	PeakGPUMB    float64
}

// PerfDelta is the percentage difference between the two environments'
// execution times. It is only computed when both artifacts carry a
// positive execution time.
type PerfDelta struct {
	ReferenceSeconds float64
	CandidateSeconds float64
	DeltaPercent     float64
}

// ConfigReport is the full outcome of one configuration's pipeline.
type ConfigReport struct {
	Config     types.TestConfiguration
	Verdict    types.Verdict
	Reason     types.FailureReason
	Detail     string
	Comparison *types.ComparisonResult // nil when the pipeline failed before comparing
	Reference  *EnvironmentRun         // nil when the reference run never happened
	Candidate  *EnvironmentRun
	Perf       *PerfDelta // nil when either execution time is missing
	Err        error
}

// NewFailedReport builds a report for a configuration whose pipeline
// failed before producing a comparison.
func NewFailedReport(cfg types.TestConfiguration, err error) *ConfigReport {
	return &ConfigReport{
		Config:  cfg,
		Verdict: types.VerdictFail,
		Reason:  types.ReasonForError(err),
		Detail:  err.Error(),
		Err:     err,
	}
}

// NewComparisonReport builds a report from a completed comparison and
// the two environment runs.
func NewComparisonReport(cfg types.TestConfiguration, cmp *types.ComparisonResult, ref, cand *EnvironmentRun) *ConfigReport {
	r := &ConfigReport{
		Config:     cfg,
		Verdict:    cmp.Verdict,
		Reason:     cmp.Reason,
		Detail:     cmp.Detail,
		Comparison: cmp,
		Reference:  ref,
		Candidate:  cand,
	}
	if ref != nil && cand != nil {
		r.Perf = computePerfDelta(ref.ExecTime, cand.ExecTime)
	}
	return r
}

// computePerfDelta returns nil unless both execution times are present
// and positive; missing metrics are reported as absent, never zero.
func computePerfDelta(refSeconds, candSeconds float64) *PerfDelta {
	if refSeconds <= 0 || candSeconds <= 0 {
		return nil
	}
	return &PerfDelta{
		ReferenceSeconds: refSeconds,
		CandidateSeconds: candSeconds,
		DeltaPercent:     (candSeconds - refSeconds) / refSeconds * 100,
	}
}

// ComprehensiveReport aggregates the outcomes of a multi-configuration
// run, in registry order.
type ComprehensiveReport struct {
	RunID     string
	Timestamp time.Time
	Reports   []*ConfigReport
	Passed    int
	Failed    int
	Status    types.Verdict
	Duration  time.Duration
}

// Aggregator accumulates per-configuration reports into one
// comprehensive report.
type Aggregator struct {
	runID   string
	started time.Time
	reports []*ConfigReport
}

// NewAggregator creates an aggregator for one run.
func NewAggregator(runID string) *Aggregator {
	return &Aggregator{
		runID:   runID,
		started: time.Now(),
	}
}

// Add records one configuration's report, preserving insertion order.
func (a *Aggregator) Add(r *ConfigReport) {
	a.reports = append(a.reports, r)
}

// Finalize computes the pass/fail counts and overall status. The overall
// status is Pass iff no configuration failed.
func (a *Aggregator) Finalize() *ComprehensiveReport {
	rep := &ComprehensiveReport{
		RunID:     a.runID,
		Timestamp: time.Now(),
		Reports:   a.reports,
		Duration:  time.Since(a.started),
	}
	for _, r := range a.reports {
		if r.Verdict == types.VerdictPass {
			rep.Passed++
		} else {
			rep.Failed++
		}
	}
	if rep.Failed == 0 && len(rep.Reports) > 0 {
		rep.Status = types.VerdictPass
	} else {
		rep.Status = types.VerdictFail
	}
	return rep
}

// String returns a formatted text representation of the comprehensive
// report.
func (r *ComprehensiveReport) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Cross-Version Test Results (%s):\n", formatDuration(r.Duration)))
	b.WriteString(fmt.Sprintf("Configurations: %d, Passed: %d, Failed: %d\n",
		len(r.Reports), r.Passed, r.Failed))

	for _, cr := range r.Reports {
		b.WriteString(fmt.Sprintf("\nConfiguration: %s (stations=%d freqs=%d samples=%d)\n",
			cr.Config.Name, cr.Config.Stations, cr.Config.Frequencies, cr.Config.TimeSamples))
		b.WriteString(fmt.Sprintf("├── Verdict: %s\n", cr.Verdict))
		if cr.Reason != types.ReasonNone {
			b.WriteString(fmt.Sprintf("├── Reason: %s\n", cr.Reason))
		}
		if cr.Detail != "" {
			b.WriteString(fmt.Sprintf("├── Detail: %s\n", cr.Detail))
		}
		if cmp := cr.Comparison; cmp != nil {
			b.WriteString(fmt.Sprintf("├── Records: %d total, %d equal, %d differing\n",
				cmp.TotalRecords, cmp.EqualRecords, cmp.DifferingRecords))
			if cmp.DifferingRecords > 0 {
				b.WriteString(fmt.Sprintf("├── Max difference: %.3e\n", cmp.MaxDifference))
				for _, s := range cmp.Samples {
					b.WriteString(fmt.Sprintf("│   ├── [%d] ref=(%.15e, %.15e) cand=(%.15e, %.15e) diff=(%.3e, %.3e)\n",
						s.Index, s.RefReal, s.RefImag, s.CandReal, s.CandImag, s.RealDiff, s.ImagDiff))
				}
			}
		}
		if cr.Perf != nil {
			b.WriteString(fmt.Sprintf("├── Execution time: reference %.3fs, candidate %.3fs (%+.1f%%)\n",
				cr.Perf.ReferenceSeconds, cr.Perf.CandidateSeconds, cr.Perf.DeltaPercent))
		} else {
			b.WriteString("├── Execution time delta: not available\n")
		}
		b.WriteString(formatMemoryLine(cr.Reference))
		b.WriteString(formatMemoryLine(cr.Candidate))
	}

	b.WriteString(fmt.Sprintf("\nOverall: %s\n", strings.ToUpper(string(r.Status))))
	return b.String()
}

func formatMemoryLine(run *EnvironmentRun) string {
	if run == nil {
		return ""
	}
	if run.Memory == nil {
		return fmt.Sprintf("├── Memory (%s): not reported\n", run.Role)
	}
	return fmt.Sprintf("├── Memory (%s): peak system %.1f MB, peak GPU %.1f MB\n",
		run.Role, run.Memory.PeakSystemMB, run.Memory.PeakGPUMB)
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
