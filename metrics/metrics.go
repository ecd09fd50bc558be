package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openxcorr/xcompat/types"
)

const (
	MetricsNamespace = "xcompat"
)

var (
	Debug bool = true

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "comparisons_total",
		Help:      "Count of artifact comparisons",
	}, []string{
		"run_id",
		"config",
		"verdict",
		"reason",
	})

	comparisonVerdict = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "comparison_verdict",
		Help:      "Latest verdict per configuration (1 pass, 0 fail)",
	}, []string{
		"config",
	})

	differingRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "differing_records",
		Help:      "Differing record count of the latest comparison",
	}, []string{
		"config",
	})

	workloadDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "workload_duration_seconds",
		Help:      "Wall-clock duration of the latest workload run",
	}, []string{
		"config",
		"environment",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of the latest full run",
	}, []string{
		"run_id",
	})
)

func errorLabel(reason types.FailureReason) string {
	if reason == types.ReasonNone {
		return "unknown"
	}
	return string(reason)
}

// RecordError increments the error counter for the given label.
func RecordError(error string) {
	if Debug {
		log.Debug("metric inc", "m", "errors_total", "error", error)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label.
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	RecordError(label + ": " + err.Error())
}

// RecordComparison records the outcome of one configuration's
// comparison.
func RecordComparison(runID string, cmp *types.ComparisonResult) {
	if Debug {
		log.Debug("metric inc", "m", "comparisons_total",
			"run_id", runID, "config", cmp.Config, "verdict", cmp.Verdict, "reason", cmp.Reason)
	}
	comparisonsTotal.WithLabelValues(runID, cmp.Config, string(cmp.Verdict), errorLabel(cmp.Reason)).Inc()

	pass := float64(0)
	if cmp.Verdict == types.VerdictPass {
		pass = 1
	}
	comparisonVerdict.WithLabelValues(cmp.Config).Set(pass)
	differingRecords.WithLabelValues(cmp.Config).Set(float64(cmp.DifferingRecords))
}

// RecordFailure records a configuration that failed before producing a
// comparison.
func RecordFailure(runID string, configName string, reason types.FailureReason) {
	comparisonsTotal.WithLabelValues(runID, configName, string(types.VerdictFail), errorLabel(reason)).Inc()
	comparisonVerdict.WithLabelValues(configName).Set(0)
}

// RecordWorkloadDuration records one workload run's wall-clock duration.
func RecordWorkloadDuration(configName string, role types.EnvironmentRole, d time.Duration) {
	workloadDuration.WithLabelValues(configName, string(role)).Set(d.Seconds())
}

// RecordRunDuration records the duration of one full (comprehensive or
// single-configuration) run.
func RecordRunDuration(runID string, d time.Duration) {
	runDuration.WithLabelValues(runID).Set(d.Seconds())
}
