package types

import (
	"fmt"
	"time"
)

// EnvironmentRole identifies one of the two isolated execution contexts.
type EnvironmentRole string

const (
	RoleReference EnvironmentRole = "reference"
	RoleCandidate EnvironmentRole = "candidate"
)

// NumPolarizations is fixed by the correlator's output ordering.
const NumPolarizations = 2

// TestSeed is the fixed seed shared by both environments so that input
// generation is bit-identical on either side.
const TestSeed = 12345

// TestConfiguration is one named correlator test scenario. Configurations
// are immutable once registered.
type TestConfiguration struct {
	Name        string `yaml:"name"`
	Stations    int    `yaml:"stations"`
	Frequencies int    `yaml:"frequencies"`
	TimeSamples int    `yaml:"time_samples"`
}

// MatrixLength returns the number of complex output records produced for
// this configuration. The correlator emits the lower triangle of the
// station-pair matrix per frequency channel and polarization product.
func (c TestConfiguration) MatrixLength() uint64 {
	s := uint64(c.Stations)
	f := uint64(c.Frequencies)
	return f * (s / 2) * (s + 1) * NumPolarizations * NumPolarizations
}

// InputLength returns the number of complex input samples fed to the
// correlator for one compute call.
func (c TestConfiguration) InputLength() uint64 {
	return uint64(c.Stations) * uint64(c.Frequencies) * uint64(c.TimeSamples) * NumPolarizations
}

// Validate checks the configuration parameters for internal consistency.
func (c TestConfiguration) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("configuration name cannot be empty")
	}
	if c.Stations <= 0 || c.Stations%2 != 0 {
		return fmt.Errorf("configuration %q: stations must be positive and even, got %d", c.Name, c.Stations)
	}
	if c.Frequencies <= 0 {
		return fmt.Errorf("configuration %q: frequencies must be positive, got %d", c.Name, c.Frequencies)
	}
	if c.TimeSamples <= 0 {
		return fmt.Errorf("configuration %q: time samples must be positive, got %d", c.Name, c.TimeSamples)
	}
	return nil
}

// Record is one complex output value at a fixed position in the
// correlation matrix.
type Record struct {
	Index uint64
	Real  float64
	Imag  float64
}

// ExecutionArtifact is the persisted numeric output of one workload run,
// plus the metadata needed to decide whether two artifacts are comparable.
type ExecutionArtifact struct {
	Environment    EnvironmentRole
	Config         string
	Stations       int
	Frequencies    int
	TimeSamples    int
	MatrixLength   uint64
	RuntimeVersion string
	Seed           int
	ExecTime       float64 // wall-clock compute time in seconds
	Generated      time.Time
	Records        []Record
}

// Comparable reports whether two artifacts were produced from the same
// configuration shape. Artifacts with differing shapes must not be
// compared element-wise.
func (a *ExecutionArtifact) Comparable(b *ExecutionArtifact) bool {
	return a.MatrixLength == b.MatrixLength &&
		a.Stations == b.Stations &&
		a.Frequencies == b.Frequencies &&
		a.TimeSamples == b.TimeSamples
}

// Verdict is the pass/fail outcome attached to one configuration.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// FailureReason is the machine-readable cause attached to a failed
// configuration.
type FailureReason string

const (
	ReasonNone                 FailureReason = ""
	ReasonUnknownConfiguration FailureReason = "UnknownConfiguration"
	ReasonBuildError           FailureReason = "BuildError"
	ReasonExecutionTimeout     FailureReason = "ExecutionTimeout"
	ReasonMissingArtifact      FailureReason = "MissingArtifact"
	ReasonFormatError          FailureReason = "FormatError"
	ReasonLengthMismatch       FailureReason = "LengthMismatch"
	ReasonValueMismatch        FailureReason = "ValueMismatch"
	// ReasonRuntimeError covers unclassified operational failures
	// (I/O errors, broken container runtime, etc.).
	ReasonRuntimeError FailureReason = "RuntimeError"
)

// DiffSample records one differing element for diagnostics, with the
// literal values from both environments.
type DiffSample struct {
	Index    uint64
	RefReal  float64
	RefImag  float64
	CandReal float64
	CandImag float64
	RealDiff float64
	ImagDiff float64
}

// MaxDiffSamples bounds how many differing records are retained for
// diagnostics.
const MaxDiffSamples = 10

// ComparisonResult is the outcome of comparing two artifacts for one
// configuration. It is computed on demand and not retained beyond the
// report that consumes it.
type ComparisonResult struct {
	Config           string
	Tolerance        float64
	TotalRecords     uint64
	EqualRecords     uint64
	DifferingRecords uint64
	MaxDifference    float64
	Samples          []DiffSample
	Verdict          Verdict
	Reason           FailureReason
	Detail           string
}

// PipelineState is one tagged state of the per-configuration pipeline.
type PipelineState string

const (
	StateIdle              PipelineState = "idle"
	StateBuildingReference PipelineState = "building-reference"
	StateRunningReference  PipelineState = "running-reference"
	StateBuildingCandidate PipelineState = "building-candidate"
	StateRunningCandidate  PipelineState = "running-candidate"
	StateComparing         PipelineState = "comparing"
	StateReporting         PipelineState = "reporting"
	StateCleaningUp        PipelineState = "cleaning-up"
	StateDone              PipelineState = "done"
	StateFailed            PipelineState = "failed"
)
