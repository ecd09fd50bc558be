// Package workload drives the opaque correlator under test. The harness
// never reimplements the computation; it only consumes the workload
// through the init/generate/compute/free contract below.
package workload

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/openxcorr/xcompat/env"
	"github.com/openxcorr/xcompat/types"
)

// Info is the workload's own view of its configuration, used for
// self-consistency checking against the registered configuration.
type Info struct {
	Stations     int
	Frequencies  int
	TimeSamples  int
	MatrixLength uint64
	InputLength  uint64
}

// Workload is the narrow contract with the correlator under test.
type Workload interface {
	// Info reports the workload's compiled-in dimensions.
	Info(ctx context.Context) (Info, error)
	// Generate produces the deterministic input data for the given seed.
	Generate(ctx context.Context, seed int) error
	// Compute runs the correlation and writes the output artifact. It
	// returns the captured run so the caller can observe the log,
	// duration and timeout state.
	Compute(ctx context.Context) (*env.CapturedRun, error)
	// Free releases workload resources.
	Free(ctx context.Context) error
}

// EnvRunner is the slice of the orchestrator the workload needs.
type EnvRunner interface {
	Run(ctx context.Context, ec *env.Context, command []string, mounts []env.Mount, budget time.Duration) (*env.CapturedRun, error)
}

const (
	// ContainerWorkDir is where the host work directory is mounted
	// inside the environment.
	ContainerWorkDir = "/work"

	// OutputFilename is the artifact the compute call writes into the
	// work directory.
	OutputFilename = "results.txt"

	// InputFilename holds the generated input samples.
	InputFilename = "input.dat"

	// auxiliary calls get a short fixed budget; only compute runs long
	auxBudget = 2 * time.Minute
)

// ProcessWorkload drives the correlator test binary inside one
// environment. Each contract call is one bounded container invocation.
type ProcessWorkload struct {
	log            log.Logger
	runner         EnvRunner
	ec             *env.Context
	cfg            types.TestConfiguration
	binary         string
	hostWorkDir    string
	computeTimeout time.Duration
	// transcript accumulates the combined output of every invocation.
	transcript []string
}

// NewProcessWorkload creates a workload bound to one environment, one
// configuration and one host work directory.
func NewProcessWorkload(logger log.Logger, runner EnvRunner, ec *env.Context,
	cfg types.TestConfiguration, binary, hostWorkDir string, computeTimeout time.Duration) (*ProcessWorkload, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if ec == nil {
		return nil, fmt.Errorf("environment context cannot be nil")
	}
	if binary == "" {
		return nil, fmt.Errorf("workload binary cannot be empty")
	}
	if hostWorkDir == "" {
		return nil, fmt.Errorf("host work directory cannot be empty")
	}

	return &ProcessWorkload{
		log:            logger,
		runner:         runner,
		ec:             ec,
		cfg:            cfg,
		binary:         binary,
		hostWorkDir:    hostWorkDir,
		computeTimeout: computeTimeout,
	}, nil
}

var infoLineRe = regexp.MustCompile(`(?m)^(Stations|Frequencies|Time Samples|Matrix Length|Input Length):\s+(\d+)$`)

// Info implements Workload.
func (w *ProcessWorkload) Info(ctx context.Context) (Info, error) {
	captured, err := w.invoke(ctx, auxBudget, "--info")
	if err != nil {
		return Info{}, fmt.Errorf("workload info call failed: %w", err)
	}

	info := Info{}
	seen := 0
	for _, m := range infoLineRe.FindAllStringSubmatch(captured.Output, -1) {
		v, convErr := strconv.ParseUint(m[2], 10, 64)
		if convErr != nil {
			return Info{}, fmt.Errorf("workload info reported unparsable %s: %q", m[1], m[2])
		}
		switch m[1] {
		case "Stations":
			info.Stations = int(v)
		case "Frequencies":
			info.Frequencies = int(v)
		case "Time Samples":
			info.TimeSamples = int(v)
		case "Matrix Length":
			info.MatrixLength = v
		case "Input Length":
			info.InputLength = v
		}
		seen++
	}
	if seen < 5 {
		return Info{}, fmt.Errorf("workload info output incomplete (%d of 5 fields): %s", seen, captured.Output)
	}
	return info, nil
}

// Generate implements Workload. Both environments run the identical
// generation algorithm with the same seed, so the produced input is
// bit-identical on either side.
func (w *ProcessWorkload) Generate(ctx context.Context, seed int) error {
	_, err := w.invoke(ctx, auxBudget,
		"--generate",
		"--seed", strconv.Itoa(seed),
		"--input", ContainerWorkDir+"/"+InputFilename)
	if err != nil {
		return fmt.Errorf("workload generate call failed: %w", err)
	}
	return nil
}

// Compute implements Workload.
func (w *ProcessWorkload) Compute(ctx context.Context) (*env.CapturedRun, error) {
	return w.invoke(ctx, w.computeTimeout,
		"--compute",
		"--input", ContainerWorkDir+"/"+InputFilename,
		"--output", ContainerWorkDir+"/"+OutputFilename)
}

// Free implements Workload. The workload binary releases device memory
// itself; here we release the staged input inside the work directory.
func (w *ProcessWorkload) Free(ctx context.Context) error {
	_, err := w.invoke(ctx, auxBudget, "--free", "--input", ContainerWorkDir+"/"+InputFilename)
	if err != nil {
		return fmt.Errorf("workload free call failed: %w", err)
	}
	return nil
}

// Transcript returns the combined output of every contract call so far.
func (w *ProcessWorkload) Transcript() string {
	out := ""
	for _, t := range w.transcript {
		out += t
	}
	return out
}

func (w *ProcessWorkload) invoke(ctx context.Context, budget time.Duration, args ...string) (*env.CapturedRun, error) {
	command := append([]string{
		w.binary,
		"--stations", strconv.Itoa(w.cfg.Stations),
		"--frequencies", strconv.Itoa(w.cfg.Frequencies),
		"--time-samples", strconv.Itoa(w.cfg.TimeSamples),
	}, args...)

	mounts := []env.Mount{{Host: w.hostWorkDir, Container: ContainerWorkDir}}

	captured, err := w.runner.Run(ctx, w.ec, command, mounts, budget)
	if captured != nil {
		w.transcript = append(w.transcript, captured.Output)
	}
	if err != nil {
		return captured, err
	}
	return captured, nil
}
