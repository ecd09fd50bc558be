package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "XCOMPAT"

var (
	EnvConfig = &cli.StringFlag{
		Name:     "environments",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "ENVIRONMENTS"),
		Usage:    "Path to the environment descriptor file (eg. 'environments.yaml')",
	}
	ConfigName = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Name of the single test configuration to run (eg. 'micro')",
	}
	Comprehensive = &cli.BoolFlag{
		Name:    "comprehensive",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COMPREHENSIVE"),
		Usage:   "Run every registered configuration in registry order",
	}
	RegistryConfig = &cli.StringFlag{
		Name:    "registry",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REGISTRY"),
		Usage:   "Path to a YAML file replacing the built-in configuration table",
	}
	ResultsDir = &cli.StringFlag{
		Name:    "results-dir",
		Value:   "results",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RESULTS_DIR"),
		Usage:   "Directory to store persisted artifacts and execution logs",
	}
	WorkDir = &cli.StringFlag{
		Name:    "work-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORK_DIR"),
		Usage:   "Directory for transient per-run work directories (default: system temp)",
	}
	WorkloadBinary = &cli.StringFlag{
		Name:    "workload-binary",
		Value:   "/usr/local/bin/xgpu_test",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKLOAD_BINARY"),
		Usage:   "Path of the correlator test binary inside the environments",
	}
	DockerBinary = &cli.StringFlag{
		Name:    "docker-binary",
		Value:   "docker",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DOCKER_BINARY"),
		Usage:   "Path to the container runtime CLI used to build and run environments",
	}
	ComputeTimeout = &cli.DurationFlag{
		Name:    "compute-timeout",
		Value:   300 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COMPUTE_TIMEOUT"),
		Usage:   "Time budget for one workload compute call; on expiry the run is terminated",
	}
	Tolerance = &cli.Float64Flag{
		Name:    "tolerance",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TOLERANCE"),
		Usage:   "Numeric comparison tolerance; 0 requires exact equality",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
)

var requiredFlags = []cli.Flag{
	EnvConfig,
}

var optionalFlags = []cli.Flag{
	ConfigName,
	Comprehensive,
	RegistryConfig,
	ResultsDir,
	WorkDir,
	WorkloadBinary,
	DockerBinary,
	ComputeTimeout,
	Tolerance,
	RunInterval,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
