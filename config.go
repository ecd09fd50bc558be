package xcompat

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/openxcorr/xcompat/flags"
)

// Config holds the application configuration
type Config struct {
	EnvConfigFile  string        // Path to the environment descriptor file
	ConfigName     string        // Single configuration to run; empty in comprehensive mode
	Comprehensive  bool          // Run every registered configuration
	RegistryFile   string        // Optional replacement configuration table
	ResultsDir     string        // Root of the persisted results tree
	WorkDir        string        // Parent of transient per-run work directories
	WorkloadBinary string        // Correlator test binary path inside environments
	DockerBinary   string        // Container runtime CLI
	ComputeTimeout time.Duration // Budget for one compute call
	Tolerance      float64       // Comparison tolerance; 0 means exact
	RunInterval    time.Duration // Interval between runs
	RunOnce        bool          // Indicates if the service should exit after one run
	Log            log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	configName := ctx.String(flags.ConfigName.Name)
	comprehensive := ctx.Bool(flags.Comprehensive.Name)
	if configName == "" && !comprehensive {
		return nil, errors.New("either --config or --comprehensive is required")
	}
	if configName != "" && comprehensive {
		return nil, errors.New("--config and --comprehensive are mutually exclusive")
	}

	envConfigFile, err := filepath.Abs(ctx.String(flags.EnvConfig.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for environment config: %w", err)
	}

	resultsDir, err := filepath.Abs(ctx.String(flags.ResultsDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for results directory: %w", err)
	}

	workDir := ctx.String(flags.WorkDir.Name)
	if workDir == "" {
		workDir = os.TempDir()
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work directory: %w", err)
	}

	registryFile := ctx.String(flags.RegistryConfig.Name)
	if registryFile != "" {
		registryFile, err = filepath.Abs(registryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for registry file: %w", err)
		}
	}

	tolerance := ctx.Float64(flags.Tolerance.Name)
	if tolerance < 0 {
		return nil, fmt.Errorf("tolerance cannot be negative, got %g", tolerance)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		EnvConfigFile:  envConfigFile,
		ConfigName:     configName,
		Comprehensive:  comprehensive,
		RegistryFile:   registryFile,
		ResultsDir:     resultsDir,
		WorkDir:        workDir,
		WorkloadBinary: ctx.String(flags.WorkloadBinary.Name),
		DockerBinary:   ctx.String(flags.DockerBinary.Name),
		ComputeTimeout: ctx.Duration(flags.ComputeTimeout.Name),
		Tolerance:      tolerance,
		RunInterval:    runInterval,
		RunOnce:        runOnce,
		Log:            logger,
	}, nil
}
