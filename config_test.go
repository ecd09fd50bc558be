package xcompat

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/openxcorr/xcompat/flags"
)

// parseConfig runs NewConfig through a real CLI parse.
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	var cfg *Config
	var cfgErr error
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		cfg, cfgErr = NewConfig(ctx, log.New())
		return nil
	}

	err := app.Run(append([]string{"xcompat"}, args...))
	require.NoError(t, err)
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(t, "--environments", "environments.yaml", "--config", "micro")
	require.NoError(t, err)

	assert.Equal(t, "micro", cfg.ConfigName)
	assert.False(t, cfg.Comprehensive)
	assert.True(t, cfg.RunOnce, "zero run interval means run-once mode")
	assert.Equal(t, 300*time.Second, cfg.ComputeTimeout)
	assert.Equal(t, "/usr/local/bin/xgpu_test", cfg.WorkloadBinary)
	assert.Equal(t, "docker", cfg.DockerBinary)
	assert.Zero(t, cfg.Tolerance)
	assert.NotEmpty(t, cfg.WorkDir)

	// Paths are resolved to absolute.
	assert.True(t, cfg.EnvConfigFile != "environments.yaml")
	assert.Contains(t, cfg.EnvConfigFile, "environments.yaml")
}

func TestNewConfigModeSelection(t *testing.T) {
	t.Run("neither config nor comprehensive", func(t *testing.T) {
		_, err := parseConfig(t, "--environments", "environments.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "either")
	})

	t.Run("both config and comprehensive", func(t *testing.T) {
		_, err := parseConfig(t, "--environments", "environments.yaml",
			"--config", "micro", "--comprehensive")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})

	t.Run("comprehensive", func(t *testing.T) {
		cfg, err := parseConfig(t, "--environments", "environments.yaml", "--comprehensive")
		require.NoError(t, err)
		assert.True(t, cfg.Comprehensive)
		assert.Empty(t, cfg.ConfigName)
	})
}

func TestNewConfigTolerance(t *testing.T) {
	cfg, err := parseConfig(t, "--environments", "environments.yaml",
		"--config", "micro", "--tolerance", "1e-6")
	require.NoError(t, err)
	assert.Equal(t, 1e-6, cfg.Tolerance)

	_, err = parseConfig(t, "--environments", "environments.yaml",
		"--config", "micro", "--tolerance", "-1")
	require.Error(t, err)
}

func TestNewConfigRunInterval(t *testing.T) {
	cfg, err := parseConfig(t, "--environments", "environments.yaml",
		"--comprehensive", "--run-interval", "1h")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.False(t, cfg.RunOnce)
}

func TestNewConfigRequiresEnvironments(t *testing.T) {
	var cfgErr error
	app := cli.NewApp()
	// Required flags enforced by NewConfig, not the CLI parser, so the
	// clean command can share parts of the flag set.
	appFlags := make([]cli.Flag, 0, len(flags.Flags))
	for _, f := range flags.Flags {
		if sf, ok := f.(*cli.StringFlag); ok && sf.Name == flags.EnvConfig.Name {
			clone := *sf
			clone.Required = false
			appFlags = append(appFlags, &clone)
			continue
		}
		appFlags = append(appFlags, f)
	}
	app.Flags = appFlags
	app.Action = func(ctx *cli.Context) error {
		_, cfgErr = NewConfig(ctx, log.New())
		return nil
	}

	require.NoError(t, app.Run([]string{"xcompat", "--config", "micro"}))
	require.Error(t, cfgErr)
	assert.Contains(t, cfgErr.Error(), "required")
}
