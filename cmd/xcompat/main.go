package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	xcompat "github.com/openxcorr/xcompat"
	"github.com/openxcorr/xcompat/artifact"
	"github.com/openxcorr/xcompat/env"
	"github.com/openxcorr/xcompat/exitcodes"
	"github.com/openxcorr/xcompat/flags"
	"github.com/openxcorr/xcompat/service"
)

var (
	Version   = "v0.3.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "xcompat"
	app.Usage = "Correlator Cross-Version Acceptance Tester"
	app.Description = "xcompat drives an identical correlator workload through two runtime environments and verifies their outputs are exactly equal"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.Commands = []*cli.Command{cleanCommand}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if xcompat.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if xcompat.IsComparisonFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.ComparisonFailure))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.ComparisonFailure))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start server
	svc := service.New()
	svc.Start(context.Background())
	defer svc.Shutdown()

	// Start CLI
	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()

	cfg, err := xcompat.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, xcompat.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc, err := xcompat.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, xcompat.NewRuntimeError(fmt.Errorf("failed to create xcompat: %w", err))
	}

	return svc, nil
}

var purgeResultsFlag = &cli.BoolFlag{
	Name:  "purge-results",
	Value: false,
	Usage: "Also remove the persisted results tree",
}

var cleanCommand = &cli.Command{
	Name:  "clean",
	Usage: "Tear down both environments and transient state",
	Flags: []cli.Flag{
		flags.EnvConfig,
		flags.DockerBinary,
		flags.ResultsDir,
		purgeResultsFlag,
	},
	Action: clean,
}

func clean(ctx *cli.Context) error {
	logger := oplog.NewLogger(os.Stdout, oplog.DefaultCLIConfig())

	envs, err := env.LoadPair(ctx.String(flags.EnvConfig.Name))
	if err != nil {
		return xcompat.NewRuntimeError(fmt.Errorf("failed to load environment descriptors: %w", err))
	}

	orch, err := env.NewOrchestrator(env.Config{
		Log:          logger,
		DockerBinary: ctx.String(flags.DockerBinary.Name),
	})
	if err != nil {
		return xcompat.NewRuntimeError(err)
	}

	var errs []error
	for _, d := range []env.Descriptor{envs.Reference, envs.Candidate} {
		ec := &env.Context{Role: d.Role, RuntimeVersion: d.RuntimeVersion, ImageTag: d.ImageTag}
		if err := orch.Destroy(ctx.Context, ec); err != nil {
			logger.Error("Failed to destroy environment", "environment", d.Role, "error", err)
			errs = append(errs, err)
		}
	}

	if ctx.Bool(purgeResultsFlag.Name) {
		collector, err := artifact.NewCollector(logger, ctx.String(flags.ResultsDir.Name))
		if err != nil {
			errs = append(errs, err)
		} else if err := collector.Purge(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return xcompat.NewRuntimeError(err)
	}
	logger.Info("Clean completed")
	return nil
}
