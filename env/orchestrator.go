package env

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/openxcorr/xcompat/types"
)

const (
	// DefaultDockerBinary is the container runtime CLI used to build and
	// run environments.
	DefaultDockerBinary = "docker"

	// DefaultBuildTimeout bounds one image build.
	DefaultBuildTimeout = 30 * time.Minute
)

// Context is one built, runnable execution context.
type Context struct {
	Role           types.EnvironmentRole
	RuntimeVersion string
	ImageTag       string
	// Reused is true when an existing image was found and the build was
	// skipped. The image may be stale relative to the descriptor.
	Reused bool
}

// Mount maps a host path into the container.
type Mount struct {
	Host      string
	Container string
}

// CapturedRun is the observed outcome of one command run inside an
// environment.
type CapturedRun struct {
	Output   string // combined stdout and stderr
	Duration time.Duration
	TimedOut bool
	ExitCode int
}

// CommandBuilder constructs an exec.Cmd plus a cleanup function. Injected
// so tests can substitute a fake container runtime.
type CommandBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

func defaultCommandBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	return exec.CommandContext(ctx, name, arg...), func() {}
}

// Orchestrator builds, runs and destroys the two isolated execution
// contexts. All operations are blocking; callers serialize them.
type Orchestrator struct {
	log          log.Logger
	dockerBinary string
	buildTimeout time.Duration
	cmdBuilder   CommandBuilder
}

// Config contains orchestrator configuration.
type Config struct {
	Log          log.Logger
	DockerBinary string
	BuildTimeout time.Duration
	CmdBuilder   CommandBuilder
}

// NewOrchestrator creates a new environment orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DockerBinary == "" {
		cfg.DockerBinary = DefaultDockerBinary
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = DefaultBuildTimeout
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = defaultCommandBuilder
	}

	return &Orchestrator{
		log:          cfg.Log,
		dockerBinary: cfg.DockerBinary,
		buildTimeout: cfg.BuildTimeout,
		cmdBuilder:   cfg.CmdBuilder,
	}, nil
}

// Ensure builds the environment described by d, or reuses an existing
// image with the same tag. Reuse does not detect a changed descriptor;
// run clean first to force a rebuild. A failed build yields
// types.BuildError.
func (o *Orchestrator) Ensure(ctx context.Context, d Descriptor) (*Context, error) {
	if err := d.Validate(); err != nil {
		return nil, &types.BuildError{Environment: d.Role, Err: err}
	}

	if o.imageExists(ctx, d.ImageTag) {
		o.log.Warn("Reusing existing environment image; rebuild is not detected on descriptor change",
			"environment", d.Role, "image", d.ImageTag)
		return &Context{
			Role:           d.Role,
			RuntimeVersion: d.RuntimeVersion,
			ImageTag:       d.ImageTag,
			Reused:         true,
		}, nil
	}

	o.log.Info("Building environment", "environment", d.Role, "image", d.ImageTag, "dockerfile", d.Dockerfile)

	buildCtx, cancel := context.WithTimeout(ctx, o.buildTimeout)
	defer cancel()

	buildDir := d.BuildContext
	if buildDir == "" {
		buildDir = "."
	}

	cmd, cleanup := o.cmdBuilder(buildCtx, o.dockerBinary,
		"build", "-f", d.Dockerfile, "-t", d.ImageTag, buildDir)
	defer cleanup()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return nil, &types.BuildError{
			Environment: d.Role,
			Err:         fmt.Errorf("%w\nbuild output: %s", err, tail(out.String(), 2048)),
		}
	}

	o.log.Info("Environment built", "environment", d.Role, "image", d.ImageTag)
	return &Context{
		Role:           d.Role,
		RuntimeVersion: d.RuntimeVersion,
		ImageTag:       d.ImageTag,
	}, nil
}

// Run executes one command inside the environment with the given mounts,
// bounded by budget. Cancellation is forced process termination; the
// captured output up to that point is still returned.
func (o *Orchestrator) Run(ctx context.Context, ec *Context, command []string, mounts []Mount, budget time.Duration) (*CapturedRun, error) {
	if ec == nil {
		return nil, fmt.Errorf("environment context cannot be nil")
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("command cannot be empty")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if budget > 0 {
		runCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	args := []string{"run", "--rm", "--gpus", "all"}
	for _, m := range mounts {
		args = append(args, "-v", m.Host+":"+m.Container)
	}
	args = append(args, ec.ImageTag)
	args = append(args, command...)

	cmd, cleanup := o.cmdBuilder(runCtx, o.dockerBinary, args...)
	defer cleanup()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	o.log.Debug("Running command in environment", "environment", ec.Role, "command", strings.Join(command, " "))

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	captured := &CapturedRun{
		Output:   out.String(),
		Duration: duration,
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		captured.TimedOut = true
		return captured, nil
	}

	if runErr != nil {
		exitErr := &exec.ExitError{}
		if errors.As(runErr, &exitErr) {
			captured.ExitCode = exitErr.ExitCode()
			return captured, fmt.Errorf("command exited with code %d in %s environment: %s",
				captured.ExitCode, ec.Role, tail(captured.Output, 2048))
		}
		return captured, fmt.Errorf("failed to run command in %s environment: %w", ec.Role, runErr)
	}

	return captured, nil
}

// Destroy removes the environment's image. Persisted results are not
// touched.
func (o *Orchestrator) Destroy(ctx context.Context, ec *Context) error {
	if ec == nil {
		return nil
	}

	o.log.Info("Destroying environment", "environment", ec.Role, "image", ec.ImageTag)

	cmd, cleanup := o.cmdBuilder(ctx, o.dockerBinary, "rmi", "-f", ec.ImageTag)
	defer cleanup()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to remove image %s: %w\n%s", ec.ImageTag, err, tail(out.String(), 1024))
	}
	return nil
}

// imageExists asks the container runtime whether the tag is already
// built.
func (o *Orchestrator) imageExists(ctx context.Context, tag string) bool {
	cmd, cleanup := o.cmdBuilder(ctx, o.dockerBinary, "image", "inspect", tag)
	defer cleanup()

	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return "..." + strings.TrimSpace(s[len(s)-n:])
}
