package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/openxcorr/xcompat/types"
)

const (
	// LogSuffix names the execution log stored next to an artifact.
	LogSuffix = ".log"
	// ArtifactSuffix names the persisted numeric output.
	ArtifactSuffix = ".txt"
)

// Collector persists each run's artifact and execution log under the
// results tree, keyed by (environment, configuration). Re-collecting the
// same key overwrites the prior files; the tree carries no history.
type Collector struct {
	log     log.Logger
	baseDir string
}

// NewCollector creates a collector rooted at baseDir.
func NewCollector(logger log.Logger, baseDir string) (*Collector, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory %s: %w", baseDir, err)
	}
	return &Collector{log: logger, baseDir: baseDir}, nil
}

// ArtifactPath returns the path an artifact for the given key is stored
// at, whether or not it exists yet.
func (c *Collector) ArtifactPath(role types.EnvironmentRole, configName string) string {
	return filepath.Join(c.baseDir, configName, string(role)+ArtifactSuffix)
}

// LogPath returns the path of the execution log for the given key.
func (c *Collector) LogPath(role types.EnvironmentRole, configName string) string {
	return filepath.Join(c.baseDir, configName, string(role)+LogSuffix)
}

// Collect persists the artifact and its execution log. The write is
// last-writer-wins; callers serialize concurrent invocations.
func (c *Collector) Collect(a *types.ExecutionArtifact, runLog string) (string, error) {
	if a == nil {
		return "", fmt.Errorf("artifact cannot be nil")
	}
	if a.Config == "" {
		return "", fmt.Errorf("artifact configuration name cannot be empty")
	}

	dir := filepath.Join(c.baseDir, a.Config)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create result directory %s: %w", dir, err)
	}

	path := c.ArtifactPath(a.Environment, a.Config)
	if err := Write(path, a); err != nil {
		return "", err
	}

	logPath := c.LogPath(a.Environment, a.Config)
	if err := os.WriteFile(logPath, []byte(stripansi.Strip(runLog)), 0644); err != nil {
		return "", fmt.Errorf("failed to write execution log %s: %w", logPath, err)
	}

	c.log.Debug("Collected artifact",
		"environment", a.Environment, "config", a.Config, "records", len(a.Records), "path", path)
	return path, nil
}

// CollectLog persists just the execution log for the given key. Used
// when a run failed before producing an artifact; the log is still
// evidence worth keeping.
func (c *Collector) CollectLog(role types.EnvironmentRole, configName, runLog string) error {
	if runLog == "" {
		return nil
	}
	dir := filepath.Join(c.baseDir, configName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create result directory %s: %w", dir, err)
	}
	logPath := c.LogPath(role, configName)
	if err := os.WriteFile(logPath, []byte(stripansi.Strip(runLog)), 0644); err != nil {
		return fmt.Errorf("failed to write execution log %s: %w", logPath, err)
	}
	return nil
}

// ReadLog returns the persisted execution log for the given key, or an
// empty string when none exists.
func (c *Collector) ReadLog(role types.EnvironmentRole, configName string) string {
	data, err := os.ReadFile(c.LogPath(role, configName))
	if err != nil {
		return ""
	}
	return string(data)
}

// BaseDir returns the root of the results tree.
func (c *Collector) BaseDir() string {
	return c.baseDir
}

// Purge removes the entire results tree. It is only invoked on an
// explicit request; normal cleanup preserves persisted results.
func (c *Collector) Purge() error {
	c.log.Warn("Purging results tree", "dir", c.baseDir)
	if err := os.RemoveAll(c.baseDir); err != nil {
		return fmt.Errorf("failed to purge results tree %s: %w", c.baseDir, err)
	}
	return nil
}
