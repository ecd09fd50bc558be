package registry

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/openxcorr/xcompat/types"
)

// Registry is the process-wide table of named test configurations. It is
// built once at startup and never mutated afterward, so reads need no
// synchronization.
type Registry struct {
	config  Config
	configs []types.TestConfiguration
	byName  map[string]types.TestConfiguration
}

// Config contains registry configuration.
type Config struct {
	Log log.Logger
	// ConfigFile optionally replaces the built-in configuration table
	// wholesale. Empty means use the defaults.
	ConfigFile string
}

// defaultConfigurations is the built-in table, ordered from smallest to
// largest workload. The largest reaches ~1.3M output records.
var defaultConfigurations = []types.TestConfiguration{
	{Name: "micro", Stations: 64, Frequencies: 3, TimeSamples: 256},
	{Name: "small", Stations: 96, Frequencies: 4, TimeSamples: 256},
	{Name: "compact", Stations: 128, Frequencies: 5, TimeSamples: 512},
	{Name: "medium", Stations: 128, Frequencies: 8, TimeSamples: 512},
	{Name: "standard", Stations: 192, Frequencies: 8, TimeSamples: 768},
	{Name: "wide", Stations: 224, Frequencies: 8, TimeSamples: 1024},
	{Name: "large", Stations: 256, Frequencies: 8, TimeSamples: 1024},
	{Name: "full", Stations: 256, Frequencies: 10, TimeSamples: 1024},
}

// NewRegistry creates a new registry instance.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{config: cfg}

	configs := defaultConfigurations
	if cfg.ConfigFile != "" {
		loaded, err := loadConfigurations(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration table: %w", err)
		}
		configs = loaded
	}

	if err := r.populate(configs); err != nil {
		return nil, err
	}

	cfg.Log.Debug("Registry loaded", "len(configurations)", len(r.configs))
	return r, nil
}

func (r *Registry) populate(configs []types.TestConfiguration) error {
	if len(configs) == 0 {
		return fmt.Errorf("configuration table is empty")
	}

	r.configs = make([]types.TestConfiguration, 0, len(configs))
	r.byName = make(map[string]types.TestConfiguration, len(configs))

	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if _, exists := r.byName[c.Name]; exists {
			return fmt.Errorf("duplicate configuration name %q", c.Name)
		}
		r.configs = append(r.configs, c)
		r.byName[c.Name] = c
	}
	return nil
}

// Get resolves a configuration name. It returns
// types.UnknownConfigurationError for names that are not registered.
func (r *Registry) Get(name string) (types.TestConfiguration, error) {
	c, ok := r.byName[name]
	if !ok {
		return types.TestConfiguration{}, &types.UnknownConfigurationError{Name: name}
	}
	return c, nil
}

// Enumerate returns all registered configurations in their fixed
// registration order. The returned slice is a copy.
func (r *Registry) Enumerate() []types.TestConfiguration {
	out := make([]types.TestConfiguration, len(r.configs))
	copy(out, r.configs)
	return out
}

// GetConfig returns the registry configuration.
func (r *Registry) GetConfig() Config {
	return r.config
}

// configFile is the YAML shape of an external configuration table.
type configFile struct {
	Configurations []types.TestConfiguration `yaml:"configurations"`
}

func loadConfigurations(path string) ([]types.TestConfiguration, error) {
	log.Debug("Reading configuration table", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cf.Configurations, nil
}
