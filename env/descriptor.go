package env

import (
	"fmt"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/openxcorr/xcompat/types"
)

// Descriptor is the external build recipe for one environment. The two
// descriptors must be identical in every dimension except the runtime
// version under test; the harness does not construct them.
type Descriptor struct {
	Role           types.EnvironmentRole `yaml:"-"`
	RuntimeVersion string                `yaml:"runtime_version"`
	Dockerfile     string                `yaml:"dockerfile"`
	ImageTag       string                `yaml:"image_tag"`
	BuildContext   string                `yaml:"build_context,omitempty"`
}

// Validate checks that the descriptor names everything a build needs.
func (d Descriptor) Validate() error {
	if d.RuntimeVersion == "" {
		return fmt.Errorf("%s descriptor: runtime_version is required", d.Role)
	}
	if d.Dockerfile == "" {
		return fmt.Errorf("%s descriptor: dockerfile is required", d.Role)
	}
	if d.ImageTag == "" {
		return fmt.Errorf("%s descriptor: image_tag is required", d.Role)
	}
	return nil
}

// Pair holds the two descriptors of one test campaign.
type Pair struct {
	Reference Descriptor `yaml:"reference"`
	Candidate Descriptor `yaml:"candidate"`
}

// Validate checks both descriptors and that they actually differ along
// the tested dimension.
func (p Pair) Validate() error {
	if err := p.Reference.Validate(); err != nil {
		return err
	}
	if err := p.Candidate.Validate(); err != nil {
		return err
	}
	if p.Reference.RuntimeVersion == p.Candidate.RuntimeVersion {
		return fmt.Errorf("reference and candidate runtime versions are both %q; nothing to test",
			p.Reference.RuntimeVersion)
	}
	if p.Reference.ImageTag == p.Candidate.ImageTag {
		return fmt.Errorf("reference and candidate share image tag %q", p.Reference.ImageTag)
	}
	if newer := semver.Compare("v"+p.Candidate.RuntimeVersion, "v"+p.Reference.RuntimeVersion); newer < 0 {
		// Not an error, but almost always a swapped pair of descriptors.
		return fmt.Errorf("candidate runtime %s is older than reference runtime %s; check descriptor ordering",
			p.Candidate.RuntimeVersion, p.Reference.RuntimeVersion)
	}
	return nil
}

// envFile is the YAML shape of the environment descriptor file.
type envFile struct {
	Environments Pair `yaml:"environments"`
}

// LoadPair reads the two environment descriptors from a YAML file.
func LoadPair(path string) (Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pair{}, fmt.Errorf("reading environment config: %w", err)
	}

	var ef envFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return Pair{}, fmt.Errorf("parsing environment config: %w", err)
	}

	ef.Environments.Reference.Role = types.RoleReference
	ef.Environments.Candidate.Role = types.RoleCandidate

	if err := ef.Environments.Validate(); err != nil {
		return Pair{}, err
	}
	return ef.Environments, nil
}
