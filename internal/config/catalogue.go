package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/karavel-ai/compass/internal/classifier"
)

// catalogueFile is the YAML document shape for capability overrides.
type catalogueFile struct {
	Capabilities []classifier.CapabilityProfile `yaml:"capabilities"`
}

// LoadCatalogue returns the capability catalogue with any user overrides
// applied. Overrides are read from capabilities.yaml next to the user
// config, or from the path given if non-empty. A profile in the file
// replaces the fields it sets on the built-in profile for the same
// capability; unset fields keep their built-in values. Profiles for
// capabilities the build does not know are rejected.
func LoadCatalogue(path string) ([]classifier.CapabilityProfile, error) {
	if path == "" {
		path = filepath.Join(getUserConfigDir(), "capabilities.yaml")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return classifier.DefaultCatalogue, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalogue %s: %w", path, err)
	}

	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalogue %s: %w", path, err)
	}

	overrides := make(map[string]classifier.CapabilityProfile, len(file.Capabilities))
	for _, p := range file.Capabilities {
		if !p.Capability.Valid() {
			return nil, fmt.Errorf("catalogue %s: unknown capability %q", path, p.Capability)
		}
		overrides[string(p.Capability)] = p
	}

	catalogue := make([]classifier.CapabilityProfile, 0, len(classifier.DefaultCatalogue))
	for _, base := range classifier.DefaultCatalogue {
		override, ok := overrides[string(base.Capability)]
		if !ok {
			catalogue = append(catalogue, base)
			continue
		}
		// Fill the override's unset fields from the built-in profile.
		if err := mergo.Merge(&override, base); err != nil {
			return nil, fmt.Errorf("merging catalogue override for %s: %w", base.Capability, err)
		}
		catalogue = append(catalogue, override)
		delete(overrides, string(base.Capability))
	}

	// Profiles for capabilities without a built-in entry are appended in
	// file order.
	for _, p := range file.Capabilities {
		if _, ok := overrides[string(p.Capability)]; ok {
			catalogue = append(catalogue, overrides[string(p.Capability)])
			delete(overrides, string(p.Capability))
		}
	}

	return catalogue, nil
}
