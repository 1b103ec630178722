package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/shorts-autopilot/internal/types"
)

// NicheCatalogue is the YAML document listing every niche.
type NicheCatalogue struct {
	Niches []types.ContentNiche `yaml:"niches"`
}

// LoadNiches reads a YAML niche catalogue. ${VAR} references are expanded from the
// environment before parsing so credentials can stay out of the file.
func LoadNiches(path string) ([]types.ContentNiche, error) {
	if path == "" {
		return nil, fmt.Errorf("niches path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read niches file %s: %w", path, err)
	}
	return ParseNiches(data)
}

// ParseNiches parses and validates catalogue YAML.
func ParseNiches(data []byte) ([]types.ContentNiche, error) {
	expanded := os.ExpandEnv(string(data))

	var catalogue NicheCatalogue
	if err := yaml.Unmarshal([]byte(expanded), &catalogue); err != nil {
		return nil, fmt.Errorf("failed to parse niches YAML: %w", err)
	}
	if len(catalogue.Niches) == 0 {
		return nil, fmt.Errorf("niches file defines no niches")
	}

	seen := make(map[string]bool, len(catalogue.Niches))
	for i := range catalogue.Niches {
		n := &catalogue.Niches[i]
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("niche %d (%q) is invalid: %w", i, n.ID, err)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate niche id %q", n.ID)
		}
		seen[n.ID] = true
		if n.Schedule.Timezone != "" && n.Schedule.Location().String() != n.Schedule.Timezone {
			return nil, fmt.Errorf("niche %q has unknown timezone %q", n.ID, n.Schedule.Timezone)
		}
	}
	return catalogue.Niches, nil
}
