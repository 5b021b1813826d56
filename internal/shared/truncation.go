package shared

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// truncationFile is the on-disk form of the restricted-mode page caps:
//
//	caps:
//	  /rentals: 1
//	  /locations: 2
type truncationFile struct {
	Caps map[string]int `yaml:"caps"`
}

// LoadCaps merges caps from a YAML file over base. Entries in the file win.
func LoadCaps(path string, base map[string]int) (map[string]int, error) {
	out := make(map[string]int, len(base))
	for k, v := range base {
		out[k] = v
	}
	if path == "" {
		return out, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read truncation file: %w", err)
	}
	var f truncationFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse truncation file %s: %w", path, err)
	}
	for k, v := range f.Caps {
		if v <= 0 {
			return nil, fmt.Errorf("truncation file %s: cap for %s must be positive", path, k)
		}
		out[k] = v
	}
	return out, nil
}
