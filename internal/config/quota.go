package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultCeilingHistory is the compiled-in monthly message ceiling history,
// oldest first. The last entry is the ceiling applied to new usage periods;
// any earlier entry found on an existing period is migrated forward to the
// last one. Append here (or in quota.yaml) when the ceiling changes.
var DefaultCeilingHistory = []int{50, 100}

// CeilingHistory is the ordered list of historical monthly message ceilings.
type CeilingHistory struct {
	Ceilings []int `yaml:"ceilings"`
}

// LoadCeilingHistory reads a ceiling history from a YAML file. An empty path
// returns the compiled-in defaults.
func LoadCeilingHistory(path string) (*CeilingHistory, error) {
	if path == "" {
		return &CeilingHistory{Ceilings: DefaultCeilingHistory}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quota config: %w", err)
	}

	var history CeilingHistory
	if err := yaml.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse quota config: %w", err)
	}

	if err := history.Validate(); err != nil {
		return nil, err
	}
	return &history, nil
}

// Validate checks the history is non-empty, positive and strictly ascending.
// Ascending order is what makes forward-only migration safe: a ceiling can
// only ever move to a later, larger value.
func (h *CeilingHistory) Validate() error {
	if len(h.Ceilings) == 0 {
		return fmt.Errorf("quota config: ceiling history is empty")
	}
	prev := 0
	for i, c := range h.Ceilings {
		if c <= 0 {
			return fmt.Errorf("quota config: ceiling %d at index %d must be positive", c, i)
		}
		if c <= prev {
			return fmt.Errorf("quota config: ceilings must be strictly ascending (index %d: %d <= %d)", i, c, prev)
		}
		prev = c
	}
	return nil
}

// Current returns the ceiling applied to newly created usage periods.
func (h *CeilingHistory) Current() int {
	return h.Ceilings[len(h.Ceilings)-1]
}

// IsStale reports whether v is an obsolete ceiling that should be migrated
// forward to Current. The current ceiling itself is never stale, and unknown
// values (manual overrides) are left alone.
func (h *CeilingHistory) IsStale(v int) bool {
	for _, c := range h.Ceilings[:len(h.Ceilings)-1] {
		if v == c {
			return true
		}
	}
	return false
}
