package necs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StateDefinition declares one boolean state: its default value, whether its
// value is replicated as an entity attribute and the set of states it is
// mutually exclusive with. Definitions are configuration data, immutable
// after load.
type StateDefinition struct {
	Name      string   `yaml:"name"`
	Default   bool     `yaml:"default"`
	Replicate bool     `yaml:"replicate"`
	Conflicts []string `yaml:"conflicts,omitempty"`
}

// StatDefinition declares one clamped numeric stat. Min and Max are optional
// bounds; MaxStat, if set, names another stat whose current value acts as
// this stat's effective ceiling (capped further by Max if both are given).
type StatDefinition struct {
	Name      string   `yaml:"name"`
	Default   float64  `yaml:"default"`
	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	MaxStat   string   `yaml:"max_stat,omitempty"`
	Replicate bool     `yaml:"replicate"`
}

// Definitions bundles the data tables the runtime consumes at startup:
// state and stat definition tables and the archetype table mapping archetype
// names to ordered component-name lists.
type Definitions struct {
	States     []StateDefinition   `yaml:"states,omitempty"`
	Stats      []StatDefinition    `yaml:"stats,omitempty"`
	Archetypes map[string][]string `yaml:"archetypes,omitempty"`
}

// ParseDefinitions decodes YAML definition tables and validates them.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("necs: parse definitions: %w", err)
	}
	if err := defs.Validate(); err != nil {
		return nil, err
	}
	return &defs, nil
}

// LoadDefinitions reads and parses a YAML definitions file.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("necs: load definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// Validate checks the definition tables for internal consistency: unique
// names, conflict references to declared states, max_stat references to
// declared stats and min not exceeding max.
func (d *Definitions) Validate() error {
	states := make(map[string]struct{}, len(d.States))
	for _, s := range d.States {
		if s.Name == "" {
			return fmt.Errorf("necs: state definition with empty name")
		}
		if _, ok := states[s.Name]; ok {
			return fmt.Errorf("necs: duplicate state definition %q", s.Name)
		}
		states[s.Name] = struct{}{}
	}
	for _, s := range d.States {
		for _, c := range s.Conflicts {
			if _, ok := states[c]; !ok {
				return fmt.Errorf("necs: state %q conflicts with undeclared state %q", s.Name, c)
			}
		}
	}

	stats := make(map[string]struct{}, len(d.Stats))
	for _, s := range d.Stats {
		if s.Name == "" {
			return fmt.Errorf("necs: stat definition with empty name")
		}
		if _, ok := stats[s.Name]; ok {
			return fmt.Errorf("necs: duplicate stat definition %q", s.Name)
		}
		stats[s.Name] = struct{}{}
	}
	for _, s := range d.Stats {
		if s.MaxStat != "" {
			if s.MaxStat == s.Name {
				return fmt.Errorf("necs: stat %q uses itself as max_stat", s.Name)
			}
			if _, ok := stats[s.MaxStat]; !ok {
				return fmt.Errorf("necs: stat %q caps on undeclared stat %q", s.Name, s.MaxStat)
			}
		}
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return fmt.Errorf("necs: stat %q has min %v above max %v", s.Name, *s.Min, *s.Max)
		}
	}

	return nil
}
