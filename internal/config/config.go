// Package config loads the engine configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const SourceFileExt = ".ruta"

// SourceFileExtensions are all recognized policy source extensions.
var SourceFileExtensions = []string{".ruta", ".roto"}

// Config is the top-level engine configuration.
type Config struct {
	// Policies are the units the engine compiles and serves.
	Policies []Policy `yaml:"policies"`
	// Budget caps instructions per invocation. Zero uses the VM default.
	Budget int `yaml:"budget"`
	// Rib points at the route store backing rib and table lookups.
	Rib Rib `yaml:"rib"`
	// Watch recompiles policies when their files change.
	Watch bool `yaml:"watch"`
}

// Policy is a single policy unit on disk.
type Policy struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	// Entry is the filtermap or filter to invoke. Empty means the unit's
	// single entrypoint.
	Entry string `yaml:"entry"`
}

// Rib configures the SQLite route store.
type Rib struct {
	Path string `yaml:"path"`
}

// Load reads and validates a configuration file. Unknown keys are errors
// so typos fail loudly instead of silently defaulting.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Policies) == 0 {
		return fmt.Errorf("no policies configured")
	}
	seen := make(map[string]bool, len(c.Policies))
	for i, p := range c.Policies {
		if p.Name == "" {
			return fmt.Errorf("policies[%d]: missing name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("policies[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if p.Path == "" {
			return fmt.Errorf("policy %s: missing path", p.Name)
		}
	}
	if c.Budget < 0 {
		return fmt.Errorf("budget must not be negative")
	}
	return nil
}
