package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModuleSettings configures one dispatch module.
type ModuleSettings struct {
	Enabled     bool   `yaml:"enabled"`
	Description string `yaml:"description,omitempty"`
}

// ModulesConfig declares which dispatch modules get installed.
type ModulesConfig struct {
	Modules map[string]ModuleSettings `yaml:"modules"`
}

// LoadModulesConfig reads a module routing file.
func LoadModulesConfig(path string) (*ModulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modules config: %w", err)
	}

	var cfg ModulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse modules config: %w", err)
	}
	if len(cfg.Modules) == 0 {
		return nil, fmt.Errorf("modules config %s declares no modules", path)
	}
	return &cfg, nil
}

// Enabled returns the enabled module names in stable order.
func (c *ModulesConfig) Enabled() []string {
	var out []string
	for name, settings := range c.Modules {
		if settings.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
