// Package config loads and validates assessment run configuration from
// yaml or json documents. Environment references like ${API_TOKEN} are
// expanded before parsing so secrets stay out of config files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"redcell/internal/plugin"
	"redcell/internal/target"
	"redcell/internal/types"
)

const (
	DefaultNumTests      = 10
	DefaultMaxConcurrent = 5
	DefaultOutputDir     = "./reports"
)

type Config struct {
	Target target.Config `json:"target" yaml:"target"`

	Plugins    []string `json:"plugins" yaml:"plugins"`
	Strategies []string `json:"strategies" yaml:"strategies"`

	// Compliance selects a preset plugin/strategy bundle. Explicit plugin
	// and strategy lists extend the preset rather than replacing it.
	Compliance string `json:"compliance,omitempty" yaml:"compliance,omitempty"`

	NumTests      int           `json:"num_tests" yaml:"num_tests"`
	MaxConcurrent int           `json:"max_concurrent" yaml:"max_concurrent"`
	Params        plugin.Params `json:"params,omitempty" yaml:"params,omitempty"`

	Output OutputConfig `json:"output" yaml:"output"`
}

type OutputConfig struct {
	Dir     string   `json:"dir" yaml:"dir"`
	Formats []string `json:"formats" yaml:"formats"`
}

func Default() Config {
	return Config{
		NumTests:      DefaultNumTests,
		MaxConcurrent: DefaultMaxConcurrent,
		Output: OutputConfig{
			Dir:     DefaultOutputDir,
			Formats: []string{"json"},
		},
	}
}

// Load reads the file at path, expands ${ENV} references, parses it by
// extension, applies any compliance preset, and fills defaults. The
// returned config is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	default:
		var yamlErr error
		if yamlErr = yaml.Unmarshal(data, &cfg); yamlErr == nil {
			break
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.New("config format not recognized (expected yaml/json)")
		}
	}

	if err := applyPreset(&cfg); err != nil {
		return cfg, err
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.NumTests <= 0 {
		cfg.NumTests = DefaultNumTests
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{"json"}
	}
	cfg.Plugins = dedupe(cfg.Plugins)
	cfg.Strategies = dedupe(cfg.Strategies)
}

// Validate checks the parts of the config that can be checked without the
// catalogs; unknown plugin and strategy ids surface later at expansion.
func (c Config) Validate() error {
	if len(c.Plugins) == 0 {
		return types.NewError(types.CodeConfigInvalid, "config selects no plugins")
	}
	if err := c.Target.Validate(); err != nil {
		return err
	}
	return nil
}

// dedupe removes duplicate ids while keeping first-seen order, so preset
// and explicit lists combine without double-running a plugin.
func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
