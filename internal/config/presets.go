package config

import (
	"fmt"
	"sort"

	"redcell/internal/types"
)

// Preset is a compliance-framework bundle mapping to a fixed plugin and
// strategy selection.
type Preset struct {
	Name        string
	Description string
	Plugins     []string
	Strategies  []string
}

// presetStrategies is shared across frameworks: the transformations most
// audits expect a target to withstand.
var presetStrategies = []string{"jailbreak", "prompt-injection", "base64"}

var presets = map[string]Preset{
	"owasp-llm-top-10": {
		Name:        "owasp-llm-top-10",
		Description: "OWASP Top 10 for LLM Applications",
		Plugins: []string{
			"prompt-injection", "rbac", "pii", "overreliance",
			"excessive-agency", "hallucination",
		},
		Strategies: presetStrategies,
	},
	"owasp-api-top-10": {
		Name:        "owasp-api-top-10",
		Description: "OWASP API Security Top 10",
		Plugins: []string{
			"rbac", "sql-injection", "shell-injection", "debug-access",
			"excessive-agency",
		},
		Strategies: presetStrategies,
	},
	"nist-ai-rmf": {
		Name:        "nist-ai-rmf",
		Description: "NIST AI Risk Management Framework",
		Plugins: []string{
			"harmful-content", "pii", "hallucination", "overreliance",
		},
		Strategies: presetStrategies,
	},
	"mitre-atlas": {
		Name:        "mitre-atlas",
		Description: "MITRE ATLAS adversarial threat coverage",
		Plugins: []string{
			"prompt-injection", "debug-access", "harmful-content", "rbac",
		},
		Strategies: presetStrategies,
	},
	"eu-ai-act": {
		Name:        "eu-ai-act",
		Description: "EU AI Act high-risk system checks",
		Plugins: []string{
			"harmful-content", "pii", "harmful:hate", "hallucination",
		},
		Strategies: presetStrategies,
	},
}

// Presets lists the available compliance bundles sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupPreset returns the preset for name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// applyPreset merges the selected preset's plugins and strategies in front
// of the explicit lists. Duplicates are removed later by normalize.
func applyPreset(cfg *Config) error {
	if cfg.Compliance == "" {
		return nil
	}
	p, ok := presets[cfg.Compliance]
	if !ok {
		return types.NewError(types.CodeConfigInvalid,
			fmt.Sprintf("unknown compliance preset %q", cfg.Compliance))
	}
	cfg.Plugins = append(append([]string(nil), p.Plugins...), cfg.Plugins...)
	cfg.Strategies = append(append([]string(nil), p.Strategies...), cfg.Strategies...)
	return nil
}
