// Package plugin implements the vulnerability-category test generators.
// Each plugin owns a fixed template pool of adversarial prompts and turns a
// requested count into concrete test cases.
package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"redcell/internal/types"
)

// Taxonomy groups plugins for documentation and reporting. It carries no
// runtime behavior.
type Taxonomy string

const (
	TaxonomySecurity     Taxonomy = "security"
	TaxonomyTrustSafety  Taxonomy = "trust-safety"
	TaxonomyBrand        Taxonomy = "brand"
	TaxonomyCompliance   Taxonomy = "compliance"
	TaxonomyDataSecurity Taxonomy = "data-security"
)

// Info describes a plugin for catalog listings and severity defaults.
type Info struct {
	ID              string         `json:"id"`
	Taxonomy        Taxonomy       `json:"taxonomy"`
	DefaultSeverity types.Severity `json:"default_severity"`
	Description     string         `json:"description"`
}

// Params carries category-specific generation parameters from the run
// configuration. Unknown keys are ignored; missing keys fall back to each
// plugin's built-in defaults.
type Params map[string][]string

// List returns the values for key, or defaults when absent or empty.
func (p Params) List(key string, defaults []string) []string {
	if p == nil {
		return defaults
	}
	if values, ok := p[key]; ok && len(values) > 0 {
		return values
	}
	return defaults
}

// Generation is the output of one plugin generation call. Truncated is set
// when the template pool was smaller than the requested count.
type Generation struct {
	Cases     []types.TestCase
	Truncated bool
}

// Plugin generates test cases for one vulnerability category.
type Plugin interface {
	Info() Info
	// Generate returns up to n cases in deterministic order. Fewer than n
	// are returned, with Truncated set, when the pool is exhausted.
	Generate(n int, params Params) Generation
}

// Registry maps plugin ids to generators. It is built explicitly at engine
// construction time from the builtin list plus caller extensions; no global
// state survives between runs.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	logger  *slog.Logger
}

// NewRegistry builds a registry over the given plugins. Later entries with
// a duplicate id replace earlier ones.
func NewRegistry(logger *slog.Logger, plugins ...Plugin) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		plugins: make(map[string]Plugin, len(plugins)),
		logger:  logger,
	}
	for _, p := range plugins {
		r.plugins[p.Info().ID] = p
	}
	return r
}

// Register adds or replaces a plugin.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Info().ID] = p
}

// Get returns the plugin for id or an UNKNOWN_PLUGIN error.
func (r *Registry) Get(id string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	if !ok {
		return nil, types.NewError(types.CodeUnknownPlugin, fmt.Sprintf("plugin %q is not registered", id))
	}
	return p, nil
}

// IDs returns all registered plugin ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Generate produces n cases for the given plugin id, logging a warning when
// the pool could not satisfy the request.
func (r *Registry) Generate(id string, n int, params Params) (Generation, error) {
	p, err := r.Get(id)
	if err != nil {
		return Generation{}, err
	}
	if n <= 0 {
		return Generation{}, nil
	}
	gen := p.Generate(n, params)
	if gen.Truncated {
		r.logger.Warn("plugin template pool exhausted",
			"plugin", id, "requested", n, "generated", len(gen.Cases))
	}
	return gen, nil
}
