// Package strategy implements the prompt-transformation catalog. A strategy
// rewrites a base test case into an obfuscated or escalated variant while
// keeping lineage back to the originating case.
package strategy

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"redcell/internal/types"
)

// Strategy transforms one base case into one or more variants. Apply must be
// a pure function of the base prompt and the strategy's static tables: same
// input, same output, every time.
type Strategy interface {
	ID() string
	Description() string
	// Apply never mutates base. Non-escalation strategies return exactly one
	// variant; escalation strategies return their full ordered step sequence.
	Apply(base types.TestCase) []types.TestCase
}

// Registry maps strategy ids to transforms, built explicitly like the
// plugin registry.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.ID()] = s
	}
	return r
}

func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.ID()] = s
}

// Get returns the strategy for id or an UNKNOWN_STRATEGY error.
func (r *Registry) Get(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	if !ok {
		return nil, types.NewError(types.CodeUnknownStrategy, fmt.Sprintf("strategy %q is not registered", id))
	}
	return s, nil
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Builtins returns one instance of every builtin strategy.
func Builtins() []Strategy {
	return []Strategy{
		Base64Strategy{},
		ROT13Strategy{},
		LeetspeakStrategy{},
		JailbreakStrategy{},
		MultilingualStrategy{},
		InjectionStrategy{},
		CrescendoStrategy{Steps: 3},
	}
}

// stableIndex derives a deterministic template index from the prompt text.
// Template choice must survive process restarts, so it hashes content
// rather than consulting a RNG.
func stableIndex(prompt string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return int(h.Sum32() % uint32(n))
}

// variant builds a transformed copy of base with lineage metadata.
func variant(base types.TestCase, strategyID, prompt, info string) types.TestCase {
	meta := base.CloneMetadata()
	meta["strategy"] = strategyID
	meta["strategy_info"] = info
	meta["original_input"] = base.Prompt
	return types.TestCase{
		ID:               base.ID.WithSuffix(strategyID),
		OriginID:         base.OriginID,
		Prompt:           prompt,
		PluginID:         base.PluginID,
		StrategyID:       strategyID,
		ExpectedBehavior: base.ExpectedBehavior,
		Metadata:         meta,
	}
}
