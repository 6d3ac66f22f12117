// Package assess orchestrates a red-team run: it expands the configured
// plugins and strategies into a flat test-case list, executes it against a
// target under bounded concurrency, and grades every outcome.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"redcell/internal/grader"
	"redcell/internal/plugin"
	"redcell/internal/strategy"
	"redcell/internal/target"
	"redcell/internal/types"
)

// DefaultMaxConcurrent bounds in-flight target invocations when the run
// spec does not set a limit.
const DefaultMaxConcurrent = 5

// Spec is the resolved configuration of a single run.
type Spec struct {
	Plugins       []string      `json:"plugins" yaml:"plugins"`
	Strategies    []string      `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	NumTests      int           `json:"num_tests" yaml:"num_tests"`
	MaxConcurrent int           `json:"max_concurrent" yaml:"max_concurrent"`
	Params        plugin.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// Engine wires the catalogs and the grader together. It holds no per-run
// state; one Engine serves any number of concurrent runs.
type Engine struct {
	plugins    *plugin.Registry
	strategies *strategy.Registry
	grader     *grader.Grader
	logger     *slog.Logger
}

func NewEngine(plugins *plugin.Registry, strategies *strategy.Registry, g *grader.Grader, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		plugins:    plugins,
		strategies: strategies,
		grader:     g,
		logger:     logger,
	}
}

// Expand turns a run spec into the full, ordered test-case list. Seq is
// assigned in generation order: plugins in configured order, each plugin's
// cases in pool order, each base case immediately followed by its strategy
// variants in configured strategy order.
func (e *Engine) Expand(spec Spec) ([]types.TestCase, error) {
	if len(spec.Plugins) == 0 {
		return nil, types.NewError(types.CodeEmptyAssessment, "no plugins configured")
	}

	// Resolve strategies up front so an unknown id fails before any
	// generation work happens.
	strats := make([]strategy.Strategy, 0, len(spec.Strategies))
	for _, id := range spec.Strategies {
		s, err := e.strategies.Get(id)
		if err != nil {
			return nil, err
		}
		strats = append(strats, s)
	}

	var cases []types.TestCase
	seq := 0
	for _, pluginID := range spec.Plugins {
		gen, err := e.plugins.Generate(pluginID, spec.NumTests, spec.Params)
		if err != nil {
			return nil, err
		}
		for _, base := range gen.Cases {
			base = base.WithSeq(seq)
			seq++
			cases = append(cases, base)
			for _, s := range strats {
				for _, v := range s.Apply(base) {
					cases = append(cases, v.WithSeq(seq))
					seq++
				}
			}
		}
	}

	if len(cases) == 0 {
		return nil, types.NewError(types.CodeEmptyAssessment, "expansion produced no test cases")
	}
	return cases, nil
}

// Run executes the spec against client and returns the aggregated result.
// Individual invocation failures are recorded as error-status results and
// never abort the run. Context cancellation stops scheduling new cases;
// cases that never ran are recorded as cancelled errors so the result stays
// complete and ordered.
func (e *Engine) Run(ctx context.Context, client target.Client, spec Spec) (*types.AssessmentResult, error) {
	cases, err := e.Expand(spec)
	if err != nil {
		return nil, err
	}

	limit := spec.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}

	e.logger.Info("assessment started",
		"target", client.Name(),
		"plugins", len(spec.Plugins),
		"strategies", len(spec.Strategies),
		"test_cases", len(cases),
		"max_concurrent", limit)

	result := &types.AssessmentResult{
		RunID:          types.NewID(),
		TargetName:     client.Name(),
		Results:        make([]types.GradedResult, len(cases)),
		PluginsUsed:    append([]string(nil), spec.Plugins...),
		StrategiesUsed: append([]string(nil), spec.Strategies...),
		StartedAt:      time.Now().UTC(),
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for _, tc := range cases {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Results are indexed by Seq, so filling the slot here keeps
			// stored order identical to generation order.
			result.Results[tc.Seq] = e.cancelledResult(tc, err)
			continue
		}
		wg.Add(1)
		go func(tc types.TestCase) {
			defer wg.Done()
			defer sem.Release(1)
			result.Results[tc.Seq] = e.executeOne(ctx, client, tc)
		}(tc)
	}
	wg.Wait()

	result.FinishedAt = time.Now().UTC()
	result.Recalculate()

	e.logger.Info("assessment finished",
		"run_id", result.RunID,
		"total", result.TotalTests,
		"vulnerabilities", result.VulnerabilitiesFound,
		"errors", result.ErrorTests,
		"attack_success_rate", fmt.Sprintf("%.3f", result.AttackSuccessRate))
	return result, nil
}

// RunSync is the single-flight variant of Run. Identical result shape, one
// in-flight invocation at a time.
func (e *Engine) RunSync(ctx context.Context, client target.Client, spec Spec) (*types.AssessmentResult, error) {
	spec.MaxConcurrent = 1
	return e.Run(ctx, client, spec)
}

func (e *Engine) executeOne(ctx context.Context, client target.Client, tc types.TestCase) types.GradedResult {
	started := time.Now()
	output, err := client.Invoke(ctx, tc.Prompt)
	res := types.TestResult{
		TestCaseID: tc.ID,
		Latency:    time.Since(started),
		Timestamp:  started.UTC(),
	}
	if err != nil {
		res.Status = types.StatusError
		res.ErrorMessage = err.Error()
		e.logger.Warn("target invocation failed",
			"test_case", tc.ID, "plugin", tc.PluginID, "error", err)
	} else {
		res.Status = types.StatusCompleted
		res.ActualOutput = output
	}
	return e.grader.Grade(tc, res)
}

func (e *Engine) cancelledResult(tc types.TestCase, cause error) types.GradedResult {
	res := types.TestResult{
		TestCaseID:   tc.ID,
		Status:       types.StatusError,
		ErrorMessage: fmt.Sprintf("run cancelled before execution: %v", cause),
		Timestamp:    time.Now().UTC(),
	}
	return e.grader.Grade(tc, res)
}
