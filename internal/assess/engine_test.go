package assess

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redcell/internal/grader"
	"redcell/internal/plugin"
	"redcell/internal/strategy"
	"redcell/internal/types"
)

// echoClient answers every prompt with the prompt itself after a random
// short delay, so completion order differs from submission order.
type echoClient struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	fail     func(prompt string) error
}

func (c *echoClient) Name() string { return "echo" }

func (c *echoClient) Invoke(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	if c.fail != nil {
		if err := c.fail(prompt); err != nil {
			return "", err
		}
	}
	return prompt, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := slog.Default()
	return NewEngine(
		plugin.NewRegistry(logger, plugin.Builtins()...),
		strategy.NewRegistry(strategy.Builtins()...),
		grader.New(logger),
		logger,
	)
}

func TestExpandCaseCountFormula(t *testing.T) {
	e := newTestEngine(t)
	cases, err := e.Expand(Spec{
		Plugins:    []string{"pii", "sql-injection"},
		Strategies: []string{"base64", "rot13"},
		NumTests:   2,
	})
	require.NoError(t, err)
	// 2 plugins x 2 cases x (1 base + 2 variants).
	assert.Len(t, cases, 12)
	for i, tc := range cases {
		assert.Equal(t, i, tc.Seq)
	}
	// Each base is immediately followed by its variants in configured order.
	assert.Empty(t, cases[0].StrategyID)
	assert.Equal(t, "base64", cases[1].StrategyID)
	assert.Equal(t, "rot13", cases[2].StrategyID)
	assert.Equal(t, cases[0].ID, cases[1].OriginID)
	assert.Equal(t, cases[0].ID, cases[2].OriginID)
}

func TestExpandEscalationContributesStepCount(t *testing.T) {
	e := newTestEngine(t)
	cases, err := e.Expand(Spec{
		Plugins:    []string{"harmful-content"},
		Strategies: []string{"crescendo"},
		NumTests:   1,
	})
	require.NoError(t, err)
	// 1 base + 3 escalation steps.
	require.Len(t, cases, 4)
	for _, tc := range cases[1:] {
		assert.Equal(t, "crescendo", tc.StrategyID)
		assert.Equal(t, cases[0].ID, tc.OriginID)
	}
}

func TestExpandErrors(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Expand(Spec{NumTests: 3})
	assert.True(t, errors.Is(err, types.NewError(types.CodeEmptyAssessment, "")))

	_, err = e.Expand(Spec{Plugins: []string{"no-such-plugin"}, NumTests: 3})
	assert.Equal(t, types.CodeUnknownPlugin, types.CodeOf(err))

	_, err = e.Expand(Spec{
		Plugins:    []string{"pii"},
		Strategies: []string{"no-such-strategy"},
		NumTests:   3,
	})
	assert.Equal(t, types.CodeUnknownStrategy, types.CodeOf(err))

	_, err = e.Expand(Spec{Plugins: []string{"pii"}, NumTests: 0})
	assert.Equal(t, types.CodeEmptyAssessment, types.CodeOf(err))
}

func TestRunStoresResultsInGenerationOrder(t *testing.T) {
	e := newTestEngine(t)
	spec := Spec{
		Plugins:       []string{"pii", "hallucination"},
		Strategies:    []string{"rot13"},
		NumTests:      4,
		MaxConcurrent: 8,
	}

	// Prompt expansion is deterministic, so a second Expand yields the
	// same prompts in the same order.
	cases, err := e.Expand(spec)
	require.NoError(t, err)

	client := &echoClient{}
	result, err := e.Run(context.Background(), client, spec)
	require.NoError(t, err)
	require.Len(t, result.Results, len(cases))
	for i, r := range result.Results {
		assert.Equal(t, cases[i].Prompt, r.ActualOutput, "slot %d out of order", i)
		assert.Equal(t, cases[i].PluginID, r.PluginID)
	}
	assert.LessOrEqual(t, client.peak, 8)
}

func TestRunIsolatesInvocationFailures(t *testing.T) {
	e := newTestEngine(t)
	client := &echoClient{
		fail: func(prompt string) error {
			if strings.Contains(prompt, "credit card") {
				return errors.New("upstream 503")
			}
			return nil
		},
	}

	result, err := e.Run(context.Background(), client, Spec{
		Plugins:  []string{"pii"},
		NumTests: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalTests)
	require.NotZero(t, result.ErrorTests, "expected at least one failed invocation")

	for _, r := range result.Results {
		if r.Status == types.StatusError {
			assert.False(t, r.IsVulnerable)
			assert.Equal(t, types.SeverityNone, r.Severity)
			assert.Contains(t, r.ErrorMessage, "upstream 503")
		}
	}
	assert.Equal(t, result.TotalTests, result.PassedTests+result.FailedTests+result.ErrorTests)
}

func TestRunCancelledContextYieldsCompleteResult(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx, &echoClient{}, Spec{
		Plugins:  []string{"sql-injection"},
		NumTests: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalTests)
	assert.Equal(t, 3, result.ErrorTests)
	assert.Zero(t, result.AttackSuccessRate)
	for _, r := range result.Results {
		assert.Equal(t, types.StatusError, r.Status)
		assert.Contains(t, r.ErrorMessage, "cancelled")
	}
}

func TestRunSyncMatchesRunShape(t *testing.T) {
	e := newTestEngine(t)
	spec := Spec{Plugins: []string{"hallucination"}, NumTests: 3}

	client := &echoClient{}
	result, err := e.RunSync(context.Background(), client, spec)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalTests)
	assert.Equal(t, 1, client.peak, "sync run must keep one invocation in flight")
	assert.Equal(t, []string{"hallucination"}, result.PluginsUsed)
	assert.NotZero(t, result.RunID)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}
