package types

import "time"

// TestCase is one immutable unit of adversarial work. Instances are created
// in bulk at run start and never mutated afterwards.
type TestCase struct {
	ID     ID     `json:"id"`
	Prompt string `json:"prompt"`

	PluginID   string `json:"plugin_id"`
	StrategyID string `json:"strategy_id,omitempty"`

	// OriginID links strategy variants (and escalation steps) back to the
	// base case they were derived from. Equal to ID for base cases.
	OriginID ID `json:"origin_id"`

	// Seq is the generation-order index. It governs report ordering and is
	// otherwise behaviorally irrelevant.
	Seq int `json:"seq"`

	ExpectedBehavior string            `json:"expected_behavior,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// WithSeq returns a copy of the case with its generation index assigned.
func (tc TestCase) WithSeq(seq int) TestCase {
	tc.Seq = seq
	return tc
}

// CloneMetadata returns a copy of the metadata map, safe to extend.
func (tc TestCase) CloneMetadata() map[string]string {
	out := make(map[string]string, len(tc.Metadata)+2)
	for k, v := range tc.Metadata {
		out[k] = v
	}
	return out
}

// TestResult is the raw execution outcome of one TestCase.
type TestResult struct {
	TestCaseID   ID            `json:"test_case_id"`
	Status       Status        `json:"status"`
	ActualOutput string        `json:"actual_output"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Latency      time.Duration `json:"latency_ms"`
	Timestamp    time.Time     `json:"timestamp"`
}

// GradedResult extends a TestResult with the grading verdict.
//
// Invariant: Status == StatusError implies IsVulnerable == false and
// Severity == SeverityNone.
type GradedResult struct {
	TestResult

	PluginID     string   `json:"plugin_id"`
	StrategyID   string   `json:"strategy_id,omitempty"`
	IsVulnerable bool     `json:"is_vulnerable"`
	Severity     Severity `json:"severity"`
	Explanation  string   `json:"explanation"`
}

// AssessmentResult is the root aggregate of one run. Results are stored in
// generation order regardless of completion order.
type AssessmentResult struct {
	RunID      ID     `json:"run_id"`
	TargetName string `json:"target_name"`

	Results []GradedResult `json:"test_results"`

	TotalTests           int              `json:"total_tests"`
	PassedTests          int              `json:"passed_tests"`
	FailedTests          int              `json:"failed_tests"`
	ErrorTests           int              `json:"error_tests"`
	VulnerabilitiesFound int              `json:"vulnerabilities_found"`
	AttackSuccessRate    float64          `json:"attack_success_rate"`
	SeverityBreakdown    map[Severity]int `json:"severity_breakdown"`

	PluginsUsed    []string `json:"plugins_used"`
	StrategiesUsed []string `json:"strategies_used"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Recalculate derives the summary fields from the stored results.
// AttackSuccessRate excludes errored executions from the denominator; it is
// zero when every execution errored.
func (ar *AssessmentResult) Recalculate() {
	ar.TotalTests = len(ar.Results)
	ar.PassedTests = 0
	ar.FailedTests = 0
	ar.ErrorTests = 0
	ar.VulnerabilitiesFound = 0
	ar.SeverityBreakdown = make(map[Severity]int)

	for _, r := range ar.Results {
		switch {
		case r.Status == StatusError:
			ar.ErrorTests++
		case r.IsVulnerable:
			ar.FailedTests++
			ar.VulnerabilitiesFound++
			ar.SeverityBreakdown[r.Severity]++
		default:
			ar.PassedTests++
		}
	}

	graded := ar.TotalTests - ar.ErrorTests
	if graded > 0 {
		ar.AttackSuccessRate = float64(ar.VulnerabilitiesFound) / float64(graded)
	} else {
		ar.AttackSuccessRate = 0
	}
}

// Duration is the wall-clock span of the run.
func (ar *AssessmentResult) Duration() time.Duration {
	if ar.FinishedAt.IsZero() || ar.StartedAt.IsZero() {
		return 0
	}
	return ar.FinishedAt.Sub(ar.StartedAt)
}
