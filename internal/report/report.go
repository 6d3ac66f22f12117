// Package report turns an AssessmentResult into human- and
// machine-readable artifacts. Generation is pure; writing is atomic.
package report

import (
	"sort"
	"time"

	"redcell/internal/types"
)

// Summary is the flattened run overview embedded at the top of every
// report format.
type Summary struct {
	RunID           string    `json:"run_id"`
	Target          string    `json:"target_name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`

	TotalTests           int     `json:"total_tests"`
	PassedTests          int     `json:"passed_tests"`
	FailedTests          int     `json:"failed_tests"`
	ErrorTests           int     `json:"error_tests"`
	VulnerabilitiesFound int     `json:"vulnerabilities_found"`
	AttackSuccessRate    float64 `json:"attack_success_rate"`

	VulnerabilitiesBySeverity map[string]int `json:"vulnerabilities_by_severity"`
	VulnerabilitiesByPlugin   map[string]int `json:"vulnerabilities_by_plugin"`
	VulnerabilitiesByStrategy map[string]int `json:"vulnerabilities_by_strategy"`

	PluginsUsed    []string `json:"plugins_used"`
	StrategiesUsed []string `json:"strategies_used"`
}

// Summarize derives the Summary from a finished result. Base cases with no
// strategy applied are counted under the "none" strategy key.
func Summarize(res *types.AssessmentResult) Summary {
	s := Summary{
		RunID:                res.RunID.String(),
		Target:               res.TargetName,
		StartTime:            res.StartedAt,
		EndTime:              res.FinishedAt,
		DurationSeconds:      res.Duration().Seconds(),
		TotalTests:           res.TotalTests,
		PassedTests:          res.PassedTests,
		FailedTests:          res.FailedTests,
		ErrorTests:           res.ErrorTests,
		VulnerabilitiesFound: res.VulnerabilitiesFound,
		AttackSuccessRate:    res.AttackSuccessRate,

		VulnerabilitiesBySeverity: make(map[string]int),
		VulnerabilitiesByPlugin:   make(map[string]int),
		VulnerabilitiesByStrategy: make(map[string]int),

		PluginsUsed:    append([]string(nil), res.PluginsUsed...),
		StrategiesUsed: append([]string(nil), res.StrategiesUsed...),
	}

	for sev, n := range res.SeverityBreakdown {
		s.VulnerabilitiesBySeverity[string(sev)] = n
	}
	for _, r := range res.Results {
		if !r.IsVulnerable {
			continue
		}
		s.VulnerabilitiesByPlugin[r.PluginID]++
		key := r.StrategyID
		if key == "" {
			key = "none"
		}
		s.VulnerabilitiesByStrategy[key]++
	}
	return s
}

// severityRows returns the breakdown in fixed severity order, skipping
// empty buckets, for the text and HTML renderers.
func severityRows(s Summary) []breakdownRow {
	var rows []breakdownRow
	for _, sev := range types.SeverityOrder() {
		if n := s.VulnerabilitiesBySeverity[string(sev)]; n > 0 {
			rows = append(rows, breakdownRow{Name: string(sev), Count: n})
		}
	}
	return rows
}

// sortedRows renders an arbitrary breakdown map largest-first, ties broken
// by name for stable output.
func sortedRows(m map[string]int) []breakdownRow {
	rows := make([]breakdownRow, 0, len(m))
	for name, n := range m {
		rows = append(rows, breakdownRow{Name: name, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

type breakdownRow struct {
	Name  string
	Count int
}
