package server

import (
	"time"

	"redcell/internal/plugin"
	"redcell/internal/target"
	"redcell/internal/types"
)

type Principal struct {
	Subject  string `json:"subject"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// RunRequest describes one assessment submission.
type RunRequest struct {
	Target        target.Config `json:"target"`
	Plugins       []string      `json:"plugins,omitempty"`
	Strategies    []string      `json:"strategies,omitempty"`
	Compliance    string        `json:"compliance,omitempty"`
	NumTests      int           `json:"num_tests,omitempty"`
	MaxConcurrent int           `json:"max_concurrent,omitempty"`
	Params        plugin.Params `json:"params,omitempty"`
	TimeoutSec    int           `json:"timeout_sec,omitempty"`
	// DryRun expands the test plan without invoking the target.
	DryRun bool `json:"dry_run,omitempty"`
}

// QuickScanRequest is the unauthenticated entrypoint: a compliance preset
// against an endpoint, capped test volume, no custom plugin selection.
type QuickScanRequest struct {
	Preset     string `json:"preset"`
	Endpoint   string `json:"endpoint"`
	TargetName string `json:"target_name,omitempty"`
}

// Run lifecycle statuses.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

type RunMeta struct {
	RunID       string     `json:"run_id"`
	Status      string     `json:"status"`
	CreatorType string     `json:"creator_type"`
	CreatorSub  string     `json:"creator_sub,omitempty"`
	Source      string     `json:"source"`
	Request     RunRequest `json:"request"`
	StartedAt   string     `json:"started_at,omitempty"`
	FinishedAt  string     `json:"finished_at,omitempty"`
	CreatedAt   string     `json:"created_at"`
	Error       string     `json:"error,omitempty"`

	Result *types.AssessmentResult `json:"result,omitempty"`
	Risk   RiskSnapshot            `json:"risk"`
}

// RiskSnapshot is the compact findings view carried on every run row, so
// listings never need to deserialize the full result.
type RiskSnapshot struct {
	VulnerabilitiesFound int     `json:"vulnerabilities_found"`
	AttackSuccessRate    float64 `json:"attack_success_rate"`
	CriticalFindings     int     `json:"critical_findings"`
	HighFindings         int     `json:"high_findings"`
	ErrorTests           int     `json:"error_tests"`
}

func riskFromResult(res *types.AssessmentResult) RiskSnapshot {
	if res == nil {
		return RiskSnapshot{}
	}
	return RiskSnapshot{
		VulnerabilitiesFound: res.VulnerabilitiesFound,
		AttackSuccessRate:    res.AttackSuccessRate,
		CriticalFindings:     res.SeverityBreakdown[types.SeverityCritical],
		HighFindings:         res.SeverityBreakdown[types.SeverityHigh],
		ErrorTests:           res.ErrorTests,
	}
}

type AuditEvent struct {
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id,omitempty"`
	ActorType string `json:"actor_type"`
	ActorSub  string `json:"actor_sub,omitempty"`
	Action    string `json:"action"`
	Result    string `json:"result"`
	IPHash    string `json:"ip_hash,omitempty"`
	UAHash    string `json:"ua_hash,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type RunEvent struct {
	Seq       int64          `json:"seq"`
	Timestamp string         `json:"timestamp"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

type MetricsOverview struct {
	GeneratedAt          string  `json:"generated_at"`
	TotalRuns            int     `json:"total_runs"`
	RunningRuns          int     `json:"running_runs"`
	CompletedRuns        int     `json:"completed_runs"`
	FailedRuns           int     `json:"failed_runs"`
	VulnerabilitiesFound int     `json:"vulnerabilities_found"`
	CriticalFindings     int     `json:"critical_findings"`
	AverageSuccessRate   float64 `json:"average_attack_success_rate"`
	AverageDuration      int64   `json:"average_duration_ms"`
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
