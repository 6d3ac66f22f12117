// Package guardrail applies the assessment rule tables to live traffic.
// Where the grader judges recorded responses after the fact, the guard sits
// in the request path and decides whether a prompt or completion may pass.
package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"redcell/internal/grader"
	"redcell/internal/types"
)

// Decision is the guard's ruling, strongest first: block > redact > warn >
// allow.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionWarn   Decision = "warn"
	DecisionRedact Decision = "redact"
	DecisionBlock  Decision = "block"
)

func (d Decision) rank() int {
	switch d {
	case DecisionBlock:
		return 3
	case DecisionRedact:
		return 2
	case DecisionWarn:
		return 1
	}
	return 0
}

// Finding is one matched rule.
type Finding struct {
	Rule     string         `json:"rule"`
	Detail   string         `json:"detail"`
	Severity types.Severity `json:"severity"`
}

// Verdict is the outcome of one check. Sanitized holds the text to forward:
// the original on allow/warn, the redacted form on redact, empty on block.
type Verdict struct {
	Decision  Decision  `json:"decision"`
	Findings  []Finding `json:"findings,omitempty"`
	Sanitized string    `json:"sanitized,omitempty"`
}

type Config struct {
	// RedactPII rewrites matched PII instead of blocking the response.
	RedactPII bool `json:"redact_pii" yaml:"redact_pii"`
	// RateRPM bounds checks per minute; zero disables the rate guard.
	RateRPM int `json:"rate_rpm" yaml:"rate_rpm"`
}

// Guard is safe for concurrent use.
type Guard struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{cfg: cfg, logger: logger}
	if cfg.RateRPM > 0 {
		burst := cfg.RateRPM / 6
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateRPM)/60), burst)
	}
	return g
}

// CheckInput screens a user prompt before it reaches the model. Injection
// attempts block; harmful phrasing warns.
func (g *Guard) CheckInput(ctx context.Context, prompt string) Verdict {
	if err := ctx.Err(); err != nil {
		return Verdict{Decision: DecisionBlock, Findings: []Finding{{
			Rule: "context", Detail: err.Error(), Severity: types.SeverityNone,
		}}}
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return Verdict{Decision: DecisionBlock, Findings: []Finding{{
			Rule:     "rate-limit",
			Detail:   fmt.Sprintf("exceeded %d requests per minute", g.cfg.RateRPM),
			Severity: types.SeverityMedium,
		}}}
	}

	v := Verdict{Decision: DecisionAllow, Sanitized: prompt}
	lowered := strings.ToLower(prompt)

	for _, ind := range grader.InjectionIndicators {
		if strings.Contains(lowered, ind) {
			v.escalate(DecisionBlock, Finding{
				Rule:     "injection",
				Detail:   fmt.Sprintf("prompt contains injection marker %q", ind),
				Severity: types.SeverityCritical,
			})
		}
	}
	for _, kw := range grader.HarmfulKeywords {
		if strings.Contains(lowered, kw) {
			v.escalate(DecisionWarn, Finding{
				Rule:     "harmful",
				Detail:   fmt.Sprintf("prompt references %q", kw),
				Severity: types.SeverityMedium,
			})
		}
	}

	if v.Decision == DecisionBlock {
		v.Sanitized = ""
		g.logger.Warn("input blocked", "findings", len(v.Findings))
	}
	return v
}

// CheckOutput screens a model completion before it reaches the user. PII
// redacts (or blocks when redaction is disabled); SQL internals and
// sensitive terms warn.
func (g *Guard) CheckOutput(ctx context.Context, output string) Verdict {
	if err := ctx.Err(); err != nil {
		return Verdict{Decision: DecisionBlock, Findings: []Finding{{
			Rule: "context", Detail: err.Error(), Severity: types.SeverityNone,
		}}}
	}

	v := Verdict{Decision: DecisionAllow, Sanitized: output}
	lowered := strings.ToLower(output)

	for _, name := range []string{"ssn", "credit_card", "email", "phone"} {
		re := grader.PIIPatterns[name]
		if !re.MatchString(output) {
			continue
		}
		if g.cfg.RedactPII {
			v.Sanitized = re.ReplaceAllString(v.Sanitized, "[REDACTED:"+name+"]")
			v.escalate(DecisionRedact, Finding{
				Rule:     "pii",
				Detail:   fmt.Sprintf("%s pattern redacted", name),
				Severity: types.SeverityCritical,
			})
		} else {
			v.escalate(DecisionBlock, Finding{
				Rule:     "pii",
				Detail:   fmt.Sprintf("response contains %s-formatted data", name),
				Severity: types.SeverityCritical,
			})
		}
	}

	for _, term := range grader.SensitiveTerms {
		if strings.Contains(lowered, term) {
			v.escalate(DecisionWarn, Finding{
				Rule:     "sensitive-term",
				Detail:   fmt.Sprintf("response references %q", term),
				Severity: types.SeverityHigh,
			})
		}
	}

	sqlHits := 0
	for _, ind := range grader.SQLIndicators {
		if strings.Contains(lowered, ind) {
			sqlHits++
		}
	}
	if sqlHits >= 3 {
		v.escalate(DecisionBlock, Finding{
			Rule:     "sql-leak",
			Detail:   fmt.Sprintf("response contains %d SQL execution indicators", sqlHits),
			Severity: types.SeverityCritical,
		})
	}

	if v.Decision == DecisionBlock {
		v.Sanitized = ""
		g.logger.Warn("output blocked", "findings", len(v.Findings))
	}
	return v
}

// escalate records a finding and raises the decision if stronger than the
// current one.
func (v *Verdict) escalate(d Decision, f Finding) {
	v.Findings = append(v.Findings, f)
	if d.rank() > v.Decision.rank() {
		v.Decision = d
	}
}
