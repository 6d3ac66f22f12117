package types

// Severity classifies how serious a confirmed vulnerability is.
// SeverityNone is used for safe responses and for errored executions.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityNone     Severity = "none"
)

func (s Severity) String() string { return string(s) }

func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityNone:
		return true
	}
	return false
}

// SeverityOrder returns severities from most to least severe, used for
// stable report ordering.
func SeverityOrder() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityNone}
}

// Status is the execution outcome of a single test case. Grading verdicts
// live on GradedResult, not here: an errored call is a testing failure,
// never a security signal.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	return s == StatusCompleted || s == StatusError
}

// TargetKind selects the calling convention for the system under test.
type TargetKind string

const (
	TargetKindAPI    TargetKind = "api"
	TargetKindChain  TargetKind = "chain"
	TargetKindCustom TargetKind = "custom"
)

func (k TargetKind) String() string { return string(k) }

func (k TargetKind) IsValid() bool {
	switch k {
	case TargetKindAPI, TargetKindChain, TargetKindCustom:
		return true
	}
	return false
}
