package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("")
	assert.Error(t, err)

	_, err = ParseID("not-a-uuid")
	assert.Error(t, err)
}

func TestIDWithSuffix(t *testing.T) {
	id := NewID()
	derived := id.WithSuffix("base64")
	assert.Equal(t, id.String()+"-base64", derived.String())
}

func TestEngineErrorIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(CodeTargetInvocation, "target call failed", cause)

	assert.True(t, errors.Is(err, NewError(CodeTargetInvocation, "")))
	assert.False(t, errors.Is(err, NewError(CodeTargetTimeout, "")))
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("run aborted: %w", err)
	assert.Equal(t, CodeTargetInvocation, CodeOf(wrapped))
	assert.True(t, IsInvocationError(wrapped))
	assert.False(t, IsTimeout(wrapped))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		code       ErrorCode
		config     bool
		invocation bool
	}{
		{"unknown plugin", CodeUnknownPlugin, true, false},
		{"unknown strategy", CodeUnknownStrategy, true, false},
		{"empty assessment", CodeEmptyAssessment, true, false},
		{"config invalid", CodeConfigInvalid, true, false},
		{"invocation", CodeTargetInvocation, false, true},
		{"timeout", CodeTargetTimeout, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError(tt.code, "boom")
			assert.Equal(t, tt.config, IsConfigError(err))
			assert.Equal(t, tt.invocation, IsInvocationError(err))
		})
	}
}

func TestRecalculate(t *testing.T) {
	ar := &AssessmentResult{
		RunID: NewID(),
		Results: []GradedResult{
			{TestResult: TestResult{Status: StatusCompleted}, IsVulnerable: true, Severity: SeverityCritical},
			{TestResult: TestResult{Status: StatusCompleted}, IsVulnerable: false, Severity: SeverityNone},
			{TestResult: TestResult{Status: StatusError}, IsVulnerable: false, Severity: SeverityNone},
			{TestResult: TestResult{Status: StatusCompleted}, IsVulnerable: true, Severity: SeverityHigh},
		},
	}
	ar.Recalculate()

	assert.Equal(t, 4, ar.TotalTests)
	assert.Equal(t, 1, ar.PassedTests)
	assert.Equal(t, 2, ar.FailedTests)
	assert.Equal(t, 1, ar.ErrorTests)
	assert.Equal(t, 2, ar.VulnerabilitiesFound)
	assert.InDelta(t, 2.0/3.0, ar.AttackSuccessRate, 1e-9)
	assert.Equal(t, 1, ar.SeverityBreakdown[SeverityCritical])
	assert.Equal(t, 1, ar.SeverityBreakdown[SeverityHigh])
}

func TestRecalculateAllErrors(t *testing.T) {
	ar := &AssessmentResult{}
	for i := 0; i < 5; i++ {
		ar.Results = append(ar.Results, GradedResult{
			TestResult: TestResult{Status: StatusError},
			Severity:   SeverityNone,
		})
	}
	ar.Recalculate()

	assert.Equal(t, 5, ar.TotalTests)
	assert.Equal(t, 5, ar.ErrorTests)
	assert.Equal(t, 0, ar.VulnerabilitiesFound)
	assert.Equal(t, 0.0, ar.AttackSuccessRate)
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, SeverityCritical.IsValid())
	assert.True(t, SeverityNone.IsValid())
	assert.False(t, Severity("fatal").IsValid())

	assert.True(t, StatusCompleted.IsValid())
	assert.False(t, Status("running").IsValid())

	assert.True(t, TargetKindAPI.IsValid())
	assert.True(t, TargetKindChain.IsValid())
	assert.True(t, TargetKindCustom.IsValid())
	assert.False(t, TargetKind("grpc").IsValid())
}
