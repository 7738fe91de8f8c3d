package router

import (
	"encoding/json"
	"testing"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issue(c check.Category, s check.Severity) check.Issue {
	return check.Issue{Category: c, Severity: s}
}

var (
	critDisclaimer = issue(check.CategoryMissingDisclaimer, check.SeverityCritical)
	critProfile    = issue(check.CategoryProfileMismatch, check.SeverityCritical)
	warnClaim      = issue(check.CategoryUnsupportedClaim, check.SeverityWarning)
	infoOther      = issue(check.CategoryOther, check.SeverityInfo)
)

// #region route

func TestRoute_RevisedReasonTellsWhetherTextChanged(t *testing.T) {
	r := NewRouter(DefaultThresholds())
	warnOnly := Input{InitialIssues: []check.Issue{warnClaim}, FinalIssues: []check.Issue{warnClaim}, Confidence: 0.9}

	v := r.Route(warnOnly)
	assert.Equal(t, Revised, v.Decision)
	assert.Contains(t, v.Reason, "revision not applied")

	fixed := Input{InitialIssues: []check.Issue{critDisclaimer}, Confidence: 1, RevisionApplied: true}
	v = r.Route(fixed)
	assert.Equal(t, Revised, v.Decision)
	assert.Contains(t, v.Reason, "issues addressed")
}

func TestRoute(t *testing.T) {
	r := NewRouter(DefaultThresholds())

	tests := []struct {
		name          string
		in            Input
		want          Decision
		requiresHuman bool
	}{
		{
			name: "draft failed",
			in:   Input{DraftFailed: true, Confidence: 1},
			want: Fallback,
		},
		{
			name: "clean",
			in:   Input{Confidence: 1},
			want: Approved,
		},
		{
			name: "info only",
			in:   Input{InitialIssues: []check.Issue{infoOther}, FinalIssues: []check.Issue{infoOther}, Confidence: 0.98},
			want: Approved,
		},
		{
			name: "fixed by revision",
			in:   Input{InitialIssues: []check.Issue{critDisclaimer}, Confidence: 1},
			want: Revised,
		},
		{
			name: "warning remains above accept",
			in:   Input{InitialIssues: []check.Issue{warnClaim}, FinalIssues: []check.Issue{warnClaim}, Confidence: 0.9},
			want: Revised,
		},
		{
			name:          "critical remains with high confidence",
			in:            Input{InitialIssues: []check.Issue{critProfile}, FinalIssues: []check.Issue{critProfile}, Confidence: 0.6},
			want:          Rejected,
			requiresHuman: true,
		},
		{
			name:          "below hard reject",
			in:            Input{FinalIssues: []check.Issue{critProfile, critDisclaimer}, Confidence: 0.2},
			want:          Fallback,
			requiresHuman: true,
		},
		{
			name: "warnings below accept",
			in: Input{
				InitialIssues: []check.Issue{warnClaim, warnClaim, warnClaim, warnClaim, warnClaim},
				FinalIssues:   []check.Issue{warnClaim, warnClaim, warnClaim, warnClaim, warnClaim},
				Confidence:    0.5,
			},
			want: Rejected,
		},
		{
			name: "strict blocks remaining warning",
			in:   Input{InitialIssues: []check.Issue{warnClaim}, FinalIssues: []check.Issue{warnClaim}, Confidence: 0.9, Strict: true},
			want: Rejected,
		},
		{
			name: "strict accepts full fix",
			in:   Input{InitialIssues: []check.Issue{warnClaim}, Confidence: 1, Strict: true},
			want: Revised,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := r.Route(tt.in)
			assert.Equal(t, tt.want, v.Decision, v.Reason)
			assert.Equal(t, tt.requiresHuman, v.RequiresHuman)
			assert.NotEmpty(t, v.Reason)
		})
	}
}

func TestRoute_ComplianceNeverApprovedOrRevised(t *testing.T) {
	r := NewRouter(DefaultThresholds())
	for _, crit := range []check.Issue{critDisclaimer, critProfile} {
		for _, conf := range []float64{0, 0.3, 0.6, 0.99, 1} {
			v := r.Route(Input{InitialIssues: []check.Issue{crit}, FinalIssues: []check.Issue{crit}, Confidence: conf})
			assert.Contains(t, []Decision{Rejected, Fallback}, v.Decision, "confidence %.2f", conf)
		}
	}
}

// #endregion route

// #region decision

func TestDecisionText(t *testing.T) {
	for _, d := range Terminal() {
		b, err := json.Marshal(d)
		require.NoError(t, err)

		var back Decision
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, d, back)
	}

	b, err := json.Marshal(Revised)
	require.NoError(t, err)
	assert.Equal(t, `"revised"`, string(b))

	var d Decision
	assert.Error(t, d.UnmarshalText([]byte("maybe")))
	_, err = Decision(42).MarshalText()
	assert.Error(t, err)
}

func TestMachine_OneShot(t *testing.T) {
	var m Machine
	assert.Equal(t, Pending, m.Decision())

	require.NoError(t, m.Decide(Approved))
	assert.Equal(t, Approved, m.Decision())

	err := m.Decide(Rejected)
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	assert.Equal(t, Approved, m.Decision())
}

func TestMachine_RejectsPending(t *testing.T) {
	var m Machine
	assert.Error(t, m.Decide(Pending))
	assert.Equal(t, Pending, m.Decision())
}

// #endregion decision
