package score

import (
	"testing"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/stretchr/testify/assert"
)

func issues(sev ...check.Severity) []check.Issue {
	out := make([]check.Issue, len(sev))
	for i, s := range sev {
		out[i] = check.Issue{Category: check.CategoryOther, Severity: s}
	}
	return out
}

func TestScore(t *testing.T) {
	s := NewScorer(DefaultPenalties())

	tests := []struct {
		name   string
		issues []check.Issue
		want   float64
	}{
		{"no issues", nil, 1.0},
		{"one critical", issues(check.SeverityCritical), 0.6},
		{"one warning", issues(check.SeverityWarning), 0.9},
		{"one info", issues(check.SeverityInfo), 0.98},
		{"mixed", issues(check.SeverityCritical, check.SeverityWarning, check.SeverityInfo), 0.48},
		{"clamped at zero", issues(check.SeverityCritical, check.SeverityCritical, check.SeverityCritical), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Score(tt.issues), 1e-9)
		})
	}
}

func TestScore_AlwaysInUnitInterval(t *testing.T) {
	s := NewScorer(Penalties{Critical: 2, Warning: -1, Info: 0})
	for n := 0; n < 5; n++ {
		got := s.Score(issues(make([]check.Severity, n)...))
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
	assert.Equal(t, 1.0, s.Score(issues(check.SeverityWarning, check.SeverityWarning)))
	assert.Equal(t, 0.0, s.Score(issues(check.SeverityCritical)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.3))
	assert.Equal(t, 1.0, Clamp(1.7))
	assert.Equal(t, 0.42, Clamp(0.42))
}
