package score

import "github.com/danielpatrickdp/cag-verifier/internal/check"

// #region penalties

// Penalties is the fixed deduction per issue, by severity.
type Penalties struct {
	Critical float64
	Warning  float64
	Info     float64
}

// DefaultPenalties returns the production penalty weights.
func DefaultPenalties() Penalties {
	return Penalties{
		Critical: 0.4,
		Warning:  0.1,
		Info:     0.02,
	}
}

func (p Penalties) of(s check.Severity) float64 {
	switch s {
	case check.SeverityCritical:
		return p.Critical
	case check.SeverityWarning:
		return p.Warning
	case check.SeverityInfo:
		return p.Info
	}
	return 0
}

// #endregion penalties

// #region scorer

// Scorer turns an issue list into a confidence in [0,1]. No model call, so the
// same issues always give the same score.
type Scorer struct {
	penalties Penalties
}

// NewScorer creates a scorer with the given penalties.
func NewScorer(p Penalties) *Scorer {
	return &Scorer{penalties: p}
}

// Score starts at 1.0, subtracts one penalty per issue and clamps to [0,1].
func (s *Scorer) Score(issues []check.Issue) float64 {
	confidence := 1.0
	for _, is := range issues {
		confidence -= s.penalties.of(is.Severity)
	}
	return Clamp(confidence)
}

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion scorer
