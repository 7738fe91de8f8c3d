package router

import (
	"fmt"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
)

// #region input

// Input is what the router sees after the last checking round.
type Input struct {
	DraftFailed   bool
	InitialIssues []check.Issue // first-round issues
	FinalIssues   []check.Issue // issues of the text that will be returned
	Confidence    float64       // confidence of the text that will be returned
	Strict        bool
	// RevisionApplied is set when a revised text replaced the draft.
	RevisionApplied bool
}

// Verdict is the routed outcome.
type Verdict struct {
	Decision      Decision
	RequiresHuman bool
	Reason        string
}

// #endregion input

// #region router

// Router maps confidence and issue severities to a Decision.
type Router struct {
	thresholds Thresholds
}

// NewRouter creates a router with the given thresholds.
func NewRouter(t Thresholds) *Router {
	return &Router{thresholds: t}
}

// Thresholds returns the active cutoffs.
func (r *Router) Thresholds() Thresholds {
	return r.thresholds
}

// Route applies the priority chain. A remaining critical issue can never be
// outranked by a high confidence score.
func (r *Router) Route(in Input) Verdict {
	if in.DraftFailed {
		return Verdict{Decision: Fallback, Reason: "draft generation failed"}
	}

	if in.Confidence < r.thresholds.HardReject {
		return Verdict{
			Decision:      Fallback,
			RequiresHuman: check.HasAtLeast(in.FinalIssues, check.SeverityCritical),
			Reason:        fmt.Sprintf("confidence %.2f below hard-reject %.2f", in.Confidence, r.thresholds.HardReject),
		}
	}

	if critical := firstAtLeast(in.FinalIssues, check.SeverityCritical); critical != nil {
		return Verdict{
			Decision:      Rejected,
			RequiresHuman: true,
			Reason:        fmt.Sprintf("critical %s issue remains", critical.Category),
		}
	}

	finalWarn := check.HasAtLeast(in.FinalIssues, check.SeverityWarning)
	if !finalWarn && !check.HasAtLeast(in.InitialIssues, check.SeverityWarning) {
		return Verdict{Decision: Approved, Reason: "no issues at or above warning"}
	}

	accept := r.thresholds.Accept
	if in.Strict {
		accept = r.thresholds.StrictAccept
	}
	if in.Confidence >= accept && !(in.Strict && finalWarn) {
		if !in.RevisionApplied {
			return Verdict{
				Decision: Revised,
				Reason:   fmt.Sprintf("revision not applied, remaining issues tolerated at confidence %.2f >= %.2f", in.Confidence, accept),
			}
		}
		return Verdict{
			Decision: Revised,
			Reason:   fmt.Sprintf("issues addressed, confidence %.2f >= %.2f", in.Confidence, accept),
		}
	}

	reason := fmt.Sprintf("confidence %.2f below accept %.2f", in.Confidence, accept)
	if in.Strict && finalWarn {
		reason = "strict mode: warnings remain"
	}
	return Verdict{Decision: Rejected, Reason: reason}
}

func firstAtLeast(issues []check.Issue, s check.Severity) *check.Issue {
	for i := range issues {
		if issues[i].AtLeast(s) {
			return &issues[i]
		}
	}
	return nil
}

// #endregion router
