package replay

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/generate"
	"github.com/danielpatrickdp/cag-verifier/internal/pipeline"
	"github.com/danielpatrickdp/cag-verifier/internal/router"
	"github.com/danielpatrickdp/cag-verifier/internal/score"
	"go.uber.org/zap"
)

// #region types

// CaseResult captures the outcome of replaying one fixture case.
type CaseResult struct {
	Name   string
	Result pipeline.Result
	Err    error

	// Mismatches lists expected fields that differed.
	Mismatches []string
	// Nondeterministic is set when the second run differed from the first.
	Nondeterministic bool
}

// Passed reports whether the case matched its expectations on both runs.
func (r CaseResult) Passed() bool {
	return r.Err == nil && len(r.Mismatches) == 0 && !r.Nondeterministic
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total            int
	Passed           int
	Failed           int
	Nondeterministic int
	ByDecision       map[string]int
}

// #endregion types

// #region replay

// Run replays every case twice, each time through a fresh pipeline and a fresh
// scripted generator, and compares both the expectations and the two runs.
func Run(ctx context.Context, f *Fixture, logger *zap.Logger) []CaseResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("replay")

	results := make([]CaseResult, 0, len(f.Cases))
	for _, c := range f.Cases {
		first, err := runOnce(ctx, f.Config, c)
		if err != nil {
			results = append(results, CaseResult{Name: c.Name, Err: err})
			continue
		}
		second, err := runOnce(ctx, f.Config, c)
		if err != nil {
			results = append(results, CaseResult{Name: c.Name, Result: first, Err: err})
			continue
		}

		cr := CaseResult{
			Name:             c.Name,
			Result:           first,
			Mismatches:       compare(c.Expected, first),
			Nondeterministic: !reflect.DeepEqual(first, second),
		}
		if !cr.Passed() {
			logger.Warn("case failed",
				zap.String("case", c.Name),
				zap.Strings("mismatches", cr.Mismatches),
				zap.Bool("nondeterministic", cr.Nondeterministic))
		}
		results = append(results, cr)
	}
	return results
}

func runOnce(ctx context.Context, fc FixtureConfig, c FixtureCase) (pipeline.Result, error) {
	p := pipeline.New(pipeline.Options{
		Checker:   check.NewChecker(fc.ToCheckConfig()),
		Scorer:    score.NewScorer(fc.ToPenalties()),
		Router:    router.NewRouter(fc.ToThresholds()),
		Generator: generate.NewScript(c.Replies...),
		Timeout:   time.Duration(fc.TimeoutMs) * time.Millisecond,
	})

	req := c.Request
	if req.ID == "" {
		req.ID = c.Name
	}

	var (
		res pipeline.Result
		err error
	)
	switch c.Mode {
	case "", "verify":
		res, err = p.Verify(ctx, req)
	case "answer":
		res, err = p.Answer(ctx, req)
	default:
		return pipeline.Result{}, fmt.Errorf("case %s: unknown mode %q", c.Name, c.Mode)
	}
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("case %s: %w", c.Name, err)
	}
	res.ProcessingTime, res.ProcessingTimeMs = 0, 0
	return res, nil
}

func compare(want FixtureExpected, got pipeline.Result) []string {
	var out []string
	if want.Decision != "" && want.Decision != got.Decision.String() {
		out = append(out, fmt.Sprintf("decision: want %s, got %s (%s)", want.Decision, got.Decision, got.Reason))
	}
	if want.RequiresHuman != nil && *want.RequiresHuman != got.RequiresHuman {
		out = append(out, fmt.Sprintf("requires_human: want %t, got %t", *want.RequiresHuman, got.RequiresHuman))
	}
	if want.Revisions != nil && *want.Revisions != got.RevisionsApplied {
		out = append(out, fmt.Sprintf("revisions: want %d, got %d", *want.Revisions, got.RevisionsApplied))
	}
	if want.Stages != nil && *want.Stages != got.StagesCompleted {
		out = append(out, fmt.Sprintf("stages: want %d, got %d", *want.Stages, got.StagesCompleted))
	}
	return out
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []CaseResult) Summary {
	s := Summary{
		Total:      len(results),
		ByDecision: make(map[string]int),
	}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.Nondeterministic {
			s.Nondeterministic++
		}
		if r.Err == nil {
			s.ByDecision[r.Result.Decision.String()]++
		}
	}
	return s
}

// #endregion replay
