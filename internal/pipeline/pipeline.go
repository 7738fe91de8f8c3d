// Package pipeline runs the verification stages in order: check, score, an
// optional single revision, and routing. Every call yields a complete Result;
// only malformed requests produce an error.
package pipeline

// #region imports
import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/generate"
	"github.com/danielpatrickdp/cag-verifier/internal/guard"
	"github.com/danielpatrickdp/cag-verifier/internal/revise"
	"github.com/danielpatrickdp/cag-verifier/internal/router"
	"github.com/danielpatrickdp/cag-verifier/internal/score"
	"github.com/danielpatrickdp/cag-verifier/internal/stats"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// #endregion

// #region options

// Options wires a Pipeline. Nil fields get defaults, except Generator: without
// one Answer always falls back and no revision is attempted.
type Options struct {
	Checker   *check.Checker
	Scorer    *score.Scorer
	Router    *router.Router
	Generator generate.Generator
	Stats     *stats.Aggregator
	Recorder  Recorder
	Timeout   time.Duration
	Logger    *zap.Logger
}

// #endregion options

// #region pipeline

// Pipeline is safe for concurrent use. The stats aggregator is the only state
// shared between requests.
type Pipeline struct {
	checker  *check.Checker
	scorer   *score.Scorer
	router   *router.Router
	reviser  *revise.Engine
	gen      generate.Generator
	stats    *stats.Aggregator
	recorder Recorder
	timeout  time.Duration
	validate *validator.Validate
	logger   *zap.Logger
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		checker:  opts.Checker,
		scorer:   opts.Scorer,
		router:   opts.Router,
		gen:      opts.Generator,
		stats:    opts.Stats,
		recorder: opts.Recorder,
		timeout:  opts.Timeout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   opts.Logger,
	}
	if p.checker == nil {
		p.checker = check.NewChecker(check.DefaultConfig())
	}
	if p.scorer == nil {
		p.scorer = score.NewScorer(score.DefaultPenalties())
	}
	if p.router == nil {
		p.router = router.NewRouter(router.DefaultThresholds())
	}
	if p.stats == nil {
		p.stats = stats.NewAggregator()
	}
	if p.timeout <= 0 {
		p.timeout = guard.DefaultTimeout
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	base := p.logger
	p.logger = base.Named("pipeline")

	p.reviser = revise.NewEngine(revise.Options{
		Generator:  p.gen,
		Checker:    p.checker,
		Scorer:     p.scorer,
		HardReject: p.router.Thresholds().HardReject,
		Timeout:    p.timeout,
		Logger:     base,
	})
	return p
}

// Stats returns the live aggregator.
func (p *Pipeline) Stats() *stats.Aggregator {
	return p.stats
}

// #endregion pipeline

// #region entry-points

// Verify checks a draft the caller already produced.
func (p *Pipeline) Verify(ctx context.Context, req Request) (Result, error) {
	if err := p.validateRequest(req, true); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res := p.run(ctx, req, req.Draft)
	p.finish(ctx, req, &res, start)
	return res, nil
}

// Answer drafts an answer with the generator through the guard, then verifies
// it. A failed draft routes straight to fallback with confidence 0 and no
// stages completed.
func (p *Pipeline) Answer(ctx context.Context, req Request) (Result, error) {
	if err := p.validateRequest(req, false); err != nil {
		return Result{}, err
	}
	start := time.Now()

	draft := guard.Outcome[string]{Value: req.Fallback, Err: generate.ErrNoGenerator}
	if p.gen != nil {
		prompt := req.Query
		evidence := revise.FormatEvidence(req.Chunks)
		if len(req.Profile) > 0 {
			evidence += "\n\nStudent profile: " + revise.FormatProfile(req.Profile)
		}
		draft = guard.Invoke(ctx, p.timeout, req.Fallback, func(ctx context.Context) (string, error) {
			return p.gen.Generate(ctx, prompt, evidence)
		})
	}

	var res Result
	if !draft.OK {
		p.logger.Warn("draft generation failed, using fallback",
			zap.String("id", req.ID),
			zap.String("error", draft.Message()))
		res = p.fallback(req, draft.Message())
	} else {
		res = p.run(ctx, req, draft.Value)
	}
	p.finish(ctx, req, &res, start)
	return res, nil
}

// #endregion entry-points

// #region stages

// run executes check, score, optional revision, and routing on draft.
func (p *Pipeline) run(ctx context.Context, req Request, draft string) Result {
	res := Result{
		ID:        req.ID,
		Issues:    []check.Issue{},
		Revisions: []revise.Revision{},
	}

	initial := p.checker.Check(check.Input{
		Answer:  draft,
		Chunks:  req.Chunks,
		Profile: req.Profile,
		Query:   req.Query,
		Round:   1,
	})
	res.Issues = append(res.Issues, initial...)
	res.StagesCompleted++

	confidence := p.scorer.Score(initial)
	res.StagesCompleted++

	text, final, applied := draft, initial, false
	if p.reviser.ShouldRevise(initial, confidence, req.Options.SkipRevision) {
		attempt := p.reviser.Revise(ctx, revise.Input{
			Query:      req.Query,
			Draft:      draft,
			Chunks:     req.Chunks,
			Profile:    req.Profile,
			Issues:     initial,
			Confidence: confidence,
		})
		res.Issues = append(res.Issues, attempt.Issues...)
		res.Revisions = append(res.Revisions, attempt.Revision)
		text, final, confidence = attempt.Text, attempt.FinalIssues, attempt.Confidence
		applied = attempt.Adopted
		res.StagesCompleted++
	}

	verdict := p.router.Route(router.Input{
		InitialIssues:   initial,
		FinalIssues:     final,
		Confidence:      confidence,
		Strict:          req.Options.StrictMode,
		RevisionApplied: applied,
	})
	res.StagesCompleted++

	var m router.Machine
	if err := m.Decide(verdict.Decision); err != nil {
		p.logger.Error("router returned a non-terminal decision", zap.Error(err))
		_ = m.Decide(router.Fallback)
	}
	res.Decision = m.Decision()
	res.Confidence = score.Clamp(confidence)
	res.RequiresHuman = verdict.RequiresHuman
	res.Reason = verdict.Reason
	res.FinalAnswer = text
	if res.Decision == router.Fallback {
		res.FinalAnswer = req.Fallback
	}
	return res
}

// fallback builds the result for a draft that never arrived.
func (p *Pipeline) fallback(req Request, reason string) Result {
	verdict := p.router.Route(router.Input{DraftFailed: true})
	if reason != "" {
		verdict.Reason += ": " + reason
	}
	return Result{
		ID:          req.ID,
		Decision:    verdict.Decision,
		FinalAnswer: req.Fallback,
		Issues:      []check.Issue{},
		Revisions:   []revise.Revision{},
		Reason:      verdict.Reason,
	}
}

// finish stamps timing and counts, updates stats, and hands the result to the
// recorder.
func (p *Pipeline) finish(ctx context.Context, req Request, res *Result, start time.Time) {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	res.IssuesDetected = len(res.Issues)
	res.RevisionsApplied = len(res.Revisions)
	res.ProcessingTime = time.Since(start)
	res.ProcessingTimeMs = float64(res.ProcessingTime.Microseconds()) / 1000

	p.stats.Record(res.Decision, res.ProcessingTime)

	p.logger.Info("verification complete",
		zap.String("id", res.ID),
		zap.Stringer("decision", res.Decision),
		zap.Float64("confidence", res.Confidence),
		zap.Int("issues", res.IssuesDetected),
		zap.Int("revisions", res.RevisionsApplied),
		zap.Bool("requires_human", res.RequiresHuman),
		zap.Duration("elapsed", res.ProcessingTime))

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, req.Query, *res); err != nil {
			p.logger.Error("audit record failed", zap.String("id", res.ID), zap.Error(err))
		}
	}
}

// #endregion stages

// #region validation

func (p *Pipeline) validateRequest(req Request, needDraft bool) error {
	if err := p.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query is blank", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Fallback) == "" {
		return fmt.Errorf("%w: fallback is blank", ErrInvalidRequest)
	}
	if needDraft && req.Draft == "" {
		return fmt.Errorf("%w: draft is required", ErrInvalidRequest)
	}
	return nil
}

// #endregion validation
