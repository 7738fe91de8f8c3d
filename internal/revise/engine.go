package revise

// #region imports
import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/generate"
	"github.com/danielpatrickdp/cag-verifier/internal/guard"
	"github.com/danielpatrickdp/cag-verifier/internal/score"
	"go.uber.org/zap"
)

// #endregion

// #region constants

// RevisionRound is the checker round given to revised text. There is never
// a third round.
const RevisionRound = 2

// #endregion

// #region engine

// Engine performs the single bounded revision round.
type Engine struct {
	gen        generate.Generator
	checker    *check.Checker
	scorer     *score.Scorer
	hardReject float64
	timeout    time.Duration
	logger     *zap.Logger
}

// NewEngine creates an engine. A nil generator disables revision.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		gen:        opts.Generator,
		checker:    opts.Checker,
		scorer:     opts.Scorer,
		hardReject: opts.HardReject,
		timeout:    opts.Timeout,
		logger:     logger.Named("revise"),
	}
}

// #endregion engine

// #region should-revise

// ShouldRevise reports whether a revision round is worth running: something at
// warning or above exists, confidence is strictly above hard-reject, and the
// caller did not opt out.
func (e *Engine) ShouldRevise(issues []check.Issue, confidence float64, skip bool) bool {
	if skip || e.gen == nil {
		return false
	}
	return check.HasAtLeast(issues, check.SeverityWarning) && confidence > e.hardReject
}

// #endregion should-revise

// #region revise

// Revise asks the generator once for a corrected answer, re-checks and
// re-scores it, and keeps it only if confidence strictly improved. A failed
// call falls back to the unmodified draft.
func (e *Engine) Revise(ctx context.Context, in Input) Attempt {
	instructions := e.Instructions(in.Issues, in.Profile)
	prompt := BuildPrompt(in.Query, in.Draft, instructions)

	out := guard.Invoke(ctx, e.timeout, in.Draft, func(ctx context.Context) (string, error) {
		return e.gen.Generate(ctx, prompt, FormatEvidence(in.Chunks))
	})
	if !out.OK {
		e.logger.Warn("revision call failed, keeping draft", zap.String("error", out.Message()))
	}

	candidate := out.Value
	issues := e.checker.Check(check.Input{
		Answer:  candidate,
		Chunks:  in.Chunks,
		Profile: in.Profile,
		Query:   in.Query,
		Round:   RevisionRound,
	})
	after := e.scorer.Score(issues)
	improved := out.OK && after > in.Confidence

	rev := Revision{
		Summary:          fmt.Sprintf("requested correction of %d issue(s)", len(instructions)),
		Instructions:     instructions,
		Improved:         improved,
		ConfidenceBefore: in.Confidence,
		ConfidenceAfter:  after,
		Error:            out.Message(),
	}

	e.logger.Debug("revision scored",
		zap.Float64("before", in.Confidence),
		zap.Float64("after", after),
		zap.Bool("improved", improved))

	if !improved {
		return Attempt{
			Revision:    rev,
			Issues:      issues,
			Text:        in.Draft,
			FinalIssues: in.Issues,
			Confidence:  in.Confidence,
		}
	}
	return Attempt{
		Revision:    rev,
		Issues:      issues,
		Text:        candidate,
		FinalIssues: issues,
		Confidence:  after,
		Adopted:     true,
	}
}

// #endregion revise

// #region prompt

// Instructions turns warning-or-worse issues into repair instructions, in
// issue order, without duplicates.
func (e *Engine) Instructions(issues []check.Issue, profile check.Profile) []string {
	cfg := e.checker.Config()
	seen := make(map[string]bool)
	var out []string
	for _, is := range issues {
		if !is.AtLeast(check.SeverityWarning) {
			continue
		}
		var line string
		switch is.Category {
		case check.CategoryMissingDisclaimer:
			line = fmt.Sprintf("Append this disclaimer verbatim at the end: %q", cfg.DisclaimerText)
		case check.CategoryUnsupportedClaim:
			line = fmt.Sprintf("Remove or correct this claim unless the context supports it: %q", is.Span)
		case check.CategoryProfileMismatch:
			line = fmt.Sprintf("Correct this so it matches the student's profile (%s): %q", FormatProfile(profile), is.Span)
		case check.CategoryFormattingViolation:
			line = "Rewrite the answer as clean, complete prose: " + is.Description
		default:
			line = "Fix: " + is.Description
		}
		if !seen[line] {
			seen[line] = true
			out = append(out, line)
		}
	}
	return out
}

// BuildPrompt assembles the repair prompt sent to the generator.
func BuildPrompt(query, draft string, instructions []string) string {
	var b strings.Builder
	b.WriteString("Revise the draft answer below so that it fixes every listed problem. ")
	b.WriteString("Keep what is correct, do not add facts that are not in the context, and return only the revised answer.\n\n")
	b.WriteString("Student question:\n")
	b.WriteString(query)
	b.WriteString("\n\nProblems to fix:\n")
	for i, line := range instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	b.WriteString("\nDraft answer:\n")
	b.WriteString(draft)
	return b.String()
}

// FormatEvidence renders chunks as "[id] text" blocks in retrieval order.
func FormatEvidence(chunks []check.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[%s] %s", c.ID, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// FormatProfile renders the profile as sorted key=value pairs.
func FormatProfile(p check.Profile) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, ", ")
}

// #endregion prompt
