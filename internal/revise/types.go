package revise

import (
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/generate"
	"github.com/danielpatrickdp/cag-verifier/internal/score"
	"go.uber.org/zap"
)

// #region revision

// Revision records one automated correction attempt, kept whether or not it helped.
type Revision struct {
	Summary          string   `json:"summary"`
	Instructions     []string `json:"instructions"`
	Improved         bool     `json:"improved"`
	ConfidenceBefore float64  `json:"confidenceBefore"`
	ConfidenceAfter  float64  `json:"confidenceAfter"`
	Error            string   `json:"error,omitempty"`
}

// #endregion revision

// #region input

// Input is the first-round state handed to the engine.
type Input struct {
	Query      string
	Draft      string
	Chunks     []check.Chunk
	Profile    check.Profile
	Issues     []check.Issue // first-round issues
	Confidence float64       // first-round confidence
}

// Attempt is the outcome of one revision round.
type Attempt struct {
	Revision Revision
	// Issues are the second-round findings for the candidate, always reported.
	Issues []check.Issue
	// Text, FinalIssues and Confidence describe whichever answer was kept.
	Text        string
	FinalIssues []check.Issue
	Confidence  float64
	Adopted     bool
}

// #endregion input

// #region options

// Options wires an Engine.
type Options struct {
	Generator  generate.Generator
	Checker    *check.Checker
	Scorer     *score.Scorer
	HardReject float64
	Timeout    time.Duration
	Logger     *zap.Logger
}

// #endregion options
