package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/revise"
	"github.com/danielpatrickdp/cag-verifier/internal/router"
)

// ErrInvalidRequest is returned, wrapped with details, when a request breaks
// the caller contract. It is the only error Verify and Answer return.
var ErrInvalidRequest = errors.New("invalid verification request")

// #region request

// RequestOptions are per-request switches.
type RequestOptions struct {
	StrictMode   bool `json:"strictMode"`
	SkipRevision bool `json:"skipRevision"`
}

// Request is one answer to verify. Chunks arrive already ranked.
type Request struct {
	ID       string         `json:"id,omitempty"`
	Query    string         `json:"query" validate:"required"`
	Draft    string         `json:"draft,omitempty"`
	Chunks   []check.Chunk  `json:"chunks" validate:"required,min=1,dive"`
	Profile  check.Profile  `json:"profile,omitempty"`
	Fallback string         `json:"fallback" validate:"required"`
	Options  RequestOptions `json:"options"`
}

// #endregion request

// #region result

// Result is the complete outcome handed back to the caller. Issues and
// Revisions are never nil.
type Result struct {
	ID               string            `json:"id"`
	Decision         router.Decision   `json:"decision"`
	FinalAnswer      string            `json:"finalAnswer"`
	Confidence       float64           `json:"confidence"`
	IssuesDetected   int               `json:"issuesDetected"`
	Issues           []check.Issue     `json:"issues"`
	RevisionsApplied int               `json:"revisionsApplied"`
	Revisions        []revise.Revision `json:"revisions"`
	RequiresHuman    bool              `json:"requiresHuman"`
	StagesCompleted  int               `json:"stagesCompleted"`
	ProcessingTime   time.Duration     `json:"-"`
	ProcessingTimeMs float64           `json:"processingTimeMs"`
	Reason           string            `json:"reason,omitempty"`
}

// #endregion result

// #region recorder

// Recorder persists finished results. Errors are logged by the pipeline and
// never reach the caller.
type Recorder interface {
	Record(ctx context.Context, query string, res Result) error
}

// #endregion recorder
