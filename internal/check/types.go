package check

// #region category

// Category classifies what kind of problem an issue describes.
type Category string

const (
	CategoryUnsupportedClaim    Category = "unsupported_claim"
	CategoryMissingDisclaimer   Category = "missing_disclaimer"
	CategoryProfileMismatch     Category = "profile_mismatch"
	CategoryFormattingViolation Category = "formatting_violation"
	CategoryOther               Category = "other"
)

// #endregion category

// #region severity

// Severity orders issues by how much they undermine an answer.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

var severityNames = [...]string{"info", "warning", "critical"}

func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityCritical {
		return "unknown"
	}
	return severityNames[s]
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	for i, name := range severityNames {
		if name == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return &UnknownSeverityError{Name: string(b)}
}

// UnknownSeverityError reports an unrecognised severity name.
type UnknownSeverityError struct {
	Name string
}

func (e *UnknownSeverityError) Error() string {
	return "unknown severity " + e.Name
}

// #endregion severity

// #region issue

// Issue is a single finding from one checking round. Issues are only ever
// appended; later rounds never remove earlier findings.
type Issue struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Span        string   `json:"span,omitempty"`
	Round       int      `json:"round"`
}

// AtLeast reports whether the issue is at or above the given severity.
func (i Issue) AtLeast(s Severity) bool {
	return i.Severity >= s
}

// #endregion issue

// #region chunk

// Chunk is a retrieved passage used to ground factual claims. Read-only.
type Chunk struct {
	ID     string         `json:"id" validate:"required"`
	Text   string         `json:"text" validate:"required"`
	Source map[string]any `json:"source,omitempty"`
	Score  float64        `json:"score" validate:"gte=0,lte=1"`
}

// #endregion chunk

// #region profile

// Profile is the student's structured context. Keys read: grade, curriculum,
// subjects. Never mutated.
type Profile map[string]any

// #endregion profile

// #region config

// Config holds the tunables for rule-based checking.
type Config struct {
	// DisclaimerMarker must appear (case-insensitive) in every answer.
	DisclaimerMarker string
	// DisclaimerText is the full block a revision is asked to append.
	DisclaimerText string
	// ClaimOverlapThreshold is the minimum fraction of a claim sentence's
	// content tokens that some chunk must contain.
	ClaimOverlapThreshold float64
	// MinAnswerLength is the trimmed rune count below which an answer is near-empty.
	MinAnswerLength int
	// MaxAnswerLength is the rune count above which an answer is treated as runaway output.
	MaxAnswerLength int
}

// DefaultConfig returns the production checking defaults.
func DefaultConfig() Config {
	return Config{
		DisclaimerMarker:      DefaultDisclaimerMarker,
		DisclaimerText:        DefaultDisclaimerText,
		ClaimOverlapThreshold: 0.5,
		MinAnswerLength:       40,
		MaxAnswerLength:       12000,
	}
}

const (
	DefaultDisclaimerMarker = "Please verify this information"
	DefaultDisclaimerText   = "Please verify this information with the institution or a qualified career counsellor before making decisions. Admission requirements, fees and dates change every year."
)

// #endregion config

// #region helpers

// HasAtLeast reports whether any issue is at or above s.
func HasAtLeast(issues []Issue, s Severity) bool {
	for _, is := range issues {
		if is.AtLeast(s) {
			return true
		}
	}
	return false
}

// InRound returns the issues found in the given round.
func InRound(issues []Issue, round int) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, is := range issues {
		if is.Round == round {
			out = append(out, is)
		}
	}
	return out
}

// #endregion helpers
