package check

// #region imports
import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// #endregion

// #region claim-patterns

var (
	moneyPattern       = regexp.MustCompile(`\bR ?\d[\d ,]*(?:\.\d+)?|\$ ?\d[\d,]*(?:\.\d+)?|(?i:\b\d[\d,]*(?:\.\d+)? ?(?:rand|zar|usd)\b)`)
	percentPattern     = regexp.MustCompile(`\d+(?:\.\d+)? ?%`)
	yearPattern        = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	datePattern        = regexp.MustCompile(`(?i)\b\d{1,2} (?:january|february|march|april|may|june|july|august|september|october|november|december)\b|\b(?:january|february|march|april|june|july|august|september|october|november|december) \d{1,2}\b`)
	institutionPattern = regexp.MustCompile(`\b(?:University|College|Institute|Academy|TVET|UCT|UJ|UKZN|UNISA|Unisa|Wits|CPUT|TUT|DUT|NMU|NWU|UFS|UWC|VUT|CUT|MUT)\b`)
	apsPattern         = regexp.MustCompile(`\bAPS\b\D{0,12}\d{1,2}\b`)
)

// claimKind names the first factual token pattern a sentence contains, or "".
func claimKind(sentence string) string {
	switch {
	case moneyPattern.MatchString(sentence):
		return "monetary amount"
	case percentPattern.MatchString(sentence):
		return "percentage"
	case apsPattern.MatchString(sentence):
		return "admission score"
	case datePattern.MatchString(sentence), yearPattern.MatchString(sentence):
		return "date"
	case institutionPattern.MatchString(sentence):
		return "institution"
	}
	return ""
}

// #endregion claim-patterns

// #region profile-patterns

var (
	gradeMentionPattern = regexp.MustCompile(`(?i)\b(?:you(?:'re| are)(?: currently)? in|as an?|for an?|in your) grade ?(\d{1,2})\b`)
	curriculumPattern   = regexp.MustCompile(`(?i)\b(?:your|you(?:'re| are)(?: (?:in|on|doing|writing|following))?(?: the)?) (CAPS|IEB|Cambridge|IB)\b`)
	subjectPattern      = regexp.MustCompile(`(?i)\b(?:your|you (?:take|study|have|chose|are taking|are doing)|since you(?:'re| are)? (?:taking|doing|studying|take|study)) (` + subjectAlternation() + `)\b`)
)

// knownSubjects lists school subjects by canonical name. Aliases follow.
var knownSubjects = []string{
	"Mathematical Literacy",
	"Mathematics",
	"Physical Sciences",
	"Life Sciences",
	"Accounting",
	"Business Studies",
	"Economics",
	"Geography",
	"History",
	"Information Technology",
	"Computer Applications Technology",
	"Engineering Graphics and Design",
	"Agricultural Sciences",
	"Consumer Studies",
	"Tourism",
	"Visual Arts",
	"Dramatic Arts",
	"Music",
}

var subjectAliases = map[string]string{
	"maths lit": "mathematical literacy",
	"math lit":  "mathematical literacy",
	"maths":     "mathematics",
	"math":      "mathematics",
	"physics":   "physical sciences",
	"biology":   "life sciences",
	"it":        "information technology",
	"cat":       "computer applications technology",
	"egd":       "engineering graphics and design",
}

// subjectAlternation builds a longest-first regexp alternation of subject
// names and aliases so "Maths Lit" wins over "Maths".
func subjectAlternation() string {
	names := append([]string(nil), knownSubjects...)
	for alias := range subjectAliases {
		if alias == "it" || alias == "cat" {
			// too ambiguous as plain words
			continue
		}
		names = append(names, alias)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(quoted, "|")
}

func canonicalSubject(s string) string {
	lower := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if canon, ok := subjectAliases[lower]; ok {
		return canon
	}
	return lower
}

// #endregion profile-patterns

// #region error-markers

// rawErrorMarkers are substrings that only appear when a provider or runtime
// error leaked into the answer text.
var rawErrorMarkers = []string{
	"traceback (most recent call last)",
	"internal server error",
	"[object object]",
	"undefined is not",
	"typeerror:",
	"referenceerror:",
	"syntaxerror:",
	"exception in thread",
	"goroutine 1 [",
	"status code 500",
	"rate limit exceeded",
	"an error occurred while processing",
	"<!doctype html",
}

// goPanicPattern matches a Go runtime panic header followed by its goroutine
// dump. A bare "panic:" is ordinary prose.
var goPanicPattern = regexp.MustCompile(`(?m)^panic: .*\n+goroutine \d+ \[`)

// #endregion error-markers

// #region checker

// Input is everything one checking round looks at.
type Input struct {
	Answer  string
	Chunks  []Chunk
	Profile Profile
	Query   string
	Round   int
}

// Checker runs the deterministic rule set. No model call.
type Checker struct {
	config Config
}

// NewChecker creates a checker with the given configuration.
func NewChecker(config Config) *Checker {
	return &Checker{config: config}
}

// Config returns the active configuration.
func (c *Checker) Config() Config {
	return c.config
}

// Check returns every issue found in in.Answer, tagged with in.Round.
// The result is never nil.
func (c *Checker) Check(in Input) []Issue {
	issues := make([]Issue, 0, 4)
	add := func(is Issue) {
		is.Round = in.Round
		issues = append(issues, is)
	}

	for _, is := range c.checkFormatting(in.Answer) {
		add(is)
	}
	if is, ok := c.checkDisclaimer(in.Answer); ok {
		add(is)
	}
	for _, is := range checkProfile(in.Answer, in.Profile) {
		add(is)
	}
	for _, is := range c.checkClaims(in.Answer, in.Chunks) {
		add(is)
	}
	if is, ok := checkRelevance(in.Answer, in.Query); ok {
		add(is)
	}
	return issues
}

// #endregion checker

// #region formatting

func (c *Checker) checkFormatting(answer string) []Issue {
	var issues []Issue
	trimmed := strings.TrimSpace(answer)
	n := utf8.RuneCountInString(trimmed)

	if n < c.config.MinAnswerLength {
		issues = append(issues, Issue{
			Category:    CategoryFormattingViolation,
			Severity:    SeverityCritical,
			Description: fmt.Sprintf("answer is near-empty (%d characters, minimum %d)", n, c.config.MinAnswerLength),
		})
	}
	if c.config.MaxAnswerLength > 0 && n > c.config.MaxAnswerLength {
		issues = append(issues, Issue{
			Category:    CategoryFormattingViolation,
			Severity:    SeverityCritical,
			Description: fmt.Sprintf("answer is %d characters, maximum %d", n, c.config.MaxAnswerLength),
		})
	}
	if !utf8.ValidString(answer) || strings.ContainsRune(answer, utf8.RuneError) {
		issues = append(issues, Issue{
			Category:    CategoryFormattingViolation,
			Severity:    SeverityCritical,
			Description: "answer contains invalid or replacement characters",
		})
	}

	if marker, ok := rawErrorMarker(answer); ok {
		issues = append(issues, Issue{
			Category:    CategoryFormattingViolation,
			Severity:    SeverityCritical,
			Description: "answer contains raw error text",
			Span:        marker,
		})
	}
	if sentence, ok := repeatedSentence(answer); ok {
		issues = append(issues, Issue{
			Category:    CategoryFormattingViolation,
			Severity:    SeverityWarning,
			Description: "answer repeats the same sentence three or more times",
			Span:        sentence,
		})
	}
	return issues
}

// rawErrorMarker returns the first leaked error marker in answer.
func rawErrorMarker(answer string) (string, bool) {
	lower := strings.ToLower(answer)
	for _, marker := range rawErrorMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	if m := goPanicPattern.FindString(answer); m != "" {
		return m, true
	}
	return "", false
}

// repeatedSentence finds the first sentence, longer than ten characters, that
// occurs at least three times. Degenerate model output loops like this.
func repeatedSentence(answer string) (string, bool) {
	counts := make(map[string]int)
	for _, s := range splitSentences(answer) {
		key := strings.ToLower(strings.TrimRight(s, ".!? "))
		if len(key) <= 10 {
			continue
		}
		counts[key]++
		if counts[key] == 3 {
			return s, true
		}
	}
	return "", false
}

// #endregion formatting

// #region disclaimer

func (c *Checker) checkDisclaimer(answer string) (Issue, bool) {
	marker := strings.TrimSpace(c.config.DisclaimerMarker)
	if marker == "" {
		return Issue{}, false
	}
	if strings.Contains(strings.ToLower(answer), strings.ToLower(marker)) {
		return Issue{}, false
	}
	return Issue{
		Category:    CategoryMissingDisclaimer,
		Severity:    SeverityCritical,
		Description: fmt.Sprintf("answer lacks the required verification disclaimer (%q)", marker),
	}, true
}

// #endregion disclaimer

// #region profile

func checkProfile(answer string, profile Profile) []Issue {
	var issues []Issue

	if grade, ok := profileGrade(profile); ok {
		for _, m := range gradeMentionPattern.FindAllStringSubmatch(answer, -1) {
			mentioned, err := strconv.Atoi(m[1])
			if err != nil || mentioned == grade {
				continue
			}
			issues = append(issues, Issue{
				Category:    CategoryProfileMismatch,
				Severity:    SeverityCritical,
				Description: fmt.Sprintf("answer addresses the student as grade %d, profile says grade %d", mentioned, grade),
				Span:        m[0],
			})
		}
	}

	if curr := strings.ToLower(profileString(profile, "curriculum")); curr != "" {
		for _, m := range curriculumPattern.FindAllStringSubmatch(answer, -1) {
			if strings.Contains(curr, strings.ToLower(m[1])) {
				continue
			}
			issues = append(issues, Issue{
				Category:    CategoryProfileMismatch,
				Severity:    SeverityCritical,
				Description: fmt.Sprintf("answer assumes curriculum %s, profile says %s", m[1], profileString(profile, "curriculum")),
				Span:        m[0],
			})
		}
	}

	if subjects := profileSubjects(profile); len(subjects) > 0 {
		for _, m := range subjectPattern.FindAllStringSubmatch(answer, -1) {
			if subjects[canonicalSubject(m[1])] {
				continue
			}
			issues = append(issues, Issue{
				Category:    CategoryProfileMismatch,
				Severity:    SeverityCritical,
				Description: fmt.Sprintf("answer assumes the student takes %s, which is not in their subjects", m[1]),
				Span:        m[0],
			})
		}
	}

	return issues
}

func profileGrade(p Profile) (int, bool) {
	switch v := p["grade"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		digits := strings.TrimFunc(v, func(r rune) bool { return r < '0' || r > '9' })
		g, err := strconv.Atoi(digits)
		if err != nil {
			return 0, false
		}
		return g, true
	}
	return 0, false
}

func profileString(p Profile, key string) string {
	if s, ok := p[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func profileSubjects(p Profile) map[string]bool {
	set := make(map[string]bool)
	switch v := p["subjects"].(type) {
	case []string:
		for _, s := range v {
			set[canonicalSubject(s)] = true
		}
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				set[canonicalSubject(str)] = true
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				set[canonicalSubject(s)] = true
			}
		}
	}
	return set
}

// #endregion profile

// #region claims

func (c *Checker) checkClaims(answer string, chunks []Chunk) []Issue {
	chunkSets := make([]map[string]bool, len(chunks))
	for i, ch := range chunks {
		chunkSets[i] = tokenSet(ch.Text)
	}

	marker := strings.ToLower(c.config.DisclaimerMarker)
	var issues []Issue
	for _, sentence := range splitSentences(answer) {
		if marker != "" && strings.Contains(strings.ToLower(sentence), marker) {
			continue
		}
		kind := claimKind(sentence)
		if kind == "" {
			continue
		}
		tokens := tokenize(sentence)
		if len(tokens) == 0 {
			continue
		}
		best := 0.0
		for _, set := range chunkSets {
			if o := overlap(tokens, set); o > best {
				best = o
			}
		}
		if best >= c.config.ClaimOverlapThreshold {
			continue
		}
		issues = append(issues, Issue{
			Category:    CategoryUnsupportedClaim,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("%s claim not supported by retrieved sources (best overlap %.2f)", kind, best),
			Span:        sentence,
		})
	}
	return issues
}

// #endregion claims

// #region relevance

func checkRelevance(answer, query string) (Issue, bool) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return Issue{}, false
	}
	if overlap(queryTokens, tokenSet(answer)) > 0 {
		return Issue{}, false
	}
	return Issue{
		Category:    CategoryOther,
		Severity:    SeverityInfo,
		Description: "answer shares no keywords with the question",
	}, true
}

// #endregion relevance
