package check

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region fixtures

const testQuery = "What subjects do I need for engineering at UCT?"

var testChunks = []Chunk{
	{ID: "c1", Text: "UCT engineering admission requires Mathematics and Physical Sciences with a minimum APS of 42.", Score: 0.91},
	{ID: "c2", Text: "Bursaries for engineering students are offered by several SETAs.", Score: 0.74},
}

var testProfile = Profile{
	"grade":      float64(10),
	"curriculum": "CAPS",
	"subjects":   []any{"Mathematics", "Physical Sciences", "Geography"},
}

const cleanAnswer = "UCT engineering admission requires Mathematics and Physical Sciences. " +
	"Speak to your school counsellor about subject choices early. " + DefaultDisclaimerText

func check(answer string) []Issue {
	return NewChecker(DefaultConfig()).Check(Input{
		Answer:  answer,
		Chunks:  testChunks,
		Profile: testProfile,
		Query:   testQuery,
		Round:   1,
	})
}

func categories(issues []Issue) []Category {
	out := make([]Category, len(issues))
	for i, is := range issues {
		out[i] = is.Category
	}
	return out
}

// #endregion fixtures

// #region clean

func TestCheck_CleanAnswerHasNoIssues(t *testing.T) {
	issues := check(cleanAnswer)
	require.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestCheck_Deterministic(t *testing.T) {
	answer := "As a Grade 11 learner, note that tuition at Wits costs R65 000 per year."
	assert.Equal(t, check(answer), check(answer))
}

func TestCheck_TagsRound(t *testing.T) {
	issues := NewChecker(DefaultConfig()).Check(Input{Answer: "short", Round: 2})
	require.NotEmpty(t, issues)
	for _, is := range issues {
		assert.Equal(t, 2, is.Round)
	}
}

// #endregion clean

// #region disclaimer

func TestCheck_MissingDisclaimerIsCritical(t *testing.T) {
	answer := strings.TrimSuffix(cleanAnswer, DefaultDisclaimerText)
	issues := check(answer)

	require.Len(t, issues, 1)
	assert.Equal(t, CategoryMissingDisclaimer, issues[0].Category)
	assert.Equal(t, SeverityCritical, issues[0].Severity)
}

func TestCheck_DisclaimerMatchIsCaseInsensitive(t *testing.T) {
	answer := strings.Replace(cleanAnswer, DefaultDisclaimerMarker, strings.ToUpper(DefaultDisclaimerMarker), 1)
	assert.Empty(t, check(answer))
}

func TestCheck_EmptyMarkerDisablesDisclaimer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisclaimerMarker = ""
	issues := NewChecker(cfg).Check(Input{
		Answer: "UCT engineering admission requires Mathematics and Physical Sciences.",
		Chunks: testChunks,
	})
	assert.NotContains(t, categories(issues), CategoryMissingDisclaimer)
}

// #endregion disclaimer

// #region claims

func TestCheck_UnsupportedClaimIsWarning(t *testing.T) {
	answer := "Tuition at Wits costs R65 000 per year. " + cleanAnswer
	issues := check(answer)

	require.Len(t, issues, 1)
	assert.Equal(t, CategoryUnsupportedClaim, issues[0].Category)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "Tuition at Wits costs R65 000 per year.", issues[0].Span)
	assert.Contains(t, issues[0].Description, "monetary amount")
}

func TestCheck_SupportedClaimPasses(t *testing.T) {
	answer := "UCT requires a minimum APS of 42 for engineering admission. " + DefaultDisclaimerText
	assert.Empty(t, check(answer))
}

func TestCheck_ClaimKinds(t *testing.T) {
	tests := []struct {
		sentence string
		want     string
	}{
		{"Fees rose by 7.5% this year.", "percentage"},
		{"Applications close on 30 September.", "date"},
		{"The programme started in 2019.", "date"},
		{"You can apply at any TVET campus.", "institution"},
		{"Costs are about $1,200.", "monetary amount"},
		{"Aim for an APS of 35.", "admission score"},
		{"Talk to your school counsellor.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			assert.Equal(t, tt.want, claimKind(tt.sentence))
		})
	}
}

func TestCheck_NoChunksFlagsEveryClaim(t *testing.T) {
	issues := NewChecker(DefaultConfig()).Check(Input{
		Answer: "UCT engineering admission requires Mathematics. Fees rose by 7.5% this year. " + DefaultDisclaimerText,
	})
	assert.Equal(t, []Category{CategoryUnsupportedClaim, CategoryUnsupportedClaim}, categories(issues))
}

// #endregion claims

// #region profile

func TestCheck_ProfileMismatch(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		wantSpan string
	}{
		{"grade", "As a Grade 11 learner, focus on your marks.", "As a Grade 11"},
		{"curriculum", "Since you are in the IEB system, exams differ.", "you are in the IEB"},
		{"subject alias", "Keep your Maths Lit marks above 60.", "your Maths Lit"},
		{"subject", "Because you take Accounting, consider finance.", "you take Accounting"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := check(tt.sentence + " " + cleanAnswer)
			require.Len(t, issues, 1, "issues: %+v", issues)
			assert.Equal(t, CategoryProfileMismatch, issues[0].Category)
			assert.Equal(t, SeverityCritical, issues[0].Severity)
			assert.Equal(t, tt.wantSpan, issues[0].Span)
		})
	}
}

func TestCheck_ProfileMatchIsClean(t *testing.T) {
	answer := "You're in grade 10, so your Maths and Geography marks matter most. " + cleanAnswer
	assert.Empty(t, check(answer))
}

func TestCheck_ProfileValueShapes(t *testing.T) {
	cfg := DefaultConfig()
	answer := "As a grade 12 learner, your Accounting marks matter. " + cleanAnswer

	issues := NewChecker(cfg).Check(Input{
		Answer:  answer,
		Chunks:  testChunks,
		Profile: Profile{"grade": "Grade 12", "subjects": "Accounting, Mathematics"},
	})
	assert.Empty(t, issues)

	issues = NewChecker(cfg).Check(Input{
		Answer:  answer,
		Chunks:  testChunks,
		Profile: Profile{"grade": 11, "subjects": []string{"Mathematics"}},
	})
	assert.Equal(t, []Category{CategoryProfileMismatch, CategoryProfileMismatch}, categories(issues))
}

func TestCheck_EmptyProfileSkipsMismatch(t *testing.T) {
	issues := NewChecker(DefaultConfig()).Check(Input{
		Answer: "As a Grade 11 learner, your Accounting marks matter. " + cleanAnswer,
		Chunks: testChunks,
	})
	assert.Empty(t, issues)
}

// #endregion profile

// #region formatting

func TestCheck_NearEmptyAnswer(t *testing.T) {
	issues := check("   ")
	require.NotEmpty(t, issues)
	assert.Equal(t, CategoryFormattingViolation, issues[0].Category)
	assert.Equal(t, SeverityCritical, issues[0].Severity)
}

func TestCheck_RawErrorText(t *testing.T) {
	answer := "Internal Server Error: upstream request failed for engineering. " + DefaultDisclaimerText
	issues := check(answer)
	require.Len(t, issues, 1)
	assert.Equal(t, CategoryFormattingViolation, issues[0].Category)
	assert.Equal(t, "internal server error", issues[0].Span)
}

func TestCheck_PanicInProseIsNotErrorText(t *testing.T) {
	answer := "Don't panic: there is still time to improve your marks before engineering applications open. " +
		DefaultDisclaimerText
	assert.Empty(t, check(answer))
}

func TestCheck_GoPanicDumpIsErrorText(t *testing.T) {
	answer := "panic: runtime error: index out of range [3] with length 2\n\ngoroutine 17 [running]:\nmain.main()\n" +
		DefaultDisclaimerText
	issues := check(answer)
	require.NotEmpty(t, issues)
	assert.Equal(t, CategoryFormattingViolation, issues[0].Category)
	assert.Equal(t, SeverityCritical, issues[0].Severity)
	assert.Equal(t, "answer contains raw error text", issues[0].Description)
}

func TestCheck_InvalidEncoding(t *testing.T) {
	answer := cleanAnswer + " \xff\xfe"
	issues := check(answer)
	require.Len(t, issues, 1)
	assert.Equal(t, CategoryFormattingViolation, issues[0].Category)
}

func TestCheck_RunawayLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAnswerLength = 100
	issues := NewChecker(cfg).Check(Input{Answer: cleanAnswer + strings.Repeat(" engineering", 20)})
	assert.Contains(t, categories(issues), CategoryFormattingViolation)
}

func TestCheck_RepeatedSentence(t *testing.T) {
	loop := "Speak to your school counsellor about engineering. "
	issues := check(strings.Repeat(loop, 3) + DefaultDisclaimerText)

	require.Len(t, issues, 1)
	assert.Equal(t, CategoryFormattingViolation, issues[0].Category)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "Speak to your school counsellor about engineering.", issues[0].Span)
}

func TestCheck_TwoRepeatsAllowed(t *testing.T) {
	loop := "Speak to your school counsellor about engineering. "
	assert.Empty(t, check(strings.Repeat(loop, 2)+DefaultDisclaimerText))
}

// #endregion formatting

// #region relevance

func TestCheck_OffTopicIsInfo(t *testing.T) {
	issues := NewChecker(DefaultConfig()).Check(Input{
		Answer: cleanAnswer,
		Chunks: testChunks,
		Query:  "nursing bursaries",
	})
	require.Len(t, issues, 1)
	assert.Equal(t, CategoryOther, issues[0].Category)
	assert.Equal(t, SeverityInfo, issues[0].Severity)
}

// #endregion relevance

// #region helpers

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Fees are R45.50 per unit. Apply now!\nDone")
	assert.Equal(t, []string{"Fees are R45.50 per unit.", "Apply now!", "Done"}, got)
}

func TestSeverityText(t *testing.T) {
	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("warning")))
	assert.Equal(t, SeverityWarning, s)

	b, err := SeverityCritical.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "critical", string(b))

	assert.Error(t, s.UnmarshalText([]byte("fatal")))
}

func TestHasAtLeastAndInRound(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityInfo, Round: 1},
		{Severity: SeverityWarning, Round: 2},
	}
	assert.True(t, HasAtLeast(issues, SeverityWarning))
	assert.False(t, HasAtLeast(issues, SeverityCritical))
	assert.Len(t, InRound(issues, 2), 1)
	assert.NotNil(t, InRound(issues, 3))
}

// #endregion helpers
