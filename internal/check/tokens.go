package check

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords contains common English words excluded from overlap scoring.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "also": true, "there": true, "their": true, "these": true,
	"those": true, "some": true, "any": true, "all": true, "more": true,
	"most": true, "very": true, "just": true, "like": true, "need": true,
}

// tokenize splits text into unique lowercase non-stopword tokens. Digits are
// kept because amounts and years carry most of a claim's meaning.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// tokenSet returns tokenize(text) as a set.
func tokenSet(text string) map[string]bool {
	toks := tokenize(text)
	set := make(map[string]bool, len(toks))
	for _, t := range toks {
		set[t] = true
	}
	return set
}

// overlap returns the fraction of tokens present in set.
func overlap(tokens []string, set map[string]bool) float64 {
	if len(tokens) == 0 {
		return 0
	}
	shared := 0
	for _, t := range tokens {
		if set[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(tokens))
}

// #endregion stopwords

// #region sentences

// splitSentences breaks text at newlines and at terminal punctuation that is
// followed by whitespace, so decimals like "R45.50" stay intact.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	flush := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i, r := range runes {
		switch {
		case r == '\n':
			flush(i + 1)
		case r == '.' || r == '!' || r == '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	if start < len(runes) {
		flush(len(runes))
	}
	return out
}

// #endregion sentences
