package filter

import (
	"regexp"
	"strings"
)

// Placeholder is substituted for every lexicon hit by Sanitize.
const Placeholder = "[removed]"

var spaceRe = regexp.MustCompile(`\s+`)

// Result is the outcome of a single matcher pass.
type Result struct {
	IsInappropriate   bool
	FoundTerms        []string
	FoundPatternCount int
}

// Matcher scans free text against an immutable lexicon. It holds no mutable
// state and never returns an error: empty or missing input is simply clean.
type Matcher struct {
	lex *Lexicon
}

// NewMatcher returns a matcher over the given lexicon.
func NewMatcher(lex *Lexicon) *Matcher {
	return &Matcher{lex: lex}
}

// Alternatives returns the lexicon's static safe-phrasing suggestions.
func (m *Matcher) Alternatives() []string {
	return m.lex.alternatives
}

// Check scans text for lexicon terms (case-insensitive substring containment)
// and evasion patterns. FoundTerms lists each matched term once, in lexicon
// order, which is the detection order recorded on violations.
func (m *Matcher) Check(text string) Result {
	var res Result
	if strings.TrimSpace(text) == "" {
		return res
	}

	lowered := strings.ToLower(text)

	for _, term := range m.lex.terms {
		if strings.Contains(lowered, term) {
			res.FoundTerms = append(res.FoundTerms, term)
		}
	}

	for _, re := range m.lex.patterns {
		if re.MatchString(text) {
			res.FoundPatternCount++
		}
	}

	res.IsInappropriate = len(res.FoundTerms) > 0 || res.FoundPatternCount > 0
	return res
}

// Sanitize replaces every lexicon hit with Placeholder and collapses the
// resulting whitespace. Pattern-matched (non-lexicon) content is left alone.
// Sanitize is idempotent on its own output because the placeholder contains
// no lexicon term.
func (m *Matcher) Sanitize(text string) string {
	if text == "" {
		return text
	}

	cleaned := text
	for _, re := range m.lex.termRes {
		cleaned = re.ReplaceAllString(cleaned, Placeholder)
	}

	cleaned = spaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
