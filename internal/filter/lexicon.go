// Package filter implements the pure text matcher for disallowed design
// prompts: a fixed lexicon of literal terms plus regex patterns for
// multi-word evasions. All state is built once at startup and never mutated,
// so lookups are safe from any goroutine without locking.
package filter

import (
	"regexp"
	"strings"
)

// Lexicon holds the compiled, read-only matching tables. Changing the banned
// vocabulary means shipping a new config or binary, never mutating a live
// Lexicon.
type Lexicon struct {
	terms        []string
	termRes      []*regexp.Regexp
	critical     map[string]struct{}
	high         map[string]struct{}
	patterns     []*regexp.Regexp
	alternatives []string
}

// Config is the raw lexicon definition before compilation. Critical and High
// entries must also appear in Terms; entries are matched as case-insensitive
// substrings, Patterns as regular expressions.
type Config struct {
	Terms        []string
	Critical     []string
	High         []string
	Patterns     []string
	Alternatives []string
}

// baseTerms is the ordered blocklist of literal terms. Order matters: it is
// the detection order reported in FoundTerms.
var baseTerms = []string{
	// explicit / sexual-content terms (critical subset)
	"naked",
	"nude",
	"nudity",
	"pornographic",
	"porn",
	"erotic",
	"erotica",
	"explicit content",
	"sexual",
	"nsfw",
	"fetish",
	"xxx",
	// partial-exposure / intimacy terms (high subset)
	"topless",
	"undressed",
	"lingerie",
	"underwear",
	"revealing outfit",
	"seductive",
	"sensual",
	"intimate pose",
	// generic matches (low tier on their own)
	"sexy",
	"provocative",
	"suggestive",
	"adult content",
}

var criticalTerms = []string{
	"naked", "nude", "nudity", "pornographic", "porn", "erotic", "erotica",
	"explicit content", "sexual", "nsfw", "fetish", "xxx",
}

var highTerms = []string{
	"topless", "undressed", "lingerie", "underwear", "revealing outfit",
	"seductive", "sensual", "intimate pose",
}

// basePatterns catch multi-word evasions not covered by single-term matching.
var basePatterns = []string{
	`no\s+clothes`,
	`without\s+(any\s+)?cloth(es|ing)`,
	`barely\s+(dressed|covered|clothed)`,
	`taking\s+off\s+(her|his|their)\s+clothes`,
	`not\s+wearing\s+anything`,
	// tripped by the combination re-probe in moderation.CheckFullContent
	`human\s+figure\s+realistic`,
	`(photorealistic|realistic)\s+(naked|nude|undressed)`,
}

// baseAlternatives are generic safe-phrasing nudges returned with rejections.
// They are intentionally unrelated to whatever matched.
var baseAlternatives = []string{
	"a friendly cartoon character",
	"a stylized fantasy creature",
	"a cute animal figurine",
	"a sci-fi robot companion",
	"a chibi-style adventurer",
}

// DefaultConfig returns the built-in lexicon definition.
func DefaultConfig() Config {
	return Config{
		Terms:        baseTerms,
		Critical:     criticalTerms,
		High:         highTerms,
		Patterns:     basePatterns,
		Alternatives: baseAlternatives,
	}
}

// NewLexicon compiles a lexicon config. Returns an error only for an invalid
// pattern regex, which is a deployment mistake rather than a runtime
// condition.
func NewLexicon(cfg Config) (*Lexicon, error) {
	lex := &Lexicon{
		critical: make(map[string]struct{}, len(cfg.Critical)),
		high:     make(map[string]struct{}, len(cfg.High)),
	}

	seen := make(map[string]struct{}, len(cfg.Terms))
	for _, term := range cfg.Terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		lex.terms = append(lex.terms, t)
		// Per-term regex used only by Sanitize; matching itself uses
		// strings.Contains on the lowercased input.
		lex.termRes = append(lex.termRes, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(t)))
	}

	for _, term := range cfg.Critical {
		lex.critical[strings.ToLower(strings.TrimSpace(term))] = struct{}{}
	}
	for _, term := range cfg.High {
		lex.high[strings.ToLower(strings.TrimSpace(term))] = struct{}{}
	}

	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, err
		}
		lex.patterns = append(lex.patterns, re)
	}

	lex.alternatives = append(lex.alternatives, cfg.Alternatives...)
	return lex, nil
}

// MustDefaultLexicon compiles the built-in lexicon. The built-in patterns are
// covered by tests, so a compile failure here is a programming error.
func MustDefaultLexicon() *Lexicon {
	lex, err := NewLexicon(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return lex
}

// CriticalTerms returns the high-harm subset used for severity classification.
func (l *Lexicon) CriticalTerms() []string {
	out := make([]string, 0, len(l.critical))
	for t := range l.critical {
		out = append(out, t)
	}
	return out
}

// HighTerms returns the moderate-harm subset used for severity classification.
func (l *Lexicon) HighTerms() []string {
	out := make([]string, 0, len(l.high))
	for t := range l.high {
		out = append(out, t)
	}
	return out
}

// Alternatives returns the static safe-phrasing suggestions.
func (l *Lexicon) Alternatives() []string {
	return l.alternatives
}
