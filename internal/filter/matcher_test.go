package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	lex, err := NewLexicon(DefaultConfig())
	require.NoError(t, err)
	return NewMatcher(lex)
}

func TestMatcher_Check_LexiconHits(t *testing.T) {
	t.Parallel()
	m := newTestMatcher(t)

	tests := []struct {
		name string
		text string
		term string
	}{
		{"plain term", "naked person on beach", "naked"},
		{"uppercase", "NAKED person", "naked"},
		{"mixed case", "a NuDe statue", "nude"},
		{"term inside word", "seminude figure", "nude"},
		{"multi-word term", "explicit content please", "explicit content"},
		{"high tier term", "wearing lingerie", "lingerie"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := m.Check(tt.text)
			assert.True(t, res.IsInappropriate)
			assert.Contains(t, res.FoundTerms, tt.term)
		})
	}
}

func TestMatcher_Check_Clean(t *testing.T) {
	t.Parallel()
	m := newTestMatcher(t)

	for _, text := range []string{
		"a cute robot holding a flower",
		"a medieval castle with four towers",
		"low-poly fox figurine, matte finish",
		"",
		"   ",
	} {
		res := m.Check(text)
		assert.False(t, res.IsInappropriate, "expected clean: %q", text)
		assert.Empty(t, res.FoundTerms)
		assert.Zero(t, res.FoundPatternCount)
	}
}

func TestMatcher_Check_Patterns(t *testing.T) {
	t.Parallel()
	m := newTestMatcher(t)

	tests := []struct {
		name string
		text string
	}{
		{"no clothes", "a person with no clothes"},
		{"barely dressed", "a figure barely dressed in rags"},
		{"without clothing", "someone without any clothing"},
		{"extra whitespace", "no   clothes"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := m.Check(tt.text)
			assert.True(t, res.IsInappropriate)
			assert.GreaterOrEqual(t, res.FoundPatternCount, 1)
		})
	}
}

func TestMatcher_Check_PatternOnlyHasNoTerms(t *testing.T) {
	t.Parallel()
	m := newTestMatcher(t)

	res := m.Check("a knight with no clothes")
	assert.True(t, res.IsInappropriate)
	assert.Empty(t, res.FoundTerms)
	assert.Equal(t, 1, res.FoundPatternCount)
}

func TestMatcher_Check_DetectionOrder(t *testing.T) {
	t.Parallel()
	m := newTestMatcher(t)

	// "lingerie" precedes "naked" in the text but "naked" precedes it in the
	// lexicon; FoundTerms follows lexicon (detection) order.
	res := m.Check("lingerie model, naked")
	require.True(t, res.IsInappropriate)
	require.Len(t, res.FoundTerms, 2)
	assert.Equal(t, []string{"naked", "lingerie"}, res.FoundTerms)
}

func TestMatcher_Sanitize(t *testing.T) {
	t.Parallel()
	m := newTestMatcher(t)

	t.Run("replaces lexicon hits", func(t *testing.T) {
		t.Parallel()
		out := m.Sanitize("a naked person")
		assert.Equal(t, "a "+Placeholder+" person", out)
		assert.NotContains(t, strings.ToLower(out), "naked")
	})

	t.Run("collapses whitespace", func(t *testing.T) {
		t.Parallel()
		out := m.Sanitize("  a   nude    statue  ")
		assert.Equal(t, "a "+Placeholder+" statue", out)
	})

	t.Run("leaves pattern-only content alone", func(t *testing.T) {
		t.Parallel()
		out := m.Sanitize("a knight with no clothes")
		assert.Equal(t, "a knight with no clothes", out)
	})

	t.Run("idempotent on its own output", func(t *testing.T) {
		t.Parallel()
		inputs := []string{
			"a naked person",
			"NUDE nude NuDe",
			"clean text entirely",
			"lingerie and underwear, naked",
			"",
		}
		for _, in := range inputs {
			once := m.Sanitize(in)
			twice := m.Sanitize(once)
			assert.Equal(t, once, twice, "input %q", in)
		}
	})
}

func TestNewLexicon_InvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := NewLexicon(Config{Patterns: []string{"(unclosed"}})
	assert.Error(t, err)
}

func TestNewLexicon_NormalizesAndDedupes(t *testing.T) {
	t.Parallel()
	lex, err := NewLexicon(Config{Terms: []string{" Naked ", "naked", "NUDE"}})
	require.NoError(t, err)
	m := NewMatcher(lex)

	res := m.Check("naked and nude")
	assert.Equal(t, []string{"naked", "nude"}, res.FoundTerms)
}
