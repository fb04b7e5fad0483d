package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"promptguard/internal/filter"
	"promptguard/internal/models"
)

func newTestEngine() *Engine {
	lex := filter.MustDefaultLexicon()
	return NewEngine(lex.CriticalTerms(), lex.HighTerms(), DefaultThresholds())
}

func TestEngine_Classify(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	tests := []struct {
		name  string
		terms []string
		want  models.Severity
	}{
		{"no terms", nil, models.SeverityLow},
		{"single generic term", []string{"sexy"}, models.SeverityLow},
		{"two generic terms", []string{"sexy", "provocative"}, models.SeverityLow},
		{"three generic terms", []string{"sexy", "provocative", "suggestive"}, models.SeverityMedium},
		{"duplicates count once", []string{"sexy", "sexy", "sexy"}, models.SeverityLow},
		{"single high term", []string{"lingerie"}, models.SeverityHigh},
		{"single critical term", []string{"naked"}, models.SeverityCritical},
		{"critical beats high", []string{"lingerie", "naked"}, models.SeverityCritical},
		{"critical beats term count", []string{"sexy", "provocative", "suggestive", "nude"}, models.SeverityCritical},
		{"high beats term count", []string{"sexy", "provocative", "suggestive", "lingerie"}, models.SeverityHigh},
		{"case insensitive", []string{"NAKED"}, models.SeverityCritical},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.Classify(tt.terms))
		})
	}
}

func TestEngine_Classify_AlwaysAssignsATier(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	// Any input, including garbage terms, lands on exactly one known tier.
	for _, terms := range [][]string{
		nil,
		{},
		{"zzz-not-a-term"},
		{"naked", "zzz-not-a-term"},
	} {
		sev := e.Classify(terms)
		assert.Contains(t, []models.Severity{
			models.SeverityLow, models.SeverityMedium,
			models.SeverityHigh, models.SeverityCritical,
		}, sev)
	}
}

func TestEngine_RecommendAction(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	tests := []struct {
		name       string
		severity   models.Severity
		priorCount int64
		want       models.Action
	}{
		{"critical first offense", models.SeverityCritical, 0, models.ActionSuspended},
		{"critical with history", models.SeverityCritical, 5, models.ActionSuspended},
		{"high first offense", models.SeverityHigh, 0, models.ActionWarned},
		{"high repeat", models.SeverityHigh, 1, models.ActionSuspended},
		{"high heavy repeat", models.SeverityHigh, 7, models.ActionSuspended},
		{"medium first offense", models.SeverityMedium, 0, models.ActionWarned},
		{"medium second offense", models.SeverityMedium, 1, models.ActionWarned},
		{"medium third offense", models.SeverityMedium, 2, models.ActionBlocked},
		{"low always flagged", models.SeverityLow, 0, models.ActionFlagged},
		{"low ignores history", models.SeverityLow, 99, models.ActionFlagged},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.RecommendAction(tt.severity, tt.priorCount))
		})
	}
}

func TestEngine_ShouldBlock(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	tests := []struct {
		name   string
		latest models.Action
		count  int64
		want   bool
	}{
		{"no history", "", 0, false},
		{"flagged only", models.ActionFlagged, 3, false},
		{"warned only", models.ActionWarned, 3, false},
		{"latest suspended", models.ActionSuspended, 1, true},
		{"latest blocked", models.ActionBlocked, 1, true},
		{"at hard ceiling", models.ActionWarned, 10, false},
		{"over hard ceiling", models.ActionWarned, 11, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.ShouldBlock(tt.latest, tt.count))
		})
	}
}

func TestEngine_Window(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil, nil, Thresholds{WindowHours: 24})
	assert.Equal(t, 24*time.Hour, e.Window())
}

func TestEngine_CustomThresholds(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil, nil, Thresholds{
		WindowHours:     1,
		HighRepeat:      3,
		MediumRepeat:    5,
		MediumTermCount: 1,
		HardCeiling:     2,
	})

	assert.Equal(t, models.SeverityMedium, e.Classify([]string{"a", "b"}))
	assert.Equal(t, models.ActionWarned, e.RecommendAction(models.SeverityHigh, 2))
	assert.Equal(t, models.ActionSuspended, e.RecommendAction(models.SeverityHigh, 3))
	assert.True(t, e.ShouldBlock(models.ActionFlagged, 3))
}
