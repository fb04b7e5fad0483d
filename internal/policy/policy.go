// Package policy maps "who, how bad, how often" to an enforcement action.
// Every function here is pure: the engine never touches storage, so the
// ledger and the policy stay independently testable.
package policy

import (
	"strings"
	"time"

	"promptguard/internal/models"
)

// Thresholds are the tunable numbers behind escalation. They encode business
// policy, not an architectural contract, and are loaded from config.
type Thresholds struct {
	// WindowHours is the trailing window for rolling violation counts.
	WindowHours int
	// HighRepeat suspends a high-severity offender with at least this many
	// prior violations in the window.
	HighRepeat int64
	// MediumRepeat blocks a medium-severity offender with at least this many
	// prior violations in the window.
	MediumRepeat int64
	// MediumTermCount: more than this many distinct matched terms promotes an
	// otherwise-low event to medium.
	MediumTermCount int
	// HardCeiling blocks any user whose rolling count exceeds it, regardless
	// of severity. Guards against low-severity events accumulating unchecked.
	HardCeiling int64
}

// DefaultThresholds mirrors the current production policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindowHours:     24,
		HighRepeat:      1,
		MediumRepeat:    2,
		MediumTermCount: 2,
		HardCeiling:     10,
	}
}

// Engine classifies severities and recommends actions. It is constructed with
// the lexicon's harm subsets so it carries no dependency on the filter
// package's internals.
type Engine struct {
	critical   map[string]struct{}
	high       map[string]struct{}
	thresholds Thresholds
}

// NewEngine builds a policy engine from the harm subsets and thresholds.
func NewEngine(critical, high []string, t Thresholds) *Engine {
	e := &Engine{
		critical:   make(map[string]struct{}, len(critical)),
		high:       make(map[string]struct{}, len(high)),
		thresholds: t,
	}
	for _, term := range critical {
		e.critical[strings.ToLower(term)] = struct{}{}
	}
	for _, term := range high {
		e.high[strings.ToLower(term)] = struct{}{}
	}
	return e
}

// Window returns the rolling-count window as a duration.
func (e *Engine) Window() time.Duration {
	return time.Duration(e.thresholds.WindowHours) * time.Hour
}

// Classify assigns exactly one severity to a detection event. The ladder is a
// priority tie-break: critical subset first, then high subset, then the
// distinct-term count, else low.
func (e *Engine) Classify(foundTerms []string) models.Severity {
	distinct := make(map[string]struct{}, len(foundTerms))
	hasCritical := false
	hasHigh := false

	for _, term := range foundTerms {
		t := strings.ToLower(term)
		distinct[t] = struct{}{}
		if _, ok := e.critical[t]; ok {
			hasCritical = true
		}
		if _, ok := e.high[t]; ok {
			hasHigh = true
		}
	}

	switch {
	case hasCritical:
		return models.SeverityCritical
	case hasHigh:
		return models.SeverityHigh
	case len(distinct) > e.thresholds.MediumTermCount:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// RecommendAction maps the new event's severity and the user's prior rolling
// count to an enforcement action. Thresholds are >= comparisons, so an
// eventually-consistent undercount only delays escalation, never corrupts it.
func (e *Engine) RecommendAction(severity models.Severity, priorCount int64) models.Action {
	switch severity {
	case models.SeverityCritical:
		return models.ActionSuspended
	case models.SeverityHigh:
		if priorCount >= e.thresholds.HighRepeat {
			return models.ActionSuspended
		}
		return models.ActionWarned
	case models.SeverityMedium:
		if priorCount >= e.thresholds.MediumRepeat {
			return models.ActionBlocked
		}
		return models.ActionWarned
	default:
		return models.ActionFlagged
	}
}

// ShouldBlock reports whether a user's history alone should gate further
// requests: the most recent action was blocking, or the rolling count blew
// past the hard ceiling.
func (e *Engine) ShouldBlock(latestAction models.Action, rollingCount int64) bool {
	if latestAction.IsBlocking() {
		return true
	}
	return rollingCount > e.thresholds.HardCeiling
}
