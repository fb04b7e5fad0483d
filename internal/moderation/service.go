// Package moderation is the single entry point request handlers call. It
// sequences matcher, escalation policy and ledger, and owns the subsystem's
// failure semantics.
package moderation

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"promptguard/internal/cache"
	"promptguard/internal/featureflags"
	"promptguard/internal/filter"
	"promptguard/internal/ledger"
	"promptguard/internal/middleware"
	"promptguard/internal/models"
	"promptguard/internal/observability"
	"promptguard/internal/policy"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	reasonTerms    = "The request contains terms that violate our content guidelines."
	reasonPatterns = "The request matches phrasing that violates our content guidelines."
	maxSuggestions = 3

	// probeSuffix is appended during the combination re-check. It trips the
	// corresponding evasion pattern, so the re-probe flags borderline
	// photorealistic-human requests whose parts individually pass.
	probeSuffix = "human figure realistic"
)

// Combination-detection heuristic: a human-figure term together with a
// realism or materials term triggers a stricter re-check. This is deliberate
// defense-in-depth for borderline photorealistic-human requests; it only ever
// strengthens the verdict. The two guarded combinations are a product
// decision, not an exhaustive rule set.
var (
	humanFigureRe = regexp.MustCompile(`(?i)\b(human|person|character)\b`)
	realismRe     = regexp.MustCompile(`(?i)\b(realistic|photorealistic)\b`)
	materialsRe   = regexp.MustCompile(`(?i)\b(skin|flesh)\b`)
)

// CheckResult is the outcome of a content check. Reason is generic by design:
// it never echoes which exact terms matched, to avoid teaching evasion.
type CheckResult struct {
	IsInappropriate bool     `json:"is_inappropriate"`
	Reason          string   `json:"reason,omitempty"`
	FoundTerms      []string `json:"found_terms,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

// HistoryResult is the outcome of a user-history gate check.
type HistoryResult struct {
	ShouldBlock    bool          `json:"should_block"`
	ViolationCount int64         `json:"violation_count"`
	Action         models.Action `json:"action,omitempty"`
}

// RecordResult is the outcome of recording a violation; the caller enforces it.
type RecordResult struct {
	Violation   *models.Violation `json:"violation"`
	Action      models.Action     `json:"action"`
	Severity    models.Severity   `json:"severity"`
	ShouldBlock bool              `json:"should_block"`
}

// DesignSelections are the free-text fields of a design request, checked as
// one combined string.
type DesignSelections struct {
	Description string   `json:"description"`
	Style       string   `json:"style"`
	Material    string   `json:"material"`
	Production  string   `json:"production"`
	Details     []string `json:"details"`
}

// Service orchestrates matcher, policy and ledger. All collaborators are
// injected at construction; there is no lazy resolution.
type Service struct {
	matcher    *filter.Matcher
	policy     *policy.Engine
	ledger     ledger.Ledger
	redis      *redis.Client
	flags      *featureflags.Manager
	contentCap int
	cacheTTL   time.Duration
}

// NewService returns a moderation service. redisClient may be nil; the
// history cache is then skipped entirely.
func NewService(m *filter.Matcher, p *policy.Engine, l ledger.Ledger, redisClient *redis.Client, contentCap int, cacheTTL time.Duration) *Service {
	if contentCap <= 0 {
		contentCap = 1000
	}
	if cacheTTL <= 0 {
		cacheTTL = cache.HistoryTTL
	}
	return &Service{
		matcher:    m,
		policy:     p,
		ledger:     l,
		redis:      redisClient,
		contentCap: contentCap,
		cacheTTL:   cacheTTL,
	}
}

// Matcher exposes the underlying matcher for callers that only need a pure
// scan (e.g. sanitizing display text).
func (s *Service) Matcher() *filter.Matcher {
	return s.matcher
}

// UseFlags attaches a feature-flag manager. A nil manager leaves every
// flagged behavior at its default.
func (s *Service) UseFlags(f *featureflags.Manager) {
	s.flags = f
}

// CheckContent scans a single text field. On a hit it returns a generic
// reason (lexicon vs. pattern wording) and up to three safe-phrasing
// suggestions from the static alternatives list.
func (s *Service) CheckContent(text string) CheckResult {
	match := s.matcher.Check(text)
	observability.RecordCheck(match.IsInappropriate)

	if !match.IsInappropriate {
		return CheckResult{}
	}

	reason := reasonPatterns
	if len(match.FoundTerms) > 0 {
		reason = reasonTerms
	}

	return CheckResult{
		IsInappropriate: true,
		Reason:          reason,
		FoundTerms:      match.FoundTerms,
		Suggestions:     s.suggestions(),
	}
}

// CheckFullContent concatenates all free-text fields of a design request and
// delegates to CheckContent, then applies the combination re-probe. The
// stricter probe result wins only when it trips, so the re-check can never
// weaken a verdict.
func (s *Service) CheckFullContent(sel DesignSelections) CheckResult {
	parts := []string{sel.Description, sel.Style, sel.Material, sel.Production}
	parts = append(parts, sel.Details...)
	combined := strings.TrimSpace(strings.Join(parts, " "))

	result := s.CheckContent(combined)
	if result.IsInappropriate {
		return result
	}

	// combination_recheck is a kill switch only; the re-probe ships on.
	if s.flags.EnabledOrDefault("combination_recheck", "", true) &&
		humanFigureRe.MatchString(combined) &&
		(realismRe.MatchString(combined) || materialsRe.MatchString(combined)) {
		if probed := s.CheckContent(combined + " " + probeSuffix); probed.IsInappropriate {
			return probed
		}
	}

	return result
}

// CheckUserHistory reports whether a user should be gated on history alone,
// before any matcher pass. Every ledger failure here is fail-open: a
// persistence outage degrades to "allow" rather than locking out all users.
// That is a deliberate availability-over-strictness tradeoff; do not make
// this path fail-closed without a product decision.
func (s *Service) CheckUserHistory(ctx context.Context, userID string) HistoryResult {
	if userID == "" {
		return HistoryResult{}
	}

	if cached, ok := s.cachedHistory(ctx, userID); ok {
		return cached
	}

	span, ctx := observability.NewSpan(ctx, "moderation.CheckUserHistory")
	defer span.End()
	span.AddAttributes(attribute.String("moderation.user_id", userID))

	count, err := s.ledger.CountSince(ctx, userID, s.policy.Window())
	if err != nil {
		s.failOpen(ctx, userID, "count violations", err)
		return HistoryResult{}
	}

	latest, err := s.ledger.LatestAction(ctx, userID)
	if err != nil {
		s.failOpen(ctx, userID, "load latest action", err)
		return HistoryResult{}
	}

	result := HistoryResult{
		ShouldBlock:    s.policy.ShouldBlock(latest, count),
		ViolationCount: count,
		Action:         latest,
	}
	s.storeHistory(ctx, userID, result)
	return result
}

// RecordViolation classifies severity, asks the policy for an action based on
// the user's rolling count, persists the record and returns the outcome for
// the caller to enforce. Unlike CheckUserHistory, persistence errors
// propagate: a logging failure must never silently suppress a positive match,
// so the caller decides whether to still reject the request.
func (s *Service) RecordViolation(ctx context.Context, userID, content string, foundTerms []string, ipAddress, userAgent string) (*RecordResult, error) {
	span, ctx := observability.NewSpan(ctx, "moderation.RecordViolation")
	defer span.End()

	severity := s.policy.Classify(foundTerms)

	priorCount, err := s.ledger.CountSince(ctx, userID, s.policy.Window())
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	action := s.policy.RecommendAction(severity, priorCount)

	violation := &models.Violation{
		UserID:        userID,
		Type:          models.ViolationTypeInappropriateContent,
		Content:       truncate(content, s.contentCap),
		DetectedTerms: models.TermList(foundTerms),
		Severity:      severity,
		Action:        action,
	}
	if ipAddress != "" {
		violation.IPAddress = &ipAddress
	}
	if userAgent != "" {
		violation.UserAgent = &userAgent
	}

	if err := s.ledger.Append(ctx, violation); err != nil {
		span.SetError(err)
		return nil, err
	}

	observability.RecordViolation(string(severity), string(action))
	if s.redis != nil {
		// Drop the cached verdict so escalation takes effect immediately.
		s.redis.Del(ctx, cache.HistoryKey(userID))
	}

	middleware.Logger.WarnContext(ctx, "violation recorded",
		slog.String("user_id", userID),
		slog.String("severity", string(severity)),
		slog.String("action", string(action)),
		slog.Int64("prior_count", priorCount),
	)

	return &RecordResult{
		Violation:   violation,
		Action:      action,
		Severity:    severity,
		ShouldBlock: s.policy.ShouldBlock(action, priorCount+1),
	}, nil
}

func (s *Service) suggestions() []string {
	alts := s.matcher.Alternatives()
	if len(alts) > maxSuggestions {
		alts = alts[:maxSuggestions]
	}
	return alts
}

func (s *Service) failOpen(ctx context.Context, userID, op string, err error) {
	observability.HistoryFailOpenTotal.Inc()
	observability.RecordErrorInContext(ctx, err)
	middleware.Logger.WarnContext(ctx, "user history check failed open",
		slog.String("user_id", userID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

func (s *Service) cachedHistory(ctx context.Context, userID string) (HistoryResult, bool) {
	if s.redis == nil || !s.flags.EnabledOrDefault("history_cache", userID, true) {
		return HistoryResult{}, false
	}

	ctx, span := observability.TraceRedisOperation(ctx, "get")
	defer span.End()

	raw, err := s.redis.Get(ctx, cache.HistoryKey(userID)).Result()
	if err != nil {
		return HistoryResult{}, false
	}
	var result HistoryResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return HistoryResult{}, false
	}
	return result, true
}

func (s *Service) storeHistory(ctx context.Context, userID string, result HistoryResult) {
	if s.redis == nil || !s.flags.EnabledOrDefault("history_cache", userID, true) {
		return
	}

	ctx, span := observability.TraceRedisOperation(ctx, "set")
	defer span.End()

	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	s.redis.Set(ctx, cache.HistoryKey(userID), raw, s.cacheTTL)
}

// truncate caps content at n runes before storage. Offending text is never
// stored unbounded.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
