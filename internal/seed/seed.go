// Package seed provides helpers to create demo violation data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"promptguard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options controls how much demo data is generated.
type Options struct {
	Users               int
	ViolationsPerUser   int
	MaxDaysBack         int
	RepeatOffenderRatio float64
}

// DefaultOptions returns a small data set suitable for a local dashboard.
func DefaultOptions() Options {
	return Options{
		Users:               25,
		ViolationsPerUser:   4,
		MaxDaysBack:         14,
		RepeatOffenderRatio: 0.2,
	}
}

var severities = []models.Severity{
	models.SeverityLow,
	models.SeverityMedium,
	models.SeverityHigh,
	models.SeverityCritical,
}

var actionsBySeverity = map[models.Severity][]models.Action{
	models.SeverityLow:      {models.ActionFlagged},
	models.SeverityMedium:   {models.ActionWarned, models.ActionBlocked},
	models.SeverityHigh:     {models.ActionWarned, models.ActionSuspended},
	models.SeverityCritical: {models.ActionSuspended},
}

var seedTermsBySeverity = map[models.Severity][]string{
	models.SeverityLow:      {"sexy", "provocative"},
	models.SeverityMedium:   {"sexy", "provocative", "suggestive"},
	models.SeverityHigh:     {"lingerie", "seductive"},
	models.SeverityCritical: {"naked", "nude"},
}

// Run populates the violations table with generated history.
func Run(ctx context.Context, db *gorm.DB, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < opts.Users; i++ {
		userID := fmt.Sprintf("user-%s", gofakeit.UUID()[:8])

		n := 1
		if r.Float64() < opts.RepeatOffenderRatio {
			n = 1 + r.Intn(opts.ViolationsPerUser)
		}

		for j := 0; j < n; j++ {
			severity := severities[r.Intn(len(severities))]
			actions := actionsBySeverity[severity]
			ip := gofakeit.IPv4Address()
			ua := gofakeit.UserAgent()

			v := models.Violation{
				UserID:        userID,
				Type:          models.ViolationTypeInappropriateContent,
				Content:       gofakeit.Sentence(8),
				DetectedTerms: models.TermList(seedTermsBySeverity[severity]),
				Severity:      severity,
				Action:        actions[r.Intn(len(actions))],
				IPAddress:     &ip,
				UserAgent:     &ua,
				CreatedAt: time.Now().Add(
					-time.Duration(r.Intn(opts.MaxDaysBack*24)) * time.Hour,
				),
			}

			if err := db.WithContext(ctx).Create(&v).Error; err != nil {
				return fmt.Errorf("seed violation for %s: %w", userID, err)
			}
		}
	}

	return nil
}
