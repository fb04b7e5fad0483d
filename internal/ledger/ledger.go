// Package ledger implements the append-only violation store. It is the sole
// writer and sole source of truth for violation history; no other component
// caches or recomputes history from raw records.
package ledger

import (
	"context"
	"errors"
	"time"

	"promptguard/internal/models"
	"promptguard/internal/observability"

	"gorm.io/gorm"
)

// Ledger defines persistence operations for violation records. Records are
// append-only: there are deliberately no update or delete methods.
type Ledger interface {
	// Append persists a new violation. Persistence errors propagate to the
	// caller; they are never swallowed here.
	Append(ctx context.Context, v *models.Violation) error
	// CountSince returns the number of records for userID with CreatedAt
	// inside the trailing window, measured from time.Now at call time.
	CountSince(ctx context.Context, userID string, window time.Duration) (int64, error)
	// LatestAction returns the action of the user's most recent violation,
	// or "" when the user has none.
	LatestAction(ctx context.Context, userID string) (models.Action, error)
	// ListByUser returns the user's most recent violations, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Violation, error)
	// List returns a page of violations, newest first, plus the total count.
	List(ctx context.Context, limit, offset int) ([]models.Violation, int64, error)
}

type store struct {
	db *gorm.DB
}

// NewStore returns a Ledger backed by the given gorm database.
func NewStore(db *gorm.DB) Ledger {
	return &store{db: db}
}

func (s *store) Append(ctx context.Context, v *models.Violation) error {
	ctx, span := observability.TraceLedgerQuery(ctx, "append")
	defer span.End()
	defer observability.ObserveLedgerQuery("append", time.Now())

	// Single-row insert with a store-side CreatedAt; concurrent appends for
	// the same user are independent rows and cannot overwrite each other.
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		span.RecordError(err)
		return models.NewInternalError(err)
	}
	return nil
}

func (s *store) CountSince(ctx context.Context, userID string, window time.Duration) (int64, error) {
	ctx, span := observability.TraceLedgerQuery(ctx, "count_since")
	defer span.End()
	defer observability.ObserveLedgerQuery("count_since", time.Now())

	var count int64
	cutoff := time.Now().Add(-window)
	err := s.db.WithContext(ctx).
		Model(&models.Violation{}).
		Where("user_id = ? AND created_at >= ?", userID, cutoff).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (s *store) LatestAction(ctx context.Context, userID string) (models.Action, error) {
	ctx, span := observability.TraceLedgerQuery(ctx, "latest_action")
	defer span.End()
	defer observability.ObserveLedgerQuery("latest_action", time.Now())

	var v models.Violation
	err := s.db.WithContext(ctx).
		Select("action").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", models.NewInternalError(err)
	}
	return v.Action, nil
}

func (s *store) ListByUser(ctx context.Context, userID string, limit int) ([]models.Violation, error) {
	ctx, span := observability.TraceLedgerQuery(ctx, "list_by_user")
	defer span.End()
	defer observability.ObserveLedgerQuery("list_by_user", time.Now())

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var violations []models.Violation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&violations).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return violations, nil
}

func (s *store) List(ctx context.Context, limit, offset int) ([]models.Violation, int64, error) {
	ctx, span := observability.TraceLedgerQuery(ctx, "list")
	defer span.End()
	defer observability.ObserveLedgerQuery("list", time.Now())

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Violation{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var violations []models.Violation
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&violations).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return violations, total, nil
}
