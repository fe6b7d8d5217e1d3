// Package repo implements the data persistence layer for domain
// entities, backed by GORM. This file provides repository functions for
// the AnalysisEvent model.
//
// All functions are context-aware and accept a *gorm.DB handle, making
// them safe for use within transactions or connection-scoped
// operations. They follow the "thin repository" approach: no business
// logic, only CRUD persistence and the status-transition updates the
// worker relies on.
//
// Error semantics:
//   - When an event is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Status-transition guarantees enforced here:
//   - MarkEventProcessing only moves pending → processing; it never
//     resurrects a terminal event and a no-op is not an error.
//   - CompleteEvent sets result and clears error in the same UPDATE, so
//     the result/error exclusivity invariant holds after every write.
//   - FailEvent refuses to downgrade a completed event: once a Meal
//     exists for the event, a late redelivery failure cannot hide it.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platewise/go-meal-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateEvent inserts a new AnalysisEvent in pending state for userID.
// The event ID is a randomly generated UUID (string), and CreatedAt is
// set to UTC. On success, it returns the persisted event.
func CreateEvent(ctx context.Context, db *gorm.DB, userID, imageURL string) (*domain.AnalysisEvent, error) {
	ev := &domain.AnalysisEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		ImageURL:  imageURL,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// GetEvent fetches a single event by its ID. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetEvent(ctx context.Context, db *gorm.DB, id string) (*domain.AnalysisEvent, error) {
	var ev domain.AnalysisEvent
	if err := db.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// MarkEventProcessing moves an event from pending to processing. The
// transition is forward-only: events already processing or terminal are
// left untouched and no error is reported, since redelivered jobs may
// legitimately observe any later state.
func MarkEventProcessing(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.AnalysisEvent{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Update("status", domain.StatusProcessing).Error
}

// CompleteEvent transitions an event to completed and attaches the
// classification result. Result and error are written in the same
// UPDATE so the exclusivity invariant cannot be observed broken. If no
// row matches the ID, it returns ErrNotFound.
//
// Callers performing the Meal-create + complete pair must invoke this
// with a transaction-bound handle.
func CompleteEvent(ctx context.Context, db *gorm.DB, id string, result *domain.NutritionFacts) error {
	res := db.WithContext(ctx).
		Model(&domain.AnalysisEvent{}).
		Where("id = ?", id).
		Select("status", "result", "error").
		Updates(domain.AnalysisEvent{Status: domain.StatusCompleted, Result: result})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FailEvent transitions an event to failed with a human-readable
// message, clearing any result. A completed event is final and is never
// downgraded; in that case FailEvent is a no-op rather than an error so
// that recording a late redelivery failure stays best-effort.
func FailEvent(ctx context.Context, db *gorm.DB, id, msg string) error {
	return db.WithContext(ctx).
		Model(&domain.AnalysisEvent{}).
		Where("id = ? AND status <> ?", id, domain.StatusCompleted).
		Select("status", "result", "error").
		Updates(domain.AnalysisEvent{Status: domain.StatusFailed, Error: &msg}).Error
}
