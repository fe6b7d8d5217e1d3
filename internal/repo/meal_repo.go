// Package repo implements the data persistence layer for domain
// entities, backed by GORM. This file provides repository functions for
// the Meal model.
//
// CreateMeal deliberately takes the handle as-is (no WithContext): it
// is called with a transaction-bound *gorm.DB inside the worker's
// terminal write, where the context is already attached to the
// transaction.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platewise/go-meal-backend/internal/domain"
)

// CreateMeal inserts the Meal derived from a completed analysis. The
// unique index on analysis_event_id rejects a second Meal for the same
// event; callers map that violation to their idempotency handling.
func CreateMeal(tx *gorm.DB, userID, eventID, imageURL string, facts *domain.NutritionFacts) (*domain.Meal, error) {
	m := &domain.Meal{
		ID:              uuid.NewString(),
		UserID:          userID,
		AnalysisEventID: eventID,
		Name:            facts.Name,
		Calories:        facts.Calories,
		Proteins:        facts.Proteins,
		Carbs:           facts.Carbs,
		Fats:            facts.Fats,
		Tips:            facts.Tips,
		AIInsights:      facts.AIInsights,
		ImageURL:        imageURL,
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMealByEvent fetches the Meal derived from eventID, or ErrNotFound.
func GetMealByEvent(ctx context.Context, db *gorm.DB, eventID string) (*domain.Meal, error) {
	var m domain.Meal
	if err := db.WithContext(ctx).First(&m, "analysis_event_id = ?", eventID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMealsByUser returns the total number of meals owned by userID.
func CountMealsByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Meal{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListMealsByUserPage returns a paginated slice of meals for userID,
// ordered by creation time descending. Use CountMealsByUser to obtain
// the total for pagination metadata.
func ListMealsByUserPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Meal, error) {
	var out []domain.Meal
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
