// Package repo – pipeline statistics.
//
// Aggregate read-only queries used by the ops endpoints. These never
// mutate state and tolerate an empty database.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/platewise/go-meal-backend/internal/domain"
)

// PipelineStats is a snapshot of the analysis pipeline's durable state.
type PipelineStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Meals      int64 `json:"meals"`
}

// GetPipelineStats counts analysis events per status plus derived
// meals. The counts come from independent queries, so the snapshot is
// only loosely consistent; good enough for dashboards.
func GetPipelineStats(ctx context.Context, db *gorm.DB) (*PipelineStats, error) {
	var s PipelineStats

	type row struct {
		Status domain.AnalysisStatus
		N      int64
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.AnalysisEvent{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		switch r.Status {
		case domain.StatusPending:
			s.Pending = r.N
		case domain.StatusProcessing:
			s.Processing = r.N
		case domain.StatusCompleted:
			s.Completed = r.N
		case domain.StatusFailed:
			s.Failed = r.N
		}
	}

	if err := db.WithContext(ctx).Model(&domain.Meal{}).Count(&s.Meals).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
