// Package domain defines the persistence models for users, analysis
// events, and meals. These types are mapped with GORM and form the core
// data layer of the meal analysis backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// AnalysisStatus is the lifecycle state of an AnalysisEvent.
//
// Allowed transitions:
//
//	pending → processing → completed
//	pending → processing → failed
//
// The processing state is transient and forward-only; an event never
// returns to pending once a worker has picked it up.
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NutritionFacts is the structured result of a successful image
// classification. It is stored on the AnalysisEvent as a JSON column
// and denormalized onto the Meal row derived from it.
type NutritionFacts struct {
	Calories   float64  `json:"calories"`
	Proteins   float64  `json:"proteins"`
	Carbs      float64  `json:"carbs"`
	Fats       float64  `json:"fats"`
	Tips       []string `json:"tips"`
	AIInsights string   `json:"aiInsights"`
	Name       string   `json:"name"`
}

// User represents a registered account that can submit meal images.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique account identifier.
//   - Name: display name, optional.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	Name      string    `json:"name"       gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// AnalysisEvent is the durable record of one submitted meal-analysis
// request and its lifecycle. It is created once in pending state by the
// submission path and mutated by exactly one durable terminal write
// performed by a worker.
//
// Invariant: Result is non-nil iff Status is completed, Error is
// non-nil iff Status is failed, and neither is set otherwise. All
// writes that touch Status together with Result or Error go through
// the repo layer, which maintains this exclusivity.
type AnalysisEvent struct {
	ID        string          `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string          `json:"user_id"    gorm:"type:char(36);not null;index:idx_events_user"`
	ImageURL  string          `json:"image_url"  gorm:"type:text;not null"`
	Status    AnalysisStatus  `json:"status"     gorm:"type:varchar(16);not null;index:idx_events_status"`
	Result    *NutritionFacts `json:"result,omitempty" gorm:"serializer:json"`
	Error     *string         `json:"error,omitempty"  gorm:"type:text"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName returns the database table name for AnalysisEvent.
func (AnalysisEvent) TableName() string { return "analysis_events" }

// Meal is the derived record of a successfully recognized food item.
// Exactly one Meal exists per completed AnalysisEvent; the unique index
// on AnalysisEventID is what makes worker redelivery idempotent.
//
// The Meal row and the completed transition of its AnalysisEvent are
// written in the same transaction, so no reader ever observes one
// without the other.
type Meal struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID          string         `json:"user_id"           gorm:"type:char(36);not null;index:idx_meals_user"`
	AnalysisEventID string         `json:"analysis_event_id" gorm:"type:char(36);not null;uniqueIndex:ux_meals_event"`
	Name            string         `json:"name"              gorm:"type:varchar(255);not null"`
	Calories        float64        `json:"calories"`
	Proteins        float64        `json:"proteins"`
	Carbs           float64        `json:"carbs"`
	Fats            float64        `json:"fats"`
	Tips            []string       `json:"tips"              gorm:"serializer:json"`
	AIInsights      string         `json:"ai_insights"       gorm:"type:text"`
	ImageURL        string         `json:"image_url"         gorm:"type:text"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`
}

// TableName returns the database table name for Meal.
func (Meal) TableName() string { return "meals" }
