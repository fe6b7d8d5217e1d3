// Package worker consumes meal-analysis jobs from the queue and
// performs the terminal state transition of each AnalysisEvent.
//
// Execution contract per job:
//  1. Classify the embedded image. The external call happens before any
//     database transaction begins, so no locks are held across the slow
//     network call.
//  2. On success, one transaction re-verifies the user, creates the
//     Meal, and marks the event completed with the validated result.
//     The Meal and the completed status become visible together or not
//     at all.
//  3. On any failure, the event is marked failed with the captured
//     message in an independent write, and the error is still returned
//     to the queue so its redelivery policy applies.
//
// Redelivery safety: a job whose event is already completed is
// acknowledged without re-classifying, and the unique index on
// meals.analysis_event_id backstops against a second Meal if two
// deliveries race.
package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/platewise/go-meal-backend/internal/domain"
	"github.com/platewise/go-meal-backend/internal/queue"
	"github.com/platewise/go-meal-backend/internal/repo"
)

// Classifier is the opaque vision call the worker depends on.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*domain.NutritionFacts, error)
}

// AnalysisWorker reconciles queue deliveries into durable event state.
type AnalysisWorker struct {
	DB         *gorm.DB
	Classifier Classifier
}

// NewAnalysisWorker constructs a worker bound to db and the classifier.
func NewAnalysisWorker(db *gorm.DB, c Classifier) *AnalysisWorker {
	return &AnalysisWorker{DB: db, Classifier: c}
}

// Register attaches the worker's handler to the analysis queue.
func (w *AnalysisWorker) Register(q *queue.Queue) {
	q.Handle(domain.JobKindAnalyzeMeal, w.HandleAnalysisJob)
}

// HandleAnalysisJob processes one delivery of a meal-analysis job.
func (w *AnalysisWorker) HandleAnalysisJob(ctx context.Context, job *queue.Job) error {
	tr := otel.Tracer("worker/AnalysisWorker")
	ctx, span := tr.Start(ctx, "HandleAnalysisJob",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.Int("job.attempt", job.Attempt),
		),
	)
	defer span.End()

	var p domain.AnalysisJob
	if err := job.Decode(&p); err != nil {
		// Without a payload there is no event to reconcile; redelivery
		// of the same bytes cannot succeed either.
		log.Error().Str("job_id", job.ID).Err(err).Msg("undecodable analysis job")
		return fmt.Errorf("decode analysis job: %w", err)
	}
	span.SetAttributes(attribute.String("event.id", p.EventID))
	lg := log.With().
		Str("job_id", job.ID).
		Str("event_id", p.EventID).
		Str("user_id", p.UserID).
		Int("attempt", job.Attempt).
		Logger()

	// Redelivery short-circuit: once completed, the event is final.
	if ev, err := repo.GetEvent(ctx, w.DB, p.EventID); err == nil && ev.Status == domain.StatusCompleted {
		lg.Info().Msg("event already completed, acknowledging redelivery")
		return nil
	}

	// Transient, forward-only marker; failure to set it is harmless.
	if err := repo.MarkEventProcessing(ctx, w.DB, p.EventID); err != nil {
		lg.Warn().Err(err).Msg("could not mark event processing")
	}

	facts, err := w.classify(ctx, &p)
	if err == nil {
		err = w.completeEvent(ctx, &p, facts)
	}
	if err != nil {
		w.recordFailure(ctx, &lg, p.EventID, err)
		return err
	}

	lg.Info().Str("meal", facts.Name).Msg("analysis completed")
	return nil
}

// classify decodes the embedded image and runs the external call. This
// happens strictly before the terminal transaction is opened.
func (w *AnalysisWorker) classify(ctx context.Context, p *domain.AnalysisJob) (*domain.NutritionFacts, error) {
	image, err := base64.StdEncoding.DecodeString(p.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	facts, err := w.Classifier.Classify(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("classify image: %w", err)
	}
	return facts, nil
}

// completeEvent performs the atomic terminal write: user re-check, Meal
// creation, and the completed transition commit together or not at all.
func (w *AnalysisWorker) completeEvent(ctx context.Context, p *domain.AnalysisJob, facts *domain.NutritionFacts) error {
	return w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.UserExists(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("user %s not found", p.UserID)
		}

		// A concurrent delivery may have won the race since the
		// short-circuit check; the existing Meal settles it.
		if _, err := repo.GetMealByEvent(ctx, tx, p.EventID); err == nil {
			return nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		if _, err := repo.CreateMeal(tx, p.UserID, p.EventID, p.ImageURL, facts); err != nil {
			return err
		}
		return repo.CompleteEvent(ctx, tx, p.EventID, facts)
	})
}

// recordFailure writes the failed terminal state. This is deliberately
// independent of the transaction that would have written completed: it
// must succeed even though that transaction rolled back or was never
// opened. The original error still propagates to the queue afterwards.
func (w *AnalysisWorker) recordFailure(ctx context.Context, lg *zerolog.Logger, eventID string, cause error) {
	lg.Error().Err(cause).Msg("analysis failed")
	if err := repo.FailEvent(ctx, w.DB, eventID, cause.Error()); err != nil {
		lg.Error().Err(err).Msg("could not mark event failed")
	}
}
