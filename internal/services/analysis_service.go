// Package services – AnalysisService
//
// This file implements the AnalysisService, the application-level
// component that owns meal-image submission and status reads. Submit
// validates the upload, verifies the account, stores the image durably,
// creates the pending AnalysisEvent, and enqueues the analysis job,
// strictly in that order, so a job can never reference an event that is
// not yet readable. The call returns as soon as the job is queued; it
// never blocks on classification.
//
// Service-level errors (e.g. ErrUserNotFound, ErrImageTooLarge) are
// returned for predictable cases so handlers can map them to HTTP
// results consistently.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// include user and event identifiers.
package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rs/zerolog/log"

	"github.com/platewise/go-meal-backend/internal/domain"
	"github.com/platewise/go-meal-backend/internal/repo"
)

// ImageStore is the narrow view of the storage adapter the submission
// path needs.
type ImageStore interface {
	Store(ctx context.Context, data []byte, name, contentType string) (string, error)
}

// Enqueuer hands a job payload to the queue substrate. The returned
// string is the queue-assigned job ID.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) (string, error)
}

// ImageUpload is one uploaded file as received by the transport layer.
type ImageUpload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// AnalysisService coordinates submission and status reads for the
// asynchronous analysis pipeline.
type AnalysisService struct {
	DB    *gorm.DB
	Store ImageStore
	Queue Enqueuer

	// MaxImageBytes caps accepted uploads. Zero means the default 5 MiB.
	MaxImageBytes int64
}

// NewAnalysisService constructs an AnalysisService with the default
// upload size cap.
func NewAnalysisService(db *gorm.DB, store ImageStore, q Enqueuer) *AnalysisService {
	return &AnalysisService{
		DB:            db,
		Store:         store,
		Queue:         q,
		MaxImageBytes: 5 << 20,
	}
}

// Submit accepts a meal image for asynchronous analysis on behalf of
// userID and returns the identifier of the created AnalysisEvent.
//
// Effects, in order: validate the upload, verify the user exists, store
// the image durably, create the event in pending state, enqueue the
// job. A failure before the event row is committed aborts cleanly with
// no orphan job. A failure at the enqueue step leaves the already
// committed event permanently pending; the error is surfaced so the
// caller can retry the whole submission.
func (s *AnalysisService) Submit(ctx context.Context, userID string, upload ImageUpload) (string, error) {
	tr := otel.Tracer("services/AnalysisService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if err := s.validate(upload); err != nil {
		return "", err
	}

	ok, err := repo.UserExists(ctx, s.DB, userID)
	if err != nil {
		return "", fmt.Errorf("verify user: %w", err)
	}
	if !ok {
		return "", ErrUserNotFound
	}

	imageURL, err := s.Store.Store(ctx, upload.Data, upload.Filename, upload.ContentType)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	ev, err := repo.CreateEvent(ctx, s.DB, userID, imageURL)
	if err != nil {
		return "", fmt.Errorf("create analysis event: %w", err)
	}
	span.SetAttributes(attribute.String("event.id", ev.ID))

	job := domain.AnalysisJob{
		EventID:     ev.ID,
		UserID:      userID,
		ImageURL:    imageURL,
		ImageBase64: base64.StdEncoding.EncodeToString(upload.Data),
	}
	if _, err := s.Queue.Enqueue(ctx, domain.JobKindAnalyzeMeal, job); err != nil {
		// The event row is already durable; no job will ever pick it up.
		// Accepted gap: it stays pending and the submitter sees the error.
		log.Warn().
			Str("event_id", ev.ID).
			Str("user_id", userID).
			Err(err).
			Msg("event created but enqueue failed; event will remain pending")
		return "", fmt.Errorf("enqueue analysis job: %w", err)
	}

	log.Info().
		Str("event_id", ev.ID).
		Str("user_id", userID).
		Str("image_url", imageURL).
		Msg("analysis submitted")
	return ev.ID, nil
}

// Status returns the AnalysisEvent for eventID, or ErrEventNotFound.
func (s *AnalysisService) Status(ctx context.Context, eventID string) (*domain.AnalysisEvent, error) {
	tr := otel.Tracer("services/AnalysisService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(attribute.String("event.id", eventID)),
	)
	defer span.End()

	ev, err := repo.GetEvent(ctx, s.DB, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

// validate applies the upload constraints checked synchronously at
// submission time.
func (s *AnalysisService) validate(upload ImageUpload) error {
	if len(upload.Data) == 0 {
		return ErrEmptyImage
	}
	max := s.MaxImageBytes
	if max <= 0 {
		max = 5 << 20
	}
	if int64(len(upload.Data)) > max {
		return ErrImageTooLarge
	}
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return ErrUnsupportedImage
	}
	return nil
}
