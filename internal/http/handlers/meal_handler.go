// Meal analysis HTTP handlers.
//
// This file exposes the asynchronous analysis surface:
//   - POST /meals/analyze        (submit an image, returns the event id)
//   - GET  /meals/status/{id}    (poll the event lifecycle)
//
// Submission always answers before any analysis work happens; clients
// poll the status endpoint (or list meals) for the outcome.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewise/go-meal-backend/internal/domain"
	"github.com/platewise/go-meal-backend/internal/queue"
	"github.com/platewise/go-meal-backend/internal/services"
)

// AnalysisAPI is the slice of the analysis service the handlers need.
type AnalysisAPI interface {
	Submit(ctx context.Context, userID string, upload services.ImageUpload) (string, error)
	Status(ctx context.Context, eventID string) (*domain.AnalysisEvent, error)
}

// UserAPI is the slice of the user service the handlers need.
type UserAPI interface {
	Create(ctx context.Context, email, name string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Meals(ctx context.Context, userID string, page, pageSize int) ([]domain.Meal, int64, error)
}

// Handlers groups the HTTP endpoints for meals and users.
type Handlers struct {
	analysis AnalysisAPI
	users    UserAPI
}

// New constructs a Handlers bound to the given services.
func New(analysis AnalysisAPI, users UserAPI) *Handlers {
	return &Handlers{analysis: analysis, users: users}
}

// SubmitAnalysisResponse is the 201 body for a submitted analysis.
type SubmitAnalysisResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// AnalyzeMeal accepts a multipart upload with an "image" file part and
// a "user_id" field (X-User-ID header is an accepted alternative) and
// returns 201 with the pending event id.
func (h *Handlers) AnalyzeMeal(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		userID = c.GetHeader("X-User-ID")
	}
	if userID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read image upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read image upload")
		return
	}

	eventID, err := h.analysis.Submit(c.Request.Context(), userID, services.ImageUpload{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		case errors.Is(err, services.ErrEmptyImage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image upload is empty")
		case errors.Is(err, services.ErrImageTooLarge):
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "image exceeds the size limit")
		case errors.Is(err, services.ErrUnsupportedImage):
			fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupported, "only image uploads are accepted")
		case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
			fail(c, http.StatusServiceUnavailable, ErrCodeOverloaded, "analysis backlog is full, retry shortly")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, "could not submit analysis")
		}
		return
	}

	ok(c, http.StatusCreated, SubmitAnalysisResponse{
		EventID: eventID,
		Status:  string(domain.StatusPending),
	})
}

// AnalysisStatus returns the AnalysisEvent for the id in the path.
// Completed events carry the nutrition result; failed ones the error
// message.
func (h *Handlers) AnalysisStatus(c *gin.Context) {
	ev, err := h.analysis.Status(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		if errors.Is(err, services.ErrEventNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "analysis event not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load analysis event")
		return
	}
	ok(c, http.StatusOK, ev)
}
