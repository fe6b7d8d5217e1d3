// User HTTP handlers.
//
//   - POST /users            (register)
//   - GET  /users            (list)
//   - GET  /users/{id}/meals (paginated meal history)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewise/go-meal-backend/internal/domain"
	"github.com/platewise/go-meal-backend/internal/services"
	"github.com/platewise/go-meal-backend/internal/utils"
)

// CreateUserRequest is the JSON payload for registering a user.
type CreateUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

// Pagination carries paging metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// MealListResponse is the paginated body for a user's meal history.
type MealListResponse struct {
	Items      []domain.Meal `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// CreateUser registers a new account.
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "a valid email is required")
		return
	}

	u, err := h.users.Create(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateUser) {
			fail(c, http.StatusConflict, ErrCodeConflict, "email already registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create user")
		return
	}
	ok(c, http.StatusCreated, u)
}

// ListUsers returns all registered users.
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list users")
		return
	}
	ok(c, http.StatusOK, users)
}

// ListUserMeals returns a page of the user's recognized meals, newest
// first. Query params: page (default 1), page_size (default 20).
func (h *Handlers) ListUserMeals(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}

	items, total, err := h.users.Meals(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list meals")
		return
	}

	ok(c, http.StatusOK, MealListResponse{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: utils.TotalPages(total, pageSize),
		},
	})
}
