// Package services – UserService
//
// User accounts are an external collaborator from the pipeline's point
// of view, but the backend still needs a minimal directory: create an
// account, list accounts, and list the meals recognized for one
// account.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/platewise/go-meal-backend/internal/domain"
	"github.com/platewise/go-meal-backend/internal/repo"
)

// UserService implements the user-directory use-cases.
type UserService struct {
	DB *gorm.DB
}

// Create registers a new user. A blank email is rejected as a
// validation error by the handler layer; an already-registered email
// yields ErrDuplicateUser.
func (s *UserService) Create(ctx context.Context, email, name string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	u, err := repo.CreateUser(ctx, s.DB, email, strings.TrimSpace(name))
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return u, nil
}

// List returns all registered users.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return repo.ListUsers(ctx, s.DB)
}

// Meals returns a page of meals recognized for userID together with
// the total count. Unknown users yield ErrUserNotFound.
func (s *UserService) Meals(ctx context.Context, userID string, page, pageSize int) ([]domain.Meal, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	ok, err := repo.UserExists(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrUserNotFound
	}

	total, err := repo.CountMealsByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Meal{}, 0, nil
	}

	items, err := repo.ListMealsByUserPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// isDuplicate maps driver-specific unique-violation errors to a stable
// check, alongside GORM's own sentinel.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
