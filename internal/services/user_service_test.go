package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/platewise/go-meal-backend/internal/domain"
	"github.com/platewise/go-meal-backend/internal/repo"
)

func TestUserServiceCreate(t *testing.T) {
	db := newTestDB(t)
	svc := &UserService{DB: db}

	u, err := svc.Create(context.Background(), "  Maya@Example.COM ", " Maya ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "maya@example.com" {
		t.Fatalf("email = %q, want normalized lowercase", u.Email)
	}
	if u.Name != "Maya" {
		t.Fatalf("name = %q, want trimmed", u.Name)
	}
	if u.ID == "" {
		t.Fatal("empty user id")
	}
}

func TestUserServiceCreateDuplicate(t *testing.T) {
	db := newTestDB(t)
	svc := &UserService{DB: db}

	if _, err := svc.Create(context.Background(), "dup@example.com", "First"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "DUP@example.com", "Second"); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("err = %v, want ErrDuplicateUser", err)
	}
}

func TestUserServiceList(t *testing.T) {
	db := newTestDB(t)
	svc := &UserService{DB: db}

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), fmt.Sprintf("u%d@example.com", i), ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	users, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("users = %d, want 3", len(users))
	}
}

func TestUserServiceMeals(t *testing.T) {
	db := newTestDB(t)
	svc := &UserService{DB: db}
	userID := seedUser(t, db)

	facts := &domain.NutritionFacts{Calories: 300, Name: "Oatmeal"}
	for i := 0; i < 5; i++ {
		ev, err := repo.CreateEvent(context.Background(), db, userID, "http://test-storage/x.jpg")
		if err != nil {
			t.Fatalf("create event %d: %v", i, err)
		}
		if _, err := repo.CreateMeal(db, userID, ev.ID, ev.ImageURL, facts); err != nil {
			t.Fatalf("create meal %d: %v", i, err)
		}
	}

	items, total, err := svc.Meals(context.Background(), userID, 1, 3)
	if err != nil {
		t.Fatalf("meals: %v", err)
	}
	if total != 5 || len(items) != 3 {
		t.Fatalf("total = %d items = %d, want 5/3", total, len(items))
	}

	items, total, err = svc.Meals(context.Background(), userID, 2, 3)
	if err != nil {
		t.Fatalf("meals page 2: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Fatalf("total = %d items = %d, want 5/2", total, len(items))
	}
}

func TestUserServiceMealsDefaultsAndEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := &UserService{DB: db}
	userID := seedUser(t, db)

	items, total, err := svc.Meals(context.Background(), userID, 0, -1)
	if err != nil {
		t.Fatalf("meals: %v", err)
	}
	if total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("total = %d items = %v, want empty non-nil slice", total, items)
	}
}

func TestUserServiceMealsUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := &UserService{DB: db}

	if _, _, err := svc.Meals(context.Background(), "ghost", 1, 10); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
