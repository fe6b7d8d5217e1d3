package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/platewise/go-meal-backend/internal/domain"
)

func TestCreateEvent_StartsPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev, err := CreateEvent(ctx, db, "u1", "http://storage/img.jpg")
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID == "" {
		t.Fatalf("expected generated id")
	}
	if ev.Status != domain.StatusPending {
		t.Fatalf("status = %q; want pending", ev.Status)
	}

	got, err := GetEvent(ctx, db, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.Result != nil || got.Error != nil {
		t.Fatalf("fresh event must carry neither result nor error: %+v", got)
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetEvent(context.Background(), db, "does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkEventProcessing_ForwardOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev, _ := CreateEvent(ctx, db, "u1", "url")
	if err := MarkEventProcessing(ctx, db, ev.ID); err != nil {
		t.Fatalf("MarkEventProcessing: %v", err)
	}
	got, _ := GetEvent(ctx, db, ev.ID)
	if got.Status != domain.StatusProcessing {
		t.Fatalf("status = %q; want processing", got.Status)
	}

	// A second call must not reset anything once the event is terminal.
	if err := CompleteEvent(ctx, db, ev.ID, &domain.NutritionFacts{Name: "bowl"}); err != nil {
		t.Fatalf("CompleteEvent: %v", err)
	}
	if err := MarkEventProcessing(ctx, db, ev.ID); err != nil {
		t.Fatalf("MarkEventProcessing on terminal: %v", err)
	}
	got, _ = GetEvent(ctx, db, ev.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("terminal event was moved back to %q", got.Status)
	}
}

func TestCompleteEvent_SetsResultClearsError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev, _ := CreateEvent(ctx, db, "u1", "url")
	if err := FailEvent(ctx, db, ev.ID, "boom"); err != nil {
		t.Fatalf("FailEvent: %v", err)
	}

	facts := &domain.NutritionFacts{Calories: 450, Name: "bowl", Tips: []string{"a"}}
	if err := CompleteEvent(ctx, db, ev.ID, facts); err != nil {
		t.Fatalf("CompleteEvent: %v", err)
	}

	got, _ := GetEvent(ctx, db, ev.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %q; want completed", got.Status)
	}
	if got.Result == nil || got.Result.Calories != 450 {
		t.Fatalf("result not persisted: %+v", got.Result)
	}
	if got.Error != nil {
		t.Fatalf("error must be cleared on completion, got %q", *got.Error)
	}
}

func TestCompleteEvent_UnknownID(t *testing.T) {
	db := newTestDB(t)

	err := CompleteEvent(context.Background(), db, "nope", &domain.NutritionFacts{})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestFailEvent_SetsErrorClearsResult(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev, _ := CreateEvent(ctx, db, "u1", "url")
	if err := FailEvent(ctx, db, ev.ID, "classification failed"); err != nil {
		t.Fatalf("FailEvent: %v", err)
	}

	got, _ := GetEvent(ctx, db, ev.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %q; want failed", got.Status)
	}
	if got.Error == nil || *got.Error == "" {
		t.Fatalf("failed event must carry a non-empty error")
	}
	if got.Result != nil {
		t.Fatalf("failed event must not carry a result")
	}
}

func TestStatusTransitions_BumpUpdatedAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev, _ := CreateEvent(ctx, db, "u1", "url")
	created := ev.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	if err := MarkEventProcessing(ctx, db, ev.ID); err != nil {
		t.Fatalf("MarkEventProcessing: %v", err)
	}
	got, _ := GetEvent(ctx, db, ev.ID)
	if !got.UpdatedAt.After(created) {
		t.Fatalf("processing did not bump updated_at: %v -> %v", created, got.UpdatedAt)
	}
	processing := got.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	if err := CompleteEvent(ctx, db, ev.ID, &domain.NutritionFacts{Name: "bowl"}); err != nil {
		t.Fatalf("CompleteEvent: %v", err)
	}
	got, _ = GetEvent(ctx, db, ev.ID)
	if !got.UpdatedAt.After(processing) {
		t.Fatalf("completion did not bump updated_at: %v -> %v", processing, got.UpdatedAt)
	}

	// The failed transition bumps it too.
	ev2, _ := CreateEvent(ctx, db, "u1", "url")
	time.Sleep(5 * time.Millisecond)
	if err := FailEvent(ctx, db, ev2.ID, "boom"); err != nil {
		t.Fatalf("FailEvent: %v", err)
	}
	got2, _ := GetEvent(ctx, db, ev2.ID)
	if !got2.UpdatedAt.After(ev2.UpdatedAt) {
		t.Fatalf("failure did not bump updated_at: %v -> %v", ev2.UpdatedAt, got2.UpdatedAt)
	}
}

func TestFailEvent_NeverDowngradesCompleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev, _ := CreateEvent(ctx, db, "u1", "url")
	if err := CompleteEvent(ctx, db, ev.ID, &domain.NutritionFacts{Name: "bowl"}); err != nil {
		t.Fatalf("CompleteEvent: %v", err)
	}
	if err := FailEvent(ctx, db, ev.ID, "late redelivery failure"); err != nil {
		t.Fatalf("FailEvent: %v", err)
	}

	got, _ := GetEvent(ctx, db, ev.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("completed event was downgraded to %q", got.Status)
	}
	if got.Result == nil {
		t.Fatalf("result lost on attempted downgrade")
	}
}
