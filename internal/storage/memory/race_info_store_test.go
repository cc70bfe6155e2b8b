package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRaceInfoStore_InsertAndGet(t *testing.T) {
	store := NewRaceInfoStore()
	ctx := context.Background()

	info := &domain.RaceInfoRow{RaceID: "r1", Date: day(2023, 5, 14), CourseLen: 1600}
	if err := store.Insert(ctx, info); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.CourseLen != 1600 {
		t.Errorf("CourseLen mismatch: got %d", got.CourseLen)
	}

	_, err = store.GetByID(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRaceInfoStore_DuplicateKey(t *testing.T) {
	store := NewRaceInfoStore()
	ctx := context.Background()

	info := &domain.RaceInfoRow{RaceID: "r1", Date: day(2023, 5, 14)}
	if err := store.Insert(ctx, info); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, info)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRaceInfoStore_GetByDateRange(t *testing.T) {
	store := NewRaceInfoStore()
	ctx := context.Background()

	infos := []*domain.RaceInfoRow{
		{RaceID: "r3", Date: day(2023, 5, 21)},
		{RaceID: "r1", Date: day(2023, 5, 14)},
		{RaceID: "r2", Date: day(2023, 5, 14)},
		{RaceID: "r0", Date: day(2023, 4, 1)},
	}
	if err := store.InsertBulk(ctx, infos); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByDateRange(ctx, day(2023, 5, 1), day(2023, 5, 31))
	if err != nil {
		t.Fatalf("GetByDateRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 races, got %d", len(got))
	}
	// Date ASC, race id breaks same-day ties.
	if got[0].RaceID != "r1" || got[1].RaceID != "r2" || got[2].RaceID != "r3" {
		t.Errorf("Order mismatch: %s,%s,%s", got[0].RaceID, got[1].RaceID, got[2].RaceID)
	}

	// Inclusive bounds.
	got, err = store.GetByDateRange(ctx, day(2023, 5, 14), day(2023, 5, 14))
	if err != nil {
		t.Fatalf("GetByDateRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 races on the boundary day, got %d", len(got))
	}
}
