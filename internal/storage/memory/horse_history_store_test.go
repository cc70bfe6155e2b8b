package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

func TestHorseHistoryStore_InsertBulkAndGet(t *testing.T) {
	store := NewHorseHistoryStore()
	ctx := context.Background()

	rows := []*domain.HorseHistoryRow{
		{HorseID: "h1", Seq: 1, Date: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), Prize: 500},
		{HorseID: "h1", Seq: 0, Date: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), Prize: 1000},
		{HorseID: "h2", Seq: 0, Date: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)},
	}

	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByHorseID(ctx, "h1")
	if err != nil {
		t.Fatalf("GetByHorseID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(got))
	}
	// Seq ASC: most recent start first, as extracted.
	if got[0].Seq != 0 || got[0].Prize != 1000 {
		t.Errorf("Row 0: seq=%d prize=%v", got[0].Seq, got[0].Prize)
	}
}

func TestHorseHistoryStore_DuplicateKey(t *testing.T) {
	store := NewHorseHistoryStore()
	ctx := context.Background()

	row := &domain.HorseHistoryRow{HorseID: "h1", Seq: 0}
	if err := store.InsertBulk(ctx, []*domain.HorseHistoryRow{row}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.HorseHistoryRow{row})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestHorseHistoryStore_GetByHorseIDs(t *testing.T) {
	store := NewHorseHistoryStore()
	ctx := context.Background()

	rows := []*domain.HorseHistoryRow{
		{HorseID: "h1", Seq: 0},
		{HorseID: "h2", Seq: 0},
		{HorseID: "h2", Seq: 1},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	grouped, err := store.GetByHorseIDs(ctx, []string{"h1", "h2", "unraced"})
	if err != nil {
		t.Fatalf("GetByHorseIDs failed: %v", err)
	}
	if len(grouped["h1"]) != 1 || len(grouped["h2"]) != 2 {
		t.Errorf("Group sizes: h1=%d h2=%d", len(grouped["h1"]), len(grouped["h2"]))
	}
	if _, present := grouped["unraced"]; present {
		t.Error("Horse with no rows must be absent from the map")
	}
}
