package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

func TestRaceInfoStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRaceInfoStore(pool)

	info := &domain.RaceInfoRow{
		RaceID:      "202305021211",
		Date:        time.Date(2023, 5, 14, 0, 0, 0, 0, time.UTC),
		RaceType:    ptr(1),
		Around:      ptr(0),
		CourseLen:   1600,
		Weather:     ptr(0),
		GroundState: ptr(0),
		RaceClass:   ptr(6),
		Place:       ptr(0),
	}
	require.NoError(t, store.Insert(ctx, info))

	got, err := store.GetByID(ctx, "202305021211")
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(info.Date), "date mismatch: %v", got.Date)
	assert.Equal(t, 1600, got.CourseLen)
	require.NotNil(t, got.RaceClass)
	assert.Equal(t, 6, *got.RaceClass)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRaceInfoStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRaceInfoStore(pool)

	info := &domain.RaceInfoRow{RaceID: "r1", Date: time.Date(2023, 5, 14, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Insert(ctx, info))

	err := store.Insert(ctx, info)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRaceInfoStore_GetByDateRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRaceInfoStore(pool)

	infos := []*domain.RaceInfoRow{
		{RaceID: "r3", Date: time.Date(2023, 5, 21, 0, 0, 0, 0, time.UTC)},
		{RaceID: "r2", Date: time.Date(2023, 5, 14, 0, 0, 0, 0, time.UTC)},
		{RaceID: "r1", Date: time.Date(2023, 5, 14, 0, 0, 0, 0, time.UTC)},
		{RaceID: "r0", Date: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, store.InsertBulk(ctx, infos))

	got, err := store.GetByDateRange(ctx,
		time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "r1", got[0].RaceID)
	assert.Equal(t, "r2", got[1].RaceID)
	assert.Equal(t, "r3", got[2].RaceID)
}
