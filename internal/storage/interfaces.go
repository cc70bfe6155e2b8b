package storage

import (
	"context"
	"time"

	"keiba-feature-lab/internal/domain"
)

// RaceResultStore provides access to race_results storage.
type RaceResultStore interface {
	// InsertBulk adds the result rows of one or more races atomically.
	// Fails the entire batch on any duplicate (race_id, horse_id).
	InsertBulk(ctx context.Context, rows []*domain.RaceResultRow) error

	// GetByRaceID retrieves all result rows of a race, ordered by umaban ASC.
	GetByRaceID(ctx context.Context, raceID string) ([]*domain.RaceResultRow, error)

	// GetByRaceIDs retrieves result rows for many races, grouped by race id.
	GetByRaceIDs(ctx context.Context, raceIDs []string) (map[string][]*domain.RaceResultRow, error)
}

// RaceInfoStore provides access to race_info storage.
type RaceInfoStore interface {
	// Insert adds a new race info row. Returns ErrDuplicateKey if race_id exists.
	Insert(ctx context.Context, info *domain.RaceInfoRow) error

	// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, infos []*domain.RaceInfoRow) error

	// GetByID retrieves race info by race id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, raceID string) (*domain.RaceInfoRow, error)

	// GetByDateRange retrieves races held within [from, to] (inclusive),
	// ordered by date ASC then race id ASC.
	GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.RaceInfoRow, error)
}

// HorseHistoryStore provides access to horse_history storage.
type HorseHistoryStore interface {
	// InsertBulk adds career rows for one or more horses atomically.
	// Fails the entire batch on any duplicate (horse_id, seq).
	InsertBulk(ctx context.Context, rows []*domain.HorseHistoryRow) error

	// GetByHorseID retrieves all career rows of a horse, ordered by seq ASC
	// (most recent start first, as the source lists them).
	GetByHorseID(ctx context.Context, horseID string) ([]*domain.HorseHistoryRow, error)

	// GetByHorseIDs retrieves career rows for many horses, grouped by horse id.
	GetByHorseIDs(ctx context.Context, horseIDs []string) (map[string][]*domain.HorseHistoryRow, error)
}

// FeatureStore provides access to assembled feature rows.
type FeatureStore interface {
	// InsertBulk adds feature rows. Fails entire batch on duplicate (race_id, horse_id).
	InsertBulk(ctx context.Context, rows []*domain.FeatureRow) error

	// GetByRaceID retrieves all feature rows of a race, ordered by umaban ASC.
	GetByRaceID(ctx context.Context, raceID string) ([]*domain.FeatureRow, error)
}
