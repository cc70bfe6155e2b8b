package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// RaceResultStore implements storage.RaceResultStore using PostgreSQL.
type RaceResultStore struct {
	pool *Pool
}

// NewRaceResultStore creates a new RaceResultStore.
func NewRaceResultStore(pool *Pool) *RaceResultStore {
	return &RaceResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RaceResultStore = (*RaceResultStore)(nil)

const insertRaceResultQuery = `
	INSERT INTO race_results (
		race_id, horse_id, jockey_id, trainer_id, rank, wakuban, umaban,
		sex, age, weight, weight_diff, tansyo_odds, popularity, impost, agari
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

// InsertBulk adds result rows atomically. Fails entire batch on any duplicate.
func (s *RaceResultStore) InsertBulk(ctx context.Context, rows []*domain.RaceResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		if r == nil || r.RaceID == "" || r.HorseID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertRaceResultQuery,
			r.RaceID, r.HorseID, r.JockeyID, r.TrainerID, r.Rank, r.Wakuban, r.Umaban,
			r.Sex, r.Age, r.Weight, r.WeightDiff, r.TansyoOdds, r.Popularity, r.Impost, r.Agari,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert race result: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRaceID retrieves all result rows of a race, ordered by umaban ASC.
func (s *RaceResultStore) GetByRaceID(ctx context.Context, raceID string) ([]*domain.RaceResultRow, error) {
	query := selectRaceResultQuery + `
		WHERE race_id = $1
		ORDER BY umaban ASC
	`

	rows, err := s.pool.Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("get results by race id: %w", err)
	}
	defer rows.Close()

	return scanRaceResults(rows)
}

// GetByRaceIDs retrieves result rows for many races, grouped by race id.
func (s *RaceResultStore) GetByRaceIDs(ctx context.Context, raceIDs []string) (map[string][]*domain.RaceResultRow, error) {
	if len(raceIDs) == 0 {
		return map[string][]*domain.RaceResultRow{}, nil
	}

	query := selectRaceResultQuery + `
		WHERE race_id = ANY($1)
		ORDER BY race_id ASC, umaban ASC
	`

	rows, err := s.pool.Query(ctx, query, raceIDs)
	if err != nil {
		return nil, fmt.Errorf("get results by race ids: %w", err)
	}
	defer rows.Close()

	flat, err := scanRaceResults(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]*domain.RaceResultRow)
	for _, r := range flat {
		grouped[r.RaceID] = append(grouped[r.RaceID], r)
	}
	return grouped, nil
}

const selectRaceResultQuery = `
	SELECT race_id, horse_id, jockey_id, trainer_id, rank, wakuban, umaban,
		sex, age, weight, weight_diff, tansyo_odds, popularity, impost, agari
	FROM race_results
`

// scanRaceResults scans multiple rows into a slice of RaceResultRow.
func scanRaceResults(rows pgx.Rows) ([]*domain.RaceResultRow, error) {
	var out []*domain.RaceResultRow

	for rows.Next() {
		var r domain.RaceResultRow

		err := rows.Scan(
			&r.RaceID, &r.HorseID, &r.JockeyID, &r.TrainerID, &r.Rank, &r.Wakuban, &r.Umaban,
			&r.Sex, &r.Age, &r.Weight, &r.WeightDiff, &r.TansyoOdds, &r.Popularity, &r.Impost, &r.Agari,
		)
		if err != nil {
			return nil, fmt.Errorf("scan race result row: %w", err)
		}

		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate race result rows: %w", err)
	}

	return out, nil
}
