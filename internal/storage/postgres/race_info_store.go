package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// RaceInfoStore implements storage.RaceInfoStore using PostgreSQL.
type RaceInfoStore struct {
	pool *Pool
}

// NewRaceInfoStore creates a new RaceInfoStore.
func NewRaceInfoStore(pool *Pool) *RaceInfoStore {
	return &RaceInfoStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RaceInfoStore = (*RaceInfoStore)(nil)

const insertRaceInfoQuery = `
	INSERT INTO race_info (
		race_id, race_date, race_type, around, course_len,
		weather, ground_state, race_class, place
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// Insert adds a new race info row. Returns ErrDuplicateKey if race_id exists.
func (s *RaceInfoStore) Insert(ctx context.Context, info *domain.RaceInfoRow) error {
	if info == nil || info.RaceID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertRaceInfoQuery,
		info.RaceID, info.Date, info.RaceType, info.Around, info.CourseLen,
		info.Weather, info.GroundState, info.RaceClass, info.Place,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert race info: %w", err)
	}
	return nil
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *RaceInfoStore) InsertBulk(ctx context.Context, infos []*domain.RaceInfoRow) error {
	if len(infos) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, info := range infos {
		if info == nil || info.RaceID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertRaceInfoQuery,
			info.RaceID, info.Date, info.RaceType, info.Around, info.CourseLen,
			info.Weather, info.GroundState, info.RaceClass, info.Place,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert race info in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const selectRaceInfoQuery = `
	SELECT race_id, race_date, race_type, around, course_len,
		weather, ground_state, race_class, place
	FROM race_info
`

// GetByID retrieves race info by race id. Returns ErrNotFound if not exists.
func (s *RaceInfoStore) GetByID(ctx context.Context, raceID string) (*domain.RaceInfoRow, error) {
	query := selectRaceInfoQuery + ` WHERE race_id = $1`

	var info domain.RaceInfoRow
	err := s.pool.QueryRow(ctx, query, raceID).Scan(
		&info.RaceID, &info.Date, &info.RaceType, &info.Around, &info.CourseLen,
		&info.Weather, &info.GroundState, &info.RaceClass, &info.Place,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get race info by id: %w", err)
	}

	info.Date = info.Date.UTC()
	return &info, nil
}

// GetByDateRange retrieves races held within [from, to] inclusive,
// ordered by date ASC then race id ASC.
func (s *RaceInfoStore) GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.RaceInfoRow, error) {
	query := selectRaceInfoQuery + `
		WHERE race_date >= $1 AND race_date <= $2
		ORDER BY race_date ASC, race_id ASC
	`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("get race info by date range: %w", err)
	}
	defer rows.Close()

	return scanRaceInfos(rows)
}

// scanRaceInfos scans multiple rows into a slice of RaceInfoRow.
func scanRaceInfos(rows pgx.Rows) ([]*domain.RaceInfoRow, error) {
	var out []*domain.RaceInfoRow

	for rows.Next() {
		var info domain.RaceInfoRow

		err := rows.Scan(
			&info.RaceID, &info.Date, &info.RaceType, &info.Around, &info.CourseLen,
			&info.Weather, &info.GroundState, &info.RaceClass, &info.Place,
		)
		if err != nil {
			return nil, fmt.Errorf("scan race info row: %w", err)
		}

		info.Date = info.Date.UTC()
		out = append(out, &info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate race info rows: %w", err)
	}

	return out, nil
}
