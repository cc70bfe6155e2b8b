package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// HorseHistoryStore implements storage.HorseHistoryStore using ClickHouse.
type HorseHistoryStore struct {
	conn *Conn
}

// NewHorseHistoryStore creates a new HorseHistoryStore.
func NewHorseHistoryStore(conn *Conn) *HorseHistoryStore {
	return &HorseHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HorseHistoryStore = (*HorseHistoryStore)(nil)

// InsertBulk adds career rows. Fails entire batch on any duplicate
// (horse_id, seq). MergeTree does not enforce uniqueness, so existing keys
// are checked explicitly before the batch is sent.
func (s *HorseHistoryStore) InsertBulk(ctx context.Context, rows []*domain.HorseHistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	type key struct {
		horseID string
		seq     int
	}
	seen := make(map[key]struct{}, len(rows))
	horses := make(map[string]struct{})
	var horseIDs []string
	for _, r := range rows {
		if r == nil || r.HorseID == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.HorseID, r.Seq}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		if _, tracked := horses[r.HorseID]; !tracked {
			horses[r.HorseID] = struct{}{}
			horseIDs = append(horseIDs, r.HorseID)
		}
	}

	existing, err := s.conn.Query(ctx, `
		SELECT horse_id, seq FROM horse_history WHERE horse_id IN (?)
	`, horseIDs)
	if err != nil {
		return fmt.Errorf("check existing history keys: %w", err)
	}
	defer existing.Close()
	for existing.Next() {
		var horseID string
		var seq int64
		if err := existing.Scan(&horseID, &seq); err != nil {
			return fmt.Errorf("scan existing history key: %w", err)
		}
		if _, clash := seen[key{horseID, int(seq)}]; clash {
			return storage.ErrDuplicateKey
		}
	}
	if err := existing.Err(); err != nil {
		return fmt.Errorf("iterate existing history keys: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO horse_history (
			horse_id, seq, race_date, rank, prize, rank_diff,
			weather, race_type, course_len, ground_state, agari, race_class, n_horses
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.HorseID, int64(r.Seq), r.Date, toNullableInt64(r.Rank), r.Prize, r.RankDiff,
			toNullableInt64(r.Weather), toNullableInt64(r.RaceType), toNullableInt64(r.CourseLen),
			toNullableInt64(r.GroundState), r.Agari, toNullableInt64(r.RaceClass), toNullableInt64(r.NHorses),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

const selectHorseHistoryQuery = `
	SELECT horse_id, seq, race_date, rank, prize, rank_diff,
		weather, race_type, course_len, ground_state, agari, race_class, n_horses
	FROM horse_history
`

// GetByHorseID retrieves all career rows of a horse, ordered by seq ASC.
func (s *HorseHistoryStore) GetByHorseID(ctx context.Context, horseID string) ([]*domain.HorseHistoryRow, error) {
	rows, err := s.conn.Query(ctx, selectHorseHistoryQuery+`
		WHERE horse_id = ?
		ORDER BY seq ASC
	`, horseID)
	if err != nil {
		return nil, fmt.Errorf("query history by horse id: %w", err)
	}
	defer rows.Close()

	return scanHorseHistory(rows)
}

// GetByHorseIDs retrieves career rows for many horses, grouped by horse id.
func (s *HorseHistoryStore) GetByHorseIDs(ctx context.Context, horseIDs []string) (map[string][]*domain.HorseHistoryRow, error) {
	if len(horseIDs) == 0 {
		return map[string][]*domain.HorseHistoryRow{}, nil
	}

	rows, err := s.conn.Query(ctx, selectHorseHistoryQuery+`
		WHERE horse_id IN (?)
		ORDER BY horse_id ASC, seq ASC
	`, horseIDs)
	if err != nil {
		return nil, fmt.Errorf("query history by horse ids: %w", err)
	}
	defer rows.Close()

	flat, err := scanHorseHistory(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]*domain.HorseHistoryRow)
	for _, r := range flat {
		grouped[r.HorseID] = append(grouped[r.HorseID], r)
	}
	return grouped, nil
}

// scanHorseHistory scans query rows into HorseHistoryRow values.
func scanHorseHistory(rows driver.Rows) ([]*domain.HorseHistoryRow, error) {
	var out []*domain.HorseHistoryRow

	for rows.Next() {
		var r domain.HorseHistoryRow
		var seq int64
		var rank, weather, raceType, courseLen, groundState, raceClass, nHorses *int64

		err := rows.Scan(
			&r.HorseID, &seq, &r.Date, &rank, &r.Prize, &r.RankDiff,
			&weather, &raceType, &courseLen, &groundState, &r.Agari, &raceClass, &nHorses,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		r.Seq = int(seq)
		r.Date = r.Date.UTC()
		r.Rank = fromNullableInt64(rank)
		r.Weather = fromNullableInt64(weather)
		r.RaceType = fromNullableInt64(raceType)
		r.CourseLen = fromNullableInt64(courseLen)
		r.GroundState = fromNullableInt64(groundState)
		r.RaceClass = fromNullableInt64(raceClass)
		r.NHorses = fromNullableInt64(nHorses)

		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return out, nil
}
