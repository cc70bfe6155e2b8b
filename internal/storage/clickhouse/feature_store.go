package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using ClickHouse.
//
// The feature_rows table is frozen to the default window set: the per-window
// mean columns are physical columns, not a map, so downstream SQL can address
// them directly. Persisting a row computed with a non-default window set is
// rejected rather than silently dropping aggregates.
type FeatureStore struct {
	conn *Conn
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(conn *Conn) *FeatureStore {
	return &FeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertBulk adds feature rows. Fails entire batch on duplicate (race_id, horse_id).
func (s *FeatureStore) InsertBulk(ctx context.Context, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	type key struct {
		raceID  string
		horseID string
	}
	seen := make(map[key]struct{}, len(rows))
	races := make(map[string]struct{})
	var raceIDs []string
	for _, r := range rows {
		if r == nil || r.RaceID == "" || r.HorseID == "" {
			return storage.ErrInvalidInput
		}
		for w := range r.Windows {
			if !isDefaultWindow(w) {
				return fmt.Errorf("window %s not in persisted schema: %w", w.Suffix(), storage.ErrInvalidInput)
			}
		}
		k := key{r.RaceID, r.HorseID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		if _, tracked := races[r.RaceID]; !tracked {
			races[r.RaceID] = struct{}{}
			raceIDs = append(raceIDs, r.RaceID)
		}
	}

	existing, err := s.conn.Query(ctx, `
		SELECT race_id, horse_id FROM feature_rows WHERE race_id IN (?)
	`, raceIDs)
	if err != nil {
		return fmt.Errorf("check existing feature keys: %w", err)
	}
	defer existing.Close()
	for existing.Next() {
		var raceID, horseID string
		if err := existing.Scan(&raceID, &horseID); err != nil {
			return fmt.Errorf("scan existing feature key: %w", err)
		}
		if _, clash := seen[key{raceID, horseID}]; clash {
			return storage.ErrDuplicateKey
		}
	}
	if err := existing.Err(); err != nil {
		return fmt.Errorf("iterate existing feature keys: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO feature_rows (
			race_id, horse_id, race_date, jockey_id, trainer_id,
			wakuban, umaban, sex, age, weight, weight_diff,
			tansyo_odds, popularity, impost, agari,
			race_type, around, course_len, weather, ground_state, race_class, place,
			rank_mean_w3, prize_mean_w3, rank_mean_w5, prize_mean_w5,
			rank_mean_w10, prize_mean_w10, rank_mean_wall, prize_mean_wall,
			rank, target
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		w3 := r.Windows[3]
		w5 := r.Windows[5]
		w10 := r.Windows[10]
		wall := r.Windows[domain.WindowAll]

		err = batch.Append(
			r.RaceID, r.HorseID, r.Date, r.JockeyID, r.TrainerID,
			toNullableInt64(r.Wakuban), toNullableInt64(r.Umaban), toNullableInt64(r.Sex),
			toNullableInt64(r.Age), toNullableInt64(r.Weight), toNullableInt64(r.WeightDiff),
			r.TansyoOdds, toNullableInt64(r.Popularity), r.Impost, r.Agari,
			toNullableInt64(r.RaceType), toNullableInt64(r.Around), int64(r.CourseLen),
			toNullableInt64(r.Weather), toNullableInt64(r.GroundState), toNullableInt64(r.RaceClass), toNullableInt64(r.Place),
			w3.RankMean, w3.PrizeMean, w5.RankMean, w5.PrizeMean,
			w10.RankMean, w10.PrizeMean, wall.RankMean, wall.PrizeMean,
			toNullableInt64(r.Rank), toNullableInt64(r.Target),
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

// GetByRaceID retrieves all feature rows of a race, ordered by umaban ASC.
func (s *FeatureStore) GetByRaceID(ctx context.Context, raceID string) ([]*domain.FeatureRow, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT race_id, horse_id, race_date, jockey_id, trainer_id,
			wakuban, umaban, sex, age, weight, weight_diff,
			tansyo_odds, popularity, impost, agari,
			race_type, around, course_len, weather, ground_state, race_class, place,
			rank_mean_w3, prize_mean_w3, rank_mean_w5, prize_mean_w5,
			rank_mean_w10, prize_mean_w10, rank_mean_wall, prize_mean_wall,
			rank, target
		FROM feature_rows
		WHERE race_id = ?
		ORDER BY umaban ASC NULLS LAST
	`, raceID)
	if err != nil {
		return nil, fmt.Errorf("query features by race id: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// scanFeatureRows scans query rows into FeatureRow values.
func scanFeatureRows(rows driver.Rows) ([]*domain.FeatureRow, error) {
	var out []*domain.FeatureRow

	for rows.Next() {
		var r domain.FeatureRow
		var wakuban, umaban, sex, age, weight, weightDiff, popularity *int64
		var raceType, around, weather, groundState, raceClass, place *int64
		var courseLen int64
		var rank, target *int64
		means := make([]*float64, 8)

		err := rows.Scan(
			&r.RaceID, &r.HorseID, &r.Date, &r.JockeyID, &r.TrainerID,
			&wakuban, &umaban, &sex, &age, &weight, &weightDiff,
			&r.TansyoOdds, &popularity, &r.Impost, &r.Agari,
			&raceType, &around, &courseLen, &weather, &groundState, &raceClass, &place,
			&means[0], &means[1], &means[2], &means[3],
			&means[4], &means[5], &means[6], &means[7],
			&rank, &target,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}

		r.Date = r.Date.UTC()
		r.Wakuban = fromNullableInt64(wakuban)
		r.Umaban = fromNullableInt64(umaban)
		r.Sex = fromNullableInt64(sex)
		r.Age = fromNullableInt64(age)
		r.Weight = fromNullableInt64(weight)
		r.WeightDiff = fromNullableInt64(weightDiff)
		r.Popularity = fromNullableInt64(popularity)
		r.RaceType = fromNullableInt64(raceType)
		r.Around = fromNullableInt64(around)
		r.CourseLen = int(courseLen)
		r.Weather = fromNullableInt64(weather)
		r.GroundState = fromNullableInt64(groundState)
		r.RaceClass = fromNullableInt64(raceClass)
		r.Place = fromNullableInt64(place)
		r.Rank = fromNullableInt64(rank)
		r.Target = fromNullableInt64(target)
		r.Windows = map[domain.Window]domain.WindowMeans{
			3:                {RankMean: means[0], PrizeMean: means[1]},
			5:                {RankMean: means[2], PrizeMean: means[3]},
			10:               {RankMean: means[4], PrizeMean: means[5]},
			domain.WindowAll: {RankMean: means[6], PrizeMean: means[7]},
		}

		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}

	return out, nil
}

// isDefaultWindow reports whether w has a column pair in feature_rows.
func isDefaultWindow(w domain.Window) bool {
	for _, d := range domain.DefaultWindows {
		if w == d {
			return true
		}
	}
	return false
}
