package assemble

import (
	"fmt"
	"log"

	"keiba-feature-lab/internal/aggregate"
	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/observability"
)

// Assembler builds feature rows from pre-loaded inputs. It performs no I/O;
// the pipeline loads stores and hands the maps over.
type Assembler struct {
	engine  *aggregate.Engine
	metrics *observability.Metrics
}

// New creates an Assembler around an aggregate engine.
func New(engine *aggregate.Engine, metrics *observability.Metrics) *Assembler {
	return &Assembler{engine: engine, metrics: metrics}
}

// Assemble joins each population entry with its result (or card) row, its
// race context and its per-window aggregates, in entry order.
//
// Join rules differ by mode exactly once, at the result-row join:
//   - historical: an entry without a result row was scratched after the
//     population was built; it is dropped with a warning, never emitted with
//     fabricated attributes.
//   - live: an entry without a card row keeps null race-day attributes; the
//     runner is still in the race and the model must still score it.
//
// A missing race info row fails the whole assembly in either mode: without
// context columns the table would be structurally incomplete.
func (a *Assembler) Assemble(
	mode Mode,
	entries []domain.PopulationEntry,
	results map[domain.RaceHorseKey]*domain.RaceResultRow,
	infos map[string]*domain.RaceInfoRow,
) ([]*domain.FeatureRow, error) {
	rows := make([]*domain.FeatureRow, 0, len(entries))

	for _, entry := range entries {
		info, ok := infos[entry.RaceID]
		if !ok {
			return nil, fmt.Errorf("assemble %s: race %s has no race info", mode, entry.RaceID)
		}

		result, ok := results[entry.Key()]
		if !ok && mode == ModeHistorical {
			log.Printf("dropping scratched entry: race=%s horse=%s", entry.RaceID, entry.HorseID)
			if a.metrics != nil {
				a.metrics.RecordScratched()
			}
			continue
		}

		row := &domain.FeatureRow{
			RaceID:  entry.RaceID,
			HorseID: entry.HorseID,
			Date:    entry.Date,

			RaceType:    info.RaceType,
			Around:      info.Around,
			CourseLen:   info.CourseLen,
			Weather:     info.Weather,
			GroundState: info.GroundState,
			RaceClass:   info.RaceClass,
			Place:       info.Place,

			Windows: a.engine.Compute(entry),
		}

		if result != nil {
			row.JockeyID = result.JockeyID
			row.TrainerID = result.TrainerID
			row.Wakuban = intPtr(result.Wakuban)
			row.Umaban = intPtr(result.Umaban)
			row.Sex = result.Sex
			row.Age = intPtr(result.Age)
			row.Weight = result.Weight
			row.WeightDiff = result.WeightDiff
			row.TansyoOdds = result.TansyoOdds
			row.Popularity = result.Popularity
			row.Impost = floatPtr(result.Impost)
			row.Agari = result.Agari
		}

		if mode == ModeHistorical {
			row.Rank = result.Rank
			target := 0
			if result.Won() {
				target = 1
			}
			row.Target = &target
		}

		rows = append(rows, row)
	}

	if a.metrics != nil {
		a.metrics.RecordFeatureRows(string(mode), len(rows))
	}
	return rows, nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
