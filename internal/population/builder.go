// Package population builds the set of (race, horse, date) entries that
// feature assembly runs over. The same builder feeds both the historical
// (training) and live (prediction) paths so their membership rules cannot
// drift apart.
package population

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/storage"
)

// ErrMissingRaceInfo means the race a population is being built for has no
// stored race info row. Without it there is no reference date, and every
// aggregate would be meaningless.
var ErrMissingRaceInfo = errors.New("race info not found for population")

// Builder derives populations from stored race data.
type Builder struct {
	raceInfo storage.RaceInfoStore
	results  storage.RaceResultStore
}

// NewBuilder creates a Builder over the given stores.
func NewBuilder(raceInfo storage.RaceInfoStore, results storage.RaceResultStore) *Builder {
	return &Builder{raceInfo: raceInfo, results: results}
}

// Historical returns one entry per finished runner across all races held
// within [from, to] inclusive. Non-finishers are excluded: a horse that never
// completed the race has no rank and therefore no training label.
//
// Entries come back ordered by date, then race id, then umaban.
func (b *Builder) Historical(ctx context.Context, from, to time.Time) ([]domain.PopulationEntry, error) {
	infos, err := b.raceInfo.GetByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load races in range: %w", err)
	}
	if len(infos) == 0 {
		return nil, nil
	}

	raceIDs := make([]string, 0, len(infos))
	for _, info := range infos {
		raceIDs = append(raceIDs, info.RaceID)
	}

	grouped, err := b.results.GetByRaceIDs(ctx, raceIDs)
	if err != nil {
		return nil, fmt.Errorf("load results for races: %w", err)
	}

	var entries []domain.PopulationEntry
	for _, info := range infos {
		for _, r := range grouped[info.RaceID] {
			if !r.Finished() {
				continue
			}
			entries = append(entries, domain.PopulationEntry{
				RaceID:  r.RaceID,
				HorseID: r.HorseID,
				Date:    info.Date,
			})
		}
	}

	// GetByDateRange and GetByRaceID are already ordered; the sort makes the
	// contract independent of store iteration details.
	order := make(map[string]int, len(infos))
	for i, info := range infos {
		order[info.RaceID] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return order[entries[i].RaceID] < order[entries[j].RaceID]
	})

	return entries, nil
}

// Live returns one entry per card row of an upcoming race, every runner
// included: there are no results to filter on. The reference date comes from
// the stored race info; a race without one returns ErrMissingRaceInfo.
func (b *Builder) Live(ctx context.Context, raceID string, card []*domain.RaceResultRow) ([]domain.PopulationEntry, error) {
	info, err := b.raceInfo.GetByID(ctx, raceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("race %s: %w", raceID, ErrMissingRaceInfo)
		}
		return nil, fmt.Errorf("load race info: %w", err)
	}

	entries := make([]domain.PopulationEntry, 0, len(card))
	for _, r := range card {
		entries = append(entries, domain.PopulationEntry{
			RaceID:  raceID,
			HorseID: r.HorseID,
			Date:    info.Date,
		})
	}
	return entries, nil
}
