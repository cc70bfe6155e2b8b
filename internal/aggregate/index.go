// Package aggregate computes leakage-safe rolling aggregates over horse
// career histories. Eligibility is strictly date-based: a history row is
// usable for a reference date only when its race day is strictly earlier,
// so a race never feeds its own features.
package aggregate

import (
	"sort"
	"time"

	"keiba-feature-lab/internal/domain"
)

// HistoryIndex holds career rows grouped per horse, ordered most recent
// first, ready for repeated eligibility cuts. Build once per pipeline run;
// reads are safe from many goroutines.
type HistoryIndex struct {
	byHorse map[string][]*domain.HorseHistoryRow
}

// NewHistoryIndex builds an index from career rows.
//
// Non-finisher rows (nil rank) are dropped unless keepNonFinishers is set;
// a start with no recorded rank contributes nothing to a rank mean and, in
// the default policy, should not dilute prize means either.
//
// Within a horse, rows are stable-sorted by date descending. The incoming
// per-horse order is the source document order (seq ascending, most recent
// first), so same-date starts keep that order deterministically.
func NewHistoryIndex(rows []*domain.HorseHistoryRow, keepNonFinishers bool) *HistoryIndex {
	byHorse := make(map[string][]*domain.HorseHistoryRow)
	for _, r := range rows {
		if r == nil {
			continue
		}
		if r.Rank == nil && !keepNonFinishers {
			continue
		}
		byHorse[r.HorseID] = append(byHorse[r.HorseID], r)
	}

	for _, hr := range byHorse {
		sort.SliceStable(hr, func(i, j int) bool {
			return hr[i].Date.After(hr[j].Date)
		})
	}

	return &HistoryIndex{byHorse: byHorse}
}

// Eligible returns the horse's rows strictly before the reference date,
// most recent first. Same-day starts are excluded: on race day the outcome
// of any race that day is not yet knowable.
//
// The returned slice aliases the index; callers must not mutate it.
func (ix *HistoryIndex) Eligible(horseID string, ref time.Time) []*domain.HorseHistoryRow {
	rows := ix.byHorse[horseID]
	// Rows are date-descending, so eligibility is a suffix.
	i := sort.Search(len(rows), func(i int) bool {
		return rows[i].Date.Before(ref)
	})
	return rows[i:]
}

// Horses returns the number of horses with at least one indexed row.
func (ix *HistoryIndex) Horses() int {
	return len(ix.byHorse)
}
