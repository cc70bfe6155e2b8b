package aggregate

import (
	"math/rand"
	"testing"
	"time"

	"keiba-feature-lab/internal/domain"
)

func intp(v int) *int { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func hist(horse string, seq int, date time.Time, rank *int, prize float64) *domain.HorseHistoryRow {
	return &domain.HorseHistoryRow{HorseID: horse, Seq: seq, Date: date, Rank: rank, Prize: prize}
}

func entry(horse string, date time.Time) domain.PopulationEntry {
	return domain.PopulationEntry{RaceID: "r", HorseID: horse, Date: date}
}

func TestCompute_WindowMeans(t *testing.T) {
	rows := []*domain.HorseHistoryRow{
		hist("h1", 0, day(2023, 4, 2), intp(2), 500),
		hist("h1", 1, day(2023, 3, 5), intp(4), 0),
		hist("h1", 2, day(2023, 2, 1), intp(1), 1100),
	}
	ix := NewHistoryIndex(rows, false)
	e := NewEngine(ix, []domain.Window{2, 5, domain.WindowAll})

	got := e.Compute(entry("h1", day(2023, 5, 14)))

	// Window 2: the two most recent starts.
	w2 := got[2]
	if w2.RankMean == nil || *w2.RankMean != 3.0 {
		t.Errorf("w2 rank mean: expected 3.0, got %v", w2.RankMean)
	}
	if w2.PrizeMean == nil || *w2.PrizeMean != 250.0 {
		t.Errorf("w2 prize mean: expected 250.0, got %v", w2.PrizeMean)
	}

	// Window 5 exceeds the history: it covers what exists, never pads.
	w5 := got[5]
	if w5.RankMean == nil || *w5.RankMean != 7.0/3.0 {
		t.Errorf("w5 rank mean: expected %v, got %v", 7.0/3.0, w5.RankMean)
	}

	// The unbounded window equals w5 here.
	wall := got[domain.WindowAll]
	if wall.RankMean == nil || *wall.RankMean != *w5.RankMean {
		t.Errorf("wall rank mean: expected %v, got %v", *w5.RankMean, wall.RankMean)
	}
	if wall.PrizeMean == nil || *wall.PrizeMean != 1600.0/3.0 {
		t.Errorf("wall prize mean: expected %v, got %v", 1600.0/3.0, wall.PrizeMean)
	}
}

func TestCompute_NoHistoryYieldsNilMeans(t *testing.T) {
	ix := NewHistoryIndex(nil, false)
	e := NewEngine(ix, domain.DefaultWindows)

	got := e.Compute(entry("unraced", day(2023, 5, 14)))

	if len(got) != len(domain.DefaultWindows) {
		t.Fatalf("Expected %d windows, got %d", len(domain.DefaultWindows), len(got))
	}
	for w, m := range got {
		if m.RankMean != nil || m.PrizeMean != nil {
			t.Errorf("Window %s: expected nil means for first starter, got %v/%v", w.Suffix(), m.RankMean, m.PrizeMean)
		}
	}
}

func TestEligible_StrictCutoff(t *testing.T) {
	ref := day(2023, 5, 14)
	rows := []*domain.HorseHistoryRow{
		hist("h1", 0, day(2023, 6, 1), intp(1), 1000), // after the reference race
		hist("h1", 1, ref, intp(2), 500),              // same day
		hist("h1", 2, day(2023, 4, 1), intp(3), 100),  // strictly before
	}
	ix := NewHistoryIndex(rows, false)

	eligible := ix.Eligible("h1", ref)
	if len(eligible) != 1 {
		t.Fatalf("Expected 1 eligible row, got %d", len(eligible))
	}
	if !eligible[0].Date.Equal(day(2023, 4, 1)) {
		t.Errorf("Wrong row survived the cutoff: %v", eligible[0].Date)
	}
}

func TestEligible_SameDateTiesKeepDocumentOrder(t *testing.T) {
	d := day(2023, 3, 5)
	rows := []*domain.HorseHistoryRow{
		hist("h1", 0, d, intp(1), 0),
		hist("h1", 1, d, intp(2), 0),
		hist("h1", 2, day(2023, 2, 1), intp(3), 0),
	}
	ix := NewHistoryIndex(rows, false)

	eligible := ix.Eligible("h1", day(2023, 5, 14))
	if len(eligible) != 3 {
		t.Fatalf("Expected 3 eligible rows, got %d", len(eligible))
	}
	if eligible[0].Seq != 0 || eligible[1].Seq != 1 {
		t.Errorf("Same-date rows reordered: seq %d,%d", eligible[0].Seq, eligible[1].Seq)
	}
}

func TestNewHistoryIndex_NonFinisherPolicy(t *testing.T) {
	rows := []*domain.HorseHistoryRow{
		hist("h1", 0, day(2023, 4, 2), nil, 0), // pulled up
		hist("h1", 1, day(2023, 3, 5), intp(2), 600),
	}
	ref := day(2023, 5, 14)

	// Default: the non-finisher vanishes entirely.
	dropped := NewEngine(NewHistoryIndex(rows, false), []domain.Window{2})
	m := dropped.Compute(entry("h1", ref))[2]
	if m.RankMean == nil || *m.RankMean != 2.0 {
		t.Errorf("Dropped policy rank mean: expected 2.0, got %v", m.RankMean)
	}
	if m.PrizeMean == nil || *m.PrizeMean != 600.0 {
		t.Errorf("Dropped policy prize mean: expected 600.0, got %v", m.PrizeMean)
	}

	// Kept: the start dilutes the prize mean but not the rank mean.
	kept := NewEngine(NewHistoryIndex(rows, true), []domain.Window{2})
	m = kept.Compute(entry("h1", ref))[2]
	if m.RankMean == nil || *m.RankMean != 2.0 {
		t.Errorf("Kept policy rank mean: expected 2.0, got %v", m.RankMean)
	}
	if m.PrizeMean == nil || *m.PrizeMean != 300.0 {
		t.Errorf("Kept policy prize mean: expected 300.0, got %v", m.PrizeMean)
	}
}

func TestEligible_NeverLeaksFutureRows(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := day(2023, 1, 1)

	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(40)
		rows := make([]*domain.HorseHistoryRow, 0, n)
		for i := 0; i < n; i++ {
			// Small day range forces same-day duplicates.
			d := base.AddDate(0, 0, rng.Intn(30))
			rows = append(rows, hist("h1", i, d, intp(rng.Intn(18)+1), float64(rng.Intn(1000))))
		}
		ix := NewHistoryIndex(rows, false)

		ref := base.AddDate(0, 0, rng.Intn(32))
		eligible := ix.Eligible("h1", ref)

		want := 0
		for _, r := range rows {
			if r.Date.Before(ref) {
				want++
			}
		}
		if len(eligible) != want {
			t.Fatalf("trial %d: expected %d eligible rows, got %d", trial, want, len(eligible))
		}
		for _, r := range eligible {
			if !r.Date.Before(ref) {
				t.Fatalf("trial %d: row dated %v leaked past reference %v", trial, r.Date, ref)
			}
		}
	}
}

func TestNewHistoryIndex_SortsUnorderedInput(t *testing.T) {
	rows := []*domain.HorseHistoryRow{
		hist("h1", 2, day(2023, 1, 1), intp(5), 0),
		hist("h1", 0, day(2023, 4, 1), intp(1), 0),
		hist("h1", 1, day(2023, 2, 1), intp(3), 0),
	}
	ix := NewHistoryIndex(rows, false)

	eligible := ix.Eligible("h1", day(2023, 5, 1))
	if len(eligible) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(eligible))
	}
	for i := 1; i < len(eligible); i++ {
		if eligible[i].Date.After(eligible[i-1].Date) {
			t.Fatalf("Rows not date-descending at %d", i)
		}
	}
}
