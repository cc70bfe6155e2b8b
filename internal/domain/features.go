package domain

import (
	"strconv"
	"time"
)

// Window is a rolling-window size: the number of most recent prior starts
// an aggregate covers. WindowAll covers every eligible start.
type Window int

// WindowAll is the unbounded window.
const WindowAll Window = 0

// DefaultWindows is the window set the feature schema is versioned against.
var DefaultWindows = []Window{3, 5, 10, WindowAll}

// Suffix returns the column-name suffix for the window ("w3", "w5", "wall").
func (w Window) Suffix() string {
	if w == WindowAll {
		return "wall"
	}
	return "w" + strconv.Itoa(int(w))
}

// WindowMeans holds the rolling means over one window. Nil means no eligible
// history row existed; a null aggregate is a valid outcome, never an error.
type WindowMeans struct {
	RankMean  *float64
	PrizeMean *float64
}

// AggregateRow is one computed aggregate for one (race, horse, window).
// Derived on demand; never persisted independently of the feature table.
type AggregateRow struct {
	RaceID    string
	HorseID   string
	Window    Window
	RankMean  *float64
	PrizeMean *float64
}

// FeatureRow is the terminal join of a population entry with its race-day
// attributes, race context and per-window aggregates. Immutable once
// produced; one row per (race, horse).
//
// Rank and Target are populated in historical mode only. In live mode the
// corresponding columns are absent from the rendered table, not null.
type FeatureRow struct {
	RaceID  string
	HorseID string
	Date    time.Time

	// Race-day attributes from the result (or race card) row. All nullable:
	// in live mode a population entry may have no matching card row yet.
	JockeyID   string
	TrainerID  string
	Wakuban    *int
	Umaban     *int
	Sex        *int
	Age        *int
	Weight     *int
	WeightDiff *int
	TansyoOdds *float64
	Popularity *int
	Impost     *float64
	Agari      *float64

	// Race context.
	RaceType    *int
	Around      *int
	CourseLen   int
	Weather     *int
	GroundState *int
	RaceClass   *int
	Place       *int

	// Rolling aggregates keyed by window.
	Windows map[Window]WindowMeans

	// Ground truth, historical mode only.
	Rank   *int
	Target *int
}

// Clone returns a copy whose Windows map is not shared with the original.
// Pointer-valued fields still alias; feature rows are immutable once built.
func (f *FeatureRow) Clone() *FeatureRow {
	c := *f
	if f.Windows != nil {
		c.Windows = make(map[Window]WindowMeans, len(f.Windows))
		for w, m := range f.Windows {
			c.Windows[w] = m
		}
	}
	return &c
}
