package domain

// RaceResultRow is one runner's line in a race result (or race card) table.
// Rows are append-only once extracted. Within one race, Umaban is unique.
//
// Rank is nil for non-finishers (disqualified, pulled up, withdrawn) and for
// race-card rows, where the result is not yet known. Nullable attributes use
// pointers; nil means the source document carried no usable value.
type RaceResultRow struct {
	RaceID     string
	HorseID    string
	JockeyID   string
	TrainerID  string
	Rank       *int
	Wakuban    int // starting gate (frame) number
	Umaban     int // horse number
	Sex        *int
	Age        int
	Weight     *int // body weight in kg; nil when unweighed
	WeightDiff *int // body weight change since last start
	TansyoOdds *float64
	Popularity *int
	Impost     float64  // carried weight
	Agari      *float64 // final-furlong time; nil on race cards
}

// Finished reports whether the runner completed the race with a recorded rank.
func (r *RaceResultRow) Finished() bool {
	return r.Rank != nil
}

// Won reports whether the runner finished first.
func (r *RaceResultRow) Won() bool {
	return r.Rank != nil && *r.Rank == 1
}
