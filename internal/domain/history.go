package domain

import "time"

// HorseHistoryRow is one past start from a horse's career record.
// Many rows per horse. Seq is the row's position in the source document,
// counting from the most recent start; it keeps same-date rows in a
// deterministic order after a store round-trip.
type HorseHistoryRow struct {
	HorseID     string
	Seq         int
	Date        time.Time
	Rank        *int    // nil for non-finishers
	Prize       float64 // prize money; 0 when absent
	RankDiff    float64 // margin behind the winner, clamped to >= 0
	Weather     *int
	RaceType    *int
	CourseLen   *int
	GroundState *int
	Agari       *float64
	RaceClass   *int
	NHorses     *int // field size
}
