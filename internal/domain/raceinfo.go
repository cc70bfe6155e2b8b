package domain

import "time"

// RaceInfoRow holds the course and conditions context of a single race.
// One row per race; RaceID is the primary key. The date doubles as the
// reference date of every population entry anchored to the race.
type RaceInfoRow struct {
	RaceID      string
	Date        time.Time // calendar date in UTC, time-of-day zeroed
	RaceType    *int      // surface code: dirt, turf, obstacle
	Around      *int      // turn direction code
	CourseLen   int       // course length in meters
	Weather     *int
	GroundState *int
	RaceClass   *int
	Place       *int // venue code
}

// Day truncates t to its calendar date in UTC. All race and history dates
// are stored in this form so date comparisons are exact.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
