package domain

import "time"

// PopulationEntry is the unit of prediction: one horse in one race, anchored
// to a reference date. Date always equals the race's date and is the strict
// upper bound for any history row eligible for aggregation against the entry.
type PopulationEntry struct {
	RaceID  string
	HorseID string
	Date    time.Time
}

// RaceHorseKey identifies one (race, horse) pair across tables.
type RaceHorseKey struct {
	RaceID  string
	HorseID string
}

// Key returns the entry's (race, horse) join key.
func (p PopulationEntry) Key() RaceHorseKey {
	return RaceHorseKey{RaceID: p.RaceID, HorseID: p.HorseID}
}
