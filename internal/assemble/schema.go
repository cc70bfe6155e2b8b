// Package assemble joins population entries with race-day attributes, race
// context and rolling aggregates into the terminal feature table.
//
// Train/serve parity is the package's core invariant: historical and live
// rows are produced by the same join, and the live column set is exactly the
// historical one minus the ground-truth columns. Any drift between the two is
// a schema mismatch, surfaced as an error rather than silently reordered.
package assemble

import (
	"errors"
	"fmt"

	"keiba-feature-lab/internal/domain"
)

// TableVersion identifies the feature table layout. Bump on any column
// addition, removal or reorder.
const TableVersion = "2.0.0"

// Mode selects which side of the train/serve split a table is built for.
type Mode string

// Assembly modes.
const (
	ModeHistorical Mode = "historical" // labeled rows for training
	ModeLive       Mode = "live"       // unlabeled rows for prediction
)

// ErrSchemaMismatch means a rendered or received table does not carry the
// exact column sequence this version produces.
var ErrSchemaMismatch = errors.New("feature table columns do not match schema")

// Columns returns the exact column sequence for a mode and window set.
// Historical tables append the ground-truth columns; live tables omit them
// entirely so a serving consumer can never read a label by accident.
func Columns(mode Mode, windows []domain.Window) []string {
	cols := []string{
		"race_id", "horse_id", "date",
		"jockey_id", "trainer_id", "wakuban", "umaban", "sex", "age",
		"weight", "weight_diff", "tansyo_odds", "popularity", "impost", "agari",
		"race_type", "around", "course_len", "weather", "ground_state", "race_class", "place",
	}
	for _, w := range windows {
		cols = append(cols, "rank_mean_"+w.Suffix(), "prize_mean_"+w.Suffix())
	}
	if mode == ModeHistorical {
		cols = append(cols, "rank", "target")
	}
	return cols
}

// ValidateColumns checks header against the schema for the mode and windows.
func ValidateColumns(mode Mode, windows []domain.Window, header []string) error {
	want := Columns(mode, windows)
	if len(header) != len(want) {
		return fmt.Errorf("%w: got %d columns, want %d", ErrSchemaMismatch, len(header), len(want))
	}
	for i, col := range want {
		if header[i] != col {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i, header[i], col)
		}
	}
	return nil
}
