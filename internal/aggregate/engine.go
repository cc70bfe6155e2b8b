package aggregate

import (
	"keiba-feature-lab/internal/domain"
)

// Engine computes per-window rolling means for population entries against a
// history index. Stateless apart from its configuration; one engine serves a
// whole pipeline run.
type Engine struct {
	index   *HistoryIndex
	windows []domain.Window
}

// NewEngine creates an Engine over an index. A nil or empty window set falls
// back to the default windows.
func NewEngine(index *HistoryIndex, windows []domain.Window) *Engine {
	if len(windows) == 0 {
		windows = domain.DefaultWindows
	}
	return &Engine{index: index, windows: windows}
}

// Windows returns the engine's window set.
func (e *Engine) Windows() []domain.Window {
	return e.windows
}

// Compute returns the entry's means for every configured window.
//
// A window takes the entry's most recent eligible rows, at most the window
// size of them (WindowAll takes all). An entry with no eligible history gets
// nil means in every window: a first starter is a valid input, not an error.
func (e *Engine) Compute(entry domain.PopulationEntry) map[domain.Window]domain.WindowMeans {
	eligible := e.index.Eligible(entry.HorseID, entry.Date)

	out := make(map[domain.Window]domain.WindowMeans, len(e.windows))
	for _, w := range e.windows {
		taken := eligible
		if w != domain.WindowAll && int(w) < len(taken) {
			taken = taken[:w]
		}
		out[w] = means(taken)
	}
	return out
}

// means computes the rank and prize means over the taken rows.
//
// The prize mean runs over every taken row (an unplaced start earned zero and
// that zero is information). The rank mean runs over rows with a recorded
// rank only, which matters when the index keeps non-finishers.
func means(rows []*domain.HorseHistoryRow) domain.WindowMeans {
	if len(rows) == 0 {
		return domain.WindowMeans{}
	}

	var prizeSum float64
	var rankSum float64
	ranked := 0
	for _, r := range rows {
		prizeSum += r.Prize
		if r.Rank != nil {
			rankSum += float64(*r.Rank)
			ranked++
		}
	}

	m := domain.WindowMeans{}
	prizeMean := prizeSum / float64(len(rows))
	m.PrizeMean = &prizeMean
	if ranked > 0 {
		rankMean := rankSum / float64(ranked)
		m.RankMean = &rankMean
	}
	return m
}
