package pipeline

import (
	"context"
	"fmt"
	"time"

	"keiba-feature-lab/internal/aggregate"
	"keiba-feature-lab/internal/assemble"
	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/observability"
	"keiba-feature-lab/internal/population"
	"keiba-feature-lab/internal/storage"
)

// Training builds the labeled historical feature table for a date range.
// Pure store-to-table: ingest must have run first.
type Training struct {
	opts TrainingOptions
}

// TrainingOptions wires a Training pipeline. A nil Features store skips
// persistence; the rows are still returned.
type TrainingOptions struct {
	RaceInfo         storage.RaceInfoStore
	Results          storage.RaceResultStore
	History          storage.HorseHistoryStore
	Features         storage.FeatureStore
	Windows          []domain.Window
	KeepNonFinishers bool
	Metrics          *observability.Metrics
}

// TrainingResult holds the assembled table and its provenance counts.
type TrainingResult struct {
	Entries int
	Rows    []*domain.FeatureRow
	Windows []domain.Window
}

// TSV renders the result as a historical-mode table.
func (r *TrainingResult) TSV() string {
	return assemble.RenderTSV(assemble.ModeHistorical, r.Windows, r.Rows)
}

// NewTraining creates a Training pipeline.
func NewTraining(opts TrainingOptions) *Training {
	if len(opts.Windows) == 0 {
		opts.Windows = domain.DefaultWindows
	}
	return &Training{opts: opts}
}

// Run assembles the historical feature table over races in [from, to].
func (p *Training) Run(ctx context.Context, from, to time.Time) (*TrainingResult, error) {
	start := time.Now()
	res, err := p.run(ctx, from, to)
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordPipelineRun("training", statusOf(err), time.Since(start))
	}
	return res, err
}

func (p *Training) run(ctx context.Context, from, to time.Time) (*TrainingResult, error) {
	builder := population.NewBuilder(p.opts.RaceInfo, p.opts.Results)
	entries, err := builder.Historical(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("build population: %w", err)
	}
	if len(entries) == 0 {
		return &TrainingResult{Windows: p.opts.Windows}, nil
	}

	results, infos, err := p.loadRaceData(ctx, entries, from, to)
	if err != nil {
		return nil, err
	}

	index, err := p.loadHistoryIndex(ctx, entries)
	if err != nil {
		return nil, err
	}

	engine := aggregate.NewEngine(index, p.opts.Windows)
	assembler := assemble.New(engine, p.opts.Metrics)

	rows, err := assembler.Assemble(assemble.ModeHistorical, entries, results, infos)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	p.recordAggregates(rows)

	if p.opts.Features != nil {
		if err := p.opts.Features.InsertBulk(ctx, rows); err != nil {
			return nil, fmt.Errorf("store feature rows: %w", err)
		}
	}

	return &TrainingResult{Entries: len(entries), Rows: rows, Windows: p.opts.Windows}, nil
}

// loadRaceData maps result rows and race infos for the population's races.
func (p *Training) loadRaceData(ctx context.Context, entries []domain.PopulationEntry, from, to time.Time) (map[domain.RaceHorseKey]*domain.RaceResultRow, map[string]*domain.RaceInfoRow, error) {
	raceIDs := distinctRaceIDs(entries)

	grouped, err := p.opts.Results.GetByRaceIDs(ctx, raceIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load results: %w", err)
	}
	results := make(map[domain.RaceHorseKey]*domain.RaceResultRow)
	for _, rows := range grouped {
		for _, r := range rows {
			results[domain.RaceHorseKey{RaceID: r.RaceID, HorseID: r.HorseID}] = r
		}
	}

	infoRows, err := p.opts.RaceInfo.GetByDateRange(ctx, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load race info: %w", err)
	}
	infos := make(map[string]*domain.RaceInfoRow, len(infoRows))
	for _, info := range infoRows {
		infos[info.RaceID] = info
	}

	return results, infos, nil
}

// loadHistoryIndex builds the history index over the population's horses.
func (p *Training) loadHistoryIndex(ctx context.Context, entries []domain.PopulationEntry) (*aggregate.HistoryIndex, error) {
	horseIDs := distinctHorseIDs(entries)

	grouped, err := p.opts.History.GetByHorseIDs(ctx, horseIDs)
	if err != nil {
		return nil, fmt.Errorf("load histories: %w", err)
	}

	var rows []*domain.HorseHistoryRow
	for _, hr := range grouped {
		rows = append(rows, hr...)
	}
	return aggregate.NewHistoryIndex(rows, p.opts.KeepNonFinishers), nil
}

func (p *Training) recordAggregates(rows []*domain.FeatureRow) {
	if p.opts.Metrics == nil {
		return
	}
	for _, r := range rows {
		empty := true
		for _, m := range r.Windows {
			if m.RankMean != nil || m.PrizeMean != nil {
				empty = false
				break
			}
		}
		p.opts.Metrics.RecordAggregate(empty)
	}
}

func distinctRaceIDs(entries []domain.PopulationEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		if _, dup := seen[e.RaceID]; dup {
			continue
		}
		seen[e.RaceID] = struct{}{}
		out = append(out, e.RaceID)
	}
	return out
}

func distinctHorseIDs(entries []domain.PopulationEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		if _, dup := seen[e.HorseID]; dup {
			continue
		}
		seen[e.HorseID] = struct{}{}
		out = append(out, e.HorseID)
	}
	return out
}
