package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keiba-feature-lab/internal/aggregate"
	"keiba-feature-lab/internal/assemble"
	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/extract"
	"keiba-feature-lab/internal/fetch"
	"keiba-feature-lab/internal/observability"
	"keiba-feature-lab/internal/population"
	"keiba-feature-lab/internal/storage"
)

// Prediction builds the unlabeled live feature table for one upcoming race:
// fetch the card, extract it, backfill missing runner histories, assemble.
//
// The output carries exactly the historical columns minus the ground truth,
// computed by the same engine and assembler as training.
type Prediction struct {
	opts PredictionOptions
}

// PredictionOptions wires a Prediction pipeline.
type PredictionOptions struct {
	Fetcher          fetch.Fetcher
	Extractor        *extract.Extractor
	RaceInfo         storage.RaceInfoStore
	Results          storage.RaceResultStore
	History          storage.HorseHistoryStore
	Windows          []domain.Window
	KeepNonFinishers bool
	Workers          int
	Metrics          *observability.Metrics
}

// PredictionResult holds the live table for one race.
type PredictionResult struct {
	RaceID  string
	Rows    []*domain.FeatureRow
	Windows []domain.Window
}

// TSV renders the result as a live-mode table.
func (r *PredictionResult) TSV() string {
	return assemble.RenderTSV(assemble.ModeLive, r.Windows, r.Rows)
}

// NewPrediction creates a Prediction pipeline.
func NewPrediction(opts PredictionOptions) *Prediction {
	if len(opts.Windows) == 0 {
		opts.Windows = domain.DefaultWindows
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Prediction{opts: opts}
}

// Run assembles the live feature table for raceID.
func (p *Prediction) Run(ctx context.Context, raceID string) (*PredictionResult, error) {
	start := time.Now()
	res, err := p.run(ctx, raceID)
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordPipelineRun("prediction", statusOf(err), time.Since(start))
	}
	return res, err
}

func (p *Prediction) run(ctx context.Context, raceID string) (*PredictionResult, error) {
	body, err := p.opts.Fetcher.RaceCardPage(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("fetch race card %s: %w", raceID, err)
	}

	card, err := p.opts.Extractor.RaceCard(extract.Document{Kind: extract.KindRaceCard, ID: raceID, Body: body})
	if err != nil {
		return nil, fmt.Errorf("extract race card: %w", err)
	}
	info, err := p.opts.Extractor.RaceInfo(extract.Document{Kind: extract.KindRaceCard, ID: raceID, Body: body})
	if err != nil {
		return nil, fmt.Errorf("extract race info: %w", err)
	}

	// Store the extracted context so the population builder sees it. A
	// previously ingested row wins; card pages are the less complete source.
	if err := p.opts.RaceInfo.Insert(ctx, info); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("store race info: %w", err)
	}

	index, err := p.ensureHistories(ctx, card)
	if err != nil {
		return nil, err
	}

	builder := population.NewBuilder(p.opts.RaceInfo, p.opts.Results)
	entries, err := builder.Live(ctx, raceID, card)
	if err != nil {
		return nil, fmt.Errorf("build population: %w", err)
	}

	results := make(map[domain.RaceHorseKey]*domain.RaceResultRow, len(card))
	for _, r := range card {
		results[domain.RaceHorseKey{RaceID: r.RaceID, HorseID: r.HorseID}] = r
	}

	storedInfo, err := p.opts.RaceInfo.GetByID(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("load race info: %w", err)
	}
	infos := map[string]*domain.RaceInfoRow{raceID: storedInfo}

	engine := aggregate.NewEngine(index, p.opts.Windows)
	assembler := assemble.New(engine, p.opts.Metrics)

	rows, err := assembler.Assemble(assemble.ModeLive, entries, results, infos)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	return &PredictionResult{RaceID: raceID, Rows: rows, Windows: p.opts.Windows}, nil
}

// ensureHistories loads the card runners' careers, fetching and storing the
// ones not yet ingested, and returns the index over all of them.
func (p *Prediction) ensureHistories(ctx context.Context, card []*domain.RaceResultRow) (*aggregate.HistoryIndex, error) {
	horseIDs := make([]string, 0, len(card))
	for _, r := range card {
		horseIDs = append(horseIDs, r.HorseID)
	}

	stored, err := p.opts.History.GetByHorseIDs(ctx, horseIDs)
	if err != nil {
		return nil, fmt.Errorf("load stored histories: %w", err)
	}

	var docs []extract.Document
	for _, horseID := range horseIDs {
		if _, ok := stored[horseID]; ok {
			continue
		}
		body, err := p.opts.Fetcher.HorsePage(ctx, horseID)
		if err != nil {
			return nil, fmt.Errorf("fetch horse %s: %w", horseID, err)
		}
		docs = append(docs, extract.Document{Kind: extract.KindHorseHistory, ID: horseID, Body: body})
	}

	var rows []*domain.HorseHistoryRow
	for _, hr := range stored {
		rows = append(rows, hr...)
	}

	if len(docs) > 0 {
		fetched, _, err := extract.BatchExtract(ctx, docs, p.opts.Workers, p.opts.Metrics, p.opts.Extractor.HorseHistory)
		if err != nil {
			return nil, fmt.Errorf("extract histories: %w", err)
		}
		if err := p.opts.History.InsertBulk(ctx, fetched); err != nil {
			return nil, fmt.Errorf("store histories: %w", err)
		}
		rows = append(rows, fetched...)
	}

	return aggregate.NewHistoryIndex(rows, p.opts.KeepNonFinishers), nil
}
