// Package pipeline wires fetching, extraction, aggregation and assembly into
// the three end-to-end flows: ingest (fill the stores), training (historical
// feature table) and prediction (live feature table for one race).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"keiba-feature-lab/internal/domain"
	"keiba-feature-lab/internal/extract"
	"keiba-feature-lab/internal/fetch"
	"keiba-feature-lab/internal/observability"
	"keiba-feature-lab/internal/storage"
)

// Ingest fetches completed-race pages and the career pages of every runner,
// extracts them and fills the backing stores. Re-running over the same race
// ids is a no-op for races already stored.
type Ingest struct {
	opts IngestOptions
}

// IngestOptions wires an Ingest pipeline.
type IngestOptions struct {
	Fetcher   fetch.Fetcher
	Extractor *extract.Extractor
	RaceInfo  storage.RaceInfoStore
	Results   storage.RaceResultStore
	History   storage.HorseHistoryStore
	Workers   int
	Metrics   *observability.Metrics
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	RacesIngested  int
	RacesSkipped   int
	ResultRows     int
	HorsesIngested int
	HistoryRows    int
}

// NewIngest creates an Ingest pipeline.
func NewIngest(opts IngestOptions) *Ingest {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Ingest{opts: opts}
}

// Run ingests the given races and the careers of their runners.
func (p *Ingest) Run(ctx context.Context, raceIDs []string) (*IngestResult, error) {
	start := time.Now()
	res, err := p.run(ctx, raceIDs)
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordPipelineRun("ingest", statusOf(err), time.Since(start))
	}
	return res, err
}

func (p *Ingest) run(ctx context.Context, raceIDs []string) (*IngestResult, error) {
	res := &IngestResult{}

	// Fetch pages for races not yet stored. The fetcher paces itself, so
	// this loop is deliberately sequential.
	var docs []extract.Document
	for _, raceID := range raceIDs {
		if _, err := p.opts.RaceInfo.GetByID(ctx, raceID); err == nil {
			res.RacesSkipped++
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("check race %s: %w", raceID, err)
		}

		body, err := p.opts.Fetcher.RacePage(ctx, raceID)
		if err != nil {
			return nil, fmt.Errorf("fetch race %s: %w", raceID, err)
		}
		docs = append(docs, extract.Document{Kind: extract.KindRaceResult, ID: raceID, Body: body})
	}
	if len(docs) == 0 {
		return res, nil
	}

	results, _, err := extract.BatchExtract(ctx, docs, p.opts.Workers, p.opts.Metrics, p.opts.Extractor.RaceResults)
	if err != nil {
		return nil, fmt.Errorf("extract results: %w", err)
	}

	// The info block lives on the same page; reuse the fetched documents.
	infoDocs := make([]extract.Document, len(docs))
	for i, d := range docs {
		infoDocs[i] = extract.Document{Kind: extract.KindRaceInfo, ID: d.ID, Body: d.Body}
	}
	infos, _, err := extract.BatchExtract(ctx, infoDocs, p.opts.Workers, p.opts.Metrics, func(d extract.Document) ([]*domain.RaceInfoRow, error) {
		info, err := p.opts.Extractor.RaceInfo(d)
		if err != nil {
			return nil, err
		}
		return []*domain.RaceInfoRow{info}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract race info: %w", err)
	}

	// Results without a surviving info row (or vice versa) are dropped as a
	// pair: a race enters the stores whole or not at all.
	infoByRace := make(map[string]*domain.RaceInfoRow, len(infos))
	for _, info := range infos {
		infoByRace[info.RaceID] = info
	}
	resultsByRace := make(map[string][]*domain.RaceResultRow)
	for _, r := range results {
		resultsByRace[r.RaceID] = append(resultsByRace[r.RaceID], r)
	}

	var keptInfos []*domain.RaceInfoRow
	var keptResults []*domain.RaceResultRow
	for _, info := range infos {
		rows, ok := resultsByRace[info.RaceID]
		if !ok {
			log.Printf("dropping race %s: info extracted but results missing", info.RaceID)
			continue
		}
		keptInfos = append(keptInfos, info)
		keptResults = append(keptResults, rows...)
	}

	if err := p.opts.RaceInfo.InsertBulk(ctx, keptInfos); err != nil {
		return nil, fmt.Errorf("store race info: %w", err)
	}
	if err := p.opts.Results.InsertBulk(ctx, keptResults); err != nil {
		return nil, fmt.Errorf("store results: %w", err)
	}
	res.RacesIngested = len(keptInfos)
	res.ResultRows = len(keptResults)

	horses, historyRows, err := p.ingestHorses(ctx, keptResults)
	if err != nil {
		return nil, err
	}
	res.HorsesIngested = horses
	res.HistoryRows = historyRows

	return res, nil
}

// ingestHorses fetches and stores the careers of runners whose history is
// not yet stored.
func (p *Ingest) ingestHorses(ctx context.Context, results []*domain.RaceResultRow) (int, int, error) {
	seen := make(map[string]struct{})
	var horseIDs []string
	for _, r := range results {
		if _, dup := seen[r.HorseID]; dup {
			continue
		}
		seen[r.HorseID] = struct{}{}
		horseIDs = append(horseIDs, r.HorseID)
	}

	stored, err := p.opts.History.GetByHorseIDs(ctx, horseIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("check stored histories: %w", err)
	}

	var docs []extract.Document
	for _, horseID := range horseIDs {
		if _, ok := stored[horseID]; ok {
			continue
		}
		body, err := p.opts.Fetcher.HorsePage(ctx, horseID)
		if err != nil {
			return 0, 0, fmt.Errorf("fetch horse %s: %w", horseID, err)
		}
		docs = append(docs, extract.Document{Kind: extract.KindHorseHistory, ID: horseID, Body: body})
	}
	if len(docs) == 0 {
		return 0, 0, nil
	}

	rows, stats, err := extract.BatchExtract(ctx, docs, p.opts.Workers, p.opts.Metrics, p.opts.Extractor.HorseHistory)
	if err != nil {
		return 0, 0, fmt.Errorf("extract histories: %w", err)
	}

	if err := p.opts.History.InsertBulk(ctx, rows); err != nil {
		return 0, 0, fmt.Errorf("store histories: %w", err)
	}
	return stats.Documents - stats.Skipped, len(rows), nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
