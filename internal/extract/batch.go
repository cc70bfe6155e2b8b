package extract

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"keiba-feature-lab/internal/observability"
)

// BatchStats summarizes one batch run.
type BatchStats struct {
	Documents int
	Skipped   int
}

// BatchExtract runs fn over documents with bounded concurrency and
// concatenates the per-document rows in document order.
//
// A document that fails to extract is logged and skipped; it never aborts
// the batch. Corrupt pages are routine in archived data and one bad page
// must not cost the other ten thousand.
func BatchExtract[T any](ctx context.Context, docs []Document, workers int, metrics *observability.Metrics, fn func(Document) ([]T, error)) ([]T, BatchStats, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([][]T, len(docs))
	skipped := make([]bool, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := fn(doc)
			if err != nil {
				log.Printf("skipping document: %v", err)
				skipped[i] = true
				if metrics != nil {
					metrics.RecordDocumentSkipped(string(doc.Kind))
				}
				return nil
			}
			results[i] = rows
			if metrics != nil {
				metrics.RecordDocumentExtracted(string(doc.Kind), len(rows))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, BatchStats{}, err
	}

	stats := BatchStats{Documents: len(docs)}
	var out []T
	for i, rows := range results {
		if skipped[i] {
			stats.Skipped++
			continue
		}
		out = append(out, rows...)
	}
	return out, stats, nil
}
