package parser

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/armalogs/backend/internal/models"
)

// ExtractConfig configures ExtractAll.
type ExtractConfig struct {
	// Workers bounds how many files are read at once. Zero means GOMAXPROCS.
	Workers int
	// OnFile, if set, is called for every file in input order after all
	// files are done.
	OnFile ProgressCallback
}

// DefaultExtractConfig returns the default extraction configuration.
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		Workers: runtime.GOMAXPROCS(0),
	}
}

// ExtractAll extracts every file on a bounded worker pool and merges the results.
// A file that cannot be read is reported in its FileResult and skipped; only
// context cancellation aborts the run.
func ExtractAll(ctx context.Context, ex Extractor, files []models.LogFile, config ExtractConfig) (models.EventStore, []models.FileResult, error) {
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]models.FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, err := ex.ParseFile(gctx, file)
			results[i] = models.FileResult{
				Path:   file.Path,
				Server: ServerName(file.Path),
				Events: events,
				Err:    err,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extraction cancelled: %w", err)
	}

	if config.OnFile != nil {
		for _, r := range results {
			config.OnFile(r)
		}
	}

	return MergeResults(results), results, nil
}

// MergeResults concatenates the events of all files in input order, then sorts
// them by reconstructed time. Events of failed files are dropped.
func MergeResults(results []models.FileResult) models.EventStore {
	total := 0
	for _, r := range results {
		if r.Err == nil {
			total += len(r.Events)
		}
	}

	merged := make(models.EventStore, 0, total)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		merged = append(merged, r.Events...)
	}

	merged.SortByTime()
	return merged
}
