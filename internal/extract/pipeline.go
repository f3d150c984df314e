// Package extract runs discovery and event extraction over server roots, either
// inline (CLI) or as background jobs (report server).
package extract

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/parser"
)

// Options configures one extraction run.
type Options struct {
	Roots   []string
	Pattern string
	Workers int
	Markers models.Markers
}

// Hooks receive progress of a run. Any of them may be nil.
type Hooks struct {
	// OnServer is called for every discovered server installation.
	OnServer func(dir string)
	// OnDiscovered is called once with the number of log files found.
	OnDiscovered func(total int)
	// OnFileDone is called from worker goroutines as each file finishes.
	OnFileDone func(done int)
	// OnFile is called for every file in discovery order after all are done.
	OnFile parser.ProgressCallback
}

// countingExtractor reports every finished file.
type countingExtractor struct {
	parser.Extractor
	done   atomic.Int64
	onDone func(int)
}

func (c *countingExtractor) ParseFile(ctx context.Context, file models.LogFile) (models.EventStore, error) {
	events, err := c.Extractor.ParseFile(ctx, file)
	n := c.done.Add(1)
	if c.onDone != nil {
		c.onDone(int(n))
	}
	return events, err
}

// Run discovers the log files below opts.Roots and extracts their events.
// The merged store is sorted by time; per-file outcomes are returned alongside.
func Run(ctx context.Context, opts Options, hooks Hooks) (models.EventStore, []models.FileResult, error) {
	if len(opts.Roots) == 0 {
		opts.Roots = []string{"."}
	}

	files, err := parser.Discover(opts.Roots, opts.Pattern, hooks.OnServer)
	if err != nil {
		return nil, nil, fmt.Errorf("discovering logs: %w", err)
	}
	if hooks.OnDiscovered != nil {
		hooks.OnDiscovered(len(files))
	}

	ex := &countingExtractor{
		Extractor: parser.NewArmaLogParser(opts.Markers),
		onDone:    hooks.OnFileDone,
	}
	config := parser.DefaultExtractConfig()
	if opts.Workers > 0 {
		config.Workers = opts.Workers
	}
	config.OnFile = hooks.OnFile

	return parser.ExtractAll(ctx, ex, files, config)
}
