package threat

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"hashfeed/internal/metrics"
)

// ETLController coordinates one fetch, parse and store pass.
type ETLController struct {
	fetcher FeedFetcher
	stores  []RecordStore
}

// RunSummary describes a completed crawl.
type RunSummary struct {
	Source  string
	Lines   int
	Stats   ParseStats
	Records int
	Elapsed time.Duration
}

// NewETLController creates a controller for the given fetcher.
func NewETLController(fetcher FeedFetcher) *ETLController {
	return &ETLController{fetcher: fetcher}
}

// Register adds a store. Stores are written in registration order.
func (c *ETLController) Register(s RecordStore) {
	c.stores = append(c.stores, s)
}

// Run fetches the feed, deduplicates it and hands the records to every
// store. A fetch failure returns before any store is touched.
func (c *ETLController) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	sum := RunSummary{Source: c.fetcher.Name()}

	slog.Info("fetching feed", "source", sum.Source)
	lines, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return sum, errors.Wrapf(err, "fetch %s", sum.Source)
	}
	sum.Lines = len(lines)

	slog.Info("parsing feed", "lines", sum.Lines)
	records, stats := Parse(lines)
	sum.Stats = stats
	sum.Records = len(records)
	metrics.RowsParsed.Add(float64(stats.Rows))
	metrics.RowsSkipped.Add(float64(stats.Skipped))
	metrics.DuplicateHashes.Add(float64(stats.Duplicates))
	slog.Debug("parse stats", "rows", stats.Rows, "skipped", stats.Skipped, "duplicates", stats.Duplicates)

	slog.Info("writing output", "records", sum.Records)
	for _, s := range c.stores {
		if err := s.SaveRecords(ctx, records); err != nil {
			return sum, errors.Wrap(err, "store records")
		}
	}

	sum.Elapsed = time.Since(start)
	metrics.LastSuccess.SetToCurrentTime()
	return sum, nil
}
