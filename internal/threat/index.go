package threat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/willf/bloom"

	"hashfeed/internal/metrics"
)

const bloomFalsePositiveRate = 0.01

// Index is an in-memory lookup table over the latest crawl. Each SaveRecords
// replaces the whole snapshot. Records are keyed by their exact hash, so the
// index holds as many entries as the crawl wrote; folded maps the lowercase
// form of each hash to its exact key for case-insensitive lookups. A bloom
// filter over the folded keys screens out unknown hashes.
type Index struct {
	mu       sync.RWMutex
	records  map[string]Record
	folded   map[string]string
	filter   *bloom.BloomFilter
	loadedAt time.Time
}

func NewIndex() *Index {
	return &Index{
		records: make(map[string]Record),
		folded:  make(map[string]string),
		filter:  bloom.NewWithEstimates(1, bloomFalsePositiveRate),
	}
}

func foldHash(h string) string {
	return strings.ToLower(h)
}

// SaveRecords swaps in a new snapshot. Later records win on an exact key
// collision; hashes that differ only in case stay separate entries.
func (ix *Index) SaveRecords(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n := uint(len(records))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, bloomFalsePositiveRate)
	m := make(map[string]Record, len(records))
	folded := make(map[string]string, len(records))
	for _, rec := range records {
		m[rec.SHA256] = rec
		key := foldHash(rec.SHA256)
		folded[key] = rec.SHA256
		filter.Add([]byte(key))
	}

	ix.mu.Lock()
	ix.records = m
	ix.folded = folded
	ix.filter = filter
	ix.loadedAt = time.Now()
	ix.mu.Unlock()

	metrics.IndexSize.Set(float64(len(m)))
	slog.Info("index loaded", "count", len(m))
	return nil
}

// Lookup returns the record for hash, ignoring surrounding whitespace. An
// exact match wins; otherwise the match ignores case, and among hashes that
// differ only in case the last one saved is returned.
func (ix *Index) Lookup(hash string) (Record, bool) {
	hash = strings.TrimSpace(hash)
	key := foldHash(hash)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.filter.Test([]byte(key)) {
		metrics.Lookups.WithLabelValues("filtered").Inc()
		return Record{}, false
	}
	rec, ok := ix.records[hash]
	if !ok {
		if exact, found := ix.folded[key]; found {
			rec, ok = ix.records[exact]
		}
	}
	if !ok {
		metrics.Lookups.WithLabelValues("miss").Inc()
		return Record{}, false
	}
	metrics.Lookups.WithLabelValues("hit").Inc()
	return rec, true
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// LoadedAt reports when the current snapshot was installed; zero if never.
func (ix *Index) LoadedAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loadedAt
}
