package threat

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrUnexpectedStatus is returned when the feed answers with a status >= 400.
	ErrUnexpectedStatus = errors.New("unexpected feed status")
	// ErrNotFound is returned by index lookups for unknown hashes.
	ErrNotFound = errors.New("hash not found")
)

// Record is one deduplicated hash entry with its threat metadata.
type Record struct {
	SHA256        string `json:"sha256"`
	Malware       string `json:"malware"`
	MalwareFamily string `json:"malware_family"`
	Confidence    string `json:"confidence"`
	FirstSeen     string `json:"first_seen"`
	LastSeen      string `json:"last_seen"`
	Reporter      string `json:"reporter"`
}

// Columns is the header row of the normalized CSV, in field order.
var Columns = []string{
	"sha256",
	"malware",
	"malware_family",
	"confidence",
	"first_seen",
	"last_seen",
	"reporter",
}

// Row returns the record fields in Columns order.
func (r Record) Row() []string {
	return []string{r.SHA256, r.Malware, r.MalwareFamily, r.Confidence, r.FirstSeen, r.LastSeen, r.Reporter}
}

// FeedFetcher downloads a feed and returns its body as lines.
type FeedFetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]string, error)
}

// RecordStore persists the records of one crawl.
type RecordStore interface {
	SaveRecords(ctx context.Context, records []Record) error
}
