package threat

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const commentMarker = "#"

// Zero-based column positions in the ThreatFox CSV export.
const (
	colFirstSeen     = 0
	colSHA256        = 2
	colMalware       = 5
	colMalwareFamily = 6
	colLastSeen      = 8
	colConfidence    = 9
	colReporter      = 13

	minFields = colReporter + 1
)

// ParseStats summarizes one parse pass.
type ParseStats struct {
	Rows       int
	Skipped    int
	Duplicates int
}

// ParseLines is Parse without the statistics.
func ParseLines(lines []string) []Record {
	records, _ := Parse(lines)
	return records
}

// Parse drops comment lines, decodes the rest as CSV and collapses the rows
// into one Record per hash. A later row with the same hash replaces the
// earlier one. Only the hash is trimmed; every other field is kept as
// decoded. Records come back in first-seen hash order. Rows that are too
// short or that the CSV decoder rejects are skipped without error.
func Parse(lines []string) ([]Record, ParseStats) {
	var stats ParseStats

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, commentMarker) {
			continue
		}
		kept = append(kept, line)
	}

	r := csv.NewReader(strings.NewReader(strings.Join(kept, "\n")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	byHash := make(map[string]int)
	var records []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		stats.Rows++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Skipped++
				continue
			}
			break
		}
		if len(row) < minFields {
			stats.Skipped++
			continue
		}

		rec := Record{
			SHA256:        strings.TrimSpace(row[colSHA256]),
			Malware:       row[colMalware],
			MalwareFamily: row[colMalwareFamily],
			Confidence:    row[colConfidence],
			FirstSeen:     row[colFirstSeen],
			LastSeen:      row[colLastSeen],
			Reporter:      row[colReporter],
		}
		if i, ok := byHash[rec.SHA256]; ok {
			records[i] = rec
			stats.Duplicates++
			continue
		}
		byHash[rec.SHA256] = len(records)
		records = append(records, rec)
	}
	return records, stats
}
