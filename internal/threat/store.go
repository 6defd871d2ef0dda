package threat

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"hashfeed/internal/metrics"
)

const (
	DefaultOutputDir  = "output"
	DefaultOutputFile = "ThreatFox_SHA256.csv"
)

// CSVStore writes the normalized feed to a single CSV file, replacing any
// previous content.
type CSVStore struct {
	path string
}

func NewCSVStore(dir, file string) *CSVStore {
	return &CSVStore{path: filepath.Join(dir, file)}
}

// Path returns the destination file.
func (s *CSVStore) Path() string { return s.path }

// SaveRecords creates the destination directory if needed and overwrites the
// file with a header row followed by one row per record.
func (s *CSVStore) SaveRecords(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrapf(err, "could not create output directory for %s", s.path)
	}

	f, err := os.Create(s.path)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", s.path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := WriteCSV(bw, records); err != nil {
		return errors.Wrapf(err, "could not write %s", s.path)
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "could not flush %s", s.path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "could not close %s", s.path)
	}

	metrics.RecordsWritten.Set(float64(len(records)))
	slog.Info("saved hashes", "count", len(records), "path", s.path)
	return nil
}

// WriteCSV encodes records with the Columns header. Lines end in CRLF.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(rec.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a file produced by CSVStore. The header row is skipped.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	defer f.Close()

	records, err := DecodeCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode %s", path)
	}
	return records, nil
}

// DecodeCSV reads the normalized format from r.
func DecodeCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, Record{
			SHA256:        row[0],
			Malware:       row[1],
			MalwareFamily: row[2],
			Confidence:    row[3],
			FirstSeen:     row[4],
			LastSeen:      row[5],
			Reporter:      row[6],
		})
	}
}
