package threat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct {
	lines []string
	err   error
}

func (s staticFetcher) Name() string { return "static" }

func (s staticFetcher) Fetch(ctx context.Context) ([]string, error) { return s.lines, s.err }

type recordingStore struct {
	calls   int
	records []Record
	err     error
}

func (r *recordingStore) SaveRecords(ctx context.Context, records []Record) error {
	r.calls++
	r.records = records
	return r.err
}

func TestETLRunWritesDeduplicatedRecords(t *testing.T) {
	store := &recordingStore{}
	c := NewETLController(staticFetcher{lines: []string{
		"# comment",
		feedRow("abc123", "Emotet", "r1"),
		"short,row",
		feedRow("abc123", "Emotet", "r2"),
	}})
	c.Register(store)

	sum, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "static", sum.Source)
	assert.Equal(t, 4, sum.Lines)
	assert.Equal(t, 1, sum.Records)
	assert.Equal(t, 1, sum.Stats.Skipped)
	require.Equal(t, 1, store.calls)
	require.Len(t, store.records, 1)
	assert.Equal(t, "r2", store.records[0].Reporter)
}

func TestETLFetchFailureSkipsStores(t *testing.T) {
	store := &recordingStore{}
	c := NewETLController(staticFetcher{err: errors.New("boom")})
	c.Register(store)

	_, err := c.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, store.calls)
}

func TestETLStoreFailurePropagates(t *testing.T) {
	failing := &recordingStore{err: errors.New("disk full")}
	after := &recordingStore{}
	c := NewETLController(staticFetcher{lines: []string{feedRow("h", "m", "r")}})
	c.Register(failing)
	c.Register(after)

	_, err := c.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, after.calls)
}

func TestETLServiceUnavailableLeavesOutputUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	existing := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(existing, []byte("previous"), 0o644))

	c := NewETLController(NewThreatFoxFetcher(FetcherOptions{URL: srv.URL}))
	c.Register(NewCSVStore(dir, "out.csv"))
	c.Register(NewCSVStore(filepath.Join(dir, "fresh"), "out.csv"))

	_, err := c.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	b, readErr := os.ReadFile(existing)
	require.NoError(t, readErr)
	assert.Equal(t, "previous", string(b))
	_, statErr := os.Stat(filepath.Join(dir, "fresh"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestETLEndToEndOverHTTP(t *testing.T) {
	body := strings.Join([]string{
		"#comment",
		"2024-01-01,x,deadbeef,x,x,Emotet,Emotet,x,2024-01-02,95,x,x,x,reporterA",
	}, "\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	store := NewCSVStore(dir, "out.csv")
	c := NewETLController(NewThreatFoxFetcher(FetcherOptions{URL: srv.URL}))
	c.Register(store)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Records)

	got, err := ReadCSV(store.Path())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Record{
		SHA256:        "deadbeef",
		Malware:       "Emotet",
		MalwareFamily: "Emotet",
		Confidence:    "95",
		FirstSeen:     "2024-01-01",
		LastSeen:      "2024-01-02",
		Reporter:      "reporterA",
	}, got[0])
}
