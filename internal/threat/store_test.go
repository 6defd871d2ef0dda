package threat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRecords = []Record{
	{SHA256: "deadbeef", Malware: "Emotet", MalwareFamily: "Emotet", Confidence: "95", FirstSeen: "2024-01-01", LastSeen: "2024-01-02", Reporter: "reporterA"},
	{SHA256: "abc123", Malware: "win.agent_tesla", MalwareFamily: "AgentTesla,ATSpy", Confidence: "100", FirstSeen: "2024-05-01 10:00:00", LastSeen: "", Reporter: `say "hi"`},
	{SHA256: "0011", Malware: "multi\nline", MalwareFamily: "x", Confidence: "50", FirstSeen: "a", LastSeen: "b", Reporter: "c"},
}

func TestCSVStoreCreatesDirectoryAndHeader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	store := NewCSVStore(dir, "out.csv")

	require.NoError(t, store.SaveRecords(context.Background(), sampleRecords[:1]))

	b, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"sha256,malware,malware_family,confidence,first_seen,last_seen,reporter\r\n"+
			"deadbeef,Emotet,Emotet,95,2024-01-01,2024-01-02,reporterA\r\n",
		string(b))
}

func TestCSVStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewCSVStore(dir, "out.csv")

	require.NoError(t, store.SaveRecords(context.Background(), sampleRecords))

	got, err := ReadCSV(store.Path())
	require.NoError(t, err)
	assert.Equal(t, sampleRecords, got)
}

func TestCSVStoreOverwrites(t *testing.T) {
	dir := t.TempDir()
	store := NewCSVStore(dir, "out.csv")
	ctx := context.Background()

	require.NoError(t, store.SaveRecords(ctx, sampleRecords))
	require.NoError(t, store.SaveRecords(ctx, sampleRecords[:1]))

	got, err := ReadCSV(store.Path())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCSVStoreEmptyWritesHeaderOnly(t *testing.T) {
	store := NewCSVStore(t.TempDir(), "out.csv")

	require.NoError(t, store.SaveRecords(context.Background(), nil))

	got, err := ReadCSV(store.Path())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVStoreFailsWhenDirectoryIsAFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "output")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewCSVStore(blocker, "out.csv").SaveRecords(context.Background(), sampleRecords)

	require.Error(t, err)
}

func TestCSVStoreHonoursCancelledContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCSVStore(dir, "out.csv").SaveRecords(ctx, sampleRecords)

	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "out.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
