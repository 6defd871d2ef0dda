package threat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLookup(t *testing.T) {
	ix := NewIndex()
	assert.True(t, ix.LoadedAt().IsZero())

	require.NoError(t, ix.SaveRecords(context.Background(), []Record{
		{SHA256: "DEADBEEF", Malware: "Emotet"},
		{SHA256: "cafe", Malware: "Qakbot"},
	}))

	rec, ok := ix.Lookup("  deadbeef ")
	require.True(t, ok)
	assert.Equal(t, "Emotet", rec.Malware)

	_, ok = ix.Lookup("feed")
	assert.False(t, ok)
	assert.Equal(t, 2, ix.Len())
	assert.False(t, ix.LoadedAt().IsZero())
}

func TestIndexEmpty(t *testing.T) {
	ix := NewIndex()

	_, ok := ix.Lookup("deadbeef")
	assert.False(t, ok)

	require.NoError(t, ix.SaveRecords(context.Background(), nil))
	_, ok = ix.Lookup("deadbeef")
	assert.False(t, ok)
	assert.Equal(t, 0, ix.Len())
}

func TestIndexReplacesSnapshot(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.SaveRecords(ctx, []Record{{SHA256: "old"}}))
	require.NoError(t, ix.SaveRecords(ctx, []Record{{SHA256: "new"}}))

	_, ok := ix.Lookup("old")
	assert.False(t, ok)
	_, ok = ix.Lookup("new")
	assert.True(t, ok)
}

func TestIndexLastRecordWins(t *testing.T) {
	ix := NewIndex()

	require.NoError(t, ix.SaveRecords(context.Background(), []Record{
		{SHA256: "abc", Reporter: "r1"},
		{SHA256: "abc", Reporter: "r2"},
	}))

	rec, ok := ix.Lookup("abc")
	require.True(t, ok)
	assert.Equal(t, "r2", rec.Reporter)
	assert.Equal(t, 1, ix.Len())
}

func TestIndexKeepsCaseVariants(t *testing.T) {
	ix := NewIndex()
	records := []Record{
		{SHA256: "abc", Reporter: "lower"},
		{SHA256: "ABC", Reporter: "upper"},
	}

	require.NoError(t, ix.SaveRecords(context.Background(), records))

	assert.Equal(t, len(records), ix.Len())
	rec, ok := ix.Lookup("abc")
	require.True(t, ok)
	assert.Equal(t, "lower", rec.Reporter)
	rec, ok = ix.Lookup("ABC")
	require.True(t, ok)
	assert.Equal(t, "upper", rec.Reporter)
	rec, ok = ix.Lookup("Abc")
	require.True(t, ok)
	assert.Equal(t, "upper", rec.Reporter)
}
