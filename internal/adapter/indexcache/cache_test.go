package indexcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Englacial/ismip-indexing/internal/domain"
)

func sampleIndex() *domain.Index {
	return &domain.Index{
		BuiltAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		SourceDigest: "objects:2",
		Records: []domain.FileRecord{
			{
				IceSheet: "AIS", Institution: "AWI", Model: "PISM1",
				Experiment: "exp05", Variable: "lithk",
				Frequency: "yearly", URI: "gs://ismip6/a.nc", SizeBytes: 42,
				Available: true,
			},
			{
				URI: "gs://ismip6/readme.txt", Reason: domain.ReasonUnparseablePath,
				Corrected: true, Corrections: []string{"strip_experiment_prefix"},
			},
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "index.json.gz")
	store := NewStore(path, zap.NewNop())

	assert.False(t, store.Exists())

	want := sampleIndex()
	require.NoError(t, store.Write(want))
	require.True(t, store.Exists())

	got, err := store.Load()
	require.NoError(t, err)

	// Every FileRecord field must round-trip exactly.
	assert.Equal(t, want, got)
}

func TestStore_LoadMissingArtifact(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json.gz"), zap.NewNop())
	_, err := store.Load()
	assert.Error(t, err)
}

func TestStore_RejectsWrongFormatVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json.gz")
	store := NewStore(path, zap.NewNop())
	require.NoError(t, store.Write(sampleIndex()))

	// Corrupt the artifact in place; Load must fail, not return garbage.
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))
	_, err := store.Load()
	assert.Error(t, err)
}

func TestStore_RewriteReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json.gz")
	store := NewStore(path, zap.NewNop())

	first := sampleIndex()
	require.NoError(t, store.Write(first))

	second := sampleIndex()
	second.SourceDigest = "objects:3"
	second.Records = second.Records[:1]
	require.NoError(t, store.Write(second))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "objects:3", got.SourceDigest)
	assert.Len(t, got.Records, 1)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
