package gtf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Sereal/Sereal/Go/sereal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAnnotation(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "genes.gtf")
	require.NoError(t, os.WriteFile(path, []byte(sampleGTF), 0o644))
	return path
}

func TestCachePath(t *testing.T) {
	assert.Equal(t, filepath.Join("some", "dir", ".genes.gtf.cache"),
		cachePath(filepath.Join("some", "dir", "genes.gtf")))
	assert.Equal(t, ".genes.gtf.cache", cachePath("genes.gtf"))
}

func TestLoadWritesAndReusesCache(t *testing.T) {
	dir := t.TempDir()
	path := writeAnnotation(t, dir)

	first, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, cachePath(path))

	// Replace the source with garbage: a cache hit must not touch it.
	require.NoError(t, os.WriteFile(path, []byte("not a gtf\n"), 0o644))

	second, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.Count(), second.Count())
	for _, want := range first.Genes() {
		got := second.GetByID(want.GID)
		require.NotNil(t, got, "gene %s missing after cache round-trip", want.GID)
		assert.Equal(t, want.GeneName, got.GeneName)
		assert.Equal(t, want.Chrom, got.Chrom)
		assert.Equal(t, want.Strand, got.Strand)
		assert.Equal(t, want.Start, got.Start)
		assert.Equal(t, want.End, got.End)
		assert.Equal(t, want.Order, got.Order)
		for _, tid := range want.Order {
			assert.Equal(t, want.Transcripts[tid].Exons(), got.Transcripts[tid].Exons())
		}
	}

	// Indexes survive the round-trip too.
	assert.Same(t, second.GetByID("iso1"), second.GetByID("g1"))
	assert.Len(t, second.GetByName("BAR"), 1)
}

func TestLoadCorruptCacheFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := writeAnnotation(t, dir)

	require.NoError(t, os.WriteFile(cachePath(path), []byte("garbage"), 0o644))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Count())
}

func TestLoadStaleCacheVersionFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := writeAnnotation(t, dir)

	_, err := Load(path)
	require.NoError(t, err)

	// Rewrite the cache with a bumped version marker and prove the loader
	// reparses rather than trusting it.
	blob, err := readCache(cachePath(path))
	require.NoError(t, err)
	blob.Version = cacheVersion + 1
	data, err := sereal.Marshal(blob)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cachePath(path), data, 0o644))

	_, err = readCache(cachePath(path))
	assert.Error(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Count())
}

func TestReadCacheMissing(t *testing.T) {
	_, err := readCache(filepath.Join(t.TempDir(), ".nope.cache"))
	assert.ErrorIs(t, err, errCacheMiss)
}
