package gtf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sereal/Sereal/Go/sereal"
)

// cacheVersion tags the side-car blob. Any mismatch discards the cache and
// forces a reparse.
const cacheVersion = 1

var errCacheMiss = errors.New("annotation cache not present")

// cacheBlob is the serialized form of a parsed annotation.
type cacheBlob struct {
	Version int
	Genes   map[string]*Gene
	Order   map[string][]geneRef
	Names   map[string][]string
	IDs     map[string]string
}

// cachePath returns the hidden side-car path next to the source file.
func cachePath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+".cache")
}

// readCache loads a cache blob, verifying the embedded version. Every failure
// mode is an error for the caller to recover from by reparsing.
func readCache(path string) (*cacheBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errCacheMiss
		}
		return nil, err
	}

	var blob cacheBlob
	if err := sereal.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if blob.Version != cacheVersion {
		return nil, fmt.Errorf("cache version %d, want %d", blob.Version, cacheVersion)
	}
	if blob.Genes == nil || blob.Order == nil {
		return nil, errors.New("cache blob incomplete")
	}
	return &blob, nil
}

// writeCache persists the parsed annotation next to its source. Failures are
// non-fatal; the caller only logs them.
func writeCache(path string, g *GTF) error {
	data, err := sereal.Marshal(&cacheBlob{
		Version: cacheVersion,
		Genes:   g.genes,
		Order:   g.order,
		Names:   g.names,
		IDs:     g.ids,
	})
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
