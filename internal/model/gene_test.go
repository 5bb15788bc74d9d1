package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdiez/ngsutils/internal/align"
	"github.com/jdiez/ngsutils/internal/gtf"
)

func TestGeneModelRegions(t *testing.T) {
	annotation, err := gtf.Parse(strings.NewReader(exonAnnotation))
	require.NoError(t, err)

	m := NewGeneModel(annotation, "genes.gtf", true)
	assert.Equal(t, "gtf", m.Name())
	assert.Equal(t, "genes.gtf", m.Source())

	var reqs []*CountRequest
	require.NoError(t, m.Regions(func(req *CountRequest) error {
		reqs = append(reqs, req)
		return nil
	}))

	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, "chr1", req.Chrom)
	assert.Equal(t, []int{100, 120, 140}, req.Starts)
	assert.Equal(t, []int{110, 130, 150}, req.Ends)
	assert.Equal(t, "+", req.Strand)
	assert.Equal(t, []string{"g1", "g1", "g1", "chr1", "+", "100", "150"}, req.Cols)
	assert.Nil(t, req.Callback)
	assert.Equal(t, 30, req.Length())
}

func TestGeneModelCounting(t *testing.T) {
	annotation, err := gtf.Parse(strings.NewReader(exonAnnotation))
	require.NoError(t, err)

	src := exonSource()
	m := NewGeneModel(annotation, "genes.gtf", true)

	var sb strings.Builder
	require.NoError(t, Count(m, src, Options{Quiet: true}, &sb))
	out := sb.String()

	assert.Contains(t, out, "## model gtf genes.gtf\n")
	rows := dataRows(t, out)
	require.Len(t, rows, 1)
	// All three reads align completely within the exonic union: the
	// junction read's blocks land in two separate regions.
	assert.Equal(t, "g1\tg1\tg1\tchr1\t+\t100\t150\t30\t3", rows[0])
}

func TestBEDModelRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.bed")
	require.NoError(t, os.WriteFile(path, []byte(
		"track name=\"x\"\nchr1\t100\t200\tr1\t0\t-\nchr2\t10\t20\n"), 0o644))

	m := NewBEDModel(path)
	var reqs []*CountRequest
	require.NoError(t, m.Regions(func(req *CountRequest) error {
		reqs = append(reqs, req)
		return nil
	}))

	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"chr1", "100", "200", "r1", "0", "-"}, reqs[0].Cols)
	assert.Equal(t, "-", reqs[0].Strand)
	assert.Equal(t, []string{"chr2", "10", "20", "", "", "+"}, reqs[1].Cols)
}

func TestBinModelWindows(t *testing.T) {
	m := NewBinModel(10, []align.Reference{
		{Name: "chr1", Length: 25},
		{Name: "chrEmpty", Length: 0},
		{Name: "chr2", Length: 20},
	}, false, true)

	type window struct {
		chrom      string
		start, end int
	}
	var got []window
	require.NoError(t, m.Regions(func(req *CountRequest) error {
		got = append(got, window{req.Chrom, req.Starts[0], req.Ends[0]})
		return nil
	}))

	assert.Equal(t, []window{
		{"chr1", 0, 10},
		{"chr1", 10, 20},
		{"chr1", 20, 25},
		{"chr2", 0, 10},
		{"chr2", 10, 20},
	}, got)
}
