package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdiez/ngsutils/internal/align"
	"github.com/jdiez/ngsutils/internal/gtf"
)

const exonAnnotation = `chr1	test	exon	101	110	.	+	.	gene_id "g1"; transcript_id "t1";
chr1	test	exon	121	130	.	+	.	gene_id "g1"; transcript_id "t1";
chr1	test	exon	141	150	.	+	.	gene_id "g1"; transcript_id "t1";
chr1	test	exon	101	110	.	+	.	gene_id "g1"; transcript_id "t2";
chr1	test	exon	141	150	.	+	.	gene_id "g1"; transcript_id "t2";
`

func exonSource() *align.MemSource {
	src := align.NewMemSource("test.bam", align.Reference{Name: "chr1", Length: 1000})
	// Constant-exon read.
	src.Add("chr1", read("c1", 100, align.Block{Start: 100, End: 108}))
	// Inclusion evidence for the middle exon.
	src.Add("chr1", read("i1", 122, align.Block{Start: 122, End: 128}))
	// Junction read skipping the middle exon: exclusion evidence.
	src.Add("chr1", read("e1", 105,
		align.Block{Start: 105, End: 110},
		align.Block{Start: 140, End: 145}))
	return src
}

func TestExonModelCounting(t *testing.T) {
	annotation, err := gtf.Parse(strings.NewReader(exonAnnotation))
	require.NoError(t, err)

	src := exonSource()
	m := NewExonModel(annotation, "genes.gtf", true)

	var sb strings.Builder
	require.NoError(t, Count(m, src, Options{Multiple: MultiplePartial, Quiet: true}, &sb))
	out := sb.String()

	assert.Contains(t, out, "## model exon genes.gtf\n")
	assert.Contains(t, out,
		"#gene\tgeneid\tisoid\tchrom\tstrand\ttxstart\ttxend\t"+
			"regionstart\tregionend\tconst_count\tregion_num\tconst_alt\tcount\texcl_count\tincl_pct\texcl_pct\talt-index\n")

	rows := dataRows(t, out)
	require.Len(t, rows, 3)

	prefix := "g1\tg1\tg1\tchr1\t+\t100\t150\t"

	// First constant exon: c1 and e1 included, nothing excluded; i1 is the
	// only gene read in neither set.
	assert.Equal(t, prefix+"100\t110\t3\t1\tconst\t2\t0\t0.6666666666666666\t0\t2", rows[0])

	// Middle exon: i1 includes it, the junction read e1 excludes it, c1
	// anchors the alt-index denominator.
	assert.Equal(t, prefix+"120\t130\t3\t2\talt\t1\t1\t0.3333333333333333\t0.3333333333333333\t0", rows[1])

	// Second constant exon: only the junction read reaches it.
	assert.Equal(t, prefix+"140\t150\t3\t3\tconst\t1\t0\t0.3333333333333333\t0\t0.5", rows[2])
}

func TestExonModelTouchingJunctionReadIsInclusion(t *testing.T) {
	// A junction read with an aligned block inside the region is inclusion
	// evidence for it, even though the read also spans past the region.
	annotation, err := gtf.Parse(strings.NewReader(exonAnnotation))
	require.NoError(t, err)

	src := align.NewMemSource("test.bam", align.Reference{Name: "chr1", Length: 1000})
	src.Add("chr1", read("both", 105,
		align.Block{Start: 105, End: 110},
		align.Block{Start: 122, End: 125},
		align.Block{Start: 140, End: 145}))

	m := NewExonModel(annotation, "genes.gtf", true)
	var sb strings.Builder
	require.NoError(t, Count(m, src, Options{Multiple: MultiplePartial, Quiet: true}, &sb))

	rows := dataRows(t, sb.String())
	require.Len(t, rows, 3)
	middle := strings.Split(rows[1], "\t")
	assert.Equal(t, "1", middle[12], "count")
	assert.Equal(t, "0", middle[13], "excl_count")
}

func TestExonModelBlankMetricsWithoutReads(t *testing.T) {
	// No reads at all: percentages and alt-index are blank cells, never a
	// division error or a spurious zero.
	annotation, err := gtf.Parse(strings.NewReader(exonAnnotation))
	require.NoError(t, err)

	src := align.NewMemSource("test.bam", align.Reference{Name: "chr1", Length: 1000})
	m := NewExonModel(annotation, "genes.gtf", true)

	var sb strings.Builder
	require.NoError(t, Count(m, src, Options{Quiet: true}, &sb))

	rows := dataRows(t, sb.String())
	require.Len(t, rows, 3)
	for _, row := range rows {
		cols := strings.Split(row, "\t")
		require.Len(t, cols, 17)
		assert.Equal(t, "0", cols[12], "count")
		assert.Equal(t, "0", cols[13], "excl_count")
		assert.Empty(t, cols[14], "incl_pct")
		assert.Empty(t, cols[15], "excl_pct")
		assert.Empty(t, cols[16], "alt-index")
	}
}

func TestExonModelRejectsMappedNormAndCoverage(t *testing.T) {
	annotation, err := gtf.Parse(strings.NewReader(exonAnnotation))
	require.NoError(t, err)
	m := NewExonModel(annotation, "genes.gtf", true)
	src := exonSource()

	var sb strings.Builder
	err = Count(m, src, Options{Norm: NormMapped, Quiet: true}, &sb)
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)

	err = Count(m, src, Options{Coverage: true, Quiet: true}, &sb)
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestConstSpanGroups(t *testing.T) {
	annotation, err := gtf.Parse(strings.NewReader(exonAnnotation))
	require.NoError(t, err)

	gene := annotation.GetByID("g1")
	require.NotNil(t, gene)

	groups := constSpanGroups(gene)
	require.Len(t, groups, 2, "the alternative middle exon splits the constant regions")
	assert.Equal(t, []gtf.Span{{Start: 100, End: 110}}, groups[0])
	assert.Equal(t, []gtf.Span{{Start: 140, End: 150}}, groups[1])
}
