package model

import (
	"strconv"

	"github.com/cheggaaa/pb/v3"

	"github.com/jdiez/ngsutils/internal/gtf"
)

// GeneModel counts reads over whole genes: one request per gene covering the
// union of its segmented regions, one output row per gene.
type GeneModel struct {
	annotation *gtf.GTF
	source     string
	quiet      bool
}

// NewGeneModel wraps a parsed annotation. source labels the output preamble.
func NewGeneModel(annotation *gtf.GTF, source string, quiet bool) *GeneModel {
	return &GeneModel{annotation: annotation, source: source, quiet: quiet}
}

// Name identifies the model in the output preamble.
func (m *GeneModel) Name() string { return "gtf" }

// Source returns the annotation path.
func (m *GeneModel) Source() string { return m.source }

// Headers returns the display prefix columns.
func (m *GeneModel) Headers() []string {
	return []string{"gene", "geneid", "isoid", "chrom", "strand", "txstart", "txend"}
}

// Regions yields one count request per gene in chromosome/start order.
func (m *GeneModel) Regions(fn func(*CountRequest) error) error {
	var bar *pb.ProgressBar
	if !m.quiet {
		bar = pb.StartNew(m.annotation.Count())
		defer bar.Finish()
	}

	for _, gene := range m.annotation.Genes() {
		if bar != nil {
			bar.Increment()
		}
		starts, ends := regionSpans(gene)
		if err := fn(&CountRequest{
			Chrom:  gene.Chrom,
			Starts: starts,
			Ends:   ends,
			Strand: gene.Strand,
			Cols:   geneCols(gene),
		}); err != nil {
			return err
		}
	}
	return nil
}

// regionSpans flattens a gene's segmented regions into parallel start/end
// lists. The regions already encompass every exon.
func regionSpans(gene *gtf.Gene) (starts, ends []int) {
	regions := gene.Regions()
	starts = make([]int, 0, len(regions))
	ends = make([]int, 0, len(regions))
	for _, r := range regions {
		starts = append(starts, r.Start)
		ends = append(ends, r.End)
	}
	return starts, ends
}

func geneCols(gene *gtf.Gene) []string {
	return []string{
		gene.GeneName,
		gene.GeneID,
		gene.IsoformID,
		gene.Chrom,
		gene.Strand,
		strconv.Itoa(gene.Start),
		strconv.Itoa(gene.End),
	}
}
