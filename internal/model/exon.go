package model

import (
	"fmt"
	"strconv"

	"github.com/cheggaaa/pb/v3"

	"github.com/jdiez/ngsutils/internal/align"
	"github.com/jdiez/ngsutils/internal/gtf"
)

// ExonModel counts reads per segmented sub-region, separating inclusion and
// exclusion evidence to estimate splicing metrics. One gene expands into one
// output row per sub-region via the request callback.
type ExonModel struct {
	annotation *gtf.GTF
	source     string
	quiet      bool
}

// NewExonModel wraps a parsed annotation. source labels the output preamble.
func NewExonModel(annotation *gtf.GTF, source string, quiet bool) *ExonModel {
	return &ExonModel{annotation: annotation, source: source, quiet: quiet}
}

// Name identifies the model in the output preamble.
func (m *ExonModel) Name() string { return "exon" }

// Source returns the annotation path.
func (m *ExonModel) Source() string { return m.source }

// Headers returns the display prefix columns.
func (m *ExonModel) Headers() []string {
	return []string{"gene", "geneid", "isoid", "chrom", "strand", "txstart", "txend"}
}

// PostHeaders returns the per-sub-region columns the callback emits.
func (m *ExonModel) PostHeaders() []string {
	return []string{
		"regionstart", "regionend", "const_count", "region_num",
		"const_alt", "count", "excl_count", "incl_pct", "excl_pct", "alt-index",
	}
}

// Regions yields one count request per gene; each request's callback emits
// one row per sub-region.
func (m *ExonModel) Regions(fn func(*CountRequest) error) error {
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
			Chrom:    gene.Chrom,
			Starts:   starts,
			Ends:     ends,
			Strand:   gene.Strand,
			Cols:     geneCols(gene),
			Callback: exonCallback(gene),
		}); err != nil {
			return err
		}
	}
	return nil
}

// constSpanGroups collects runs of contiguous constant regions. Counting each
// group as one union captures junction reads spanning two constant exons.
func constSpanGroups(gene *gtf.Gene) [][]gtf.Span {
	var groups [][]gtf.Span
	wasConst := false
	for _, r := range gene.Regions() {
		if r.Const {
			if !wasConst {
				groups = append(groups, nil)
			}
			groups[len(groups)-1] = append(groups[len(groups)-1], gtf.Span{Start: r.Start, End: r.End})
			wasConst = true
		} else {
			wasConst = false
		}
	}
	return groups
}

// exonCallback performs the per-sub-region evidence accounting for one gene.
// commonReads covers the whole gene union and anchors the percentage
// denominators; the constant-region count is gathered once and shared by
// every row.
func exonCallback(gene *gtf.Gene) CallbackFunc {
	return func(src align.Source, opts Options, commonCount int, commonReads ReadSet, cols []string, emit func([]string) error) error {
		strand := ""
		if opts.Stranded {
			strand = gene.Strand
		}

		constCount := 0
		for _, group := range constSpanGroups(gene) {
			starts := make([]int, 0, len(group))
			ends := make([]int, 0, len(group))
			for _, s := range group {
				starts = append(starts, s.Start)
				ends = append(ends, s.End)
			}
			count, _, err := fetchReads(src, gene.Chrom, strand, starts, ends, &opts)
			if err != nil {
				return fmt.Errorf("count constant regions of %s: %w", gene.GID, err)
			}
			constCount += count
		}

		for _, region := range gene.Regions() {
			count, reads, err := fetchReads(src, gene.Chrom, strand, []int{region.Start}, []int{region.End}, &opts)
			if err != nil {
				return fmt.Errorf("count region %d of %s: %w", region.Num, gene.GID, err)
			}
			exclCount, exclReads, err := fetchReadsExcluding(src, gene.Chrom, strand, region.Start, region.End, &opts)
			if err != nil {
				return fmt.Errorf("count exclusion of region %d of %s: %w", region.Num, gene.GID, err)
			}

			// A read cannot be evidence for both sides; drop
			// double-counted reads from the inclusion set.
			for key := range exclReads {
				if _, ok := reads[key]; ok {
					delete(reads, key)
					count--
				}
			}

			// Gene-level reads overlapping neither interval anchor the
			// alt-index denominator.
			other := 0
			for key := range commonReads {
				if _, in := reads[key]; in {
					continue
				}
				if _, ex := exclReads[key]; ex {
					continue
				}
				other++
			}

			altIndex := ""
			if other > 0 {
				altIndex = formatFloat(float64(count-exclCount) / float64(other))
			}
			inclPct, exclPct := "", ""
			if len(commonReads) > 0 {
				inclPct = formatFloat(float64(count) / float64(len(commonReads)))
				exclPct = formatFloat(float64(exclCount) / float64(len(commonReads)))
			}

			constAlt := "alt"
			if region.Const {
				constAlt = "const"
			}

			row := make([]string, 0, len(cols)+10)
			row = append(row, cols...)
			row = append(row,
				strconv.Itoa(region.Start),
				strconv.Itoa(region.End),
				strconv.Itoa(constCount),
				strconv.Itoa(region.Num),
				constAlt,
				strconv.Itoa(count),
				strconv.Itoa(exclCount),
				inclPct,
				exclPct,
				altIndex,
			)
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	}
}
