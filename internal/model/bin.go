package model

import (
	"strconv"

	"github.com/cheggaaa/pb/v3"

	"github.com/jdiez/ngsutils/internal/align"
)

// BinModel counts reads over contiguous fixed-width genome windows, plus one
// final partial window per chromosome for any remainder. In stranded mode
// every window is emitted twice, once per strand.
type BinModel struct {
	binSize  int
	refs     []align.Reference
	stranded bool
	quiet    bool
}

// NewBinModel builds bins of binSize bases over the given references.
func NewBinModel(binSize int, refs []align.Reference, stranded, quiet bool) *BinModel {
	return &BinModel{binSize: binSize, refs: refs, stranded: stranded, quiet: quiet}
}

// Name identifies the model in the output preamble.
func (m *BinModel) Name() string { return "bin" }

// Source returns the bin width.
func (m *BinModel) Source() string { return strconv.Itoa(m.binSize) }

// Headers returns the display prefix columns.
func (m *BinModel) Headers() []string {
	return []string{"chrom", "start", "end", "strand"}
}

// Regions yields one request per window (two in stranded mode).
func (m *BinModel) Regions(fn func(*CountRequest) error) error {
	var bar *pb.ProgressBar
	if !m.quiet {
		bar = pb.StartNew(m.totalBins())
		defer bar.Finish()
	}

	emit := func(chrom string, start, end int) error {
		if bar != nil {
			bar.Increment()
		}
		strands := []string{"+"}
		if m.stranded {
			strands = []string{"+", "-"}
		}
		for _, strand := range strands {
			req := &CountRequest{
				Chrom:  chrom,
				Starts: []int{start},
				Ends:   []int{end},
				Strand: strand,
				Cols:   []string{chrom, strconv.Itoa(start), strconv.Itoa(end), strand},
			}
			if err := fn(req); err != nil {
				return err
			}
		}
		return nil
	}

	for _, ref := range m.refs {
		if ref.Length <= 0 {
			continue
		}
		pos := 0
		for pos+m.binSize < ref.Length {
			if err := emit(ref.Name, pos, pos+m.binSize); err != nil {
				return err
			}
			pos += m.binSize
		}
		// Final window, partial when the length is not a bin multiple.
		if err := emit(ref.Name, pos, ref.Length); err != nil {
			return err
		}
	}
	return nil
}

func (m *BinModel) totalBins() int {
	total := 0
	for _, ref := range m.refs {
		if ref.Length <= 0 {
			continue
		}
		total += ref.Length / m.binSize
		if ref.Length%m.binSize != 0 {
			total += 1
		}
	}
	return total
}
