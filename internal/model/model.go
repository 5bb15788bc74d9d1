// Package model implements the region-model family and the read-overlap
// counting engine that drives them. A model turns its data source (gene
// annotation, fixed bins, BED intervals, repeat catalogs) into a lazy
// sequence of count requests; the shared Count driver overlaps reads against
// each request and writes one output row per region.
package model

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/jdiez/ngsutils/internal/align"
)

// ErrUnsupportedConfiguration reports an option that the selected model
// cannot honor. It is fatal and detected before any output is written.
var ErrUnsupportedConfiguration = errors.New("unsupported configuration")

// Multi-mapping overlap policies.
const (
	// MultipleComplete counts a read only when every aligned block falls
	// inside the queried sub-interval union.
	MultipleComplete = "complete"
	// MultiplePartial counts a read on any aligned-block overlap.
	MultiplePartial = "partial"
)

// Normalization bases.
const (
	// NormAll scales by the total mapped-read count of the source.
	NormAll = "all"
	// NormMapped scales by the sum of counts produced by the model itself.
	NormMapped = "mapped"
)

// CallbackFunc expands one count request into multiple fully-formed output
// rows. Only the exon model uses this: one gene yields one row per
// sub-region. commonCount/commonReads cover the whole request union.
type CallbackFunc func(src align.Source, opts Options, commonCount int, commonReads ReadSet, cols []string, emit func(row []string) error) error

// CountRequest is one unit of counting work: the genomic span(s) to query,
// the display prefix columns for the output row, and an optional callback
// for multi-row expansion.
type CountRequest struct {
	Chrom    string
	Starts   []int
	Ends     []int
	Strand   string // "+", "-", or "" for unstranded
	Cols     []string
	Callback CallbackFunc
}

// Length returns the summed length of the request's sub-intervals.
func (r *CountRequest) Length() int {
	total := 0
	for i := range r.Starts {
		total += r.Ends[i] - r.Starts[i]
	}
	return total
}

// Model is a region source. Regions produces a lazy, finite, single-pass
// sequence of count requests in output order.
type Model interface {
	Name() string
	Source() string
	Headers() []string
	Regions(fn func(*CountRequest) error) error
}

// PostHeaderer is implemented by models whose callback rows carry extra
// columns after the display prefix (the exon model).
type PostHeaderer interface {
	PostHeaders() []string
}

// CustomCounter replaces the shared counting loop wholesale. The
// repeat-family model implements it: family counts aggregate over
// non-contiguous genomic locations, so the per-request loop does not apply.
type CustomCounter interface {
	Count(src align.Source, opts Options, w io.Writer) error
}

// Options configure a counting run.
type Options struct {
	Stranded  bool
	Coverage  bool
	UniqOnly  bool
	FPKM      bool
	Norm      string // "", NormAll or NormMapped
	Multiple  string // MultipleComplete (default) or MultiplePartial
	Whitelist []string
	Blacklist []string
	RevRead2  bool
	StartOnly bool
	Quiet     bool
	Logger    *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Options) multiple() string {
	if o.Multiple == "" {
		return MultipleComplete
	}
	return o.Multiple
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
