// Package align abstracts the alignment source consumed by the counting
// engine. The concrete backend is a coordinate-sorted, indexed BAM file; an
// in-memory implementation backs tests.
package align

// Reference names one sequence in the alignment source.
type Reference struct {
	Name   string
	Length int
}

// Block is an aligned reference segment derived from the CIGAR. Gaps between
// blocks correspond to skipped reference (splice junctions).
type Block struct {
	Start int
	End   int
}

// Record is one read alignment in 0-based half-open coordinates.
type Record struct {
	Name      string
	Pos       int
	End       int
	Strand    string // "+" or "-"
	Mapped    bool
	Secondary bool
	Read2     bool
	HitCount  int // NH/IH-style alignment count; 0 when the tag is absent
	Blocks    []Block
}

// FivePrime returns the position of the read's 5'-most aligned base.
func (r *Record) FivePrime() int {
	if r.Strand == "-" {
		return r.End - 1
	}
	return r.Pos
}

// OverlapsBlocks reports whether any aligned block intersects [start, end).
func (r *Record) OverlapsBlocks(start, end int) bool {
	for _, b := range r.Blocks {
		if b.Start < end && b.End > start {
			return true
		}
	}
	return false
}

// Iterator walks alignment records. Close releases any underlying resources.
type Iterator interface {
	Next() bool
	Record() *Record
	Err() error
	Close() error
}

// Source provides read-only, re-enterable access to aligned reads. Fetch may
// be called many times per region; each call is an independent query.
type Source interface {
	Path() string
	References() []Reference
	HasReference(name string) bool

	// Fetch iterates records whose alignment span overlaps
	// chrom:[start, end).
	Fetch(chrom string, start, end int) (Iterator, error)

	// Scan iterates every record in the source.
	Scan() (Iterator, error)

	Close() error
}
