package gtf

import "strings"

// Region is a maximal run of bases covered by an identical set of transcripts.
// Const is true iff every transcript whose own exon-derived span contains the
// run also covers it. Names lists the covering transcripts, comma-joined, in
// transcript order.
type Region struct {
	Num   int
	Start int
	End   int
	Const bool
	Names string
}

// CalcRegions segments [txStart, txEnd) into constant/alternative regions.
//
// Each transcript is assigned one bit; every base of every exon span sets that
// bit in a per-base mask. A left-to-right scan closes a region whenever the
// mask changes, dropping zero-mask runs (uncovered gaps). The mask is a flat
// word array, so genes with more than 64 transcripts widen naturally.
//
// A transcript only participates in the const/alt decision for runs that fall
// inside its own exon-derived span. A short transcript therefore never flags
// a 5'/3' overhang of its siblings as alternative; the overhang itself becomes
// an alt region attributed to the transcripts that reach it.
func CalcRegions(txStart, txEnd int, names []string, exons [][]Span) []Region {
	length := txEnd - txStart
	if length <= 0 || len(names) == 0 {
		return nil
	}

	words := (len(names) + 63) / 64
	backing := make([]uint64, length*words)
	maskAt := func(i int) []uint64 { return backing[i*words : (i+1)*words] }

	// Transcript extent for the const/alt decision: first exon start to last
	// exon end in file order.
	extents := make([]Span, len(names))
	for ti, spans := range exons {
		if len(spans) == 0 {
			continue
		}
		extents[ti] = Span{spans[0].Start, spans[len(spans)-1].End}
		word, bit := ti/64, uint64(1)<<(ti%64)
		for _, s := range spans {
			for p := s.Start - txStart; p < s.End-txStart; p++ {
				backing[p*words+word] |= bit
			}
		}
	}

	var regions []Region
	addRegion := func(start, end int, val []uint64) {
		rstart := start + txStart
		rend := end + txStart
		isConst := true
		var contrib []string
		for ti, name := range names {
			if len(exons[ti]) == 0 {
				continue
			}
			if rstart >= extents[ti].Start && rend <= extents[ti].End {
				if val[ti/64]&(uint64(1)<<(ti%64)) == 0 {
					isConst = false
				} else {
					contrib = append(contrib, name)
				}
			}
		}
		regions = append(regions, Region{
			Num:   len(regions) + 1,
			Start: rstart,
			End:   rend,
			Const: isConst,
			Names: strings.Join(contrib, ","),
		})
	}

	last := make([]uint64, words)
	regionStart := 0
	for i := 0; i < length; i++ {
		cur := maskAt(i)
		if wordsEqual(cur, last) {
			continue
		}
		if !wordsZero(last) {
			addRegion(regionStart, i, last)
		}
		regionStart = i
		copy(last, cur)
	}
	// Flush the final open run.
	if !wordsZero(last) {
		addRegion(regionStart, length, last)
	}

	return regions
}

func wordsEqual(a, b []uint64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func wordsZero(a []uint64) bool {
	for _, w := range a {
		if w != 0 {
			return false
		}
	}
	return true
}
