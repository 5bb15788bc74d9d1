package model

import (
	"strconv"

	"github.com/jdiez/ngsutils/internal/align"
)

// ReadSet identifies the reads gathered by one query. Keys combine read name
// and position so the same physical alignment fetched by two queries compares
// equal, while distinct alignments of a multi-mapped read do not.
type ReadSet map[string]*align.Record

func readKey(r *align.Record) string {
	return r.Name + "/" + strconv.Itoa(r.Pos)
}

// eligible applies the filters shared by every query: mapped, primary,
// whitelist/blacklist, strand (with second-mate inversion when configured),
// and uniqueness.
func eligible(rec *align.Record, strand string, wl, bl map[string]bool, opts *Options) bool {
	if !rec.Mapped || rec.Secondary {
		return false
	}
	if wl != nil && !wl[rec.Name] {
		return false
	}
	if bl != nil && bl[rec.Name] {
		return false
	}
	if strand != "" && readStrand(rec, opts.RevRead2) != strand {
		return false
	}
	if opts.UniqOnly && rec.HitCount > 1 {
		return false
	}
	return true
}

// readStrand returns the counting strand of a read, inverting second mates
// when revRead2 is set.
func readStrand(rec *align.Record, revRead2 bool) string {
	strand := rec.Strand
	if revRead2 && rec.Read2 {
		if strand == "+" {
			return "-"
		}
		return "+"
	}
	return strand
}

// inUnion reports whether pos falls inside any [starts[i], ends[i]).
func inUnion(pos int, starts, ends []int) bool {
	for i := range starts {
		if pos >= starts[i] && pos < ends[i] {
			return true
		}
	}
	return false
}

// blocksWithinUnion reports whether every aligned block of rec lies inside
// the sub-interval union.
func blocksWithinUnion(rec *align.Record, starts, ends []int) bool {
	for _, b := range rec.Blocks {
		covered := false
		for i := range starts {
			if b.Start >= starts[i] && b.End <= ends[i] {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// blocksOverlapUnion reports whether any aligned block of rec intersects the
// sub-interval union.
func blocksOverlapUnion(rec *align.Record, starts, ends []int) bool {
	for i := range starts {
		if rec.OverlapsBlocks(starts[i], ends[i]) {
			return true
		}
	}
	return false
}

// fetchReads counts the reads overlapping the union of sub-intervals on
// chrom, subject to the configured filters. A read spanning two sub-intervals
// is counted once. Unknown chromosomes yield zero counts.
func fetchReads(src align.Source, chrom, strand string, starts, ends []int, opts *Options) (int, ReadSet, error) {
	reads := make(ReadSet)
	if !src.HasReference(chrom) {
		return 0, reads, nil
	}

	wl := toSet(opts.Whitelist)
	bl := toSet(opts.Blacklist)

	for i := range starts {
		it, err := src.Fetch(chrom, starts[i], ends[i])
		if err != nil {
			return 0, nil, err
		}
		for it.Next() {
			rec := it.Record()
			key := readKey(rec)
			if _, seen := reads[key]; seen {
				continue
			}
			if !eligible(rec, strand, wl, bl, opts) {
				continue
			}
			switch {
			case opts.StartOnly:
				if !inUnion(rec.FivePrime(), starts, ends) {
					continue
				}
			case opts.multiple() == MultipleComplete:
				if !blocksWithinUnion(rec, starts, ends) {
					continue
				}
			default:
				if !blocksOverlapUnion(rec, starts, ends) {
					continue
				}
			}
			reads[key] = rec
		}
		cerr := it.Close()
		if err := it.Err(); err != nil {
			return 0, nil, err
		}
		if cerr != nil {
			return 0, nil, cerr
		}
	}
	return len(reads), reads, nil
}

// fetchReadsExcluding counts the reads that span chrom:[start, end) without
// any aligned block falling inside it: junction reads that skip the region,
// positive evidence of exclusion.
func fetchReadsExcluding(src align.Source, chrom, strand string, start, end int, opts *Options) (int, ReadSet, error) {
	reads := make(ReadSet)
	if !src.HasReference(chrom) {
		return 0, reads, nil
	}

	wl := toSet(opts.Whitelist)
	bl := toSet(opts.Blacklist)

	it, err := src.Fetch(chrom, start, end)
	if err != nil {
		return 0, nil, err
	}
	for it.Next() {
		rec := it.Record()
		key := readKey(rec)
		if _, seen := reads[key]; seen {
			continue
		}
		if !eligible(rec, strand, wl, bl, opts) {
			continue
		}
		if rec.OverlapsBlocks(start, end) {
			continue
		}
		reads[key] = rec
	}
	cerr := it.Close()
	if err := it.Err(); err != nil {
		return 0, nil, err
	}
	if cerr != nil {
		return 0, nil, cerr
	}
	return len(reads), reads, nil
}

// findMappedCount counts the primary mapped reads in the whole source,
// honoring the whitelist/blacklist. Used as the NormAll basis.
func findMappedCount(src align.Source, opts *Options) (int, error) {
	wl := toSet(opts.Whitelist)
	bl := toSet(opts.Blacklist)

	it, err := src.Scan()
	if err != nil {
		return 0, err
	}
	count := 0
	for it.Next() {
		rec := it.Record()
		if !rec.Mapped || rec.Secondary {
			continue
		}
		if wl != nil && !wl[rec.Name] {
			continue
		}
		if bl != nil && bl[rec.Name] {
			continue
		}
		count++
	}
	cerr := it.Close()
	if err := it.Err(); err != nil {
		return 0, err
	}
	if cerr != nil {
		return 0, cerr
	}
	return count, nil
}

// meanCoverage returns the mean per-base depth over the sub-interval union
// given the reads fetched for it.
func meanCoverage(reads ReadSet, starts, ends []int, length int) float64 {
	if length == 0 {
		return 0
	}
	covered := 0
	for _, rec := range reads {
		for _, b := range rec.Blocks {
			for i := range starts {
				lo, hi := b.Start, b.End
				if lo < starts[i] {
					lo = starts[i]
				}
				if hi > ends[i] {
					hi = ends[i]
				}
				if hi > lo {
					covered += hi - lo
				}
			}
		}
	}
	return float64(covered) / float64(length)
}
