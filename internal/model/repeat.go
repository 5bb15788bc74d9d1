package model

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jdiez/ngsutils/internal/align"
	"github.com/jdiez/ngsutils/internal/fileutil"
)

// repeatHit is one row of a RepeatMasker-style catalog.
type repeatHit struct {
	Family string
	Member string
	Chrom  string
	Start  int
	End    int
	Strand string
}

// readRepeats streams a RepeatMasker output table: whitespace-delimited
// columns after a fixed 3-line header, 1-based starts.
func readRepeats(path string, fn func(repeatHit) error) error {
	rc, err := fileutil.Open(path)
	if err != nil {
		return fmt.Errorf("open repeat catalog: %w", err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= 3 {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cols := strings.Fields(line)
		if len(cols) < 11 {
			return fmt.Errorf("malformed repeat record: %s", line)
		}
		start, err := strconv.Atoi(cols[5])
		if err != nil {
			return fmt.Errorf("malformed repeat start in: %s", line)
		}
		end, err := strconv.Atoi(cols[6])
		if err != nil {
			return fmt.Errorf("malformed repeat end in: %s", line)
		}
		strand := "-"
		if cols[8] == "+" {
			strand = "+"
		}
		if err := fn(repeatHit{
			Family: cols[10],
			Member: cols[9],
			Chrom:  cols[4],
			Start:  start - 1,
			End:    end,
			Strand: strand,
		}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// RepeatModel counts reads over individual repeat elements, one row each.
type RepeatModel struct {
	path string
}

// NewRepeatModel counts over the repeat catalog at path.
func NewRepeatModel(path string) *RepeatModel {
	return &RepeatModel{path: path}
}

// Name identifies the model in the output preamble.
func (m *RepeatModel) Name() string { return "repeat" }

// Source returns the catalog path.
func (m *RepeatModel) Source() string { return m.path }

// Headers returns the display prefix columns.
func (m *RepeatModel) Headers() []string {
	return []string{"family", "repeat", "chrom", "start", "end", "strand"}
}

// Regions yields one request per catalog record in file order.
func (m *RepeatModel) Regions(fn func(*CountRequest) error) error {
	return readRepeats(m.path, func(hit repeatHit) error {
		return fn(&CountRequest{
			Chrom:  hit.Chrom,
			Starts: []int{hit.Start},
			Ends:   []int{hit.End},
			Strand: hit.Strand,
			Cols: []string{
				hit.Family,
				hit.Member,
				hit.Chrom,
				strconv.Itoa(hit.Start),
				strconv.Itoa(hit.End),
				hit.Strand,
			},
		})
	})
}

// RepeatFamilyModel aggregates counts across every genomic copy of a repeat,
// keyed by (family, member), with a family-wide rollup under member "*".
// Counting is structurally unlike the shared loop, so it replaces it via
// CustomCounter.
type RepeatFamilyModel struct {
	path string
}

// NewRepeatFamilyModel aggregates over the repeat catalog at path.
func NewRepeatFamilyModel(path string) *RepeatFamilyModel {
	return &RepeatFamilyModel{path: path}
}

// Name identifies the model in the output preamble.
func (m *RepeatFamilyModel) Name() string { return "repeatfam" }

// Source returns the catalog path.
func (m *RepeatFamilyModel) Source() string { return m.path }

// Headers returns the display prefix columns.
func (m *RepeatFamilyModel) Headers() []string {
	return []string{"family", "repeat"}
}

// Regions is unused; RepeatFamilyModel counts through the Count override.
func (m *RepeatFamilyModel) Regions(fn func(*CountRequest) error) error {
	return readRepeats(m.path, func(hit repeatHit) error {
		return fn(&CountRequest{
			Chrom:  hit.Chrom,
			Starts: []int{hit.Start},
			Ends:   []int{hit.End},
			Strand: hit.Strand,
			Cols:   []string{hit.Family, hit.Member},
		})
	})
}

type familyKey struct {
	Family string
	Member string
}

type familyTally struct {
	count int
	size  int
}

// Count aggregates read counts per repeat family/member across all genomic
// locations. Multi-mapped reads are counted at every location they hit; no
// fractional weighting is applied.
func (m *RepeatFamilyModel) Count(src align.Source, opts Options, w io.Writer) error {
	if opts.Coverage {
		return fmt.Errorf("%w: coverage not supported by the repeatfam model", ErrUnsupportedConfiguration)
	}
	switch opts.Norm {
	case "", NormAll, NormMapped:
	default:
		return fmt.Errorf("%w: normalization %q not supported by the repeatfam model", ErrUnsupportedConfiguration, opts.Norm)
	}

	tallies := make(map[familyKey]*familyTally)
	get := func(k familyKey) *familyTally {
		t, ok := tallies[k]
		if !ok {
			t = &familyTally{}
			tallies[k] = t
		}
		return t
	}

	totalCount := 0
	err := readRepeats(m.path, func(hit repeatHit) error {
		member := get(familyKey{hit.Family, hit.Member})
		family := get(familyKey{hit.Family, "*"})

		if !src.HasReference(hit.Chrom) {
			return nil
		}

		size := hit.End - hit.Start
		member.size += size
		family.size += size

		strand := ""
		if opts.Stranded {
			strand = hit.Strand
		}
		count, _, err := fetchReads(src, hit.Chrom, strand, []int{hit.Start}, []int{hit.End}, &opts)
		if err != nil {
			return fmt.Errorf("count %s|%s at %s:%d-%d: %w", hit.Family, hit.Member, hit.Chrom, hit.Start, hit.End, err)
		}
		member.count += count
		family.count += count
		totalCount += count
		return nil
	})
	if err != nil {
		return err
	}

	basis := -1.0
	switch opts.Norm {
	case NormAll:
		n, err := findMappedCount(src, &opts)
		if err != nil {
			return fmt.Errorf("count mapped reads: %w", err)
		}
		basis = float64(n)
	case NormMapped:
		basis = float64(totalCount)
	}
	factor := cpmFactor(basis)

	tw := newTableWriter(w)
	if err := tw.preamble(src, m, &opts, basis, factor); err != nil {
		return err
	}
	if err := tw.header(m.Headers(), nil, &opts, factor > 0); err != nil {
		return err
	}

	keys := make([]familyKey, 0, len(tallies))
	for k := range tallies {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Family != keys[j].Family {
			return keys[i].Family < keys[j].Family
		}
		return keys[i].Member < keys[j].Member
	})

	// Family-level rollups first, then individual members.
	for _, familyLevel := range []bool{true, false} {
		for _, k := range keys {
			if (k.Member == "*") != familyLevel {
				continue
			}
			tally := tallies[k]
			if err := tw.countRow([]string{k.Family, k.Member}, tally.size, float64(tally.count), factor, opts.FPKM); err != nil {
				return err
			}
		}
	}

	return tw.flush()
}
