package align

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// BAMSource reads an indexed, coordinate-sorted BAM file.
type BAMSource struct {
	path string
	f    *os.File
	r    *bam.Reader
	idx  *bam.Index
	refs map[string]*sam.Reference
	list []Reference
}

// OpenBAM opens path and its .bai index.
func OpenBAM(path string) (*BAMSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open BAM: %w", err)
	}
	r, err := bam.NewReader(f, 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read BAM header: %w", err)
	}

	idx, err := readBAMIndex(path)
	if err != nil {
		r.Close()
		f.Close()
		return nil, err
	}

	s := &BAMSource{
		path: path,
		f:    f,
		r:    r,
		idx:  idx,
		refs: make(map[string]*sam.Reference),
	}
	for _, ref := range r.Header().Refs() {
		s.refs[ref.Name()] = ref
		s.list = append(s.list, Reference{Name: ref.Name(), Length: ref.Len()})
	}
	return s, nil
}

func readBAMIndex(path string) (*bam.Index, error) {
	idxPath := path + ".bai"
	if _, err := os.Stat(idxPath); err != nil {
		alt := strings.TrimSuffix(path, ".bam") + ".bai"
		if _, aerr := os.Stat(alt); aerr != nil {
			return nil, fmt.Errorf("BAM index not found: %s", idxPath)
		}
		idxPath = alt
	}
	f, err := os.Open(idxPath)
	if err != nil {
		return nil, fmt.Errorf("open BAM index: %w", err)
	}
	defer f.Close()
	idx, err := bam.ReadIndex(f)
	if err != nil {
		return nil, fmt.Errorf("read BAM index: %w", err)
	}
	return idx, nil
}

// Path returns the BAM file path.
func (s *BAMSource) Path() string { return s.path }

// References lists reference names and lengths from the header.
func (s *BAMSource) References() []Reference { return s.list }

// HasReference reports whether the header names chrom.
func (s *BAMSource) HasReference(name string) bool {
	_, ok := s.refs[name]
	return ok
}

// Fetch returns an iterator over records overlapping chrom:[start, end).
func (s *BAMSource) Fetch(chrom string, start, end int) (Iterator, error) {
	ref, ok := s.refs[chrom]
	if !ok {
		return nil, fmt.Errorf("unknown reference %q", chrom)
	}
	chunks, err := s.idx.Chunks(ref, start, end)
	if err != nil {
		// No index data for the interval means no reads there.
		return &bamIterator{}, nil
	}
	it, err := bam.NewIterator(s.r, chunks)
	if err != nil {
		return nil, fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, err)
	}
	return &bamIterator{it: it, start: start, end: end, bounded: true}, nil
}

// Scan iterates every record sequentially using an independent reader, so
// Fetch queries remain valid while a scan is open.
func (s *BAMSource) Scan() (Iterator, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open BAM: %w", err)
	}
	r, err := bam.NewReader(f, 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read BAM header: %w", err)
	}
	return &bamScanner{r: r, f: f}, nil
}

// Close releases the BAM reader and file handle.
func (s *BAMSource) Close() error {
	err := s.r.Close()
	if cerr := s.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// bamIterator adapts bam.Iterator, filtering chunk over-reads to the
// requested interval.
type bamIterator struct {
	it      *bam.Iterator
	start   int
	end     int
	bounded bool
	rec     *Record
}

func (b *bamIterator) Next() bool {
	if b.it == nil {
		return false
	}
	for b.it.Next() {
		rec := b.it.Record()
		if b.bounded && (rec.Pos >= b.end || rec.End() <= b.start) {
			continue
		}
		b.rec = fromSAM(rec)
		return true
	}
	return false
}

func (b *bamIterator) Record() *Record { return b.rec }

func (b *bamIterator) Err() error {
	if b.it == nil {
		return nil
	}
	return b.it.Error()
}

func (b *bamIterator) Close() error {
	if b.it == nil {
		return nil
	}
	return b.it.Close()
}

// bamScanner reads records sequentially to the end of the file.
type bamScanner struct {
	r   *bam.Reader
	f   *os.File
	rec *Record
	err error
}

func (b *bamScanner) Next() bool {
	rec, err := b.r.Read()
	if err != nil {
		if err != io.EOF {
			b.err = err
		}
		return false
	}
	b.rec = fromSAM(rec)
	return true
}

func (b *bamScanner) Record() *Record { return b.rec }
func (b *bamScanner) Err() error      { return b.err }

func (b *bamScanner) Close() error {
	err := b.r.Close()
	if cerr := b.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// fromSAM converts a sam.Record into the engine's view of a read.
func fromSAM(rec *sam.Record) *Record {
	r := &Record{
		Name:      rec.Name,
		Pos:       rec.Pos,
		End:       rec.End(),
		Strand:    "+",
		Mapped:    rec.Flags&sam.Unmapped == 0,
		Secondary: rec.Flags&sam.Secondary != 0,
		Read2:     rec.Flags&sam.Read2 != 0,
		Blocks:    referenceBlocks(rec),
	}
	if rec.Flags&sam.Reverse != 0 {
		r.Strand = "-"
	}
	if n, ok := auxInt(rec, "NH"); ok {
		r.HitCount = n
	} else if n, ok := auxInt(rec, "IH"); ok {
		r.HitCount = n
	}
	return r
}

// referenceBlocks walks the CIGAR and returns the aligned reference segments.
// Deletions extend the current block; skipped reference (N) opens a new one.
func referenceBlocks(rec *sam.Record) []Block {
	var blocks []Block
	pos := rec.Pos
	for _, co := range rec.Cigar {
		t := co.Type()
		con := t.Consumes()
		lr := co.Len() * con.Reference
		if con.Query == 1 && con.Reference == 1 {
			if n := len(blocks); n > 0 && blocks[n-1].End == pos {
				blocks[n-1].End = pos + lr
			} else {
				blocks = append(blocks, Block{Start: pos, End: pos + lr})
			}
		} else if t == sam.CigarDeletion {
			if n := len(blocks); n > 0 && blocks[n-1].End == pos {
				blocks[n-1].End = pos + lr
			}
		}
		pos += lr
	}
	return blocks
}

func auxInt(rec *sam.Record, tag string) (int, bool) {
	aux, ok := rec.Tag([]byte(tag))
	if !ok {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
