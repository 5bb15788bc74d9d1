package align

import "sort"

// MemSource is an in-memory Source used by tests and by callers that already
// hold their reads.
type MemSource struct {
	Name    string
	Refs    []Reference
	Records map[string][]*Record // keyed by reference name
}

// NewMemSource creates an empty in-memory source.
func NewMemSource(name string, refs ...Reference) *MemSource {
	return &MemSource{
		Name:    name,
		Refs:    refs,
		Records: make(map[string][]*Record),
	}
}

// Add appends a record on chrom. Missing End and Blocks are derived from
// the record span for convenience.
func (s *MemSource) Add(chrom string, rec *Record) {
	if rec.End == 0 && len(rec.Blocks) > 0 {
		rec.End = rec.Blocks[len(rec.Blocks)-1].End
	}
	if len(rec.Blocks) == 0 {
		rec.Blocks = []Block{{Start: rec.Pos, End: rec.End}}
	}
	s.Records[chrom] = append(s.Records[chrom], rec)
}

// Path returns the source label.
func (s *MemSource) Path() string { return s.Name }

// References lists the configured references.
func (s *MemSource) References() []Reference { return s.Refs }

// HasReference reports whether name is a configured reference.
func (s *MemSource) HasReference(name string) bool {
	for _, r := range s.Refs {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Fetch returns the records whose span overlaps chrom:[start, end).
func (s *MemSource) Fetch(chrom string, start, end int) (Iterator, error) {
	var recs []*Record
	for _, rec := range s.Records[chrom] {
		if rec.Pos < end && rec.End > start {
			recs = append(recs, rec)
		}
	}
	return &sliceIterator{recs: recs}, nil
}

// Scan returns every record, chromosome by chromosome in sorted order.
func (s *MemSource) Scan() (Iterator, error) {
	chroms := make([]string, 0, len(s.Records))
	for chrom := range s.Records {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)

	var recs []*Record
	for _, chrom := range chroms {
		recs = append(recs, s.Records[chrom]...)
	}
	return &sliceIterator{recs: recs}, nil
}

// Close is a no-op.
func (s *MemSource) Close() error { return nil }

type sliceIterator struct {
	recs []*Record
	i    int
	rec  *Record
}

func (it *sliceIterator) Next() bool {
	if it.i >= len(it.recs) {
		return false
	}
	it.rec = it.recs[it.i]
	it.i++
	return true
}

func (it *sliceIterator) Record() *Record { return it.rec }
func (it *sliceIterator) Err() error      { return nil }
func (it *sliceIterator) Close() error    { return nil }
