package gtf

// Span is a half-open [Start, End) interval in 0-based genomic coordinates.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bases covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Gene groups the transcripts that share one model-level id. The id is the
// isoform_id attribute when the annotation carries one, otherwise the raw
// gene_id.
type Gene struct {
	GID       string
	GeneID    string
	GeneName  string
	IsoformID string
	Chrom     string
	Source    string
	Strand    string
	Start     int
	End       int

	// Transcripts maps transcript id to record. Order preserves first-seen
	// file order so bitmask assignment and region contributor lists are
	// deterministic.
	Transcripts map[string]*Transcript
	Order       []string

	regions []Region
}

// Transcript is a single isoform within a gene.
type Transcript struct {
	ID         string
	Strand     string
	Start      int
	End        int
	ExonSpans  []Span
	CDSSpans   []Span
	StartCodon *Span
	StopCodon  *Span
}

func newGene(gid, chrom, source string, attrs map[string]string) *Gene {
	geneID := attrs["gene_id"]
	geneName := attrs["gene_name"]
	if geneName == "" {
		geneName = geneID
	}
	isoformID := attrs["isoform_id"]
	if isoformID == "" {
		isoformID = geneID
	}
	return &Gene{
		GID:         gid,
		GeneID:      geneID,
		GeneName:    geneName,
		IsoformID:   isoformID,
		Chrom:       chrom,
		Source:      source,
		Start:       -1,
		End:         -1,
		Transcripts: make(map[string]*Transcript),
	}
}

// addFeature extends the gene and transcript spans and records the feature
// on the transcript. Unsupported feature types only contribute to the spans.
func (g *Gene) addFeature(transcriptID, feature string, start, end int, strand string) {
	t, ok := g.Transcripts[transcriptID]
	if !ok {
		t = &Transcript{ID: transcriptID, Strand: strand, Start: -1, End: -1}
		g.Transcripts[transcriptID] = t
		g.Order = append(g.Order, transcriptID)
	}

	if g.Start < 0 || start < g.Start {
		g.Start = start
	}
	if g.End < 0 || end > g.End {
		g.End = end
	}
	if g.Strand == "" {
		g.Strand = strand
	}

	if t.Start < 0 || start < t.Start {
		t.Start = start
	}
	if t.End < 0 || end > t.End {
		t.End = end
	}

	switch feature {
	case "exon":
		t.ExonSpans = append(t.ExonSpans, Span{start, end})
	case "CDS":
		t.CDSSpans = append(t.CDSSpans, Span{start, end})
	case "start_codon":
		t.StartCodon = &Span{start, end}
	case "stop_codon":
		t.StopCodon = &Span{start, end}
	}
}

// Regions segments the gene into constant/alternative sub-regions across all
// of its transcripts. The result is computed on first call and cached; it can
// be large, so it is never built at parse time.
func (g *Gene) Regions() []Region {
	if g.regions == nil {
		names := make([]string, 0, len(g.Order))
		exons := make([][]Span, 0, len(g.Order))
		for _, tid := range g.Order {
			names = append(names, tid)
			exons = append(exons, g.Transcripts[tid].Exons())
		}
		g.regions = CalcRegions(g.Start, g.End, names, exons)
		if g.regions == nil {
			g.regions = []Region{}
		}
	}
	return g.regions
}

// Exons returns the transcript's exon spans in file order. A transcript with
// no exon records degenerates to its own full span.
func (t *Transcript) Exons() []Span {
	if len(t.ExonSpans) > 0 {
		return t.ExonSpans
	}
	return []Span{{t.Start, t.End}}
}

// CDS returns the transcript's CDS spans, falling back to the full span.
func (t *Transcript) CDS() []Span {
	if len(t.CDSSpans) > 0 {
		return t.CDSSpans
	}
	return []Span{{t.Start, t.End}}
}

// StartCodonSpan returns the recorded start codon, or a 3-base window at the
// transcript start.
func (t *Transcript) StartCodonSpan() Span {
	if t.StartCodon != nil {
		return *t.StartCodon
	}
	return Span{t.Start, t.Start + 3}
}

// StopCodonSpan returns the recorded stop codon, or a 3-base window at the
// transcript end.
func (t *Transcript) StopCodonSpan() Span {
	if t.StopCodon != nil {
		return *t.StopCodon
	}
	return Span{t.End - 3, t.End}
}
