// Package gtf parses GTF gene annotations into gene/transcript models and
// segments genes into constant/alternative regions.
//
// GTF is a 1-based format; start positions are converted on read so that all
// internal coordinates are 0-based half-open.
package gtf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jdiez/ngsutils/internal/fileutil"
)

// MalformedRecordError reports an annotation line that could not be parsed.
// The parse as a whole fails: downstream segmentation assumes well-formed
// spans.
type MalformedRecordError struct {
	Line   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed annotation record (%s): %s", e.Reason, e.Line)
}

// geneRef orders genes within a chromosome by start position.
type geneRef struct {
	Start int
	GID   string
}

// GTF is a parsed annotation: all genes plus the lookup indexes over them.
type GTF struct {
	path   string
	genes  map[string]*Gene
	order  map[string][]geneRef // chrom -> (start, gid) sorted by start
	names  map[string][]string  // gene_name -> gids
	ids    map[string]string    // raw gene_id -> gid, when they differ
	logger *zap.Logger
}

// Option configures parsing.
type Option func(*GTF)

// WithLogger routes parser warnings to l instead of discarding them.
func WithLogger(l *zap.Logger) Option {
	return func(g *GTF) { g.logger = l }
}

// Load parses the annotation at path, consulting the side-car cache first.
// Any cache failure falls back silently to a fresh parse; after a fresh
// parse the cache is rewritten best-effort.
func Load(path string, opts ...Option) (*GTF, error) {
	g := newGTF(path, opts...)

	if cached, err := readCache(cachePath(path)); err == nil {
		g.genes = cached.Genes
		g.order = cached.Order
		g.names = cached.Names
		g.ids = cached.IDs
		return g, nil
	} else if !errors.Is(err, errCacheMiss) {
		g.logger.Debug("annotation cache unusable, reparsing",
			zap.String("path", path), zap.Error(err))
	}

	r, err := fileutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotation: %w", err)
	}
	defer r.Close()

	if err := g.parse(r); err != nil {
		return nil, err
	}

	if err := writeCache(cachePath(path), g); err != nil {
		g.logger.Debug("could not write annotation cache",
			zap.String("path", path), zap.Error(err))
	}
	return g, nil
}

// Parse reads an annotation stream. No cache is consulted or written.
func Parse(r io.Reader, opts ...Option) (*GTF, error) {
	g := newGTF("", opts...)
	if err := g.parse(r); err != nil {
		return nil, err
	}
	return g, nil
}

func newGTF(path string, opts ...Option) *GTF {
	g := &GTF{
		path:   path,
		genes:  make(map[string]*Gene),
		order:  make(map[string][]geneRef),
		names:  make(map[string][]string),
		ids:    make(map[string]string),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GTF) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	warned := false
	for scanner.Scan() {
		line := scanner.Text()

		if idx := strings.IndexByte(line, '#'); idx == 0 {
			continue
		} else if idx > 0 {
			line = line[:idx]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cols := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
		if len(cols) != 9 {
			return &MalformedRecordError{Line: line, Reason: fmt.Sprintf("expected 9 columns, got %d", len(cols))}
		}

		chrom, source, feature := cols[0], cols[1], cols[2]
		start, err := strconv.Atoi(cols[3])
		if err != nil {
			return &MalformedRecordError{Line: line, Reason: "unparsable start"}
		}
		start-- // GTF is 1-based
		end, err := strconv.Atoi(cols[4])
		if err != nil {
			return &MalformedRecordError{Line: line, Reason: "unparsable end"}
		}
		strand := cols[6]

		attrs, err := parseAttributes(cols[8])
		if err != nil {
			return &MalformedRecordError{Line: line, Reason: err.Error()}
		}

		gid := attrs["isoform_id"]
		if gid == "" {
			gid = attrs["gene_id"]
			if gid == "" {
				return &MalformedRecordError{Line: line, Reason: "missing gene_id attribute"}
			}
			if !warned {
				g.logger.Warn("annotation missing isoform_id attribute; each transcript is treated as its own gene",
					zap.String("gene_id", gid))
				warned = true
			}
		}

		transcriptID := attrs["transcript_id"]
		if transcriptID == "" {
			return &MalformedRecordError{Line: line, Reason: "missing transcript_id attribute"}
		}

		gene, ok := g.genes[gid]
		if !ok || chrom != gene.Chrom {
			gene = newGene(gid, chrom, source, attrs)
			g.genes[gid] = gene
			if name := attrs["gene_name"]; name != "" {
				g.names[name] = append(g.names[name], gid)
				if rawID := attrs["gene_id"]; gid != rawID {
					g.ids[rawID] = gid
				}
			}
		}

		gene.addFeature(transcriptID, feature, start, end, strand)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read annotation: %w", err)
	}

	g.buildIndex()
	return nil
}

// buildIndex sorts the per-chromosome (start, gid) index used by Find and by
// ordered iteration.
func (g *GTF) buildIndex() {
	g.order = make(map[string][]geneRef)
	for gid, gene := range g.genes {
		g.order[gene.Chrom] = append(g.order[gene.Chrom], geneRef{Start: gene.Start, GID: gid})
	}
	for chrom := range g.order {
		refs := g.order[chrom]
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].Start != refs[j].Start {
				return refs[i].Start < refs[j].Start
			}
			return refs[i].GID < refs[j].GID
		})
	}
}

// parseAttributes parses the semicolon-delimited `key "value";` block.
func parseAttributes(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.IndexByte(part, ' ')
		if idx < 0 {
			return nil, fmt.Errorf("unparsable attribute %q", part)
		}
		key := part[:idx]
		val := strings.TrimSpace(part[idx+1:])
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		attrs[key] = val
	}
	return attrs, nil
}

// Path returns the annotation source path, if loaded from a file.
func (g *GTF) Path() string { return g.path }

// Count returns the number of genes.
func (g *GTF) Count() int { return len(g.genes) }

// Genes returns all genes ordered by chromosome, then start position.
func (g *GTF) Genes() []*Gene {
	chroms := make([]string, 0, len(g.order))
	for chrom := range g.order {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)

	genes := make([]*Gene, 0, len(g.genes))
	for _, chrom := range chroms {
		for _, ref := range g.order[chrom] {
			genes = append(genes, g.genes[ref.GID])
		}
	}
	return genes
}

// Find returns the genes overlapping [start, end] on chrom, optionally
// restricted to one strand. Pass end == start for a point query.
func (g *GTF) Find(chrom string, start, end int, strand string) ([]*Gene, error) {
	if end < start {
		return nil, fmt.Errorf("find: end (%d) must not be smaller than start (%d)", end, start)
	}

	var found []*Gene
	for _, ref := range g.order[chrom] {
		gene := g.genes[ref.GID]
		if strand != "" && gene.Strand != strand {
			continue
		}
		switch {
		case gene.Start <= start && start <= gene.End,
			gene.Start <= end && end <= gene.End:
			// gene spans a query boundary
			found = append(found, gene)
		case start <= gene.Start && gene.End <= end:
			// gene completely inside the query
			found = append(found, gene)
		}
	}
	return found, nil
}

// GetByID looks a gene up by its model id or by its raw annotation gene_id.
func (g *GTF) GetByID(id string) *Gene {
	if gid, ok := g.ids[id]; ok {
		return g.genes[gid]
	}
	return g.genes[id]
}

// GetByName returns the genes carrying the given display name.
func (g *GTF) GetByName(name string) []*Gene {
	gids, ok := g.names[name]
	if !ok {
		return nil
	}
	genes := make([]*Gene, 0, len(gids))
	for _, gid := range gids {
		genes = append(genes, g.genes[gid])
	}
	return genes
}
