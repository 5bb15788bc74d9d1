// Package bed streams BED interval records.
package bed

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jdiez/ngsutils/internal/fileutil"
)

// Region is one BED record. BED is 0-based half-open, so coordinates are
// used as-is.
type Region struct {
	Chrom  string
	Start  int
	End    int
	Name   string
	Score  string
	Strand string
}

// Reader streams regions from a BED file.
type Reader struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
}

// Open opens a plain or gzip-compressed BED file.
func Open(path string) (*Reader, error) {
	rc, err := fileutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open BED: %w", err)
	}
	return NewReader(rc), nil
}

// NewReader wraps an already-open BED stream.
func NewReader(rc io.ReadCloser) *Reader {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{rc: rc, scanner: scanner}
}

// Next returns the next region, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (*Region, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) < 3 {
			return nil, fmt.Errorf("malformed BED record: %s", line)
		}
		start, err := strconv.Atoi(cols[1])
		if err != nil {
			return nil, fmt.Errorf("malformed BED start in: %s", line)
		}
		end, err := strconv.Atoi(cols[2])
		if err != nil {
			return nil, fmt.Errorf("malformed BED end in: %s", line)
		}

		region := &Region{Chrom: cols[0], Start: start, End: end, Strand: "+"}
		if len(cols) > 3 {
			region.Name = cols[3]
		}
		if len(cols) > 4 {
			region.Score = cols[4]
		}
		if len(cols) > 5 {
			region.Strand = cols[5]
		}
		return region, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close closes the underlying stream.
func (r *Reader) Close() error { return r.rc.Close() }
