package model

import (
	"fmt"
	"io"

	"github.com/jdiez/ngsutils/internal/align"
)

// resultRow buffers one output row when normalization needs the model's own
// total before anything can be written.
type resultRow struct {
	cols   []string
	length int
	value  float64
}

// Count runs the counting pipeline for a model: validates the configuration,
// resolves the normalization basis, streams the model's count requests
// through the engine, and writes the output table. Models implementing
// CustomCounter take over entirely.
func Count(m Model, src align.Source, opts Options, w io.Writer) error {
	if cc, ok := m.(CustomCounter); ok {
		return cc.Count(src, opts, w)
	}

	switch opts.Norm {
	case "", NormAll, NormMapped:
	default:
		return fmt.Errorf("%w: normalization %q not supported by the %s model", ErrUnsupportedConfiguration, opts.Norm, m.Name())
	}
	switch opts.multiple() {
	case MultipleComplete, MultiplePartial:
	default:
		return fmt.Errorf("%w: unknown multiple mode %q", ErrUnsupportedConfiguration, opts.Multiple)
	}

	var postHeaders []string
	if ph, ok := m.(PostHeaderer); ok {
		postHeaders = ph.PostHeaders()
	}
	if postHeaders != nil {
		// Callback rows are fully formed by the model; per-row scaling
		// cannot be applied after the fact.
		if opts.Norm == NormMapped {
			return fmt.Errorf("%w: mapped normalization not supported by the %s model", ErrUnsupportedConfiguration, m.Name())
		}
		if opts.Coverage {
			return fmt.Errorf("%w: coverage not supported by the %s model", ErrUnsupportedConfiguration, m.Name())
		}
	}
	if opts.Coverage && opts.Norm != "" {
		return fmt.Errorf("%w: coverage and normalization are mutually exclusive", ErrUnsupportedConfiguration)
	}

	basis := -1.0
	if opts.Norm == NormAll {
		n, err := findMappedCount(src, &opts)
		if err != nil {
			return fmt.Errorf("count mapped reads: %w", err)
		}
		basis = float64(n)
	}
	factor := cpmFactor(basis)

	// Mapped normalization scales by the sum of counts this run produces,
	// so rows are held back until counting finishes. Everything else
	// streams.
	stream := opts.Norm != NormMapped

	tw := newTableWriter(w)
	if stream {
		if err := tw.preamble(src, m, &opts, basis, factor); err != nil {
			return err
		}
		if err := tw.header(m.Headers(), postHeaders, &opts, factor > 0); err != nil {
			return err
		}
	}

	var buffered []resultRow
	total := 0.0

	emit := func(row []string) error {
		return tw.row(row)
	}

	err := m.Regions(func(req *CountRequest) error {
		strand := ""
		if opts.Stranded {
			strand = req.Strand
		}
		count, reads, err := fetchReads(src, req.Chrom, strand, req.Starts, req.Ends, &opts)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", req.Chrom, err)
		}

		if req.Callback != nil {
			return req.Callback(src, opts, count, reads, req.Cols, emit)
		}

		length := req.Length()
		value := float64(count)
		if opts.Coverage {
			value = meanCoverage(reads, req.Starts, req.Ends, length)
		}
		total += float64(count)

		if stream {
			return tw.countRow(req.Cols, length, value, factor, opts.FPKM)
		}
		buffered = append(buffered, resultRow{cols: req.Cols, length: length, value: value})
		return nil
	})
	if err != nil {
		return err
	}

	if !stream {
		basis = total
		factor = cpmFactor(basis)
		if err := tw.preamble(src, m, &opts, basis, factor); err != nil {
			return err
		}
		if err := tw.header(m.Headers(), postHeaders, &opts, factor > 0); err != nil {
			return err
		}
		for _, r := range buffered {
			if err := tw.countRow(r.cols, r.length, r.value, factor, opts.FPKM); err != nil {
				return err
			}
		}
	}

	return tw.flush()
}

// cpmFactor is the counts-per-million scale: basis / 1,000,000, or 0 when
// there is no basis.
func cpmFactor(basis float64) float64 {
	if basis <= 0 {
		return 0
	}
	return basis / 1e6
}
