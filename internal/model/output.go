package model

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jdiez/ngsutils/internal/align"
)

// tableWriter writes the commented preamble, header row, and tab-delimited
// data rows.
type tableWriter struct {
	bw *bufio.Writer
}

func newTableWriter(w io.Writer) *tableWriter {
	return &tableWriter{bw: bufio.NewWriter(w)}
}

func (t *tableWriter) preamble(src align.Source, m Model, opts *Options, basis, factor float64) error {
	fmt.Fprintf(t.bw, "## input %s\n", src.Path())
	fmt.Fprintf(t.bw, "## model %s %s\n", m.Name(), m.Source())
	fmt.Fprintf(t.bw, "## stranded %t\n", opts.Stranded)
	fmt.Fprintf(t.bw, "## multiple %s\n", opts.multiple())
	if factor > 0 {
		fmt.Fprintf(t.bw, "## norm %s %s\n", opts.Norm, formatFloat(basis))
		fmt.Fprintf(t.bw, "## CPM-factor %s\n", formatFloat(factor))
	}
	return nil
}

func (t *tableWriter) header(headers, postHeaders []string, opts *Options, hasNorm bool) error {
	t.bw.WriteString("#")
	t.bw.WriteString(strings.Join(headers, "\t"))
	if postHeaders != nil {
		t.bw.WriteString("\t")
		t.bw.WriteString(strings.Join(postHeaders, "\t"))
	} else {
		t.bw.WriteString("\tlength")
		if opts.Coverage {
			t.bw.WriteString("\tcoverage")
		} else {
			t.bw.WriteString("\tcount")
		}
		if hasNorm {
			t.bw.WriteString("\tcount (CPM)")
			if opts.FPKM {
				t.bw.WriteString("\tRPKM")
			}
		}
	}
	_, err := t.bw.WriteString("\n")
	return err
}

// countRow writes a standard data row: prefix columns, length, count (or
// coverage), and the optional normalized columns.
func (t *tableWriter) countRow(cols []string, length int, value, factor float64, fpkm bool) error {
	row := make([]string, 0, len(cols)+4)
	row = append(row, cols...)
	row = append(row, strconv.Itoa(length), formatFloat(value))
	if factor > 0 {
		row = append(row, formatFloat(value/factor))
		if fpkm {
			row = append(row, formatFloat(value/(float64(length)/1000)/factor))
		}
	}
	return t.row(row)
}

func (t *tableWriter) row(cols []string) error {
	_, err := t.bw.WriteString(strings.Join(cols, "\t") + "\n")
	return err
}

func (t *tableWriter) flush() error { return t.bw.Flush() }

// formatFloat prints integral values without a decimal point and everything
// else with shortest round-trip precision.
func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
