package model

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jdiez/ngsutils/internal/bed"
)

// BEDModel counts reads over an arbitrary interval list, one row per record.
type BEDModel struct {
	path string
}

// NewBEDModel counts over the BED file at path.
func NewBEDModel(path string) *BEDModel {
	return &BEDModel{path: path}
}

// Name identifies the model in the output preamble.
func (m *BEDModel) Name() string { return "bed" }

// Source returns the BED path.
func (m *BEDModel) Source() string { return m.path }

// Headers returns the display prefix columns.
func (m *BEDModel) Headers() []string {
	return []string{"chrom", "start", "end", "name", "score", "strand"}
}

// Regions yields one request per BED record in file order.
func (m *BEDModel) Regions(fn func(*CountRequest) error) error {
	r, err := bed.Open(m.path)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		region, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read BED: %w", err)
		}

		req := &CountRequest{
			Chrom:  region.Chrom,
			Starts: []int{region.Start},
			Ends:   []int{region.End},
			Strand: region.Strand,
			Cols: []string{
				region.Chrom,
				strconv.Itoa(region.Start),
				strconv.Itoa(region.End),
				region.Name,
				region.Score,
				region.Strand,
			},
		}
		if err := fn(req); err != nil {
			return err
		}
	}
}
