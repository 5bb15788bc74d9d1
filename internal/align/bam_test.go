package align

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samRecord(t *testing.T, pos int, cigar sam.Cigar, flags sam.Flags, aux ...sam.Aux) *sam.Record {
	t.Helper()
	return &sam.Record{
		Name:      "read1",
		Pos:       pos,
		Cigar:     cigar,
		Flags:     flags,
		AuxFields: aux,
	}
}

func TestReferenceBlocks(t *testing.T) {
	tests := []struct {
		name     string
		cigar    sam.Cigar
		expected []Block
	}{
		{
			name:     "simple match",
			cigar:    sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 10)},
			expected: []Block{{Start: 100, End: 110}},
		},
		{
			name: "insertion does not split",
			cigar: sam.Cigar{
				sam.NewCigarOp(sam.CigarMatch, 5),
				sam.NewCigarOp(sam.CigarInsertion, 2),
				sam.NewCigarOp(sam.CigarMatch, 5),
			},
			expected: []Block{{Start: 100, End: 110}},
		},
		{
			name: "deletion extends the block",
			cigar: sam.Cigar{
				sam.NewCigarOp(sam.CigarMatch, 5),
				sam.NewCigarOp(sam.CigarDeletion, 3),
				sam.NewCigarOp(sam.CigarMatch, 5),
			},
			expected: []Block{{Start: 100, End: 113}},
		},
		{
			name: "skipped reference splits",
			cigar: sam.Cigar{
				sam.NewCigarOp(sam.CigarMatch, 5),
				sam.NewCigarOp(sam.CigarSkipped, 10),
				sam.NewCigarOp(sam.CigarMatch, 5),
			},
			expected: []Block{{Start: 100, End: 105}, {Start: 115, End: 120}},
		},
		{
			name: "soft clips ignored",
			cigar: sam.Cigar{
				sam.NewCigarOp(sam.CigarSoftClipped, 3),
				sam.NewCigarOp(sam.CigarMatch, 10),
				sam.NewCigarOp(sam.CigarSoftClipped, 2),
			},
			expected: []Block{{Start: 100, End: 110}},
		},
		{
			name: "two junctions",
			cigar: sam.Cigar{
				sam.NewCigarOp(sam.CigarMatch, 5),
				sam.NewCigarOp(sam.CigarSkipped, 20),
				sam.NewCigarOp(sam.CigarMatch, 5),
				sam.NewCigarOp(sam.CigarSkipped, 20),
				sam.NewCigarOp(sam.CigarMatch, 5),
			},
			expected: []Block{
				{Start: 100, End: 105},
				{Start: 125, End: 130},
				{Start: 150, End: 155},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := samRecord(t, 100, tt.cigar, 0)
			assert.Equal(t, tt.expected, referenceBlocks(rec))
		})
	}
}

func TestFromSAMFlags(t *testing.T) {
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 10)}

	rec := fromSAM(samRecord(t, 100, cigar, 0))
	assert.Equal(t, "read1", rec.Name)
	assert.Equal(t, 100, rec.Pos)
	assert.Equal(t, 110, rec.End)
	assert.Equal(t, "+", rec.Strand)
	assert.True(t, rec.Mapped)
	assert.False(t, rec.Secondary)
	assert.False(t, rec.Read2)
	assert.Zero(t, rec.HitCount)

	rec = fromSAM(samRecord(t, 100, cigar, sam.Reverse|sam.Read2))
	assert.Equal(t, "-", rec.Strand)
	assert.True(t, rec.Read2)

	rec = fromSAM(samRecord(t, 100, cigar, sam.Unmapped|sam.Secondary))
	assert.False(t, rec.Mapped)
	assert.True(t, rec.Secondary)
}

func TestFromSAMHitCount(t *testing.T) {
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 10)}

	nh, err := sam.NewAux(sam.NewTag("NH"), 3)
	require.NoError(t, err)
	rec := fromSAM(samRecord(t, 100, cigar, 0, nh))
	assert.Equal(t, 3, rec.HitCount)

	// IH is consulted only when NH is absent.
	ih, err := sam.NewAux(sam.NewTag("IH"), 2)
	require.NoError(t, err)
	rec = fromSAM(samRecord(t, 100, cigar, 0, ih))
	assert.Equal(t, 2, rec.HitCount)

	rec = fromSAM(samRecord(t, 100, cigar, 0, nh, ih))
	assert.Equal(t, 3, rec.HitCount)
}

func TestReadBAMIndexMissing(t *testing.T) {
	_, err := readBAMIndex(t.TempDir() + "/missing.bam")
	assert.Error(t, err)
}
