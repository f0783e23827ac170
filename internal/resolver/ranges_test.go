package resolver

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl7-synth-server/internal/domain"
)

func TestRangeNumericLowBelowHigh(t *testing.T) {
	r := NewRangeResolver()
	schema := cxSchema(t, domain.TypeNR)

	for seed := uint64(0); seed < 100; seed++ {
		gen := newGen(domain.ORU_R01, domain.WithSeed(seed))
		nr, ok, err := r.ResolveComposite(context.Background(), domain.NewResolutionContext(gen, "ZZZ", 1, field("Normal Range", domain.TypeNR, 0)), schema)
		require.NoError(t, err)
		require.True(t, ok)

		low, err := strconv.ParseFloat(nr[1], 64)
		require.NoError(t, err)
		high, err := strconv.ParseFloat(nr[2], 64)
		require.NoError(t, err)
		assert.Less(t, low, high)
		assert.GreaterOrEqual(t, low, 0.0)
	}
}

func TestRangeDateRangeLastsOneToFourteenDays(t *testing.T) {
	r := NewRangeResolver()
	schema := cxSchema(t, domain.TypeDR)
	layout := domain.PrecisionDateTime.Layout()

	for seed := uint64(0); seed < 100; seed++ {
		gen := newGen(domain.ADT_A01, domain.WithSeed(seed))
		dr, ok, err := r.ResolveComposite(context.Background(), domain.NewResolutionContext(gen, "ZZZ", 1, field("Effective Period", domain.TypeDR, 0)), schema)
		require.NoError(t, err)
		require.True(t, ok)

		start, err := time.Parse(layout, dr[1])
		require.NoError(t, err)
		end, err := time.Parse(layout, dr[2])
		require.NoError(t, err)

		d := end.Sub(start)
		assert.GreaterOrEqual(t, d, 24*time.Hour)
		assert.LessOrEqual(t, d, 14*24*time.Hour)
		assert.False(t, start.After(fixedNow))
	}
}

func TestRangeQuantityUsesVocabulary(t *testing.T) {
	r := NewRangeResolver()
	schema := cxSchema(t, domain.TypeCQ)

	tests := []struct {
		name  string
		vocab UnitVocabulary
	}{
		{"Give Dosage", dosingUnits},
		{"Specimen Collection Amount", volumeUnits},
		{"Duration of Stay", durationUnits},
		{"Quantity", defaultUnits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newGen(domain.RDE_O11)
			rc := domain.NewResolutionContext(gen, "ZZZ", 1, field(tt.name, domain.TypeCQ, 0))
			assert.Equal(t, tt.vocab.Name, VocabularyFor(rc).Name)

			cq, ok, err := r.ResolveComposite(context.Background(), rc, schema)
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, tt.vocab.Contains(cq[2]), "unit %q", cq[2])

			magnitude, err := strconv.ParseFloat(cq[1], 64)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, magnitude, 0.0)
		})
	}
}

func TestVocabularyForReturnsCopy(t *testing.T) {
	rc := domain.NewResolutionContext(newGen(domain.RDE_O11), "RXE", 3, field("Give Dosage", domain.TypeCQ, 0))

	v := VocabularyFor(rc)
	v.Units[0] = "furlong"

	assert.Equal(t, "mg", VocabularyFor(rc).Units[0])
	assert.Equal(t, "mg", dosingUnits.Units[0])
}

func TestRangeAbsoluteRangeIsConsistent(t *testing.T) {
	r := NewRangeResolver()
	gen := newGen(domain.ORU_R01)

	dlt, ok, err := r.ResolveComposite(context.Background(), domain.NewResolutionContext(gen, "OBX", 1, field("Delta Check Criteria", domain.TypeDLT, 0)), cxSchema(t, domain.TypeDLT))
	require.NoError(t, err)
	require.True(t, ok)

	bounds := strings.Split(dlt[1], SubcomponentSeparator)
	require.Len(t, bounds, 2)
	low, _ := strconv.ParseFloat(bounds[0], 64)
	high, _ := strconv.ParseFloat(bounds[1], 64)
	assert.Less(t, low, high)

	days, err := strconv.Atoi(dlt[4])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, days, 1)
	assert.LessOrEqual(t, days, 30)
}
