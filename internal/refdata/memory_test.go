package refdata

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl7-synth-server/internal/domain"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(42, 42))
}

func TestBuiltinCoversBoundTables(t *testing.T) {
	ds := Builtin()
	for _, id := range []string{"0001", "0002", "0003", "0004", "0005", "0007", "0023", "0052", "0063", "0069", "0085", "0103", "0112", "0119", "0123", "0155", "0166", "0203"} {
		tbl, ok := ds.Tables[id]
		if assert.True(t, ok, "table %s missing", id) {
			assert.False(t, tbl.IsEmpty(), "table %s empty", id)
		}
	}
	for _, l := range ds.LabTests {
		assert.True(t, l.HasRange(), "lab %s has no range", l.Code)
	}
}

func TestMemory_GetTable(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	tbl, err := m.GetTable(ctx, "0001")
	require.NoError(t, err)
	v, ok := tbl.Find("F")
	assert.True(t, ok)
	assert.Equal(t, "Female", v.Text)

	_, err = m.GetTable(ctx, "9999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_RandomFirstNameRespectsGender(t *testing.T) {
	m := NewMemory(&Dataset{FirstNames: []FirstName{
		{"Alice", domain.GenderFemale},
		{"Bob", domain.GenderMale},
		{"Sam", ""},
	}})
	ctx := context.Background()
	rng := testRand()

	for i := 0; i < 50; i++ {
		name, err := m.RandomFirstName(ctx, rng, domain.GenderFemale)
		require.NoError(t, err)
		assert.Contains(t, []string{"Alice", "Sam"}, name)

		name, err = m.RandomFirstName(ctx, rng, domain.GenderMale)
		require.NoError(t, err)
		assert.Contains(t, []string{"Bob", "Sam"}, name)
	}
}

func TestMemory_EmptyDatasetReportsNoData(t *testing.T) {
	m := NewMemory(&Dataset{})
	ctx := context.Background()
	rng := testRand()

	_, err := m.RandomLastName(ctx, rng)
	assert.ErrorIs(t, err, domain.ErrNoReferenceData)
	_, err = m.RandomDiagnosis(ctx, rng)
	assert.ErrorIs(t, err, domain.ErrNoReferenceData)
	_, err = m.RandomMedication(ctx, rng)
	assert.ErrorIs(t, err, domain.ErrNoReferenceData)
	_, err = m.RandomLabTest(ctx, rng)
	assert.ErrorIs(t, err, domain.ErrNoReferenceData)
	_, err = m.RandomProvider(ctx, rng)
	assert.ErrorIs(t, err, domain.ErrNoReferenceData)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory(nil)
	d, err := m.RandomDiagnosis(context.Background(), testRand())
	require.NoError(t, err)

	d.Code = "changed"
	for _, orig := range m.Dataset().Diagnoses {
		assert.NotEqual(t, "changed", orig.Code)
	}
}

func TestRankedIndex(t *testing.T) {
	rng := testRand()
	assert.Equal(t, 0, RankedIndex(rng, 1))
	assert.Equal(t, 0, RankedIndex(rng, 0))

	hits := make([]int, 10)
	for i := 0; i < 10000; i++ {
		idx := RankedIndex(rng, 10)
		require.True(t, idx >= 0 && idx < 10)
		hits[idx]++
	}
	assert.Greater(t, hits[0], hits[9], "front of the list should be drawn more often")
}

func TestRankedIndexIsDeterministic(t *testing.T) {
	a, b := testRand(), testRand()
	for i := 0; i < 20; i++ {
		assert.Equal(t, RankedIndex(a, 100), RankedIndex(b, 100))
	}
}
