package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl7-synth-server/internal/domain"
)

func parseTS(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := time.Parse(domain.PrecisionDateTime.Layout(), v)
	require.NoError(t, err, "value %q", v)
	return ts
}

func TestTemporalAdmitFollowsEvent(t *testing.T) {
	r := NewTemporalResolver()
	ts := field("Date/Time", domain.TypeDTM, 14)

	for seed := uint64(0); seed < 50; seed++ {
		gen := newGen(domain.ADT_A01, domain.WithSeed(seed))
		evn, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "EVN", 2, ts))
		require.NoError(t, err)
		require.True(t, ok)
		admit, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PV1", 44, ts))
		require.NoError(t, err)
		require.True(t, ok)
		discharge, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PV1", 45, ts))
		require.NoError(t, err)
		require.True(t, ok)

		gap := parseTS(t, admit).Sub(parseTS(t, evn))
		assert.GreaterOrEqual(t, gap, time.Duration(0))
		assert.LessOrEqual(t, gap, 5*time.Minute)

		stay := parseTS(t, discharge).Sub(parseTS(t, admit))
		assert.GreaterOrEqual(t, stay, time.Hour)
		assert.LessOrEqual(t, stay, 14*24*time.Hour)

		assert.False(t, parseTS(t, evn).After(fixedNow), "event time is in the past")
	}
}

func TestTemporalAnchorIsStable(t *testing.T) {
	r := NewTemporalResolver()
	gen := newGen(domain.ADT_A01)
	rc := domain.NewResolutionContext(gen, "EVN", 2, field("Recorded Date/Time", domain.TypeDTM, 14))

	first, _, _ := r.Resolve(context.Background(), rc)
	second, _, _ := r.Resolve(context.Background(), rc)
	assert.Equal(t, first, second)
}

func TestTemporalAbstainsWithoutAnchor(t *testing.T) {
	r := NewTemporalResolver()
	gen := newGen(domain.ADT_A01)

	_, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PV1", 44, field("Admit Date/Time", domain.TypeDTM, 14)))
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = r.Resolve(context.Background(), domain.NewResolutionContext(gen, "ZZZ", 1, field("Custom Date", domain.TypeDTM, 14)))
	assert.False(t, ok, "unrelated timestamps are left to other resolvers")

	_, ok, _ = r.Resolve(context.Background(), domain.NewResolutionContext(gen, "EVN", 2, field("Not a date", domain.TypeST, 0)))
	assert.False(t, ok)
}

func TestTemporalCompositeUsesPrecision(t *testing.T) {
	r := NewTemporalResolver()
	gen := newGen(domain.ADT_A01)

	components, ok, err := r.ResolveComposite(context.Background(), domain.NewResolutionContext(gen, "EVN", 2, field("Recorded Date/Time", domain.TypeTS, 8)), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, components[1], 8)
}

func TestTemporalRelationshipNormalizesBounds(t *testing.T) {
	r := NewTemporalResolver(TemporalRelationship{Target: "ZZZ.1", Anchor: AnchorPath, Min: time.Hour, Max: 0})
	rel, ok := r.Relationship("ZZZ.1")
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), rel.Min)
	assert.Equal(t, time.Hour, rel.Max)

	_, ok = r.Relationship("PV1.44")
	assert.False(t, ok, "a custom table replaces the defaults")
}
