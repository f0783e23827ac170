package resolver

import (
	"context"
	"time"

	"github.com/hl7-synth-server/internal/domain"
)

// AnchorPath is the event timestamp every other timestamp is placed relative to
const AnchorPath = "EVN.2"

// TemporalRelationship places a target timestamp within [Min, Max] of its anchor
type TemporalRelationship struct {
	Target string
	Anchor string
	Min    time.Duration
	Max    time.Duration
}

// DefaultTemporalRelationships covers the timestamps of the built-in message layouts
func DefaultTemporalRelationships() []TemporalRelationship {
	return []TemporalRelationship{
		{Target: "PV1.44", Anchor: AnchorPath, Min: 0, Max: 5 * time.Minute},
		{Target: "PV1.45", Anchor: "PV1.44", Min: time.Hour, Max: 14 * 24 * time.Hour},
		{Target: "DG1.5", Anchor: AnchorPath, Min: 0, Max: 48 * time.Hour},
		{Target: "MSH.7", Anchor: AnchorPath, Min: 0, Max: time.Hour},
		{Target: "ORC.9", Anchor: AnchorPath, Min: 0, Max: 24 * time.Hour},
		{Target: "OBR.7", Anchor: "ORC.9", Min: -24 * time.Hour, Max: 0},
		{Target: "OBX.14", Anchor: "OBR.7", Min: 0, Max: 2 * time.Hour},
		{Target: "EVN.6", Anchor: AnchorPath, Min: -time.Hour, Max: 0},
	}
}

// TemporalResolver keeps timestamps in a message ordered the way real events are.
// The anchor is generated on first request; related fields abstain until their
// anchor exists, so layout order matters.
type TemporalResolver struct {
	anchor    string
	relations map[string]TemporalRelationship
}

// NewTemporalResolver builds the resolver from a relationship table. With no
// relationships the defaults are used.
func NewTemporalResolver(relationships ...TemporalRelationship) *TemporalResolver {
	if len(relationships) == 0 {
		relationships = DefaultTemporalRelationships()
	}
	r := &TemporalResolver{
		anchor:    AnchorPath,
		relations: make(map[string]TemporalRelationship, len(relationships)),
	}
	for _, rel := range relationships {
		if rel.Max < rel.Min {
			rel.Min, rel.Max = rel.Max, rel.Min
		}
		r.relations[rel.Target] = rel
	}
	return r
}

// Name implements Resolver
func (r *TemporalResolver) Name() string { return "temporal" }

// CompositeTypes implements CompositeResolver
func (r *TemporalResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{domain.TypeTS}
}

// Relationship returns the rule for a target path
func (r *TemporalResolver) Relationship(path string) (TemporalRelationship, bool) {
	rel, ok := r.relations[path]
	return rel, ok
}

// Resolve implements ScalarResolver for DT, DTM and scalar TS fields
func (r *TemporalResolver) Resolve(_ context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	if !rc.Field.DataType.IsTemporal() {
		return "", false, nil
	}
	t, ok := r.timestamp(rc)
	if !ok {
		return "", false, nil
	}
	return t.Format(rc.Field.Precision().Layout()), true, nil
}

// ResolveComposite implements CompositeResolver for composite TS fields
func (r *TemporalResolver) ResolveComposite(_ context.Context, rc *domain.ResolutionContext, _ *domain.CompositeSchema) (map[int]string, bool, error) {
	t, ok := r.timestamp(rc)
	if !ok {
		return nil, false, nil
	}
	return map[int]string{1: t.Format(rc.Field.Precision().Layout())}, true, nil
}

func (r *TemporalResolver) timestamp(rc *domain.ResolutionContext) (time.Time, bool) {
	gen := rc.Generation
	path := rc.Path()

	if path == r.anchor {
		if t, ok := gen.Anchor(path); ok {
			return t, true
		}
		return gen.RecordAnchor(path, r.recentPast(gen)), true
	}

	rel, ok := r.relations[path]
	if !ok {
		return time.Time{}, false
	}
	base, ok := gen.Anchor(rel.Anchor)
	if !ok {
		return time.Time{}, false
	}

	t := base.Add(randomOffset(gen, rel.Min, rel.Max))
	// Repeated segments draw fresh values; the first one stays the chain anchor.
	gen.RecordAnchor(path, t)
	return t, true
}

func (r *TemporalResolver) recentPast(gen *domain.GenerationContext) time.Time {
	rng := gen.Rand()
	back := time.Duration(rng.IntN(7))*24*time.Hour +
		time.Duration(rng.IntN(24))*time.Hour +
		time.Duration(rng.IntN(60))*time.Minute
	return gen.Now().Add(-back).Truncate(time.Second)
}

// randomOffset draws a whole-second offset uniformly from [lo, hi]
func randomOffset(gen *domain.GenerationContext, lo, hi time.Duration) time.Duration {
	span := int64((hi - lo) / time.Second)
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(gen.Rand().Int64N(span+1))*time.Second
}
