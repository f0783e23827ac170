package resolver

import (
	"context"

	"github.com/hl7-synth-server/internal/domain"
)

// DemographicResolver fills person names other than the patient's own from the
// demographic data source. Next-of-kin names often share the patient's family name.
type DemographicResolver struct {
	personas *PersonaBuilder
}

// NewDemographicResolver creates the resolver
func NewDemographicResolver(personas *PersonaBuilder) *DemographicResolver {
	return &DemographicResolver{personas: personas}
}

// Name implements Resolver
func (r *DemographicResolver) Name() string { return "demographic" }

// CompositeTypes implements CompositeResolver
func (r *DemographicResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{domain.TypeXPN}
}

// ResolveComposite implements CompositeResolver
func (r *DemographicResolver) ResolveComposite(ctx context.Context, rc *domain.ResolutionContext, _ *domain.CompositeSchema) (map[int]string, bool, error) {
	gen := rc.Generation
	rng := gen.Rand()

	gender := domain.GenderFemale
	if rng.IntN(2) == 0 {
		gender = domain.GenderMale
	}

	var family string
	switch rc.SegmentCode {
	case "NK1", "PID":
		if rng.IntN(2) == 0 {
			family = r.personas.For(ctx, gen).FamilyName
		}
	}
	if family == "" {
		family = r.personas.lastName(ctx, gen)
	}

	return map[int]string{
		1: family,
		2: r.personas.firstName(ctx, gen, gender),
		7: "L",
	}, true, nil
}

// Resolve implements ScalarResolver for plain-text name fields
func (r *DemographicResolver) Resolve(ctx context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	if rc.Field.DataType != domain.TypeST {
		return "", false, nil
	}
	gen := rc.Generation
	kw := rc.Keywords()
	switch {
	case containsAny(kw, "family name", "last name", "surname", "maiden name"):
		return r.personas.lastName(ctx, gen), true, nil
	case containsAny(kw, "given name", "first name"):
		gender := domain.GenderFemale
		if gen.Rand().IntN(2) == 0 {
			gender = domain.GenderMale
		}
		return r.personas.firstName(ctx, gen, gender), true, nil
	default:
		return "", false, nil
	}
}
