package resolver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/pkg/checkdigit"
)

// HL7 tables consulted for identifier codes
const (
	TableIdentifierType     = "0203"
	TableNameType           = "0200"
	TableAssigningAuthority = "0363"
	TableOrganizationType   = "0204"
)

// organizations is the fixed list of realistic organization names used for XON fields
var organizations = []string{
	"General Hospital",
	"St. Mary's Medical Center",
	"Community Health Clinic",
	"University Medical Center",
	"Regional Medical Center",
	"Mercy Hospital",
	"Children's Hospital",
	"Valley Health System",
}

// IdentifierResolver fills identifier composites so that their parts agree: the
// check digit is computed from the ID it accompanies, and name components describe
// the same person or organization as the ID.
type IdentifierResolver struct {
	tables    domain.TableProvider
	personas  *PersonaBuilder
	providers domain.ProviderSource
	logger    *logrus.Logger
}

// NewIdentifierResolver creates the resolver. Names for person identifiers come
// from the persona builder's demographic source. tables may be nil.
func NewIdentifierResolver(tables domain.TableProvider, personas *PersonaBuilder, logger *logrus.Logger) *IdentifierResolver {
	if logger == nil {
		logger = logrus.New()
	}
	if personas == nil {
		personas = NewPersonaBuilder(nil, logger)
	}
	return &IdentifierResolver{tables: tables, personas: personas, logger: logger}
}

// WithProviders draws practitioners for XCN fields when the message carries no
// provider entity
func (r *IdentifierResolver) WithProviders(providers domain.ProviderSource) *IdentifierResolver {
	r.providers = providers
	return r
}

// Name implements Resolver
func (r *IdentifierResolver) Name() string { return "identifier" }

// CompositeTypes implements CompositeResolver
func (r *IdentifierResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{domain.TypeCX, domain.TypeCK, domain.TypeEI, domain.TypeXCN, domain.TypeXON}
}

// ResolveComposite implements CompositeResolver
func (r *IdentifierResolver) ResolveComposite(ctx context.Context, rc *domain.ResolutionContext, schema *domain.CompositeSchema) (map[int]string, bool, error) {
	switch schema.DataType {
	case domain.TypeCX:
		return r.checkedIdentifier(ctx, rc), true, nil
	case domain.TypeCK:
		cx := r.checkedIdentifier(ctx, rc)
		delete(cx, 5)
		return cx, true, nil
	case domain.TypeEI:
		return r.entityIdentifier(ctx, rc), true, nil
	case domain.TypeXCN:
		return r.personIdentifier(ctx, rc), true, nil
	case domain.TypeXON:
		return r.organizationIdentifier(ctx, rc), true, nil
	default:
		return nil, false, nil
	}
}

// checked pairs a base ID with its check digit and scheme
type checked struct {
	id     string
	digit  string
	scheme checkdigit.Scheme
}

func (r *IdentifierResolver) check(gen *domain.GenerationContext, base string) checked {
	scheme := checkdigit.Random(gen.Rand())
	digit, err := checkdigit.Compute(scheme, base)
	if err != nil {
		// Non-numeric IDs from entities are carried without a check digit.
		return checked{id: base}
	}
	return checked{id: base, digit: digit, scheme: scheme}
}

func (c checked) schemeCode() string {
	if c.digit == "" {
		return ""
	}
	return c.scheme.String()
}

func (r *IdentifierResolver) checkedIdentifier(ctx context.Context, rc *domain.ResolutionContext) map[int]string {
	gen := rc.Generation
	base := ""
	typeCode := ""
	if kind, ok := identityPaths[rc.Path()]; ok {
		base = kind.value(r.personas.For(ctx, gen))
		typeCode = kind.typeCode
	}
	if base == "" {
		base = checkdigit.RandomBase(gen.Rand(), 8)
	}
	if typeCode == "" {
		typeCode = r.tableCode(ctx, gen, TableIdentifierType, "MR", false)
	} else {
		typeCode = r.tableCode(ctx, gen, TableIdentifierType, typeCode, true)
	}

	c := r.check(gen, base)
	return map[int]string{
		1: c.id,
		2: c.digit,
		3: c.schemeCode(),
		4: r.tableCode(ctx, gen, TableAssigningAuthority, "HOSP", true),
		5: typeCode,
	}
}

func (r *IdentifierResolver) entityIdentifier(ctx context.Context, rc *domain.ResolutionContext) map[int]string {
	gen := rc.Generation
	rng := gen.Rand()
	return map[int]string{
		1: checkdigit.RandomBase(rng, 10),
		2: r.tableCode(ctx, gen, TableAssigningAuthority, "HOSP", false),
		3: fmt.Sprintf("2.16.840.1.113883.19.%d", 1+rng.IntN(999)),
		4: "ISO",
	}
}

func (r *IdentifierResolver) personIdentifier(ctx context.Context, rc *domain.ResolutionContext) map[int]string {
	gen := rc.Generation
	rng := gen.Rand()

	var id, family, given, degree string
	prov := gen.Entities().Provider
	if prov == nil && r.providers != nil {
		p, err := r.providers.RandomProvider(ctx, rng)
		if err != nil {
			r.logger.WithError(err).Debug("Provider source unavailable, generating practitioner")
		}
		prov = p
	}
	if prov != nil {
		id, family, given, degree = prov.NPI, prov.FamilyName, prov.GivenName, prov.Credential
	}
	if id == "" {
		id = checkdigit.RandomBase(rng, 10)
	}
	if family == "" || given == "" {
		gender := domain.GenderFemale
		if rng.IntN(2) == 0 {
			gender = domain.GenderMale
		}
		family = r.personas.lastName(ctx, gen)
		given = r.personas.firstName(ctx, gen, gender)
	}

	c := r.check(gen, id)
	return map[int]string{
		1:  c.id,
		2:  family,
		3:  given,
		7:  degree,
		10: r.tableCode(ctx, gen, TableNameType, "L", true),
		11: c.digit,
		12: c.schemeCode(),
		13: r.tableCode(ctx, gen, TableIdentifierType, "NPI", true),
	}
}

func (r *IdentifierResolver) organizationIdentifier(ctx context.Context, rc *domain.ResolutionContext) map[int]string {
	gen := rc.Generation
	rng := gen.Rand()
	c := r.check(gen, checkdigit.RandomBase(rng, 7))
	return map[int]string{
		1: organizations[rng.IntN(len(organizations))],
		2: r.tableCode(ctx, gen, TableOrganizationType, "L", true),
		3: c.id,
		4: c.digit,
		5: c.schemeCode(),
		6: r.tableCode(ctx, gen, TableAssigningAuthority, "HOSP", true),
		7: r.tableCode(ctx, gen, TableIdentifierType, "XX", true),
	}
}

// tableCode picks a code from an HL7 table. With preferDefault the default is
// used whenever the table contains it; an unavailable table always yields the default.
func (r *IdentifierResolver) tableCode(ctx context.Context, gen *domain.GenerationContext, tableID, def string, preferDefault bool) string {
	if r.tables == nil {
		return def
	}
	table, err := r.tables.GetTable(ctx, tableID)
	if err != nil || table.IsEmpty() {
		if err != nil {
			r.logger.WithError(err).WithField("table", tableID).Debug("Table unavailable, using default code")
		}
		return def
	}
	if preferDefault {
		if _, ok := table.Find(def); ok {
			return def
		}
	}
	return table.Values[gen.Rand().IntN(len(table.Values))].Code
}
