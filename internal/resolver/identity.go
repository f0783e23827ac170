package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/pkg/checkdigit"
)

const personaSlot = "identity.persona"

// Persona is the patient identity used throughout one message. Values come from
// the patient and encounter entities when present and are generated otherwise,
// so every segment that refers to the patient agrees.
type Persona struct {
	PatientID     string
	MRN           string
	AccountNumber string
	VisitNumber   string
	SSN           string
	FamilyName    string
	GivenName     string
	MiddleName    string
	Gender        domain.Gender
	BirthDate     time.Time
}

// identityKind names the identifier a wire path carries
type identityKind struct {
	value    func(*Persona) string
	typeCode string
}

var identityPaths = map[string]identityKind{
	"PID.2":  {func(p *Persona) string { return p.PatientID }, "PI"},
	"PID.3":  {func(p *Persona) string { return p.MRN }, "MR"},
	"PID.4":  {func(p *Persona) string { return p.PatientID }, "PI"},
	"PID.18": {func(p *Persona) string { return p.AccountNumber }, "AN"},
	"PID.19": {func(p *Persona) string { return p.SSN }, "SS"},
	"PV1.19": {func(p *Persona) string { return p.VisitNumber }, "VN"},
	"MRG.1":  {func(p *Persona) string { return p.MRN }, "MR"},
	"MRG.3":  {func(p *Persona) string { return p.AccountNumber }, "AN"},
}

var fallbackFamilyNames = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis"}
var fallbackMaleNames = []string{"James", "Robert", "John", "Michael", "David", "William"}
var fallbackFemaleNames = []string{"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Susan"}

// PersonaBuilder creates the per-message Persona
type PersonaBuilder struct {
	demographics domain.DemographicSource
	logger       *logrus.Logger
}

// NewPersonaBuilder creates a builder; demographics may be nil
func NewPersonaBuilder(demographics domain.DemographicSource, logger *logrus.Logger) *PersonaBuilder {
	if logger == nil {
		logger = logrus.New()
	}
	return &PersonaBuilder{demographics: demographics, logger: logger}
}

// For returns the persona of the message, building it on first use
func (b *PersonaBuilder) For(ctx context.Context, gen *domain.GenerationContext) *Persona {
	if v, ok := gen.Slot(personaSlot); ok {
		return v.(*Persona)
	}

	rng := gen.Rand()
	p := &Persona{}
	entities := gen.Entities()
	if pt := entities.Patient; pt != nil {
		p.PatientID = pt.ID
		p.MRN = pt.MRN
		p.AccountNumber = pt.AccountNumber
		p.SSN = pt.SSN
		p.FamilyName = pt.FamilyName
		p.GivenName = pt.GivenName
		p.MiddleName = pt.MiddleName
		p.Gender = pt.Gender
		p.BirthDate = pt.BirthDate
	}
	if enc := entities.Encounter; enc != nil {
		p.VisitNumber = enc.VisitNumber
	}

	if !p.Gender.IsValid() {
		p.Gender = domain.GenderFemale
		if rng.IntN(2) == 0 {
			p.Gender = domain.GenderMale
		}
	}
	if p.FamilyName == "" {
		p.FamilyName = b.lastName(ctx, gen)
	}
	if p.GivenName == "" {
		p.GivenName = b.firstName(ctx, gen, p.Gender)
	}
	if p.BirthDate.IsZero() {
		age := 18*365 + rng.IntN(72*365)
		p.BirthDate = gen.Now().AddDate(0, 0, -age)
	}
	if p.MRN == "" {
		p.MRN = p.PatientID
	}
	if p.MRN == "" {
		p.MRN = checkdigit.RandomBase(rng, 8)
	}
	if p.PatientID == "" {
		p.PatientID = p.MRN
	}
	if p.AccountNumber == "" {
		p.AccountNumber = checkdigit.RandomBase(rng, 9)
	}
	if p.VisitNumber == "" {
		p.VisitNumber = checkdigit.RandomBase(rng, 8)
	}
	if p.SSN == "" {
		p.SSN = fmt.Sprintf("%03d-%02d-%04d", 1+rng.IntN(665), 1+rng.IntN(99), 1+rng.IntN(9999))
	}

	gen.SetSlot(personaSlot, p)
	return p
}

func (b *PersonaBuilder) lastName(ctx context.Context, gen *domain.GenerationContext) string {
	if b.demographics != nil {
		name, err := b.demographics.RandomLastName(ctx, gen.Rand())
		if err == nil && name != "" {
			return name
		}
		b.logger.WithError(err).Debug("Demographic source unavailable, using built-in last names")
	}
	return fallbackFamilyNames[gen.Rand().IntN(len(fallbackFamilyNames))]
}

func (b *PersonaBuilder) firstName(ctx context.Context, gen *domain.GenerationContext, gender domain.Gender) string {
	if b.demographics != nil {
		name, err := b.demographics.RandomFirstName(ctx, gen.Rand(), gender)
		if err == nil && name != "" {
			return name
		}
		b.logger.WithError(err).Debug("Demographic source unavailable, using built-in first names")
	}
	names := fallbackFemaleNames
	if gender == domain.GenderMale {
		names = fallbackMaleNames
	}
	return names[gen.Rand().IntN(len(names))]
}

// EntityIdentityResolver answers identifier-style scalar fields (patient ID,
// MRN, account, SSN, visit number) and the patient's name, sex and birth date
// from the message persona. It also supplies the message control ID.
type EntityIdentityResolver struct {
	personas *PersonaBuilder
}

// NewEntityIdentityResolver creates the resolver
func NewEntityIdentityResolver(personas *PersonaBuilder) *EntityIdentityResolver {
	return &EntityIdentityResolver{personas: personas}
}

// Name implements Resolver
func (r *EntityIdentityResolver) Name() string { return "entity_identity" }

// CompositeTypes implements CompositeResolver
func (r *EntityIdentityResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{domain.TypeXPN}
}

// ResolveComposite implements CompositeResolver for the patient name
func (r *EntityIdentityResolver) ResolveComposite(ctx context.Context, rc *domain.ResolutionContext, _ *domain.CompositeSchema) (map[int]string, bool, error) {
	if rc.Path() != "PID.5" {
		return nil, false, nil
	}
	p := r.personas.For(ctx, rc.Generation)
	return map[int]string{1: p.FamilyName, 2: p.GivenName, 3: p.MiddleName, 7: "L"}, true, nil
}

// Resolve implements ScalarResolver
func (r *EntityIdentityResolver) Resolve(ctx context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	path := rc.Path()
	if path == "MSH.10" {
		return rc.Generation.ControlID(), true, nil
	}

	if kind, ok := identityPaths[path]; ok {
		return kind.value(r.personas.For(ctx, rc.Generation)), true, nil
	}

	switch path {
	case "PID.5":
		p := r.personas.For(ctx, rc.Generation)
		return JoinComponents(map[int]string{1: p.FamilyName, 2: p.GivenName}), true, nil
	case "PID.7":
		p := r.personas.For(ctx, rc.Generation)
		layout := domain.PrecisionDate.Layout()
		if rc.Field.Precision() == domain.PrecisionDateTimeFraction {
			layout = domain.PrecisionDateTime.Layout()
		}
		return p.BirthDate.Format(layout), true, nil
	case "PID.8":
		return string(r.personas.For(ctx, rc.Generation).Gender), true, nil
	}
	return "", false, nil
}
