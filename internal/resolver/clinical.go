package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
)

// MaxScenarioEntries bounds how many entries of each concept a scenario contributes
const MaxScenarioEntries = 3

const scenarioSlot = "scenario.case"

// selector yields the diagnosis, medication or lab test the current segment
// describes. advance moves to the next entry (a new DG1/RXE/OBX); current reuses
// the last one so the rest of the segment stays consistent; upcoming returns the
// entry the next advance will yield, for fields laid out before the one that
// advances; peek looks at the first entry without moving.
type selector[T any] struct {
	slot string
	next func(ctx context.Context, gen *domain.GenerationContext) (*T, error)
	peek func(ctx context.Context, gen *domain.GenerationContext) (*T, error)
}

func (s *selector[T]) advance(ctx context.Context, gen *domain.GenerationContext) (*T, error) {
	v, ok := slotValue[T](gen, s.slot+".pending")
	if ok {
		gen.SetSlot(s.slot+".pending", nil)
	} else {
		var err error
		if v, err = s.next(ctx, gen); err != nil || v == nil {
			return nil, err
		}
	}
	gen.SetSlot(s.slot, v)
	return v, nil
}

func (s *selector[T]) current(ctx context.Context, gen *domain.GenerationContext) (*T, error) {
	if v, ok := slotValue[T](gen, s.slot); ok {
		return v, nil
	}
	return s.advance(ctx, gen)
}

func (s *selector[T]) upcoming(ctx context.Context, gen *domain.GenerationContext) (*T, error) {
	if v, ok := slotValue[T](gen, s.slot+".pending"); ok {
		return v, nil
	}
	v, err := s.next(ctx, gen)
	if err != nil || v == nil {
		return nil, err
	}
	gen.SetSlot(s.slot+".pending", v)
	return v, nil
}

func slotValue[T any](gen *domain.GenerationContext, key string) (*T, bool) {
	raw, _ := gen.Slot(key)
	v, ok := raw.(*T)
	return v, ok && v != nil
}

// ClinicalResolver fills diagnosis (DG1), medication (RXE/RXO/RXA/RXR) and lab
// result (OBR/OBX) fields from one clinical concept source. Scenario-backed
// instances draw every concept from the same synthetic case so the message stays
// clinically consistent; source-backed instances draw random entries.
type ClinicalResolver struct {
	name        string
	diagnoses   *selector[domain.Diagnosis]
	medications *selector[domain.Medication]
	labs        *selector[domain.LabTest]
	logger      *logrus.Logger
}

// Name implements Resolver
func (r *ClinicalResolver) Name() string { return r.name }

// CompositeTypes implements CompositeResolver
func (r *ClinicalResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{domain.TypeCE, domain.TypeCWE}
}

// NewDiagnosisResolver draws diagnoses from a data source
func NewDiagnosisResolver(source domain.DiagnosisSource, logger *logrus.Logger) *ClinicalResolver {
	r := newClinicalResolver("diagnosis_source", logger)
	if source != nil {
		next := func(ctx context.Context, gen *domain.GenerationContext) (*domain.Diagnosis, error) {
			return source.RandomDiagnosis(ctx, gen.Rand())
		}
		r.diagnoses = &selector[domain.Diagnosis]{slot: r.name + ".current", next: next, peek: next}
	}
	return r
}

// NewMedicationResolver draws medications from a data source
func NewMedicationResolver(source domain.MedicationSource, logger *logrus.Logger) *ClinicalResolver {
	r := newClinicalResolver("medication_source", logger)
	if source != nil {
		next := func(ctx context.Context, gen *domain.GenerationContext) (*domain.Medication, error) {
			return source.RandomMedication(ctx, gen.Rand())
		}
		r.medications = &selector[domain.Medication]{slot: r.name + ".current", next: next, peek: next}
	}
	return r
}

// NewLabTestResolver draws lab tests from a data source
func NewLabTestResolver(source domain.LabTestSource, logger *logrus.Logger) *ClinicalResolver {
	r := newClinicalResolver("lab_source", logger)
	if source != nil {
		next := func(ctx context.Context, gen *domain.GenerationContext) (*domain.LabTest, error) {
			return source.RandomLabTest(ctx, gen.Rand())
		}
		r.labs = &selector[domain.LabTest]{slot: r.name + ".current", next: next, peek: next}
	}
	return r
}

// PinScenario fixes the clinical case of one message before resolution starts,
// so the scenario resolvers skip the coordinator for it
func PinScenario(gen *domain.GenerationContext, sc domain.ClinicalScenario) {
	gen.SetSlot(scenarioSlot, sc)
}

// NewScenarioResolvers returns diagnosis, medication and lab resolvers backed by
// one scenario per message. Each cycles through its scenario list across repeated
// segments, with counters kept in the GenerationContext.
func NewScenarioResolvers(coordinator domain.ScenarioCoordinator, logger *logrus.Logger) []*ClinicalResolver {
	if coordinator == nil {
		return nil
	}
	scenario := func(ctx context.Context, gen *domain.GenerationContext) (domain.ClinicalScenario, error) {
		if v, ok := gen.Slot(scenarioSlot); ok {
			sc, _ := v.(domain.ClinicalScenario)
			return sc, nil
		}
		sc, err := coordinator.SelectScenario(ctx, gen.Rand())
		if err != nil {
			gen.SetSlot(scenarioSlot, nil)
			return nil, fmt.Errorf("selecting clinical scenario: %w", err)
		}
		gen.SetSlot(scenarioSlot, sc)
		return sc, nil
	}

	diag := newClinicalResolver("scenario_diagnosis", logger)
	diag.diagnoses = &selector[domain.Diagnosis]{
		slot: diag.name + ".current",
		next: cycleNext(scenario, diag.name, func(sc domain.ClinicalScenario) []domain.Diagnosis { return sc.GetDiagnoses(MaxScenarioEntries) }),
		peek: firstOf(scenario, func(sc domain.ClinicalScenario) []domain.Diagnosis { return sc.GetDiagnoses(MaxScenarioEntries) }),
	}

	meds := newClinicalResolver("scenario_medication", logger)
	meds.medications = &selector[domain.Medication]{
		slot: meds.name + ".current",
		next: cycleNext(scenario, meds.name, func(sc domain.ClinicalScenario) []domain.Medication { return sc.GetMedications(MaxScenarioEntries) }),
		peek: firstOf(scenario, func(sc domain.ClinicalScenario) []domain.Medication { return sc.GetMedications(MaxScenarioEntries) }),
	}

	labs := newClinicalResolver("scenario_lab", logger)
	labs.labs = &selector[domain.LabTest]{
		slot: labs.name + ".current",
		next: cycleNext(scenario, labs.name, func(sc domain.ClinicalScenario) []domain.LabTest { return sc.GetLabTests(MaxScenarioEntries) }),
		peek: firstOf(scenario, func(sc domain.ClinicalScenario) []domain.LabTest { return sc.GetLabTests(MaxScenarioEntries) }),
	}

	return []*ClinicalResolver{diag, meds, labs}
}

type scenarioFunc func(ctx context.Context, gen *domain.GenerationContext) (domain.ClinicalScenario, error)

func cycleNext[T any](scenario scenarioFunc, key string, list func(domain.ClinicalScenario) []T) func(context.Context, *domain.GenerationContext) (*T, error) {
	return func(ctx context.Context, gen *domain.GenerationContext) (*T, error) {
		sc, err := scenario(ctx, gen)
		if err != nil || sc == nil {
			return nil, err
		}
		entries := list(sc)
		i := gen.NextCycle(key, len(entries))
		if i < 0 {
			return nil, nil
		}
		return &entries[i], nil
	}
}

func firstOf[T any](scenario scenarioFunc, list func(domain.ClinicalScenario) []T) func(context.Context, *domain.GenerationContext) (*T, error) {
	return func(ctx context.Context, gen *domain.GenerationContext) (*T, error) {
		sc, err := scenario(ctx, gen)
		if err != nil || sc == nil {
			return nil, err
		}
		entries := list(sc)
		if len(entries) == 0 {
			return nil, nil
		}
		return &entries[0], nil
	}
}

func newClinicalResolver(name string, logger *logrus.Logger) *ClinicalResolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &ClinicalResolver{name: name, logger: logger}
}

// Resolve implements ScalarResolver
func (r *ClinicalResolver) Resolve(ctx context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	components, ok, err := r.components(ctx, rc)
	if !ok || err != nil {
		return "", false, err
	}
	return JoinComponents(components), true, nil
}

// ResolveComposite implements CompositeResolver
func (r *ClinicalResolver) ResolveComposite(ctx context.Context, rc *domain.ResolutionContext, _ *domain.CompositeSchema) (map[int]string, bool, error) {
	return r.components(ctx, rc)
}

func (r *ClinicalResolver) components(ctx context.Context, rc *domain.ResolutionContext) (map[int]string, bool, error) {
	switch rc.SegmentCode {
	case "DG1":
		if r.diagnoses != nil {
			return r.diagnosisField(ctx, rc)
		}
	case "RXE", "RXO", "RXA", "RXD", "RXR":
		if r.medications != nil {
			return r.medicationField(ctx, rc)
		}
	case "OBR", "OBX":
		if r.labs != nil {
			return r.labField(ctx, rc)
		}
	}
	return nil, false, nil
}

func (r *ClinicalResolver) diagnosisField(ctx context.Context, rc *domain.ResolutionContext) (map[int]string, bool, error) {
	var (
		d   *domain.Diagnosis
		err error
	)
	switch rc.FieldPosition {
	case 2:
		d, err = r.diagnoses.upcoming(ctx, rc.Generation)
	case 3:
		d, err = r.diagnoses.advance(ctx, rc.Generation)
	case 4:
		d, err = r.diagnoses.current(ctx, rc.Generation)
	default:
		return nil, false, nil
	}
	if err != nil || d == nil {
		return nil, false, err
	}

	switch rc.FieldPosition {
	case 2:
		return map[int]string{1: d.CodingSystem()}, true, nil
	case 3:
		return map[int]string{1: d.Code, 2: d.Description, 3: d.CodingSystem()}, true, nil
	default:
		return map[int]string{1: d.Description}, true, nil
	}
}

func (r *ClinicalResolver) medicationField(ctx context.Context, rc *domain.ResolutionContext) (map[int]string, bool, error) {
	var kind string
	switch rc.Path() {
	case "RXE.2", "RXO.1", "RXA.5", "RXD.2":
		kind = "code"
	case "RXE.3", "RXO.2", "RXA.6", "RXD.4":
		kind = "amount"
	case "RXE.5", "RXO.4", "RXA.7", "RXD.5":
		kind = "units"
	case "RXR.1":
		kind = "route"
	default:
		return nil, false, nil
	}

	var (
		m   *domain.Medication
		err error
	)
	if kind == "code" {
		m, err = r.medications.advance(ctx, rc.Generation)
	} else {
		m, err = r.medications.current(ctx, rc.Generation)
	}
	if err != nil || m == nil {
		return nil, false, err
	}

	switch kind {
	case "code":
		return map[int]string{1: m.Code, 2: m.Name, 3: m.CodingSystem()}, true, nil
	case "amount":
		amount := leadingNumber(m.Strength)
		if amount == "" {
			return nil, false, nil
		}
		return map[int]string{1: amount}, true, nil
	case "units":
		if m.Units == "" {
			return nil, false, nil
		}
		return map[int]string{1: m.Units, 2: m.Units, 3: "UCUM"}, true, nil
	default:
		code, text := RouteCode(m.Route)
		if code == "" {
			return nil, false, nil
		}
		return map[int]string{1: code, 2: text, 3: "HL70162"}, true, nil
	}
}

// labReading is the value reported for the current lab test of a message
type labReading struct {
	test  *domain.LabTest
	value float64
}

func (r *ClinicalResolver) labField(ctx context.Context, rc *domain.ResolutionContext) (map[int]string, bool, error) {
	gen := rc.Generation
	switch rc.Path() {
	case "OBR.4":
		l, err := r.labs.peek(ctx, gen)
		if err != nil || l == nil {
			return nil, false, err
		}
		return map[int]string{1: l.Code, 2: l.Name, 3: l.CodingSystem()}, true, nil
	case "OBX.2":
		l, err := r.labs.peek(ctx, gen)
		if err != nil || l == nil {
			return nil, false, err
		}
		return map[int]string{1: "NM"}, true, nil
	case "OBX.3":
		l, err := r.labs.advance(ctx, gen)
		if err != nil || l == nil {
			return nil, false, err
		}
		gen.SetSlot(r.readingSlot(), labReading{})
		return map[int]string{1: l.Code, 2: l.Name, 3: l.CodingSystem()}, true, nil
	case "OBX.5", "OBX.6", "OBX.7", "OBX.8":
	default:
		return nil, false, nil
	}

	l, err := r.labs.current(ctx, gen)
	if err != nil || l == nil {
		return nil, false, err
	}
	switch rc.FieldPosition {
	case 5:
		return map[int]string{1: formatNumber(r.reading(gen, l).value, 1)}, true, nil
	case 6:
		if l.Units == "" {
			return nil, false, nil
		}
		return map[int]string{1: l.Units, 2: l.Units, 3: "UCUM"}, true, nil
	case 7:
		if !l.HasRange() {
			return nil, false, nil
		}
		return map[int]string{1: fmt.Sprintf("%s-%s", trimNumber(l.NormalLow), trimNumber(l.NormalHigh))}, true, nil
	default:
		return map[int]string{1: AbnormalFlag(l, r.reading(gen, l).value)}, true, nil
	}
}

// reading returns the value for the lab test, generating it once per OBX
func (r *ClinicalResolver) reading(gen *domain.GenerationContext, l *domain.LabTest) labReading {
	slot := r.readingSlot()
	if v, ok := gen.Slot(slot); ok {
		if reading := v.(labReading); reading.test == l {
			return reading
		}
	}

	rng := gen.Rand()
	low, high := l.NormalLow, l.NormalHigh
	if !l.HasRange() {
		low, high = 0, 100
	}
	span := high - low
	value := low + rng.Float64()*span
	if l.HasRange() && rng.IntN(100) < 15 {
		excursion := rng.Float64() * 0.2 * span
		if rng.IntN(2) == 0 {
			value = low - excursion - 0.1
		} else {
			value = high + excursion + 0.1
		}
		if value < 0 {
			value = 0
		}
	}
	reading := labReading{test: l, value: round1(value)}
	gen.SetSlot(slot, reading)
	return reading
}

func (r *ClinicalResolver) readingSlot() string {
	return r.name + ".reading"
}

// AbnormalFlag classifies a value against the test's reference range (HL7 table 0078)
func AbnormalFlag(l *domain.LabTest, value float64) string {
	switch {
	case !l.HasRange():
		return ""
	case value < l.NormalLow:
		return "L"
	case value > l.NormalHigh:
		return "H"
	default:
		return "N"
	}
}

var routeCodes = map[string][2]string{
	"ORAL":          {"PO", "Oral"},
	"INTRAVENOUS":   {"IV", "Intravenous"},
	"SUBCUTANEOUS":  {"SC", "Subcutaneous"},
	"INTRAMUSCULAR": {"IM", "Intramuscular"},
	"TOPICAL":       {"TP", "Topical"},
	"INHALATION":    {"IH", "Inhalation"},
	"SUBLINGUAL":    {"SL", "Sublingual"},
	"TRANSDERMAL":   {"TD", "Transdermal"},
	"RECTAL":        {"PR", "Rectal"},
	"OPHTHALMIC":    {"OP", "Ophthalmic"},
	"NASAL":         {"NS", "Nasal"},
}

// RouteCode maps a route description to its HL7 table 0162 code
func RouteCode(route string) (string, string) {
	key := strings.ToUpper(strings.TrimSpace(route))
	if key == "" {
		return "", ""
	}
	if rc, ok := routeCodes[key]; ok {
		return rc[0], rc[1]
	}
	for _, rc := range routeCodes {
		if rc[0] == key {
			return rc[0], rc[1]
		}
	}
	return key, route
}

// leadingNumber extracts "500" from "500 mg" or "2.5MG"
func leadingNumber(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return ""
	}
	if _, err := strconv.ParseFloat(s[:end], 64); err != nil {
		return ""
	}
	return s[:end]
}

func trimNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
