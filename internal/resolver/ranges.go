package resolver

import (
	"context"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/hl7-synth-server/internal/domain"
)

// UnitVocabulary is a set of units with the magnitude band quantities use
type UnitVocabulary struct {
	Name  string
	Units []string
	Min   float64
	Max   float64
}

// Contains reports whether unit belongs to the vocabulary
func (v UnitVocabulary) Contains(unit string) bool {
	for _, u := range v.Units {
		if u == unit {
			return true
		}
	}
	return false
}

// unit vocabularies selected by field keywords
var (
	dosingUnits   = UnitVocabulary{Name: "dosing", Units: []string{"mg", "mcg", "g", "mL", "units", "mEq"}, Min: 0.5, Max: 1000}
	volumeUnits   = UnitVocabulary{Name: "volume", Units: []string{"mL", "L", "uL"}, Min: 1, Max: 500}
	durationUnits = UnitVocabulary{Name: "duration", Units: []string{"min", "h", "d", "wk"}, Min: 1, Max: 72}
	defaultUnits  = UnitVocabulary{Name: "default", Units: []string{"each", "%", "mmol/L", "mg/dL"}, Min: 1, Max: 100}
)

// VocabularyFor selects units from the field's name and description
func VocabularyFor(rc *domain.ResolutionContext) UnitVocabulary {
	kw := rc.Keywords()
	var v UnitVocabulary
	switch {
	case containsAny(kw, "dose", "dosage", "dosing", "strength", "give amount", "medication"):
		v = dosingUnits
	case containsAny(kw, "specimen", "collection", "volume"):
		v = volumeUnits
	case containsAny(kw, "duration", "time", "interval", "period", "length of"):
		v = durationUnits
	default:
		v = defaultUnits
	}
	v.Units = slices.Clone(v.Units)
	return v
}

type rangeBand struct {
	lowMin, lowMax   float64
	spanMin, spanMax float64
}

var (
	criticalBand = rangeBand{lowMin: 0, lowMax: 50, spanMin: 100, spanMax: 500}
	normalBand   = rangeBand{lowMin: 1, lowMax: 100, spanMin: 5, spanMax: 50}
	defaultBand  = rangeBand{lowMin: 0, lowMax: 100, spanMin: 10, spanMax: 200}
)

// RangeResolver keeps quantity and range composites internally sensible:
// non-negative magnitudes with matching units, low below high, and date
// ranges that end after they start.
type RangeResolver struct{}

// NewRangeResolver creates the resolver
func NewRangeResolver() *RangeResolver {
	return &RangeResolver{}
}

// Name implements Resolver
func (r *RangeResolver) Name() string { return "range" }

// CompositeTypes implements CompositeResolver
func (r *RangeResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{domain.TypeCQ, domain.TypeNR, domain.TypeDR, domain.TypeDLT}
}

// ResolveComposite implements CompositeResolver
func (r *RangeResolver) ResolveComposite(_ context.Context, rc *domain.ResolutionContext, schema *domain.CompositeSchema) (map[int]string, bool, error) {
	switch schema.DataType {
	case domain.TypeCQ:
		return r.quantity(rc), true, nil
	case domain.TypeNR:
		low, high := r.numericRange(rc)
		return map[int]string{1: formatNumber(low, 1), 2: formatNumber(high, 1)}, true, nil
	case domain.TypeDR:
		start, end := r.dateRange(rc.Generation)
		layout := domain.PrecisionDateTime.Layout()
		return map[int]string{1: start.Format(layout), 2: end.Format(layout)}, true, nil
	case domain.TypeDLT:
		return r.absoluteRange(rc), true, nil
	default:
		return nil, false, nil
	}
}

func (r *RangeResolver) quantity(rc *domain.ResolutionContext) map[int]string {
	rng := rc.Generation.Rand()
	vocab := VocabularyFor(rc)
	magnitude := vocab.Min + rng.Float64()*(vocab.Max-vocab.Min)
	decimals := 0
	if magnitude < 10 {
		decimals = 1
	}
	return map[int]string{
		1: formatNumber(magnitude, decimals),
		2: vocab.Units[rng.IntN(len(vocab.Units))],
	}
}

// numericRange returns low < high, both rounded to one decimal
func (r *RangeResolver) numericRange(rc *domain.ResolutionContext) (float64, float64) {
	band := defaultBand
	kw := rc.Keywords()
	switch {
	case containsAny(kw, "critical", "panic"):
		band = criticalBand
	case containsAny(kw, "normal", "reference"):
		band = normalBand
	}

	rng := rc.Generation.Rand()
	low := round1(band.lowMin + rng.Float64()*(band.lowMax-band.lowMin))
	span := round1(band.spanMin + rng.Float64()*(band.spanMax-band.spanMin))
	return low, round1(low + span)
}

// dateRange starts within the past 30 days and lasts between 1 and 14 days
func (r *RangeResolver) dateRange(gen *domain.GenerationContext) (time.Time, time.Time) {
	rng := gen.Rand()
	now := gen.Now().Truncate(time.Second)
	start := now.Add(-time.Duration(rng.Int64N(int64(30*24*time.Hour/time.Second))) * time.Second)
	minutes := rng.Int64N(int64(13*24*time.Hour/time.Minute) + 1)
	end := start.Add(24*time.Hour + time.Duration(minutes)*time.Minute)
	return start, end
}

// absoluteRange derives every part from one nested numeric range
func (r *RangeResolver) absoluteRange(rc *domain.ResolutionContext) map[int]string {
	rng := rc.Generation.Rand()
	low, high := r.numericRange(rc)
	change := math.Round((high-low)*0.1*100) / 100
	return map[int]string{
		1: JoinSubcomponents(formatNumber(low, 1), formatNumber(high, 1)),
		2: strconv.FormatFloat(change, 'f', -1, 64),
		3: strconv.Itoa(1 + rng.IntN(50)),
		4: strconv.Itoa(1 + rng.IntN(30)),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
