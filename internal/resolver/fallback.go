package resolver

import (
	"context"
	"fmt"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/pkg/checkdigit"
)

type address struct {
	street, city, state, zip string
}

var fallbackAddresses = []address{
	{"123 Main St", "Springfield", "IL", "62701"},
	{"456 Oak Ave", "Madison", "WI", "53703"},
	{"789 Pine Rd", "Austin", "TX", "78701"},
	{"1010 Elm St", "Portland", "OR", "97205"},
	{"22 Harbor Way", "Boston", "MA", "02110"},
}

// FallbackResolver guarantees an answer for ordinary fields from the data type and
// a keyword scan of the field's name. It runs last and never returns an error.
type FallbackResolver struct{}

// NewFallbackResolver creates the resolver
func NewFallbackResolver() *FallbackResolver {
	return &FallbackResolver{}
}

// Name implements Resolver
func (r *FallbackResolver) Name() string { return "fallback" }

// Resolve implements ScalarResolver. An empty heuristic result is reported as
// abstention so required-field diagnostics still fire.
func (r *FallbackResolver) Resolve(_ context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	v := truncate(r.value(rc), rc.Field.MaxLength)
	return v, v != "", nil
}

func (r *FallbackResolver) value(rc *domain.ResolutionContext) string {
	gen := rc.Generation
	rng := gen.Rand()
	kw := rc.Keywords()
	dt := rc.Field.DataType

	switch {
	case containsWord(kw, "room"):
		if dt == domain.TypePL {
			return JoinComponents(map[int]string{1: "WARD", 2: fmt.Sprintf("%d", 100+rng.IntN(400)), 3: string(rune('A' + rng.IntN(4)))})
		}
		return fmt.Sprintf("%d", 100+rng.IntN(400))
	case containsWord(kw, "bed"):
		return string(rune('A' + rng.IntN(4)))
	case containsWord(kw, "sex", "gender"):
		return sexCodes[rng.IntN(len(sexCodes))]
	case containsAny(kw, "yes/no", "indicator", "flag"):
		if rng.IntN(2) == 0 {
			return "N"
		}
		return "Y"
	}

	switch dt {
	case domain.TypeSI:
		return "1"
	case domain.TypeNM:
		if containsAny(kw, "amount", "charge", "price", "cost", "balance", "payment", "total") {
			return fmt.Sprintf("%d.%02d", 10+rng.IntN(9990), rng.IntN(100))
		}
		return fmt.Sprintf("%d", 1+rng.IntN(100))
	case domain.TypeDT, domain.TypeTS, domain.TypeDTM:
		return gen.Now().Format(rc.Field.Precision().Layout())
	case domain.TypeTM:
		return gen.Now().Format("150405")
	case domain.TypeXPN:
		return JoinComponents(map[int]string{1: fallbackFamilyNames[rng.IntN(len(fallbackFamilyNames))], 2: fallbackFemaleNames[rng.IntN(len(fallbackFemaleNames))]})
	case domain.TypeXAD:
		a := fallbackAddresses[rng.IntN(len(fallbackAddresses))]
		return JoinComponents(map[int]string{1: a.street, 3: a.city, 4: a.state, 5: a.zip, 6: "USA"})
	case domain.TypeXTN:
		return phoneNumber(rc)
	case domain.TypePL:
		return JoinComponents(map[int]string{1: "WARD", 2: fmt.Sprintf("%d", 100+rng.IntN(400)), 3: "A"})
	case domain.TypeCX, domain.TypeEI, domain.TypeCK, domain.TypeHD:
		return checkdigit.RandomBase(rng, 8)
	}

	switch {
	case containsAny(kw, "phone", "telephone"):
		return phoneNumber(rc)
	case containsAny(kw, "address", "street"):
		return fallbackAddresses[rng.IntN(len(fallbackAddresses))].street
	case containsAny(kw, "city"):
		return fallbackAddresses[rng.IntN(len(fallbackAddresses))].city
	case containsAny(kw, "state", "province"):
		return fallbackAddresses[rng.IntN(len(fallbackAddresses))].state
	case containsAny(kw, "zip", "postal"):
		return fallbackAddresses[rng.IntN(len(fallbackAddresses))].zip
	case containsAny(kw, "comment", "note", "text"):
		return "Synthetic test message"
	case containsAny(kw, "name"):
		return fallbackFamilyNames[rng.IntN(len(fallbackFamilyNames))]
	case containsWord(kw, "id", "identifier", "number"):
		return checkdigit.RandomBase(rng, 8)
	}
	return ""
}

func phoneNumber(rc *domain.ResolutionContext) string {
	return fmt.Sprintf("(555)555-%04d", rc.Generation.Rand().IntN(10000))
}

func truncate(s string, maxLen int) string {
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
