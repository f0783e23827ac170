// Package resolver implements the field-value resolution engine: a priority-ordered
// chain of strategies that decide the value of every field in a generated message
// while keeping related fields coherent.
package resolver

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/hl7-synth-server/internal/domain"
)

// Resolver priorities. Higher values are consulted first.
const (
	PrioritySessionOverride = 1000
	PriorityTemporal        = 900
	PriorityIdentifier      = 800
	PriorityIdentity        = 750
	PriorityRange           = 700
	PriorityTable           = 600
	PriorityScenario        = 500
	PriorityDataSource      = 400
	PriorityFallback        = 0
)

// Wire separators used when expanding composite answers
const (
	ComponentSeparator    = "^"
	SubcomponentSeparator = "&"
)

// AnyComposite registers a composite resolver for every composite data type
const AnyComposite domain.DataType = "*"

// Resolver is the common identity of every strategy
type Resolver interface {
	Name() string
}

// ScalarResolver produces a single value for a field. Returning ok=false means
// the resolver abstains; an error is a fault and is treated as abstention.
type ScalarResolver interface {
	Resolver
	Resolve(ctx context.Context, rc *domain.ResolutionContext) (value string, ok bool, err error)
}

// CompositeResolver produces all components of a composite field in one pass so
// that they describe the same underlying fact. Keys of the result are 1-based
// component positions.
type CompositeResolver interface {
	Resolver
	CompositeTypes() []domain.DataType
	ResolveComposite(ctx context.Context, rc *domain.ResolutionContext, schema *domain.CompositeSchema) (map[int]string, bool, error)
}

// Registration pairs a strategy with its priority
type Registration struct {
	Resolver Resolver
	Priority int
}

// Register is a convenience constructor for a Registration
func Register(r Resolver, priority int) Registration {
	return Registration{Resolver: r, Priority: priority}
}

// JoinComponents renders component values as a composite field. Missing
// positions become empty components and trailing empty components are dropped.
func JoinComponents(components map[int]string) string {
	maxPos := 0
	for pos := range components {
		if pos > maxPos {
			maxPos = pos
		}
	}
	parts := make([]string, maxPos)
	for pos, v := range components {
		if pos >= 1 {
			parts[pos-1] = v
		}
	}
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ComponentSeparator)
}

// JoinSubcomponents renders a nested composite inside one component
func JoinSubcomponents(values ...string) string {
	return strings.Join(values, SubcomponentSeparator)
}

func formatNumber(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// containsWord matches whole words only, so "bed" does not match "described"
func containsWord(s string, words ...string) bool {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
