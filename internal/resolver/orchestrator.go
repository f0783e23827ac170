package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
)

// Stats counts how fields were resolved across all messages
type Stats struct {
	Requests   int64            `json:"requests"`
	Unresolved int64            `json:"unresolved"`
	Answers    map[string]int64 `json:"answers"`
	Faults     map[string]int64 `json:"faults"`
	LastReset  time.Time        `json:"last_reset"`
}

type registration struct {
	Registration
	order int
}

// Orchestrator dispatches each field to the highest-priority resolver that answers.
// The resolver set is fixed at construction and is safe to share between goroutines;
// all per-message state lives in the GenerationContext.
type Orchestrator struct {
	logger  *logrus.Logger
	schemas domain.SchemaProvider

	ordered    []registration
	scalars    []registration
	composites map[domain.DataType][]registration
	wildcard   []registration

	statsMu sync.Mutex
	stats   Stats
}

// NewOrchestrator sorts the registrations by descending priority. Ties keep the
// order in which they were passed.
func NewOrchestrator(logger *logrus.Logger, schemas domain.SchemaProvider, registrations ...Registration) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if schemas == nil {
		schemas = domain.StandardSchemas()
	}

	ordered := make([]registration, 0, len(registrations))
	for i, reg := range registrations {
		if reg.Resolver == nil {
			continue
		}
		ordered = append(ordered, registration{Registration: reg, order: i})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	o := &Orchestrator{
		logger:     logger,
		schemas:    schemas,
		ordered:    ordered,
		composites: make(map[domain.DataType][]registration),
		stats: Stats{
			Answers:   make(map[string]int64),
			Faults:    make(map[string]int64),
			LastReset: time.Now(),
		},
	}

	for _, reg := range ordered {
		if _, ok := reg.Resolver.(ScalarResolver); ok {
			o.scalars = append(o.scalars, reg)
		}
		cr, ok := reg.Resolver.(CompositeResolver)
		if !ok {
			continue
		}
		for _, dt := range cr.CompositeTypes() {
			if dt == AnyComposite {
				o.wildcard = append(o.wildcard, reg)
				continue
			}
			o.composites[dt] = append(o.composites[dt], reg)
		}
	}

	logger.WithFields(logrus.Fields{
		"resolvers":       len(ordered),
		"scalar":          len(o.scalars),
		"composite_types": len(o.composites),
	}).Debug("Resolution orchestrator initialized")

	return o
}

// Registrations returns the resolver set in dispatch order
func (o *Orchestrator) Registrations() []Registration {
	out := make([]Registration, len(o.ordered))
	for i, reg := range o.ordered {
		out[i] = reg.Registration
	}
	return out
}

// IsCompositeCapable reports whether a type-specific composite resolver handles
// the data type. Pass-through resolvers registered for AnyComposite do not count.
func (o *Orchestrator) IsCompositeCapable(dataType domain.DataType) bool {
	if _, ok := o.schemas.CompositeSchema(dataType); !ok {
		return false
	}
	return len(o.composites[dataType]) > 0
}

// ResolveField returns the value for one field. It never fails: resolver faults
// are logged and skipped, and a field nobody answers resolves to "".
func (o *Orchestrator) ResolveField(ctx context.Context, rc *domain.ResolutionContext) string {
	if rc == nil || rc.Generation == nil {
		return ""
	}
	o.count(func(s *Stats) { s.Requests++ })

	if schema, ok := o.schemas.CompositeSchema(rc.Field.DataType); ok {
		for _, reg := range o.compositeChain(rc.Field.DataType) {
			components, answered := o.tryComposite(ctx, reg, rc, schema)
			if answered {
				o.count(func(s *Stats) { s.Answers[reg.Resolver.Name()]++ })
				return JoinComponents(components)
			}
		}
	}

	for _, reg := range o.scalars {
		value, answered := o.tryScalar(ctx, reg, rc)
		if answered {
			o.count(func(s *Stats) { s.Answers[reg.Resolver.Name()]++ })
			return value
		}
	}

	o.count(func(s *Stats) { s.Unresolved++ })
	if rc.Field.Required {
		rc.Generation.AddDiagnostic(domain.Diagnostic{
			Path:   rc.Path(),
			Field:  rc.Field.Name,
			Reason: "required field left blank: no resolver produced a value",
		})
		o.logger.WithFields(logrus.Fields{
			"path":       rc.Path(),
			"field":      rc.Field.Name,
			"message_id": rc.Generation.ID(),
		}).Debug("Required field unresolved")
	}
	return ""
}

// compositeChain merges type-specific and wildcard composite resolvers in dispatch order
func (o *Orchestrator) compositeChain(dt domain.DataType) []registration {
	specific := o.composites[dt]
	if len(o.wildcard) == 0 {
		return specific
	}
	chain := make([]registration, 0, len(specific)+len(o.wildcard))
	i, j := 0, 0
	for i < len(specific) && j < len(o.wildcard) {
		if before(specific[i], o.wildcard[j]) {
			chain = append(chain, specific[i])
			i++
		} else {
			chain = append(chain, o.wildcard[j])
			j++
		}
	}
	chain = append(chain, specific[i:]...)
	return append(chain, o.wildcard[j:]...)
}

func before(a, b registration) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.order < b.order
}

func (o *Orchestrator) tryComposite(ctx context.Context, reg registration, rc *domain.ResolutionContext, schema *domain.CompositeSchema) (components map[int]string, answered bool) {
	defer func() {
		if p := recover(); p != nil {
			o.fault(reg, rc, fmt.Errorf("panic: %v", p))
			components, answered = nil, false
		}
	}()

	cr := reg.Resolver.(CompositeResolver)
	components, ok, err := cr.ResolveComposite(ctx, rc, schema)
	if err != nil {
		o.fault(reg, rc, err)
		return nil, false
	}
	if !ok || len(components) == 0 {
		return nil, false
	}
	return components, true
}

func (o *Orchestrator) tryScalar(ctx context.Context, reg registration, rc *domain.ResolutionContext) (value string, answered bool) {
	defer func() {
		if p := recover(); p != nil {
			o.fault(reg, rc, fmt.Errorf("panic: %v", p))
			value, answered = "", false
		}
	}()

	sr := reg.Resolver.(ScalarResolver)
	value, ok, err := sr.Resolve(ctx, rc)
	if err != nil {
		o.fault(reg, rc, err)
		return "", false
	}
	return value, ok
}

func (o *Orchestrator) fault(reg registration, rc *domain.ResolutionContext, err error) {
	o.count(func(s *Stats) { s.Faults[reg.Resolver.Name()]++ })
	rerr := domain.NewResolutionError(reg.Resolver.Name(), rc, err)
	o.logger.WithError(rerr).WithFields(logrus.Fields{
		"resolver":   reg.Resolver.Name(),
		"priority":   reg.Priority,
		"segment":    rc.SegmentCode,
		"position":   rc.FieldPosition,
		"data_type":  rc.Field.DataType,
		"message_id": rc.Generation.ID(),
	}).Warn("Resolver failed, treating as abstention")
}

func (o *Orchestrator) count(update func(*Stats)) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	update(&o.stats)
}

// GetStats returns a snapshot of resolution counters
func (o *Orchestrator) GetStats() Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	snapshot := o.stats
	snapshot.Answers = make(map[string]int64, len(o.stats.Answers))
	for k, v := range o.stats.Answers {
		snapshot.Answers[k] = v
	}
	snapshot.Faults = make(map[string]int64, len(o.stats.Faults))
	for k, v := range o.stats.Faults {
		snapshot.Faults[k] = v
	}
	return snapshot
}

// ResetStats clears the counters
func (o *Orchestrator) ResetStats() {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	o.stats = Stats{
		Answers:   make(map[string]int64),
		Faults:    make(map[string]int64),
		LastReset: time.Now(),
	}
}
