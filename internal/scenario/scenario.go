// Package scenario provides coherent clinical cases so that the diagnoses,
// medications and lab results of one generated message belong together.
package scenario

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/hl7-synth-server/internal/domain"
)

// Scenario is one clinical case. Weight controls how often the coordinator
// selects it relative to the others.
type Scenario struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Weight      int                 `json:"weight"`
	Diagnoses   []domain.Diagnosis  `json:"diagnoses"`
	Medications []domain.Medication `json:"medications"`
	LabTests    []domain.LabTest    `json:"lab_tests"`
}

// Name implements domain.ClinicalScenario
func (s *Scenario) Name() string { return s.ID }

// GetDiagnoses implements domain.ClinicalScenario
func (s *Scenario) GetDiagnoses(n int) []domain.Diagnosis { return head(s.Diagnoses, n) }

// GetMedications implements domain.ClinicalScenario
func (s *Scenario) GetMedications(n int) []domain.Medication { return head(s.Medications, n) }

// GetLabTests implements domain.ClinicalScenario
func (s *Scenario) GetLabTests(n int) []domain.LabTest { return head(s.LabTests, n) }

// head returns a copy of at most n leading entries; n <= 0 means all
func head[T any](list []T, n int) []T {
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	out := make([]T, n)
	copy(out, list[:n])
	return out
}

// Coordinator selects scenarios by weight. It is read-only after
// construction and safe for concurrent use.
type Coordinator struct {
	scenarios []*Scenario
	byID      map[string]*Scenario
	total     int
}

// NewCoordinator builds a coordinator. Scenarios with a non-positive weight
// count as weight 1; duplicate ids are rejected.
func NewCoordinator(scenarios ...*Scenario) (*Coordinator, error) {
	c := &Coordinator{byID: make(map[string]*Scenario, len(scenarios))}
	for _, s := range scenarios {
		if s == nil || s.ID == "" {
			return nil, domain.NewValidationError("id", "scenario id is required", nil)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, domain.NewValidationError("id", "duplicate scenario id", s.ID)
		}
		if s.Weight <= 0 {
			s.Weight = 1
		}
		c.byID[s.ID] = s
		c.scenarios = append(c.scenarios, s)
		c.total += s.Weight
	}
	return c, nil
}

// SelectScenario implements domain.ScenarioCoordinator
func (c *Coordinator) SelectScenario(_ context.Context, rng *rand.Rand) (domain.ClinicalScenario, error) {
	if len(c.scenarios) == 0 {
		return nil, fmt.Errorf("no clinical scenarios: %w", domain.ErrNoReferenceData)
	}
	n := rng.IntN(c.total)
	for _, s := range c.scenarios {
		if n < s.Weight {
			return s, nil
		}
		n -= s.Weight
	}
	return c.scenarios[len(c.scenarios)-1], nil
}

// Get returns a scenario by id
func (c *Coordinator) Get(id string) (*Scenario, error) {
	s, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("scenario %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// IDs lists scenario ids in sorted order
func (c *Coordinator) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
