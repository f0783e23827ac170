package refdata

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/hl7-synth-server/internal/domain"
)

// Memory serves reference data from an in-process Dataset. It is safe for
// concurrent use because the dataset is never mutated after construction.
type Memory struct {
	ds *Dataset

	female []string
	male   []string
	all    []string
}

// NewMemory wraps a dataset. A nil dataset uses Builtin.
func NewMemory(ds *Dataset) *Memory {
	if ds == nil {
		ds = Builtin()
	}
	m := &Memory{ds: ds}
	for _, fn := range ds.FirstNames {
		m.all = append(m.all, fn.Name)
		switch fn.Gender {
		case domain.GenderFemale:
			m.female = append(m.female, fn.Name)
		case domain.GenderMale:
			m.male = append(m.male, fn.Name)
		default:
			m.female = append(m.female, fn.Name)
			m.male = append(m.male, fn.Name)
		}
	}
	return m
}

// Dataset returns the underlying dataset
func (m *Memory) Dataset() *Dataset {
	return m.ds
}

// GetTable implements domain.TableProvider
func (m *Memory) GetTable(_ context.Context, tableID string) (*domain.Table, error) {
	t, ok := m.ds.Tables[tableID]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", tableID, domain.ErrNotFound)
	}
	return t, nil
}

// TableIDs lists the tables the dataset carries
func (m *Memory) TableIDs() []string {
	ids := make([]string, 0, len(m.ds.Tables))
	for id := range m.ds.Tables {
		ids = append(ids, id)
	}
	return ids
}

// RandomLastName implements domain.DemographicSource
func (m *Memory) RandomLastName(_ context.Context, rng *rand.Rand) (string, error) {
	if len(m.ds.LastNames) == 0 {
		return "", domain.ErrNoReferenceData
	}
	return m.ds.LastNames[RankedIndex(rng, len(m.ds.LastNames))], nil
}

// RandomFirstName implements domain.DemographicSource. Genders other than
// male and female draw from every name.
func (m *Memory) RandomFirstName(_ context.Context, rng *rand.Rand, gender domain.Gender) (string, error) {
	pool := m.all
	switch gender {
	case domain.GenderFemale:
		pool = m.female
	case domain.GenderMale:
		pool = m.male
	}
	if len(pool) == 0 {
		return "", domain.ErrNoReferenceData
	}
	return pool[RankedIndex(rng, len(pool))], nil
}

// RandomDiagnosis implements domain.DiagnosisSource
func (m *Memory) RandomDiagnosis(_ context.Context, rng *rand.Rand) (*domain.Diagnosis, error) {
	if len(m.ds.Diagnoses) == 0 {
		return nil, domain.ErrNoReferenceData
	}
	d := m.ds.Diagnoses[RankedIndex(rng, len(m.ds.Diagnoses))]
	return &d, nil
}

// RandomMedication implements domain.MedicationSource
func (m *Memory) RandomMedication(_ context.Context, rng *rand.Rand) (*domain.Medication, error) {
	if len(m.ds.Medications) == 0 {
		return nil, domain.ErrNoReferenceData
	}
	med := m.ds.Medications[RankedIndex(rng, len(m.ds.Medications))]
	return &med, nil
}

// RandomLabTest implements domain.LabTestSource
func (m *Memory) RandomLabTest(_ context.Context, rng *rand.Rand) (*domain.LabTest, error) {
	if len(m.ds.LabTests) == 0 {
		return nil, domain.ErrNoReferenceData
	}
	lt := m.ds.LabTests[RankedIndex(rng, len(m.ds.LabTests))]
	return &lt, nil
}

// RandomProvider implements domain.ProviderSource
func (m *Memory) RandomProvider(_ context.Context, rng *rand.Rand) (*domain.Provider, error) {
	if len(m.ds.Providers) == 0 {
		return nil, domain.ErrNoReferenceData
	}
	p := m.ds.Providers[rng.IntN(len(m.ds.Providers))]
	return &p, nil
}

// RankedIndex picks an index in [0, n) biased toward the front, so common
// entries of a frequency-ordered list appear more often than rare ones.
func RankedIndex(rng *rand.Rand, n int) int {
	if n <= 1 {
		return 0
	}
	u := rng.Float64()
	i := int(u * u * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
