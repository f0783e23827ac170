package domain

import (
	"context"
	"math/rand/v2"
)

// TableProvider supplies HL7 standards tables. Implementations fail softly:
// callers treat any error as "table unavailable".
type TableProvider interface {
	GetTable(ctx context.Context, tableID string) (*Table, error)
}

// DemographicSource supplies realistic person names
type DemographicSource interface {
	RandomLastName(ctx context.Context, rng *rand.Rand) (string, error)
	RandomFirstName(ctx context.Context, rng *rand.Rand, gender Gender) (string, error)
}

// DiagnosisSource supplies random diagnosis codes
type DiagnosisSource interface {
	RandomDiagnosis(ctx context.Context, rng *rand.Rand) (*Diagnosis, error)
}

// MedicationSource supplies random medications
type MedicationSource interface {
	RandomMedication(ctx context.Context, rng *rand.Rand) (*Medication, error)
}

// LabTestSource supplies random lab tests
type LabTestSource interface {
	RandomLabTest(ctx context.Context, rng *rand.Rand) (*LabTest, error)
}

// ProviderSource supplies random practitioners
type ProviderSource interface {
	RandomProvider(ctx context.Context, rng *rand.Rand) (*Provider, error)
}

// ReferenceData bundles every reference data source
type ReferenceData interface {
	TableProvider
	DemographicSource
	DiagnosisSource
	MedicationSource
	LabTestSource
	ProviderSource
}

// ClinicalScenario is one coherent synthetic case. Each getter returns at most
// max entries; the lists are small and internally consistent.
type ClinicalScenario interface {
	Name() string
	GetDiagnoses(max int) []Diagnosis
	GetMedications(max int) []Medication
	GetLabTests(max int) []LabTest
}

// ScenarioCoordinator selects the clinical case a message describes
type ScenarioCoordinator interface {
	SelectScenario(ctx context.Context, rng *rand.Rand) (ClinicalScenario, error)
}

// LockSessionService returns the values a user has locked for an override session
type LockSessionService interface {
	GetLockedValues(ctx context.Context, sessionName string) (map[string]string, error)
}

// FieldPathResolver maps a semantic path such as "patient.mrn" to a wire path such as "PID.3"
type FieldPathResolver interface {
	ResolvePath(ctx context.Context, semanticPath string, messageType MessageType, standardVersion string) (string, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetCacheConfig() *CacheConfig
	GetGenerationConfig() *GenerationConfig
	Validate() error
}
