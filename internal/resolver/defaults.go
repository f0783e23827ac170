package resolver

import (
	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
)

// Dependencies are the collaborators of the default resolver chain. Every field
// is optional; a missing source makes the strategies that need it abstain or use
// their built-in values.
type Dependencies struct {
	Schemas      domain.SchemaProvider
	Sessions     domain.LockSessionService
	Paths        domain.FieldPathResolver
	Tables       domain.TableProvider
	Demographics domain.DemographicSource
	Diagnoses    domain.DiagnosisSource
	Medications  domain.MedicationSource
	LabTests     domain.LabTestSource
	Providers    domain.ProviderSource
	Scenarios    domain.ScenarioCoordinator
}

// DependenciesFrom fills every data source from one reference data set
func DependenciesFrom(ref domain.ReferenceData) Dependencies {
	if ref == nil {
		return Dependencies{}
	}
	return Dependencies{
		Tables:       ref,
		Demographics: ref,
		Diagnoses:    ref,
		Medications:  ref,
		LabTests:     ref,
		Providers:    ref,
	}
}

// DefaultRegistrations builds the standard resolver chain
func DefaultRegistrations(logger *logrus.Logger, deps Dependencies) []Registration {
	personas := NewPersonaBuilder(deps.Demographics, logger)

	regs := []Registration{
		Register(NewTemporalResolver(), PriorityTemporal),
		Register(NewIdentifierResolver(deps.Tables, personas, logger).WithProviders(deps.Providers), PriorityIdentifier),
		Register(NewEntityIdentityResolver(personas), PriorityIdentity),
		Register(NewRangeResolver(), PriorityRange),
		Register(NewTableResolver(deps.Tables, nil, logger), PriorityTable),
	}
	if deps.Sessions != nil {
		regs = append([]Registration{
			Register(NewSessionOverrideResolver(deps.Sessions, deps.Paths, logger), PrioritySessionOverride),
		}, regs...)
	}
	for _, r := range NewScenarioResolvers(deps.Scenarios, logger) {
		regs = append(regs, Register(r, PriorityScenario))
	}
	regs = append(regs,
		Register(NewDiagnosisResolver(deps.Diagnoses, logger), PriorityDataSource),
		Register(NewMedicationResolver(deps.Medications, logger), PriorityDataSource),
		Register(NewLabTestResolver(deps.LabTests, logger), PriorityDataSource),
		Register(NewDemographicResolver(personas), PriorityDataSource),
		Register(NewFallbackResolver(), PriorityFallback),
	)
	return regs
}

// NewDefaultOrchestrator creates an orchestrator with the standard resolver chain
func NewDefaultOrchestrator(logger *logrus.Logger, deps Dependencies) *Orchestrator {
	return NewOrchestrator(logger, deps.Schemas, DefaultRegistrations(logger, deps)...)
}
