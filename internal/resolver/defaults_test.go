package resolver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/pkg/checkdigit"
)

func TestDefaultRegistrationsOrder(t *testing.T) {
	o := NewDefaultOrchestrator(quietLogger(), Dependencies{
		Sessions:  new(MockLockSessionService),
		Scenarios: &fixedCoordinator{scenario: diabetesScenario()},
	})

	var names []string
	for _, reg := range o.Registrations() {
		names = append(names, reg.Resolver.Name())
	}
	assert.Equal(t, []string{
		"session_override",
		"temporal",
		"identifier",
		"entity_identity",
		"range",
		"table",
		"scenario_diagnosis",
		"scenario_medication",
		"scenario_lab",
		"diagnosis_source",
		"medication_source",
		"lab_source",
		"demographic",
		"fallback",
	}, names)
}

func TestDefaultOrchestratorAdmission(t *testing.T) {
	o := NewDefaultOrchestrator(quietLogger(), Dependencies{
		Scenarios: &fixedCoordinator{scenario: diabetesScenario()},
	})
	gen := newGen(domain.ADT_A01, domain.WithEntities(domain.Entities{
		Patient: &domain.Patient{MRN: "40012345", FamilyName: "Doe", GivenName: "Jane", Gender: domain.GenderFemale},
	}))
	ctx := context.Background()
	resolve := func(seg string, pos int, f domain.FieldMetadata) string {
		return o.ResolveField(ctx, domain.NewResolutionContext(gen, seg, pos, f))
	}

	evn := resolve("EVN", 2, field("Recorded Date/Time", domain.TypeTS, 26))
	msh7 := resolve("MSH", 7, field("Date/Time of Message", domain.TypeTS, 26))
	admit := resolve("PV1", 44, field("Admit Date/Time", domain.TypeTS, 26))
	for _, v := range []string{evn, msh7, admit} {
		require.NotEmpty(t, v)
	}

	layout := domain.PrecisionDateTimeFraction.Layout()
	evnTime, err := time.Parse(layout, evn)
	require.NoError(t, err)
	admitTime, err := time.Parse(layout, admit)
	require.NoError(t, err)
	assert.False(t, admitTime.Before(evnTime))

	pid3 := strings.Split(resolve("PID", 3, field("Patient Identifier List", domain.TypeCX, 250)), ComponentSeparator)
	require.GreaterOrEqual(t, len(pid3), 5)
	assert.Equal(t, "40012345", pid3[0])
	assert.True(t, checkdigit.Validate(checkdigit.Scheme(pid3[2]), pid3[0], pid3[1]))

	assert.Equal(t, "Doe^Jane^^^^^L", resolve("PID", 5, field("Patient Name", domain.TypeXPN, 250)))
	assert.Equal(t, "F", resolve("PID", 8, field("Administrative Sex", domain.TypeIS, 1)))
	assert.Equal(t, "A01", resolve("EVN", 1, field("Event Type Code", domain.TypeID, 3)))
	assert.Equal(t, "E11.9^Type 2 diabetes mellitus without complications^I10", resolve("DG1", 3, field("Diagnosis Code - DG1", domain.TypeCE, 250)))
	assert.Equal(t, gen.ControlID(), resolve("MSH", 10, field("Message Control ID", domain.TypeST, 20)))

	assert.Empty(t, gen.Diagnostics())
	assert.Zero(t, o.GetStats().Unresolved)
}

func TestDependenciesFromNil(t *testing.T) {
	assert.Equal(t, Dependencies{}, DependenciesFrom(nil))
}
