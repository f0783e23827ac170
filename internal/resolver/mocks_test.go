package resolver

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/hl7-synth-server/internal/domain"
)

// MockTableProvider is a mock implementation of domain.TableProvider
type MockTableProvider struct {
	mock.Mock
}

func (m *MockTableProvider) GetTable(ctx context.Context, tableID string) (*domain.Table, error) {
	args := m.Called(ctx, tableID)
	if t := args.Get(0); t != nil {
		return t.(*domain.Table), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockLockSessionService is a mock implementation of domain.LockSessionService
type MockLockSessionService struct {
	mock.Mock
}

func (m *MockLockSessionService) GetLockedValues(ctx context.Context, sessionName string) (map[string]string, error) {
	args := m.Called(ctx, sessionName)
	if v := args.Get(0); v != nil {
		return v.(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockFieldPathResolver is a mock implementation of domain.FieldPathResolver
type MockFieldPathResolver struct {
	mock.Mock
}

func (m *MockFieldPathResolver) ResolvePath(ctx context.Context, semanticPath string, messageType domain.MessageType, standardVersion string) (string, error) {
	args := m.Called(ctx, semanticPath, messageType, standardVersion)
	return args.String(0), args.Error(1)
}

// stubResolver answers every scalar field with a fixed value, or fails
type stubResolver struct {
	name  string
	value string
	err   error
	panic bool
	calls int
}

func (s *stubResolver) Name() string { return s.name }

func (s *stubResolver) Resolve(_ context.Context, _ *domain.ResolutionContext) (string, bool, error) {
	s.calls++
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return "", false, s.err
	}
	return s.value, s.value != "", nil
}

// stubComposite answers composite fields of the given types
type stubComposite struct {
	name       string
	types      []domain.DataType
	components map[int]string
}

func (s *stubComposite) Name() string                      { return s.name }
func (s *stubComposite) CompositeTypes() []domain.DataType { return s.types }

func (s *stubComposite) ResolveComposite(_ context.Context, _ *domain.ResolutionContext, _ *domain.CompositeSchema) (map[int]string, bool, error) {
	return s.components, len(s.components) > 0, nil
}

type fakeScenario struct {
	name        string
	diagnoses   []domain.Diagnosis
	medications []domain.Medication
	labs        []domain.LabTest
}

func (f *fakeScenario) Name() string { return f.name }

func (f *fakeScenario) GetDiagnoses(n int) []domain.Diagnosis   { return limit(f.diagnoses, n) }
func (f *fakeScenario) GetMedications(n int) []domain.Medication { return limit(f.medications, n) }
func (f *fakeScenario) GetLabTests(n int) []domain.LabTest       { return limit(f.labs, n) }

func limit[T any](list []T, n int) []T {
	if n > 0 && len(list) > n {
		return list[:n]
	}
	return list
}

type fixedCoordinator struct {
	scenario domain.ClinicalScenario
	err      error
	calls    int
}

func (c *fixedCoordinator) SelectScenario(_ context.Context, _ *rand.Rand) (domain.ClinicalScenario, error) {
	c.calls++
	return c.scenario, c.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newGen(mt domain.MessageType, opts ...domain.GenerationOption) *domain.GenerationContext {
	base := []domain.GenerationOption{
		domain.WithSeed(7),
		domain.WithClock(func() time.Time { return fixedNow }),
	}
	return domain.NewGenerationContext(mt, append(base, opts...)...)
}

func field(name string, dt domain.DataType, maxLen int) domain.FieldMetadata {
	return domain.FieldMetadata{Name: name, DataType: dt, MaxLength: maxLen}
}
