package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hl7-synth-server/internal/domain"
)

func TestIsDirectPath(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"PID.3", true},
		{"PV1.44", true},
		{"DG1.5", true},
		{"pid.3", false},
		{"patient.mrn", false},
		{"PID.3.1", false},
		{"PID", false},
		{"P.3", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDirectPath(tt.key))
		})
	}
}

func TestSessionOverrideWinsOverEveryResolver(t *testing.T) {
	sessions := new(MockLockSessionService)
	sessions.On("GetLockedValues", mock.Anything, "demo").Return(map[string]string{"PID.3": "999"}, nil).Once()

	o := NewDefaultOrchestrator(quietLogger(), Dependencies{Sessions: sessions})
	gen := newGen(domain.ADT_A01, domain.WithOptions(domain.ResolutionOptions{SessionName: "demo"}))

	pid3 := o.ResolveField(context.Background(), domain.NewResolutionContext(gen, "PID", 3, field("Patient Identifier List", domain.TypeCX, 250)))
	assert.Equal(t, "999", pid3)

	// Other fields fall through to the regular chain; the session is loaded once.
	pid2 := o.ResolveField(context.Background(), domain.NewResolutionContext(gen, "PID", 2, field("Patient ID", domain.TypeST, 20)))
	assert.NotEqual(t, "999", pid2)
	sessions.AssertExpectations(t)
}

func TestSessionOverrideSemanticKeys(t *testing.T) {
	sessions := new(MockLockSessionService)
	sessions.On("GetLockedValues", mock.Anything, "demo").Return(map[string]string{
		"patient.mrn":  "semantic",
		"PID.3":        "direct",
		"patient.name": "DOE^JANE",
		"unknown.key":  "ignored",
	}, nil)

	paths := new(MockFieldPathResolver)
	paths.On("ResolvePath", mock.Anything, "patient.mrn", domain.ADT_A01, "2.5").Return("PID.3", nil)
	paths.On("ResolvePath", mock.Anything, "patient.name", domain.ADT_A01, "2.5").Return("pid.5", nil)
	paths.On("ResolvePath", mock.Anything, "unknown.key", domain.ADT_A01, "2.5").Return("", domain.ErrInvalidPath)

	r := NewSessionOverrideResolver(sessions, paths, quietLogger())
	gen := newGen(domain.ADT_A01, domain.WithOptions(domain.ResolutionOptions{SessionName: "demo"}))

	v, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PID", 3, field("Patient Identifier List", domain.TypeCX, 0)))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "direct", v, "direct keys take precedence over semantic keys")

	components, ok, err := r.ResolveComposite(context.Background(), domain.NewResolutionContext(gen, "PID", 5, field("Patient Name", domain.TypeXPN, 0)), nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[int]string{1: "DOE^JANE"}, components)

	paths.AssertExpectations(t)
}

func TestSessionOverrideAbstains(t *testing.T) {
	t.Run("no session requested", func(t *testing.T) {
		sessions := new(MockLockSessionService)
		r := NewSessionOverrideResolver(sessions, nil, quietLogger())
		_, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(newGen(domain.ADT_A01), "PID", 3, field("Patient ID", domain.TypeST, 0)))
		assert.NoError(t, err)
		assert.False(t, ok)
		sessions.AssertNotCalled(t, "GetLockedValues", mock.Anything, mock.Anything)
	})

	t.Run("unknown session", func(t *testing.T) {
		sessions := new(MockLockSessionService)
		sessions.On("GetLockedValues", mock.Anything, "missing").Return(nil, domain.ErrSessionNotFound)
		r := NewSessionOverrideResolver(sessions, nil, quietLogger())
		gen := newGen(domain.ADT_A01, domain.WithOptions(domain.ResolutionOptions{SessionName: "missing"}))
		_, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PID", 3, field("Patient ID", domain.TypeST, 0)))
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("store failure is a fault", func(t *testing.T) {
		sessions := new(MockLockSessionService)
		sessions.On("GetLockedValues", mock.Anything, "broken").Return(nil, errors.New("database is locked")).Once()
		r := NewSessionOverrideResolver(sessions, nil, quietLogger())
		gen := newGen(domain.ADT_A01, domain.WithOptions(domain.ResolutionOptions{SessionName: "broken"}))

		_, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PID", 3, field("Patient ID", domain.TypeST, 0)))
		assert.Error(t, err)
		assert.False(t, ok)

		// The failure is remembered for the rest of the message.
		_, ok, err = r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PID", 4, field("Patient ID", domain.TypeST, 0)))
		assert.NoError(t, err)
		assert.False(t, ok)
		sessions.AssertExpectations(t)
	})
}
