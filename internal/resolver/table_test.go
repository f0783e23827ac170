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

func TestTableEventTypeFollowsTrigger(t *testing.T) {
	tests := []struct {
		messageType domain.MessageType
		want        string
	}{
		{domain.ADT_A01, "A01"},
		{domain.ADT_A03, "A03"},
		{domain.ADT_A08, "A08"},
	}
	for _, tt := range tests {
		t.Run(string(tt.messageType), func(t *testing.T) {
			r := NewTableResolver(nil, nil, quietLogger())
			gen := newGen(tt.messageType)
			v, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "EVN", 1, field("Event Type Code", domain.TypeID, 3)))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestTablePicksFromBoundTable(t *testing.T) {
	values := []domain.TableValue{{Code: "E", Text: "Emergency"}, {Code: "I", Text: "Inpatient"}, {Code: "O", Text: "Outpatient"}}
	tables := new(MockTableProvider)
	tables.On("GetTable", mock.Anything, "0004").Return(&domain.Table{ID: "0004", Values: values}, nil)

	r := NewTableResolver(tables, nil, quietLogger())
	gen := newGen(domain.ADT_A01)

	v, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PV1", 2, field("Patient Class", domain.TypeIS, 1)))
	require.NoError(t, err)
	require.True(t, ok)
	_, found := (&domain.Table{Values: values}).Find(v)
	assert.True(t, found, "code %q", v)

	components, ok, err := r.ResolveComposite(context.Background(), domain.NewResolutionContext(gen, "PV1", 2, field("Patient Class", domain.TypeCE, 0)), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "HL70004", components[3])
	assert.NotEmpty(t, components[2])
}

func TestTableUnavailableUsesHeuristic(t *testing.T) {
	tables := new(MockTableProvider)
	tables.On("GetTable", mock.Anything, "0296").Return(nil, errors.New("service unavailable"))
	tables.On("GetTable", mock.Anything, "0005").Return(nil, domain.ErrTableUnavailable)

	r := NewTableResolver(tables, nil, quietLogger())
	gen := newGen(domain.ADT_A01)

	v, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PID", 15, field("Primary Language", domain.TypeCE, 0)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, languageCodes, v)

	_, ok, err = r.Resolve(context.Background(), domain.NewResolutionContext(gen, "PID", 10, field("Race", domain.TypeCE, 0)))
	require.NoError(t, err)
	assert.False(t, ok, "no heuristic fits, so the resolver abstains")
}

func TestTableUnboundFieldAbstains(t *testing.T) {
	r := NewTableResolver(nil, nil, quietLogger())
	_, ok := r.TableFor("OBX.2")
	assert.False(t, ok)

	_, ok, err := r.Resolve(context.Background(), domain.NewResolutionContext(newGen(domain.ORU_R01), "OBX", 2, field("Value Type", domain.TypeID, 2)))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSemanticHeuristic(t *testing.T) {
	gen := newGen(domain.ADT_A01)

	v, ok, _ := SemanticHeuristic(domain.NewResolutionContext(gen, "ZZZ", 1, field("Attending Physician", domain.TypeST, 0)))
	require.True(t, ok)
	assert.Regexp(t, `^\d{10}$`, v)

	v, ok, _ = SemanticHeuristic(domain.NewResolutionContext(gen, "ZZZ", 1, field("Accommodation Code", domain.TypeST, 0)))
	require.True(t, ok)
	assert.Contains(t, accommodationCodes, v)

	v, ok, _ = SemanticHeuristic(domain.NewResolutionContext(gen, "ZZZ", 1, field("Admitting Diagnosis", domain.TypeST, 0)))
	require.True(t, ok)
	assert.Regexp(t, `^[A-Z]\d{2}\.\d$`, v)

	_, ok, _ = SemanticHeuristic(domain.NewResolutionContext(gen, "ZZZ", 1, field("Described Item", domain.TypeST, 0)))
	assert.False(t, ok)
}
