package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageType(t *testing.T) {
	tests := []struct {
		name    string
		value   MessageType
		code    string
		trigger string
		valid   bool
	}{
		{"Admit", ADT_A01, "ADT", "A01", true},
		{"Observation", ORU_R01, "ORU", "R01", true},
		{"With structure", MessageType("ADT^A04^ADT_A01"), "ADT", "A04", true},
		{"Code only", MessageType("ADT"), "ADT", "", false},
		{"Empty", MessageType(""), "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.value.Code())
			assert.Equal(t, tt.trigger, tt.value.TriggerEvent())
			assert.Equal(t, tt.valid, tt.value.IsValid())
		})
	}
}

func TestParseMessageType(t *testing.T) {
	mt, err := ParseMessageType("adt_a03")
	require.NoError(t, err)
	assert.Equal(t, ADT_A03, mt)

	mt, err = ParseMessageType(" ORU^R01 ")
	require.NoError(t, err)
	assert.Equal(t, ORU_R01, mt)

	_, err = ParseMessageType("bogus")
	assert.True(t, errors.Is(err, ErrInvalidMessageType))
}

func TestDataTypeClassification(t *testing.T) {
	assert.True(t, TypeTS.IsTemporal())
	assert.True(t, TypeDT.IsTemporal())
	assert.False(t, TypeST.IsTemporal())
	assert.True(t, TypeNM.IsNumeric())
	assert.False(t, TypeCX.IsNumeric())
}

func TestFieldMetadataPrecision(t *testing.T) {
	tests := []struct {
		name     string
		field    FieldMetadata
		expected TimestampPrecision
	}{
		{"Date type", FieldMetadata{DataType: TypeDT}, PrecisionDate},
		{"Short timestamp", FieldMetadata{DataType: TypeTS, MaxLength: 8}, PrecisionDate},
		{"Default timestamp", FieldMetadata{DataType: TypeTS, MaxLength: 14}, PrecisionDateTime},
		{"No length", FieldMetadata{DataType: TypeDTM}, PrecisionDateTime},
		{"Long timestamp", FieldMetadata{DataType: TypeTS, MaxLength: 26}, PrecisionDateTimeFraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.field.Precision())
		})
	}

	assert.Equal(t, "20060102", PrecisionDate.Layout())
	assert.Equal(t, "20060102150405", PrecisionDateTime.Layout())
	assert.Equal(t, "20060102150405.0000", PrecisionDateTimeFraction.Layout())
}

func TestStandardSchemas(t *testing.T) {
	catalog := StandardSchemas()

	cx, ok := catalog.CompositeSchema(TypeCX)
	require.True(t, ok)
	assert.Equal(t, 5, cx.Len())
	c, ok := cx.Component(2)
	require.True(t, ok)
	assert.Equal(t, "Check Digit", c.Name)
	assert.Equal(t, 2, c.Position)

	_, ok = cx.Component(0)
	assert.False(t, ok)
	_, ok = cx.Component(6)
	assert.False(t, ok)

	_, ok = catalog.CompositeSchema(TypeST)
	assert.False(t, ok, "scalar types have no schema")

	for dt, s := range catalog {
		assert.Equal(t, dt, s.DataType)
		for i, comp := range s.Components {
			assert.Equal(t, i+1, comp.Position, "%s component %d", dt, i)
		}
	}
}

func TestTable(t *testing.T) {
	var empty *Table
	assert.True(t, empty.IsEmpty())

	table := &Table{ID: "0001", Values: []TableValue{{Code: "F", Text: "Female"}, {Code: "M", Text: "Male"}}}
	assert.False(t, table.IsEmpty())

	v, ok := table.Find("M")
	assert.True(t, ok)
	assert.Equal(t, "Male", v.Text)

	_, ok = table.Find("X")
	assert.False(t, ok)
}

func TestGenderIsValid(t *testing.T) {
	assert.True(t, GenderFemale.IsValid())
	assert.True(t, GenderUnknown.IsValid())
	assert.False(t, Gender("Z").IsValid())
}
