package domain

// FieldMetadata describes one field slot of a segment as declared by the message layout
type FieldMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	DataType    DataType `json:"data_type"`
	MaxLength   int      `json:"max_length,omitempty"`
	Required    bool     `json:"required,omitempty"`
}

// Precision derives the timestamp rendering for temporal fields
func (f FieldMetadata) Precision() TimestampPrecision {
	switch {
	case f.DataType == TypeDT:
		return PrecisionDate
	case f.MaxLength > 0 && f.MaxLength <= 8:
		return PrecisionDate
	case f.MaxLength >= 19:
		return PrecisionDateTimeFraction
	default:
		return PrecisionDateTime
	}
}

// ComponentDefinition is one 1-based component of a composite data type
type ComponentDefinition struct {
	Position int      `json:"position"`
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
}

// CompositeSchema lists the ordered components of a composite data type
type CompositeSchema struct {
	DataType   DataType              `json:"data_type"`
	Components []ComponentDefinition `json:"components"`
}

// Len returns the number of declared components
func (s *CompositeSchema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Components)
}

// Component returns the definition at a 1-based position
func (s *CompositeSchema) Component(position int) (ComponentDefinition, bool) {
	if s == nil || position < 1 || position > len(s.Components) {
		return ComponentDefinition{}, false
	}
	return s.Components[position-1], true
}

// SchemaProvider returns the component layout of composite data types
type SchemaProvider interface {
	CompositeSchema(dataType DataType) (*CompositeSchema, bool)
}

// SchemaCatalog is an in-memory SchemaProvider
type SchemaCatalog map[DataType]*CompositeSchema

// CompositeSchema implements SchemaProvider
func (c SchemaCatalog) CompositeSchema(dataType DataType) (*CompositeSchema, bool) {
	s, ok := c[dataType]
	return s, ok
}

func schema(dt DataType, components ...ComponentDefinition) *CompositeSchema {
	for i := range components {
		components[i].Position = i + 1
	}
	return &CompositeSchema{DataType: dt, Components: components}
}

func comp(name string, dt DataType) ComponentDefinition {
	return ComponentDefinition{Name: name, DataType: dt}
}

// StandardSchemas returns the built-in catalog of common v2.x composite types
func StandardSchemas() SchemaCatalog {
	return SchemaCatalog{
		TypeCX: schema(TypeCX,
			comp("ID Number", TypeST),
			comp("Check Digit", TypeST),
			comp("Check Digit Scheme", TypeID),
			comp("Assigning Authority", TypeHD),
			comp("Identifier Type Code", TypeID),
		),
		TypeCK: schema(TypeCK,
			comp("ID Number", TypeNM),
			comp("Check Digit", TypeNM),
			comp("Check Digit Scheme", TypeID),
			comp("Assigning Authority", TypeHD),
		),
		TypeEI: schema(TypeEI,
			comp("Entity Identifier", TypeST),
			comp("Namespace ID", TypeIS),
			comp("Universal ID", TypeST),
			comp("Universal ID Type", TypeID),
		),
		TypeHD: schema(TypeHD,
			comp("Namespace ID", TypeIS),
			comp("Universal ID", TypeST),
			comp("Universal ID Type", TypeID),
		),
		TypeXCN: schema(TypeXCN,
			comp("ID Number", TypeST),
			comp("Family Name", TypeST),
			comp("Given Name", TypeST),
			comp("Middle Name", TypeST),
			comp("Suffix", TypeST),
			comp("Prefix", TypeST),
			comp("Degree", TypeIS),
			comp("Source Table", TypeIS),
			comp("Assigning Authority", TypeHD),
			comp("Name Type Code", TypeID),
			comp("Identifier Check Digit", TypeST),
			comp("Check Digit Scheme", TypeID),
			comp("Identifier Type Code", TypeID),
		),
		TypeXON: schema(TypeXON,
			comp("Organization Name", TypeST),
			comp("Organization Name Type Code", TypeIS),
			comp("ID Number", TypeNM),
			comp("Check Digit", TypeNM),
			comp("Check Digit Scheme", TypeID),
			comp("Assigning Authority", TypeHD),
			comp("Identifier Type Code", TypeID),
		),
		TypeXPN: schema(TypeXPN,
			comp("Family Name", TypeST),
			comp("Given Name", TypeST),
			comp("Middle Name", TypeST),
			comp("Suffix", TypeST),
			comp("Prefix", TypeST),
			comp("Degree", TypeIS),
			comp("Name Type Code", TypeID),
		),
		TypeXAD: schema(TypeXAD,
			comp("Street Address", TypeST),
			comp("Other Designation", TypeST),
			comp("City", TypeST),
			comp("State or Province", TypeST),
			comp("Zip or Postal Code", TypeST),
			comp("Country", TypeID),
			comp("Address Type", TypeID),
		),
		TypeXTN: schema(TypeXTN,
			comp("Telephone Number", TypeST),
			comp("Telecommunication Use Code", TypeID),
			comp("Telecommunication Equipment Type", TypeID),
		),
		TypeCE: schema(TypeCE,
			comp("Identifier", TypeST),
			comp("Text", TypeST),
			comp("Name of Coding System", TypeID),
			comp("Alternate Identifier", TypeST),
			comp("Alternate Text", TypeST),
			comp("Name of Alternate Coding System", TypeID),
		),
		TypeCWE: schema(TypeCWE,
			comp("Identifier", TypeST),
			comp("Text", TypeST),
			comp("Name of Coding System", TypeID),
			comp("Alternate Identifier", TypeST),
			comp("Alternate Text", TypeST),
			comp("Name of Alternate Coding System", TypeID),
		),
		TypeCQ: schema(TypeCQ,
			comp("Quantity", TypeNM),
			comp("Units", TypeCE),
		),
		TypeNR: schema(TypeNR,
			comp("Low Value", TypeNM),
			comp("High Value", TypeNM),
		),
		TypeDR: schema(TypeDR,
			comp("Range Start Date/Time", TypeTS),
			comp("Range End Date/Time", TypeTS),
		),
		TypeDLT: schema(TypeDLT,
			comp("Normal Range", TypeNR),
			comp("Numeric Threshold", TypeNM),
			comp("Change Computation", TypeST),
			comp("Days Retained", TypeNM),
		),
		TypeTS: schema(TypeTS,
			comp("Time", TypeDTM),
			comp("Degree of Precision", TypeID),
		),
		TypePL: schema(TypePL,
			comp("Point of Care", TypeIS),
			comp("Room", TypeIS),
			comp("Bed", TypeIS),
			comp("Facility", TypeHD),
		),
	}
}
