package domain

// TableValue is one (code, text) entry of an HL7 standards table
type TableValue struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// Table is an ordered HL7 standards table such as 0001 (Administrative Sex)
type Table struct {
	ID     string       `json:"id"`
	Name   string       `json:"name,omitempty"`
	Values []TableValue `json:"values"`
}

// IsEmpty reports whether the table has no usable values
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Values) == 0
}

// Find returns the entry with the given code
func (t *Table) Find(code string) (TableValue, bool) {
	if t == nil {
		return TableValue{}, false
	}
	for _, v := range t.Values {
		if v.Code == code {
			return v, true
		}
	}
	return TableValue{}, false
}

// Diagnosis is an ICD-10-CM code with display text
type Diagnosis struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Chapter     string `json:"chapter,omitempty"`
}

// CodingSystem returns the HL7 coding system name for diagnosis codes
func (Diagnosis) CodingSystem() string { return "I10" }

// Medication is a drug product with dosing attributes
type Medication struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	GenericName string `json:"generic_name,omitempty"`
	DosageForm  string `json:"dosage_form,omitempty"`
	Strength    string `json:"strength,omitempty"`
	Units       string `json:"units,omitempty"`
	Route       string `json:"route,omitempty"`
}

// CodingSystem returns the HL7 coding system name for medication codes
func (Medication) CodingSystem() string { return "NDC" }

// LabTest is a LOINC observation with units and reference range
type LabTest struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Units      string  `json:"units,omitempty"`
	NormalLow  float64 `json:"normal_low"`
	NormalHigh float64 `json:"normal_high"`
}

// CodingSystem returns the HL7 coding system name for lab codes
func (LabTest) CodingSystem() string { return "LN" }

// HasRange reports whether the lab test carries a usable reference range
func (l LabTest) HasRange() bool {
	return l.NormalHigh > l.NormalLow
}

// Provider is a practitioner drawn from an NPI registry extract
type Provider struct {
	NPI        string `json:"npi"`
	FamilyName string `json:"family_name"`
	GivenName  string `json:"given_name"`
	Credential string `json:"credential,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
}
