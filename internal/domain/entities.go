package domain

import "time"

// Gender is an administrative sex code (HL7 table 0001)
type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderOther   Gender = "O"
	GenderUnknown Gender = "U"
)

// IsValid checks the gender against table 0001 codes used here
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	default:
		return false
	}
}

// Patient is a read-only view of the patient a message describes
type Patient struct {
	ID            string    `json:"id,omitempty"`
	MRN           string    `json:"mrn,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	SSN           string    `json:"ssn,omitempty"`
	FamilyName    string    `json:"family_name,omitempty"`
	GivenName     string    `json:"given_name,omitempty"`
	MiddleName    string    `json:"middle_name,omitempty"`
	Gender        Gender    `json:"gender,omitempty"`
	BirthDate     time.Time `json:"birth_date,omitempty"`
}

// Encounter is a read-only view of the visit a message describes
type Encounter struct {
	VisitNumber  string `json:"visit_number,omitempty"`
	PatientClass string `json:"patient_class,omitempty"`
	Location     string `json:"location,omitempty"`
}

// Prescription is a read-only view of an ordered medication
type Prescription struct {
	Medication Medication `json:"medication"`
	Quantity   string     `json:"quantity,omitempty"`
}

// Entities groups the clinical entities driving one message. Any may be nil.
type Entities struct {
	Patient      *Patient      `json:"patient,omitempty"`
	Encounter    *Encounter    `json:"encounter,omitempty"`
	Prescription *Prescription `json:"prescription,omitempty"`
	Provider     *Provider     `json:"provider,omitempty"`
}
