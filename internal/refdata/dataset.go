// Package refdata provides the reference data behind realistic field values:
// HL7 standards tables, person names, diagnoses, medications, lab tests and
// providers. Memory serves a built-in dataset; SQLiteStore serves a prepared
// database and can be seeded from the built-in dataset.
package refdata

import (
	"github.com/hl7-synth-server/internal/domain"
)

// FirstName is a given name with the gender it is usually associated with.
// An empty gender marks a unisex name.
type FirstName struct {
	Name   string
	Gender domain.Gender
}

// Dataset is a complete set of reference data. Slices are ordered by frequency,
// most common first.
type Dataset struct {
	FirstNames  []FirstName
	LastNames   []string
	Diagnoses   []domain.Diagnosis
	Medications []domain.Medication
	LabTests    []domain.LabTest
	Providers   []domain.Provider
	Tables      map[string]*domain.Table
}

func values(pairs ...string) []domain.TableValue {
	out := make([]domain.TableValue, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.TableValue{Code: pairs[i], Text: pairs[i+1]})
	}
	return out
}

func table(id, name string, pairs ...string) *domain.Table {
	return &domain.Table{ID: id, Name: name, Values: values(pairs...)}
}

// Builtin returns the dataset shipped with the server
func Builtin() *Dataset {
	tables := []*domain.Table{
		table("0001", "Administrative Sex", "F", "Female", "M", "Male", "O", "Other", "U", "Unknown"),
		table("0002", "Marital Status", "S", "Single", "M", "Married", "D", "Divorced", "W", "Widowed", "A", "Separated"),
		table("0003", "Event Type", "A01", "Admit/visit notification", "A03", "Discharge/end visit", "A08", "Update patient information", "R01", "Unsolicited transmission of an observation", "O11", "Pharmacy/treatment encoded order"),
		table("0004", "Patient Class", "E", "Emergency", "I", "Inpatient", "O", "Outpatient", "P", "Preadmit", "R", "Recurring patient"),
		table("0005", "Race", "1002-5", "American Indian or Alaska Native", "2028-9", "Asian", "2054-5", "Black or African American", "2076-8", "Native Hawaiian or Other Pacific Islander", "2106-3", "White", "2131-1", "Other Race"),
		table("0006", "Religion", "CAT", "Roman Catholic", "CHR", "Christian", "JEW", "Jewish", "MOS", "Muslim", "NOE", "No religious affiliation", "BUD", "Buddhist"),
		table("0007", "Admission Type", "A", "Accident", "E", "Emergency", "L", "Labor and Delivery", "R", "Routine", "U", "Urgent", "C", "Elective"),
		table("0018", "Patient Type", "IP", "Inpatient", "OP", "Outpatient", "ER", "Emergency"),
		table("0023", "Admit Source", "1", "Physician referral", "2", "Clinic referral", "4", "Transfer from a hospital", "7", "Emergency room"),
		table("0038", "Order Status", "A", "Some, but not all, results available", "CM", "Order is completed", "IP", "In process, unspecified", "SC", "In process, scheduled"),
		table("0052", "Diagnosis Type", "A", "Admitting", "W", "Working", "F", "Final"),
		table("0062", "Event Reason", "01", "Patient request", "02", "Physician/health practitioner order", "03", "Census management"),
		table("0063", "Relationship", "SPO", "Spouse", "CHD", "Child", "PAR", "Parent", "SIB", "Sibling", "FND", "Friend", "GRD", "Guardian"),
		table("0069", "Hospital Service", "MED", "Medical service", "SUR", "Surgical service", "CAR", "Cardiac service", "PUL", "Pulmonary service", "URO", "Urology service"),
		table("0078", "Abnormal Flags", "L", "Below low normal", "H", "Above high normal", "N", "Normal", "LL", "Below lower panic limits", "HH", "Above upper panic limits", "A", "Abnormal"),
		table("0085", "Observation Result Status", "F", "Final results", "P", "Preliminary results", "C", "Record coming over is a correction"),
		table("0092", "Re-Admission Indicator", "R", "Re-admission"),
		table("0103", "Processing ID", "P", "Production", "T", "Training", "D", "Debugging"),
		table("0112", "Discharge Disposition", "01", "Discharged to home or self care", "02", "Discharged to another short-term general hospital", "03", "Discharged to skilled nursing facility", "07", "Left against medical advice"),
		table("0117", "Account Status", "A", "Active", "C", "Closed"),
		table("0119", "Order Control Codes", "NW", "New order", "OK", "Order accepted", "RE", "Observations to follow", "SC", "Status changed"),
		table("0123", "Result Status", "F", "Final results", "P", "Preliminary", "C", "Correction to results", "R", "Results stored; not yet verified"),
		table("0127", "Allergen Type", "DA", "Drug allergy", "FA", "Food allergy", "EA", "Environmental allergy", "MA", "Miscellaneous allergy"),
		table("0128", "Allergy Severity", "SV", "Severe", "MO", "Moderate", "MI", "Mild"),
		table("0131", "Contact Role", "C", "Emergency contact", "E", "Employer", "N", "Next-of-kin", "O", "Other"),
		table("0136", "Yes/No Indicator", "Y", "Yes", "N", "No"),
		table("0155", "Accept/Application Acknowledgment Conditions", "AL", "Always", "NE", "Never", "ER", "Error/reject conditions only", "SU", "Successful completion only"),
		table("0162", "Route of Administration", "PO", "Oral", "IV", "Intravenous", "IM", "Intramuscular", "SC", "Subcutaneous", "TP", "Topical", "IH", "Inhalation"),
		table("0166", "RX Component Type", "A", "Additive", "B", "Base"),
		table("0189", "Ethnic Group", "H", "Hispanic or Latino", "N", "Not Hispanic or Latino", "U", "Unknown"),
		table("0200", "Name Type", "L", "Legal Name", "D", "Display Name", "M", "Maiden Name", "A", "Alias Name"),
		table("0203", "Identifier Type", "MR", "Medical record number", "PI", "Patient internal identifier", "AN", "Account number", "VN", "Visit number", "SS", "Social Security number", "NPI", "National provider identifier", "XX", "Organization identifier"),
		table("0204", "Organizational Name Type", "L", "Legal name", "D", "Display name", "A", "Alias name"),
		table("0296", "Primary Language", "en", "English", "es", "Spanish", "fr", "French", "zh", "Chinese", "vi", "Vietnamese"),
		table("0363", "Assigning Authority", "HOSP", "Hospital", "CMS", "Centers for Medicare and Medicaid Services", "SSA", "Social Security Administration", "USA", "United States"),
	}

	ds := &Dataset{
		FirstNames: []FirstName{
			{"James", domain.GenderMale}, {"Mary", domain.GenderFemale}, {"Robert", domain.GenderMale},
			{"Patricia", domain.GenderFemale}, {"John", domain.GenderMale}, {"Jennifer", domain.GenderFemale},
			{"Michael", domain.GenderMale}, {"Linda", domain.GenderFemale}, {"David", domain.GenderMale},
			{"Elizabeth", domain.GenderFemale}, {"William", domain.GenderMale}, {"Barbara", domain.GenderFemale},
			{"Richard", domain.GenderMale}, {"Susan", domain.GenderFemale}, {"Joseph", domain.GenderMale},
			{"Jessica", domain.GenderFemale}, {"Thomas", domain.GenderMale}, {"Sarah", domain.GenderFemale},
			{"Carlos", domain.GenderMale}, {"Maria", domain.GenderFemale}, {"Jordan", ""}, {"Taylor", ""},
		},
		LastNames: []string{
			"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez",
			"Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor",
			"Moore", "Jackson", "Martin", "Lee", "Nguyen", "Patel", "Kim",
		},
		Diagnoses: []domain.Diagnosis{
			{Code: "I10", Description: "Essential (primary) hypertension", Chapter: "Circulatory"},
			{Code: "E11.9", Description: "Type 2 diabetes mellitus without complications", Chapter: "Endocrine"},
			{Code: "E78.5", Description: "Hyperlipidemia, unspecified", Chapter: "Endocrine"},
			{Code: "J18.9", Description: "Pneumonia, unspecified organism", Chapter: "Respiratory"},
			{Code: "J44.1", Description: "Chronic obstructive pulmonary disease with (acute) exacerbation", Chapter: "Respiratory"},
			{Code: "I50.9", Description: "Heart failure, unspecified", Chapter: "Circulatory"},
			{Code: "N39.0", Description: "Urinary tract infection, site not specified", Chapter: "Genitourinary"},
			{Code: "I21.4", Description: "Non-ST elevation (NSTEMI) myocardial infarction", Chapter: "Circulatory"},
			{Code: "A41.9", Description: "Sepsis, unspecified organism", Chapter: "Infectious"},
			{Code: "N17.9", Description: "Acute kidney failure, unspecified", Chapter: "Genitourinary"},
			{Code: "K35.80", Description: "Unspecified acute appendicitis", Chapter: "Digestive"},
			{Code: "S72.001A", Description: "Fracture of unspecified part of neck of right femur, initial encounter", Chapter: "Injury"},
			{Code: "F32.9", Description: "Major depressive disorder, single episode, unspecified", Chapter: "Mental"},
			{Code: "J45.909", Description: "Unspecified asthma, uncomplicated", Chapter: "Respiratory"},
		},
		Medications: []domain.Medication{
			{Code: "00093-1048-01", Name: "Metformin Hydrochloride", GenericName: "metformin", DosageForm: "TABLET", Strength: "500 mg", Units: "mg", Route: "ORAL"},
			{Code: "00378-0018-01", Name: "Lisinopril", GenericName: "lisinopril", DosageForm: "TABLET", Strength: "10 mg", Units: "mg", Route: "ORAL"},
			{Code: "00071-0155-23", Name: "Lipitor", GenericName: "atorvastatin", DosageForm: "TABLET", Strength: "20 mg", Units: "mg", Route: "ORAL"},
			{Code: "00069-3150-83", Name: "Amlodipine Besylate", GenericName: "amlodipine", DosageForm: "TABLET", Strength: "5 mg", Units: "mg", Route: "ORAL"},
			{Code: "00781-2613-01", Name: "Amoxicillin", GenericName: "amoxicillin", DosageForm: "CAPSULE", Strength: "500 mg", Units: "mg", Route: "ORAL"},
			{Code: "63323-0262-01", Name: "Heparin Sodium", GenericName: "heparin", DosageForm: "INJECTION", Strength: "5000 units", Units: "units", Route: "SUBCUTANEOUS"},
			{Code: "00409-4888-20", Name: "Sodium Chloride", GenericName: "sodium chloride", DosageForm: "INJECTION", Strength: "1000 mL", Units: "mL", Route: "INTRAVENOUS"},
			{Code: "00054-4297-25", Name: "Furosemide", GenericName: "furosemide", DosageForm: "TABLET", Strength: "40 mg", Units: "mg", Route: "ORAL"},
			{Code: "00002-8215-01", Name: "Humulin R", GenericName: "insulin regular human", DosageForm: "INJECTION", Strength: "100 units", Units: "units", Route: "SUBCUTANEOUS"},
			{Code: "0173-0682-20", Name: "Ventolin HFA", GenericName: "albuterol", DosageForm: "AEROSOL", Strength: "90 mcg", Units: "mcg", Route: "INHALATION"},
			{Code: "0409-1966-07", Name: "Ceftriaxone", GenericName: "ceftriaxone", DosageForm: "INJECTION", Strength: "1 g", Units: "g", Route: "INTRAVENOUS"},
		},
		LabTests: []domain.LabTest{
			{Code: "2345-7", Name: "Glucose [Mass/volume] in Serum or Plasma", Units: "mg/dL", NormalLow: 70, NormalHigh: 99},
			{Code: "4548-4", Name: "Hemoglobin A1c/Hemoglobin.total in Blood", Units: "%", NormalLow: 4, NormalHigh: 5.6},
			{Code: "2160-0", Name: "Creatinine [Mass/volume] in Serum or Plasma", Units: "mg/dL", NormalLow: 0.6, NormalHigh: 1.3},
			{Code: "2951-2", Name: "Sodium [Moles/volume] in Serum or Plasma", Units: "mmol/L", NormalLow: 135, NormalHigh: 145},
			{Code: "2823-3", Name: "Potassium [Moles/volume] in Serum or Plasma", Units: "mmol/L", NormalLow: 3.5, NormalHigh: 5.1},
			{Code: "718-7", Name: "Hemoglobin [Mass/volume] in Blood", Units: "g/dL", NormalLow: 12, NormalHigh: 17.5},
			{Code: "6690-2", Name: "Leukocytes [#/volume] in Blood", Units: "10*3/uL", NormalLow: 4.5, NormalHigh: 11},
			{Code: "777-3", Name: "Platelets [#/volume] in Blood", Units: "10*3/uL", NormalLow: 150, NormalHigh: 400},
			{Code: "2093-3", Name: "Cholesterol [Mass/volume] in Serum or Plasma", Units: "mg/dL", NormalLow: 125, NormalHigh: 200},
			{Code: "3094-0", Name: "Urea nitrogen [Mass/volume] in Serum or Plasma", Units: "mg/dL", NormalLow: 7, NormalHigh: 20},
			{Code: "33762-6", Name: "Natriuretic peptide.B prohormone N-Terminal [Mass/volume] in Serum or Plasma", Units: "pg/mL", NormalLow: 0, NormalHigh: 125},
			{Code: "10839-9", Name: "Troponin I.cardiac [Mass/volume] in Serum or Plasma", Units: "ng/mL", NormalLow: 0, NormalHigh: 0.04},
			{Code: "1988-5", Name: "C reactive protein [Mass/volume] in Serum or Plasma", Units: "mg/L", NormalLow: 0, NormalHigh: 10},
		},
		Providers: []domain.Provider{
			{NPI: "1234567893", FamilyName: "Carter", GivenName: "Amelia", Credential: "MD", Specialty: "Internal Medicine"},
			{NPI: "1245319599", FamilyName: "Okafor", GivenName: "Daniel", Credential: "MD", Specialty: "Cardiology"},
			{NPI: "1407855935", FamilyName: "Chen", GivenName: "Grace", Credential: "DO", Specialty: "Family Medicine"},
			{NPI: "1518960402", FamilyName: "Ramirez", GivenName: "Luis", Credential: "MD", Specialty: "Emergency Medicine"},
			{NPI: "1629071016", FamilyName: "Schmidt", GivenName: "Hannah", Credential: "NP", Specialty: "Endocrinology"},
			{NPI: "1730182630", FamilyName: "Singh", GivenName: "Arjun", Credential: "MD", Specialty: "Pulmonology"},
		},
		Tables: make(map[string]*domain.Table, len(tables)),
	}
	for _, t := range tables {
		ds.Tables[t.ID] = t
	}
	return ds
}
