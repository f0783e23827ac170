package scenario

import "github.com/hl7-synth-server/internal/domain"

var (
	dxHypertension = domain.Diagnosis{Code: "I10", Description: "Essential (primary) hypertension", Chapter: "Circulatory"}
	dxDiabetes     = domain.Diagnosis{Code: "E11.9", Description: "Type 2 diabetes mellitus without complications", Chapter: "Endocrine"}
	dxLipids       = domain.Diagnosis{Code: "E78.5", Description: "Hyperlipidemia, unspecified", Chapter: "Endocrine"}
	dxPneumonia    = domain.Diagnosis{Code: "J18.9", Description: "Pneumonia, unspecified organism", Chapter: "Respiratory"}
	dxCOPD         = domain.Diagnosis{Code: "J44.1", Description: "Chronic obstructive pulmonary disease with (acute) exacerbation", Chapter: "Respiratory"}
	dxHeartFailure = domain.Diagnosis{Code: "I50.9", Description: "Heart failure, unspecified", Chapter: "Circulatory"}
	dxNSTEMI       = domain.Diagnosis{Code: "I21.4", Description: "Non-ST elevation (NSTEMI) myocardial infarction", Chapter: "Circulatory"}
	dxUTI          = domain.Diagnosis{Code: "N39.0", Description: "Urinary tract infection, site not specified", Chapter: "Genitourinary"}
	dxSepsis       = domain.Diagnosis{Code: "A41.9", Description: "Sepsis, unspecified organism", Chapter: "Infectious"}
	dxAKI          = domain.Diagnosis{Code: "N17.9", Description: "Acute kidney failure, unspecified", Chapter: "Genitourinary"}

	rxMetformin    = domain.Medication{Code: "00093-1048-01", Name: "Metformin Hydrochloride", GenericName: "metformin", DosageForm: "TABLET", Strength: "500 mg", Units: "mg", Route: "ORAL"}
	rxInsulin      = domain.Medication{Code: "00002-8215-01", Name: "Humulin R", GenericName: "insulin regular human", DosageForm: "INJECTION", Strength: "100 units", Units: "units", Route: "SUBCUTANEOUS"}
	rxLisinopril   = domain.Medication{Code: "00378-0018-01", Name: "Lisinopril", GenericName: "lisinopril", DosageForm: "TABLET", Strength: "10 mg", Units: "mg", Route: "ORAL"}
	rxAtorvastatin = domain.Medication{Code: "00071-0155-23", Name: "Lipitor", GenericName: "atorvastatin", DosageForm: "TABLET", Strength: "20 mg", Units: "mg", Route: "ORAL"}
	rxAmlodipine   = domain.Medication{Code: "00069-3150-83", Name: "Amlodipine Besylate", GenericName: "amlodipine", DosageForm: "TABLET", Strength: "5 mg", Units: "mg", Route: "ORAL"}
	rxFurosemide   = domain.Medication{Code: "00054-4297-25", Name: "Furosemide", GenericName: "furosemide", DosageForm: "TABLET", Strength: "40 mg", Units: "mg", Route: "ORAL"}
	rxHeparin      = domain.Medication{Code: "63323-0262-01", Name: "Heparin Sodium", GenericName: "heparin", DosageForm: "INJECTION", Strength: "5000 units", Units: "units", Route: "SUBCUTANEOUS"}
	rxCeftriaxone  = domain.Medication{Code: "0409-1966-07", Name: "Ceftriaxone", GenericName: "ceftriaxone", DosageForm: "INJECTION", Strength: "1 g", Units: "g", Route: "INTRAVENOUS"}
	rxAlbuterol    = domain.Medication{Code: "0173-0682-20", Name: "Ventolin HFA", GenericName: "albuterol", DosageForm: "AEROSOL", Strength: "90 mcg", Units: "mcg", Route: "INHALATION"}
	rxSaline       = domain.Medication{Code: "00409-4888-20", Name: "Sodium Chloride", GenericName: "sodium chloride", DosageForm: "INJECTION", Strength: "1000 mL", Units: "mL", Route: "INTRAVENOUS"}
	rxAmoxicillin  = domain.Medication{Code: "00781-2613-01", Name: "Amoxicillin", GenericName: "amoxicillin", DosageForm: "CAPSULE", Strength: "500 mg", Units: "mg", Route: "ORAL"}

	labGlucose    = domain.LabTest{Code: "2345-7", Name: "Glucose [Mass/volume] in Serum or Plasma", Units: "mg/dL", NormalLow: 70, NormalHigh: 99}
	labA1c        = domain.LabTest{Code: "4548-4", Name: "Hemoglobin A1c/Hemoglobin.total in Blood", Units: "%", NormalLow: 4, NormalHigh: 5.6}
	labCreatinine = domain.LabTest{Code: "2160-0", Name: "Creatinine [Mass/volume] in Serum or Plasma", Units: "mg/dL", NormalLow: 0.6, NormalHigh: 1.3}
	labPotassium  = domain.LabTest{Code: "2823-3", Name: "Potassium [Moles/volume] in Serum or Plasma", Units: "mmol/L", NormalLow: 3.5, NormalHigh: 5.1}
	labSodium     = domain.LabTest{Code: "2951-2", Name: "Sodium [Moles/volume] in Serum or Plasma", Units: "mmol/L", NormalLow: 135, NormalHigh: 145}
	labWBC        = domain.LabTest{Code: "6690-2", Name: "Leukocytes [#/volume] in Blood", Units: "10*3/uL", NormalLow: 4.5, NormalHigh: 11}
	labCRP        = domain.LabTest{Code: "1988-5", Name: "C reactive protein [Mass/volume] in Serum or Plasma", Units: "mg/L", NormalLow: 0, NormalHigh: 10}
	labBNP        = domain.LabTest{Code: "33762-6", Name: "Natriuretic peptide.B prohormone N-Terminal [Mass/volume] in Serum or Plasma", Units: "pg/mL", NormalLow: 0, NormalHigh: 125}
	labTroponin   = domain.LabTest{Code: "10839-9", Name: "Troponin I.cardiac [Mass/volume] in Serum or Plasma", Units: "ng/mL", NormalLow: 0, NormalHigh: 0.04}
	labCholest    = domain.LabTest{Code: "2093-3", Name: "Cholesterol [Mass/volume] in Serum or Plasma", Units: "mg/dL", NormalLow: 125, NormalHigh: 200}
	labBUN        = domain.LabTest{Code: "3094-0", Name: "Urea nitrogen [Mass/volume] in Serum or Plasma", Units: "mg/dL", NormalLow: 7, NormalHigh: 20}
)

// Builtin returns the shipped clinical cases
func Builtin() []*Scenario {
	return []*Scenario{
		{
			ID: "diabetes_management", Title: "Type 2 diabetes follow-up", Weight: 4,
			Diagnoses:   []domain.Diagnosis{dxDiabetes, dxHypertension, dxLipids},
			Medications: []domain.Medication{rxMetformin, rxLisinopril, rxAtorvastatin},
			LabTests:    []domain.LabTest{labGlucose, labA1c, labCreatinine},
		},
		{
			ID: "hypertension", Title: "Uncontrolled hypertension", Weight: 4,
			Diagnoses:   []domain.Diagnosis{dxHypertension, dxLipids},
			Medications: []domain.Medication{rxAmlodipine, rxLisinopril, rxAtorvastatin},
			LabTests:    []domain.LabTest{labPotassium, labSodium, labCholest},
		},
		{
			ID: "community_pneumonia", Title: "Community-acquired pneumonia", Weight: 3,
			Diagnoses:   []domain.Diagnosis{dxPneumonia},
			Medications: []domain.Medication{rxCeftriaxone, rxAmoxicillin},
			LabTests:    []domain.LabTest{labWBC, labCRP},
		},
		{
			ID: "copd_exacerbation", Title: "COPD exacerbation", Weight: 2,
			Diagnoses:   []domain.Diagnosis{dxCOPD, dxPneumonia},
			Medications: []domain.Medication{rxAlbuterol, rxCeftriaxone},
			LabTests:    []domain.LabTest{labWBC, labCRP},
		},
		{
			ID: "heart_failure", Title: "Acute decompensated heart failure", Weight: 2,
			Diagnoses:   []domain.Diagnosis{dxHeartFailure, dxHypertension, dxAKI},
			Medications: []domain.Medication{rxFurosemide, rxLisinopril},
			LabTests:    []domain.LabTest{labBNP, labCreatinine, labPotassium},
		},
		{
			ID: "chest_pain_nstemi", Title: "NSTEMI", Weight: 1,
			Diagnoses:   []domain.Diagnosis{dxNSTEMI, dxHypertension, dxLipids},
			Medications: []domain.Medication{rxHeparin, rxAtorvastatin},
			LabTests:    []domain.LabTest{labTroponin, labCholest, labPotassium},
		},
		{
			ID: "urosepsis", Title: "Sepsis from urinary source", Weight: 1,
			Diagnoses:   []domain.Diagnosis{dxSepsis, dxUTI, dxAKI},
			Medications: []domain.Medication{rxCeftriaxone, rxSaline},
			LabTests:    []domain.LabTest{labWBC, labCreatinine, labBUN},
		},
	}
}

// NewBuiltinCoordinator returns a coordinator over the shipped cases
func NewBuiltinCoordinator() *Coordinator {
	c, _ := NewCoordinator(Builtin()...)
	return c
}
