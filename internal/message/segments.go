// Package message assembles complete HL7 v2 messages from per-field values
// produced by the resolution engine.
package message

import "github.com/hl7-synth-server/internal/domain"

// FieldDef declares one populated field position of a segment
type FieldDef struct {
	Position int
	domain.FieldMetadata
}

func f(pos int, name string, dt domain.DataType, maxLen int, required bool) FieldDef {
	return FieldDef{
		Position: pos,
		FieldMetadata: domain.FieldMetadata{
			Name:      name,
			DataType:  dt,
			MaxLength: maxLen,
			Required:  required,
		},
	}
}

// Header fields the generator fills itself
const (
	mshFieldSeparator = 1
	mshEncodingChars  = 2
	mshMessageType    = 9
	mshVersionID      = 12
)

// Encoding characters of every generated message
const (
	FieldSeparator    = "|"
	EncodingChars     = `^~\&`
	SegmentTerminator = "\r"
)

var segmentFields = map[string][]FieldDef{
	"MSH": {
		f(1, "Field Separator", domain.TypeST, 1, true),
		f(2, "Encoding Characters", domain.TypeST, 4, true),
		f(3, "Sending Application", domain.TypeHD, 227, false),
		f(4, "Sending Facility", domain.TypeHD, 227, false),
		f(5, "Receiving Application", domain.TypeHD, 227, false),
		f(6, "Receiving Facility", domain.TypeHD, 227, false),
		f(7, "Date/Time Of Message", domain.TypeTS, 26, true),
		f(9, "Message Type", domain.TypeST, 15, true),
		f(10, "Message Control ID", domain.TypeST, 20, true),
		f(11, "Processing ID", domain.TypeID, 3, true),
		f(12, "Version ID", domain.TypeID, 60, true),
		f(15, "Accept Acknowledgment Type", domain.TypeID, 2, false),
		f(16, "Application Acknowledgment Type", domain.TypeID, 2, false),
	},
	"EVN": {
		f(1, "Event Type Code", domain.TypeID, 3, false),
		f(2, "Recorded Date/Time", domain.TypeTS, 26, true),
		f(4, "Event Reason Code", domain.TypeIS, 3, false),
		f(6, "Event Occurred", domain.TypeTS, 26, false),
	},
	"PID": {
		f(1, "Set ID - PID", domain.TypeSI, 4, false),
		f(3, "Patient Identifier List", domain.TypeCX, 250, true),
		f(5, "Patient Name", domain.TypeXPN, 250, true),
		f(7, "Date/Time of Birth", domain.TypeTS, 8, false),
		f(8, "Administrative Sex", domain.TypeIS, 1, false),
		f(10, "Race", domain.TypeCE, 250, false),
		f(11, "Patient Address", domain.TypeXAD, 250, false),
		f(13, "Phone Number - Home", domain.TypeXTN, 250, false),
		f(15, "Primary Language", domain.TypeCE, 250, false),
		f(16, "Marital Status", domain.TypeCE, 250, false),
		f(17, "Religion", domain.TypeCE, 250, false),
		f(18, "Patient Account Number", domain.TypeCX, 250, false),
		f(19, "SSN Number - Patient", domain.TypeST, 16, false),
		f(22, "Ethnic Group", domain.TypeCE, 250, false),
		f(24, "Multiple Birth Indicator", domain.TypeID, 1, false),
		f(30, "Patient Death Indicator", domain.TypeID, 1, false),
	},
	"NK1": {
		f(1, "Set ID - NK1", domain.TypeSI, 4, true),
		f(2, "Name", domain.TypeXPN, 250, false),
		f(3, "Relationship", domain.TypeCE, 250, false),
		f(4, "Address", domain.TypeXAD, 250, false),
		f(5, "Phone Number", domain.TypeXTN, 250, false),
		f(7, "Contact Role", domain.TypeCE, 250, false),
	},
	"PV1": {
		f(1, "Set ID - PV1", domain.TypeSI, 4, false),
		f(2, "Patient Class", domain.TypeIS, 1, true),
		f(3, "Assigned Patient Location", domain.TypePL, 80, false),
		f(4, "Admission Type", domain.TypeIS, 2, false),
		f(7, "Attending Doctor", domain.TypeXCN, 250, false),
		f(8, "Referring Doctor", domain.TypeXCN, 250, false),
		f(10, "Hospital Service", domain.TypeIS, 3, false),
		f(13, "Re-admission Indicator", domain.TypeIS, 2, false),
		f(14, "Admit Source", domain.TypeIS, 6, false),
		f(18, "Patient Type", domain.TypeIS, 2, false),
		f(19, "Visit Number", domain.TypeCX, 250, false),
		f(36, "Discharge Disposition", domain.TypeIS, 3, false),
		f(41, "Account Status", domain.TypeIS, 2, false),
		f(44, "Admit Date/Time", domain.TypeTS, 26, false),
		f(45, "Discharge Date/Time", domain.TypeTS, 26, false),
	},
	"DG1": {
		f(1, "Set ID - DG1", domain.TypeSI, 4, true),
		f(2, "Diagnosis Coding Method", domain.TypeID, 2, false),
		f(3, "Diagnosis Code - DG1", domain.TypeCE, 250, false),
		f(4, "Diagnosis Description", domain.TypeST, 40, false),
		f(5, "Diagnosis Date/Time", domain.TypeTS, 26, false),
		f(6, "Diagnosis Type", domain.TypeIS, 2, true),
	},
	"ORC": {
		f(1, "Order Control", domain.TypeID, 2, true),
		f(2, "Placer Order Number", domain.TypeEI, 22, false),
		f(3, "Filler Order Number", domain.TypeEI, 22, false),
		f(5, "Order Status", domain.TypeID, 2, false),
		f(9, "Date/Time of Transaction", domain.TypeTS, 26, false),
		f(12, "Ordering Provider", domain.TypeXCN, 250, false),
	},
	"OBR": {
		f(1, "Set ID - OBR", domain.TypeSI, 4, false),
		f(2, "Placer Order Number", domain.TypeEI, 22, false),
		f(3, "Filler Order Number", domain.TypeEI, 22, false),
		f(4, "Universal Service Identifier", domain.TypeCE, 250, true),
		f(7, "Observation Date/Time", domain.TypeTS, 26, false),
		f(16, "Ordering Provider", domain.TypeXCN, 250, false),
		f(25, "Result Status", domain.TypeID, 1, false),
	},
	"OBX": {
		f(1, "Set ID - OBX", domain.TypeSI, 4, false),
		f(2, "Value Type", domain.TypeID, 2, false),
		f(3, "Observation Identifier", domain.TypeCE, 250, true),
		f(5, "Observation Value", domain.TypeST, 65536, false),
		f(6, "Units", domain.TypeCE, 250, false),
		f(7, "References Range", domain.TypeST, 60, false),
		f(8, "Abnormal Flags", domain.TypeIS, 5, false),
		f(11, "Observation Result Status", domain.TypeID, 1, true),
		f(14, "Date/Time of the Observation", domain.TypeTS, 26, false),
	},
	"RXE": {
		f(2, "Give Code", domain.TypeCE, 250, true),
		f(3, "Give Amount - Minimum", domain.TypeNM, 20, true),
		f(5, "Give Units", domain.TypeCE, 250, true),
	},
	"RXR": {
		f(1, "Route", domain.TypeCE, 250, true),
	},
}

// SegmentFields returns the populated fields of a segment in position order
func SegmentFields(code string) ([]FieldDef, bool) {
	defs, ok := segmentFields[code]
	return defs, ok
}
