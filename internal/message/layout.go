package message

import (
	"fmt"
	"sort"

	"github.com/hl7-synth-server/internal/domain"
)

// MaxRepeats bounds how many times one segment may repeat in a message
const MaxRepeats = 20

// SegmentSpec places a segment in a message layout
type SegmentSpec struct {
	Code       string `json:"code"`
	Repeat     int    `json:"repeat"`               // default count, at least 1
	Repeatable bool   `json:"repeatable,omitempty"` // count may be changed per request
	Omit       []int  `json:"omit,omitempty"`       // field positions left empty in this message
}

func (s SegmentSpec) omits(pos int) bool {
	for _, p := range s.Omit {
		if p == pos {
			return true
		}
	}
	return false
}

// Layout is the ordered segment structure of one message type
type Layout struct {
	MessageType domain.MessageType `json:"message_type"`
	Structure   string             `json:"structure"`
	Description string             `json:"description"`
	Segments    []SegmentSpec      `json:"segments"`
}

// HasSegment reports whether the layout carries the segment
func (l *Layout) HasSegment(code string) bool {
	for _, s := range l.Segments {
		if s.Code == code {
			return true
		}
	}
	return false
}

// SegmentCodes lists the segment codes in layout order
func (l *Layout) SegmentCodes() []string {
	codes := make([]string, len(l.Segments))
	for i, s := range l.Segments {
		codes[i] = s.Code
	}
	return codes
}

// Discharge fields are only meaningful once the visit has ended
var admissionOmit = []int{36, 45}

var layouts = map[domain.MessageType]*Layout{
	domain.ADT_A01: {
		MessageType: domain.ADT_A01,
		Structure:   "ADT_A01",
		Description: "Admit/visit notification",
		Segments: []SegmentSpec{
			{Code: "MSH", Repeat: 1},
			{Code: "EVN", Repeat: 1},
			{Code: "PID", Repeat: 1},
			{Code: "NK1", Repeat: 1, Repeatable: true},
			{Code: "PV1", Repeat: 1, Omit: admissionOmit},
			{Code: "DG1", Repeat: 1, Repeatable: true},
		},
	},
	domain.ADT_A03: {
		MessageType: domain.ADT_A03,
		Structure:   "ADT_A03",
		Description: "Discharge/end visit",
		Segments: []SegmentSpec{
			{Code: "MSH", Repeat: 1},
			{Code: "EVN", Repeat: 1},
			{Code: "PID", Repeat: 1},
			{Code: "PV1", Repeat: 1},
			{Code: "DG1", Repeat: 1, Repeatable: true},
		},
	},
	domain.ADT_A08: {
		MessageType: domain.ADT_A08,
		Structure:   "ADT_A01",
		Description: "Update patient information",
		Segments: []SegmentSpec{
			{Code: "MSH", Repeat: 1},
			{Code: "EVN", Repeat: 1},
			{Code: "PID", Repeat: 1},
			{Code: "NK1", Repeat: 1, Repeatable: true},
			{Code: "PV1", Repeat: 1, Omit: admissionOmit},
			{Code: "DG1", Repeat: 1, Repeatable: true},
		},
	},
	domain.ORU_R01: {
		MessageType: domain.ORU_R01,
		Structure:   "ORU_R01",
		Description: "Unsolicited observation result",
		Segments: []SegmentSpec{
			{Code: "MSH", Repeat: 1},
			{Code: "PID", Repeat: 1},
			{Code: "PV1", Repeat: 1, Omit: admissionOmit},
			{Code: "ORC", Repeat: 1},
			{Code: "OBR", Repeat: 1},
			{Code: "OBX", Repeat: 3, Repeatable: true},
		},
	},
	domain.RDE_O11: {
		MessageType: domain.RDE_O11,
		Structure:   "RDE_O11",
		Description: "Pharmacy/treatment encoded order",
		Segments: []SegmentSpec{
			{Code: "MSH", Repeat: 1},
			{Code: "PID", Repeat: 1},
			{Code: "PV1", Repeat: 1, Omit: admissionOmit},
			{Code: "ORC", Repeat: 1},
			{Code: "RXE", Repeat: 1},
			{Code: "RXR", Repeat: 1},
		},
	},
}

// LayoutFor returns the layout of a supported message type
func LayoutFor(mt domain.MessageType) (*Layout, error) {
	l, ok := layouts[mt]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not supported", domain.ErrInvalidMessageType, mt)
	}
	return l, nil
}

// SupportedTypes lists the message types with a layout, sorted
func SupportedTypes() []domain.MessageType {
	types := make([]domain.MessageType, 0, len(layouts))
	for mt := range layouts {
		types = append(types, mt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SegmentsFor reports the segments of a message type. It has the shape of
// fieldpath.SegmentLookup.
func SegmentsFor(mt domain.MessageType) ([]string, bool) {
	l, ok := layouts[mt]
	if !ok {
		return nil, false
	}
	return l.SegmentCodes(), true
}
