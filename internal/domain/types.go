// Package domain contains the core types for synthetic HL7 v2 message generation:
// field metadata, composite schemas, the per-message generation context and the
// collaborator contracts the field-value resolution engine depends on.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DataType is an HL7 v2 data type code such as ST, NM, TS, CE or CX.
type DataType string

const (
	TypeST  DataType = "ST"
	TypeTX  DataType = "TX"
	TypeFT  DataType = "FT"
	TypeNM  DataType = "NM"
	TypeSI  DataType = "SI"
	TypeID  DataType = "ID"
	TypeIS  DataType = "IS"
	TypeDT  DataType = "DT"
	TypeTM  DataType = "TM"
	TypeTS  DataType = "TS"
	TypeDTM DataType = "DTM"
	TypeCE  DataType = "CE"
	TypeCWE DataType = "CWE"
	TypeCX  DataType = "CX"
	TypeCK  DataType = "CK"
	TypeEI  DataType = "EI"
	TypeHD  DataType = "HD"
	TypeXCN DataType = "XCN"
	TypeXON DataType = "XON"
	TypeXPN DataType = "XPN"
	TypeXAD DataType = "XAD"
	TypeXTN DataType = "XTN"
	TypeCQ  DataType = "CQ"
	TypeNR  DataType = "NR"
	TypeDR  DataType = "DR"
	TypeDLT DataType = "DLT"
	TypePL  DataType = "PL"
)

// String returns the wire code of the data type
func (d DataType) String() string {
	return string(d)
}

// IsTemporal reports whether values of this type are timestamps or dates
func (d DataType) IsTemporal() bool {
	switch d {
	case TypeDT, TypeTS, TypeDTM:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether values of this type are plain numbers
func (d DataType) IsNumeric() bool {
	return d == TypeNM || d == TypeSI
}

// TimestampPrecision controls how a generated time is rendered on the wire
type TimestampPrecision int

const (
	PrecisionDateTime TimestampPrecision = iota
	PrecisionDate
	PrecisionDateTimeFraction
)

// Layout returns the Go time layout for the precision
func (p TimestampPrecision) Layout() string {
	switch p {
	case PrecisionDate:
		return "20060102"
	case PrecisionDateTimeFraction:
		return "20060102150405.0000"
	default:
		return "20060102150405"
	}
}

// MessageType identifies a message structure and trigger event, e.g. "ADT^A01"
type MessageType string

const (
	ADT_A01 MessageType = "ADT^A01"
	ADT_A03 MessageType = "ADT^A03"
	ADT_A08 MessageType = "ADT^A08"
	ORU_R01 MessageType = "ORU^R01"
	RDE_O11 MessageType = "RDE^O11"
)

// Sentinel errors shared by collaborators of the resolution engine
var (
	ErrNotFound           = errors.New("not found")
	ErrTableUnavailable   = errors.New("table unavailable")
	ErrSessionNotFound    = errors.New("override session not found")
	ErrInvalidPath        = errors.New("invalid field path")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrNoReferenceData    = errors.New("no reference data available")
)

// Code returns the message code component ("ADT")
func (m MessageType) Code() string {
	code, _, _ := strings.Cut(string(m), "^")
	return code
}

// TriggerEvent returns the trigger event component ("A01"), or "" if absent
func (m MessageType) TriggerEvent() string {
	_, event, _ := strings.Cut(string(m), "^")
	if i := strings.IndexByte(event, '^'); i >= 0 {
		event = event[:i]
	}
	return event
}

// IsValid checks that the message type has both a code and a trigger event
func (m MessageType) IsValid() bool {
	return len(m.Code()) == 3 && len(m.TriggerEvent()) == 3
}

// ParseMessageType accepts "ADT^A01" or "ADT_A01" forms
func ParseMessageType(s string) (MessageType, error) {
	mt := MessageType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", "^")))
	if !mt.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMessageType, s)
	}
	return mt, nil
}

// FieldPath builds the "SEGMENT.POSITION" key used for anchors and overrides
func FieldPath(segment string, position int) string {
	return fmt.Sprintf("%s.%d", segment, position)
}
