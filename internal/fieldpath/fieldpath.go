// Package fieldpath maps semantic field names such as "patient.mrn" to the
// wire paths ("PID.3") that carry them in a given message type.
package fieldpath

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hl7-synth-server/internal/domain"
)

// SupportedVersions lists the HL7 v2 versions paths are known for
var SupportedVersions = []string{"2.3", "2.3.1", "2.4", "2.5", "2.5.1", "2.6", "2.7", "2.7.1", "2.8"}

var defaultPaths = map[string]string{
	"message.sending_application":   "MSH.3",
	"message.sending_facility":      "MSH.4",
	"message.receiving_application": "MSH.5",
	"message.receiving_facility":    "MSH.6",
	"message.timestamp":             "MSH.7",
	"message.control_id":            "MSH.10",
	"message.processing_id":         "MSH.11",

	"event.type":          "EVN.1",
	"event.recorded_time": "EVN.2",
	"event.reason":        "EVN.4",

	"patient.id":             "PID.3",
	"patient.mrn":            "PID.3",
	"patient.name":           "PID.5",
	"patient.mother_maiden":  "PID.6",
	"patient.birth_date":     "PID.7",
	"patient.sex":            "PID.8",
	"patient.gender":         "PID.8",
	"patient.race":           "PID.10",
	"patient.address":        "PID.11",
	"patient.phone":          "PID.13",
	"patient.language":       "PID.15",
	"patient.marital_status": "PID.16",
	"patient.religion":       "PID.17",
	"patient.account_number": "PID.18",
	"patient.ssn":            "PID.19",
	"patient.ethnicity":      "PID.22",

	"next_of_kin.name":         "NK1.2",
	"next_of_kin.relationship": "NK1.3",
	"next_of_kin.phone":        "NK1.5",

	"encounter.class":                 "PV1.2",
	"encounter.location":              "PV1.3",
	"encounter.admission_type":        "PV1.4",
	"encounter.attending_doctor":      "PV1.7",
	"encounter.referring_doctor":      "PV1.8",
	"encounter.hospital_service":      "PV1.10",
	"encounter.admit_source":          "PV1.14",
	"encounter.visit_number":          "PV1.19",
	"encounter.discharge_disposition": "PV1.36",
	"encounter.admit_time":            "PV1.44",
	"encounter.discharge_time":        "PV1.45",

	"diagnosis.code": "DG1.3",
	"diagnosis.type": "DG1.6",

	"order.control":           "ORC.1",
	"order.placer_number":     "ORC.2",
	"order.filler_number":     "ORC.3",
	"order.status":            "ORC.5",
	"order.transaction_time":  "ORC.9",
	"order.ordering_provider": "ORC.12",

	"observation.service":      "OBR.4",
	"observation.request_time": "OBR.7",
	"observation.code":         "OBX.3",
	"observation.value":        "OBX.5",
	"observation.units":        "OBX.6",
	"observation.range":        "OBX.7",
	"observation.flags":        "OBX.8",
	"observation.status":       "OBX.11",

	"medication.code":  "RXE.2",
	"medication.dose":  "RXE.3",
	"medication.units": "RXE.5",
	"medication.route": "RXR.1",
}

// SegmentLookup reports the segments a message type carries
type SegmentLookup func(domain.MessageType) ([]string, bool)

// Resolver implements domain.FieldPathResolver over a fixed path table. It is
// read-only after construction.
type Resolver struct {
	paths    map[string]string
	segments SegmentLookup
	versions map[string]bool
}

// Option customizes a Resolver
type Option func(*Resolver)

// WithSegments restricts paths to segments present in the message type
func WithSegments(lookup SegmentLookup) Option {
	return func(r *Resolver) { r.segments = lookup }
}

// WithPaths adds or replaces semantic paths
func WithPaths(paths map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range paths {
			r.paths[Normalize(k)] = strings.ToUpper(v)
		}
	}
}

// New creates a resolver with the default path table
func New(opts ...Option) *Resolver {
	r := &Resolver{
		paths:    make(map[string]string, len(defaultPaths)),
		versions: make(map[string]bool, len(SupportedVersions)),
	}
	for k, v := range defaultPaths {
		r.paths[k] = v
	}
	for _, v := range SupportedVersions {
		r.versions[v] = true
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalize lowercases a semantic path and folds "-" and spaces to "_"
func Normalize(semantic string) string {
	s := strings.ToLower(strings.TrimSpace(semantic))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// ResolvePath implements domain.FieldPathResolver
func (r *Resolver) ResolvePath(_ context.Context, semanticPath string, messageType domain.MessageType, standardVersion string) (string, error) {
	if standardVersion != "" && !r.versions[standardVersion] {
		return "", fmt.Errorf("%w: unsupported standard version %q", domain.ErrInvalidPath, standardVersion)
	}

	wire, ok := r.paths[Normalize(semanticPath)]
	if !ok {
		return "", fmt.Errorf("%w: unknown semantic path %q", domain.ErrInvalidPath, semanticPath)
	}

	if r.segments != nil {
		segments, known := r.segments(messageType)
		if !known {
			return "", fmt.Errorf("%w: %s", domain.ErrInvalidMessageType, messageType)
		}
		seg, _, _ := strings.Cut(wire, ".")
		if !contains(segments, seg) {
			return "", fmt.Errorf("%w: %s has no %s segment for %q", domain.ErrInvalidPath, messageType, seg, semanticPath)
		}
	}
	return wire, nil
}

// Known reports whether a semantic path is mapped for any message type
func (r *Resolver) Known(semanticPath string) bool {
	_, ok := r.paths[Normalize(semanticPath)]
	return ok
}

// Paths returns every semantic path usable with the message type, sorted
func (r *Resolver) Paths(messageType domain.MessageType) map[string]string {
	out := make(map[string]string)
	for k := range r.paths {
		if wire, err := r.ResolvePath(context.Background(), k, messageType, ""); err == nil {
			out[k] = wire
		}
	}
	return out
}

// SortedNames returns the keys of a path map in order
func SortedNames(paths map[string]string) []string {
	names := make([]string, 0, len(paths))
	for k := range paths {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
