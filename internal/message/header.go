package message

import (
	"context"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/resolver"
)

// Header identifies the systems exchanging generated messages
type Header struct {
	SendingApplication   string
	SendingFacility      string
	ReceivingApplication string
	ReceivingFacility    string
	ProcessingID         string
}

// HeaderFrom reads header settings, filling blanks with defaults
func HeaderFrom(cfg domain.GenerationConfig) Header {
	h := Header{
		SendingApplication:   cfg.SendingApplication,
		SendingFacility:      cfg.SendingFacility,
		ReceivingApplication: cfg.ReceivingApplication,
		ReceivingFacility:    cfg.ReceivingFacility,
		ProcessingID:         cfg.ProcessingID,
	}
	if h.SendingApplication == "" {
		h.SendingApplication = "HL7GEN"
	}
	if h.SendingFacility == "" {
		h.SendingFacility = "SYNTH_HOSP"
	}
	if h.ReceivingApplication == "" {
		h.ReceivingApplication = "RECEIVER"
	}
	if h.ReceivingFacility == "" {
		h.ReceivingFacility = "RECEIVER_FAC"
	}
	if h.ProcessingID == "" {
		h.ProcessingID = "T"
	}
	return h
}

// HeaderResolver answers the MSH routing fields from configuration. It sits
// below the session override so a locked value still wins.
type HeaderResolver struct {
	header Header
}

// NewHeaderResolver creates the resolver
func NewHeaderResolver(h Header) *HeaderResolver {
	return &HeaderResolver{header: h}
}

// Registration returns the resolver with its dispatch priority
func (r *HeaderResolver) Registration() resolver.Registration {
	return resolver.Register(r, resolver.PriorityIdentity)
}

// Name implements resolver.Resolver
func (r *HeaderResolver) Name() string { return "message_header" }

// CompositeTypes implements resolver.CompositeResolver
func (r *HeaderResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{domain.TypeHD}
}

// ResolveComposite implements resolver.CompositeResolver
func (r *HeaderResolver) ResolveComposite(_ context.Context, rc *domain.ResolutionContext, _ *domain.CompositeSchema) (map[int]string, bool, error) {
	v, ok := r.value(rc.Path())
	if !ok {
		return nil, false, nil
	}
	return map[int]string{1: v}, true, nil
}

// Resolve implements resolver.ScalarResolver
func (r *HeaderResolver) Resolve(_ context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	v, ok := r.value(rc.Path())
	return v, ok, nil
}

func (r *HeaderResolver) value(path string) (string, bool) {
	var v string
	switch path {
	case "MSH.3":
		v = r.header.SendingApplication
	case "MSH.4":
		v = r.header.SendingFacility
	case "MSH.5":
		v = r.header.ReceivingApplication
	case "MSH.6":
		v = r.header.ReceivingFacility
	case "MSH.11":
		v = r.header.ProcessingID
	}
	return v, v != ""
}
