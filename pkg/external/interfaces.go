package external

import (
	"context"
	"time"

	"github.com/hl7-synth-server/internal/domain"
)

// TableSource fetches HL7 standards tables from an authoritative service
type TableSource interface {
	FetchTable(ctx context.Context, tableID string) (*domain.Table, error)
}

// TableCache is a shared cache of fetched tables
type TableCache interface {
	GetTable(ctx context.Context, tableID string) (*domain.Table, bool, error)
	SetTable(ctx context.Context, table *domain.Table, ttl time.Duration) error
	InvalidateTable(ctx context.Context, tableID string) error
}

// ServiceHealth represents the health status of an external service
type ServiceHealth struct {
	Service   string    `json:"service"`
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
}
