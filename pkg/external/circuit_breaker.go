package external

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/hl7-synth-server/internal/domain"
)

// ResilientConfig tunes the table provider tiers
type ResilientConfig struct {
	LocalEntries   int                         `json:"local_entries"`
	LocalTTL       time.Duration               `json:"local_ttl"`
	SharedTTL      time.Duration               `json:"shared_ttl"`
	CircuitBreaker domain.CircuitBreakerConfig `json:"circuit_breaker"`
}

// ProviderStats represents table lookup statistics
type ProviderStats struct {
	TotalRequests  int64     `json:"total_requests"`
	LocalHits      int64     `json:"local_hits"`
	SharedHits     int64     `json:"shared_hits"`
	RemoteCalls    int64     `json:"remote_calls"`
	RemoteFailures int64     `json:"remote_failures"`
	FallbackHits   int64     `json:"fallback_hits"`
	Misses         int64     `json:"misses"`
	LastReset      time.Time `json:"last_reset"`
}

// ResilientTableProvider looks tables up through an in-process LRU, a shared
// cache, and the remote service behind a circuit breaker. When the service is
// down or the breaker is open it serves the local reference data instead.
// Every tier is optional.
type ResilientTableProvider struct {
	source   TableSource
	shared   TableCache
	fallback domain.TableProvider

	local     *expirable.LRU[string, *domain.Table]
	sharedTTL time.Duration
	breaker   *gobreaker.CircuitBreaker
	logger    *logrus.Logger

	stats   ProviderStats
	statsMu sync.Mutex
}

// NewResilientTableProvider creates a new resilient table provider
func NewResilientTableProvider(
	config ResilientConfig,
	source TableSource,
	shared TableCache,
	fallback domain.TableProvider,
	logger *logrus.Logger,
) *ResilientTableProvider {
	if logger == nil {
		logger = logrus.New()
	}
	if config.LocalEntries <= 0 {
		config.LocalEntries = 256
	}
	if config.LocalTTL <= 0 {
		config.LocalTTL = 15 * time.Minute
	}
	cb := config.CircuitBreaker
	if cb.MaxRequests == 0 {
		cb.MaxRequests = 3
	}
	if cb.Interval == 0 {
		cb.Interval = 30 * time.Second
	}
	if cb.Timeout == 0 {
		cb.Timeout = 60 * time.Second
	}
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TableService",
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cb.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// An unknown table is an answer, not an outage.
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &ResilientTableProvider{
		source:    source,
		shared:    shared,
		fallback:  fallback,
		local:     expirable.NewLRU[string, *domain.Table](config.LocalEntries, nil, config.LocalTTL),
		sharedTTL: config.SharedTTL,
		breaker:   breaker,
		logger:    logger,
		stats:     ProviderStats{LastReset: time.Now()},
	}
}

// GetTable implements domain.TableProvider
func (p *ResilientTableProvider) GetTable(ctx context.Context, tableID string) (*domain.Table, error) {
	p.count(func(s *ProviderStats) { s.TotalRequests++ })

	if table, ok := p.local.Get(tableID); ok {
		p.count(func(s *ProviderStats) { s.LocalHits++ })
		return table, nil
	}

	if p.shared != nil {
		table, found, err := p.shared.GetTable(ctx, tableID)
		if err != nil {
			p.logger.WithError(err).WithField("table", tableID).Debug("Shared table cache unavailable")
		}
		if found {
			p.count(func(s *ProviderStats) { s.SharedHits++ })
			p.local.Add(tableID, table)
			return table, nil
		}
	}

	var notFound, outage bool
	if p.source != nil {
		table, err := p.fetchRemote(ctx, tableID)
		if err == nil {
			p.local.Add(tableID, table)
			if p.shared != nil {
				if cacheErr := p.shared.SetTable(ctx, table, p.sharedTTL); cacheErr != nil {
					p.logger.WithError(cacheErr).WithField("table", tableID).Debug("Failed to cache table")
				}
			}
			return table, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			notFound = true
		} else {
			outage = true
		}
		p.logger.WithError(err).WithFields(logrus.Fields{
			"table": tableID,
			"state": p.breaker.State().String(),
		}).Debug("Remote table lookup failed, using local reference data")
	}

	if p.fallback != nil {
		table, err := p.fallback.GetTable(ctx, tableID)
		if err == nil && !table.IsEmpty() {
			p.count(func(s *ProviderStats) { s.FallbackHits++ })
			p.local.Add(tableID, table)
			return table, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			notFound = true
		}
	}

	p.count(func(s *ProviderStats) { s.Misses++ })
	// An unknown table is only reported as such when no tier was down.
	if notFound && !outage {
		return nil, fmt.Errorf("table %s: %w", tableID, domain.ErrNotFound)
	}
	return nil, fmt.Errorf("table %s: %w", tableID, domain.ErrTableUnavailable)
}

func (p *ResilientTableProvider) fetchRemote(ctx context.Context, tableID string) (*domain.Table, error) {
	p.count(func(s *ProviderStats) { s.RemoteCalls++ })
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.source.FetchTable(ctx, tableID)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.count(func(s *ProviderStats) { s.RemoteFailures++ })
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("table service unavailable (circuit breaker open): %w", err)
		}
		return nil, err
	}
	table := result.(*domain.Table)
	if table.IsEmpty() {
		return nil, domain.ErrNotFound
	}
	return table, nil
}

// Invalidate drops a table from both caches
func (p *ResilientTableProvider) Invalidate(ctx context.Context, tableID string) error {
	p.local.Remove(tableID)
	if p.shared != nil {
		return p.shared.InvalidateTable(ctx, tableID)
	}
	return nil
}

// State returns the circuit breaker state
func (p *ResilientTableProvider) State() gobreaker.State {
	return p.breaker.State()
}

// GetCircuitBreakerStats returns the breaker counters
func (p *ResilientTableProvider) GetCircuitBreakerStats() gobreaker.Counts {
	return p.breaker.Counts()
}

// GetStats returns a snapshot of lookup statistics
func (p *ResilientTableProvider) GetStats() ProviderStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

func (p *ResilientTableProvider) count(update func(*ProviderStats)) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	update(&p.stats)
}
