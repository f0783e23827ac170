package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hl7-synth-server/internal/domain"
)

// TableServiceClient handles interactions with a remote HL7 terminology service
type TableServiceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	retries    int
	backoff    time.Duration
	logger     *logrus.Logger
}

// tableResponse is the JSON document returned by GET /tables/{id}
type tableResponse struct {
	TableID string `json:"table_id"`
	Name    string `json:"name"`
	Values  []struct {
		Code string `json:"code"`
		Text string `json:"text"`
	} `json:"values"`
}

// errRetryable marks failures worth another attempt (network errors, 5xx, 429)
var errRetryable = errors.New("retryable table service failure")

// NewTableServiceClient creates a new table service client
func NewTableServiceClient(config domain.TableServiceConfig, logger *logrus.Logger) *TableServiceClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &TableServiceClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		retries:   config.RetryCount,
		backoff:   200 * time.Millisecond,
		logger:    logger,
	}
}

// FetchTable retrieves one table. A table the service does not know is reported
// as domain.ErrNotFound.
func (c *TableServiceClient) FetchTable(ctx context.Context, tableID string) (*domain.Table, error) {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return nil, fmt.Errorf("table ID cannot be empty")
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		table, err := c.fetchOnce(ctx, tableID)
		if err == nil {
			return table, nil
		}
		lastErr = err
		if !errors.Is(err, errRetryable) {
			break
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"table":   tableID,
			"attempt": attempt + 1,
		}).Debug("Table service request failed, retrying")
	}
	return nil, fmt.Errorf("failed to fetch table %s: %w", tableID, lastErr)
}

func (c *TableServiceClient) fetchOnce(ctx context.Context, tableID string) (*domain.Table, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	endpoint := fmt.Sprintf("%s/tables/%s", c.baseURL, url.PathEscape(tableID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("table service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var payload tableResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse table response: %w", err)
	}

	table := &domain.Table{ID: tableID, Name: payload.Name}
	for _, v := range payload.Values {
		if v.Code == "" {
			continue
		}
		table.Values = append(table.Values, domain.TableValue{Code: v.Code, Text: v.Text})
	}
	return table, nil
}

// Health checks whether the service answers its health endpoint
func (c *TableServiceClient) Health(ctx context.Context) ServiceHealth {
	health := ServiceHealth{Service: "table_service", LastCheck: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	defer resp.Body.Close()

	health.Healthy = resp.StatusCode == http.StatusOK
	if !health.Healthy {
		health.Error = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return health
}
