package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tripgrid/faresearch/pkg/version"
)

// Provider is one upstream travel-inventory supplier.
type Provider interface {
	// Name returns the unique name of this provider
	Name() string

	// Search runs one inventory search and returns the raw batch
	Search(ctx context.Context, query Query) (Batch, error)
}

// HTTPProvider queries a provider's search endpoint over HTTP.
type HTTPProvider struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates an HTTP inventory provider.
func NewHTTPProvider(name, baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name.
func (p *HTTPProvider) Name() string {
	return p.name
}

// Search performs an HTTP GET against the provider's search endpoint.
func (p *HTTPProvider) Search(ctx context.Context, query Query) (Batch, error) {
	u, err := url.Parse(p.baseURL + "/search")
	if err != nil {
		return Batch{}, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("service", string(query.Service))
	q.Set("destination", query.Destination)
	if query.Origin != "" {
		q.Set("origin", query.Origin)
	}
	if query.CheckIn != "" {
		q.Set("checkin", query.CheckIn)
	}
	if query.Date != "" {
		q.Set("date", query.Date)
	}
	if query.Nights > 0 {
		q.Set("nights", strconv.Itoa(query.Nights))
	}
	if query.Guests > 0 {
		q.Set("guests", strconv.Itoa(query.Guests))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if query.CorrelationID != "" {
		req.Header.Set("X-Correlation-ID", query.CorrelationID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Batch{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Batch{}, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, p.name)
	}

	var batch Batch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return Batch{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if batch.Provider == "" {
		batch.Provider = p.name
	}

	return batch, nil
}
