package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripgrid/faresearch/pkg/version"
)

// DefaultExchangeRateHostURL is the production endpoint of the primary
// exchange-rate service.
const DefaultExchangeRateHostURL = "https://api.exchangerate.host"

// ExchangeRateHostProvider fetches rates from the exchangerate.host API.
// Requires an API key (paid service); without one every lookup fails fast so
// the Converter moves on to the free fallback.
type ExchangeRateHostProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type exchangeRateHostResponse struct {
	Success bool               `json:"success"`
	Rates   map[string]float64 `json:"rates"`
	Error   interface{}        `json:"error,omitempty"`
}

// NewExchangeRateHostProvider creates the primary rate provider. An empty
// baseURL selects the production endpoint.
func NewExchangeRateHostProvider(apiKey, baseURL string, timeout time.Duration) *ExchangeRateHostProvider {
	if baseURL == "" {
		baseURL = DefaultExchangeRateHostURL
	}
	return &ExchangeRateHostProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name.
func (p *ExchangeRateHostProvider) Name() string {
	return "exchangeratehost"
}

// Rate fetches the from→to multiplier.
func (p *ExchangeRateHostProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if p.apiKey == "" {
		return decimal.Zero, fmt.Errorf("%w", ErrAPIKeyRequired)
	}

	query := url.Values{}
	query.Set("base", from)
	query.Set("symbols", to)
	query.Set("access_key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/latest?"+query.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return decimal.Zero, fmt.Errorf("%w", ErrRateLimitExceeded)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var data exchangeRateHostResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}

	if !data.Success || data.Rates == nil {
		return decimal.Zero, fmt.Errorf("%w: success=%v, error=%v", ErrInvalidResponse, data.Success, data.Error)
	}

	rate, ok := data.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrRateNotFound, from, to)
	}
	if rate <= 0 {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %f for %s/%s", ErrInvalidResponse, rate, from, to)
	}

	return decimal.NewFromFloat(rate), nil
}
