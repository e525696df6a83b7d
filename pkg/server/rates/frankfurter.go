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

// DefaultFrankfurterURL is the production endpoint of the fallback
// exchange-rate service (free, no API key).
// https://www.frankfurter.app/docs/
const DefaultFrankfurterURL = "https://api.frankfurter.app"

// FrankfurterProvider fetches rates from the Frankfurter API. Used as the
// fallback when the primary provider is unavailable or unconfigured.
type FrankfurterProvider struct {
	baseURL string
	client  *http.Client
}

type frankfurterResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// NewFrankfurterProvider creates the fallback rate provider. An empty
// baseURL selects the production endpoint.
func NewFrankfurterProvider(baseURL string, timeout time.Duration) *FrankfurterProvider {
	if baseURL == "" {
		baseURL = DefaultFrankfurterURL
	}
	return &FrankfurterProvider{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name.
func (p *FrankfurterProvider) Name() string {
	return "frankfurter"
}

// Rate fetches the from→to multiplier.
func (p *FrankfurterProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("from", from)
	query.Set("to", to)

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

	var data frankfurterResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
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
