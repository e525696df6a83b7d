package rates

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripgrid/faresearch/pkg/logging"
	"github.com/tripgrid/faresearch/pkg/metrics"
)

// Provider resolves a single exchange rate between two currency codes.
type Provider interface {
	// Name returns the unique name of this provider
	Name() string

	// Rate returns the multiplier converting one unit of from into to
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Update is published to subscribers whenever a fresh rate is fetched.
type Update struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Provider  string          `json:"provider"`
	Timestamp time.Time       `json:"timestamp"`
}

// Pair returns the update's currency pair in BASE/QUOTE form.
func (u Update) Pair() string {
	return u.From + "/" + u.To
}

// Converter converts amounts between currencies. Providers are tried in
// order; the first success populates the cache so one aggregation pass makes
// at most one network call per distinct pair.
type Converter struct {
	providers     []Provider
	cache         *Cache
	logger        *logging.Logger
	subscribers   []chan<- Update
	subscribersMu sync.RWMutex
}

// NewConverter creates a Converter over the given providers and cache.
func NewConverter(providers []Provider, cache *Cache, logger *logging.Logger) *Converter {
	return &Converter{
		providers: providers,
		cache:     cache,
		logger:    logger,
	}
}

// Convert converts amount from one currency to another. Converting a
// currency to itself returns the amount unchanged without touching the
// network or the cache.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, err := normalizeCode(from)
	if err != nil {
		return decimal.Zero, err
	}
	to, err = normalizeCode(to)
	if err != nil {
		return decimal.Zero, err
	}

	if from == to {
		return amount, nil
	}

	if rate, ok := c.cache.Get(from, to); ok {
		metrics.RecordRateCache(true)
		return amount.Mul(rate), nil
	}
	metrics.RecordRateCache(false)

	rate, err := c.lookup(ctx, from, to)
	if err != nil {
		metrics.RecordConversionFailure(from)
		return decimal.Zero, err
	}

	return amount.Mul(rate), nil
}

// Subscribe registers a channel receiving fresh rate fetches. Delivery is
// best effort: a full channel is skipped, not blocked on.
func (c *Converter) Subscribe(updates chan<- Update) {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()
	c.subscribers = append(c.subscribers, updates)
}

func (c *Converter) lookup(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if len(c.providers) == 0 {
		return decimal.Zero, fmt.Errorf("%w", ErrNoProviders)
	}

	var lastErr error
	for _, provider := range c.providers {
		rate, err := provider.Rate(ctx, from, to)
		if err != nil {
			metrics.RecordRateLookup(provider.Name(), "error")
			c.logger.Warn("Rate lookup failed",
				"provider", provider.Name(),
				"pair", from+"/"+to,
				"error", err.Error())
			lastErr = err
			continue
		}

		metrics.RecordRateLookup(provider.Name(), "ok")
		c.cache.Set(from, to, rate)
		c.notifySubscribers(Update{
			From:      from,
			To:        to,
			Rate:      rate,
			Provider:  provider.Name(),
			Timestamp: time.Now(),
		})
		return rate, nil
	}

	return decimal.Zero, fmt.Errorf("%w for %s/%s: %v", ErrAllProvidersFailed, from, to, lastErr)
}

func (c *Converter) notifySubscribers(update Update) {
	c.subscribersMu.RLock()
	defer c.subscribersMu.RUnlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- update:
		default:
			c.logger.Warn("Subscriber channel full, skipping rate update",
				"pair", update.Pair())
		}
	}
}

func normalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return code, nil
}
