package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tripgrid/faresearch/pkg/logging"
	"github.com/tripgrid/faresearch/pkg/metrics"
	"github.com/tripgrid/faresearch/pkg/server/inventory"
)

// CurrencyConverter converts an amount between two currency codes.
// *rates.Converter satisfies this.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// UnpricedPolicy decides how offers without a recognized price field rank.
type UnpricedPolicy string

const (
	// UnpricedLast keeps unpriced offers but ranks them after every priced one.
	UnpricedLast UnpricedPolicy = "last"
	// UnpricedExclude drops unpriced offers from the merged list.
	UnpricedExclude UnpricedPolicy = "exclude"
)

// ParseUnpricedPolicy validates an unpriced-policy string.
func ParseUnpricedPolicy(s string) (UnpricedPolicy, error) {
	switch UnpricedPolicy(strings.ToLower(s)) {
	case UnpricedLast:
		return UnpricedLast, nil
	case UnpricedExclude:
		return UnpricedExclude, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUnpricedPolicy, s)
	}
}

// Options configures an Aggregator.
type Options struct {
	Currency  string         // canonical currency all prices normalize to
	SourceCap int            // max results admitted per source
	Unpriced  UnpricedPolicy // ranking of offers without a price field
}

// Result is a raw offer augmented with its normalized price.
type Result struct {
	Offer  inventory.Offer
	Source string

	NormalizedPrice    decimal.Decimal
	NormalizedCurrency string
	OriginalCurrency   string

	// Unpriced marks offers carrying no recognized price field.
	Unpriced bool
	// Degraded marks offers whose currency conversion failed; the original
	// amount and currency are kept.
	Degraded bool
}

// MarshalJSON flattens the original provider fields and the normalization
// fields into one object.
func (r Result) MarshalJSON() ([]byte, error) {
	merged := make(map[string]interface{}, len(r.Offer)+5)
	for k, v := range r.Offer {
		merged[k] = v
	}

	merged["source"] = r.Source
	if r.Unpriced {
		merged["unpriced"] = true
	} else {
		merged["normalizedPrice"] = r.NormalizedPrice.InexactFloat64()
		merged["normalizedCurrency"] = r.NormalizedCurrency
		merged["originalCurrency"] = r.OriginalCurrency
	}
	if r.Degraded {
		merged["degraded"] = true
	}

	return json.Marshal(merged)
}

// Aggregator merges provider batches into one ranked list.
type Aggregator struct {
	converter CurrencyConverter
	opts      Options
	logger    *logging.Logger
}

// New creates an Aggregator. Zero option fields get defaults (USD, cap 15,
// unpriced ranked last).
func New(converter CurrencyConverter, opts Options, logger *logging.Logger) *Aggregator {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.SourceCap <= 0 {
		opts.SourceCap = DefaultSourceCap
	}
	if opts.Unpriced == "" {
		opts.Unpriced = UnpricedLast
	}
	return &Aggregator{
		converter: converter,
		opts:      opts,
		logger:    logger,
	}
}

// Currency returns the canonical currency results normalize to.
func (a *Aggregator) Currency() string {
	return a.opts.Currency
}

// Aggregate merges batches for one service type: failed batches are dropped,
// surviving offers are normalized, the list is stably sorted ascending by
// normalized price, and the per-source cap is applied. Partial failures never
// fail the call; empty or all-failed input yields an empty list.
func (a *Aggregator) Aggregate(ctx context.Context, batches []inventory.Batch, service inventory.ServiceType) []Result {
	results := make([]Result, 0)

	for _, batch := range batches {
		if !batch.Success {
			a.logger.Debug("Dropping failed provider batch", "provider", batch.Provider)
			continue
		}
		for _, offer := range batch.Offers(service) {
			result := a.normalize(ctx, offer, batch.Provider)
			if result.Unpriced && a.opts.Unpriced == UnpricedExclude {
				continue
			}
			results = append(results, result)
		}
	}

	// Stable: ties and unpriced runs keep input order.
	sort.SliceStable(results, func(i, j int) bool {
		return less(results[i], results[j])
	})

	return Diversify(results, a.opts.SourceCap)
}

func (a *Aggregator) normalize(ctx context.Context, offer inventory.Offer, batchProvider string) Result {
	source := offer.Source()
	if source == "" {
		source = batchProvider
	}

	quote, ok := ExtractPrice(offer, a.opts.Currency)
	if !ok {
		metrics.RecordUnpricedResult(source)
		return Result{Offer: offer, Source: source, Unpriced: true}
	}

	converted, err := a.converter.Convert(ctx, quote.Amount, quote.Currency, a.opts.Currency)
	if err != nil {
		// Degrade this one result instead of failing the search: keep the
		// original amount and currency, visibly flagged.
		a.logger.Warn("Currency conversion failed, keeping original price",
			"source", source,
			"currency", quote.Currency,
			"error", err.Error())
		return Result{
			Offer:              offer,
			Source:             source,
			NormalizedPrice:    quote.Amount,
			NormalizedCurrency: quote.Currency,
			OriginalCurrency:   quote.Currency,
			Degraded:           true,
		}
	}

	return Result{
		Offer:              offer,
		Source:             source,
		NormalizedPrice:    converted,
		NormalizedCurrency: a.opts.Currency,
		OriginalCurrency:   quote.Currency,
	}
}

// less orders priced results ascending by normalized price and ranks
// unpriced results after every priced one.
func less(a, b Result) bool {
	if a.Unpriced || b.Unpriced {
		return !a.Unpriced && b.Unpriced
	}
	return a.NormalizedPrice.LessThan(b.NormalizedPrice)
}
