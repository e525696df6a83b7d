package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripgrid/faresearch/pkg/logging"
	"github.com/tripgrid/faresearch/pkg/server/inventory"
)

// staticConverter resolves rates from a fixed table and counts lookups.
type staticConverter struct {
	rates map[string]decimal.Decimal // "EUR/USD" -> 1.15
	err   error
	calls int
}

func (c *staticConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	c.calls++
	if c.err != nil {
		return decimal.Zero, c.err
	}
	rate, ok := c.rates[from+"/"+to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s/%s", from, to)
	}
	return amount.Mul(rate), nil
}

func usdConverter() *staticConverter {
	return &staticConverter{rates: map[string]decimal.Decimal{
		"EUR/USD": decimal.NewFromFloat(1.15),
		"GBP/USD": decimal.NewFromFloat(1.30),
	}}
}

func newTestAggregator(conv CurrencyConverter, opts Options) *Aggregator {
	return New(conv, opts, logging.NewNoopLogger())
}

func hotelBatch(provider string, offers ...inventory.Offer) inventory.Batch {
	return inventory.Batch{Success: true, Provider: provider, Hotels: offers}
}

func TestAggregate_EmptyInput(t *testing.T) {
	agg := newTestAggregator(usdConverter(), Options{})

	assert.Empty(t, agg.Aggregate(context.Background(), nil, inventory.ServiceHotel))
	assert.Empty(t, agg.Aggregate(context.Background(), []inventory.Batch{}, inventory.ServiceHotel))
}

func TestAggregate_FailedBatchesExcluded(t *testing.T) {
	batches := []inventory.Batch{
		{Success: false, Provider: "brokenco", Hotels: []inventory.Offer{
			{"name": "Ghost Hotel", "pricePerNight": 1.0, "currency": "USD"},
		}},
		hotelBatch("skytrack", inventory.Offer{"name": "Hotel Mira", "pricePerNight": 90.0, "currency": "USD"}),
	}

	agg := newTestAggregator(usdConverter(), Options{})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)

	require.Len(t, results, 1)
	assert.Equal(t, "skytrack", results[0].Source)
	for _, r := range results {
		assert.NotEqual(t, "Ghost Hotel", r.Offer["name"])
	}
}

func TestAggregate_PriceFieldPrecedenceOrdering(t *testing.T) {
	batches := []inventory.Batch{
		hotelBatch("skytrack",
			inventory.Offer{"name": "per-night", "pricePerNight": 100.0, "currency": "USD"},
			inventory.Offer{"name": "total", "totalPrice": 200.0, "currency": "USD"},
			inventory.Offer{"name": "nested", "price": map[string]interface{}{"amount": 50.0}, "currency": "USD"},
		),
	}

	agg := newTestAggregator(usdConverter(), Options{})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)
	require.Len(t, results, 3)

	var prices []string
	for _, r := range results {
		prices = append(prices, r.NormalizedPrice.String())
	}
	assert.Equal(t, []string{"50", "100", "200"}, prices)
}

func TestAggregate_NormalizesCurrency(t *testing.T) {
	batches := []inventory.Batch{
		hotelBatch("eurobeds", inventory.Offer{"name": "Pensão Aurora", "pricePerNight": 10.0, "currency": "EUR"}),
	}

	agg := newTestAggregator(usdConverter(), Options{Currency: "USD"})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)
	require.Len(t, results, 1)

	got := results[0]
	assert.True(t, got.NormalizedPrice.Equal(decimal.NewFromFloat(11.5)), "10 EUR at 1.15 is 11.5 USD, got %s", got.NormalizedPrice)
	assert.Equal(t, "USD", got.NormalizedCurrency)
	assert.Equal(t, "EUR", got.OriginalCurrency)
	assert.False(t, got.Degraded)
}

func TestAggregate_SortedAscendingAcrossProviders(t *testing.T) {
	batches := []inventory.Batch{
		hotelBatch("skytrack",
			inventory.Offer{"pricePerNight": 300.0, "currency": "USD"},
			inventory.Offer{"pricePerNight": 80.0, "currency": "USD"},
		),
		hotelBatch("eurobeds",
			inventory.Offer{"pricePerNight": 100.0, "currency": "EUR"}, // 115 USD
			inventory.Offer{"pricePerNight": 50.0, "currency": "EUR"},  // 57.5 USD
		),
	}

	agg := newTestAggregator(usdConverter(), Options{})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)
	require.Len(t, results, 4)

	for i := 0; i < len(results)-1; i++ {
		assert.True(t, results[i].NormalizedPrice.LessThanOrEqual(results[i+1].NormalizedPrice),
			"results[%d]=%s must be <= results[%d]=%s",
			i, results[i].NormalizedPrice, i+1, results[i+1].NormalizedPrice)
	}
}

func TestAggregate_SourceCap(t *testing.T) {
	offers := make([]inventory.Offer, 0, 20)
	for i := 0; i < 20; i++ {
		offers = append(offers, inventory.Offer{
			"name":          fmt.Sprintf("room-%d", i),
			"pricePerNight": float64(100 + i),
			"currency":      "USD",
		})
	}

	agg := newTestAggregator(usdConverter(), Options{SourceCap: 15})
	results := agg.Aggregate(context.Background(), []inventory.Batch{hotelBatch("skytrack", offers...)}, inventory.ServiceHotel)

	require.Len(t, results, 15)
	for i, r := range results {
		assert.Equal(t, "skytrack", r.Source)
		assert.True(t, r.NormalizedPrice.Equal(decimal.NewFromInt(int64(100+i))),
			"cheapest 15 must survive in ascending order")
	}
}

func TestAggregate_UnpricedRankLast(t *testing.T) {
	batches := []inventory.Batch{
		hotelBatch("skytrack",
			inventory.Offer{"name": "mystery"},
			inventory.Offer{"name": "cheap", "pricePerNight": 10.0, "currency": "USD"},
			inventory.Offer{"name": "dear", "pricePerNight": 900.0, "currency": "USD"},
		),
	}

	agg := newTestAggregator(usdConverter(), Options{Unpriced: UnpricedLast})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)
	require.Len(t, results, 3)

	assert.Equal(t, "cheap", results[0].Offer["name"])
	assert.Equal(t, "dear", results[1].Offer["name"])
	assert.Equal(t, "mystery", results[2].Offer["name"])
	assert.True(t, results[2].Unpriced)
}

func TestAggregate_UnpricedExclude(t *testing.T) {
	batches := []inventory.Batch{
		hotelBatch("skytrack",
			inventory.Offer{"name": "mystery"},
			inventory.Offer{"name": "priced", "pricePerNight": 10.0, "currency": "USD"},
		),
	}

	agg := newTestAggregator(usdConverter(), Options{Unpriced: UnpricedExclude})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)

	require.Len(t, results, 1)
	assert.Equal(t, "priced", results[0].Offer["name"])
}

func TestAggregate_ConversionFailureDegradesSingleResult(t *testing.T) {
	conv := &staticConverter{
		rates: map[string]decimal.Decimal{"EUR/USD": decimal.NewFromFloat(1.15)},
	}
	batches := []inventory.Batch{
		hotelBatch("skytrack",
			inventory.Offer{"name": "fine", "pricePerNight": 10.0, "currency": "EUR"},
			inventory.Offer{"name": "odd", "pricePerNight": 500.0, "currency": "XXX"},
		),
	}

	agg := newTestAggregator(conv, Options{})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)
	require.Len(t, results, 2, "one failed conversion must not drop the result or fail the search")

	byName := make(map[string]Result)
	for _, r := range results {
		byName[r.Offer["name"].(string)] = r
	}

	assert.False(t, byName["fine"].Degraded)

	degraded := byName["odd"]
	assert.True(t, degraded.Degraded)
	assert.True(t, degraded.NormalizedPrice.Equal(decimal.NewFromInt(500)), "degraded results keep the original amount")
	assert.Equal(t, "XXX", degraded.NormalizedCurrency)
	assert.Equal(t, "XXX", degraded.OriginalCurrency)
}

func TestAggregate_AllConversionsFailStillReturnsList(t *testing.T) {
	conv := &staticConverter{err: errors.New("rates down")}
	batches := []inventory.Batch{
		hotelBatch("skytrack", inventory.Offer{"pricePerNight": 10.0, "currency": "EUR"}),
	}

	agg := newTestAggregator(conv, Options{})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)

	require.Len(t, results, 1)
	assert.True(t, results[0].Degraded)
}

func TestAggregate_SourceFromOfferOverridesBatch(t *testing.T) {
	batches := []inventory.Batch{
		hotelBatch("meta-gateway",
			inventory.Offer{"source": "skytrack", "pricePerNight": 10.0, "currency": "USD"},
			inventory.Offer{"pricePerNight": 20.0, "currency": "USD"},
		),
	}

	agg := newTestAggregator(usdConverter(), Options{})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceHotel)
	require.Len(t, results, 2)

	assert.Equal(t, "skytrack", results[0].Source)
	assert.Equal(t, "meta-gateway", results[1].Source)
}

func TestAggregate_ServiceTypeSelectsArray(t *testing.T) {
	batches := []inventory.Batch{
		{
			Success:  true,
			Provider: "wingspan",
			Flights:  []inventory.Offer{{"flightNumber": "TG123", "totalPrice": 220.0, "currency": "USD"}},
			Hotels:   []inventory.Offer{{"name": "should not appear", "pricePerNight": 1.0, "currency": "USD"}},
		},
	}

	agg := newTestAggregator(usdConverter(), Options{})
	results := agg.Aggregate(context.Background(), batches, inventory.ServiceFlight)

	require.Len(t, results, 1)
	assert.Equal(t, "TG123", results[0].Offer["flightNumber"])
}

func TestResult_MarshalJSON(t *testing.T) {
	result := Result{
		Offer:              inventory.Offer{"name": "Hotel Mira", "pricePerNight": 100.0, "currency": "EUR"},
		Source:             "skytrack",
		NormalizedPrice:    decimal.NewFromFloat(115),
		NormalizedCurrency: "USD",
		OriginalCurrency:   "EUR",
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Hotel Mira", decoded["name"], "original provider fields pass through")
	assert.Equal(t, 115.0, decoded["normalizedPrice"])
	assert.Equal(t, "USD", decoded["normalizedCurrency"])
	assert.Equal(t, "EUR", decoded["originalCurrency"])
	assert.Equal(t, "skytrack", decoded["source"])
	assert.NotContains(t, decoded, "degraded")
	assert.NotContains(t, decoded, "unpriced")
}
