package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripgrid/faresearch/pkg/logging"
)

// fakeProvider returns a fixed rate (or error) and counts lookups.
type fakeProvider struct {
	name  string
	rate  decimal.Decimal
	err   error
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Rate(_ context.Context, _, _ string) (decimal.Decimal, error) {
	p.calls++
	if p.err != nil {
		return decimal.Zero, p.err
	}
	return p.rate, nil
}

func newTestConverter(ttl time.Duration, providers ...Provider) *Converter {
	return NewConverter(providers, NewCache(ttl), logging.NewNoopLogger())
}

func TestConverter_Identity(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: decimal.NewFromFloat(1.15)}
	conv := newTestConverter(time.Minute, primary)

	amount := decimal.NewFromInt(42)
	got, err := conv.Convert(context.Background(), amount, "USD", "usd")
	require.NoError(t, err)

	assert.True(t, got.Equal(amount), "identity conversion must not change the amount")
	assert.Zero(t, primary.calls, "identity conversion must not touch the network")
}

func TestConverter_CachesPerPair(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: decimal.NewFromFloat(1.15)}
	conv := newTestConverter(time.Minute, primary)

	for i := 0; i < 5; i++ {
		got, err := conv.Convert(context.Background(), decimal.NewFromInt(10), "EUR", "USD")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromFloat(11.5)), "10 EUR at 1.15 should be 11.5 USD, got %s", got)
	}

	assert.Equal(t, 1, primary.calls, "repeated conversions of the same pair must hit the provider once")
}

func TestConverter_FallbackOnPrimaryFailure(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("boom")}
	fallback := &fakeProvider{name: "fallback", rate: decimal.NewFromFloat(0.9)}
	conv := newTestConverter(time.Minute, primary, fallback)

	got, err := conv.Convert(context.Background(), decimal.NewFromInt(100), "GBP", "EUR")
	require.NoError(t, err)

	assert.True(t, got.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestConverter_AllProvidersFail(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("boom")}
	fallback := &fakeProvider{name: "fallback", err: errors.New("also boom")}
	conv := newTestConverter(time.Minute, primary, fallback)

	_, err := conv.Convert(context.Background(), decimal.NewFromInt(1), "EUR", "USD")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)

	// No retries within the call: each provider was tried exactly once.
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestConverter_ExpiredCacheRefetches(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: decimal.NewFromFloat(1.15)}
	conv := newTestConverter(time.Nanosecond, primary)

	_, err := conv.Convert(context.Background(), decimal.NewFromInt(1), "EUR", "USD")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, err = conv.Convert(context.Background(), decimal.NewFromInt(1), "EUR", "USD")
	require.NoError(t, err)

	assert.Equal(t, 2, primary.calls, "stale cache entries must be refetched")
}

func TestConverter_InvalidCurrency(t *testing.T) {
	conv := newTestConverter(time.Minute, &fakeProvider{name: "primary", rate: decimal.NewFromInt(1)})

	_, err := conv.Convert(context.Background(), decimal.NewFromInt(1), "EURO", "USD")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = conv.Convert(context.Background(), decimal.NewFromInt(1), "EUR", "")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestConverter_NotifiesSubscribers(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: decimal.NewFromFloat(1.15)}
	conv := newTestConverter(time.Minute, primary)

	updates := make(chan Update, 1)
	conv.Subscribe(updates)

	_, err := conv.Convert(context.Background(), decimal.NewFromInt(1), "EUR", "USD")
	require.NoError(t, err)

	select {
	case update := <-updates:
		assert.Equal(t, "EUR/USD", update.Pair())
		assert.Equal(t, "primary", update.Provider)
		assert.True(t, update.Rate.Equal(decimal.NewFromFloat(1.15)))
	default:
		t.Fatal("expected a rate update after a fresh fetch")
	}

	// Cache hits must not re-notify.
	_, err = conv.Convert(context.Background(), decimal.NewFromInt(2), "EUR", "USD")
	require.NoError(t, err)

	select {
	case <-updates:
		t.Fatal("cache hit should not publish an update")
	default:
	}
}
