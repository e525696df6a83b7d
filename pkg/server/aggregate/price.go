package aggregate

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tripgrid/faresearch/pkg/server/inventory"
)

// PriceQuote is a price extracted from a raw offer, in its original currency.
type PriceQuote struct {
	Amount   decimal.Decimal
	Currency string
}

// ExtractPrice probes an offer for a price. Precedence, first match wins:
// a nested "price" object with a numeric "amount", a flat "pricePerNight",
// a flat "totalPrice". The currency comes from the nested object, else the
// offer's top-level "currency", else defaultCurrency.
//
// The second return value is false when no recognized price field is
// present; callers must decide how to rank such offers, never assume zero.
func ExtractPrice(offer inventory.Offer, defaultCurrency string) (PriceQuote, bool) {
	if nested, ok := offer["price"].(map[string]interface{}); ok {
		if amount, ok := numericField(nested["amount"]); ok {
			currency := stringField(nested, "currency")
			if currency == "" {
				currency = stringField(offer, "currency")
			}
			return quote(amount, currency, defaultCurrency), true
		}
	}

	for _, field := range []string{"pricePerNight", "totalPrice"} {
		if amount, ok := numericField(offer[field]); ok {
			return quote(amount, stringField(offer, "currency"), defaultCurrency), true
		}
	}

	return PriceQuote{}, false
}

func quote(amount decimal.Decimal, currency, defaultCurrency string) PriceQuote {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return PriceQuote{Amount: amount, Currency: currency}
}

// numericField accepts the numeric shapes a decoded provider payload can
// carry: float64 from encoding/json, json.Number, or plain ints from
// hand-built offers.
func numericField(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
