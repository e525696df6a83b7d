// Package rates provides currency conversion backed by exchange-rate providers.
package rates

import "errors"

var (
	// ErrAllProvidersFailed indicates that every configured rate provider failed.
	ErrAllProvidersFailed = errors.New("all rate providers failed")
	// ErrNoProviders indicates that no rate providers are configured.
	ErrNoProviders = errors.New("no rate providers configured")
	// ErrAPIKeyRequired indicates that the provider requires an API key.
	ErrAPIKeyRequired = errors.New("API key is required")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates that a rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidResponse indicates an invalid response from the provider.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrRateNotFound indicates the response carried no rate for the requested pair.
	ErrRateNotFound = errors.New("rate not found in response")
	// ErrInvalidCurrency indicates a malformed currency code.
	ErrInvalidCurrency = errors.New("invalid currency code")
)
