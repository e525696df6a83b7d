// Package inventory provides travel-inventory providers and the search fan-out.
package inventory

import "errors"

var (
	// ErrUnknownServiceType indicates an unrecognized service type string.
	ErrUnknownServiceType = errors.New("unknown service type")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code from a provider.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrNoProviders indicates that no inventory providers are configured.
	ErrNoProviders = errors.New("no inventory providers configured")
)
