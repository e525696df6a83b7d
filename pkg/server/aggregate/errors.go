// Package aggregate merges raw provider batches into one ranked,
// currency-consistent result list.
package aggregate

import "errors"

var (
	// ErrUnknownUnpricedPolicy indicates an unrecognized unpriced-result policy.
	ErrUnknownUnpricedPolicy = errors.New("unknown unpriced policy")
)
