package domain

import "errors"

// Pipeline error taxonomy. Provider and extraction failures are absorbed
// inside price discovery and recovered via the fallback estimator; only
// ErrMalformedQuery ever reaches a caller.
var (
	// ErrProviderUnavailable indicates a network failure, timeout, or
	// non-success response from the external knowledge provider.
	ErrProviderUnavailable = errors.New("knowledge provider unavailable")

	// ErrNoExtractablePrice indicates the provider responded but no valid
	// candidate price range survived filtering.
	ErrNoExtractablePrice = errors.New("no extractable price in provider response")

	// ErrSanityRejected indicates a candidate price exceeded its age-based
	// ceiling. The rejected value is replaced by the clean-title reference,
	// so this is a correction rather than a fatal error.
	ErrSanityRejected = errors.New("price exceeds age-based sanity ceiling")

	// ErrMalformedQuery indicates the query lacks the vehicle data needed
	// to produce any estimate (no make or model).
	ErrMalformedQuery = errors.New("vehicle query missing make or model")
)
