// Package discovery finds a live used-market value for a vehicle by
// asking the knowledge provider and mining its free-text answer for
// plausible price ranges. Everything here degrades: any failure surfaces
// as an error the pipeline absorbs by falling back to the depreciation
// estimator.
package discovery

// Config holds the phrase tables and plausibility bounds for answer
// filtering and extraction. Passed at construction so tests can swap
// tables.
type Config struct {
	// MSRPPhrases mark new-vehicle pricing language. Lines containing any
	// of them are dropped before extraction; an answer reduced to nothing
	// is a discovery failure.
	MSRPPhrases []string

	// DisqualifyingPhrases mark lines whose dollar figures are not
	// private-party sale prices (trade-in quotes, teaser prices, monthly
	// payments).
	DisqualifyingPhrases []string

	// MarketContextPhrases promote a line's candidates to priority 1,
	// the private-party/market-sale class.
	MarketContextPhrases []string

	// Plausibility bounds for a single extracted dollar figure. Values
	// outside are discarded as noise rather than errors.
	MinPlausiblePrice float64
	MaxPlausiblePrice float64
}

// DefaultConfig returns the production phrase tables.
func DefaultConfig() Config {
	return Config{
		MSRPPhrases: []string{
			"msrp",
			"sticker price",
			"starting at",
			"dealer invoice",
			"invoice price",
			"destination charge",
			"when new",
			"brand new",
			"original price",
			"list price",
		},
		DisqualifyingPhrases: []string{
			"trade-in",
			"trade in",
			"wholesale",
			"auction",
			"as low as",
			"per month",
			"/mo",
			"a month",
			"down payment",
			"financing",
		},
		MarketContextPhrases: []string{
			"private party",
			"private-party",
			"private sale",
			"market value",
			"market price",
			"fair market",
			"resale value",
			"sells for",
			"sell for",
			"selling for",
			"typically sells",
			"typically sell",
			"asking prices",
			"kelley blue book",
			"kbb",
			"edmunds",
		},
		MinPlausiblePrice: 100,
		MaxPlausiblePrice: 500000,
	}
}
