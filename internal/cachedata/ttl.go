package cachedata

import "time"

// TTL constants for cached payloads.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// TTLValuation - full pipeline payloads. Used-market prices move slowly;
	// an hour avoids hammering the knowledge provider for repeat lookups of
	// the same vehicle while a seller iterates on a listing.
	TTLValuation = time.Hour

	// TTLMarketSignals - demand/trend enrichment per make|model|year family.
	// Shorter than valuations since signals feed multiple fingerprints.
	TTLMarketSignals = 30 * time.Minute
)
