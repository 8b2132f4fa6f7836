// Package signals enriches a valuation with market context: buyer demand,
// price trend, and typical days to sell. The lookup never fails the
// pipeline; when the provider is unreachable it degrades to a local trend
// computed from valuation history, and past that to fully unknown axes.
package signals

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/flipwise/appraiser/internal/domain"
)

var demandPhrases = []struct {
	phrase string
	level  domain.DemandLevel
}{
	{"high demand", domain.DemandHigh},
	{"strong demand", domain.DemandHigh},
	{"demand is high", domain.DemandHigh},
	{"demand is strong", domain.DemandHigh},
	{"in high demand", domain.DemandHigh},
	{"sells quickly", domain.DemandHigh},
	{"sell quickly", domain.DemandHigh},
	{"hot market", domain.DemandHigh},
	{"sought after", domain.DemandHigh},
	{"very popular", domain.DemandHigh},
	{"moderate demand", domain.DemandModerate},
	{"demand is moderate", domain.DemandModerate},
	{"average demand", domain.DemandModerate},
	{"steady demand", domain.DemandModerate},
	{"decent demand", domain.DemandModerate},
	{"low demand", domain.DemandLow},
	{"demand is low", domain.DemandLow},
	{"weak demand", domain.DemandLow},
	{"demand is weak", domain.DemandLow},
	{"soft market", domain.DemandLow},
	{"slow to sell", domain.DemandLow},
	{"hard to sell", domain.DemandLow},
	{"sits on the market", domain.DemandLow},
}

var trendPhrases = []struct {
	phrase string
	trend  domain.PriceTrend
}{
	{"rising", domain.TrendRising},
	{"increasing", domain.TrendRising},
	{"going up", domain.TrendRising},
	{"trending up", domain.TrendRising},
	{"climbing", domain.TrendRising},
	{"appreciating", domain.TrendRising},
	{"declining", domain.TrendDeclining},
	{"decreasing", domain.TrendDeclining},
	{"falling", domain.TrendDeclining},
	{"dropping", domain.TrendDeclining},
	{"going down", domain.TrendDeclining},
	{"trending down", domain.TrendDeclining},
	{"depreciating", domain.TrendDeclining},
	{"softening", domain.TrendDeclining},
	{"stable", domain.TrendStable},
	{"steady", domain.TrendStable},
	{"holding", domain.TrendStable},
	{"flat", domain.TrendStable},
	{"unchanged", domain.TrendStable},
}

// daysPattern captures "30 days", "30-45 days", "30 to 45 days".
var daysPattern = regexp.MustCompile(`(\d+)(?:\s*(?:-|–|to)\s*(\d+))?\s*days`)

// Parse mines provider free text for the three signal axes. The second
// return reports whether anything at all was recognized; a fully
// unrecognized answer should trigger the local fallback instead.
func Parse(text string) (domain.MarketSignals, bool) {
	lower := strings.ToLower(text)
	out := domain.EmptyMarketSignals()
	found := false

	for _, d := range demandPhrases {
		if strings.Contains(lower, d.phrase) {
			out.Demand = d.level
			found = true
			break
		}
	}

	for _, tr := range trendPhrases {
		if strings.Contains(lower, tr.phrase) {
			out.Trend = tr.trend
			found = true
			break
		}
	}

	if m := daysPattern.FindStringSubmatch(lower); m != nil {
		low, err := strconv.Atoi(m[1])
		if err == nil {
			days := low
			if m[2] != "" {
				if high, err := strconv.Atoi(m[2]); err == nil {
					days = (low + high) / 2
				}
			}
			if days > 0 && days <= 365 {
				out.DaysToSell = days
				found = true
			}
		}
	}

	return out, found
}
