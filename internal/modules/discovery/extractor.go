package discovery

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/flipwise/appraiser/internal/domain"
)

var (
	// rangePattern matches "$8,000 - $9,500", "$8000 to $9500" and the
	// dash and conjunction variants providers like to emit.
	rangePattern = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*(?:-|–|—|to|and|or)\s*\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

	// pricePattern matches a lone dollar figure.
	pricePattern = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

	// mileageSuffix detects figures that are odometer readings, not
	// prices ("$old listing at 150,000 miles" style false positives).
	mileageSuffix = regexp.MustCompile(`^\s*(?:k\b|miles?\b|mi\b|km\b|odometer)`)
)

// Extractor mines filtered provider text for price candidates.
type Extractor struct {
	cfg Config
}

func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// StripMSRPContent removes every line carrying an MSRP-indicator phrase.
// The second return is true when nothing with content survives, which
// callers must treat as discovery failure.
func (e *Extractor) StripMSRPContent(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	survived := false
	for _, line := range lines {
		lower := strings.ToLower(line)
		if containsAny(lower, e.cfg.MSRPPhrases) {
			continue
		}
		kept = append(kept, line)
		if strings.TrimSpace(line) != "" {
			survived = true
		}
	}
	return strings.Join(kept, "\n"), !survived
}

// Extract finds all plausible price candidates in the text, line by line.
// A line's context decides the priority of every candidate on it and can
// disqualify the line entirely.
func (e *Extractor) Extract(text string) []domain.PriceCandidate {
	var out []domain.PriceCandidate
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if strings.TrimSpace(lower) == "" || containsAny(lower, e.cfg.DisqualifyingPhrases) {
			continue
		}

		priority := domain.PriorityGeneric
		if containsAny(lower, e.cfg.MarketContextPhrases) {
			priority = domain.PriorityMarketSale
		}

		out = append(out, e.extractLine(lower, priority)...)
	}
	return out
}

// extractLine pulls ranges first, then lone figures outside range spans.
func (e *Extractor) extractLine(line string, priority int) []domain.PriceCandidate {
	var out []domain.PriceCandidate
	var spans [][2]int

	for _, m := range rangePattern.FindAllStringSubmatchIndex(line, -1) {
		low, lowOK := e.parseAmount(line, m[2], m[3])
		high, highOK := e.parseAmount(line, m[4], m[5])
		if !lowOK || !highOK || low > high {
			continue
		}
		spans = append(spans, [2]int{m[0], m[1]})
		out = append(out, domain.PriceCandidate{
			Low:        low,
			High:       high,
			Average:    (low + high) / 2,
			SourceType: "range",
			Priority:   priority,
		})
	}

	for _, m := range pricePattern.FindAllStringSubmatchIndex(line, -1) {
		if insideAny(m[0], spans) {
			continue
		}
		v, ok := e.parseAmount(line, m[2], m[3])
		if !ok {
			continue
		}
		out = append(out, domain.PriceCandidate{
			Low:        v,
			High:       v,
			Average:    v,
			SourceType: "single",
			Priority:   priority,
		})
	}
	return out
}

// parseAmount converts one matched figure, rejecting year-like and
// mileage-like false positives and values outside plausibility bounds.
func (e *Extractor) parseAmount(line string, start, end int) (float64, bool) {
	raw := line[start:end]
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if looksLikeYear(raw, v) {
		return 0, false
	}
	if mileageSuffix.MatchString(line[end:]) {
		return 0, false
	}
	if v < e.cfg.MinPlausiblePrice || v > e.cfg.MaxPlausiblePrice {
		return 0, false
	}
	return v, true
}

// SelectBest orders candidates by (priority ascending, average descending)
// and returns the first. Preferring the highest average within a priority
// class avoids under-pricing from low outlier listings.
func SelectBest(candidates []domain.PriceCandidate) (domain.PriceCandidate, bool) {
	if len(candidates) == 0 {
		return domain.PriceCandidate{}, false
	}
	sorted := make([]domain.PriceCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Average > sorted[j].Average
	})
	return sorted[0], true
}

// looksLikeYear flags bare four-digit figures in the model-year range.
// Real prices at that magnitude are written with separators ("$2,015")
// or cents often enough that this trade is worth it.
func looksLikeYear(raw string, v float64) bool {
	return len(raw) == 4 && !strings.Contains(raw, ",") && !strings.Contains(raw, ".") &&
		v >= 1900 && v <= 2099
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func insideAny(pos int, spans [][2]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}
