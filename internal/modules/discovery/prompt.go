package discovery

import (
	"fmt"
	"strings"

	"github.com/flipwise/appraiser/internal/domain"
)

// BuildPrompt renders the natural-language pricing question for a query.
// It always asks for current used-market pricing and explicitly rules out
// MSRP and new-vehicle language, which is the first line of defense
// before the answer-side MSRP filter.
func BuildPrompt(q *domain.VehicleQuery) string {
	var b strings.Builder

	b.WriteString("What is the current used private-party market value of a ")
	if q.Year > 0 {
		fmt.Fprintf(&b, "%d ", q.Year)
	}
	fmt.Fprintf(&b, "%s %s", q.Make, q.Model)
	if q.Trim != "" {
		fmt.Fprintf(&b, " %s", q.Trim)
	}
	if q.Mileage > 0 {
		fmt.Fprintf(&b, " with %d miles", q.Mileage)
	}
	if q.TitleStatus != domain.TitleClean {
		fmt.Fprintf(&b, " and a %s title", q.TitleStatus)
	}
	if q.Location != "" {
		fmt.Fprintf(&b, " in %s", q.Location)
	}
	b.WriteString("?\n\n")

	b.WriteString("Give a realistic price range a private seller can expect in a sale today, ")
	b.WriteString("based on recent comparable listings and sales. ")
	b.WriteString("Do not quote MSRP, sticker price, dealer invoice, or any new-vehicle pricing. ")
	b.WriteString("Do not quote trade-in or auction values.\n\n")
	b.WriteString("End your answer with a fenced json code block of the form ")
	b.WriteString("{\"low\": <number>, \"high\": <number>} containing only the private-party range.")

	return b.String()
}
