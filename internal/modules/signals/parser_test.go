package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flipwise/appraiser/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantDemand domain.DemandLevel
		wantTrend  domain.PriceTrend
		wantDays   int
		wantFound  bool
	}{
		{
			name:       "all three axes",
			text:       "Demand is high for these and prices are rising. Expect it to sell in about 20 days.",
			wantDemand: domain.DemandHigh,
			wantTrend:  domain.TrendRising,
			wantDays:   20,
			wantFound:  true,
		},
		{
			name:       "moderate demand stable prices",
			text:       "There is moderate demand and values are holding steady.",
			wantDemand: domain.DemandModerate,
			wantTrend:  domain.TrendStable,
			wantFound:  true,
		},
		{
			name:       "low demand declining with day range",
			text:       "Low demand in this segment; prices have been dropping. Typically 30-45 days to sell.",
			wantDemand: domain.DemandLow,
			wantTrend:  domain.TrendDeclining,
			wantDays:   37,
			wantFound:  true,
		},
		{
			name:       "movement words beat stability words",
			text:       "Prices were stable last year but are now falling.",
			wantDemand: domain.DemandUnknown,
			wantTrend:  domain.TrendDeclining,
			wantFound:  true,
		},
		{
			name:       "nothing recognized",
			text:       "It depends on the vehicle.",
			wantDemand: domain.DemandUnknown,
			wantTrend:  domain.TrendUnknown,
			wantFound:  false,
		},
		{
			name:       "implausible day count ignored",
			text:       "Could take 900 days to find a buyer.",
			wantDemand: domain.DemandUnknown,
			wantTrend:  domain.TrendUnknown,
			wantFound:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Parse(tt.text)

			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantDemand, got.Demand)
			assert.Equal(t, tt.wantTrend, got.Trend)
			assert.Equal(t, tt.wantDays, got.DaysToSell)
		})
	}
}
