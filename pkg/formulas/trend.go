package formulas

import (
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// CalculateSMA calculates the Simple Moving Average over the last `length`
// values. Returns nil if there is insufficient data.
func CalculateSMA(values []float64, length int) *float64 {
	if length <= 0 || len(values) < length {
		return nil
	}

	sma := talib.Sma(values, length)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// CalculateEMA calculates the Exponential Moving Average.
//
//	EMA_today = (Value_today x multiplier) + (EMA_yesterday x (1 - multiplier))
//	where multiplier = 2 / (length + 1)
//
// Falls back to a simple mean when there is not enough data for a proper
// EMA. Returns nil only for an empty series.
func CalculateEMA(values []float64, length int) *float64 {
	if len(values) == 0 {
		return nil
	}

	if len(values) < length {
		mean := Mean(values)
		return &mean
	}

	ema := talib.Ema(values, length)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	mean := Mean(values[len(values)-length:])
	return &mean
}

// CalculateTrendSlope fits a least-squares line through the series and
// returns the slope normalized by the series mean, i.e. the relative change
// per observation. Positive means the series is rising. Returns nil when
// fewer than three points are available or the mean is zero.
func CalculateTrendSlope(values []float64) *float64 {
	if len(values) < 3 {
		return nil
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}

	_, beta := stat.LinearRegression(xs, values, nil, false)
	if isNaN(beta) {
		return nil
	}

	mean := Mean(values)
	if mean == 0 {
		return nil
	}

	relative := beta / mean
	return &relative
}
