package analytics

import (
	talib "github.com/markcheno/go-talib"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

const (
	smaPeriod = 20
	emaPeriod = 20
	rsiPeriod = 14
)

// IndicatorSeries carries technical indicator values aligned with the
// position's price history dates. Warmup entries (before an indicator
// has enough data) are zero; series that cannot be computed at all are
// omitted.
type IndicatorSeries struct {
	Dates []string  `json:"dates"`
	Close []float64 `json:"close"`
	SMA20 []float64 `json:"sma20,omitempty"`
	EMA20 []float64 `json:"ema20,omitempty"`
	RSI14 []float64 `json:"rsi14,omitempty"`
}

// ComputeIndicators derives SMA, EMA and RSI series from a position's
// price history. Short histories simply drop the indicators that need
// more data than is available.
func ComputeIndicators(history []domain.PricePoint) IndicatorSeries {
	series := IndicatorSeries{
		Dates: make([]string, len(history)),
		Close: make([]float64, len(history)),
	}
	for i, point := range history {
		series.Dates[i] = point.Date
		series.Close[i] = point.Price
	}

	if len(history) > smaPeriod {
		series.SMA20 = round2Slice(talib.Sma(series.Close, smaPeriod))
	}
	if len(history) > emaPeriod {
		series.EMA20 = round2Slice(talib.Ema(series.Close, emaPeriod))
	}
	if len(history) > rsiPeriod {
		series.RSI14 = round2Slice(talib.Rsi(series.Close, rsiPeriod))
	}

	return series
}

func round2Slice(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = domain.Round2(v)
	}
	return out
}
