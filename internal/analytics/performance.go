// Package analytics derives performance metrics and technical indicator
// series from portfolio and position history.
package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

// tradingDaysPerYear is the conventional annualization factor for daily
// return volatility.
const tradingDaysPerYear = 252

// Performance summarizes how the portfolio moved over the charted window
// relative to the benchmark.
type Performance struct {
	Samples                     int     `json:"samples"`
	TotalReturnPercent          float64 `json:"totalReturnPercent"`
	BenchmarkReturnPercent      float64 `json:"benchmarkReturnPercent"`
	DailyVolatilityPercent      float64 `json:"dailyVolatilityPercent"`
	AnnualizedVolatilityPercent float64 `json:"annualizedVolatilityPercent"`
	BenchmarkCorrelation        float64 `json:"benchmarkCorrelation"`
}

// ComputePerformance derives return, volatility and benchmark correlation
// from an aligned portfolio history. Fewer than two points yields a
// zero-valued result with Samples set accordingly.
func ComputePerformance(history []domain.HistoryPoint) Performance {
	perf := Performance{Samples: len(history)}
	if len(history) < 2 {
		return perf
	}

	first, last := history[0], history[len(history)-1]
	if first.Value > 0 {
		perf.TotalReturnPercent = domain.Round2((last.Value - first.Value) / first.Value * 100)
	}
	if first.SP500 > 0 {
		perf.BenchmarkReturnPercent = domain.Round2((last.SP500 - first.SP500) / first.SP500 * 100)
	}

	valueReturns := dailyReturns(history, func(p domain.HistoryPoint) float64 { return p.Value })
	benchReturns := dailyReturns(history, func(p domain.HistoryPoint) float64 { return p.SP500 })

	if len(valueReturns) >= 2 {
		daily := stat.StdDev(valueReturns, nil)
		perf.DailyVolatilityPercent = domain.Round2(daily * 100)
		perf.AnnualizedVolatilityPercent = domain.Round2(daily * math.Sqrt(tradingDaysPerYear) * 100)
	}

	if len(valueReturns) >= 2 && len(benchReturns) == len(valueReturns) {
		corr := stat.Correlation(valueReturns, benchReturns, nil)
		if !math.IsNaN(corr) {
			perf.BenchmarkCorrelation = domain.Round2(corr)
		}
	}

	return perf
}

// dailyReturns computes simple period-over-period returns for one series
// of the history. Zero-valued points are skipped to avoid division by
// zero on degenerate data.
func dailyReturns(history []domain.HistoryPoint, pick func(domain.HistoryPoint) float64) []float64 {
	returns := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := pick(history[i-1])
		cur := pick(history[i])
		if prev == 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}
	return returns
}
