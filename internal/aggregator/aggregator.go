// Package aggregator derives portfolio-level statistics from the current
// position set. Everything here is a pure function recomputed on every
// read - no cached mutable aggregates, so there is nothing to go stale.
// Cost is linear in position count, which is fine at personal-portfolio
// scale.
package aggregator

import (
	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

// Stats computes the portfolio aggregate over positions. An empty
// position set yields all-zero stats; zero denominators yield zero
// percent fields, never NaN or Inf.
func Stats(positions []domain.Position) domain.PortfolioStats {
	var stats domain.PortfolioStats
	var openValue float64

	for i := range positions {
		p := &positions[i]
		stats.TotalValue += p.Value()
		stats.TotalInvested += p.Invested()
		stats.TotalProfit += p.Profit()
		stats.DayChange += p.DayChange()
		openValue += p.Shares * p.OpenPrice
	}

	if stats.TotalInvested > 0 {
		stats.TotalProfitPercent = stats.TotalProfit / stats.TotalInvested * 100
	}
	if openValue > 0 {
		stats.DayChangePercent = stats.DayChange / openValue * 100
	}

	return stats
}

// SectorBreakdown groups position values by sector tag. One entry per
// sector present, in no particular order - the UI sorts by value.
func SectorBreakdown(positions []domain.Position) []domain.SectorValue {
	totals := make(map[domain.Sector]float64)
	order := make([]domain.Sector, 0)

	for i := range positions {
		p := &positions[i]
		if _, seen := totals[p.Sector]; !seen {
			order = append(order, p.Sector)
		}
		totals[p.Sector] += p.Value()
	}

	breakdown := make([]domain.SectorValue, 0, len(order))
	for _, sector := range order {
		breakdown = append(breakdown, domain.SectorValue{
			Sector: sector,
			Value:  domain.Round2(totals[sector]),
		})
	}

	return breakdown
}

// PortfolioHistory builds the time-aligned multi-series history used for
// charting: portfolio value, invested capital and the normalized
// benchmark.
//
// Series are aligned by index, not date. Positions added at different
// times have histories of different lengths, so the window is truncated
// to the shortest history - comparisons always run over a common window,
// never padded. A position with an empty history collapses the window to
// zero and the result is empty.
//
// Invested applies the current average cost retroactively across the
// whole window; it is not a historical cost basis. The benchmark is
// scaled so its first point equals the portfolio value at the first
// common index, making it comparable in absolute currency terms.
func PortfolioHistory(positions []domain.Position, benchmark []domain.PricePoint) []domain.HistoryPoint {
	if len(positions) == 0 {
		return []domain.HistoryPoint{}
	}

	minLen := len(positions[0].PriceHistory)
	for i := range positions[1:] {
		if l := len(positions[i+1].PriceHistory); l < minLen {
			minLen = l
		}
	}
	if minLen == 0 {
		return []domain.HistoryPoint{}
	}

	// Benchmark scale factor: first benchmark point maps onto the
	// portfolio value at index 0.
	var valueAt0 float64
	for i := range positions {
		valueAt0 += positions[i].Shares * positions[i].PriceHistory[0].Price
	}

	history := make([]domain.HistoryPoint, 0, minLen)
	for i := 0; i < minLen; i++ {
		var value, invested float64
		for j := range positions {
			value += positions[j].Shares * positions[j].PriceHistory[i].Price
			invested += positions[j].Shares * positions[j].AvgPrice
		}

		var sp500 float64
		if i < len(benchmark) && benchmark[0].Price > 0 {
			sp500 = benchmark[i].Price / benchmark[0].Price * valueAt0
		}

		history = append(history, domain.HistoryPoint{
			Date:     positions[0].PriceHistory[i].Date,
			Value:    domain.Round2(value),
			Invested: domain.Round2(invested),
			SP500:    domain.Round2(sp500),
		})
	}

	return history
}
