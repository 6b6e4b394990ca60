package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

func TestComputePerformance_TooFewSamples(t *testing.T) {
	perf := ComputePerformance([]domain.HistoryPoint{{Date: "2025-06-01", Value: 100}})

	assert.Equal(t, 1, perf.Samples)
	assert.Zero(t, perf.TotalReturnPercent)
	assert.Zero(t, perf.DailyVolatilityPercent)
}

func TestComputePerformance_Returns(t *testing.T) {
	history := []domain.HistoryPoint{
		{Date: "2025-06-01", Value: 100, SP500: 100},
		{Date: "2025-06-02", Value: 105, SP500: 102},
		{Date: "2025-06-03", Value: 110, SP500: 101},
	}

	perf := ComputePerformance(history)

	assert.Equal(t, 3, perf.Samples)
	assert.Equal(t, 10.0, perf.TotalReturnPercent)
	assert.Equal(t, 1.0, perf.BenchmarkReturnPercent)
	assert.NotZero(t, perf.DailyVolatilityPercent)
	assert.Greater(t, perf.AnnualizedVolatilityPercent, perf.DailyVolatilityPercent)
}

func TestComputePerformance_FlatSeriesHasZeroVolatility(t *testing.T) {
	history := []domain.HistoryPoint{
		{Date: "2025-06-01", Value: 100, SP500: 100},
		{Date: "2025-06-02", Value: 100, SP500: 100},
		{Date: "2025-06-03", Value: 100, SP500: 100},
	}

	perf := ComputePerformance(history)

	assert.Zero(t, perf.TotalReturnPercent)
	assert.Zero(t, perf.DailyVolatilityPercent)
	// Correlation of two constant series is undefined; reported as zero.
	assert.Zero(t, perf.BenchmarkCorrelation)
}

func TestComputePerformance_PerfectCorrelation(t *testing.T) {
	history := make([]domain.HistoryPoint, 0, 10)
	value := 100.0
	for i := 0; i < 10; i++ {
		history = append(history, domain.HistoryPoint{
			Date:  fmt.Sprintf("2025-06-%02d", i+1),
			Value: value,
			SP500: value * 2,
		})
		if i%2 == 0 {
			value *= 1.01
		} else {
			value *= 0.99
		}
	}

	perf := ComputePerformance(history)
	assert.InDelta(t, 1.0, perf.BenchmarkCorrelation, 0.001)
}

func closeSeries(n int) []domain.PricePoint {
	points := make([]domain.PricePoint, n)
	price := 100.0
	for i := range points {
		price += 1
		points[i] = domain.PricePoint{
			Date:  fmt.Sprintf("2025-%02d-%02d", 1+i/28, 1+i%28),
			Price: price,
		}
	}
	return points
}

func TestComputeIndicators_AlignsWithHistory(t *testing.T) {
	history := closeSeries(60)

	series := ComputeIndicators(history)

	require.Len(t, series.Dates, 60)
	require.Len(t, series.Close, 60)
	require.Len(t, series.SMA20, 60)
	require.Len(t, series.EMA20, 60)
	require.Len(t, series.RSI14, 60)

	// Monotonic rise of 1/day: SMA lags the close by half the window.
	assert.InDelta(t, series.Close[59]-9.5, series.SMA20[59], 0.01)
	// RSI saturates at 100 for a series that only rises.
	assert.InDelta(t, 100.0, series.RSI14[59], 0.01)
}

func TestComputeIndicators_ShortHistoryDropsIndicators(t *testing.T) {
	series := ComputeIndicators(closeSeries(10))

	assert.Len(t, series.Close, 10)
	assert.Empty(t, series.SMA20)
	assert.Empty(t, series.EMA20)
	// 10 points cannot seed a 14-period RSI either.
	assert.Empty(t, series.RSI14)
}

func TestComputeIndicators_EmptyHistory(t *testing.T) {
	series := ComputeIndicators(nil)

	assert.Empty(t, series.Dates)
	assert.Empty(t, series.Close)
	assert.Empty(t, series.SMA20)
}
