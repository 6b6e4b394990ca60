// Package simulator generates synthetic price series for positions that
// have no live market feed, plus the benchmark index series.
//
// Two distinct scales exist on purpose: ticks are sub-daily heartbeats
// with tight bounds, history backfills move a full day per step.
package simulator

import (
	"math/rand"
	"time"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

const (
	// Tick-scale random walk, roughly bounded to +-0.3% per tick.
	tickDrift      = 0.00005
	tickVolatility = 0.0015

	// Day-scale random walk, roughly bounded to +-1.6% per day.
	dayDrift      = 0.0003
	dayVolatility = 0.008

	// priceFloor keeps simulated prices from collapsing to zero.
	priceFloor = 0.01

	// startBand seeds generated histories within +-8% of the anchor price.
	startBand = 0.08

	// benchmarkStartLevel is the nominal index level the benchmark walk
	// starts from. The aggregator normalizes it before display, so the
	// absolute level is arbitrary.
	benchmarkStartLevel = 5000.0
)

// Simulator produces random-walk price paths. The random source is
// injected so tests can run with a seeded deterministic generator.
//
// A Simulator is not safe for concurrent use; the ledger serializes all
// calls behind its own mutex.
type Simulator struct {
	rng *rand.Rand
	now func() time.Time
}

// New creates a simulator backed by rng. Passing nil uses a time-seeded
// source, which is what production wiring does.
func New(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng, now: time.Now}
}

// Tick applies one tick-scale random-walk step to price. The result is
// always at least the price floor, regardless of the random draw.
func (s *Simulator) Tick(price float64) float64 {
	change := tickDrift + tickVolatility*(s.rng.Float64()*2-1)
	next := price * (1 + change)
	if next < priceFloor {
		return priceFloor
	}
	return next
}

// History generates days+1 daily price points ending today, anchored so
// the final point equals currentPrice exactly regardless of the random
// path taken to get there.
func (s *Simulator) History(currentPrice float64, days int) []domain.PricePoint {
	history := make([]domain.PricePoint, 0, days+1)

	// Seed the walk within +-8% of the anchor price.
	price := currentPrice * (1 - startBand + s.rng.Float64()*2*startBand)

	today := s.now()
	for i := days; i >= 0; i-- {
		change := dayDrift + dayVolatility*(s.rng.Float64()*2-1)
		price = price * (1 + change)
		if price < priceFloor {
			price = priceFloor
		}

		history = append(history, domain.PricePoint{
			Date:  today.AddDate(0, 0, -i).Format(domain.DateFormat),
			Price: domain.Round2(price),
		})
	}

	// Anchoring invariant: simulated history always terminates at the
	// known current price.
	history[len(history)-1].Price = currentPrice

	return history
}

// BenchmarkHistory generates the independent benchmark index series using
// the same day-scale walk from a fixed nominal starting level.
func (s *Simulator) BenchmarkHistory(days int) []domain.PricePoint {
	history := make([]domain.PricePoint, 0, days+1)

	price := benchmarkStartLevel
	today := s.now()
	for i := days; i >= 0; i-- {
		change := dayDrift + dayVolatility*(s.rng.Float64()*2-1)
		price = price * (1 + change)

		history = append(history, domain.PricePoint{
			Date:  today.AddDate(0, 0, -i).Format(domain.DateFormat),
			Price: domain.Round2(price),
		})
	}

	return history
}
