package ledger

import (
	"github.com/google/uuid"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

// demoSeed is the fixed starter portfolio shown before the user has
// tracked anything of their own.
type demoSeed struct {
	ticker       string
	name         string
	shares       float64
	avgPrice     float64
	currentPrice float64
	openPrice    float64
	sector       domain.Sector
	dateAdded    string
}

var demoSeeds = []demoSeed{
	{"AAPL", "Apple Inc.", 15, 178.50, 195.20, 194.80, domain.SectorTechnology, "2024-01-15"},
	{"MSFT", "Microsoft Corp.", 10, 380.00, 425.50, 424.90, domain.SectorTechnology, "2024-02-01"},
	{"NVDA", "NVIDIA Corp.", 8, 480.00, 875.30, 873.50, domain.SectorTechnology, "2024-03-10"},
	{"JNJ", "Johnson & Johnson", 20, 155.00, 162.40, 162.10, domain.SectorHealthcare, "2024-01-20"},
	{"JPM", "JPMorgan Chase", 12, 170.00, 198.75, 198.20, domain.SectorFinance, "2024-04-05"},
	{"XOM", "ExxonMobil", 25, 98.00, 108.50, 108.30, domain.SectorEnergy, "2024-02-15"},
}

// seedDemoLocked replaces the position set with the demo portfolio and
// regenerates the benchmark series. Each demo position gets a simulated
// history anchored at its current price and an initial buy transaction
// matching its stated holding. Caller holds the lock.
func (s *Service) seedDemoLocked() {
	positions := make([]domain.Position, 0, len(demoSeeds))
	for _, seed := range demoSeeds {
		p := domain.Position{
			ID:            uuid.NewString(),
			Ticker:        seed.ticker,
			Name:          seed.name,
			Sector:        seed.sector,
			Currency:      "USD",
			CurrentPrice:  seed.currentPrice,
			OpenPrice:     seed.openPrice,
			PreviousClose: seed.openPrice,
			DateAdded:     seed.dateAdded,
			IsRealData:    false,
			PriceHistory:  s.sim.History(seed.currentPrice, s.historyDays),
			Transactions: []domain.Transaction{{
				ID:     uuid.NewString(),
				Type:   domain.TransactionBuy,
				Date:   seed.dateAdded,
				Shares: seed.shares,
				Price:  seed.avgPrice,
			}},
		}
		p.RecomputeFromTransactions()
		positions = append(positions, p)
	}

	s.positions = positions
	s.benchmark = s.sim.BenchmarkHistory(s.historyDays)
}
