// Package domain contains the core data model for the portfolio tracker:
// positions, transactions, price history and the derived aggregate types.
// The domain layer is pure - no infrastructure dependencies.
package domain

import "math"

// Sector is the fixed classification tag attached to every position.
type Sector string

// Known sectors. "other" is the catch-all for anything unclassified.
const (
	SectorTechnology    Sector = "technology"
	SectorHealthcare    Sector = "healthcare"
	SectorFinance       Sector = "finance"
	SectorEnergy        Sector = "energy"
	SectorConsumer      Sector = "consumer"
	SectorIndustrial    Sector = "industrial"
	SectorRealEstate    Sector = "realestate"
	SectorCommunication Sector = "communication"
	SectorMaterials     Sector = "materials"
	SectorUtilities     Sector = "utilities"
	SectorOther         Sector = "other"
)

// Sectors lists every valid sector tag.
var Sectors = []Sector{
	SectorTechnology,
	SectorHealthcare,
	SectorFinance,
	SectorEnergy,
	SectorConsumer,
	SectorIndustrial,
	SectorRealEstate,
	SectorCommunication,
	SectorMaterials,
	SectorUtilities,
	SectorOther,
}

// IsValidSector reports whether s is one of the known sector tags.
func IsValidSector(s string) bool {
	for _, sector := range Sectors {
		if string(sector) == s {
			return true
		}
	}
	return false
}

// Currencies lists the supported currency tags. The tag is informational
// only - no conversion is performed anywhere in the system.
var Currencies = []string{"USD", "EUR", "CZK", "GBP"}

// IsValidCurrency reports whether c is one of the supported currency tags.
func IsValidCurrency(c string) bool {
	for _, currency := range Currencies {
		if currency == c {
			return true
		}
	}
	return false
}

// DateFormat is the calendar-day format used throughout price history
// and transactions.
const DateFormat = "2006-01-02"

// PricePoint is a single closing price on a calendar day. At most one
// point exists per date within a history.
type PricePoint struct {
	Date  string  `json:"date" msgpack:"date"`
	Price float64 `json:"price" msgpack:"price"`
}

// TransactionType distinguishes buys from sells.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// Transaction is one buy or sell applied to a position. Transactions are
// immutable once appended - the log is append-only.
type Transaction struct {
	ID     string          `json:"id" msgpack:"id"`
	Type   TransactionType `json:"type" msgpack:"type"`
	Date   string          `json:"date" msgpack:"date"`
	Shares float64         `json:"shares" msgpack:"shares"`
	Price  float64         `json:"price" msgpack:"price"`
}

// Position is a single tracked holding.
//
// Shares and AvgPrice are derived from the transaction log and recomputed
// after every append - they are never edited independently once the log is
// non-empty. IsRealData marks positions whose prices come from the quote
// gateway; those are frozen from simulated ticking.
type Position struct {
	ID            string        `json:"id"`
	Ticker        string        `json:"ticker"`
	Name          string        `json:"name"`
	Sector        Sector        `json:"sector"`
	Currency      string        `json:"currency"`
	Shares        float64       `json:"shares"`
	AvgPrice      float64       `json:"avgPrice"`
	CurrentPrice  float64       `json:"currentPrice"`
	OpenPrice     float64       `json:"openPrice"`
	PreviousClose float64       `json:"previousClose"`
	PriceHistory  []PricePoint  `json:"priceHistory"`
	Transactions  []Transaction `json:"transactions"`
	DateAdded     string        `json:"dateAdded"`
	IsRealData    bool          `json:"isRealData"`
}

// Value is the current market value of the holding.
func (p *Position) Value() float64 { return p.Shares * p.CurrentPrice }

// Invested is the capital tied up at average cost.
func (p *Position) Invested() float64 { return p.Shares * p.AvgPrice }

// Profit is the unrealized gain over the average cost basis.
func (p *Position) Profit() float64 { return p.Value() - p.Invested() }

// ProfitPercent is Profit relative to Invested, 0 when nothing is invested.
func (p *Position) ProfitPercent() float64 {
	invested := p.Invested()
	if invested == 0 {
		return 0
	}
	return p.Profit() / invested * 100
}

// DayChange is the value change since the open reference price.
func (p *Position) DayChange() float64 {
	return p.Shares * (p.CurrentPrice - p.OpenPrice)
}

// RecomputeFromTransactions rederives Shares and AvgPrice from the
// transaction log:
//
//	shares   = max(0, sum(buy shares) - sum(sell shares))
//	avgPrice = sum(buy shares * buy price) / sum(buy shares)
//
// Sells reduce the share count but never move the average cost basis.
// When no buys exist AvgPrice is left unchanged.
func (p *Position) RecomputeFromTransactions() {
	var bought, sold, costBasis float64
	for _, tx := range p.Transactions {
		switch tx.Type {
		case TransactionBuy:
			bought += tx.Shares
			costBasis += tx.Shares * tx.Price
		case TransactionSell:
			sold += tx.Shares
		}
	}

	p.Shares = math.Max(0, bought-sold)
	if bought > 0 {
		p.AvgPrice = costBasis / bought
	}
}

// Clone returns a deep copy of the position. History and transaction
// slices are copied so callers can hold the result across mutations.
func (p *Position) Clone() Position {
	out := *p
	if p.PriceHistory != nil {
		out.PriceHistory = make([]PricePoint, len(p.PriceHistory))
		copy(out.PriceHistory, p.PriceHistory)
	}
	if p.Transactions != nil {
		out.Transactions = make([]Transaction, len(p.Transactions))
		copy(out.Transactions, p.Transactions)
	}
	return out
}

// PortfolioStats is the derived portfolio-level aggregate. It is
// recomputed on every read and never persisted.
type PortfolioStats struct {
	TotalValue         float64 `json:"totalValue"`
	TotalInvested      float64 `json:"totalInvested"`
	TotalProfit        float64 `json:"totalProfit"`
	TotalProfitPercent float64 `json:"totalProfitPercent"`
	DayChange          float64 `json:"dayChange"`
	DayChangePercent   float64 `json:"dayChangePercent"`
}

// SectorValue is one slice of the sector allocation breakdown.
type SectorValue struct {
	Sector Sector  `json:"sector"`
	Value  float64 `json:"value"`
}

// HistoryPoint is one row of the time-aligned portfolio history:
// portfolio value, invested capital and the normalized benchmark level
// on the same history index.
type HistoryPoint struct {
	Date     string  `json:"date"`
	Value    float64 `json:"value"`
	Invested float64 `json:"invested"`
	SP500    float64 `json:"sp500"`
}

// Quote is a live market snapshot for a ticker as returned by the quote
// gateway.
type Quote struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	CurrentPrice  float64 `json:"currentPrice"`
	OpenPrice     float64 `json:"openPrice"`
	PreviousClose float64 `json:"previousClose"`
	Currency      string  `json:"currency"`
}

// State is the full persistable ledger snapshot.
type State struct {
	Positions []Position   `json:"positions"`
	Benchmark []PricePoint `json:"benchmark"`
}

// Round2 rounds a value to two decimal places. All stored prices and all
// reported aggregates use this precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
