// Package ledger owns the set of tracked positions and applies every
// mutation: adds, updates, deletes, transaction appends, simulated ticks
// and real-quote refreshes.
//
// All state lives in memory behind one mutex - the tick job, the refresh
// job and HTTP handlers never observe a position set mid-mutation. After
// each mutation a best-effort snapshot goes to the store; persistence
// failures are logged and swallowed, they never roll back the in-memory
// change.
package ledger

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PatrikGFX/portfolio-tracker/internal/aggregator"
	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
	"github.com/PatrikGFX/portfolio-tracker/internal/simulator"
)

// ErrRefreshInFlight is returned when a real-quote refresh is requested
// while one is still running. The request is rejected, not queued -
// interleaved overwrites of the same positions are worse than a skipped
// refresh.
var ErrRefreshInFlight = errors.New("ledger: refresh already in progress")

// defaultHistoryDays is the length of generated demo/fallback histories.
const defaultHistoryDays = 90

// Config holds the ledger dependencies.
type Config struct {
	Simulator   *simulator.Simulator
	Quotes      domain.QuoteClient   // may be nil (offline mode, simulated only)
	Store       domain.SnapshotStore // may be nil (no persistence, used in tests)
	HistoryDays int
	Log         zerolog.Logger
}

// Service is the position ledger.
type Service struct {
	mu        sync.Mutex
	positions []domain.Position
	benchmark []domain.PricePoint
	loaded    bool

	refreshing atomic.Bool

	sim         *simulator.Simulator
	quotes      domain.QuoteClient
	store       domain.SnapshotStore
	historyDays int
	log         zerolog.Logger
	now         func() time.Time
}

// New creates a ledger service. Call Bootstrap before serving reads.
func New(cfg Config) *Service {
	days := cfg.HistoryDays
	if days <= 0 {
		days = defaultHistoryDays
	}
	return &Service{
		sim:         cfg.Simulator,
		quotes:      cfg.Quotes,
		store:       cfg.Store,
		historyDays: days,
		log:         cfg.Log.With().Str("component", "ledger").Logger(),
		now:         time.Now,
	}
}

// Bootstrap loads the persisted snapshot, falling back to the demo seed
// when nothing usable is stored. A corrupt snapshot is discarded, never
// fatal.
func (s *Service) Bootstrap() {
	var state *domain.State
	if s.store != nil {
		loaded, err := s.store.Load()
		if err != nil {
			s.log.Warn().Err(err).Msg("Discarding unusable persisted state, reseeding demo data")
		} else {
			state = loaded
		}
	}

	s.mu.Lock()
	seeded := false
	if state != nil && len(state.Positions) > 0 {
		s.positions = state.Positions
		s.benchmark = state.Benchmark
		if len(s.benchmark) == 0 {
			// Older snapshots predate the benchmark series.
			s.benchmark = s.sim.BenchmarkHistory(s.historyDays)
		}
		s.log.Info().Int("positions", len(s.positions)).Msg("Loaded persisted portfolio")
	} else {
		s.seedDemoLocked()
		seeded = true
		s.log.Info().Int("positions", len(s.positions)).Msg("Seeded demo portfolio")
	}
	s.loaded = true
	snapshot := s.stateLocked()
	s.mu.Unlock()

	if seeded {
		s.save(snapshot)
	}
}

// AddPosition creates a position from input. It attempts one quote
// gateway lookup for the ticker: on success the position takes the
// gateway's name, prices and history and is flagged as real data; on any
// failure it falls back to the input values and a simulated history. The
// returned bool reports whether real data was used.
//
// An initial synthetic buy transaction matching the input shares and
// average price is always recorded, so the derived share count and cost
// basis come out of the transaction log like everywhere else.
func (s *Service) AddPosition(in domain.AddPositionInput) (domain.Position, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))

	p := domain.Position{
		ID:       uuid.NewString(),
		Ticker:   ticker,
		Name:     in.Name,
		Sector:   domain.Sector(in.Sector),
		Currency: in.Currency,
	}

	// Gateway lookup happens before taking the lock - network I/O must
	// not stall ticks or readers.
	isReal := false
	var realHistory []domain.PricePoint
	if s.quotes != nil {
		quote, err := s.quotes.Quote(ticker)
		if err != nil {
			s.log.Info().Err(err).Str("ticker", ticker).Msg("Quote lookup failed, falling back to simulated data")
		} else {
			isReal = true
			if quote.Name != "" {
				p.Name = quote.Name
			}
			if domain.IsValidCurrency(quote.Currency) {
				p.Currency = quote.Currency
			}
			p.CurrentPrice = quote.CurrentPrice
			p.OpenPrice = quote.OpenPrice
			p.PreviousClose = quote.PreviousClose

			realHistory, err = s.quotes.History(ticker)
			if err != nil {
				s.log.Info().Err(err).Str("ticker", ticker).Msg("History lookup failed, generating simulated history")
				realHistory = nil
			}
		}
	}

	s.mu.Lock()
	today := s.today()
	p.DateAdded = today
	p.IsRealData = isReal

	if !isReal {
		p.CurrentPrice = domain.Round2(in.CurrentPrice)
		p.OpenPrice = p.CurrentPrice
		p.PreviousClose = p.CurrentPrice
	}

	if len(realHistory) > 0 {
		p.PriceHistory = realHistory
	} else {
		p.PriceHistory = s.sim.History(p.CurrentPrice, s.historyDays)
	}
	// History always terminates at the known current price.
	p.PriceHistory = upsertPoint(p.PriceHistory, today, p.CurrentPrice)

	p.Transactions = []domain.Transaction{{
		ID:     uuid.NewString(),
		Type:   domain.TransactionBuy,
		Date:   today,
		Shares: in.Shares,
		Price:  in.AvgPrice,
	}}
	p.RecomputeFromTransactions()

	s.positions = append(s.positions, p)
	created := p.Clone()
	snapshot := s.stateLocked()
	s.mu.Unlock()

	s.save(snapshot)

	s.log.Info().
		Str("ticker", ticker).
		Bool("real_data", isReal).
		Msg("Position added")

	return created, isReal
}

// UpdatePosition merges the validated partial update into the matching
// position. An unknown id is a no-op, not an error. Share and price
// fields are skipped once a transaction log exists - those values are
// derived, not editable.
func (s *Service) UpdatePosition(id string, upd domain.PositionUpdate) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	p := &s.positions[idx]
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Sector != nil {
		p.Sector = domain.Sector(*upd.Sector)
	}
	if upd.Currency != nil {
		p.Currency = *upd.Currency
	}

	hasTransactions := len(p.Transactions) > 0
	if upd.Shares != nil && !hasTransactions {
		p.Shares = *upd.Shares
	}
	if upd.AvgPrice != nil && !hasTransactions {
		p.AvgPrice = *upd.AvgPrice
	}
	if upd.CurrentPrice != nil {
		p.CurrentPrice = domain.Round2(*upd.CurrentPrice)
		p.PriceHistory = upsertPoint(p.PriceHistory, s.today(), p.CurrentPrice)
	}

	snapshot := s.stateLocked()
	s.mu.Unlock()

	s.save(snapshot)
}

// DeletePosition removes the position. Unknown id is a no-op.
func (s *Service) DeletePosition(id string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.positions = append(s.positions[:idx], s.positions[idx+1:]...)
	snapshot := s.stateLocked()
	s.mu.Unlock()

	s.save(snapshot)

	s.log.Info().Str("id", id).Msg("Position deleted")
}

// AddTransaction assigns an id, appends the transaction to the matching
// position's log and rederives the share count and average cost basis.
// The returned bool is false when the id is unknown (no-op).
func (s *Service) AddTransaction(id string, in domain.TransactionInput) (domain.Position, bool) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Position{}, false
	}

	date := in.Date
	if date == "" {
		date = s.today()
	}

	p := &s.positions[idx]
	p.Transactions = append(p.Transactions, domain.Transaction{
		ID:     uuid.NewString(),
		Type:   domain.TransactionType(in.Type),
		Date:   date,
		Shares: in.Shares,
		Price:  in.Price,
	})
	p.RecomputeFromTransactions()

	updated := p.Clone()
	snapshot := s.stateLocked()
	s.mu.Unlock()

	s.save(snapshot)

	return updated, true
}

// Tick draws one simulated price step for every non-real position and
// upserts today's history point - a second tick on the same calendar day
// overwrites, it never appends a duplicate date. Real-data positions are
// untouched.
func (s *Service) Tick() {
	s.mu.Lock()
	today := s.today()
	changed := false
	for i := range s.positions {
		p := &s.positions[i]
		if p.IsRealData {
			continue
		}
		p.CurrentPrice = domain.Round2(s.sim.Tick(p.CurrentPrice))
		p.PriceHistory = upsertPoint(p.PriceHistory, today, p.CurrentPrice)
		changed = true
	}

	var snapshot *domain.State
	if changed {
		snapshot = s.stateLocked()
	}
	s.mu.Unlock()

	if changed {
		s.save(snapshot)
	}
}

// refreshResult carries one position's fetched data out of the fan-out.
type refreshResult struct {
	quote   *domain.Quote
	history []domain.PricePoint
	err     error
}

// RefreshReal re-queries the gateway for every real-data position. The
// per-ticker lookups fan out concurrently; results are applied in one
// pass under the lock, so readers never see a half-applied refresh. A
// position whose lookup fails keeps its prior values (partial-success
// commit). A refresh already in flight rejects the call with
// ErrRefreshInFlight.
func (s *Service) RefreshReal() error {
	if !s.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer s.refreshing.Store(false)

	if s.quotes == nil {
		return nil
	}

	type target struct {
		id     string
		ticker string
	}

	s.mu.Lock()
	targets := make([]target, 0)
	for i := range s.positions {
		if s.positions[i].IsRealData {
			targets = append(targets, target{id: s.positions[i].ID, ticker: s.positions[i].Ticker})
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	results := make([]refreshResult, len(targets))
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			quote, err := s.quotes.Quote(ticker)
			if err != nil {
				results[i].err = err
				return
			}
			history, err := s.quotes.History(ticker)
			if err != nil {
				// Prices still apply; the stale history is kept.
				history = nil
			}
			results[i] = refreshResult{quote: quote, history: history}
		}(i, targets[i].ticker)
	}
	wg.Wait()

	s.mu.Lock()
	today := s.today()
	applied := 0
	for i, t := range targets {
		res := results[i]
		if res.err != nil || res.quote == nil {
			s.log.Debug().Err(res.err).Str("ticker", t.ticker).Msg("Refresh lookup failed, keeping prior values")
			continue
		}
		idx := s.indexLocked(t.id)
		if idx < 0 {
			// Deleted while the refresh was in flight.
			continue
		}

		p := &s.positions[idx]
		p.CurrentPrice = res.quote.CurrentPrice
		p.OpenPrice = res.quote.OpenPrice
		p.PreviousClose = res.quote.PreviousClose
		if res.quote.Name != "" {
			p.Name = res.quote.Name
		}
		if len(res.history) > 0 {
			// Full replace - a stale local history never shadows a
			// fresher fetched one.
			p.PriceHistory = res.history
		}
		p.PriceHistory = upsertPoint(p.PriceHistory, today, p.CurrentPrice)
		applied++
	}
	snapshot := s.stateLocked()
	s.mu.Unlock()

	s.save(snapshot)

	s.log.Info().
		Int("refreshed", applied).
		Int("targets", len(targets)).
		Msg("Real-quote refresh completed")

	return nil
}

// ResetToDemo discards all positions, reseeds the fixed demo set and
// regenerates the benchmark history.
func (s *Service) ResetToDemo() {
	s.mu.Lock()
	s.seedDemoLocked()
	snapshot := s.stateLocked()
	s.mu.Unlock()

	s.save(snapshot)

	s.log.Info().Msg("Portfolio reset to demo data")
}

// Positions returns deep copies of all positions. The slice is never
// nil.
func (s *Service) Positions() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionsLocked()
}

// Position returns a deep copy of the position with the given id.
func (s *Service) Position(id string) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Position{}, false
	}
	return s.positions[idx].Clone(), true
}

// Benchmark returns a copy of the benchmark history.
func (s *Service) Benchmark() []domain.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PricePoint, len(s.benchmark))
	copy(out, s.benchmark)
	return out
}

// Stats recomputes the portfolio aggregate over the current positions.
func (s *Service) Stats() domain.PortfolioStats {
	return aggregator.Stats(s.Positions())
}

// Sectors recomputes the sector allocation breakdown.
func (s *Service) Sectors() []domain.SectorValue {
	return aggregator.SectorBreakdown(s.Positions())
}

// History recomputes the time-aligned portfolio history. Positions and
// benchmark are captured under one lock so the two series always belong
// to the same state.
func (s *Service) History() []domain.HistoryPoint {
	s.mu.Lock()
	positions := s.positionsLocked()
	benchmark := make([]domain.PricePoint, len(s.benchmark))
	copy(benchmark, s.benchmark)
	s.mu.Unlock()

	return aggregator.PortfolioHistory(positions, benchmark)
}

// Loaded reports whether Bootstrap has completed.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Refreshing reports whether a real-quote refresh is in flight.
func (s *Service) Refreshing() bool {
	return s.refreshing.Load()
}

// HasRealPositions reports whether any position is fed by the gateway.
func (s *Service) HasRealPositions() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.positions {
		if s.positions[i].IsRealData {
			return true
		}
	}
	return false
}

// indexLocked finds a position by id. Caller holds the lock.
func (s *Service) indexLocked(id string) int {
	for i := range s.positions {
		if s.positions[i].ID == id {
			return i
		}
	}
	return -1
}

// positionsLocked deep-copies the position slice. Caller holds the lock.
func (s *Service) positionsLocked() []domain.Position {
	out := make([]domain.Position, 0, len(s.positions))
	for i := range s.positions {
		out = append(out, s.positions[i].Clone())
	}
	return out
}

// stateLocked builds a deep-copied snapshot for persistence. Caller
// holds the lock.
func (s *Service) stateLocked() *domain.State {
	benchmark := make([]domain.PricePoint, len(s.benchmark))
	copy(benchmark, s.benchmark)
	return &domain.State{
		Positions: s.positionsLocked(),
		Benchmark: benchmark,
	}
}

// save writes the snapshot best-effort. Failures are logged and
// swallowed - persistence never blocks or rolls back a mutation.
func (s *Service) save(state *domain.State) {
	if s.store == nil || state == nil {
		return
	}
	if err := s.store.Save(state); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist snapshot")
	}
}

func (s *Service) today() string {
	return s.now().Format(domain.DateFormat)
}

// upsertPoint sets the price for date in history: overwrite when the
// last point already carries that date, append otherwise. History stays
// one point per calendar day.
func upsertPoint(history []domain.PricePoint, date string, price float64) []domain.PricePoint {
	if n := len(history); n > 0 && history[n-1].Date == date {
		history[n-1].Price = price
		return history
	}
	return append(history, domain.PricePoint{Date: date, Price: price})
}
