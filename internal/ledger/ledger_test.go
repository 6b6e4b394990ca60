package ledger

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
	"github.com/PatrikGFX/portfolio-tracker/internal/simulator"
)

// fakeQuotes is a scriptable QuoteClient for tests.
type fakeQuotes struct {
	mu        sync.Mutex
	quotes    map[string]*domain.Quote
	histories map[string][]domain.PricePoint
	errs      map[string]error
	entered   chan string   // receives the ticker when Quote is called, if set
	release   chan struct{} // Quote blocks until closed, if set
}

func (f *fakeQuotes) Quote(ticker string) (*domain.Quote, error) {
	if f.entered != nil {
		f.entered <- ticker
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[ticker]; ok {
		return nil, err
	}
	if quote, ok := f.quotes[ticker]; ok {
		q := *quote
		return &q, nil
	}
	return nil, errors.New("no such ticker")
}

func (f *fakeQuotes) History(ticker string) ([]domain.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if history, ok := f.histories[ticker]; ok {
		out := make([]domain.PricePoint, len(history))
		copy(out, history)
		return out, nil
	}
	return nil, errors.New("no history")
}

// memStore records every saved snapshot in memory.
type memStore struct {
	mu    sync.Mutex
	state *domain.State
	saves int
}

func (m *memStore) Load() (*domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *memStore) Save(state *domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.saves++
	return nil
}

func newTestService(quotes domain.QuoteClient, store domain.SnapshotStore) *Service {
	return New(Config{
		Simulator:   simulator.New(rand.New(rand.NewSource(1))),
		Quotes:      quotes,
		Store:       store,
		HistoryDays: 30,
		Log:         zerolog.Nop(),
	})
}

func validInput(ticker string) domain.AddPositionInput {
	return domain.AddPositionInput{
		Ticker:       ticker,
		Name:         ticker + " Corp",
		Shares:       10,
		AvgPrice:     100,
		CurrentPrice: 120,
		Sector:       "technology",
		Currency:     "USD",
	}
}

func TestBootstrap_SeedsDemoWhenStoreEmpty(t *testing.T) {
	store := &memStore{}
	svc := newTestService(nil, store)

	svc.Bootstrap()

	positions := svc.Positions()
	require.Len(t, positions, 6)
	assert.True(t, svc.Loaded())

	tickers := make([]string, 0, len(positions))
	for _, p := range positions {
		tickers = append(tickers, p.Ticker)
		assert.False(t, p.IsRealData)
		assert.Len(t, p.PriceHistory, 31)
		assert.Len(t, p.Transactions, 1)
		assert.Equal(t, p.CurrentPrice, p.PriceHistory[len(p.PriceHistory)-1].Price)
	}
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA", "JNJ", "JPM", "XOM"}, tickers)

	// Demo seed was persisted.
	assert.Equal(t, 1, store.saves)
	assert.Len(t, svc.Benchmark(), 31)
}

func TestBootstrap_LoadsPersistedState(t *testing.T) {
	store := &memStore{state: &domain.State{
		Positions: []domain.Position{{
			ID:           "p1",
			Ticker:       "AAPL",
			Name:         "Apple Inc.",
			Sector:       domain.SectorTechnology,
			Currency:     "USD",
			Shares:       5,
			AvgPrice:     150,
			CurrentPrice: 180,
			PriceHistory: []domain.PricePoint{{Date: "2025-06-01", Price: 180}},
		}},
		Benchmark: []domain.PricePoint{{Date: "2025-06-01", Price: 5000}},
	}}
	svc := newTestService(nil, store)

	svc.Bootstrap()

	positions := svc.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Ticker)
	assert.Equal(t, 5.0, positions[0].Shares)
}

func TestAddPosition_FallsBackToSimulatedData(t *testing.T) {
	quotes := &fakeQuotes{errs: map[string]error{"FAKE": errors.New("unknown ticker")}}
	svc := newTestService(quotes, nil)
	svc.Bootstrap()

	input := validInput("FAKE")
	created, isReal := svc.AddPosition(input)

	assert.False(t, isReal)
	assert.False(t, created.IsRealData)
	assert.Equal(t, "FAKE", created.Ticker)
	assert.Equal(t, "FAKE Corp", created.Name)
	assert.Equal(t, 120.0, created.CurrentPrice)
	assert.Equal(t, 120.0, created.OpenPrice)
	assert.Equal(t, 120.0, created.PreviousClose)
	assert.Equal(t, 10.0, created.Shares)
	assert.Equal(t, 100.0, created.AvgPrice)

	require.NotEmpty(t, created.PriceHistory)
	assert.Equal(t, 120.0, created.PriceHistory[len(created.PriceHistory)-1].Price)

	require.Len(t, created.Transactions, 1)
	assert.Equal(t, domain.TransactionBuy, created.Transactions[0].Type)
	assert.Equal(t, 10.0, created.Transactions[0].Shares)
	assert.Equal(t, 100.0, created.Transactions[0].Price)
}

func TestAddPosition_UsesGatewayData(t *testing.T) {
	today := time.Now().Format(domain.DateFormat)
	quotes := &fakeQuotes{
		quotes: map[string]*domain.Quote{"AAPL": {
			Ticker:        "AAPL",
			Name:          "Apple Inc.",
			CurrentPrice:  195.20,
			OpenPrice:     194.80,
			PreviousClose: 194.50,
			Currency:      "USD",
		}},
		histories: map[string][]domain.PricePoint{"AAPL": {
			{Date: "2025-06-01", Price: 190},
			{Date: "2025-06-02", Price: 192},
		}},
	}
	svc := newTestService(quotes, nil)
	svc.Bootstrap()

	created, isReal := svc.AddPosition(validInput("aapl"))

	assert.True(t, isReal)
	assert.True(t, created.IsRealData)
	assert.Equal(t, "AAPL", created.Ticker)
	assert.Equal(t, "Apple Inc.", created.Name)
	assert.Equal(t, 195.20, created.CurrentPrice)
	assert.Equal(t, 194.80, created.OpenPrice)
	assert.Equal(t, 194.50, created.PreviousClose)

	// Fetched history plus today's anchor point.
	require.Len(t, created.PriceHistory, 3)
	last := created.PriceHistory[len(created.PriceHistory)-1]
	assert.Equal(t, today, last.Date)
	assert.Equal(t, 195.20, last.Price)
}

func TestAddTransaction_SellKeepsAveragePrice(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	created, _ := svc.AddPosition(validInput("FAKE"))

	updated, ok := svc.AddTransaction(created.ID, domain.TransactionInput{
		Type:   "sell",
		Shares: 4,
		Price:  130,
	})

	require.True(t, ok)
	assert.Equal(t, 6.0, updated.Shares)
	assert.Equal(t, 100.0, updated.AvgPrice)
	require.Len(t, updated.Transactions, 2)
}

func TestAddTransaction_BuyMovesAveragePrice(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	created, _ := svc.AddPosition(validInput("FAKE"))

	updated, ok := svc.AddTransaction(created.ID, domain.TransactionInput{
		Type:   "buy",
		Shares: 10,
		Price:  140,
	})

	require.True(t, ok)
	assert.Equal(t, 20.0, updated.Shares)
	assert.Equal(t, 120.0, updated.AvgPrice)
}

func TestAddTransaction_OversellClampsToZero(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	created, _ := svc.AddPosition(validInput("FAKE"))

	updated, ok := svc.AddTransaction(created.ID, domain.TransactionInput{
		Type:   "sell",
		Shares: 25,
		Price:  130,
	})

	require.True(t, ok)
	assert.Equal(t, 0.0, updated.Shares)
}

func TestAddTransaction_UnknownIDIsNoOp(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	_, ok := svc.AddTransaction("missing", domain.TransactionInput{Type: "buy", Shares: 1, Price: 1})
	assert.False(t, ok)
}

func TestUpdatePosition_SkipsDerivedFieldsWithTransactions(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	created, _ := svc.AddPosition(validInput("FAKE"))

	name := "Renamed"
	shares := 999.0
	svc.UpdatePosition(created.ID, domain.PositionUpdate{Name: &name, Shares: &shares})

	updated, ok := svc.Position(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Renamed", updated.Name)
	// Shares stay derived from the transaction log.
	assert.Equal(t, 10.0, updated.Shares)
}

func TestDeletePosition(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	before := len(svc.Positions())
	id := svc.Positions()[0].ID

	svc.DeletePosition(id)
	assert.Len(t, svc.Positions(), before-1)

	// Unknown id is a no-op.
	svc.DeletePosition("missing")
	assert.Len(t, svc.Positions(), before-1)
}

func TestTick_SameDayOverwritesHistoryPoint(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	before := svc.Positions()[0]
	lengthBefore := len(before.PriceHistory)

	svc.Tick()
	svc.Tick()

	after := svc.Positions()[0]
	// Both ticks land on today's point; length never grows within a day.
	assert.Equal(t, lengthBefore, len(after.PriceHistory))
	assert.Equal(t, after.CurrentPrice, after.PriceHistory[len(after.PriceHistory)-1].Price)
	assert.NotEqual(t, before.CurrentPrice, after.CurrentPrice)
}

func TestTick_SkipsRealDataPositions(t *testing.T) {
	quotes := &fakeQuotes{
		quotes: map[string]*domain.Quote{"AAPL": {Ticker: "AAPL", Name: "Apple", CurrentPrice: 195.20, OpenPrice: 194.80, PreviousClose: 194.50, Currency: "USD"}},
	}
	svc := newTestService(quotes, nil)
	svc.Bootstrap()

	created, isReal := svc.AddPosition(validInput("AAPL"))
	require.True(t, isReal)

	svc.Tick()

	after, ok := svc.Position(created.ID)
	require.True(t, ok)
	assert.Equal(t, 195.20, after.CurrentPrice)
}

func TestRefreshReal_PartialSuccessCommit(t *testing.T) {
	quotes := &fakeQuotes{
		quotes: map[string]*domain.Quote{
			"AAPL": {Ticker: "AAPL", Name: "Apple", CurrentPrice: 195.20, OpenPrice: 194.80, PreviousClose: 194.50, Currency: "USD"},
			"MSFT": {Ticker: "MSFT", Name: "Microsoft", CurrentPrice: 425.50, OpenPrice: 424.90, PreviousClose: 424.00, Currency: "USD"},
		},
	}
	svc := newTestService(quotes, nil)
	svc.Bootstrap()

	apple, _ := svc.AddPosition(validInput("AAPL"))
	microsoft, _ := svc.AddPosition(validInput("MSFT"))

	// MSFT starts failing; AAPL moves.
	quotes.mu.Lock()
	quotes.errs = map[string]error{"MSFT": errors.New("gateway down")}
	quotes.quotes["AAPL"] = &domain.Quote{Ticker: "AAPL", Name: "Apple", CurrentPrice: 200.00, OpenPrice: 196.00, PreviousClose: 195.20, Currency: "USD"}
	quotes.mu.Unlock()

	require.NoError(t, svc.RefreshReal())

	appleAfter, _ := svc.Position(apple.ID)
	assert.Equal(t, 200.00, appleAfter.CurrentPrice)
	assert.Equal(t, 196.00, appleAfter.OpenPrice)

	microsoftAfter, _ := svc.Position(microsoft.ID)
	assert.Equal(t, microsoft.CurrentPrice, microsoftAfter.CurrentPrice)
	assert.Equal(t, microsoft.OpenPrice, microsoftAfter.OpenPrice)
	assert.Equal(t, microsoft.PriceHistory, microsoftAfter.PriceHistory)
}

func TestRefreshReal_RejectsConcurrentRefresh(t *testing.T) {
	quotes := &fakeQuotes{
		quotes:  map[string]*domain.Quote{"AAPL": {Ticker: "AAPL", Name: "Apple", CurrentPrice: 195.20, OpenPrice: 194.80, PreviousClose: 194.50, Currency: "USD"}},
		entered: make(chan string, 4),
	}
	svc := newTestService(quotes, nil)
	svc.Bootstrap()
	svc.AddPosition(validInput("AAPL"))
	// Drain the AddPosition lookup notification.
	<-quotes.entered

	quotes.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- svc.RefreshReal() }()

	// Wait until the refresh is inside the gateway call.
	<-quotes.entered
	assert.True(t, svc.Refreshing())
	assert.ErrorIs(t, svc.RefreshReal(), ErrRefreshInFlight)

	close(quotes.release)
	require.NoError(t, <-done)
	assert.False(t, svc.Refreshing())
}

func TestRefreshReal_NoRealPositions(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	assert.False(t, svc.HasRealPositions())
	assert.NoError(t, svc.RefreshReal())
}

func TestResetToDemo(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	id := svc.Positions()[0].ID
	svc.DeletePosition(id)
	require.Len(t, svc.Positions(), 5)

	svc.ResetToDemo()

	positions := svc.Positions()
	require.Len(t, positions, 6)
	assert.Equal(t, "AAPL", positions[0].Ticker)
	assert.Equal(t, 15.0, positions[0].Shares)
	assert.Equal(t, 178.50, positions[0].AvgPrice)
}

func TestAccessors_ReturnDeepCopies(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	positions := svc.Positions()
	positions[0].PriceHistory[0].Price = -1
	positions[0].Ticker = "HACKED"

	fresh := svc.Positions()
	assert.NotEqual(t, "HACKED", fresh[0].Ticker)
	assert.NotEqual(t, -1.0, fresh[0].PriceHistory[0].Price)
}

func TestHistory_AlignedWithBenchmark(t *testing.T) {
	svc := newTestService(nil, nil)
	svc.Bootstrap()

	history := svc.History()
	require.NotEmpty(t, history)

	stats := svc.Stats()
	last := history[len(history)-1]
	assert.InDelta(t, stats.TotalValue, last.Value, 0.01)
	// Normalization maps the first benchmark point onto the portfolio
	// value at the first common index.
	assert.InDelta(t, history[0].Value, history[0].SP500, 0.01)
}
