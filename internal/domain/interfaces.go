package domain

// QuoteClient fetches live market data for a ticker. Implementations may
// fail at any time; callers must treat every failure as "use fallback or
// retain prior values", never as a hard error.
type QuoteClient interface {
	// Quote returns the current market snapshot for ticker.
	Quote(ticker string) (*Quote, error)
	// History returns roughly six months of daily closing prices for
	// ticker, oldest first.
	History(ticker string) ([]PricePoint, error)
}

// SnapshotStore persists full ledger snapshots.
//
// Load returning (nil, nil) means no usable state exists and the caller
// should seed demo data. Save failures are best-effort and must never
// block or roll back the in-memory mutation that triggered them.
type SnapshotStore interface {
	Load() (*State, error)
	Save(state *State) error
}
