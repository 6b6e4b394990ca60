// Package storage persists full ledger snapshots to SQLite.
//
// The store is a snapshot adapter, not an incremental repository: every
// Save replaces the whole state inside one transaction, so what is on
// disk is always a consistent picture of the ledger at some instant.
// Price history and transaction logs are stored as msgpack blobs - they
// are only ever read and written whole, and msgpack keeps 90+ points per
// position compact.
package storage

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/PatrikGFX/portfolio-tracker/internal/database"
	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
    id             TEXT PRIMARY KEY,
    ticker         TEXT NOT NULL,
    name           TEXT NOT NULL,
    sector         TEXT NOT NULL,
    currency       TEXT NOT NULL,
    shares         REAL NOT NULL,
    avg_price      REAL NOT NULL,
    current_price  REAL NOT NULL,
    open_price     REAL NOT NULL,
    previous_close REAL NOT NULL,
    date_added     TEXT NOT NULL,
    is_real_data   INTEGER NOT NULL,
    price_history  BLOB NOT NULL,
    transactions   BLOB NOT NULL,
    sort_order     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS benchmark (
    id      INTEGER PRIMARY KEY CHECK (id = 1),
    history BLOB NOT NULL
);
`

// Store is the SQLite-backed snapshot store.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// New creates the store and applies the schema.
func New(db *database.DB, log zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply snapshot schema: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "storage").Logger(),
	}, nil
}

// Save replaces the persisted snapshot with state. The whole write runs
// inside one transaction so a crash mid-save never leaves a half
// snapshot behind.
func (s *Store) Save(state *domain.State) error {
	if state == nil {
		return fmt.Errorf("nil state")
	}

	return database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM positions"); err != nil {
			return fmt.Errorf("failed to clear positions: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM benchmark"); err != nil {
			return fmt.Errorf("failed to clear benchmark: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO positions (
				id, ticker, name, sector, currency,
				shares, avg_price, current_price, open_price, previous_close,
				date_added, is_real_data, price_history, transactions, sort_order
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare position insert: %w", err)
		}
		defer stmt.Close()

		for i := range state.Positions {
			p := &state.Positions[i]

			historyBlob, err := msgpack.Marshal(p.PriceHistory)
			if err != nil {
				return fmt.Errorf("failed to encode price history for %s: %w", p.Ticker, err)
			}
			txBlob, err := msgpack.Marshal(p.Transactions)
			if err != nil {
				return fmt.Errorf("failed to encode transactions for %s: %w", p.Ticker, err)
			}

			if _, err := stmt.Exec(
				p.ID, p.Ticker, p.Name, string(p.Sector), p.Currency,
				p.Shares, p.AvgPrice, p.CurrentPrice, p.OpenPrice, p.PreviousClose,
				p.DateAdded, boolToInt(p.IsRealData), historyBlob, txBlob, i,
			); err != nil {
				return fmt.Errorf("failed to insert position %s: %w", p.Ticker, err)
			}
		}

		benchBlob, err := msgpack.Marshal(state.Benchmark)
		if err != nil {
			return fmt.Errorf("failed to encode benchmark history: %w", err)
		}
		if _, err := tx.Exec("INSERT INTO benchmark (id, history) VALUES (1, ?)", benchBlob); err != nil {
			return fmt.Errorf("failed to insert benchmark history: %w", err)
		}

		return nil
	})
}

// Load reads the persisted snapshot. It returns (nil, nil) when no
// snapshot exists; any decode or shape problem is returned as an error
// and the caller falls back to demo data - a bad snapshot must never
// crash startup.
func (s *Store) Load() (*domain.State, error) {
	rows, err := s.db.Query(`
		SELECT id, ticker, name, sector, currency,
		       shares, avg_price, current_price, open_price, previous_close,
		       date_added, is_real_data, price_history, transactions
		FROM positions
		ORDER BY sort_order`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	state := &domain.State{}
	for rows.Next() {
		var p domain.Position
		var sector string
		var isReal int
		var historyBlob, txBlob []byte

		if err := rows.Scan(
			&p.ID, &p.Ticker, &p.Name, &sector, &p.Currency,
			&p.Shares, &p.AvgPrice, &p.CurrentPrice, &p.OpenPrice, &p.PreviousClose,
			&p.DateAdded, &isReal, &historyBlob, &txBlob,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}

		p.Sector = domain.Sector(sector)
		p.IsRealData = isReal != 0

		if err := msgpack.Unmarshal(historyBlob, &p.PriceHistory); err != nil {
			return nil, fmt.Errorf("failed to decode price history for %s: %w", p.Ticker, err)
		}
		if err := msgpack.Unmarshal(txBlob, &p.Transactions); err != nil {
			return nil, fmt.Errorf("failed to decode transactions for %s: %w", p.Ticker, err)
		}

		state.Positions = append(state.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate position rows: %w", err)
	}

	if len(state.Positions) == 0 {
		// No snapshot yet - caller seeds demo data.
		return nil, nil
	}

	var benchBlob []byte
	err = s.db.QueryRow("SELECT history FROM benchmark WHERE id = 1").Scan(&benchBlob)
	switch {
	case err == sql.ErrNoRows:
		// Legacy snapshot without a benchmark row; ledger regenerates it.
	case err != nil:
		return nil, fmt.Errorf("failed to query benchmark history: %w", err)
	default:
		if err := msgpack.Unmarshal(benchBlob, &state.Benchmark); err != nil {
			return nil, fmt.Errorf("failed to decode benchmark history: %w", err)
		}
	}

	return state, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
