package yahoo

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteFixture = `{
	"quoteResponse": {
		"result": [{
			"symbol": "AAPL",
			"shortName": "Apple Inc.",
			"longName": "Apple Inc. (Cupertino)",
			"regularMarketPrice": 195.204,
			"regularMarketOpen": 194.80,
			"regularMarketPreviousClose": 194.50,
			"currency": "USD"
		}]
	}
}`

const emptyQuoteFixture = `{"quoteResponse": {"result": []}}`

func chartFixture() string {
	// Three days; the middle close is null and must be dropped.
	return `{
	"chart": {
		"result": [{
			"timestamp": [1748736000, 1748822400, 1748908800],
			"indicators": {
				"quote": [{
					"close": [190.123, null, 195.20]
				}]
			}
		}]
	}
}`
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, zerolog.Nop()), srv
}

func TestQuote_ParsesResponse(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, quoteFixture)
	})
	defer srv.Close()

	quote, err := client.Quote("aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Ticker)
	assert.Equal(t, "Apple Inc.", quote.Name)
	assert.Equal(t, 195.20, quote.CurrentPrice)
	assert.Equal(t, 194.80, quote.OpenPrice)
	assert.Equal(t, 194.50, quote.PreviousClose)
	assert.Equal(t, "USD", quote.Currency)
}

func TestQuote_EmptyResultIsNotFound(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyQuoteFixture)
	})
	defer srv.Close()

	_, err := client.Quote("NOPE")
	assert.ErrorIs(t, err, ErrTickerNotFound)
}

func TestQuote_ZeroPriceIsNotFound(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[{"symbol":"X","regularMarketPrice":0}]}}`)
	})
	defer srv.Close()

	_, err := client.Quote("X")
	assert.ErrorIs(t, err, ErrTickerNotFound)
}

func TestQuote_404IsNotFound(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := client.Quote("X")
	assert.ErrorIs(t, err, ErrTickerNotFound)
}

func TestQuote_ServerErrorIsNotNotFound(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := client.Quote("X")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTickerNotFound)
}

func TestQuote_MissingOpenFallsBackToPrice(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[{"symbol":"X","shortName":"X","regularMarketPrice":50.0,"currency":"USD"}]}}`)
	})
	defer srv.Close()

	quote, err := client.Quote("X")
	require.NoError(t, err)
	assert.Equal(t, 50.0, quote.OpenPrice)
	assert.Equal(t, 50.0, quote.PreviousClose)
}

func TestHistory_ParsesAndDropsNullCloses(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "6mo", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, chartFixture())
	})
	defer srv.Close()

	history, err := client.History("AAPL")
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, "2025-06-01", history[0].Date)
	assert.Equal(t, 190.12, history[0].Price)
	assert.Equal(t, "2025-06-03", history[1].Date)
	assert.Equal(t, 195.20, history[1].Price)
}

func TestHistory_EmptyResultIsNotFound(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[]}}`)
	})
	defer srv.Close()

	_, err := client.History("NOPE")
	assert.ErrorIs(t, err, ErrTickerNotFound)
}
