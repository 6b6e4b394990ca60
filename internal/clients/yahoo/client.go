// Package yahoo provides the market data client used to enrich positions
// with live quotes and real price history.
package yahoo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

// ErrTickerNotFound signals that the ticker is unknown upstream, as
// opposed to a transport or server failure. The ledger treats both the
// same way (fall back to simulated data), but callers that surface
// errors to users can tell them apart.
var ErrTickerNotFound = errors.New("yahoo: ticker not found")

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Yahoo blocks requests without a browser-ish user agent.
const userAgent = "Mozilla/5.0"

// Client for the Yahoo Finance quote and chart endpoints.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client. baseURL is overridable
// for tests; pass "" for the production endpoint.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// Quote fetches the current market snapshot for ticker from the v7 quote
// endpoint.
func (c *Client) Quote(ticker string) (*domain.Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	reqURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(ticker))

	body, err := c.get(reqURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var raw struct {
		QuoteResponse struct {
			Result []struct {
				Symbol                     string  `json:"symbol"`
				ShortName                  string  `json:"shortName"`
				LongName                   string  `json:"longName"`
				RegularMarketPrice         float64 `json:"regularMarketPrice"`
				RegularMarketOpen          float64 `json:"regularMarketOpen"`
				RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
				Currency                   string  `json:"currency"`
			} `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	if len(raw.QuoteResponse.Result) == 0 {
		return nil, ErrTickerNotFound
	}

	r := raw.QuoteResponse.Result[0]
	if r.RegularMarketPrice <= 0 {
		return nil, ErrTickerNotFound
	}

	name := r.ShortName
	if name == "" {
		name = r.LongName
	}
	if name == "" {
		name = ticker
	}

	openPrice := r.RegularMarketOpen
	if openPrice <= 0 {
		// Pre-market or missing open; fall back to the live price so
		// day-change reads as flat rather than nonsense.
		openPrice = r.RegularMarketPrice
	}
	previousClose := r.RegularMarketPreviousClose
	if previousClose <= 0 {
		previousClose = r.RegularMarketPrice
	}

	quote := &domain.Quote{
		Ticker:        r.Symbol,
		Name:          name,
		CurrentPrice:  domain.Round2(r.RegularMarketPrice),
		OpenPrice:     domain.Round2(openPrice),
		PreviousClose: domain.Round2(previousClose),
		Currency:      r.Currency,
	}

	c.log.Debug().
		Str("ticker", ticker).
		Float64("price", quote.CurrentPrice).
		Msg("Fetched quote")

	return quote, nil
}

// History fetches roughly six months of daily closes for ticker from the
// v8 chart endpoint, oldest first. Days with a null close are dropped.
func (c *Client) History(ticker string) ([]domain.PricePoint, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?range=6mo&interval=1d", c.baseURL, url.PathEscape(ticker))

	body, err := c.get(reqURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var raw struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}

	if len(raw.Chart.Result) == 0 {
		return nil, ErrTickerNotFound
	}

	r := raw.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, ErrTickerNotFound
	}
	closes := r.Indicators.Quote[0].Close

	history := make([]domain.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		history = append(history, domain.PricePoint{
			Date:  time.Unix(ts, 0).UTC().Format(domain.DateFormat),
			Price: domain.Round2(*closes[i]),
		})
	}

	c.log.Debug().
		Str("ticker", ticker).
		Int("points", len(history)).
		Msg("Fetched history")

	return history, nil
}

// get issues the request and maps HTTP-level failures: 404 means the
// ticker is unknown, anything else non-200 is an upstream error.
func (c *Client) get(reqURL string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrTickerNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("yahoo returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}
