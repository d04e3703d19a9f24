// Package marketdata wraps REST access to a polygon-style aggregates API.
// Every failure mode (network, non-2xx, malformed body, empty results) is
// returned as an error; callers fall back to synthetic generation.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradesim-core/internal/candles"
	"tradesim-core/pkg/instruments"
)

// Client wraps REST access to the market-data provider.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a REST client against base (default api.polygon.io).
func NewClient(apiKey, base string) *Client {
	if base == "" {
		base = "https://api.polygon.io"
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(base, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Ticker converts an instrument into the provider's ticker format:
// forex "C:EURUSD", crypto "X:BTC/USD".
func Ticker(inst instruments.Instrument) string {
	if inst.Category == instruments.CategoryForex {
		return "C:" + strings.ReplaceAll(inst.ID, "/", "")
	}
	return "X:" + strings.ReplaceAll(inst.ID, "-", "/")
}

type aggsResponse struct {
	Results []struct {
		T int64   `json:"t"`
		O float64 `json:"o"`
		H float64 `json:"h"`
		L float64 `json:"l"`
		C float64 `json:"c"`
	} `json:"results"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Aggregates fetches 1-minute candles for the last two days, oldest first.
func (c *Client) Aggregates(ctx context.Context, inst instruments.Instrument) ([]candles.Candle, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -2)
	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/minute/%s/%s?%s",
		c.BaseURL,
		url.PathEscape(Ticker(inst)),
		from.Format("2006-01-02"),
		to.Format("2006-01-02"),
		url.Values{
			"adjusted": {"true"},
			"sort":     {"asc"},
			"limit":    {"5000"},
			"apiKey":   {c.APIKey},
		}.Encode(),
	)

	var resp aggsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("market api error: %s", resp.Error)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no historical data for %s", inst.ID)
	}

	out := make([]candles.Candle, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, candles.Candle{Time: r.T, Open: r.O, High: r.H, Low: r.L, Close: r.C})
	}
	return out, nil
}

type lastQuoteResponse struct {
	Last struct {
		Bid       float64 `json:"bid"`
		Ask       float64 `json:"ask"`
		Timestamp int64   `json:"timestamp"`
	} `json:"last"`
	Status string `json:"status"`
}

type lastTradeResponse struct {
	Last struct {
		Price     float64 `json:"price"`
		Timestamp int64   `json:"timestamp"`
	} `json:"last"`
	Status string `json:"status"`
}

// Latest fetches the most recent price for an instrument: forex uses the
// bid/ask midpoint, crypto the last trade. The price is replicated into all
// four OHLC fields of a single candle.
func (c *Client) Latest(ctx context.Context, inst instruments.Instrument) (candles.Candle, error) {
	now := time.Now().UnixMilli()

	if inst.Category == instruments.CategoryForex {
		u := fmt.Sprintf("%s/v1/last_quote/currencies/%s?apiKey=%s",
			c.BaseURL, inst.ID, url.QueryEscape(c.APIKey))
		var resp lastQuoteResponse
		if err := c.getJSON(ctx, u, &resp); err != nil {
			return candles.Candle{}, err
		}
		if resp.Last.Bid <= 0 || resp.Last.Ask <= 0 {
			return candles.Candle{}, fmt.Errorf("empty quote for %s", inst.ID)
		}
		mid := (resp.Last.Bid + resp.Last.Ask) / 2
		ts := resp.Last.Timestamp
		if ts == 0 {
			ts = now
		}
		return candles.Candle{Time: ts, Open: mid, High: mid, Low: mid, Close: mid}, nil
	}

	base := strings.SplitN(inst.ID, "-", 2)
	if len(base) != 2 {
		return candles.Candle{}, fmt.Errorf("malformed crypto instrument id %q", inst.ID)
	}
	u := fmt.Sprintf("%s/v1/last/crypto/%s/%s?apiKey=%s",
		c.BaseURL, base[0], base[1], url.QueryEscape(c.APIKey))
	var resp lastTradeResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return candles.Candle{}, err
	}
	if resp.Last.Price <= 0 {
		return candles.Candle{}, fmt.Errorf("empty trade for %s", inst.ID)
	}
	ts := resp.Last.Timestamp
	if ts == 0 {
		ts = now
	}
	p := resp.Last.Price
	return candles.Candle{Time: ts, Open: p, High: p, Low: p, Close: p}, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("market api status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode market response: %w", err)
	}
	return nil
}
