package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Stay well under typical quote-API limits.
	requestsPerSec = 10
	burst          = 5
)

// Client fetches prices and indicator values over HTTP. Fetches are
// bounded by a short timeout and are never retried within one signal's
// processing — the next signal naturally retries. Any failure surfaces
// as an error the engine routes to a "no_price" rejection.
type Client struct {
	http      *http.Client
	base      string
	limiter   *rate.Limiter
	intervals []string // indicator fallback ladder, tried in order
}

// NewClient creates a client for the given quote service base URL.
func NewClient(base string, timeout time.Duration, fallbackIntervals []string) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if len(fallbackIntervals) == 0 {
		fallbackIntervals = []string{"15m", "1h"}
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		base:      base,
		limiter:   rate.NewLimiter(requestsPerSec, burst),
		intervals: fallbackIntervals,
	}
}

type quoteResponse struct {
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price"`
}

type indicatorResponse struct {
	Symbol string   `json:"symbol"`
	Kind   string   `json:"kind"`
	Value  *float64 `json:"value"`
}

// Price returns the current price for a symbol.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/price?symbol=%s", c.base, url.QueryEscape(symbol))

	var resp quoteResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return 0, fmt.Errorf("marketdata.Price %s: %w", symbol, err)
	}
	if resp.Price == nil || *resp.Price <= 0 {
		return 0, fmt.Errorf("marketdata.Price %s: no price in response", symbol)
	}
	return *resp.Price, nil
}

// Indicator returns an indicator value, walking the interval fallback
// ladder in order. The ladder is a fixed list — it terminates when
// exhausted, never escalating open-endedly.
func (c *Client) Indicator(ctx context.Context, symbol, kind string, period int) (float64, error) {
	var lastErr error
	for _, interval := range c.intervals {
		u := fmt.Sprintf("%s/indicator?symbol=%s&kind=%s&period=%d&interval=%s",
			c.base, url.QueryEscape(symbol), url.QueryEscape(kind), period, interval)

		var resp indicatorResponse
		if err := c.get(ctx, u, &resp); err != nil {
			lastErr = err
			continue
		}
		if resp.Value == nil {
			lastErr = fmt.Errorf("no value at interval %s", interval)
			continue
		}
		return *resp.Value, nil
	}
	return 0, fmt.Errorf("marketdata.Indicator %s %s: ladder exhausted: %w", symbol, kind, lastErr)
}

// get performs one rate-limited GET and decodes the JSON body.
func (c *Client) get(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
