// Package binance provides a thin client for the futures data API and the
// spot price lookup. The client is stateless and performs no caching.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"futsentry/internal/models"
)

// PumpHorizonMinutes is the lookback of PriceChangePct: the close-to-close
// delta of the two most recent 5-minute candles.
const PumpHorizonMinutes = 5

// Client queries the futures data API over HTTPS GET.
type Client struct {
	baseURL     string
	spotBaseURL string
	coins       map[string]string
	httpClient  *http.Client
	limiter     *rate.Limiter
	timeout     time.Duration
}

// NewClient creates a new futures data client. requestsPerSecond bounds the
// outbound call rate across all queries.
func NewClient(baseURL, spotBaseURL string, coins map[string]string, timeout time.Duration, requestsPerSecond float64) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Client{
		baseURL:     baseURL,
		spotBaseURL: spotBaseURL,
		coins:       coins,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
		timeout:     timeout,
	}
}

// doGet performs a rate-limited GET bounded by the per-request timeout and
// returns the response body. Non-2xx responses and transport failures are
// wrapped with models.ErrUpstream.
func (c *Client) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", models.ErrUpstream, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", models.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", models.ErrUpstream, err)
	}
	return body, nil
}

func (c *Client) futuresURL(path string, params url.Values) string {
	return c.baseURL + path + "?" + params.Encode()
}

// ratioRecord matches both long/short ratio endpoints; the field that carries
// the ratio differs between them and numbers arrive stringified.
type ratioRecord struct {
	LongShortRatio string `json:"longShortRatio"`
	BuySellRatio   string `json:"buySellRatio"`
}

func (c *Client) fetchRatio(ctx context.Context, path string, kind models.RatioKind, symbol string, interval models.Interval) (models.RatioSample, error) {
	sample := models.RatioSample{
		Kind:       kind,
		Symbol:     symbol,
		Interval:   interval,
		CapturedAt: time.Now(),
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("period", string(interval))
	params.Set("limit", "1")

	body, err := c.doGet(ctx, c.futuresURL(path, params))
	if err != nil {
		return sample, err
	}

	var records []ratioRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return sample, fmt.Errorf("%w: decoding ratio payload: %v", models.ErrUpstream, err)
	}
	if len(records) == 0 {
		return sample, nil // absent, not an error
	}

	last := records[len(records)-1]
	raw := last.LongShortRatio
	if kind == models.RatioTaker {
		raw = last.BuySellRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return sample, fmt.Errorf("%w: parsing ratio %q: %v", models.ErrUpstream, raw, err)
	}
	sample.Ratio = &ratio
	return sample, nil
}

// GlobalLongShortRatio returns the latest global account long/short ratio.
// The sample's Ratio is nil when the upstream returned an empty sequence.
func (c *Client) GlobalLongShortRatio(ctx context.Context, symbol string, interval models.Interval) (models.RatioSample, error) {
	return c.fetchRatio(ctx, "/futures/data/globalLongShortAccountRatio", models.RatioGlobalAccount, symbol, interval)
}

// TakerLongShortRatio returns the latest taker buy/sell volume ratio.
func (c *Client) TakerLongShortRatio(ctx context.Context, symbol string, interval models.Interval) (models.RatioSample, error) {
	return c.fetchRatio(ctx, "/futures/data/takerlongshortRatio", models.RatioTaker, symbol, interval)
}

// OpenInterest returns the outstanding contract count for symbol. The
// Contracts field is nil when it is missing from the response.
func (c *Client) OpenInterest(ctx context.Context, symbol string) (models.OpenInterest, error) {
	oi := models.OpenInterest{Symbol: symbol, CapturedAt: time.Now()}

	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doGet(ctx, c.futuresURL("/fapi/v1/openInterest", params))
	if err != nil {
		return oi, err
	}

	field := gjson.GetBytes(body, "openInterest")
	if !field.Exists() {
		return oi, nil // absent, not an error
	}
	contracts := field.Float()
	if contracts < 0 {
		return oi, fmt.Errorf("%w: negative open interest %f", models.ErrUpstream, contracts)
	}
	oi.Contracts = &contracts
	return oi, nil
}

// PriceChangePct returns (last_close − prev_close) / prev_close × 100 over
// the two most recent 5-minute candles. ok is false when fewer than two
// candles exist or the previous close is zero.
func (c *Client) PriceChangePct(ctx context.Context, symbol string) (float64, bool, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "5m")
	params.Set("limit", "2")

	body, err := c.doGet(ctx, c.futuresURL("/fapi/v1/klines", params))
	if err != nil {
		return 0, false, err
	}

	candles := gjson.ParseBytes(body)
	if !candles.IsArray() {
		return 0, false, fmt.Errorf("%w: klines payload is not an array", models.ErrUpstream)
	}
	rows := candles.Array()
	if len(rows) < 2 {
		return 0, false, nil
	}

	// Close price is index 4 of each candle tuple.
	prev := rows[len(rows)-2].Get("4").Float()
	last := rows[len(rows)-1].Get("4").Float()
	if prev == 0 {
		return 0, false, nil
	}
	return (last - prev) / prev * 100, true, nil
}

// SpotPrice looks up the current USD spot price for symbol via the configured
// symbol → coin id mapping.
func (c *Client) SpotPrice(ctx context.Context, symbol string) (models.PriceSample, error) {
	coin, ok := c.coins[symbol]
	if !ok {
		return models.PriceSample{}, fmt.Errorf("no spot coin mapping for symbol %q", symbol)
	}

	params := url.Values{}
	params.Set("ids", coin)
	params.Set("vs_currencies", "usd")

	body, err := c.doGet(ctx, c.spotBaseURL+"/simple/price?"+params.Encode())
	if err != nil {
		return models.PriceSample{}, err
	}

	price := gjson.GetBytes(body, coin+".usd")
	if !price.Exists() || price.Float() <= 0 {
		return models.PriceSample{}, fmt.Errorf("%w: no usd price for coin %q", models.ErrUpstream, coin)
	}

	return models.PriceSample{
		Symbol:     symbol,
		ClosePrice: price.Float(),
		CapturedAt: time.Now(),
	}, nil
}
