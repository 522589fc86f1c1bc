package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjannette/trahn-post-trader/internal/httputil"
	"github.com/kjannette/trahn-post-trader/internal/models"
)

const DefaultBaseURL = "https://api.binance.us"

// Config holds Binance.us credentials and request pacing.
type Config struct {
	APIKey            string
	APISecret         string
	BaseURL           string
	RecvWindow        int64   // ms
	RequestsPerSecond float64 // 0 = 10
	QuoteAsset        string  // "" = USD
}

// Client is a signed Binance.us spot REST client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      httputil.RetryConfig
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USD"
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("exchange")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Logger:      log,
		},
		log: log,
	}
}

// --- balances ---

type accountInfo struct {
	Balances []struct {
		Asset  string          `json:"asset"`
		Free   decimal.Decimal `json:"free"`
		Locked decimal.Decimal `json:"locked"`
	} `json:"balances"`
}

// CheckBalances fetches free balances and prices them in the quote asset.
// Assets without a <ASSET><QUOTE> market are reported with a zero price.
func (c *Client) CheckBalances(ctx context.Context) (models.BalanceSnapshot, error) {
	if err := c.requireKeys(); err != nil {
		return nil, err
	}

	body, err := c.getSigned(ctx, "/api/v3/account", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	var info accountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}

	prices, err := c.Prices(ctx)
	if err != nil {
		return nil, err
	}

	snap := models.BalanceSnapshot{}
	for _, b := range info.Balances {
		if b.Free.IsZero() && b.Asset != c.cfg.QuoteAsset {
			continue
		}
		price := decimal.NewFromInt(1)
		if b.Asset != c.cfg.QuoteAsset {
			price = prices[b.Asset+c.cfg.QuoteAsset]
		}
		snap[b.Asset] = models.AssetBalance{
			Amount:   b.Free,
			PriceUSD: price,
			ValueUSD: b.Free.Mul(price),
		}
	}
	return snap, nil
}

// Prices returns the last price of every symbol.
func (c *Client) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/v3/ticker/price", nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch prices: status %d: %s", resp.StatusCode, string(body))
	}

	var tickers []struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}
	out := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		out[t.Symbol] = t.Price
	}
	return out, nil
}

// --- orders ---

// CreateOrder places a market order and returns the FULL response.
// Order placement is not retried: a timed out POST may still have filled.
func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	if err := c.requireKeys(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(models.OrderTypeMarket))
	switch req.Side {
	case models.SideBuy:
		params.Set("quoteOrderQty", req.QuoteQty.String())
	case models.SideSell:
		params.Set("quantity", req.Qty.String())
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, req.Side)
	}
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}
	params.Set("newOrderRespType", "FULL")
	c.stamp(params)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	encoded := c.signed(params)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v3/order", strings.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("post order: status %d: %s", resp.StatusCode, string(body))
	}

	var result models.OrderResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	c.log.Info("order filled",
		zap.String("symbol", result.Symbol),
		zap.String("side", string(result.Side)),
		zap.Int64("order_id", result.OrderID),
		zap.String("executed_qty", result.ExecutedQty.String()),
		zap.String("quote_qty", result.CumulativeQuoteQty.String()))
	return &result, nil
}

// --- signing ---

func (c *Client) requireKeys() error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return errors.New("binance: API key/secret required")
	}
	return nil
}

func (c *Client) stamp(params url.Values) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
}

// signed appends the signature to the encoded params. Binance verifies it
// against the exact byte sequence, so the signature must be the last field.
func (c *Client) signed(params url.Values) string {
	encoded := params.Encode()
	return encoded + "&signature=" + sign(encoded, c.cfg.APISecret)
}

// getSigned performs a signed GET with retry. Each attempt is re-stamped so a
// retried request never carries an expired timestamp.
func (c *Client) getSigned(ctx context.Context, path string, params url.Values) ([]byte, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		c.stamp(params)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+c.signed(params), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance GET %s: read body: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("binance GET %s status %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
