package upbit

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.upbit.com"

// Client is a REST client for the Upbit exchange. Private endpoints
// are signed with a per-request JWT carrying a SHA512 hash of the
// query string.
type Client struct {
	accessKey  string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	// Upbit allows 8 req/s for orders and 30 req/s for the rest; one
	// shared pace below the order limit keeps us clear of both.
	limiter *rate.Limiter
}

// NewClient creates an Upbit client. Keys may be empty for public
// endpoints only.
func NewClient(accessKey, secretKey string) *Client {
	return &Client{
		accessKey:  accessKey,
		secretKey:  secretKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(8), 8),
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// authToken builds the Authorization bearer token for a private call.
func (c *Client) authToken(query url.Values) (string, error) {
	claims := jwt.MapClaims{
		"access_key": c.accessKey,
		"nonce":      uuid.NewString(),
	}
	if len(query) > 0 {
		h := sha512.Sum512([]byte(query.Encode()))
		claims["query_hash"] = hex.EncodeToString(h[:])
		claims["query_hash_alg"] = "SHA512"
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
	if err != nil {
		return "", fmt.Errorf("sign request token: %w", err)
	}
	return "Bearer " + token, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
	} else if len(query) > 0 {
		body = strings.NewReader(query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if signed {
		token, err := c.authToken(query)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upbit %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("upbit read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("upbit %s %s status %d: %s", method, path, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("upbit %s %s status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("upbit decode response: %w", err)
	}
	return nil
}

// GetAccounts returns all currency balances for the key pair.
func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts", nil, true, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetKRWBalance returns the free KRW cash balance.
func (c *Client) GetKRWBalance(ctx context.Context) (float64, error) {
	accounts, err := c.GetAccounts(ctx)
	if err != nil {
		return 0, err
	}
	for _, a := range accounts {
		if a.Currency == "KRW" {
			v, err := strconv.ParseFloat(a.Balance, 64)
			if err != nil {
				return 0, fmt.Errorf("parse KRW balance %q: %w", a.Balance, err)
			}
			return v, nil
		}
	}
	return 0, nil
}

// GetTickers returns market snapshots for the given symbols.
func (c *Client) GetTickers(ctx context.Context, symbols []string) ([]Ticker, error) {
	q := url.Values{}
	q.Set("markets", strings.Join(symbols, ","))
	var tickers []Ticker
	if err := c.do(ctx, http.MethodGet, "/v1/ticker", q, false, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

// BuyMarket places a market buy spending amount KRW on symbol.
// Upbit expresses market buys as ord_type=price with the quote amount.
func (c *Client) BuyMarket(ctx context.Context, symbol string, amount float64) (Order, error) {
	q := url.Values{}
	q.Set("market", symbol)
	q.Set("side", "bid")
	q.Set("ord_type", "price")
	q.Set("price", strconv.FormatFloat(amount, 'f', -1, 64))
	var o Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", q, true, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// SellMarket places a market sell of qty units of symbol.
func (c *Client) SellMarket(ctx context.Context, symbol string, qty float64) (Order, error) {
	q := url.Values{}
	q.Set("market", symbol)
	q.Set("side", "ask")
	q.Set("ord_type", "market")
	q.Set("volume", strconv.FormatFloat(qty, 'f', -1, 64))
	var o Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", q, true, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// GetOrder fetches one order with its trades by uuid.
func (c *Client) GetOrder(ctx context.Context, orderUUID string) (Order, error) {
	q := url.Values{}
	q.Set("uuid", orderUUID)
	var o Order
	if err := c.do(ctx, http.MethodGet, "/v1/order", q, true, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Fill summarizes the executed part of an order.
type Fill struct {
	Quantity float64
	AvgPrice float64
	Fee      float64
	Funds    float64
	Done     bool
}

// FillFromOrder reduces an order's trades to executed quantity,
// volume-weighted price and paid fee.
func FillFromOrder(o Order) (Fill, error) {
	var f Fill
	executed, err := parseFloat(o.ExecutedVolume)
	if err != nil {
		return Fill{}, fmt.Errorf("parse executed_volume %q: %w", o.ExecutedVolume, err)
	}
	f.Quantity = executed
	f.Fee, err = parseFloat(o.PaidFee)
	if err != nil {
		return Fill{}, fmt.Errorf("parse paid_fee %q: %w", o.PaidFee, err)
	}

	for _, tr := range o.Trades {
		funds, err := parseFloat(tr.Funds)
		if err != nil {
			return Fill{}, fmt.Errorf("parse trade funds %q: %w", tr.Funds, err)
		}
		f.Funds += funds
	}
	if executed > 0 && f.Funds > 0 {
		f.AvgPrice = f.Funds / executed
	}
	f.Done = o.State == "done" || o.State == "cancel"
	return f, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
