package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
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

	"golang.org/x/time/rate"
)

// ErrRejected is returned when the gateway answers with success=0
var ErrRejected = errors.New("gateway rejected request")

// Client talks to the trading gateway's public and private (signed) APIs
type Client struct {
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Options configures the client
type Options struct {
	Timeout time.Duration
	// Requests per second, 0 disables client-side limiting
	RateLimit float64
}

// NewClient creates a new gateway client
func NewClient(apiURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), int(opts.RateLimit)+1)
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: limiter,
	}
}

// Credentials identify an account on the gateway
type Credentials struct {
	Key    string
	Secret string
}

// Ticker is the public price snapshot for a pair
type Ticker struct {
	Pair      string  `json:"pair"`
	Last      float64 `json:"last"`
	Change24h float64 `json:"change_24h"`
	Venue     string  `json:"venue"`
	Timestamp int64   `json:"server_time"`
}

// VenueQuote is one venue's price for a pair
type VenueQuote struct {
	Venue string  `json:"venue"`
	Price float64 `json:"price"`
}

// AccountInfo is the private account snapshot returned by getInfo
type AccountInfo struct {
	Balance        map[string]float64 `json:"balance"`
	EstimatedValue float64            `json:"estimated_value"`
	ServerTime     int64              `json:"server_time"`
}

// OrderRequest describes an order to place
type OrderRequest struct {
	Pair   string
	Side   string
	Price  float64
	Amount float64
	Venue  string
}

// OrderAck is the gateway's acknowledgement of a placed order
type OrderAck struct {
	OrderID string  `json:"order_id"`
	Price   float64 `json:"price"`
	Amount  float64 `json:"amount"`
}

type privateResponse struct {
	Success int             `json:"success"`
	Return  json.RawMessage `json:"return"`
	Error   string          `json:"error,omitempty"`
}

// GetTicker gets the public ticker for a pair
func (c *Client) GetTicker(ctx context.Context, pair string) (*Ticker, error) {
	var result struct {
		Ticker Ticker `json:"ticker"`
	}
	if err := c.getPublic(ctx, "/api/ticker/"+url.PathEscape(pair), &result); err != nil {
		return nil, err
	}
	if result.Ticker.Pair == "" {
		result.Ticker.Pair = pair
	}
	return &result.Ticker, nil
}

// GetQuotes gets per-venue prices for a pair
func (c *Client) GetQuotes(ctx context.Context, pair string) ([]VenueQuote, error) {
	var result struct {
		Quotes []VenueQuote `json:"quotes"`
	}
	if err := c.getPublic(ctx, "/api/quotes/"+url.PathEscape(pair), &result); err != nil {
		return nil, err
	}
	return result.Quotes, nil
}

// Probe checks that the credentials are accepted by the gateway
func (c *Client) Probe(ctx context.Context, creds Credentials) error {
	_, err := c.GetInfo(ctx, creds)
	return err
}

// GetInfo gets account information
func (c *Client) GetInfo(ctx context.Context, creds Credentials) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.postPrivate(ctx, creds, "getInfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SubmitOrder places an order
func (c *Client) SubmitOrder(ctx context.Context, creds Credentials, order OrderRequest) (*OrderAck, error) {
	params := url.Values{}
	params.Set("pair", order.Pair)
	params.Set("type", order.Side)
	params.Set("price", strconv.FormatFloat(order.Price, 'f', -1, 64))
	params.Set("amount", strconv.FormatFloat(order.Amount, 'f', -1, 64))
	if order.Venue != "" {
		params.Set("venue", order.Venue)
	}

	var ack OrderAck
	if err := c.postPrivate(ctx, creds, "trade", params, &ack); err != nil {
		return nil, err
	}
	if ack.OrderID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrRejected)
	}
	return &ack, nil
}

func (c *Client) getPublic(ctx context.Context, path string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) postPrivate(ctx context.Context, creds Credentials, method string, params url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	data := url.Values{}
	for k, v := range params {
		data[k] = v
	}
	data.Set("method", method)
	data.Set("nonce", strconv.FormatInt(time.Now().UnixMilli(), 10))

	payload := data.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/tapi", strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Key", creds.Key)
	req.Header.Set("Sign", Sign(payload, creds.Secret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var result privateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Success != 1 || len(result.Return) == 0 {
		if result.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, result.Error)
		}
		return ErrRejected
	}
	if err := json.Unmarshal(result.Return, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return body, nil
}

// Sign creates the HMAC-SHA512 signature of a request payload
func Sign(payload, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
