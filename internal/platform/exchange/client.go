// Package exchange is the REST adapter for the emoji stock exchange.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

const (
	headerTeamID = "X-Team-Id"
	headerAPIKey = "X-API-Key"

	defaultTimeout = 10 * time.Second
)

// Client is the REST client for the exchange API. It attaches the team
// credentials to every authenticated request and throttles outgoing calls.
type Client struct {
	baseURL     string
	creds       domain.Credentials
	httpClient  *http.Client
	limiter     *rate.Limiter
	timeInForce domain.TimeInForce
}

// NewClient creates a new exchange REST client.
//
// baseURL is the API root, e.g. "http://localhost:8080". timeout bounds
// every request; zero selects a 10s default.
func NewClient(baseURL string, creds domain.Credentials, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeInForce: domain.TimeInForceGTC,
	}
}

// WithRateLimit throttles requests to perSecond with a burst of one.
// A non-positive value disables throttling.
func (c *Client) WithRateLimit(perSecond float64) *Client {
	if perSecond <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithTimeInForce sets the time in force used when a request leaves it empty.
func (c *Client) WithTimeInForce(tif domain.TimeInForce) *Client {
	if tif != "" {
		c.timeInForce = tif
	}
	return c
}

// Credentials returns the credentials attached to requests.
func (c *Client) Credentials() domain.Credentials {
	return c.creds
}

// FetchOrderBook returns the current order book for symbol.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	path := "/api/orderbook/" + url.PathEscape(symbol)

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("exchange: fetch order book %s: %w", symbol, mapStatusError(err, false))
	}

	var book APIOrderBook
	if err := json.Unmarshal(respBody, &book); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("exchange: decode order book %s: %w", symbol, err)
	}
	return book.ToDomain(symbol, time.Now().UTC()), nil
}

// FetchPortfolio returns the team's current cash and positions.
func (c *Client) FetchPortfolio(ctx context.Context) (domain.PortfolioSnapshot, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/portfolio", nil, true)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("exchange: fetch portfolio: %w", mapStatusError(err, false))
	}

	var p APIPortfolio
	if err := json.Unmarshal(respBody, &p); err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("exchange: decode portfolio: %w", err)
	}
	return p.ToDomain(time.Now().UTC()), nil
}

// SubmitOrder places a limit order. A 4xx response other than an auth,
// not-found or rate-limit failure is reported as domain.ErrOrderRejected,
// as is a 2xx response whose status is REJECTED.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	if req.TimeInForce == "" {
		req.TimeInForce = c.timeInForce
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/orders", newAPIOrderRequest(req), true)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("exchange: submit order %s %s: %w", req.Side, req.Symbol, mapStatusError(err, true))
	}

	var apiAck APIOrderAck
	if err := json.Unmarshal(respBody, &apiAck); err != nil {
		return domain.OrderAck{}, fmt.Errorf("exchange: decode order ack: %w", err)
	}

	ack := apiAck.ToDomain()
	if ack.Status == domain.OrderStatusRejected {
		return ack, fmt.Errorf("exchange: submit order %s %s: %w: %s", req.Side, req.Symbol, domain.ErrOrderRejected, apiAck.Error)
	}
	return ack, nil
}

// Register creates a team on the exchange and returns its credentials.
// It does not require credentials and does not store the result.
func (c *Client) Register(ctx context.Context, teamName string) (domain.Credentials, error) {
	if strings.TrimSpace(teamName) == "" {
		return domain.Credentials{}, fmt.Errorf("exchange: register: %w: empty team name", domain.ErrBadRequest)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/register", APIRegisterRequest{TeamName: teamName}, false)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("exchange: register %s: %w", teamName, mapStatusError(err, false))
	}

	var r APIRegisterResponse
	if err := json.Unmarshal(respBody, &r); err != nil {
		return domain.Credentials{}, fmt.Errorf("exchange: decode registration: %w", err)
	}
	creds := domain.Credentials{TeamID: r.TeamID, APIKey: r.APIKey}
	if !creds.Valid() {
		return domain.Credentials{}, fmt.Errorf("exchange: register %s: incomplete credentials in response", teamName)
	}
	return creds, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// statusError is a non-2xx response.
type statusError struct {
	code   int
	reason string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.reason)
}

// doRequest builds, authenticates, sends, and reads an HTTP request. It
// returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, auth bool) ([]byte, error) {
	if auth && !c.creds.Valid() {
		return nil, domain.ErrNotAuthenticated
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set(headerTeamID, c.creds.TeamID)
		req.Header.Set(headerAPIKey, c.creds.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: read response: %v", domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus returns a *statusError for non-2xx status codes.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	reason := strings.TrimSpace(string(body))
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.reason() != "" {
		reason = apiErr.reason()
	}
	return &statusError{code: statusCode, reason: reason}
}

// mapStatusError maps a *statusError to the matching domain error. Other
// errors pass through unchanged.
func mapStatusError(err error, order bool) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}

	switch {
	case se.code == http.StatusUnauthorized || se.code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, se.reason)
	case se.code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, se.reason)
	case se.code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, se.reason)
	case se.code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrServer, se.code, se.reason)
	case order:
		return fmt.Errorf("%w: %s", domain.ErrOrderRejected, se.reason)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrBadRequest, se.code, se.reason)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
