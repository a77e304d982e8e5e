// Package client talks to the OptiWealth backend REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/cache"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
)

const maxResponseBytes = 1 << 20

var (
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable wraps transport failures.
	ErrUnavailable = errors.New("failed to reach backend")
	// ErrBadResponse wraps 2xx replies the client cannot use.
	ErrBadResponse = errors.New("unexpected backend response")
)

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrNotFound and ErrUnauthorized.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

// Client is the unauthenticated entry point. Use As to act for a user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.ResponseCache
	logger     *common.Logger
}

// New creates a client targeting baseURL. respCache may be nil to disable
// GET caching.
func New(baseURL string, timeout time.Duration, respCache *cache.ResponseCache, logger *common.Logger) *Client {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      respCache,
		logger:     logger,
	}
}

// Login exchanges credentials for a bearer token.
// POST /auth/login -> { user, token }
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var out LoginResult
	if err := c.do(ctx, "", http.MethodPost, "/auth/login", creds, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: login response carried no token", ErrBadResponse)
	}
	return &out, nil
}

// Register creates an account.
// POST /auth/register -> User
func (c *Client) Register(ctx context.Context, reg Registration) (*User, error) {
	var out User
	if err := c.do(ctx, "", http.MethodPost, "/auth/register", reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// As returns a view of the client that authenticates as token.
func (c *Client) As(token string) *UserClient {
	return &UserClient{c: c, token: token}
}

// Forget drops every cached response fetched with token.
func (c *Client) Forget(token string) {
	c.cache.InvalidateScope(token)
}

// UserClient issues authenticated calls for one user.
type UserClient struct {
	c     *Client
	token string
}

func portfolioPath(id int64) string {
	return "/api/portfolios/" + strconv.FormatInt(id, 10)
}

// ListPortfolios returns the user's portfolios.
func (u *UserClient) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	var out []Portfolio
	if err := u.get(ctx, "/api/portfolios", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPortfolio returns one portfolio.
func (u *UserClient) GetPortfolio(ctx context.Context, id int64) (*Portfolio, error) {
	var out Portfolio
	if err := u.get(ctx, portfolioPath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePortfolio creates an empty portfolio named name.
func (u *UserClient) CreatePortfolio(ctx context.Context, name string) (*Portfolio, error) {
	var out Portfolio
	body := map[string]string{"name": name}
	if err := u.mutate(ctx, http.MethodPost, "/api/portfolios", body, &out, "/api/portfolios"); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePortfolio removes a portfolio and its holdings.
func (u *UserClient) DeletePortfolio(ctx context.Context, id int64) error {
	return u.mutate(ctx, http.MethodDelete, portfolioPath(id), nil, nil, "/api/portfolios")
}

// ListHoldings returns the holdings of a portfolio.
func (u *UserClient) ListHoldings(ctx context.Context, portfolioID int64) ([]Holding, error) {
	var out []Holding
	if err := u.get(ctx, portfolioPath(portfolioID)+"/holdings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddHolding adds a position to a portfolio.
func (u *UserClient) AddHolding(ctx context.Context, portfolioID int64, in HoldingInput) (*Holding, error) {
	var out Holding
	path := portfolioPath(portfolioID) + "/holdings"
	if err := u.mutate(ctx, http.MethodPost, path, in, &out, portfolioPath(portfolioID)); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateHolding changes a position's amounts. portfolioID scopes the cache
// invalidation; the backend addresses holdings directly.
func (u *UserClient) UpdateHolding(ctx context.Context, portfolioID, holdingID int64, in HoldingInput) (*Holding, error) {
	var out Holding
	in.Symbol = ""
	path := "/api/holdings/" + strconv.FormatInt(holdingID, 10)
	if err := u.mutate(ctx, http.MethodPut, path, in, &out, portfolioPath(portfolioID)); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteHolding removes a position.
func (u *UserClient) DeleteHolding(ctx context.Context, portfolioID, holdingID int64) error {
	path := "/api/holdings/" + strconv.FormatInt(holdingID, 10)
	return u.mutate(ctx, http.MethodDelete, path, nil, nil, portfolioPath(portfolioID))
}

// Analyze runs the analytics pipeline for a portfolio. The report is returned
// as the exact bytes the backend sent.
func (u *UserClient) Analyze(ctx context.Context, portfolioID int64) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/api/analytics/" + strconv.FormatInt(portfolioID, 10) + "/analyze"
	if err := u.c.do(ctx, u.token, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopPicks returns the curated stock list.
func (u *UserClient) TopPicks(ctx context.Context) ([]TopPick, error) {
	var out []TopPick
	if err := u.get(ctx, "/api/top-picks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Price returns the backend's live quote for symbol.
func (u *UserClient) Price(ctx context.Context, symbol string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := u.get(ctx, "/api/market/price/"+url.PathEscape(symbol), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get serves path from the response cache when possible.
func (u *UserClient) get(ctx context.Context, path string, out interface{}) error {
	if resp, ok := u.c.cache.Get(u.token, path); ok {
		u.c.logger.Debug().Str("path", path).Msg("backend cache hit")
		return decode(resp.Body, out)
	}
	body, err := u.c.send(ctx, u.token, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := decode(body, out); err != nil {
		return err
	}
	u.c.cache.Set(u.token, path, cache.Response{StatusCode: http.StatusOK, Body: body})
	return nil
}

// mutate issues a write and drops cached reads under invalidate. The cache
// is dropped even when the call fails, since the backend may have applied it.
func (u *UserClient) mutate(ctx context.Context, method, path string, in, out interface{}, invalidate string) error {
	err := u.c.do(ctx, u.token, method, path, in, out)
	if n := u.c.cache.InvalidatePrefix(u.token, invalidate); n > 0 {
		u.c.logger.Debug().Str("prefix", invalidate).Int("entries", n).Msg("backend cache invalidated")
	}
	return err
}

func (c *Client) do(ctx context.Context, token, method, path string, in, out interface{}) error {
	body, err := c.send(ctx, token, method, path, in)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *Client) send(ctx context.Context, token, method, path string, in interface{}) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// decode parses body into out. With a nil out the body is ignored, which
// covers the plain-text replies the backend sends for deletes.
func decode(body []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		if !json.Valid(body) {
			return fmt.Errorf("%w: not JSON", ErrBadResponse)
		}
		*raw = append(json.RawMessage(nil), body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return nil
}
