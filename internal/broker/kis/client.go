// Package kis implements the Korea Investment & Securities OpenAPI gateway:
// OAuth session management, hashkey-signed order calls and quote queries.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrAuthenticationFailed = errors.New("kis: authentication failed")

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("KIS API error (%d): %s", e.Status, e.Body)
}

const (
	tokenLifetime = 23 * time.Hour
	// Refresh ahead of expiry so in-flight requests never race the cutoff.
	tokenRefreshMargin = time.Hour

	serverErrorRetries = 2
	serverErrorBackoff = time.Second
)

// Client is the low-level HTTP client. It owns the OAuth token and signs
// order bodies with the hashkey endpoint. Safe for concurrent use.
type Client struct {
	host       string
	appKey     string
	appSecret  string
	httpClient *http.Client
	logger     *zap.Logger

	// test hook
	sleep func(time.Duration)

	mu        sync.Mutex
	token     string
	tokenType string
	expiresAt time.Time
}

func NewClient(httpClient *http.Client, host, appKey, appSecret string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		appKey:     appKey,
		appSecret:  appSecret,
		httpClient: httpClient,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// IsMock reports whether the host is the broker's mock (VTS) environment.
func (c *Client) IsMock() bool {
	return strings.Contains(strings.ToLower(c.host), "vts")
}

// TokenExpiresSoon reports whether the token is inside the refresh margin.
// The proactive refresh job uses this to renew before quotes start failing.
func (c *Client) TokenExpiresSoon() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token == "" || time.Until(c.expiresAt) < tokenRefreshMargin
}

func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expiresAt) {
		return nil
	}
	return c.refreshTokenLocked(ctx)
}

// ForceRefresh discards the current token and fetches a new one. Used by
// the token refresh job and the 401 retry path.
func (c *Client) ForceRefresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	return c.refreshTokenLocked(ctx)
}

func (c *Client) refreshTokenLocked(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"appsecret":  c.appSecret,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("token grant rejected",
			zap.Int("status", resp.StatusCode), zap.String("body", string(body)))
		return fmt.Errorf("%w: status %d", ErrAuthenticationFailed, resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("token response malformed: %w", err)
	}
	if parsed.AccessToken == "" {
		return fmt.Errorf("%w: empty access_token", ErrAuthenticationFailed)
	}

	c.token = parsed.AccessToken
	c.tokenType = parsed.TokenType
	if c.tokenType == "" {
		c.tokenType = "Bearer"
	}
	c.expiresAt = time.Now().Add(tokenLifetime)
	c.logger.Info("kis token refreshed", zap.Bool("mock", c.IsMock()))
	return nil
}

func (c *Client) hashkey(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+hashkeyPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("appKey", c.appKey)
	req.Header.Set("appSecret", c.appSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("hashkey request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("hashkey issue failed",
			zap.Int("status", resp.StatusCode), zap.String("body", string(raw)))
		return "", &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	var parsed struct {
		Hash string `json:"HASH"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("hashkey response malformed: %w", err)
	}
	return parsed.Hash, nil
}

func (c *Client) baseHeaders(trID string) http.Header {
	c.mu.Lock()
	auth := c.tokenType + " " + c.token
	c.mu.Unlock()
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("authorization", auth)
	h.Set("appkey", c.appKey)
	h.Set("appsecret", c.appSecret)
	h.Set("tr_id", trID)
	h.Set("custtype", "P")
	return h
}

// Get performs a quote-style GET. A 401 triggers one forced token refresh
// and a single retry.
func (c *Client) Get(ctx context.Context, path, trID string, params url.Values) ([]byte, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}
	body, status, err := c.doGet(ctx, path, trID, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.logger.Warn("kis 401, refreshing token and retrying", zap.String("path", path))
		if err := c.ForceRefresh(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.doGet(ctx, path, trID, params)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		c.logger.Error("kis GET failed",
			zap.Int("status", status), zap.String("path", path), zap.String("body", string(body)))
		return nil, statusError(status, body)
	}
	return body, nil
}

// statusError maps a terminal non-2xx status to its error. A 401 that
// survived the forced refresh means the credentials themselves are bad.
func statusError(status int, body []byte) error {
	apiErr := &APIError{Status: status, Body: string(body)}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, apiErr)
	}
	return apiErr
}

func (c *Client) doGet(ctx context.Context, path, trID string, params url.Values) ([]byte, int, error) {
	fullURL := c.host + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header = c.baseHeaders(trID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// Post performs an order-style POST with hashkey signing. A 401 triggers
// one forced refresh plus retry; a 5xx retries up to two more times with a
// one second pause.
func (c *Client) Post(ctx context.Context, path, trID string, payload any) ([]byte, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	body, status, err := c.doPost(ctx, path, trID, raw)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.logger.Warn("kis 401, refreshing token and retrying",
			zap.String("path", path), zap.String("tr_id", trID))
		if err := c.ForceRefresh(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.doPost(ctx, path, trID, raw)
		if err != nil {
			return nil, err
		}
	}
	for attempt := 0; status >= http.StatusInternalServerError && attempt < serverErrorRetries; attempt++ {
		c.logger.Warn("kis 5xx, retrying",
			zap.Int("status", status), zap.Int("attempt", attempt+1),
			zap.String("path", path), zap.String("tr_id", trID))
		c.sleep(serverErrorBackoff)
		body, status, err = c.doPost(ctx, path, trID, raw)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		c.logger.Error("kis POST failed",
			zap.Int("status", status), zap.String("path", path),
			zap.String("tr_id", trID), zap.String("body", string(body)))
		return nil, statusError(status, body)
	}
	return body, nil
}

func (c *Client) doPost(ctx context.Context, path, trID string, raw []byte) ([]byte, int, error) {
	hash, err := c.hashkey(ctx, raw)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header = c.baseHeaders(trID)
	req.Header.Set("hashkey", hash)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
