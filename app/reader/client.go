package reader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000

	tokenPrefix = "Auth="

	loginPath        = "/accounts/ClientLogin"
	subscriptionPath = "/reader/api/0/subscription/list"
	streamPath       = "/reader/api/0/stream/contents/"
)

type Config struct {
	BaseURL  string
	Account  string
	Password string

	// Optional access-gateway credentials sent with every request.
	GatewayClientID     string
	GatewayClientSecret string

	PageSize   int
	UserAgent  string
	HTTPClient *http.Client
}

// Client talks to a Google Reader compatible aggregator. The login token is
// cached for the lifetime of the instance; build a new Client to log in again.
type Client struct {
	baseURL    string
	account    string
	password   string
	gatewayID  string
	gatewayKey string
	pageSize   int
	userAgent  string
	httpClient *http.Client
	log        *slog.Logger

	mu    sync.RWMutex
	token string
	login singleflight.Group
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		account:    cfg.Account,
		password:   cfg.Password,
		gatewayID:  cfg.GatewayClientID,
		gatewayKey: cfg.GatewayClientSecret,
		pageSize:   pageSize,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		log:        logger,
	}
}

func (c *Client) PageSize() int {
	return c.pageSize
}

// Authenticate returns the cached token, logging in first if there is none.
// Concurrent callers share a single login request. The login is not tied to
// any one caller's ctx, so a caller that gives up does not fail the others;
// it is bounded by the HTTP client timeout.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if token := c.cachedToken(); token != "" {
		return token, nil
	}

	loginCtx := context.WithoutCancel(ctx)
	ch := c.login.DoChan("login", func() (any, error) {
		if token := c.cachedToken(); token != "" {
			return token, nil
		}

		token, err := c.clientLogin(loginCtx)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.token = token
		c.mu.Unlock()

		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", &AuthenticationError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	query := url.Values{"output": {"json"}}

	var resp subscriptionListResponse
	if err := c.get(ctx, "list subscriptions", subscriptionPath, query, &resp); err != nil {
		return nil, err
	}

	subscriptions := make([]Subscription, 0, len(resp.Subscriptions))
	for _, sub := range resp.Subscriptions {
		if sub.ID == "" {
			continue
		}
		subscriptions = append(subscriptions, sub.normalize())
	}

	c.log.Debug("Subscriptions listed", "count", len(subscriptions))

	return subscriptions, nil
}

// ListItems returns one page of a stream, newest first. When since is set only
// items published after it are requested.
func (c *Client) ListItems(ctx context.Context, streamID string, since *time.Time) ([]Item, error) {
	query := url.Values{
		"output": {"json"},
		"n":      {strconv.Itoa(c.pageSize)},
	}
	if since != nil {
		query.Set("ot", strconv.FormatInt(since.Unix(), 10))
	}

	var resp streamContentsResponse
	if err := c.get(ctx, "list items", streamPath+url.PathEscape(streamID), query, &resp); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID == "" {
			continue
		}
		items = append(items, item.normalize())
	}

	c.log.Debug("Stream items listed", "stream_id", streamID, "count", len(items), "has_more", resp.Continuation != "")

	return items, nil
}

func (c *Client) cachedToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) clientLogin(ctx context.Context) (string, error) {
	form := url.Values{
		"Email":  {c.account},
		"Passwd": {c.password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthenticationError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AuthenticationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthenticationError{StatusCode: resp.StatusCode, Reason: bodySnippet(resp.Body)}
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if token, ok := strings.CutPrefix(line, tokenPrefix); ok && token != "" {
			c.log.Debug("Logged in to aggregator", "account", c.account)
			return token, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", &AuthenticationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read login response: %w", err)}
	}

	return "", &AuthenticationError{StatusCode: resp.StatusCode, Reason: "no Auth line in login response"}
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, dest any) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "GoogleLogin auth="+token)
	req.Header.Set("Content-Type", "application/json")
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := bodySnippet(resp.Body)
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(reason)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.gatewayID != "" && c.gatewayKey != "" {
		req.Header.Set("CF-Access-Client-Id", c.gatewayID)
		req.Header.Set("CF-Access-Client-Secret", c.gatewayKey)
	}
}

func bodySnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(data))
}
