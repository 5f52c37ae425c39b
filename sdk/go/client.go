package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dailyboard/core"
	"dailyboard/realtime"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the leaderboard HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// UpdateScore adds u.Delta to the player's score for today.
func (c *Client) UpdateScore(ctx context.Context, u ScoreUpdate) (UpdateResult, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return UpdateResult{}, err
	}
	var res UpdateResult
	err = c.do(ctx, http.MethodPost, c.baseURL+"/leaderboard/score/update", body, &res)
	return res, err
}

// Top fetches today's top n for mode. An empty region means every region and
// n <= 0 lets the server pick its default.
func (c *Client) Top(ctx context.Context, mode, region string, n int) (Top, error) {
	if strings.TrimSpace(mode) == "" {
		return Top{}, ErrEmptyMode
	}
	q := url.Values{}
	q.Set("mode", mode)
	if region != "" {
		q.Set("region", region)
	}
	if n > 0 {
		q.Set("n", strconv.Itoa(n))
	}
	var res Top
	err := c.do(ctx, http.MethodGet, c.baseURL+"/leaderboard/top?"+q.Encode(), nil, &res)
	return res, err
}

// Stats fetches today's player count and score total for mode.
func (c *Client) Stats(ctx context.Context, mode, region string) (core.Stats, error) {
	if strings.TrimSpace(mode) == "" {
		return core.Stats{}, ErrEmptyMode
	}
	q := url.Values{}
	q.Set("mode", mode)
	if region != "" {
		q.Set("region", region)
	}
	var res struct {
		Stats core.Stats `json:"stats"`
	}
	err := c.do(ctx, http.MethodGet, c.baseURL+"/leaderboard/stats?"+q.Encode(), nil, &res)
	return res.Stats, err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", nil, &hs)
	return hs, err
}

// Subscribe connects to the WebSocket stream and emits leaderboard pushes that
// match f. The returned channel closes when ctx is done or the connection drops.
func (c *Client) Subscribe(ctx context.Context, f Filter) (<-chan core.LeaderboardView, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.LeaderboardView, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var frame realtime.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Event != string(core.EventLeaderboardChanged) {
				continue
			}
			var view core.LeaderboardView
			if err := json.Unmarshal(frame.Data, &view); err != nil || !f.Match(view) {
				continue
			}
			select {
			case out <- view:
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
