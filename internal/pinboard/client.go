package pinboard

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

// DefaultBaseURL is the Pinboard v1 API endpoint.
const DefaultBaseURL = "https://api.pinboard.in/v1"

// Pinboard asks clients to wait at least three seconds between requests.
const requestInterval = 3 * time.Second

// Client talks to the Pinboard v1 API. All requests carry the auth token
// and ask for JSON, and are rate-limited to the API's documented pace.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
	limiter   *rate.Limiter
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// AuthToken is the user:hex API token. Required.
	AuthToken string
	// BaseURL overrides the API endpoint. Tests point this at a local server.
	BaseURL string
	// Timeout is the per-request deadline. If <= 0, 30s.
	Timeout time.Duration
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   opts.BaseURL,
		authToken: opts.AuthToken,
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("auth_token", c.authToken)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pinboard API returned HTTP %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// LastUpdate returns the time of the most recent change to the user's
// bookmarks (posts/update). It is the cheap probe to decide whether a full
// delta listing is worth requesting.
func (c *Client) LastUpdate(ctx context.Context) (time.Time, error) {
	body, err := c.get(ctx, "/posts/update", nil)
	if err != nil {
		return time.Time{}, err
	}

	var payload struct {
		UpdateTime string `json:"update_time"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse posts/update response: %w", err)
	}
	return ParseTime(payload.UpdateTime)
}

// PostsSince lists all posts changed at or after since, in the order the
// API reports them (posts/all with fromdt). The zero time lists everything.
// The listing is finite and not restartable mid-stream: on failure, call
// again with the same since.
func (c *Client) PostsSince(ctx context.Context, since time.Time) ([]Post, error) {
	params := url.Values{}
	if !since.IsZero() {
		params.Set("fromdt", since.UTC().Format(time.RFC3339))
	}

	body, err := c.get(ctx, "/posts/all", params)
	if err != nil {
		return nil, err
	}

	var posts []Post
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, fmt.Errorf("failed to parse posts/all response: %w", err)
	}
	return posts, nil
}
