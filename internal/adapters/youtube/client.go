// Package youtube adapts the YouTube Data API v3 search and video endpoints to
// ports.VideoSearcher.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
	"github.com/ewilliams-labs/cratedigger/internal/retry"
)

// DefaultBaseURL is the public Data API root.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

const musicCategoryID = "10"

// Client is an HTTP client for the YouTube Data API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	policy     retry.Policy
	logger     *slog.Logger
}

// compile-time interface assertion
var _ ports.VideoSearcher = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithBaseURL points the client at another API root, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(cl *Client) {
		if u != "" {
			cl.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithAccessToken authenticates with a bearer token instead of, or as well
// as, the API key.
func WithAccessToken(ctx context.Context, token string) Option {
	return func(cl *Client) {
		if token == "" {
			return
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		if cl.httpClient != nil && cl.httpClient != http.DefaultClient {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, cl.httpClient)
		}
		cl.httpClient = oauth2.NewClient(ctx, src)
	}
}

// WithRetryPolicy overrides the transient-error policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(cl *Client) {
		cl.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient constructs a client authenticated by apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		policy:     retry.DefaultPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "youtube")
	c.policy.Logger = c.logger
	return c
}

// Search runs a video search and returns hits in rank order.
func (c *Client) Search(ctx context.Context, q ports.SearchQuery) ([]ports.SearchHit, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", q.Query)
	if q.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(q.MaxResults))
	}
	if q.Category == "music" {
		params.Set("videoCategoryId", musicCategoryID)
	}
	if q.DurationBucket != "" {
		params.Set("videoDuration", q.DurationBucket)
	}

	var resp searchResponse
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return nil, err
	}

	hits := make([]ports.SearchHit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		hits = append(hits, ports.SearchHit{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			ChannelName: item.Snippet.ChannelTitle,
		})
	}
	return hits, nil
}

// Details fetches title, channel and duration for the given ids.
func (c *Client) Details(ctx context.Context, ids []string) ([]ports.VideoDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("part", "contentDetails,snippet")
	params.Set("id", strings.Join(ids, ","))

	var resp videosResponse
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return nil, err
	}

	out := make([]ports.VideoDetail, 0, len(resp.Items))
	for _, item := range resp.Items {
		seconds, err := ParseDuration(item.ContentDetails.Duration)
		if err != nil {
			c.logger.Debug("unparseable duration", "video_id", item.ID, "duration", item.ContentDetails.Duration)
		}
		out = append(out, ports.VideoDetail{
			ID:              item.ID,
			Title:           item.Snippet.Title,
			ChannelName:     item.Snippet.ChannelTitle,
			DurationSeconds: float64(seconds),
		})
	}
	return out, nil
}

// get performs a GET with retry on transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, path, params.Encode())

	res := retry.Do(ctx, c.policy.Named("youtube "+path), func(ctx context.Context, _ int) ([]byte, error) {
		return c.fetch(ctx, endpoint)
	})
	body, err := res.Unwrap()
	if err != nil {
		return fmt.Errorf("youtube adapter: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("youtube adapter: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	// #nosec G107 -- URL built from the configured API root
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, &retry.AfterError{
			Err:   &StatusError{Code: resp.StatusCode, Message: apiMessage(body)},
			After: parseRetryAfter(resp),
		}
	default:
		return nil, retry.Permanent(&StatusError{Code: resp.StatusCode, Message: apiMessage(body)})
	}
}

// StatusError is a non-200 API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func apiMessage(body []byte) string {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Error.Message
}

func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}

	return 0
}
