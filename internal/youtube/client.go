package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/tracing"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// Cost in YouTube quota units
	ListCost       = 1
	ModerationCost = 50
)

// Endpoint names used for metrics and logs
const (
	EndpointChannels       = "channels"
	EndpointPlaylistItems  = "playlistItems"
	EndpointCommentThreads = "commentThreads"
	EndpointSetModeration  = "comments.setModerationStatus"
)

const (
	maxLoggedResponseBytes = 4096
	defaultUpstreamTimeout = 60 * time.Second
)

// Response is a buffered upstream response
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Successful reports a 2xx status
func (r *Response) Successful() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Unauthorized reports a 401 status
func (r *Response) Unauthorized() bool {
	return r != nil && r.StatusCode == http.StatusUnauthorized
}

// Client calls the YouTube Data API with a caller supplied bearer token
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient creates a YouTube API client
func NewClient(cfg config.YouTubeConfig, logger *logging.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
		logger: logger.WithComponent("youtube"),
	}
}

// ListMyChannel fetches the authenticated user's channel
func (c *Client) ListMyChannel(ctx context.Context, accessToken string) (*Response, error) {
	query := url.Values{}
	query.Set("part", "id,contentDetails")
	query.Set("mine", "true")

	return c.do(ctx, EndpointChannels, http.MethodGet, "/channels", query, nil, accessToken)
}

// ListPlaylistItems fetches one page of a playlist
func (c *Client) ListPlaylistItems(ctx context.Context, accessToken, playlistID string, maxResults int, pageToken string) (*Response, error) {
	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("playlistId", playlistID)
	query.Set("maxResults", strconv.Itoa(maxResults))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	return c.do(ctx, EndpointPlaylistItems, http.MethodGet, "/playlistItems", query, nil, accessToken)
}

// ListCommentThreads fetches one page of top-level comments of a video
func (c *Client) ListCommentThreads(ctx context.Context, accessToken, videoID string, maxResults int, pageToken string) (*Response, error) {
	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("videoId", videoID)
	query.Set("maxResults", strconv.Itoa(maxResults))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	return c.do(ctx, EndpointCommentThreads, http.MethodGet, "/commentThreads", query, nil, accessToken)
}

// SetModerationStatus changes the moderation status of one comment
func (c *Client) SetModerationStatus(ctx context.Context, accessToken, commentID string, status models.ModerationStatus, banAuthor bool) (*Response, error) {
	form := url.Values{}
	form.Set("id", commentID)
	form.Set("moderationStatus", string(status))
	if banAuthor && status == models.ModerationRejected {
		form.Set("banAuthor", "true")
	}

	return c.do(ctx, EndpointSetModeration, http.MethodPost, "/comments/setModerationStatus", nil, form, accessToken)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query, form url.Values, accessToken string) (*Response, error) {
	span, ctx := tracing.StartSpan(ctx, "youtube."+endpoint)
	defer tracing.FinishSpan(span)

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		tracing.LogError(span, err)
		return nil, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordYouTubeRequest(endpoint, "error", duration.Seconds())
		c.logger.LogUpstreamCall(endpoint, 0, duration, nil, err)
		tracing.LogError(span, err)
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordYouTubeRequest(endpoint, "error", duration.Seconds())
		c.logger.LogUpstreamCall(endpoint, resp.StatusCode, duration, nil, err)
		tracing.LogError(span, err)
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	metrics.RecordYouTubeRequest(endpoint, strconv.Itoa(resp.StatusCode), duration.Seconds())
	c.logger.LogUpstreamCall(endpoint, resp.StatusCode, duration, truncate(data, maxLoggedResponseBytes), nil)
	tracing.SetTag(span, "http.status_code", resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Header:     resp.Header,
	}, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
