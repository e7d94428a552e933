// Package inference talks to the judol comment classification service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/tracing"
)

const (
	DefaultTimeout = 300 * time.Second

	// maxErrorBody bounds how much of a failed response is kept in errors
	maxErrorBody = 2048
)

var ErrIncompletePrediction = errors.New("prediction response is missing a result file")

// StatusError is returned for non-2xx responses of the classification service
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Prediction names the two result files produced for one upload
type Prediction struct {
	JudolResult    string `json:"judol_result"`
	NonJudolResult string `json:"non_judol_result"`
}

// Client calls the classification service
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient creates a classification service client
func NewClient(cfg config.InferenceConfig, logger *logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
		logger: logger.WithComponent("inference"),
	}
}

// Predict uploads a comment file and returns the names of the judol and
// non-judol result files.
func (c *Client) Predict(ctx context.Context, filename string, data []byte) (*Prediction, error) {
	span, ctx := tracing.StartSpan(ctx, "inference.Predict")
	defer tracing.FinishSpan(span)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create predict request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := c.send(req, "predict")
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}

	var prediction Prediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	if prediction.JudolResult == "" || prediction.NonJudolResult == "" {
		return nil, ErrIncompletePrediction
	}

	return &prediction, nil
}

// Download fetches one result file by the name Predict returned
func (c *Client) Download(ctx context.Context, id string) ([]byte, error) {
	span, ctx := tracing.StartSpan(ctx, "inference.Download")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "file", id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	body, err := c.send(req, "download")
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}
	return body, nil
}

func (c *Client) send(req *http.Request, endpoint string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.LogUpstreamCall("inference."+endpoint, 0, duration, nil, err)
		return nil, fmt.Errorf("inference %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		c.logger.LogUpstreamCall("inference."+endpoint, resp.StatusCode, duration, snippet, nil)
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	c.logger.LogUpstreamCall("inference."+endpoint, resp.StatusCode, duration, nil, nil)
	return body, nil
}
