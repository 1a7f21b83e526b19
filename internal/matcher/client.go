package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jobnest/apiserver/config"
	"github.com/jobnest/apiserver/internal/metrics"
	"github.com/jobnest/apiserver/internal/services"
)

const (
	matchPath        = "/api/v1/job-matcher"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 8 << 20
	maxErrorBody     = 512
)

// ErrMalformedResponse is returned when the matcher answers 2xx with a body
// that is not a matched_jobs document.
var ErrMalformedResponse = errors.New("malformed matcher response")

// StatusError is returned when the matcher answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("matcher returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("matcher returned status %d: %s", e.StatusCode, e.Body)
}

type matchResponse struct {
	MatchedJobs *[]json.RawMessage `json:"matched_jobs"`
}

// Client calls the external job matcher over HTTP.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// New constructs a Client for the matcher at cfg.BaseURL.
func New(cfg config.MatcherConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + matchPath,
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Rank sends the seeker profile and candidate jobs to the matcher and
// returns its ranked list unchanged.
func (c *Client) Rank(ctx context.Context, req services.MatchRequest) ([]json.RawMessage, error) {
	start := time.Now()
	ranked, outcome, err := c.rank(ctx, req)
	metrics.ObserveMatcherCall(outcome, time.Since(start))
	return ranked, err
}

func (c *Client) rank(ctx context.Context, req services.MatchRequest) ([]json.RawMessage, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, metrics.OutcomeTransport, fmt.Errorf("encode matcher request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, metrics.OutcomeTransport, fmt.Errorf("build matcher request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, metrics.OutcomeTransport, fmt.Errorf("call matcher: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, metrics.OutcomeStatus, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	var parsed matchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, metrics.OutcomeMalformed, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.MatchedJobs == nil {
		return nil, metrics.OutcomeMalformed, fmt.Errorf("%w: missing matched_jobs", ErrMalformedResponse)
	}
	return *parsed.MatchedJobs, metrics.OutcomeSuccess, nil
}
