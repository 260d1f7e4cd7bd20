// Rate limited JSON client shared by the MonClub and Brevo services
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const defaultRetryBackoff = 500 * time.Millisecond

// ClientOptions configures an [APIClient].
type ClientOptions struct {
	Service    string // used in errors and log lines, e.g. "brevo"
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	RateLimit  float64 // requests per second, zero disables limiting
	RateBurst  int
	MaxRetries int
	Backoff    time.Duration
	Logger     *log.Logger
}

// APIClient performs JSON requests against one base URL.
//
// Every request waits on a token bucket limiter first. Responses with status 429, 502, 503 or 504
// are retried up to MaxRetries times with linear backoff; all other failures are returned at once.
type APIClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *log.Logger
}

// NewAPIClient creates a new API client from opts.
func NewAPIClient(opts ClientOptions) *APIClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	} else if opts.Timeout > 0 && client.Timeout == 0 {
		c := *client
		c.Timeout = opts.Timeout
		client = &c
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &APIClient{
		service:    opts.Service,
		baseURL:    opts.BaseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: max(opts.MaxRetries, 0),
		backoff:    backoff,
		logger:     logger,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Do sends a JSON request and decodes a successful response into result.
//
// body is marshalled as JSON when non-nil. result may be nil to discard the response.
// Non-2xx responses are returned as [*APIError].
func (c *APIClient) Do(ctx context.Context, method, endpoint string, headers http.Header, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = data
	}

	resp, err := c.send(ctx, method, endpoint, headers, payload)
	if err != nil {
		return err
	}

	if result != nil && len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Raw sends payload as-is and returns the response whatever its status.
func (c *APIClient) Raw(ctx context.Context, method, endpoint string, headers http.Header, payload []byte) (*APIResponse, error) {
	resp, err := c.roundTrip(ctx, method, endpoint, headers, payload)
	if err != nil {
		return nil, err
	}

	var jsonData any
	if err := json.Unmarshal(resp.Body, &jsonData); err == nil {
		resp.IsJSON = true
		resp.JSONData = jsonData
	}
	return resp, nil
}

func (c *APIClient) send(ctx context.Context, method, endpoint string, headers http.Header, payload []byte) (*APIResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.roundTrip(ctx, method, endpoint, headers, payload)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := newAPIError(c.service, method, endpoint, resp.StatusCode, resp.Body)
		if !apiErr.Retryable() || attempt >= c.maxRetries {
			return nil, apiErr
		}

		wait := c.backoff * time.Duration(attempt+1)
		c.logger.Debug("retrying request", "service", c.service, "endpoint", endpoint, "status", resp.StatusCode, "wait", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *APIClient) roundTrip(ctx context.Context, method, endpoint string, headers http.Header, payload []byte) (*APIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}
