// Package svcclient calls peer services over HTTP with per-attempt timeouts,
// exponential backoff retries and a normalized Result instead of Go errors.
package svcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds each individual attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxRetries is the default attempt budget per call.
	DefaultMaxRetries = 3
	// StatusNetworkError is reported when no HTTP response was received.
	StatusNetworkError = http.StatusInternalServerError
	// HealthPath is the liveness endpoint every peer exposes.
	HealthPath = "/health"

	userAgent        = "EasyHotel-ServiceClient/1.0"
	maxResponseBytes = 10 << 20
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder observes every attempt made by a Client.
type Recorder interface {
	ObserveServiceCall(service, method string, status int, success bool, elapsed time.Duration)
	ObserveServiceRetry(service string)
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Config configures a Client for one downstream service.
type Config struct {
	Name       string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Backoff    Backoff
	HTTPClient HTTPDoer
	Logger     *slog.Logger
	Recorder   Recorder
	// Wait overrides the backoff timer; nil uses a context-aware timer.
	Wait WaitFunc
}

// Result is the normalized outcome of a call. Success is true iff the final
// attempt got a 2xx response.
type Result struct {
	Data     json.RawMessage `json:"data"`
	Status   int             `json:"status"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Attempts int             `json:"-"`
}

// Decode unmarshals the response payload into v.
func (r Result) Decode(v any) error {
	if !r.Success {
		return fmt.Errorf("svcclient: decode failed result: %s", r.Error)
	}
	if len(r.Data) == 0 {
		return errors.New("svcclient: empty response body")
	}
	return json.Unmarshal(r.Data, v)
}

// Client is safe for concurrent use; every call owns its own retry state.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	backoff    Backoff
	http       HTTPDoer
	logger     *slog.Logger
	recorder   Recorder
	wait       WaitFunc
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("svcclient: %s: base url required", cfg.Name)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("svcclient: %s: invalid base url: %w", cfg.Name, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Wait == nil {
		cfg.Wait = timerWait
	}
	if cfg.Name == "" {
		cfg.Name = base
	}
	return &Client{
		name:       cfg.Name,
		baseURL:    base,
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		http:       cfg.HTTPClient,
		logger:     cfg.Logger,
		recorder:   cfg.Recorder,
		wait:       cfg.Wait,
	}, nil
}

// Name returns the downstream service name.
func (c *Client) Name() string {
	return c.name
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) Result {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) Result {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) Result {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) Result {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// HealthCheck reports whether the peer answers its liveness path with 200.
func (c *Client) HealthCheck(ctx context.Context) (healthy bool) {
	defer func() {
		if recover() != nil {
			healthy = false
		}
	}()
	res := c.Get(ctx, HealthPath)
	return res.Success && res.Status == http.StatusOK
}

// Do sends the request, retrying failed attempts with exponential backoff until the
// attempt budget is spent or ctx is done. It never returns a Go error: failures are
// reported through Result.
func (c *Client) Do(ctx context.Context, method, path string, body any) Result {
	payload, err := encodeBody(body)
	if err != nil {
		return Result{Status: http.StatusBadRequest, Error: err.Error()}
	}
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")

	for attempt := 1; ; attempt++ {
		res, retryable := c.attempt(ctx, method, target, payload)
		res.Attempts = attempt
		if res.Success || !retryable || attempt >= c.maxRetries {
			if !res.Success && c.logger != nil {
				c.logger.Warn("service call failed",
					slog.String("service", c.name),
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("status", res.Status),
					slog.Int("attempts", attempt),
					slog.String("error", res.Error),
				)
			}
			return res
		}

		delay := c.backoff.Delay(attempt)
		if c.logger != nil {
			c.logger.Debug("retrying service call",
				slog.String("service", c.name),
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
		}
		if c.recorder != nil {
			c.recorder.ObserveServiceRetry(c.name)
		}
		if err := c.wait(ctx, delay); err != nil {
			res.Error = fmt.Sprintf("%s (retry aborted: %v)", res.Error, err)
			return res
		}
	}
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte) (Result, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return Result{Status: http.StatusBadRequest, Error: err.Error()}, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, StatusNetworkError, false, started)
		return Result{Status: StatusNetworkError, Error: err.Error()}, true
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(method, resp.StatusCode, false, started)
		return Result{Status: resp.StatusCode, Error: fmt.Sprintf("read response: %v", err)}, true
	}
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.observe(method, resp.StatusCode, success, started)
	if !success {
		return Result{Data: asJSON(data), Status: resp.StatusCode, Error: errorMessage(data, resp.StatusCode)}, true
	}
	return Result{Data: asJSON(data), Status: resp.StatusCode, Success: true}, false
}

func (c *Client) observe(method string, status int, success bool, started time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveServiceCall(c.name, method, status, success, time.Since(started))
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("svcclient: encode body: %w", err)
		}
		return data, nil
	}
}

// asJSON keeps JSON payloads as-is and wraps anything else as a JSON string.
func asJSON(data []byte) json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}

func errorMessage(data []byte, status int) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return fmt.Sprintf("request failed with status code %d", status)
}

func timerWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
