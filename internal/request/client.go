package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tacosync/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Delay schedules for status-driven recovery. Auth rotation retries
// immediately once, then waits progressively longer before fetching a
// fresh token; rate-limit recovery keeps the same token and only waits.
var (
	authDelays = []time.Duration{0, 10 * time.Second, 60 * time.Second, 600 * time.Second}
	rateDelays = []time.Duration{5 * time.Second, 10 * time.Second, 30 * time.Second,
		60 * time.Second, 120 * time.Second, 300 * time.Second, 600 * time.Second}
)

// TokenFunc fetches a fresh access token from the tenant's token store.
type TokenFunc func(ctx context.Context) (string, error)

// Request describes one outbound call. Token is the credential for the
// first attempt; Refresh, when non-nil, enables auth rotation.
type Request struct {
	Method  string
	Path    string
	Token   string
	Refresh TokenFunc
	Query   url.Values
	Body    any
	Header  http.Header
}

// Client executes outbound HTTP calls with auth-rotation and
// rate-limit backoff state machines. It keeps no token state beyond
// the current call; callers own long-lived tokens.
type Client struct {
	name       string
	baseURL    string
	authHeader string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewClient constructs a client for one API. name labels logs and
// metrics.
func NewClient(name, baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		name:       name,
		baseURL:    baseURL,
		authHeader: "Authorization",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With().Str("component", "request").Str("api", name).Logger(),
		sleep:      time.Sleep,
	}
}

// UseAuthHeader overrides the header carrying the bearer token. The
// pricing-sync service expects "Authentication" instead of the
// standard header.
func (c *Client) UseAuthHeader(name string) {
	c.authHeader = name
}

// UseRateLimit enables client-side throttling of attempts. rps <= 0
// disables it.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Do executes the request and decodes the JSON payload into out (which
// may be nil). Failures are classified per status: 401/403 run the
// token-rotation schedule when Refresh is present, 429 runs the
// backoff schedule with the same token, 404 and everything else
// propagate without retry.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	status, err := c.attempt(ctx, req, req.Token, out)
	if err == nil {
		return nil
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return c.recoverAuth(ctx, req, status, err, out)
	case status == http.StatusTooManyRequests:
		return c.recoverRateLimit(ctx, req, err, out)
	default:
		return c.classify(status, req.Path, err)
	}
}

// recoverAuth walks the rotation schedule: wait, fetch a new token,
// retry. A failure of a different class aborts the loop immediately.
func (c *Client) recoverAuth(ctx context.Context, req Request, origStatus int, lastErr error, out any) error {
	if req.Refresh == nil {
		c.logger.Error().Int("status", origStatus).Str("path", req.Path).
			Msg("auth error and no token refresh available")
		return &AuthError{Status: origStatus, Path: req.Path}
	}

	lastStatus := origStatus
	for i, wait := range authDelays {
		if wait > 0 {
			c.logger.Warn().Int("status", origStatus).Str("path", req.Path).
				Dur("wait", wait).Int("attempt", i+1).Int("schedule", len(authDelays)).
				Msg("auth error, waiting before token rotation")
			c.sleep(wait)
		} else {
			c.logger.Warn().Int("status", origStatus).Str("path", req.Path).
				Int("attempt", i+1).Int("schedule", len(authDelays)).
				Msg("auth error, rotating token immediately")
		}

		metrics.IncAuthRotation(c.name)
		token, err := req.Refresh(ctx)
		if err != nil {
			c.logger.Error().Err(err).Str("path", req.Path).Msg("token refresh failed")
			lastErr = fmt.Errorf("token refresh: %w", err)
			break
		}
		if token == "" {
			c.logger.Error().Str("path", req.Path).Msg("token refresh returned empty token")
			break
		}

		status, err := c.attempt(ctx, req, token, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			c.logger.Error().Int("status", status).Str("path", req.Path).
				Msg("failure class changed during auth recovery, aborting")
			return c.classify(status, req.Path, err)
		}
		lastStatus = status
		c.logger.Warn().Int("status", status).Str("path", req.Path).
			Int("attempt", i+1).Int("schedule", len(authDelays)).
			Msg("still failing auth after token rotation")
	}

	c.logger.Error().Err(lastErr).Str("path", req.Path).Msg("auth recovery exhausted")
	return &AuthExhaustedError{Status: lastStatus, Path: req.Path, Err: lastErr}
}

// recoverRateLimit walks the 429 backoff schedule with the original
// token. A failure of a different class aborts the loop immediately.
func (c *Client) recoverRateLimit(ctx context.Context, req Request, lastErr error, out any) error {
	c.logger.Warn().Str("path", req.Path).Msg("rate limited, starting progressive backoff")

	for i, wait := range rateDelays {
		c.logger.Warn().Str("path", req.Path).Dur("wait", wait).
			Int("attempt", i+1).Int("schedule", len(rateDelays)).
			Msg("waiting before rate-limit retry")
		metrics.IncRateLimitWait(c.name)
		c.sleep(wait)

		status, err := c.attempt(ctx, req, req.Token, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if status != http.StatusTooManyRequests {
			c.logger.Error().Int("status", status).Str("path", req.Path).
				Msg("failure class changed during rate-limit recovery, aborting")
			return c.classify(status, req.Path, err)
		}
		c.logger.Warn().Str("path", req.Path).
			Int("attempt", i+1).Int("schedule", len(rateDelays)).
			Msg("still rate limited")
	}

	c.logger.Error().Err(lastErr).Str("path", req.Path).Msg("rate-limit recovery exhausted")
	return &RateLimitExhaustedError{Path: req.Path, Err: lastErr}
}

// classify maps a terminal failure to its error type.
func (c *Client) classify(status int, path string, err error) error {
	if status == http.StatusNotFound {
		c.logger.Warn().Str("path", path).Msg("resource not found, no retry")
		return &NotFoundError{Path: path}
	}
	return &RequestError{Status: status, Path: path, Err: err}
}

// attempt issues exactly one HTTP call. It returns (0, nil) on a
// decoded 2xx payload, otherwise the response status (0 for transport
// errors) and a raw error.
func (c *Client) attempt(ctx context.Context, req Request, token string, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	var bodyReader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return 0, fmt.Errorf("encode body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set(c.authHeader, "Bearer "+token)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.IncRequest(c.name, "transport_error")
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncRequest(c.name, "transport_error")
		return 0, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncRequest(c.name, fmt.Sprintf("status_%d", resp.StatusCode))
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, 512))
	}

	metrics.IncRequest(c.name, "ok")
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return 0, fmt.Errorf("decode response: %w", err)
		}
	}
	return 0, nil
}

func truncate(data []byte, max int) string {
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
