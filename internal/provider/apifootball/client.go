// Package apifootball provides the HTTP client for the API-Football
// provider (fixtures and odds endpoints).
//
// The provider is metered and rate limited; every request goes through a
// shared token-bucket limiter, so callers issuing sequential per-fixture
// refreshes are paced automatically. Quota and plan restrictions (HTTP
// 403/429, or an errors object on a 200) surface as ErrQuota so callers
// can log them distinctly — there is no automatic remediation, callers
// treat them as "no data".
package apifootball

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://v3.football.api-sports.io"

// ErrQuota marks a quota or plan restriction from the provider.
var ErrQuota = errors.New("provider quota or plan restriction")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is the HTTP client for all API-Football endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an API-Football client. The limiter is shared by all
// upstream-calling components; pass the same instance everywhere.
func NewClient(baseURL, apiKey string, limiter *rate.Limiter, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		// Short finite timeout: one slow call must not stall a batch pass.
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    limiter,
		logger:     logger,
	}
}

// NewLimiter builds the shared token bucket from a requests-per-minute
// budget.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	rps := float64(requestsPerMinute) / 60.0
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// envelope is the common API-Football response wrapper. The errors field
// is an empty array when clean and an object when the plan rejects the
// request, hence the raw decode.
type envelope struct {
	Results  int                 `json:"results"`
	Errors   jsoniter.RawMessage `json:"errors"`
	Response jsoniter.RawMessage `json:"response"`
}

// get performs a rate-limited GET request to an API-Football endpoint.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-apisports-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrQuota, path, resp.StatusCode, truncate(body, 200))
	default:
		return nil, fmt.Errorf("API-Football %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
	}

	var result envelope
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// A 200 with a populated errors object still means the plan refused
	// the request (restricted endpoint, exhausted daily quota).
	if msg := apiErrors(result.Errors); msg != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrQuota, path, msg)
	}

	return &result, nil
}

// apiErrors extracts the error map from the envelope's errors field.
// Returns "" when the field is absent, an empty array, or an empty object.
func apiErrors(raw jsoniter.RawMessage) string {
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return ""
	}
	for k, v := range m {
		return k + ": " + v
	}
	return ""
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
