// options.go
// ----------
// Per-client configuration. Exactly four behavioral knobs are tunable —
// retry budget, base delay, delay cap, and per-attempt timeout — everything
// else (classification table, single-flight refresh, dedup scope) is fixed
// policy. The remaining options inject collaborators: transport, token
// store, logger, metrics, pacing.
package battlecard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	defaultBaseURL    = "http://localhost:8000/api/v1"
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 10 * time.Second
	defaultTimeout    = 30 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a backend, e.g.
// "https://api.battlecardhq.com/api/v1".
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithMaxRetries bounds how many times a transient failure is re-dispatched.
// Refresh and rate-limit waits do not consume this budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseDelay sets the first backoff step; attempt n waits base * 2^n
// plus jitter.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithMaxDelay caps any single backoff pause.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithTimeout bounds each individual attempt. Expiry is classified as a
// network fault and retried under the normal policy.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTransport swaps only the RoundTripper, keeping the default client.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Transport: rt}
	}
}

// WithTokenStore selects where the token pair is persisted. Defaults to an
// in-memory store; use NewKeyringStore or NewFileStore for durability across
// processes.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithLogger injects a structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(mc *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// WithRateLimit paces outbound exchanges with a token bucket, e.g.
// WithRateLimit(1, 5) for the backend's 60 req/min budget.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.pacer = newPacer(rps, burst)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// FromEnv derives options from the environment:
//
//	BATTLECARD_API_URL      base URL
//	BATTLECARD_TIMEOUT      per-attempt timeout, Go duration ("30s")
//	BATTLECARD_MAX_RETRIES  retry budget
//
// Unset or malformed variables are skipped, leaving the defaults.
func FromEnv() []Option {
	var opts []Option
	if u := os.Getenv("BATTLECARD_API_URL"); u != "" {
		opts = append(opts, WithBaseURL(u))
	}
	if v := os.Getenv("BATTLECARD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts = append(opts, WithTimeout(d))
		}
	}
	if v := os.Getenv("BATTLECARD_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts = append(opts, WithMaxRetries(n))
		}
	}
	return opts
}

// validate collects every configuration fault at once so a misconfigured
// client fails construction with the full picture.
func (c *Client) validate() error {
	var errs []error
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base URL %q is not an absolute http(s) URL", c.baseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("base URL scheme %q is not http(s)", u.Scheme))
	}
	if c.maxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries %d is negative", c.maxRetries))
	}
	if c.baseDelay <= 0 {
		errs = append(errs, fmt.Errorf("base delay %v is not positive", c.baseDelay))
	}
	if c.maxDelay < c.baseDelay {
		errs = append(errs, fmt.Errorf("max delay %v is below base delay %v", c.maxDelay, c.baseDelay))
	}
	if c.timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout %v is not positive", c.timeout))
	}
	return errors.Join(errs...)
}
