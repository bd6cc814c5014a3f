// limiter.go
// ----------
// Outbound pacing. The client can rate-limit its own exchanges with a token
// bucket so it stays under the backend's request budget, and it honors the
// wait hint the server attaches to 429 responses when it still trips the
// limit. Rate-limit waits never count against the retry budget.
package battlecard

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// rateLimitFallback is slept when a 429 carries no usable wait hint.
	rateLimitFallback = time.Second

	// maxRetryAfter caps server wait hints at something sane so a bad
	// header cannot park a call for days.
	maxRetryAfter = time.Hour
)

// pacer gates outbound exchanges on a token bucket. A nil pacer (the
// default) lets everything through.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(rps float64, burst int) *pacer {
	return &pacer{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// waitForSlot blocks until the bucket grants a token or ctx ends.
func (p *pacer) waitForSlot(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// retryAfterWait extracts the server's wait hint from a 429 response,
// falling back to a fixed pause when the hint is missing or unparsable.
func retryAfterWait(resp *Response) time.Duration {
	if resp == nil {
		return rateLimitFallback
	}
	if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
		return d
	}
	return rateLimitFallback
}

// parseRetryAfter handles both header forms: delta seconds and an HTTP date.
func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return min(time.Duration(secs)*time.Second, maxRetryAfter), true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0, false
		}
		return min(d, maxRetryAfter), true
	}
	return 0, false
}
