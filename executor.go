package battlecard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/battlecardhq/battlecard-go/internal/backoff"
)

// Retry reasons recorded in metrics and logs.
const (
	reasonNetwork     = "network"
	reasonServerFault = "server_fault"
	reasonAuthRefresh = "auth_refresh"
)

// requestExecutor drives one logical call through the retry state machine:
// dispatch, classify, then either back off and re-send, wait out a rate
// limit, refresh the token once, or surface the terminal envelope.
//
// The attempt counter only moves for network and server faults. Rate-limit
// waits and the single refresh are deliberately free so a flaky-but-valid
// session cannot starve itself out of its retry budget.
type requestExecutor struct {
	c *Client
}

func newRequestExecutor(c *Client) *requestExecutor {
	return &requestExecutor{c: c}
}

func (re *requestExecutor) execute(ctx context.Context, req *Request, requestID string) (*Response, error) {
	c := re.c
	attempt := 0
	refreshed := false

	for {
		if err := c.pacer.waitForSlot(ctx); err != nil {
			return nil, err
		}

		resp, err := re.dispatch(ctx, req, requestID)
		envelope := classify(req, requestID, resp, err)
		if envelope == nil {
			if attempt > 0 {
				c.logger.DebugContext(ctx, "request succeeded after retries",
					"method", req.Method, "endpoint", req.Path, "attempt", attempt+1, "request_id", requestID)
			}
			return resp, nil
		}
		envelope.Attempts = attempt + 1

		// The caller is gone; stop here rather than sleeping on its behalf.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch {
		case envelope.Kind == KindAuthExpired && !req.NoAuth && !refreshed:
			c.logger.DebugContext(ctx, "access token rejected, refreshing",
				"method", req.Method, "endpoint", req.Path, "request_id", requestID)
			if _, rerr := c.tokens.Refresh(ctx); rerr != nil {
				c.metrics.RecordRefresh(false)
				return nil, re.surface(ctx, rerr)
			}
			c.metrics.RecordRefresh(true)
			c.metrics.RecordRetry(req.Method, req.Path, reasonAuthRefresh)
			refreshed = true
			continue

		case envelope.Kind == KindRateLimited:
			wait := retryAfterWait(resp)
			c.logger.WarnContext(ctx, "rate limited, honoring wait hint",
				"method", req.Method, "endpoint", req.Path, "delay_ms", wait.Milliseconds(), "request_id", requestID)
			c.metrics.RecordRateLimitWait()
			if serr := sleepContext(ctx, wait); serr != nil {
				return nil, serr
			}
			continue

		case envelope.Retryable && attempt < c.maxRetries:
			delay := backoff.Delay(attempt, c.baseDelay, c.maxDelay)
			reason := reasonServerFault
			if envelope.Kind == KindNetwork {
				reason = reasonNetwork
			}
			c.logger.DebugContext(ctx, "transient failure, backing off",
				"method", req.Method, "endpoint", req.Path, "kind", string(envelope.Kind),
				"attempt", attempt+1, "max_retries", c.maxRetries, "delay_ms", delay.Milliseconds(), "request_id", requestID)
			c.metrics.RecordRetry(req.Method, req.Path, reason)
			if serr := sleepContext(ctx, delay); serr != nil {
				return nil, serr
			}
			attempt++
			continue

		default:
			return nil, re.surface(ctx, envelope)
		}
	}
}

// dispatch performs one wire exchange under the per-attempt timeout and
// returns a normalized response with the body fully read, so the outcome can
// be shared across coalesced callers and outlive the attempt context.
func (re *requestExecutor) dispatch(ctx context.Context, req *Request, requestID string) (*Response, error) {
	c := re.c

	var token string
	if !req.NoAuth {
		var err error
		token, err = c.tokens.EnsureAuthorized(ctx)
		if err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := req.bodyReader()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, c.resolveURL(req), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(headerRequestID, requestID)
	if body != nil {
		ct := req.ContentType
		if ct == "" {
			ct = "application/json"
		}
		httpReq.Header.Set("Content-Type", ct)
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}
	c.metrics.RecordRequest(req.Method, req.Path, resp.StatusCode)
	c.logger.DebugContext(ctx, "exchange complete",
		"method", req.Method, "endpoint", req.Path, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(), "request_id", requestID)
	return resp, nil
}

// surface records the terminal envelope before handing it to the caller.
func (re *requestExecutor) surface(ctx context.Context, err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		re.c.metrics.RecordError(apiErr.Kind)
		re.c.logger.DebugContext(ctx, "surfacing error envelope",
			"kind", string(apiErr.Kind), "code", apiErr.Code, "status", apiErr.StatusCode, "request_id", apiErr.RequestID)
	}
	return err
}

// sleepContext pauses for d or until the caller's context ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
