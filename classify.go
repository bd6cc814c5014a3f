package battlecard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// wireError mirrors the backend's structured failure body.
type wireError struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
	Timestamp string         `json:"timestamp"`
}

// Classify converts the outcome of a raw exchange into the standard error
// envelope, or nil when the response indicates success. Flows that bypass
// the executor, such as the oauth2 login in the api package, use it to keep
// error semantics uniform.
func Classify(method, endpoint string, resp *Response, err error) *Error {
	if err == nil && resp == nil {
		return nil
	}
	return classify(&Request{Method: method, Path: endpoint}, "", resp, err)
}

// classify maps one raw transport outcome onto an envelope. A nil return
// means the exchange succeeded. The mapping is pure: no retries, no sleeps,
// no token state — the executor acts on the verdict.
func classify(req *Request, requestID string, resp *Response, err error) *Error {
	if err != nil {
		// Already classified upstream, e.g. a session-expired envelope from
		// the token manager.
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return apiErr
		}
		if errors.Is(err, ErrBodyNotReplayable) {
			return &Error{
				Kind:      KindUnclassified,
				Code:      "BODY_NOT_REPLAYABLE",
				Message:   "request body cannot be replayed for a retry",
				Timestamp: time.Now().UTC(),
				Retryable: false,
				Method:    req.Method,
				Endpoint:  req.Path,
				RequestID: requestID,
				Cause:     err,
			}
		}
		e := &Error{
			Kind:      KindNetwork,
			Code:      CodeNetworkError,
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
			Retryable: true,
			Method:    req.Method,
			Endpoint:  req.Path,
			RequestID: requestID,
			Cause:     err,
		}
		applyOverride(req, e)
		return e
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	e := &Error{
		Kind:       kindForStatus(resp.StatusCode),
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    http.StatusText(resp.StatusCode),
		Timestamp:  time.Now().UTC(),
		Retryable:  retryableStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		Endpoint:   req.Path,
		RequestID:  requestID,
	}

	var body wireError
	if len(resp.Body) > 0 && json.Unmarshal(resp.Body, &body) == nil && body.ErrorCode != "" {
		e.Code = body.ErrorCode
		e.Message = body.Message
		e.Details = body.Details
		if ts, perr := time.Parse(time.RFC3339, body.Timestamp); perr == nil {
			e.Timestamp = ts
		}
	}

	applyOverride(req, e)
	return e
}

func applyOverride(req *Request, e *Error) {
	if req.Retryable != nil {
		e.Retryable = *req.Retryable
	}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthExpired
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindUnclassified
	}
}

// retryableStatus implements the fixed policy: server faults and rate
// limiting are transient, every other status is not. 401 recovers through
// the refresh path, never through backoff.
func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
