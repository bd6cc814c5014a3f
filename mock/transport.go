// Package mock provides a scripted http.RoundTripper for exercising the
// client without a live backend. Install it with battlecard.WithTransport.
package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Record captures one request the transport served.
type Record struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type step struct {
	status int
	header http.Header
	body   []byte
	err    error
}

// Transport replays scripted responses in order, then falls back to its
// behavior knobs. The zero value serves 200 {"success":true} forever.
type Transport struct {
	// FailuresBeforeSuccess serves this many 503 responses before
	// switching to successes.
	FailuresBeforeSuccess int
	// Always429 makes every fallback response a 429.
	Always429 bool
	// RetryAfterSecs sets a Retry-After header on 429 and 503 fallback
	// responses when positive.
	RetryAfterSecs int

	mu      sync.Mutex
	steps   []step
	served  int
	records []Record
}

// Enqueue schedules a scripted response. Scripted responses are served
// before any knob-driven fallback, in FIFO order.
func (t *Transport) Enqueue(status int, body string, header http.Header) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, step{status: status, header: header, body: []byte(body)})
}

// EnqueueJSON schedules a scripted response with a JSON-encoded body.
func (t *Transport) EnqueueJSON(status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock: encode scripted body: %v", err))
	}
	t.Enqueue(status, string(body), nil)
}

// EnqueueError schedules a scripted failure in the backend's wire format.
func (t *Transport) EnqueueError(status int, code, message string) {
	t.EnqueueJSON(status, map[string]any{
		"error_code": code,
		"message":    message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// EnqueueNetError schedules a transport-level failure, as if the dial or
// read had failed.
func (t *Transport) EnqueueNetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, step{err: err})
}

// RoundTrip serves the next response. It records every request, scripted or
// not, including a copy of the body.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	t.mu.Lock()
	t.records = append(t.records, Record{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   body,
	})

	var next step
	if len(t.steps) > 0 {
		next = t.steps[0]
		t.steps = t.steps[1:]
	} else {
		next = t.fallbackLocked()
	}
	t.served++
	t.mu.Unlock()

	if next.err != nil {
		return nil, next.err
	}
	return response(req, next), nil
}

func (t *Transport) fallbackLocked() step {
	header := http.Header{}
	if t.RetryAfterSecs > 0 {
		header.Set("Retry-After", strconv.Itoa(t.RetryAfterSecs))
	}
	if t.Always429 {
		return step{status: http.StatusTooManyRequests, header: header, body: []byte(`{"error_code":"RATE_LIMIT_EXCEEDED","message":"Rate limit exceeded"}`)}
	}
	if t.served < t.FailuresBeforeSuccess {
		return step{status: http.StatusServiceUnavailable, header: header, body: []byte(`{"error_code":"EXTERNAL_SERVICE_ERROR","message":"Service unavailable"}`)}
	}
	return step{status: http.StatusOK, body: []byte(`{"success":true}`)}
}

// Requests returns a copy of every request served so far.
func (t *Transport) Requests() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Count reports how many requests the transport has served.
func (t *Transport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Reset drops the script, the counters and the recorded requests.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = nil
	t.served = 0
	t.records = nil
}

func response(req *http.Request, s step) *http.Response {
	header := http.Header{}
	for k, vals := range s.header {
		for _, v := range vals {
			header.Add(k, v)
		}
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", s.status, http.StatusText(s.status)),
		StatusCode:    s.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(s.body)),
		ContentLength: int64(len(s.body)),
		Request:       req,
	}
}
