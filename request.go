package battlecard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one logical call against the API. It is built once,
// handed to Do, and never mutated after dispatch; the executor derives a
// fresh wire request from it for every attempt.
type Request struct {
	Method string
	Path   string // relative to the client's base URL, e.g. "/battlecards"
	Query  url.Values
	Header http.Header

	// Body holds a fully marshaled payload. Replayed as-is on retries.
	Body        []byte
	ContentType string // defaults to application/json when Body is set

	// GetBody rebuilds a streaming body for each attempt; when set, Body is
	// ignored. Attempts beyond the first need it to rewind the stream, so a
	// nil factory on a streaming request disables retries for that call.
	GetBody func() (io.ReadCloser, error)

	// NoAuth skips the Authorization header for unauthenticated endpoints
	// such as login and refresh.
	NoAuth bool

	// NoDedupe opts a read out of in-flight coalescing.
	NoDedupe bool

	// Retryable overrides the default eligibility for the backoff path.
	// Unset means the classifier's verdict stands.
	Retryable *bool
}

func (r *Request) validate() error {
	if r == nil {
		return fmt.Errorf("battlecard: nil request")
	}
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead:
	default:
		return fmt.Errorf("battlecard: unsupported method %q", r.Method)
	}
	if r.Path == "" {
		return fmt.Errorf("battlecard: empty request path")
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("battlecard: request path %q must start with /", r.Path)
	}
	return nil
}

// bodyReader returns the payload for one attempt. The factory takes
// precedence so streaming bodies are rebuilt rather than replayed drained.
func (r *Request) bodyReader() (io.Reader, error) {
	if r.GetBody != nil {
		rc, err := r.GetBody()
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	if r.Body != nil {
		return bytes.NewReader(r.Body), nil
	}
	return nil, nil
}

// dedupable reports whether this request may share an in-flight exchange.
// Only side-effect-free reads coalesce; two identical writes are not
// necessarily redundant.
func (r *Request) dedupable() bool {
	if r.NoDedupe {
		return false
	}
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// requestKey builds the coalescing key for a read: FNV-64a over the method
// and the fully resolved URL, query string included.
func requestKey(method, resolvedURL string) string {
	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte(resolvedURL))
	return fmt.Sprintf("%x", h.Sum64())
}

// Response is the normalized outcome of a successful exchange. The body is
// fully read before the response is returned, so coalesced callers can all
// consume it independently.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("battlecard: empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("battlecard: decode response: %w", err)
	}
	return nil
}

// RequestID returns the trace identifier the server echoed back, if any.
func (r *Response) RequestID() string {
	return r.Header.Get(headerRequestID)
}
