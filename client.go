// client.go
// ---------
// The client.go file contains the core Client struct and its methods. This is
// the main entry point of the SDK for users.
//
// Key functionalities include:
// - Initializing the client with New()
// - Making calls via Get/Post/Put/Delete/Upload or a raw Do()
// - Managing the session with SetTokenPair/Authenticated/Logout
//
// The Client relies on a TokenManager for credentials, a requestExecutor for
// retries and backoff, and an in-flight registry that coalesces concurrent
// identical reads, ensuring consistent behavior across every call path.
package battlecard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// headerRequestID carries the per-request trace identifier; the server echoes
// it back so client and backend logs line up.
const headerRequestID = "X-Request-ID"

// Client is a resilient HTTP client for the battlecard backend. It is safe
// for concurrent use; create one per backend and share it.
type Client struct {
	baseURL    string
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	timeout    time.Duration

	httpClient *http.Client
	store      TokenStore
	logger     *slog.Logger
	metrics    *MetricsCollector
	pacer      *pacer

	tokens   *TokenManager
	executor *requestExecutor
	inflight *dedupeRegistry
}

// New builds a client. Defaults: local backend, 3 retries, 1s base delay,
// 10s delay cap, 30s per-attempt timeout, in-memory token store, silent
// logger. All configuration faults are reported together.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent(),
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("battlecard: invalid configuration: %w", err)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")

	c.tokens = newTokenManager(c.store, c.logger)
	c.tokens.refresh = c.refreshExchange
	c.executor = newRequestExecutor(c)
	c.inflight = newDedupeRegistry()
	return c, nil
}

// Do executes one described call and returns the normalized response.
// Expected failures come back as an *Error envelope; only a malformed
// Request fails without one.
//
// Concurrent identical reads share a single underlying exchange. The owner
// of a coalesced read runs it detached from its own context so the callers
// that joined later still get their answer if the first one gives up.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	start := time.Now()
	defer func() {
		c.metrics.RecordDuration(req.Method, req.Path, time.Since(start))
	}()

	if req.dedupable() {
		key := requestKey(req.Method, c.resolveURL(req))
		entry, owner := c.inflight.claim(key)
		if owner {
			go func() {
				resp, err := c.executor.execute(context.WithoutCancel(ctx), req, requestID)
				c.inflight.settle(key, entry, resp, err)
			}()
		} else {
			c.metrics.RecordDedupHit(req.Path)
			c.logger.DebugContext(ctx, "joining in-flight read",
				"method", req.Method, "endpoint", req.Path, "request_id", requestID)
		}
		return entry.wait(ctx)
	}

	return c.executor.execute(ctx, req, requestID)
}

// Get issues a GET and decodes the JSON response into out. A nil out
// discards the body.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Post marshals body as JSON, issues a POST, and decodes the response into
// out. A []byte body is sent as-is.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	data, err := marshalBody(body)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: data})
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Put marshals body as JSON, issues a PUT, and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	data, err := marshalBody(body)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: data})
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Delete issues a DELETE and decodes any response body into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Upload streams file as multipart/form-data under fieldName, with extra
// form fields, and decodes the JSON response into out. When file is
// seekable the stream is rebuilt for retries; a non-seekable source sends
// exactly once and surfaces the failure if a retry would be needed.
func (c *Client) Upload(ctx context.Context, path, fieldName, fileName string, file io.Reader, extra map[string]string, out any) error {
	req := newUploadRequest(path, fieldName, fileName, file, extra)
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// SetTokenPair installs credentials obtained from login or an imported
// session, persists them, and lifts any session-expired state.
func (c *Client) SetTokenPair(ctx context.Context, pair *TokenPair) error {
	return c.tokens.SetTokenPair(ctx, pair)
}

// Authenticated reports whether the client holds an access token.
func (c *Client) Authenticated(ctx context.Context) bool {
	return c.tokens.Authenticated(ctx)
}

// Logout clears the token pair from memory and storage. The server-side
// logout call lives in the api package; this only drops local state.
func (c *Client) Logout(ctx context.Context) error {
	return c.tokens.Invalidate(ctx)
}

// BaseURL returns the resolved backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying http.Client. Callers that talk to the
// backend outside the resilient pipeline (the oauth2 login flow) reuse it so
// transport settings apply everywhere.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// refreshExchange performs the raw refresh call the token manager delegates
// to. One attempt, no retry loop: any failure here is terminal for the
// session.
func (c *Client) refreshExchange(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	req := &Request{Method: http.MethodPost, Path: "/auth/refresh", Body: body, NoAuth: true}
	requestID := uuid.NewString()
	c.logger.DebugContext(ctx, "refreshing token pair", "request_id", requestID)

	resp, err := c.executor.dispatch(ctx, req, requestID)
	if envelope := classify(req, requestID, resp, err); envelope != nil {
		return nil, envelope
	}
	var pair TokenPair
	if err := resp.JSON(&pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *Client) resolveURL(req *Request) string {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("battlecard: encode request body: %w", err)
	}
	return data, nil
}

func decodeInto(resp *Response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.JSON(out)
}

// newUploadRequest builds a streaming multipart request. The boundary is
// fixed up front so every attempt sends an identical Content-Type.
func newUploadRequest(path, fieldName, fileName string, file io.Reader, extra map[string]string) *Request {
	boundary := multipart.NewWriter(io.Discard).Boundary()

	seeker, seekable := file.(io.Seeker)
	var origin int64
	if seekable {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			seekable = false
		} else {
			origin = pos
		}
	}

	// Retries are strictly sequential for one request, so this guard needs
	// no locking.
	used := false
	makeBody := func() (io.ReadCloser, error) {
		if seekable {
			if _, err := seeker.Seek(origin, io.SeekStart); err != nil {
				return nil, fmt.Errorf("battlecard: rewind upload source: %w", err)
			}
		} else if used {
			return nil, ErrBodyNotReplayable
		}
		used = true

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		if err := mw.SetBoundary(boundary); err != nil {
			return nil, err
		}
		go func() {
			err := writeMultipart(mw, fieldName, fileName, file, extra)
			if cerr := mw.Close(); err == nil {
				err = cerr
			}
			pw.CloseWithError(err)
		}()
		return pr, nil
	}

	return &Request{
		Method:      http.MethodPost,
		Path:        path,
		GetBody:     makeBody,
		ContentType: "multipart/form-data; boundary=" + boundary,
	}
}

func writeMultipart(mw *multipart.Writer, fieldName, fileName string, file io.Reader, extra map[string]string) error {
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile(fieldName, fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
