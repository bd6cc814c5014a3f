package battlecard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL() != "http://localhost:8000/api/v1" {
		t.Errorf("base URL = %q", c.BaseURL())
	}
	if c.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", c.maxRetries)
	}
	if c.baseDelay != time.Second {
		t.Errorf("baseDelay = %v, want 1s", c.baseDelay)
	}
	if c.maxDelay != 10*time.Second {
		t.Errorf("maxDelay = %v, want 10s", c.maxDelay)
	}
	if c.timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.timeout)
	}
	if _, ok := c.store.(*MemoryStore); !ok {
		t.Errorf("default store = %T, want MemoryStore", c.store)
	}
	if c.httpClient == nil || c.logger == nil {
		t.Error("collaborators not defaulted")
	}
}

func TestNewCollectsConfigurationFaults(t *testing.T) {
	_, err := New(
		WithBaseURL("ftp://files.example.com"),
		WithMaxRetries(-1),
		WithBaseDelay(-time.Second),
		WithTimeout(0),
	)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	for _, want := range []string{"scheme", "negative", "not positive"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c, err := New(WithBaseURL("https://api.example.com/api/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL() != "https://api.example.com/api/v1" {
		t.Errorf("base URL = %q", c.BaseURL())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("BATTLECARD_API_URL", "https://env.example.com/api/v1")
	t.Setenv("BATTLECARD_TIMEOUT", "5s")
	t.Setenv("BATTLECARD_MAX_RETRIES", "7")

	c, err := New(FromEnv()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL() != "https://env.example.com/api/v1" {
		t.Errorf("base URL = %q", c.BaseURL())
	}
	if c.timeout != 5*time.Second {
		t.Errorf("timeout = %v", c.timeout)
	}
	if c.maxRetries != 7 {
		t.Errorf("maxRetries = %d", c.maxRetries)
	}
}

func TestFromEnvSkipsMalformedValues(t *testing.T) {
	t.Setenv("BATTLECARD_TIMEOUT", "soon")
	t.Setenv("BATTLECARD_MAX_RETRIES", "many")

	c, err := New(FromEnv()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.timeout != defaultTimeout || c.maxRetries != defaultMaxRetries {
		t.Errorf("malformed env leaked into config: timeout=%v retries=%d", c.timeout, c.maxRetries)
	}
}

func TestDoRejectsMalformedRequest(t *testing.T) {
	c := newTestClient(t, "http://localhost:1")
	_, err := c.Do(context.Background(), &Request{Method: "TRACE", Path: "/x"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		t.Errorf("malformed request should fail raw, got envelope %v", apiErr)
	}
}

func TestConcurrentReadsShareOneExchange(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		time.Sleep(100 * time.Millisecond)
		fmt.Fprintf(w, `{"n":%d}`, n)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx := context.Background()

	type result struct {
		n   int
		err error
	}
	results := make([]result, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 1 {
				time.Sleep(20 * time.Millisecond) // join while the first is in flight
			}
			var out struct {
				N int `json:"n"`
			}
			err := c.Get(ctx, "/battlecards", nil, &out)
			results[i] = result{out.N, err}
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.err != nil {
			t.Fatalf("caller %d: %v", i, r.err)
		}
	}
	if results[0].n != results[1].n {
		t.Errorf("coalesced callers saw different payloads: %d vs %d", results[0].n, results[1].n)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}

	// A call after settlement is a fresh exchange.
	var out struct {
		N int `json:"n"`
	}
	if err := c.Get(ctx, "/battlecards", nil, &out); err != nil {
		t.Fatalf("follow-up Get: %v", err)
	}
	if out.N != 2 || hits.Load() != 2 {
		t.Errorf("follow-up saw n=%d after %d exchanges, want a new exchange", out.N, hits.Load())
	}
}

func TestReadsWithDifferentQueryAreNotCoalesced(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	var wg sync.WaitGroup
	for _, page := range []string{"1", "2"} {
		wg.Add(1)
		go func(page string) {
			defer wg.Done()
			q := url.Values{"page": {page}}
			if err := c.Get(context.Background(), "/customers", q, nil); err != nil {
				t.Errorf("page %s: %v", page, err)
			}
		}(page)
	}
	wg.Wait()
	if got := hits.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2 for distinct queries", got)
	}
}

func TestWritesAreNeverCoalesced(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Post(context.Background(), "/battlecards", map[string]string{"title": "same"}, nil); err != nil {
				t.Errorf("Post: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := hits.Load(); got != 2 {
		t.Errorf("exchanges = %d, identical writes must both reach the wire", got)
	}
}

func TestCoalescedOwnerCancellationDoesNotStrandJoiners(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(150 * time.Millisecond)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	ownerCtx, cancel := context.WithCancel(context.Background())
	ownerErr := make(chan error, 1)
	go func() {
		ownerErr <- c.Get(ownerCtx, "/battlecards", nil, nil)
	}()

	time.Sleep(30 * time.Millisecond)
	joinerErr := make(chan error, 1)
	go func() {
		var out map[string]bool
		joinerErr <- c.Get(context.Background(), "/battlecards", nil, &out)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	if err := <-ownerErr; !errors.Is(err, context.Canceled) {
		t.Errorf("owner error = %v, want context.Canceled", err)
	}
	if err := <-joinerErr; err != nil {
		t.Errorf("joiner should still get the result: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
}

func TestUploadStreamsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			writeWireError(w, http.StatusBadRequest, CodeInvalidInput, "bad form")
			return
		}
		if got := r.FormValue("source"); got != "unit-test" {
			t.Errorf("form field source = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			writeWireError(w, http.StatusBadRequest, CodeInvalidInput, "missing file")
			return
		}
		defer file.Close()
		if header.Filename != "notes.txt" {
			t.Errorf("filename = %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "hello upload" {
			t.Errorf("file content = %q", data)
		}
		fmt.Fprint(w, `{"document_id":"doc-1","status":"uploaded"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	var out map[string]string
	err := c.Upload(context.Background(), "/ai/documents/upload", "file", "notes.txt",
		bytes.NewReader([]byte("hello upload")), map[string]string{"source": "unit-test"}, &out)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if out["document_id"] != "doc-1" {
		t.Errorf("decoded response = %v", out)
	}
}

func TestUploadRetriesFromSeekableSource(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			io.Copy(io.Discard, r.Body)
			writeWireError(w, http.StatusServiceUnavailable, CodeExternalAPIError, "try again")
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart on retry: %v", err)
			writeWireError(w, http.StatusBadRequest, CodeInvalidInput, "bad form")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file on retry: %v", err)
			writeWireError(w, http.StatusBadRequest, CodeInvalidInput, "missing file")
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "retried payload" {
			t.Errorf("retry resent %q, want the full original stream", data)
		}
		fmt.Fprint(w, `{"status":"uploaded"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.Upload(context.Background(), "/ai/documents/upload", "file", "data.bin",
		bytes.NewReader([]byte("retried payload")), nil, nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
}

func TestUploadNonSeekableSourceCannotRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.Copy(io.Discard, r.Body)
		writeWireError(w, http.StatusServiceUnavailable, CodeExternalAPIError, "down")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	// Hide the Seeker so the stream can only be sent once.
	source := struct{ io.Reader }{strings.NewReader("one-shot")}
	err := c.Upload(context.Background(), "/ai/documents/upload", "file", "data.bin", source, nil, nil)

	if !errors.Is(err, ErrBodyNotReplayable) {
		t.Fatalf("error = %v, want ErrBodyNotReplayable", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("exchanges = %d, the stream must not be re-sent", got)
	}
}

func TestLogoutDropsCredentialsWithoutPoisoning(t *testing.T) {
	var mu sync.Mutex
	auth := []string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	seedClient(t, c, "tok", "ref")
	ctx := context.Background()

	if !c.Authenticated(ctx) {
		t.Fatal("expected authenticated after seeding")
	}
	if err := c.Get(ctx, "/a", nil, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.Authenticated(ctx) {
		t.Error("still authenticated after logout")
	}
	// Anonymous calls keep working; logout is not a session teardown.
	if err := c.Get(ctx, "/b", nil, nil); err != nil {
		t.Fatalf("Get after logout: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if auth[0] != "Bearer tok" {
		t.Errorf("first call Authorization = %q", auth[0])
	}
	if auth[1] != "" {
		t.Errorf("post-logout Authorization = %q, want none", auth[1])
	}
}

func TestGetDiscardsBodyWithNilOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"huge":"payload"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	if err := c.Get(context.Background(), "/x", nil, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestPostSendsRawBytesVerbatim(t *testing.T) {
	var mu sync.Mutex
	var got []byte
	var ct string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = body
		ct = r.Header.Get("Content-Type")
		mu.Unlock()
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	raw := []byte(`{"pre":"encoded"}`)
	if err := c.Post(context.Background(), "/x", raw, nil); err != nil {
		t.Fatalf("Post: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(got, raw) {
		t.Errorf("body = %s, want verbatim bytes", got)
	}
	if ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}
