package battlecard

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestClassifySuccessIsNil(t *testing.T) {
	req := &Request{Method: "GET", Path: "/x"}
	for _, status := range []int{200, 201, 204} {
		if e := classify(req, "rid", &Response{StatusCode: status}, nil); e != nil {
			t.Errorf("status %d: expected nil envelope, got %v", status, e)
		}
	}
}

func TestClassifyStatusTable(t *testing.T) {
	tests := []struct {
		status    int
		kind      Kind
		retryable bool
	}{
		{400, KindValidation, false},
		{401, KindAuthExpired, false},
		{403, KindForbidden, false},
		{404, KindNotFound, false},
		{409, KindUnclassified, false},
		{422, KindValidation, false},
		{429, KindRateLimited, true},
		{500, KindServer, true},
		{502, KindServer, true},
		{503, KindServer, true},
		{504, KindServer, true},
	}
	req := &Request{Method: "GET", Path: "/x"}
	for _, tt := range tests {
		e := classify(req, "rid", &Response{StatusCode: tt.status}, nil)
		if e == nil {
			t.Fatalf("status %d: expected envelope", tt.status)
		}
		if e.Kind != tt.kind {
			t.Errorf("status %d: kind = %s, want %s", tt.status, e.Kind, tt.kind)
		}
		if e.Retryable != tt.retryable {
			t.Errorf("status %d: retryable = %t, want %t", tt.status, e.Retryable, tt.retryable)
		}
		if e.StatusCode != tt.status {
			t.Errorf("status %d: StatusCode = %d", tt.status, e.StatusCode)
		}
	}
}

func TestClassifyUnstructuredBodySynthesizesCode(t *testing.T) {
	req := &Request{Method: "GET", Path: "/x"}
	e := classify(req, "rid", &Response{StatusCode: 503, Body: []byte("<html>oops</html>")}, nil)
	if e.Code != "HTTP_503" {
		t.Errorf("Code = %s, want HTTP_503", e.Code)
	}
	if e.Message != http.StatusText(503) {
		t.Errorf("Message = %q, want status text", e.Message)
	}
}

func TestClassifyStructuredBodyWins(t *testing.T) {
	body := []byte(`{
		"error_code": "VALIDATION_ERROR",
		"message": "title is required",
		"details": {"field": "title"},
		"timestamp": "2026-03-01T12:00:00Z"
	}`)
	req := &Request{Method: "POST", Path: "/battlecards"}
	e := classify(req, "rid", &Response{StatusCode: 422, Body: body}, nil)

	if e.Code != CodeValidationError {
		t.Errorf("Code = %s, want VALIDATION_ERROR", e.Code)
	}
	if e.Message != "title is required" {
		t.Errorf("Message = %q", e.Message)
	}
	if e.Details["field"] != "title" {
		t.Errorf("Details = %v", e.Details)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !e.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, want)
	}
	if e.Kind != KindValidation || e.Retryable {
		t.Errorf("kind/retryable = %s/%t", e.Kind, e.Retryable)
	}
}

func TestClassifyStructuredBodyKeepsStatusDerivedRetryable(t *testing.T) {
	// The body names the code; the status still decides retryability.
	body := []byte(`{"error_code": "DATABASE_ERROR", "message": "connection pool exhausted"}`)
	req := &Request{Method: "GET", Path: "/customers"}
	e := classify(req, "rid", &Response{StatusCode: 500, Body: body}, nil)
	if e.Code != CodeDatabaseError || !e.Retryable || e.Kind != KindServer {
		t.Errorf("got code=%s retryable=%t kind=%s", e.Code, e.Retryable, e.Kind)
	}
}

func TestClassifyMalformedJSONBody(t *testing.T) {
	req := &Request{Method: "GET", Path: "/x"}
	e := classify(req, "rid", &Response{StatusCode: 500, Body: []byte(`{"error_code": `)}, nil)
	if e.Code != "HTTP_500" {
		t.Errorf("Code = %s, want synthesized HTTP_500", e.Code)
	}
}

func TestClassifyNetworkFault(t *testing.T) {
	req := &Request{Method: "GET", Path: "/x"}
	cause := errors.New("dial tcp: connection refused")
	e := classify(req, "rid", nil, cause)
	if e.Kind != KindNetwork || e.Code != CodeNetworkError {
		t.Errorf("kind/code = %s/%s", e.Kind, e.Code)
	}
	if !e.Retryable {
		t.Error("network fault should be retryable")
	}
	if !errors.Is(e, cause) {
		t.Error("cause should be reachable via errors.Is")
	}
	if e.RequestID != "rid" || e.Method != "GET" || e.Endpoint != "/x" {
		t.Errorf("context fields = %s %s %s", e.RequestID, e.Method, e.Endpoint)
	}
}

func TestClassifyPassesThroughExistingEnvelope(t *testing.T) {
	orig := sessionExpiredError(nil)
	e := classify(&Request{Method: "GET", Path: "/x"}, "rid", nil, orig)
	if e != orig {
		t.Error("already-classified errors should pass through unchanged")
	}
}

func TestClassifyBodyNotReplayable(t *testing.T) {
	e := classify(&Request{Method: "POST", Path: "/upload"}, "rid", nil, ErrBodyNotReplayable)
	if e.Retryable {
		t.Error("non-replayable body must be terminal")
	}
	if !errors.Is(e, ErrBodyNotReplayable) {
		t.Error("sentinel should survive classification")
	}
}

func TestClassifyRetryableOverride(t *testing.T) {
	no := false
	req := &Request{Method: "GET", Path: "/x", Retryable: &no}
	e := classify(req, "rid", &Response{StatusCode: 503}, nil)
	if e.Retryable {
		t.Error("per-request override should force non-retryable")
	}

	yes := true
	req = &Request{Method: "GET", Path: "/x", Retryable: &yes}
	e = classify(req, "rid", &Response{StatusCode: 404}, nil)
	if !e.Retryable {
		t.Error("per-request override should force retryable")
	}
}

func TestClassifyDoesNotTreatCancellationAsEnvelope(t *testing.T) {
	// The executor checks ctx before consulting the envelope, but the
	// classifier itself still wraps a context error like any transport
	// fault; the distinction lives in the executor.
	e := classify(&Request{Method: "GET", Path: "/x"}, "rid", nil, context.Canceled)
	if e == nil || e.Kind != KindNetwork {
		t.Errorf("got %v", e)
	}
}

func TestClassifyPublicWrapper(t *testing.T) {
	if e := Classify("GET", "/x", nil, nil); e != nil {
		t.Errorf("nil outcome should classify as nil, got %v", e)
	}
	e := Classify("POST", "/auth/login", &Response{
		StatusCode: 401,
		Body:       []byte(`{"error_code":"INVALID_CREDENTIALS","message":"Incorrect email or password"}`),
	}, nil)
	if e == nil || e.Code != CodeInvalidCredentials || e.Kind != KindAuthExpired {
		t.Errorf("got %v", e)
	}
	if e.Endpoint != "/auth/login" {
		t.Errorf("Endpoint = %s", e.Endpoint)
	}
}
