package battlecard

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestParseRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"2", 2 * time.Second, true},
		{"0", 0, true},
		{" 5 ", 5 * time.Second, true},
		{"-1", 0, false},
		{"", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseRetryAfter(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseRetryAfter(%q) = %v, %t; want %v, %t", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(3 * time.Second).UTC().Format(http.TimeFormat)
	d, ok := parseRetryAfter(future)
	if !ok || d <= 0 || d > 3*time.Second {
		t.Errorf("parseRetryAfter(date) = %v, %t", d, ok)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if _, ok := parseRetryAfter(past); ok {
		t.Error("past date should not produce a wait")
	}
}

func TestParseRetryAfterCapped(t *testing.T) {
	d, ok := parseRetryAfter("86400") // a day
	if !ok || d != maxRetryAfter {
		t.Errorf("parseRetryAfter(86400) = %v, %t; want cap %v", d, ok, maxRetryAfter)
	}
}

func TestRetryAfterWaitFallback(t *testing.T) {
	if d := retryAfterWait(nil); d != rateLimitFallback {
		t.Errorf("nil response: %v, want fallback", d)
	}
	if d := retryAfterWait(&Response{StatusCode: 429, Header: http.Header{}}); d != rateLimitFallback {
		t.Errorf("missing header: %v, want fallback", d)
	}
	h := http.Header{}
	h.Set("Retry-After", "nonsense")
	if d := retryAfterWait(&Response{StatusCode: 429, Header: h}); d != rateLimitFallback {
		t.Errorf("garbage header: %v, want fallback", d)
	}
}

func TestRetryAfterWaitUsesHint(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	if d := retryAfterWait(&Response{StatusCode: 429, Header: h}); d != 7*time.Second {
		t.Errorf("got %v, want 7s", d)
	}
}

func TestNilPacerNeverBlocks(t *testing.T) {
	var p *pacer
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 1000; i++ {
		if err := p.waitForSlot(ctx); err != nil {
			t.Fatalf("nil pacer blocked: %v", err)
		}
	}
}

func TestPacerPacesRequests(t *testing.T) {
	p := newPacer(20, 1) // one immediate token, then 50ms apart
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.waitForSlot(ctx); err != nil {
			t.Fatalf("waitForSlot: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 slots at 20 rps took %v, want >= ~100ms", elapsed)
	}
}

func TestPacerHonorsContext(t *testing.T) {
	p := newPacer(0.1, 1) // 10s between tokens
	ctx := context.Background()
	if err := p.waitForSlot(ctx); err != nil {
		t.Fatalf("first slot: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	if err := p.waitForSlot(ctx); err == nil {
		t.Error("expected context error while waiting for a slot")
	}
}
