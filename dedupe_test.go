package battlecard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDedupeClaimOwnership(t *testing.T) {
	reg := newDedupeRegistry()

	entry, owner := reg.claim("k")
	if !owner {
		t.Fatal("first claim should own the entry")
	}
	if _, owner2 := reg.claim("k"); owner2 {
		t.Fatal("second claim for a live key should not own")
	}
	if reg.inflight() != 1 {
		t.Errorf("inflight = %d, want 1", reg.inflight())
	}

	reg.settle("k", entry, &Response{StatusCode: 200}, nil)
	if reg.inflight() != 0 {
		t.Errorf("inflight after settle = %d, want 0", reg.inflight())
	}

	// The key is free again: next claim owns a fresh entry.
	if _, owner3 := reg.claim("k"); !owner3 {
		t.Error("claim after settle should own a fresh entry")
	}
}

func TestDedupeWaitersShareOutcome(t *testing.T) {
	reg := newDedupeRegistry()
	entry, _ := reg.claim("k")

	want := &Response{StatusCode: 200, Body: []byte(`{"id":1}`)}
	var wg sync.WaitGroup
	results := make([]*Response, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			waiter, owner := reg.claim("k")
			if owner {
				t.Error("waiter should not own a live entry")
				return
			}
			resp, err := waiter.wait(context.Background())
			if err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			results[i] = resp
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	reg.settle("k", entry, want, nil)
	wg.Wait()

	for i, resp := range results {
		if resp != want {
			t.Errorf("waiter %d got %v, want shared response", i, resp)
		}
	}
}

func TestDedupeErrorPropagatesToWaiters(t *testing.T) {
	reg := newDedupeRegistry()
	entry, _ := reg.claim("k")
	waiter, _ := reg.claim("k")

	boom := errors.New("exchange failed")
	go reg.settle("k", entry, nil, boom)

	resp, err := waiter.wait(context.Background())
	if resp != nil || !errors.Is(err, boom) {
		t.Errorf("wait = %v, %v; want nil, boom", resp, err)
	}
}

func TestDedupeWaitHonorsContext(t *testing.T) {
	reg := newDedupeRegistry()
	reg.claim("k") // never settled

	waiter, _ := reg.claim("k")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := waiter.wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("wait = %v, want deadline exceeded", err)
	}
}

func TestDedupeDistinctKeysDoNotShare(t *testing.T) {
	reg := newDedupeRegistry()
	if _, owner := reg.claim("a"); !owner {
		t.Error("first key should own")
	}
	if _, owner := reg.claim("b"); !owner {
		t.Error("distinct key should own its own entry")
	}
	if reg.inflight() != 2 {
		t.Errorf("inflight = %d, want 2", reg.inflight())
	}
}
