package battlecard

import (
	"context"
	"sync"
)

// pendingOutcome is one in-flight read shared between an owner and any
// callers that arrived while it was outstanding. The response body is a
// fully-read byte slice, so every waiter can consume it independently;
// waiters must treat it as read-only.
type pendingOutcome struct {
	done chan struct{}
	resp *Response
	err  error
}

// wait blocks until the owning exchange settles or the waiter's own context
// ends. The exchange itself keeps running for the remaining waiters.
func (p *pendingOutcome) wait(ctx context.Context) (*Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dedupeRegistry coalesces concurrent identical reads into one underlying
// exchange. An entry lives from first dispatch to settlement and is removed
// the moment the outcome lands, so a later identical read always triggers a
// fresh exchange instead of receiving a stale one.
type dedupeRegistry struct {
	mu      sync.Mutex
	entries map[string]*pendingOutcome
}

func newDedupeRegistry() *dedupeRegistry {
	return &dedupeRegistry{entries: make(map[string]*pendingOutcome)}
}

// claim returns the entry for key and whether the caller owns it. The owner
// must run the exchange and settle the entry; everyone else waits on it.
func (d *dedupeRegistry) claim(key string) (*pendingOutcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.entries[key]; ok {
		return entry, false
	}
	entry := &pendingOutcome{done: make(chan struct{})}
	d.entries[key] = entry
	return entry, true
}

// settle records the outcome, removes the entry, and releases the waiters.
func (d *dedupeRegistry) settle(key string, entry *pendingOutcome, resp *Response, err error) {
	d.mu.Lock()
	delete(d.entries, key)
	d.mu.Unlock()

	entry.resp = resp
	entry.err = err
	close(entry.done)
}

// inflight returns the number of outstanding entries.
func (d *dedupeRegistry) inflight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
