package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateBudget tracks the REST rate limit GitHub reports in response headers
// and holds requests back when it is spent or a Retry-After is in force.
//
// Until a response carries X-RateLimit-Remaining the limit is unknown and
// requests are not throttled. GitHub Enterprise servers with rate limiting
// disabled never send the headers.
type RateBudget struct {
	mu        sync.Mutex
	known     bool
	remaining int
	reset     time.Time
	cooldown  time.Time
	probing   bool
	now       func() time.Time
	changed   chan struct{}
}

func NewRateBudget() *RateBudget {
	return &RateBudget{
		now:     time.Now,
		changed: make(chan struct{}),
	}
}

// Remaining reports the requests left in the current window, or -1 while the
// limit is unknown.
func (b *RateBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.known {
		return -1
	}
	return b.remaining
}

// Wait blocks until one request may be sent or ctx ends.
func (b *RateBudget) Wait(ctx context.Context) error {
	if b == nil {
		return fmt.Errorf("rate budget is nil")
	}
	for {
		b.mu.Lock()
		now := b.now()
		changed := b.changed

		var until time.Time
		switch {
		case now.Before(b.cooldown):
			until = b.cooldown
		case !b.known:
			b.mu.Unlock()
			return nil
		case b.remaining > 0:
			b.remaining--
			b.mu.Unlock()
			return nil
		case !now.Before(b.reset):
			// Window should have rolled over: let one request through to
			// learn the new numbers. Others wait for its response.
			if !b.probing {
				b.probing = true
				b.mu.Unlock()
				return nil
			}
		default:
			until = b.reset
		}
		b.mu.Unlock()

		if err := waitFor(ctx, changed, until, now); err != nil {
			return err
		}
	}
}

// waitFor returns when ctx ends, changed is closed, or until passes. A zero
// until waits on ctx and changed only.
func waitFor(ctx context.Context, changed <-chan struct{}, until, now time.Time) error {
	var timeout <-chan time.Time
	if !until.IsZero() {
		timer := time.NewTimer(max(until.Sub(now), 0))
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
	case <-timeout:
	}
	return nil
}

// Observe updates the budget from X-RateLimit-* and Retry-After headers. Any
// response ends an outstanding probe, so the next waiter may try again even
// when the headers are missing.
func (b *RateBudget) Observe(resp *http.Response) {
	if b == nil || resp == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	updated := b.probing
	b.probing = false
	if v, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && v > 0 {
		if until := b.now().Add(time.Duration(v) * time.Second); until.After(b.cooldown) {
			b.cooldown = until
			updated = true
		}
	}
	if v, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil && v >= 0 {
		if !b.known || v != b.remaining {
			b.known = true
			b.remaining = v
			updated = true
		}
	}
	if v, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && v > 0 {
		if reset := time.Unix(v, 0); !reset.Equal(b.reset) {
			b.reset = reset
			updated = true
		}
	}

	if updated {
		b.signalLocked()
	}
}

// Release ends an outstanding probe whose request failed before a response
// arrived.
func (b *RateBudget) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.probing {
		b.probing = false
		b.signalLocked()
	}
}

func (b *RateBudget) signalLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

type rateLimitedTransport struct {
	base   http.RoundTripper
	budget *RateBudget
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.budget.Wait(req.Context()); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.budget.Release()
		return nil, err
	}
	t.budget.Observe(resp)
	return resp, nil
}
