package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateBudget(t *testing.T) {
	fixedNow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	newBudget := func(remaining int, reset time.Time) *RateBudget {
		b := NewRateBudget()
		b.now = func() time.Time { return fixedNow }
		b.known = true
		b.remaining = remaining
		b.reset = reset
		return b
	}

	headers := func(kv ...string) *http.Response {
		resp := &http.Response{Header: http.Header{}}
		for i := 0; i+1 < len(kv); i += 2 {
			resp.Header.Set(kv[i], kv[i+1])
		}
		return resp
	}

	t.Run("wait spends remaining", func(t *testing.T) {
		b := newBudget(2, fixedNow.Add(time.Hour))
		for range 2 {
			if err := b.Wait(context.Background()); err != nil {
				t.Fatalf("Wait: %v", err)
			}
		}
		if got := b.Remaining(); got != 0 {
			t.Fatalf("Remaining = %d, want 0", got)
		}
	})

	t.Run("exhausted budget blocks until ctx ends", func(t *testing.T) {
		b := newBudget(0, fixedNow.Add(time.Hour))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Wait err = %v, want deadline exceeded", err)
		}
	})

	t.Run("observe releases waiters", func(t *testing.T) {
		b := newBudget(0, fixedNow.Add(time.Hour))
		done := make(chan error, 1)
		go func() { done <- b.Wait(context.Background()) }()

		time.Sleep(10 * time.Millisecond)
		b.Observe(headers("X-RateLimit-Remaining", "10"))

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Wait did not return after Observe")
		}
		if got := b.Remaining(); got != 9 {
			t.Fatalf("Remaining = %d, want 9", got)
		}
	})

	t.Run("single probe after reset", func(t *testing.T) {
		b := newBudget(0, fixedNow.Add(-time.Minute))
		if err := b.Wait(context.Background()); err != nil {
			t.Fatalf("probe Wait: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("second Wait err = %v, want deadline exceeded", err)
		}
	})

	t.Run("retry-after sets cooldown", func(t *testing.T) {
		b := newBudget(5, fixedNow.Add(time.Hour))
		b.Observe(headers("Retry-After", "30"))
		if want := fixedNow.Add(30 * time.Second); !b.cooldown.Equal(want) {
			t.Fatalf("cooldown = %v, want %v", b.cooldown, want)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Wait err = %v, want deadline exceeded", err)
		}
	})

	t.Run("observe reads reset", func(t *testing.T) {
		b := newBudget(5, fixedNow)
		reset := fixedNow.Add(42 * time.Minute)
		b.Observe(headers("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10)))
		if !b.reset.Equal(reset) {
			t.Fatalf("reset = %v, want %v", b.reset, reset)
		}
	})

	t.Run("malformed headers are ignored", func(t *testing.T) {
		b := newBudget(5, fixedNow.Add(time.Hour))
		b.Observe(headers("X-RateLimit-Remaining", "lots", "Retry-After", "soon"))
		if got := b.Remaining(); got != 5 {
			t.Fatalf("Remaining = %d, want 5", got)
		}
		if !b.cooldown.IsZero() {
			t.Fatalf("cooldown = %v, want zero", b.cooldown)
		}
	})

	t.Run("unknown limit does not throttle", func(t *testing.T) {
		b := NewRateBudget()
		for i := range 500 {
			if err := b.Wait(context.Background()); err != nil {
				t.Fatalf("Wait %d: %v", i, err)
			}
		}
		if got := b.Remaining(); got != -1 {
			t.Fatalf("Remaining = %d, want -1", got)
		}
	})

	t.Run("probe released after failed request", func(t *testing.T) {
		b := newBudget(0, fixedNow.Add(-time.Minute))
		if err := b.Wait(context.Background()); err != nil {
			t.Fatalf("probe Wait: %v", err)
		}
		done := make(chan error, 1)
		go func() { done <- b.Wait(context.Background()) }()

		time.Sleep(10 * time.Millisecond)
		b.Release()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Wait did not return after Release")
		}
	})

	t.Run("probe released by response without headers", func(t *testing.T) {
		b := newBudget(0, fixedNow.Add(-time.Minute))
		if err := b.Wait(context.Background()); err != nil {
			t.Fatalf("probe Wait: %v", err)
		}
		b.Observe(headers())
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait after headerless response: %v", err)
		}
	})

	t.Run("nil budget", func(t *testing.T) {
		var b *RateBudget
		b.Observe(headers("X-RateLimit-Remaining", "1"))
		if err := b.Wait(context.Background()); err == nil {
			t.Fatal("expected error from nil budget")
		}
	})
}

func TestClientTracksRateLimitHeaders(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "4321")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"full_name":"acme/widgets"}`))
	}))
	defer srv.Close()

	budget := NewRateBudget()
	c, err := NewClient(context.Background(), "", WithBaseURL(srv.URL), WithRateBudget(budget))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Budget != budget {
		t.Fatal("client did not keep the shared budget")
	}

	if _, err := c.GetRepository(context.Background(), RepoRef{Owner: "acme", Name: "widgets"}); err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
	if got := budget.Remaining(); got != 4321 {
		t.Fatalf("Remaining = %d, want 4321", got)
	}
}

func TestClientWithoutRateLimitHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"full_name":"acme/widgets"}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := range 100 {
		if _, err := c.GetRepository(ctx, RepoRef{Owner: "acme", Name: "widgets"}); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
}

func TestClientReleasesProbeOnTransportError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"full_name":"acme/widgets"}`))
	}))
	defer srv.Close()

	budget := NewRateBudget()
	budget.known = true
	budget.reset = time.Now().Add(-time.Minute)

	// The first request goes to a closed port and fails as the probe.
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bad, err := NewClient(ctx, "", WithBaseURL(deadURL), WithRateBudget(budget))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := bad.GetRepository(ctx, RepoRef{Owner: "acme", Name: "widgets"}); err == nil {
		t.Fatal("expected transport error")
	}

	good, err := NewClient(ctx, "", WithBaseURL(srv.URL), WithRateBudget(budget))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := good.GetRepository(ctx, RepoRef{Owner: "acme", Name: "widgets"}); err != nil {
		t.Fatalf("request after failed probe: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}
