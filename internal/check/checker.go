// Package check looks up the repositories of a dataset partition on GitHub
// and reports whether each one is still reachable.
package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gogithub "github.com/google/go-github/v81/github"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"reposplit/internal/github"
)

// RepoFetcher is the subset of the GitHub client the checker needs.
type RepoFetcher interface {
	GetRepository(ctx context.Context, ref github.RepoRef) (*gogithub.Repository, error)
}

// Checker resolves dataset keys to repositories and looks each one up once.
type Checker struct {
	fetcher     RepoFetcher
	concurrency int
	log         *zap.Logger
	group       singleflight.Group
}

// New returns a Checker running at most concurrency lookups at once.
func New(f RepoFetcher, concurrency int, log *zap.Logger) (*Checker, error) {
	if f == nil {
		return nil, errors.New("repository fetcher is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{fetcher: f, concurrency: concurrency, log: log}, nil
}

// Run looks up every key and calls emit once per key, in the order of keys,
// from at most one goroutine at a time. Keys naming the same repository
// (case-insensitively) share one API call per run, whether the lookups
// overlap or not.
//
// Per-key lookup failures are reported as results. Run itself fails only when
// ctx ends or emit returns an error; results already emitted stay emitted.
func (c *Checker) Run(ctx context.Context, keys []string, emit func(Result) error) (Summary, error) {
	if ctx == nil {
		return Summary{}, errors.New("context is nil")
	}
	if emit == nil {
		emit = func(Result) error { return nil }
	}

	sum := Summary{Total: len(keys), Counts: make(map[Status]int)}
	results := make([]Result, len(keys))
	done := make([]bool, len(keys))
	next := 0
	var (
		mu      sync.Mutex
		emitErr error
	)

	// complete records slot i and emits every finished result that is now
	// contiguous with what has already been emitted.
	complete := func(i int, res Result) error {
		mu.Lock()
		defer mu.Unlock()
		if emitErr != nil {
			return emitErr
		}
		results[i] = res
		done[i] = true
		for next < len(keys) && done[next] {
			r := results[next]
			sum.Counts[r.Status]++
			if err := emit(r); err != nil {
				emitErr = fmt.Errorf("emit result for %q: %w", r.Key, err)
				return emitErr
			}
			next++
		}
		return nil
	}

	cache := &lookupCache{m: make(map[string]fetched)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

schedule:
	for i, key := range keys {
		ref, err := github.ParseRepoRef(key)
		if err != nil {
			c.log.Debug("skipping key", zap.String("key", key), zap.Error(err))
			if err := complete(i, Result{Key: key, Status: StatusInvalid, Message: "key is not an OWNER/REPO or github.com URL"}); err != nil {
				waitErr := g.Wait()
				return sum, errors.Join(err, waitErr)
			}
			continue
		}

		select {
		case <-gctx.Done():
			break schedule
		default:
		}

		g.Go(func() error {
			res, err := c.lookup(gctx, cache, key, ref)
			if err != nil {
				return err
			}
			return complete(i, res)
		})
	}

	if err := g.Wait(); err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

// fetched is the outcome of one GetRepository call.
type fetched struct {
	repo *gogithub.Repository
	err  error
}

// lookupCache keeps finished lookups for the rest of a run. singleflight only
// merges calls that overlap in time.
type lookupCache struct {
	mu sync.Mutex
	m  map[string]fetched
}

func (lc *lookupCache) get(key string) (fetched, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	f, ok := lc.m[key]
	return f, ok
}

func (lc *lookupCache) put(key string, f fetched) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.m[key] = f
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Checker) lookup(ctx context.Context, cache *lookupCache, key string, ref github.RepoRef) (Result, error) {
	cached := false
	v, err, shared := c.group.Do(ref.Key(), func() (interface{}, error) {
		if f, ok := cache.get(ref.Key()); ok {
			cached = true
			return f.repo, f.err
		}
		repo, err := c.fetcher.GetRepository(ctx, ref)
		if !isContextErr(err) {
			cache.put(ref.Key(), fetched{repo: repo, err: err})
		}
		return repo, err
	})
	c.log.Debug("looked up repository", zap.String("key", key), zap.Stringer("repo", ref), zap.Bool("shared", shared), zap.Bool("cached", cached), zap.Error(err))

	res := Result{Key: key, Repo: ref.String()}
	if err != nil {
		if isContextErr(err) {
			return Result{}, err
		}
		if github.IsNotFound(err) {
			res.Status = StatusMissing
			res.Message = "repository not found (deleted, renamed away, or private)"
			return res, nil
		}
		res.Status = StatusError
		res.Message = github.ErrorMessage(err)
		return res, nil
	}

	repo, _ := v.(*gogithub.Repository)
	if repo == nil {
		res.Status = StatusError
		res.Message = "empty repository response"
		return res, nil
	}

	res.Status = StatusActive
	if repo.GetArchived() {
		res.Status = StatusArchived
	}
	if full := repo.GetFullName(); full != "" {
		res.Repo = full
		if !strings.EqualFold(full, ref.String()) {
			res.Message = "renamed to " + full
		}
	}
	if repo.PushedAt != nil {
		t := repo.PushedAt.Time
		res.PushedAt = &t
	}
	return res, nil
}
