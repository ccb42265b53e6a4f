package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type Client struct {
	Client *github.Client
	HTTP   *http.Client
	Budget *RateBudget
}

type options struct {
	logger  *zap.Logger
	baseURL string
	budget  *RateBudget
}

type Option func(*options)

// WithLogger routes one debug line per API request and response to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBaseURL points the client at a GitHub Enterprise or test API root.
func WithBaseURL(raw string) Option {
	return func(o *options) {
		o.baseURL = raw
	}
}

// WithRateBudget shares budget between clients. By default each client
// tracks its own.
func WithRateBudget(budget *RateBudget) Option {
	return func(o *options) {
		o.budget = budget
	}
}

// loggingRoundTripper wraps an underlying transport and logs each request and
// response (including latency) at debug level.
type loggingRoundTripper struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.log.Debug("github api request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.log.Debug("github api error", zap.Duration("elapsed", dur), zap.Error(err))
	} else {
		t.log.Debug("github api response", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", dur))
	}
	return resp, err
}

func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	if o.budget == nil {
		o.budget = NewRateBudget()
	}

	transport := http.DefaultTransport
	if o.logger != nil {
		transport = &loggingRoundTripper{base: transport, log: o.logger}
	}
	transport = &rateLimitedTransport{base: transport, budget: o.budget}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	tc := &http.Client{Transport: transport}

	gh := github.NewClient(tc)
	if o.baseURL != "" {
		base := o.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github client: invalid base URL %q: %w", o.baseURL, err)
		}
		gh.BaseURL = u
		gh.UploadURL = u
	}

	return &Client{
		Client: gh,
		HTTP:   tc,
		Budget: o.budget,
	}, nil
}
