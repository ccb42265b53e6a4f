package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v81/github"
)

// ErrInvalidRepoRef marks a dataset key that does not name a GitHub repository.
var ErrInvalidRepoRef = errors.New("not a GitHub repository reference")

type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string { return r.Owner + "/" + r.Name }

// Key is the case-insensitive identity GitHub uses for owner/name.
func (r RepoRef) Key() string { return strings.ToLower(r.String()) }

// ParseRepoRef accepts OWNER/REPO or a github.com URL:
//
//	octo/widgets
//	github.com/octo/widgets
//	https://github.com/octo/widgets.git
//	https://www.github.com/octo/widgets/tree/main
func ParseRepoRef(raw string) (RepoRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RepoRef{}, fmt.Errorf("%q: %w", raw, ErrInvalidRepoRef)
	}

	if strings.HasPrefix(s, "github.com/") || strings.HasPrefix(s, "www.github.com/") {
		s = "https://" + s
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return RepoRef{}, fmt.Errorf("%q: %w", raw, ErrInvalidRepoRef)
		}
		host := strings.ToLower(u.Hostname())
		if host != "github.com" && host != "www.github.com" {
			return RepoRef{}, fmt.Errorf("%q: %w", raw, ErrInvalidRepoRef)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) < 2 {
			return RepoRef{}, fmt.Errorf("%q: %w", raw, ErrInvalidRepoRef)
		}
		return newRepoRef(raw, parts[0], parts[1])
	}

	owner, name, ok := strings.Cut(s, "/")
	if !ok || strings.Contains(name, "/") {
		return RepoRef{}, fmt.Errorf("%q: %w", raw, ErrInvalidRepoRef)
	}
	return newRepoRef(raw, owner, name)
}

func newRepoRef(raw, owner, name string) (RepoRef, error) {
	owner = strings.TrimSpace(owner)
	name = strings.TrimSuffix(strings.TrimSpace(name), ".git")
	if owner == "" || name == "" || strings.ContainsAny(owner+name, " \t?#") {
		return RepoRef{}, fmt.Errorf("%q: %w", raw, ErrInvalidRepoRef)
	}
	return RepoRef{Owner: owner, Name: name}, nil
}

// GetRepository fetches repository metadata for ref.
func (c *Client) GetRepository(ctx context.Context, ref RepoRef) (*github.Repository, error) {
	if c == nil || c.Client == nil {
		return nil, errors.New("github client is nil")
	}
	repo, _, err := c.Client.Repositories.Get(ctx, ref.Owner, ref.Name)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// IsNotFound reports whether err is a GitHub 404. Private repositories the
// token cannot see are reported the same way by the API.
func IsNotFound(err error) bool {
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// ErrorMessage renders err without the request URL that go-github embeds.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) {
		msg := strings.TrimSpace(er.Message)
		if er.Response == nil {
			return msg
		}
		status := fmt.Sprintf("%d %s", er.Response.StatusCode, http.StatusText(er.Response.StatusCode))
		if msg == "" {
			return status
		}
		return status + ": " + msg
	}
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return "rate limit exceeded: " + strings.TrimSpace(rle.Message)
	}
	return err.Error()
}
