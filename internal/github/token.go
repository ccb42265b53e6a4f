package github

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

type AuthTokenSource string

const ghTokenTimeout = 5 * time.Second

const (
	AuthTokenSourceNone     AuthTokenSource = "none"
	AuthTokenSourceEnv      AuthTokenSource = "env:GITHUB_TOKEN"
	AuthTokenSourceEnvGH    AuthTokenSource = "env:GH_TOKEN"
	AuthTokenSourceGitHubCL AuthTokenSource = "gh"
)

// ResolveAuthToken finds a GitHub access token for read-only lookups.
//
// Precedence:
//  1. GITHUB_TOKEN env var
//  2. GH_TOKEN env var
//  3. GitHub CLI: `gh auth token -h github.com`
//
// An empty token with AuthTokenSourceNone is not an error: public
// repositories can be looked up anonymously at a lower rate limit.
func ResolveAuthToken(ctx context.Context) (string, AuthTokenSource, error) {
	if env := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); env != "" {
		return env, AuthTokenSourceEnv, nil
	}
	if env := strings.TrimSpace(os.Getenv("GH_TOKEN")); env != "" {
		return env, AuthTokenSourceEnvGH, nil
	}

	tok, err := tokenFromGitHubCLI(ctx)
	if err != nil {
		return "", AuthTokenSourceNone, err
	}
	if tok != "" {
		return tok, AuthTokenSourceGitHubCL, nil
	}
	return "", AuthTokenSourceNone, nil
}

func tokenFromGitHubCLI(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", nil
	}

	// A broken gh credential helper must not hang the check.
	cmdCtx, cancel := context.WithTimeout(ctx, ghTokenTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "gh", "auth", "token", "-h", "github.com")
	cmd.Env = append(os.Environ(), "GH_PAGER=cat")
	out, err := cmd.Output()
	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case cmdCtx.Err() != nil:
		return "", fmt.Errorf("gh auth token: no answer within %s", ghTokenTimeout)
	case err != nil:
		// gh present but logged out.
		return "", nil
	}

	tok := strings.TrimSpace(string(out))
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", errors.New("invalid token returned by gh: contains whitespace")
	}
	return tok, nil
}
