// Package gitsource validates project git sources against the hosting
// platform before a deployment is attempted.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/launchpadhq/launchpad/internal/core/domain"
)

// Validator checks that a git source points at a reachable repository
// and branch.
type Validator interface {
	Validate(ctx context.Context, src domain.GitSource) error
}

// ValidationError reports an unusable git source.
type ValidationError struct {
	RepoURL string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("git source %s: %s", e.RepoURL, e.Reason)
}

// NoopValidator accepts every git source. Used when validation is
// disabled in config.
type NoopValidator struct{}

func (NoopValidator) Validate(ctx context.Context, src domain.GitSource) error { return nil }

// GitHubValidator verifies repositories and branches via the GitHub API.
type GitHubValidator struct {
	client *github.Client
}

// NewGitHubValidator creates a validator. An empty token yields an
// unauthenticated client limited to public repositories.
func NewGitHubValidator(token string) *GitHubValidator {
	if token == "" {
		return &GitHubValidator{client: github.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &GitHubValidator{client: github.NewClient(tc)}
}

// Validate checks that the repository exists and the branch is present.
// Non-GitHub URLs pass through unchecked.
func (v *GitHubValidator) Validate(ctx context.Context, src domain.GitSource) error {
	owner, repo, ok := parseGitHubURL(src.RepoURL)
	if !ok {
		return nil
	}

	if _, _, err := v.client.Repositories.Get(ctx, owner, repo); err != nil {
		if isNotFound(err) {
			return &ValidationError{RepoURL: src.RepoURL, Reason: "repository not found"}
		}
		return fmt.Errorf("checking repository %s/%s: %w", owner, repo, err)
	}

	if _, _, err := v.client.Repositories.GetBranch(ctx, owner, repo, src.Branch, 0); err != nil {
		if isNotFound(err) {
			return &ValidationError{RepoURL: src.RepoURL, Reason: fmt.Sprintf("branch %q not found", src.Branch)}
		}
		return fmt.Errorf("checking branch %s: %w", src.Branch, err)
	}

	return nil
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode == 404
	}
	return false
}

// parseGitHubURL extracts owner and repo from a GitHub repository URL.
func parseGitHubURL(repoURL string) (owner, repo string, ok bool) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", false
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
