// Package pages reports GitHub Pages state for the published site:
// the site URL and the latest Pages build, so `ghpub status --pages`
// and `ghpub publish --verify` can tell whether the force-pushed
// branch actually went live.
package pages

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// Client queries the GitHub Pages API for one repository.
type Client struct {
	gh *github.Client
}

// NewClient creates a Pages client. An empty token yields an
// unauthenticated client, which is enough for public repositories.
func NewClient(ctx context.Context, token string) *Client {
	if token == "" {
		return &Client{gh: github.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{gh: github.NewClient(oauth2.NewClient(ctx, ts))}
}

// SetBaseURL points the client at a different API endpoint. Used by
// tests to target a local server.
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	c.gh.BaseURL = parsed
	return nil
}

// BuildStatus is the latest Pages build for a repository.
type BuildStatus struct {
	// Status is built, building, or errored.
	Status string

	// Commit is the deploy branch commit the build ran against.
	Commit string

	// ErrorMessage is set when Status is errored.
	ErrorMessage string

	UpdatedAt time.Time
}

// LatestBuild fetches the most recent Pages build.
func (c *Client) LatestBuild(ctx context.Context, owner, repo string) (BuildStatus, error) {
	build, _, err := c.gh.Repositories.GetLatestPagesBuild(ctx, owner, repo)
	if err != nil {
		return BuildStatus{}, fmt.Errorf("get latest pages build for %s/%s: %w", owner, repo, err)
	}

	status := BuildStatus{
		Status:       build.GetStatus(),
		Commit:       build.GetCommit(),
		ErrorMessage: build.GetError().GetMessage(),
	}
	if ts := build.GetUpdatedAt(); !ts.IsZero() {
		status.UpdatedAt = ts.Time
	}
	return status, nil
}

// WaitForBuild polls the latest Pages build until the build for the
// given commit finishes or timeout elapses. The first poll after a
// push often still reports the previous deploy's build, so a finished
// build only counts when its commit matches; an empty commit accepts
// whatever build is current.
func (c *Client) WaitForBuild(ctx context.Context, owner, repo, commit string, timeout, interval time.Duration) (BuildStatus, error) {
	deadline := time.Now().Add(timeout)

	for {
		build, err := c.LatestBuild(ctx, owner, repo)
		if err != nil {
			return BuildStatus{}, err
		}

		current := commit == "" || build.Commit == commit
		if current {
			switch build.Status {
			case "built":
				return build, nil
			case "errored":
				return build, fmt.Errorf("pages build for %s failed: %s", shortRef(build.Commit), build.ErrorMessage)
			}
		}

		if time.Now().After(deadline) {
			if !current {
				return build, fmt.Errorf("pages still serving commit %s after waiting", shortRef(build.Commit))
			}
			return build, fmt.Errorf("pages build still %q after waiting", build.Status)
		}

		select {
		case <-ctx.Done():
			return BuildStatus{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func shortRef(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// SiteInfo describes the Pages site itself.
type SiteInfo struct {
	HTMLURL string
	Status  string
	CNAME   string
}

// Site fetches the Pages site configuration.
func (c *Client) Site(ctx context.Context, owner, repo string) (SiteInfo, error) {
	info, _, err := c.gh.Repositories.GetPagesInfo(ctx, owner, repo)
	if err != nil {
		return SiteInfo{}, fmt.Errorf("get pages info for %s/%s: %w", owner, repo, err)
	}
	return SiteInfo{
		HTMLURL: info.GetHTMLURL(),
		Status:  info.GetStatus(),
		CNAME:   info.GetCNAME(),
	}, nil
}

var sshRemote = regexp.MustCompile(`^(?:ssh://)?git@github\.com[:/](.+?)/(.+?)(?:\.git)?$`)

// ParseRemote extracts owner and repository from a GitHub remote URL,
// in https or ssh form.
func ParseRemote(remote string) (owner, repo string, err error) {
	remote = strings.TrimSpace(remote)

	if m := sshRemote.FindStringSubmatch(remote); m != nil {
		return m[1], m[2], nil
	}

	parsed, parseErr := url.Parse(remote)
	if parseErr == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") && parsed.Host == "github.com" {
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
		}
	}

	return "", "", fmt.Errorf("%q is not a github.com remote", remote)
}
