// Package git wraps the repository operations the publish pipeline
// needs. Object-level work (branch inspection, staging, commits, the
// force push) goes through go-git; worktree porcelain that go-git has
// no good equivalent for (dirtiness via status --porcelain, orphan
// checkout, tracked-file removal) shells out to the system git.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Client operates on a single repository working directory.
type Client struct {
	// Dir is the repository root.
	Dir string

	// Token optionally authenticates pushes over HTTPS.
	Token string
}

// NewClient creates a client for the repository at dir.
func NewClient(dir string) *Client {
	return &Client{Dir: dir}
}

// CommitInfo describes the tip commit of a branch.
type CommitInfo struct {
	Hash    string
	Message string
	When    time.Time
}

func (c *Client) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(c.Dir)
	if err != nil {
		if err == gogit.ErrRepositoryNotExists {
			return nil, fmt.Errorf("%s is not a git repository", c.Dir)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}

// IsRepository reports whether Dir is inside a git repository.
func (c *Client) IsRepository() bool {
	_, err := gogit.PlainOpen(c.Dir)
	return err == nil
}

// CurrentBranch returns the short name of the checked-out branch.
// A detached HEAD is an error: the publish flow needs a branch to
// return to.
func (c *Client) CurrentBranch() (string, error) {
	repo, err := c.open()
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash().String()[:8])
	}
	return head.Name().Short(), nil
}

// IsClean reports whether the working tree has no uncommitted changes,
// including untracked files. Uses `git status --porcelain` so ignore
// rules are honored exactly as the user's git sees them.
func (c *Client) IsClean(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// BranchExists reports whether a local branch with the given name exists.
func (c *Client) BranchExists(name string) (bool, error) {
	repo, err := c.open()
	if err != nil {
		return false, err
	}

	_, err = repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err == plumbing.ErrReferenceNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up branch %s: %w", name, err)
	}
	return true, nil
}

// Checkout switches the working tree to an existing branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	if _, err := c.run(ctx, "checkout", "--quiet", branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

// CheckoutOrphan creates and switches to a historyless branch. The
// previous branch's files stay staged in the index; callers wanting an
// empty tree follow up with RemoveTracked.
func (c *Client) CheckoutOrphan(ctx context.Context, branch string) error {
	if _, err := c.run(ctx, "checkout", "--quiet", "--orphan", branch); err != nil {
		return fmt.Errorf("checkout --orphan %s: %w", branch, err)
	}
	return nil
}

// RemoveTracked deletes every tracked file from the index and the
// working tree. Untracked files are left alone.
func (c *Client) RemoveTracked(ctx context.Context) error {
	if _, err := c.run(ctx, "rm", "-r", "-f", "-q", "--ignore-unmatch", "."); err != nil {
		return fmt.Errorf("remove tracked files: %w", err)
	}
	return nil
}

// CommitAll stages everything and commits with the given message.
// Returns committed=false (and no error) when the tree matches HEAD,
// so an unchanged re-publish is a success rather than a failure.
func (c *Client) CommitAll(ctx context.Context, message string, author Author) (hash string, committed bool, err error) {
	repo, err := c.open()
	if err != nil {
		return "", false, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", false, fmt.Errorf("get worktree: %w", err)
	}

	if err := worktree.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", false, fmt.Errorf("stage changes: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", false, fmt.Errorf("get status: %w", err)
	}
	if status.IsClean() {
		return "", false, nil
	}

	commit, err := worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}
	return commit.String(), true, nil
}

// ForcePush pushes branch to remote, overwriting the remote ref
// unconditionally. A remote already at the local tip is a success.
func (c *Client) ForcePush(ctx context.Context, remoteName, branch string) error {
	repo, err := c.open()
	if err != nil {
		return err
	}

	remote, err := repo.Remote(remoteName)
	if err != nil {
		return fmt.Errorf("get remote %q: %w", remoteName, err)
	}

	refSpec := gitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/heads/%s", branch, branch))
	opts := &gogit.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitcfg.RefSpec{refSpec},
		Force:      true,
	}
	if c.Token != "" {
		opts.Auth = &http.BasicAuth{
			Username: "x-access-token",
			Password: c.Token,
		}
	}

	err = remote.PushContext(ctx, opts)
	if err == gogit.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return fmt.Errorf("push %s to %s: %w", branch, remoteName, err)
	}
	return nil
}

// BranchTip returns the tip commit of a local branch.
func (c *Client) BranchTip(branch string) (CommitInfo, error) {
	repo, err := c.open()
	if err != nil {
		return CommitInfo{}, err
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("resolve branch %s: %w", branch, err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit %s: %w", ref.Hash(), err)
	}

	return CommitInfo{
		Hash:    commit.Hash.String(),
		Message: strings.TrimSpace(commit.Message),
		When:    commit.Author.When,
	}, nil
}

// RemoteURL returns the first URL configured for a remote.
func (c *Client) RemoteURL(remoteName string) (string, error) {
	repo, err := c.open()
	if err != nil {
		return "", err
	}

	remote, err := repo.Remote(remoteName)
	if err != nil {
		return "", fmt.Errorf("get remote %q: %w", remoteName, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %q has no URL", remoteName)
	}
	return urls[0], nil
}

// run executes a git command in the repository directory.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
