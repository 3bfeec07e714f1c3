// Package publisher implements the publish pipeline: build the site,
// snapshot the output, rewrite the deploy branch with it, force-push,
// and restore the original branch.
//
// The pipeline is a chain of named steps; the first failing step aborts
// the run. There is no rollback of completed steps: a failure after the
// branch switch leaves the caller on the deploy branch, and a failed
// push leaves local and remote diverged until the next successful run.
package publisher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ghpub/ghpub/pkg/builder"
	"github.com/ghpub/ghpub/pkg/config"
	"github.com/ghpub/ghpub/pkg/git"
	"github.com/ghpub/ghpub/pkg/log"
	"github.com/ghpub/ghpub/pkg/preflight"
)

// SiteBuilder is the slice of pkg/builder the pipeline needs; tests
// substitute a fake.
type SiteBuilder interface {
	Build(ctx context.Context) (builder.Result, error)
	LookPath() error
}

// Publisher runs the publish pipeline for one repository.
type Publisher struct {
	// RepoDir is the repository root.
	RepoDir string

	// Config is the resolved publish configuration.
	Config config.Config

	// Author signs the deploy commit.
	Author git.Author

	// Builder produces the site.
	Builder SiteBuilder

	// Git operates on the repository.
	Git *git.Client

	// NoPush skips the force push, for offline runs.
	NoPush bool

	// SkipPreflight bypasses the precondition checks.
	SkipPreflight bool
}

// New wires a publisher from resolved configuration.
func New(repoDir string, cfg config.Config, author git.Author) *Publisher {
	return &Publisher{
		RepoDir: repoDir,
		Config:  cfg,
		Author:  author,
		Builder: builder.New(repoDir, cfg.BuildCommand, cfg.BuildDir),
		Git:     git.NewClient(repoDir),
	}
}

// Publish runs the pipeline. On success the caller is back on the
// source branch and the deploy branch tree equals the build output.
func (p *Publisher) Publish(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	if isFilesystemRoot(p.RepoDir) {
		return res, fmt.Errorf("refusing to publish from filesystem root %q", p.RepoDir)
	}

	// Preconditions, before any mutation.
	checker := preflight.NewChecker(p.SkipPreflight,
		preflight.GitBinaryCheck{},
		preflight.BuildToolCheck{LookPath: p.Builder.LookPath},
		preflight.RepositoryCheck{Git: p.Git},
		preflight.BranchCheck{Git: p.Git, Expected: p.Config.SourceBranch},
		preflight.CleanTreeCheck{Git: p.Git},
	)
	if err := checker.Run(ctx); err != nil {
		return res, err
	}

	// The build dir is deleted after snapshotting; a value resolving to
	// the repository itself or outside it must never reach that point,
	// even when the config skipped Validate.
	inside, err := isStrictSubdir(p.RepoDir, filepath.Join(p.RepoDir, p.Config.BuildDir))
	if err != nil {
		return res, fmt.Errorf("build dir: %w", err)
	}
	if !inside {
		return res, fmt.Errorf("build dir %q must resolve to a directory inside the repository", p.Config.BuildDir)
	}

	log.Step("building site", "command", p.Config.BuildCommand)
	buildRes, err := p.Builder.Build(ctx)
	if err != nil {
		return res, fmt.Errorf("build: %w", err)
	}
	res.addAction("built", fmt.Sprintf("%d files in %s", buildRes.Files, p.Config.BuildDir))
	log.Step("site built", "files", buildRes.Files, "took", buildRes.Duration.Round(time.Millisecond))

	log.Step("snapshotting build output")
	snapshot, err := snapshotDir(p.RepoDir, buildRes.OutputPath)
	if err != nil {
		return res, fmt.Errorf("snapshot: %w", err)
	}

	// Drop the generated dir from the working tree now. It is untracked,
	// so it would survive the branch switch and end up inside the deploy
	// commit, breaking the "deploy tree equals build output" invariant.
	if err := os.RemoveAll(buildRes.OutputPath); err != nil {
		return res, fmt.Errorf("remove build dir: %w", err)
	}

	deploy := p.Config.DeployBranch
	exists, err := p.Git.BranchExists(deploy)
	if err != nil {
		return res, fmt.Errorf("deploy branch: %w", err)
	}
	if exists {
		log.Step("switching to deploy branch", "branch", deploy)
		if err := p.Git.Checkout(ctx, deploy); err != nil {
			return res, fmt.Errorf("deploy branch: %w", err)
		}
	} else {
		log.Step("creating deploy branch", "branch", deploy)
		if err := p.Git.CheckoutOrphan(ctx, deploy); err != nil {
			return res, fmt.Errorf("deploy branch: %w", err)
		}
		res.addAction("created_branch", deploy)
	}

	log.Step("replacing deploy branch contents")
	if err := p.Git.RemoveTracked(ctx); err != nil {
		return res, fmt.Errorf("clear deploy branch: %w", err)
	}
	if err := copyTree(snapshot, p.RepoDir); err != nil {
		return res, fmt.Errorf("copy snapshot: %w", err)
	}
	if err := os.RemoveAll(snapshot); err != nil {
		// A leaked temp dir is annoying, not fatal.
		log.Warn("failed to remove snapshot dir", "path", snapshot, "error", err)
	}

	message := p.Config.CommitMessage
	if message == "" {
		message = fmt.Sprintf("Site updated at %s", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	hash, committed, err := p.Git.CommitAll(ctx, message, p.Author)
	if err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	if committed {
		res.Committed = true
		res.CommitHash = hash
		res.addAction("committed", hash)
		log.Step("committed deploy snapshot", "commit", shortHash(hash))
	} else {
		res.NothingToCommit = true
		res.addAction("no_op", "build output identical to previous deploy")
		log.Step("nothing to commit, site is up to date")
	}

	if p.NoPush {
		log.Step("skipping push")
	} else {
		log.Step("force-pushing deploy branch", "remote", p.Config.Remote, "branch", deploy)
		if err := p.Git.ForcePush(ctx, p.Config.Remote, deploy); err != nil {
			return res, fmt.Errorf("push: %w", err)
		}
		res.Pushed = true
		res.addAction("pushed", fmt.Sprintf("%s -> %s", deploy, p.Config.Remote))
	}

	log.Step("returning to source branch", "branch", p.Config.SourceBranch)
	if err := p.Git.Checkout(ctx, p.Config.SourceBranch); err != nil {
		return res, fmt.Errorf("restore branch: %w", err)
	}

	res.Duration = time.Since(start)
	log.Step("publish complete", "took", res.Duration.Round(time.Millisecond))
	return res, nil
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
