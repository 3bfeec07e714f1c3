// Package preflight validates publish preconditions before anything
// mutates the repository. A failed check aborts the run with a
// readable message instead of a half-finished branch switch.
package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ghpub/ghpub/pkg/log"
)

// Level is the severity of a check result.
type Level int

const (
	// LevelError blocks the publish.
	LevelError Level = iota
	// LevelWarn is reported but does not block.
	LevelWarn
	// LevelOK is informational.
	LevelOK
)

// Result is the outcome of a single check.
type Result struct {
	Name    string
	Level   Level
	Message string
	Err     error
}

// Check is one publish precondition.
type Check interface {
	// Name identifies the check in log output.
	Name() string
	// Run evaluates the precondition.
	Run(ctx context.Context) Result
}

// Checker runs a sequence of checks.
type Checker struct {
	checks []Check
	skip   bool
}

// NewChecker creates a checker. With skip set the checks are not run;
// the flag exists for repair scenarios where the operator knows better.
func NewChecker(skip bool, checks ...Check) *Checker {
	return &Checker{checks: checks, skip: skip}
}

// Run executes every check and returns an error listing all blocking
// failures. Running all checks before failing gives the user the full
// picture in one shot.
func (c *Checker) Run(ctx context.Context) error {
	if c.skip {
		log.Warn("preflight checks skipped")
		return nil
	}

	var failures []string
	for _, check := range c.checks {
		result := check.Run(ctx)
		switch result.Level {
		case LevelError:
			log.Error("preflight failed", "check", result.Name, "reason", result.Message)
			failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Message))
		case LevelWarn:
			log.Warn("preflight warning", "check", result.Name, "reason", result.Message)
		default:
			log.Debug("preflight ok", "check", result.Name)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("preflight: %s", strings.Join(failures, "; "))
	}
	return nil
}

// BranchReader is the slice of the git client the checks need.
type BranchReader interface {
	IsRepository() bool
	CurrentBranch() (string, error)
	IsClean(ctx context.Context) (bool, error)
}

// GitBinaryCheck verifies the git binary is on PATH.
type GitBinaryCheck struct{}

// Name implements Check.
func (GitBinaryCheck) Name() string { return "git-binary" }

// Run implements Check.
func (GitBinaryCheck) Run(ctx context.Context) Result {
	if _, err := exec.LookPath("git"); err != nil {
		return Result{Name: "git-binary", Level: LevelError, Message: "git not found on PATH", Err: err}
	}
	return Result{Name: "git-binary", Level: LevelOK}
}

// BuildToolCheck verifies the generator binary is available.
type BuildToolCheck struct {
	// LookPath reports whether the generator can be found.
	LookPath func() error
}

// Name implements Check.
func (BuildToolCheck) Name() string { return "build-tool" }

// Run implements Check.
func (c BuildToolCheck) Run(ctx context.Context) Result {
	if err := c.LookPath(); err != nil {
		return Result{Name: "build-tool", Level: LevelError, Message: err.Error(), Err: err}
	}
	return Result{Name: "build-tool", Level: LevelOK}
}

// RepositoryCheck verifies the working directory is a git repository.
type RepositoryCheck struct {
	Git BranchReader
}

// Name implements Check.
func (RepositoryCheck) Name() string { return "repository" }

// Run implements Check.
func (c RepositoryCheck) Run(ctx context.Context) Result {
	if !c.Git.IsRepository() {
		return Result{Name: "repository", Level: LevelError, Message: "not a git repository"}
	}
	return Result{Name: "repository", Level: LevelOK}
}

// BranchCheck verifies the checked-out branch is the source branch.
// Publishing from anywhere else would bake the wrong content into the
// deploy snapshot.
type BranchCheck struct {
	Git      BranchReader
	Expected string
}

// Name implements Check.
func (BranchCheck) Name() string { return "source-branch" }

// Run implements Check.
func (c BranchCheck) Run(ctx context.Context) Result {
	branch, err := c.Git.CurrentBranch()
	if err != nil {
		return Result{Name: "source-branch", Level: LevelError, Message: err.Error(), Err: err}
	}
	if branch != c.Expected {
		return Result{
			Name:    "source-branch",
			Level:   LevelError,
			Message: fmt.Sprintf("on branch %q, publish must run from %q", branch, c.Expected),
		}
	}
	return Result{Name: "source-branch", Level: LevelOK}
}

// CleanTreeCheck verifies there are no uncommitted changes. Anything
// dirty would either leak into the deploy snapshot or be destroyed by
// the branch switch.
type CleanTreeCheck struct {
	Git BranchReader
}

// Name implements Check.
func (CleanTreeCheck) Name() string { return "clean-tree" }

// Run implements Check.
func (c CleanTreeCheck) Run(ctx context.Context) Result {
	clean, err := c.Git.IsClean(ctx)
	if err != nil {
		return Result{Name: "clean-tree", Level: LevelError, Message: err.Error(), Err: err}
	}
	if !clean {
		return Result{
			Name:    "clean-tree",
			Level:   LevelError,
			Message: "working tree has uncommitted changes, commit or stash them first",
		}
	}
	return Result{Name: "clean-tree", Level: LevelOK}
}
