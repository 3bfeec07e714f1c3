package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initRepo creates a repository with one commit on master.
func initRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}

	writeFile(t, dir, "index.md", "# hello\n")
	commitAll(t, repo, "initial commit")
	return dir, repo
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func commitAll(t *testing.T, repo *gogit.Repository, message string) {
	t.Helper()

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("get worktree: %v", err)
	}
	if err := worktree.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		t.Fatalf("stage: %v", err)
	}
	_, err = worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// requireGit skips tests that shell out when no git binary is installed.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func TestCurrentBranch(t *testing.T) {
	dir, _ := initRepo(t)
	client := NewClient(dir)

	branch, err := client.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch() error: %v", err)
	}
	if branch != "master" {
		t.Errorf("CurrentBranch() = %q, want %q", branch, "master")
	}
}

func TestCurrentBranchNotARepo(t *testing.T) {
	client := NewClient(t.TempDir())
	if _, err := client.CurrentBranch(); err == nil {
		t.Error("CurrentBranch() on non-repo should fail")
	}
}

func TestIsRepository(t *testing.T) {
	dir, _ := initRepo(t)
	if !NewClient(dir).IsRepository() {
		t.Error("IsRepository() = false for a real repo")
	}
	if NewClient(t.TempDir()).IsRepository() {
		t.Error("IsRepository() = true for an empty dir")
	}
}

func TestBranchExists(t *testing.T) {
	dir, _ := initRepo(t)
	client := NewClient(dir)

	exists, err := client.BranchExists("master")
	if err != nil {
		t.Fatalf("BranchExists(master) error: %v", err)
	}
	if !exists {
		t.Error("BranchExists(master) = false, want true")
	}

	exists, err = client.BranchExists("gh-pages")
	if err != nil {
		t.Fatalf("BranchExists(gh-pages) error: %v", err)
	}
	if exists {
		t.Error("BranchExists(gh-pages) = true, want false")
	}
}

func TestIsClean(t *testing.T) {
	requireGit(t)

	dir, _ := initRepo(t)
	client := NewClient(dir)
	ctx := context.Background()

	clean, err := client.IsClean(ctx)
	if err != nil {
		t.Fatalf("IsClean() error: %v", err)
	}
	if !clean {
		t.Error("IsClean() = false for a freshly committed tree")
	}

	writeFile(t, dir, "draft.md", "wip\n")
	clean, err = client.IsClean(ctx)
	if err != nil {
		t.Fatalf("IsClean() error: %v", err)
	}
	if clean {
		t.Error("IsClean() = true with an untracked file present")
	}
}

func TestCommitAll(t *testing.T) {
	dir, _ := initRepo(t)
	client := NewClient(dir)
	ctx := context.Background()
	author := Author{Name: "test", Email: "test@example.com"}

	// Nothing changed: success without a commit.
	hash, committed, err := client.CommitAll(ctx, "noop", author)
	if err != nil {
		t.Fatalf("CommitAll() on clean tree error: %v", err)
	}
	if committed {
		t.Errorf("CommitAll() on clean tree committed=%v hash=%q, want no commit", committed, hash)
	}

	writeFile(t, dir, "about.md", "about\n")
	hash, committed, err = client.CommitAll(ctx, "add about page", author)
	if err != nil {
		t.Fatalf("CommitAll() error: %v", err)
	}
	if !committed || hash == "" {
		t.Errorf("CommitAll() committed=%v hash=%q, want a commit", committed, hash)
	}
}

func TestOrphanCheckoutAndRemoveTracked(t *testing.T) {
	requireGit(t)

	dir, repo := initRepo(t)
	client := NewClient(dir)
	ctx := context.Background()

	if err := client.CheckoutOrphan(ctx, "gh-pages"); err != nil {
		t.Fatalf("CheckoutOrphan() error: %v", err)
	}
	if err := client.RemoveTracked(ctx); err != nil {
		t.Fatalf("RemoveTracked() error: %v", err)
	}

	// The source file must be gone from the working tree.
	if _, err := os.Stat(filepath.Join(dir, "index.md")); !os.IsNotExist(err) {
		t.Errorf("index.md still present after RemoveTracked, stat err=%v", err)
	}

	// Commit fresh content on the orphan and make sure it has no parent.
	writeFile(t, dir, "site.html", "<html></html>\n")
	hash, committed, err := client.CommitAll(ctx, "first deploy", Author{Name: "t", Email: "t@example.com"})
	if err != nil {
		t.Fatalf("CommitAll() on orphan error: %v", err)
	}
	if !committed {
		t.Fatal("CommitAll() on orphan did not commit")
	}

	tip, err := client.BranchTip("gh-pages")
	if err != nil {
		t.Fatalf("BranchTip() error: %v", err)
	}
	if tip.Hash != hash {
		t.Errorf("BranchTip() hash = %s, want %s", tip.Hash, hash)
	}

	commit, err := repo.CommitObject(mustHash(t, repo, "gh-pages"))
	if err != nil {
		t.Fatalf("read orphan commit: %v", err)
	}
	if commit.NumParents() != 0 {
		t.Errorf("orphan commit has %d parents, want 0", commit.NumParents())
	}
}

func TestCheckoutRoundTrip(t *testing.T) {
	requireGit(t)

	dir, _ := initRepo(t)
	client := NewClient(dir)
	ctx := context.Background()

	if err := client.CheckoutOrphan(ctx, "gh-pages"); err != nil {
		t.Fatalf("CheckoutOrphan() error: %v", err)
	}
	if err := client.RemoveTracked(ctx); err != nil {
		t.Fatalf("RemoveTracked() error: %v", err)
	}
	writeFile(t, dir, "index.html", "deployed\n")
	if _, _, err := client.CommitAll(ctx, "deploy", Author{Name: "t", Email: "t@example.com"}); err != nil {
		t.Fatalf("CommitAll() error: %v", err)
	}

	if err := client.Checkout(ctx, "master"); err != nil {
		t.Fatalf("Checkout(master) error: %v", err)
	}

	branch, err := client.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch() error: %v", err)
	}
	if branch != "master" {
		t.Errorf("CurrentBranch() after round trip = %q, want master", branch)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.md")); err != nil {
		t.Errorf("index.md missing after returning to master: %v", err)
	}
}

func TestRemoteURL(t *testing.T) {
	dir, repo := initRepo(t)
	client := NewClient(dir)

	if _, err := client.RemoteURL("origin"); err == nil {
		t.Error("RemoteURL() without a remote should fail")
	}

	_, err := repo.CreateRemote(&gitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/someone/someone.github.io.git"},
	})
	if err != nil {
		t.Fatalf("create remote: %v", err)
	}

	url, err := client.RemoteURL("origin")
	if err != nil {
		t.Fatalf("RemoteURL() error: %v", err)
	}
	if url != "https://github.com/someone/someone.github.io.git" {
		t.Errorf("RemoteURL() = %q", url)
	}
}

func TestForcePushToLocalRemote(t *testing.T) {
	dir, repo := initRepo(t)

	// A bare repository on disk stands in for the hosting remote.
	remoteDir := t.TempDir()
	if _, err := gogit.PlainInit(remoteDir, true); err != nil {
		t.Fatalf("init bare remote: %v", err)
	}
	if _, err := repo.CreateRemote(&gitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteDir},
	}); err != nil {
		t.Fatalf("create remote: %v", err)
	}

	client := NewClient(dir)
	ctx := context.Background()

	if err := client.ForcePush(ctx, "origin", "master"); err != nil {
		t.Fatalf("ForcePush() error: %v", err)
	}

	// Pushing again with no new commits must still succeed.
	if err := client.ForcePush(ctx, "origin", "master"); err != nil {
		t.Errorf("ForcePush() up-to-date error: %v", err)
	}
}

func mustHash(t *testing.T, repo *gogit.Repository, branch string) plumbing.Hash {
	t.Helper()
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		t.Fatalf("resolve %s: %v", branch, err)
	}
	return ref.Hash()
}
