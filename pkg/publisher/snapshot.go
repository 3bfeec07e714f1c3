package publisher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// snapshotDir copies the build output into a fresh temp directory
// created outside the repository, so the deploy branch switch cannot
// touch it.
func snapshotDir(repoDir, src string) (string, error) {
	tmp, err := mkdirTempOutside(repoDir, "ghpub-site-*")
	if err != nil {
		return "", err
	}
	if err := copyTree(src, tmp); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	return tmp, nil
}

// mkdirTempOutside creates a temp directory guaranteed not to live
// inside the repository. Candidates are tried in order; a candidate
// overlapping the repo is skipped rather than failed.
func mkdirTempOutside(repoDir, pattern string) (string, error) {
	absRepo, err := cleanAbs(repoDir)
	if err != nil {
		return "", err
	}

	var candidates []string
	if v := strings.TrimSpace(os.Getenv("GHPUB_SNAPSHOT_BASE")); v != "" {
		candidates = append(candidates, v)
	}
	candidates = append(candidates, os.TempDir())
	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		candidates = append(candidates, filepath.Join(cacheDir, "ghpub"))
	}
	candidates = append(candidates, filepath.Dir(absRepo))

	var lastErr error
	for _, base := range candidates {
		absBase, err := cleanAbs(base)
		if err != nil {
			lastErr = err
			continue
		}
		if pathOverlaps(absBase, absRepo) {
			continue
		}
		if err := os.MkdirAll(absBase, 0o755); err != nil {
			lastErr = err
			continue
		}
		dir, err := os.MkdirTemp(absBase, pattern)
		if err != nil {
			lastErr = err
			continue
		}
		return dir, nil
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("no usable temp location outside %q", absRepo)
}

// copyTree copies the contents of src into dst, which must exist.
// Hidden files are included.
func copyTree(src, dst string) error {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("xcopy", src+"\\*", dst, "/E", "/I", "/H", "/Y", "/Q")
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("xcopy %s: %w: %s", src, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	cmd := exec.Command("cp", "-a", src+"/.", dst+"/")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("copy %s: %w: %s", src, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func cleanAbs(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// pathOverlaps reports whether one path equals or contains the other.
func pathOverlaps(a, b string) bool {
	if a == b {
		return true
	}
	rel, err := filepath.Rel(a, b)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	rel, err = filepath.Rel(b, a)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	return false
}

// isStrictSubdir reports whether child resolves to a directory inside
// parent, not parent itself or anything above it.
func isStrictSubdir(parent, child string) (bool, error) {
	absParent, err := cleanAbs(parent)
	if err != nil {
		return false, err
	}
	absChild, err := cleanAbs(child)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absParent, absChild)
	if err != nil {
		return false, nil
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	return true, nil
}

// isFilesystemRoot guards the tracked-file wipe against a
// catastrophically misconfigured repo dir.
func isFilesystemRoot(path string) bool {
	clean := filepath.Clean(path)
	if clean == string(filepath.Separator) {
		return true
	}
	volume := filepath.VolumeName(clean)
	return volume != "" && clean == volume+string(filepath.Separator)
}
