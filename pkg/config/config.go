// Package config resolves ghpub configuration from defaults, the
// repository's .ghpub.yml, and GHPUB_* environment variables, in that
// order. Command-line flags are applied on top by the CLI layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the per-repository configuration file.
const FileName = ".ghpub.yml"

// Defaults for a Jekyll-style blog published to GitHub Pages.
const (
	DefaultSourceBranch = "master"
	DefaultDeployBranch = "gh-pages"
	DefaultBuildDir     = "_site"
	DefaultRemote       = "origin"
)

// DefaultBuildCommand is the generator invocation when none is configured.
var DefaultBuildCommand = []string{"jekyll", "build"}

// DefaultContentDirs are the directories scanned by `ghpub check`.
var DefaultContentDirs = []string{"_posts", "_drafts"}

// Config holds the resolved publish configuration.
type Config struct {
	// SourceBranch is the branch a publish must start from.
	SourceBranch string `yaml:"source_branch"`

	// DeployBranch is the branch that receives the generated site.
	DeployBranch string `yaml:"deploy_branch"`

	// BuildDir is the generator's output directory, relative to the repo root.
	BuildDir string `yaml:"build_dir"`

	// BuildCommand is the generator invocation, argv style.
	BuildCommand []string `yaml:"build_command"`

	// Remote is the git remote the deploy branch is pushed to.
	Remote string `yaml:"remote"`

	// ContentDirs are the Markdown source directories, relative to the repo root.
	ContentDirs []string `yaml:"content_dirs"`

	// CommitMessage overrides the timestamped default deploy commit message.
	CommitMessage string `yaml:"commit_message"`

	// Git holds commit author overrides.
	Git GitConfig `yaml:"git"`

	// Pages identifies the GitHub repository for Pages build status
	// queries. Empty values are derived from the remote URL.
	Pages PagesConfig `yaml:"pages"`
}

// GitConfig holds commit author overrides.
type GitConfig struct {
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// PagesConfig identifies the GitHub repository serving the site.
type PagesConfig struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SourceBranch: DefaultSourceBranch,
		DeployBranch: DefaultDeployBranch,
		BuildDir:     DefaultBuildDir,
		BuildCommand: append([]string(nil), DefaultBuildCommand...),
		Remote:       DefaultRemote,
		ContentDirs:  append([]string(nil), DefaultContentDirs...),
	}
}

// Load resolves configuration for the repository at repoDir.
// Missing .ghpub.yml is not an error; defaults and env apply.
func Load(repoDir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(repoDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read %s: %w", FileName, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", FileName, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays GHPUB_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("GHPUB_SOURCE_BRANCH"); v != "" {
		c.SourceBranch = v
	}
	if v := os.Getenv("GHPUB_DEPLOY_BRANCH"); v != "" {
		c.DeployBranch = v
	}
	if v := os.Getenv("GHPUB_BUILD_DIR"); v != "" {
		c.BuildDir = v
	}
	if v := os.Getenv("GHPUB_REMOTE"); v != "" {
		c.Remote = v
	}
	if v := os.Getenv("GHPUB_BUILD_COMMAND"); v != "" {
		c.BuildCommand = strings.Fields(v)
	}
	if v := os.Getenv("GHPUB_CONTENT_DIRS"); v != "" {
		var dirs []string
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
		c.ContentDirs = dirs
	}
	if v := os.Getenv("GHPUB_COMMIT_MESSAGE"); v != "" {
		c.CommitMessage = v
	}
}

// Validate reports configuration that cannot produce a sane publish.
func (c *Config) Validate() error {
	if c.SourceBranch == "" {
		return fmt.Errorf("source_branch must not be empty")
	}
	if c.DeployBranch == "" {
		return fmt.Errorf("deploy_branch must not be empty")
	}
	if c.SourceBranch == c.DeployBranch {
		return fmt.Errorf("source_branch and deploy_branch must differ (both %q)", c.SourceBranch)
	}
	if c.BuildDir == "" {
		return fmt.Errorf("build_dir must not be empty")
	}
	if filepath.IsAbs(c.BuildDir) {
		return fmt.Errorf("build_dir must be relative to the repository root, got %q", c.BuildDir)
	}
	// The publish pipeline deletes the build dir wholesale; a value that
	// resolves to the repository itself or above it would take the repo
	// with it.
	if clean := filepath.Clean(c.BuildDir); clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("build_dir must point inside the repository, got %q", c.BuildDir)
	}
	if len(c.BuildCommand) == 0 {
		return fmt.Errorf("build_command must not be empty")
	}
	if c.Remote == "" {
		return fmt.Errorf("remote must not be empty")
	}
	return nil
}
