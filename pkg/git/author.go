package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Defaults used when no author can be resolved from config or env.
const (
	DefaultAuthorName  = "ghpub"
	DefaultAuthorEmail = "ghpub@localhost"
)

// Author identifies the committer of deploy commits.
type Author struct {
	Name  string
	Email string
}

// String formats the author as "Name <email>".
func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// ResolveAuthor picks the deploy commit author with priority:
// explicit values from .ghpub.yml, then the repository's git config
// (local, falling back to global/system), then GIT_AUTHOR_* env vars,
// then the ghpub defaults.
func ResolveAuthor(ctx context.Context, repoDir, explicitName, explicitEmail string) Author {
	author := Author{
		Name:  DefaultAuthorName,
		Email: DefaultAuthorEmail,
	}

	if v := os.Getenv("GIT_AUTHOR_NAME"); v != "" {
		author.Name = v
	}
	if v := os.Getenv("GIT_AUTHOR_EMAIL"); v != "" {
		author.Email = v
	}

	if v := gitConfigValue(ctx, repoDir, "user.name"); v != "" {
		author.Name = v
	}
	if v := gitConfigValue(ctx, repoDir, "user.email"); v != "" {
		author.Email = v
	}

	if explicitName != "" {
		author.Name = explicitName
	}
	if explicitEmail != "" {
		author.Email = explicitEmail
	}

	return author
}

// gitConfigValue reads one git config key in repoDir; `git config --get`
// already resolves local over global over system scope.
func gitConfigValue(ctx context.Context, repoDir, key string) string {
	cmd := exec.CommandContext(ctx, "git", "config", "--get", key)
	cmd.Dir = repoDir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
