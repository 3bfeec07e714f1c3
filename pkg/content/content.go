// Package content models the Markdown source tree of the blog: posts
// and drafts with YAML front matter. It backs `ghpub check`, which
// catches broken posts before a publish bakes them into the site.
package content

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
)

// FrontMatter is the structured metadata at the top of a post.
// Unknown keys are preserved in Custom.
type FrontMatter struct {
	Title  string         `yaml:"title"`
	Layout string         `yaml:"layout"`
	Tags   []string       `yaml:"tags"`
	Date   time.Time      `yaml:"date"`
	Draft  bool           `yaml:"draft"`
	Custom map[string]any `yaml:",inline"`
}

// Post is one Markdown source file.
type Post struct {
	// Path is relative to the repository root.
	Path string

	// Draft is true for files under a drafts directory or marked
	// draft in front matter.
	Draft bool

	FrontMatter FrontMatter

	// Body is the Markdown content without the front matter block.
	Body []byte
}

// datePrefix matches the YYYY-MM-DD- filename convention for posts.
var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-.+`)

// markdownExts are the file extensions scanned for posts.
var markdownExts = map[string]bool{
	".md":       true,
	".markdown": true,
}

// ParsePost parses front matter and body from raw file content.
// relPath is stored on the post and used for draft detection.
func ParsePost(relPath string, data []byte) (*Post, error) {
	var meta FrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		return nil, fmt.Errorf("parse front matter of %s: %w", relPath, err)
	}

	return &Post{
		Path:        relPath,
		Draft:       meta.Draft || inDraftsDir(relPath),
		FrontMatter: meta,
		Body:        body,
	}, nil
}

func inDraftsDir(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if part == "_drafts" || part == "drafts" {
			return true
		}
	}
	return false
}

// Scan walks the given content directories under root and parses every
// Markdown file. Directories that do not exist are skipped: a blog
// without drafts is not an error. Results are sorted by path.
func Scan(root string, contentDirs []string) ([]*Post, error) {
	var posts []*Post

	for _, dir := range contentDirs {
		base := filepath.Join(root, dir)
		info, err := os.Stat(base)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", dir, err)
		}
		if !info.IsDir() {
			continue
		}

		err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !markdownExts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}

			post, err := ParsePost(rel, data)
			if err != nil {
				return err
			}
			posts = append(posts, post)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(posts, func(i, j int) bool { return posts[i].Path < posts[j].Path })
	return posts, nil
}

// Issue is a single lint finding for a post.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Lint checks a post for the problems that break site generation or
// publishing: missing title or layout, published posts without a date,
// and Markdown that the renderer rejects.
func Lint(post *Post) []Issue {
	var issues []Issue

	add := func(format string, args ...any) {
		issues = append(issues, Issue{Path: post.Path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(post.FrontMatter.Title) == "" {
		add("missing title in front matter")
	}
	if strings.TrimSpace(post.FrontMatter.Layout) == "" {
		add("missing layout in front matter")
	}

	if !post.Draft {
		name := filepath.Base(post.Path)
		if !datePrefix.MatchString(name) && post.FrontMatter.Date.IsZero() {
			add("published post needs a YYYY-MM-DD- filename prefix or a date field")
		}
	}

	if err := renderMarkdown(post.Body); err != nil {
		add("markdown does not render: %v", err)
	}

	return issues
}

// LintAll lints every post and returns the combined findings.
func LintAll(posts []*Post) []Issue {
	var issues []Issue
	for _, post := range posts {
		issues = append(issues, Lint(post)...)
	}
	return issues
}

var md = goldmark.New()

// renderMarkdown runs the body through goldmark, discarding the HTML.
// Generation failures here would otherwise surface as generator errors
// mid-publish.
func renderMarkdown(body []byte) error {
	var buf bytes.Buffer
	return md.Convert(body, &buf)
}
