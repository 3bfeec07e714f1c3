package builder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ghpub/ghpub/pkg/log"
)

// DefaultDebounce coalesces the event bursts editors produce on save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher rebuilds the site whenever a watched source directory
// changes. At most one build runs at a time; events arriving during a
// build are coalesced into one follow-up build.
type Watcher struct {
	builder  *Builder
	dirs     []string
	debounce time.Duration

	fsw *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given directories, resolved
// relative to the builder's repository root. Directories that do not
// exist are skipped.
func NewWatcher(b *Builder, dirs []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	w := &Watcher{
		builder:  b,
		dirs:     dirs,
		debounce: DefaultDebounce,
	}
	w.fsw = fsw

	for _, dir := range dirs {
		base := filepath.Join(b.Dir, dir)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		if err := w.addRecursive(base); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// addRecursive registers a directory tree, skipping the build output
// and git metadata.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) skipDir(path string) bool {
	base := filepath.Base(path)
	if base == ".git" {
		return true
	}
	output := filepath.Join(w.builder.Dir, w.builder.OutputDir)
	return path == output || strings.HasPrefix(path, output+string(filepath.Separator))
}

// Run builds once, then blocks rebuilding on changes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if _, err := w.builder.Build(ctx); err != nil {
		return err
	}
	log.Step("watching for changes", "dirs", strings.Join(w.dirs, ", "))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.skipDir(event.Name) {
				continue
			}
			// New subdirectories need their own watch.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						log.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			log.Debug("source changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			result, err := w.builder.Build(ctx)
			if err != nil {
				// Keep watching; a broken intermediate save is normal.
				log.Error("rebuild failed", "error", err)
				continue
			}
			log.Step("rebuilt site", "files", result.Files, "took", result.Duration.Round(time.Millisecond))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		}
	}
}
