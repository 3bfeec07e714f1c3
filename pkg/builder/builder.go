// Package builder invokes the external static-site generator and
// verifies its output. The generator is an opaque command (jekyll,
// hugo, zola, ...) configured as an argv slice.
package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ghpub/ghpub/pkg/log"
)

// Builder runs the generator for one repository.
type Builder struct {
	// Dir is the repository root the command runs in.
	Dir string

	// Command is the generator invocation, argv style.
	Command []string

	// OutputDir is the expected build output, relative to Dir.
	OutputDir string
}

// New creates a builder.
func New(dir string, command []string, outputDir string) *Builder {
	return &Builder{Dir: dir, Command: command, OutputDir: outputDir}
}

// Result describes a completed build.
type Result struct {
	// OutputPath is the absolute path of the build directory.
	OutputPath string

	// Files is the number of regular files in the output.
	Files int

	Duration time.Duration
}

// Build runs the generator and checks that it produced output.
// The command's combined output is logged at debug on success and
// included in the error on failure.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	if len(b.Command) == 0 {
		return Result{}, fmt.Errorf("no build command configured")
	}

	start := time.Now()

	cmd := exec.CommandContext(ctx, b.Command[0], b.Command[1:]...)
	cmd.Dir = b.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %s", strings.Join(b.Command, " "), err, strings.TrimSpace(string(out)))
	}
	log.Debug("generator finished", "command", strings.Join(b.Command, " "), "output", strings.TrimSpace(string(out)))

	outputPath := filepath.Join(b.Dir, b.OutputDir)
	files, err := countFiles(outputPath)
	if err != nil {
		return Result{}, fmt.Errorf("inspect build output %s: %w", b.OutputDir, err)
	}
	if files == 0 {
		return Result{}, fmt.Errorf("build output %s is empty", b.OutputDir)
	}

	return Result{
		OutputPath: outputPath,
		Files:      files,
		Duration:   time.Since(start),
	}, nil
}

// LookPath reports whether the generator binary is on PATH.
func (b *Builder) LookPath() error {
	if len(b.Command) == 0 {
		return fmt.Errorf("no build command configured")
	}
	if _, err := exec.LookPath(b.Command[0]); err != nil {
		return fmt.Errorf("build tool %q not found on PATH", b.Command[0])
	}
	return nil
}

func countFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
