// ghpub publishes a static blog to a git hosting branch. Sources live
// on the source branch; `ghpub publish` builds the site with the
// configured generator and force-rewrites the deploy branch with the
// output.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ghpub/ghpub/pkg/config"
	"github.com/ghpub/ghpub/pkg/log"
)

var (
	repoDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "ghpub",
	Short:         "Build a static blog and publish it to a git hosting branch",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{Level: log.Level(logLevel)})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&repoDir, "repo", "C", ".", "Path to the blog repository")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "step", "Log level: debug, info, step, warn, error")
}

// resolveRepo returns the absolute repository path and its configuration.
func resolveRepo() (string, config.Config, error) {
	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return "", config.Config{}, fmt.Errorf("resolve repository path: %w", err)
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return "", config.Config{}, err
	}
	return abs, cfg, nil
}

func main() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
