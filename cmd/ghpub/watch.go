package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghpub/ghpub/pkg/builder"
)

var watchDirs []string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the site whenever sources change",
	Long: `Build once, then watch the content directories and rebuild on every
change. Runs until interrupted. Nothing is published; use this while
writing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, cfg, err := resolveRepo()
		if err != nil {
			return err
		}

		dirs := cfg.ContentDirs
		if len(watchDirs) > 0 {
			dirs = watchDirs
		}

		b := builder.New(abs, cfg.BuildCommand, cfg.BuildDir)
		w, err := builder.NewWatcher(b, dirs)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchDirs, "dirs", nil, "Directories to watch (default: content_dirs)")
	rootCmd.AddCommand(watchCmd)
}
