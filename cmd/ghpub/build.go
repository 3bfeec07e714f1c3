package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghpub/ghpub/pkg/builder"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the site generator without publishing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, cfg, err := resolveRepo()
		if err != nil {
			return err
		}

		b := builder.New(abs, cfg.BuildCommand, cfg.BuildDir)
		result, err := b.Build(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Built %d files into %s in %s.\n",
			result.Files, cfg.BuildDir, result.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
