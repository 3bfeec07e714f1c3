package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghpub/ghpub/pkg/git"
	"github.com/ghpub/ghpub/pkg/pages"
)

var statusPages bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local publish state and, optionally, the remote Pages build",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, cfg, err := resolveRepo()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client := git.NewClient(abs)

		branch, err := client.CurrentBranch()
		if err != nil {
			return err
		}
		clean, err := client.IsClean(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Branch:      %s", branch)
		if branch != cfg.SourceBranch {
			fmt.Printf(" (publish requires %s)", cfg.SourceBranch)
		}
		fmt.Println()

		if clean {
			fmt.Println("Tree:        clean")
		} else {
			fmt.Println("Tree:        dirty (publish will refuse to run)")
		}

		exists, err := client.BranchExists(cfg.DeployBranch)
		if err != nil {
			return err
		}
		if !exists {
			fmt.Printf("Deploy:      %s does not exist yet\n", cfg.DeployBranch)
		} else {
			tip, err := client.BranchTip(cfg.DeployBranch)
			if err != nil {
				return err
			}
			fmt.Printf("Deploy:      %s at %s (%s)\n", cfg.DeployBranch, tip.Hash[:8], tip.Message)
		}

		if !statusPages {
			return nil
		}

		owner, repo := cfg.Pages.Owner, cfg.Pages.Repo
		if owner == "" || repo == "" {
			remote, err := client.RemoteURL(cfg.Remote)
			if err != nil {
				return err
			}
			owner, repo, err = pages.ParseRemote(remote)
			if err != nil {
				return err
			}
		}

		pc := pages.NewClient(ctx, pushToken())
		build, err := pc.LatestBuild(ctx, owner, repo)
		if err != nil {
			return err
		}
		fmt.Printf("Pages build: %s", build.Status)
		if build.Commit != "" {
			fmt.Printf(" (commit %s)", shortHash(build.Commit))
		}
		if build.ErrorMessage != "" {
			fmt.Printf(": %s", build.ErrorMessage)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusPages, "pages", false, "Query the GitHub Pages build status")
	rootCmd.AddCommand(statusCmd)
}
