package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghpub/ghpub/pkg/git"
	"github.com/ghpub/ghpub/pkg/log"
	"github.com/ghpub/ghpub/pkg/pages"
	"github.com/ghpub/ghpub/pkg/publisher"
)

var (
	publishMessage       string
	publishNoPush        bool
	publishSkipPreflight bool
	publishVerify        bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Build the site and force-push it to the deploy branch",
	Long: `Build the site with the configured generator and replace the deploy
branch's entire tree with the output.

The run fails before touching anything unless the source branch is
checked out and the working tree is clean. The deploy branch is created
as an orphan on the first publish and force-pushed on every run; its
history has no independent value. Re-running with unchanged sources
reports "nothing to commit" and still succeeds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, cfg, err := resolveRepo()
		if err != nil {
			return err
		}
		if publishMessage != "" {
			cfg.CommitMessage = publishMessage
		}

		ctx := cmd.Context()
		author := git.ResolveAuthor(ctx, abs, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
		log.Debug("resolved deploy author", "author", author.String())

		p := publisher.New(abs, cfg, author)
		p.NoPush = publishNoPush
		p.SkipPreflight = publishSkipPreflight
		p.Git.Token = pushToken()

		result, err := p.Publish(ctx)
		if err != nil {
			return err
		}

		if result.NothingToCommit {
			fmt.Println("Nothing to commit, site is up to date.")
		} else {
			fmt.Printf("Published %s to %s.\n", shortHash(result.CommitHash), cfg.DeployBranch)
		}

		if publishVerify && result.Pushed {
			if err := verifyPagesBuild(ctx, p, result.CommitHash); err != nil {
				return fmt.Errorf("verify: %w", err)
			}
		}
		return nil
	},
}

// pushToken returns the token used for HTTPS pushes and API calls.
func pushToken() string {
	if token := os.Getenv("GHPUB_TOKEN"); token != "" {
		return token
	}
	return os.Getenv("GITHUB_TOKEN")
}

// verifyPagesBuild waits for the Pages build of the commit this run
// pushed. Matching on the commit keeps a leftover build of the
// previous deploy from counting as success.
func verifyPagesBuild(ctx context.Context, p *publisher.Publisher, commit string) error {
	owner, repo, err := pagesTarget(p)
	if err != nil {
		return err
	}

	// A nothing-to-commit run pushes the existing deploy tip.
	if commit == "" {
		tip, err := p.Git.BranchTip(p.Config.DeployBranch)
		if err != nil {
			return err
		}
		commit = tip.Hash
	}

	client := pages.NewClient(ctx, pushToken())
	build, err := client.WaitForBuild(ctx, owner, repo, commit, 2*time.Minute, 5*time.Second)
	if err != nil {
		return err
	}
	log.Step("pages build succeeded", "commit", shortHash(build.Commit))
	return nil
}

// pagesTarget resolves the GitHub repository hosting the site, from
// config or the remote URL.
func pagesTarget(p *publisher.Publisher) (owner, repo string, err error) {
	if p.Config.Pages.Owner != "" && p.Config.Pages.Repo != "" {
		return p.Config.Pages.Owner, p.Config.Pages.Repo, nil
	}

	remote, err := p.Git.RemoteURL(p.Config.Remote)
	if err != nil {
		return "", "", err
	}
	return pages.ParseRemote(remote)
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func init() {
	publishCmd.Flags().StringVarP(&publishMessage, "message", "m", "", "Deploy commit message (default: timestamped)")
	publishCmd.Flags().BoolVar(&publishNoPush, "no-push", false, "Skip the force push, leave the deploy branch local")
	publishCmd.Flags().BoolVar(&publishSkipPreflight, "skip-preflight", false, "Skip precondition checks")
	publishCmd.Flags().BoolVar(&publishVerify, "verify", false, "Wait for the GitHub Pages build after pushing")
	rootCmd.AddCommand(publishCmd)
}
