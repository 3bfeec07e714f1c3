package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghpub/ghpub/pkg/content"
)

var checkDrafts bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Lint posts and drafts before publishing",
	Long: `Scan the content directories, parse every post's front matter, and
report problems that would break the generated site: missing titles or
layouts, published posts without a date, and Markdown the renderer
rejects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, cfg, err := resolveRepo()
		if err != nil {
			return err
		}

		posts, err := content.Scan(abs, cfg.ContentDirs)
		if err != nil {
			return err
		}

		checked := 0
		var issues []content.Issue
		for _, post := range posts {
			if post.Draft && !checkDrafts {
				continue
			}
			checked++
			issues = append(issues, content.Lint(post)...)
		}

		for _, issue := range issues {
			fmt.Println(issue)
		}
		if len(issues) > 0 {
			return fmt.Errorf("%d issue(s) in %d post(s)", len(issues), checked)
		}

		fmt.Printf("Checked %d post(s), no issues.\n", checked)
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkDrafts, "drafts", false, "Also lint drafts")
	rootCmd.AddCommand(checkCmd)
}
