package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"goals-cli/internal/gitrepo"
	"goals-cli/internal/publish"

	"github.com/spf13/cobra"
)

func newPublishCmd(app *App) *cobra.Command {
	var to string
	var title string
	var overwrite bool
	var render bool
	var width int
	var style string
	var commit bool
	var message string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Render the list as Markdown (derived, not canonical)",
		Example: strings.TrimSpace(`
  # Print Markdown
  goals publish

  # Pretty-print for the terminal
  goals publish --render --style dark

  # Write a file
  goals publish --to docs/goals.md --overwrite

  # Write and commit it
  goals publish --to docs/goals.md --overwrite --commit
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			list, err := s.repo.List(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}

			if strings.TrimSpace(to) != "" {
				res, err := publish.WriteGoals(list, to, publish.WriteOptions{
					Title:     title,
					Overwrite: overwrite,
					Now:       time.Now(),
				})
				if err != nil {
					return writeErr(cmd, err)
				}
				if !commit {
					return writeOut(cmd, app, map[string]any{
						"data": res,
						"_hints": []string{
							"git add " + res.Written[0],
						},
					})
				}
				cr, err := gitrepo.CommitFile(cmd.Context(), res.Written[0], message)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{
					"data": map[string]any{"written": res.Written, "git": cr},
				})
			}
			if commit {
				return writeErr(cmd, errors.New("--commit requires --to"))
			}

			md := publish.RenderMarkdown(list, publish.RenderOptions{Title: title})
			if render {
				md, err = publish.RenderTerminal(md, width, style)
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), md)
			return err
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Write Markdown to this file")
	cmd.Flags().StringVar(&title, "title", "", "Document title (default: Goals)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing --to file")
	cmd.Flags().BoolVar(&render, "render", false, "Render for the terminal instead of printing raw Markdown")
	cmd.Flags().BoolVar(&commit, "commit", false, "git commit the --to file (it must be inside a working tree)")
	cmd.Flags().StringVar(&message, "message", "", "Commit message for --commit")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --render")
	cmd.Flags().StringVar(&style, "style", "notty", "glamour style for --render (dark|light|notty|...)")
	return cmd
}
