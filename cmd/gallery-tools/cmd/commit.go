package cmd

import (
	"fmt"
	"io"

	"gallery-tools/internal/models"
	"gallery-tools/internal/summary"
	"gallery-tools/internal/vcs"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newGit is swapped in tests.
var newGit = func(dir string) *vcs.Git { return vcs.NewGit(dir) }

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Stage, commit and push all site changes with a generated message",
	Long: `Looks at the working tree, derives a short commit message from the kind of
files that changed (new gallery, styles, components, build config) and runs
git add, git commit and git push.`,
	RunE: runCommit,
}

func init() {
	rootCmd.AddCommand(commitCmd)

	commitCmd.Flags().StringP("message", "m", "", "Use this commit message instead of a generated one")
	commitCmd.Flags().Bool("no-push", false, "Commit without pushing")
}

func runCommit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	git := newGit(globalConfig.SiteRoot)

	fmt.Fprintln(out, "Quick commit: analyzing changes...")
	if err := git.CheckRepo(ctx); err != nil {
		return fmt.Errorf("%w (run \"git init\" first)", err)
	}

	changes, err := git.Status(ctx)
	if err != nil {
		return fmt.Errorf("could not check git status: %w", err)
	}
	if changes.Empty() {
		fmt.Fprintln(out, "No changes to commit. Working directory clean!")
		return nil
	}

	fmt.Fprintln(out, "Changes detected:")
	printChangeGroups(out, changes)

	message, _ := cmd.Flags().GetString("message")
	if message == "" {
		message, err = summary.QuickRules{}.Summarize(ctx, changes)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "\nCommit message: %q\n", message)

	if err := git.AddAll(ctx); err != nil {
		return fmt.Errorf("could not stage changes: %w", err)
	}
	commitOut, err := git.Commit(ctx, message)
	if err != nil {
		return fmt.Errorf("could not create commit: %w", err)
	}
	log.Debug(commitOut)

	if noPush, _ := cmd.Flags().GetBool("no-push"); noPush {
		fmt.Fprintln(out, "Committed (push skipped).")
		return nil
	}
	fmt.Fprintln(out, "Pushing...")
	if _, err := git.Push(ctx); err != nil {
		return fmt.Errorf("could not push (you may need to pull first or check your remote): %w", err)
	}

	fmt.Fprintln(out, "Done! Changes committed and pushed.")
	fmt.Fprintf(out, "   Commit: %q\n", message)
	return nil
}

// printChangeGroups lists up to five files per kind of change.
func printChangeGroups(w io.Writer, cs models.ChangeSet) {
	groups := []struct {
		label string
		files []string
	}{
		{"Modified", cs.Modified},
		{"Added", cs.Added},
		{"Deleted", cs.Deleted},
		{"Renamed", cs.Renamed},
	}
	for _, g := range groups {
		if len(g.files) == 0 {
			continue
		}
		fmt.Fprintf(w, "   %s: %d file(s)\n", g.label, len(g.files))
		for i, f := range g.files {
			if i == 5 {
				fmt.Fprintf(w, "     ... and %d more\n", len(g.files)-5)
				break
			}
			fmt.Fprintf(w, "     - %s\n", f)
		}
	}
}
