package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gallery-tools/internal/models"
	"gallery-tools/internal/summary"
	"gallery-tools/internal/vcs"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// buildRunner runs the site build; swapped in tests.
var buildRunner vcs.Runner = vcs.ExecRunner{}

const rule = "---------------------------------------"

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build the site, commit with an AI-written message and push",
	Long: `Runs the build, then asks an AI model for a commit message describing the
changes (Gemini when GEMINI_API_KEY is set, otherwise the configured summary
command). When no AI summary is available a rule-based message is used.
Finally stages, commits and pushes.`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().Bool("dry-run", false, "Build and print the commit message without staging, committing or pushing")
	deployCmd.Flags().Bool("skip-build", false, "Do not run the build command")
	deployCmd.Flags().Bool("no-ai", false, "Use the rule-based message only")
}

// newDeploySummarizer chains GenAI, the summary command and DeployRules,
// dropping whichever AI stage is not configured.
func newDeploySummarizer(ctx context.Context, cfg models.CommitConfig, transport http.RoundTripper, noAI bool) summary.Fallback {
	chain := summary.Fallback{Secondary: summary.DeployRules{}}
	if noAI {
		return chain
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second

	if len(cfg.SummaryCommand) > 0 {
		chain.Primary = summary.CommandSummarizer{Command: cfg.SummaryCommand, Timeout: timeout}
	}

	genAI, err := summary.NewGenAISummarizer(ctx, summary.GenAIOptions{
		APIKey:     cfg.GenAIAPIKey,
		Model:      cfg.GenAIModel,
		HTTPClient: &http.Client{Transport: transport},
		Timeout:    timeout,
	})
	if err != nil {
		log.WithError(err).Debug("Gemini summaries disabled")
		return chain
	}
	if chain.Primary == nil {
		return summary.Fallback{Primary: genAI, Secondary: chain.Secondary}
	}
	return summary.Fallback{Primary: genAI, Secondary: chain}
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := globalConfig
	git := newGit(cfg.SiteRoot)
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipBuild, _ := cmd.Flags().GetBool("skip-build")
	noAI, _ := cmd.Flags().GetBool("no-ai")

	fmt.Fprintln(out, "Smart deploy: build, commit and push")
	fmt.Fprintln(out, rule)

	fmt.Fprintln(out, "Step 1: Checking git repository...")
	if err := git.CheckRepo(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, "Step 2: Checking for changes...")
	before, err := git.Status(ctx)
	if err != nil {
		return fmt.Errorf("could not check git status: %w", err)
	}
	if before.Empty() {
		fmt.Fprintln(out, "   No changes detected, building anyway")
	}

	if skipBuild {
		fmt.Fprintln(out, "Step 3: Build skipped")
	} else {
		build := cfg.Commit.BuildCommand
		fmt.Fprintf(out, "Step 3: Building the site (%s)...\n", strings.Join(build, " "))
		buildOut, err := buildRunner.Run(ctx, cfg.SiteRoot, build[0], build[1:]...)
		log.Debug(string(buildOut))
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		fmt.Fprintln(out, "   Build completed")
	}

	changes, err := git.Status(ctx)
	if err != nil {
		return fmt.Errorf("could not check git status: %w", err)
	}
	if changes.Empty() {
		fmt.Fprintln(out, "No changes to commit. Everything is up to date!")
		return nil
	}
	changes.DiffStat = git.DiffStat(ctx)

	fmt.Fprintln(out, "Step 4: Analyzing changes...")
	files := changes.Files()
	for i, f := range files {
		if i == 10 {
			fmt.Fprintf(out, "      ... and %d more files\n", len(files)-10)
			break
		}
		fmt.Fprintf(out, "      %-8s %s\n", f.Action, f.Path)
	}

	fmt.Fprintln(out, "Step 5: Generating commit message...")
	summarizer := newDeploySummarizer(ctx, cfg.Commit, globalHttpTransport, noAI)
	message, source, err := summarizer.SummarizeWithSource(ctx, changes)
	if err != nil {
		return fmt.Errorf("could not produce a commit message: %w", err)
	}
	fmt.Fprintf(out, "   Message (%s): %q\n", source, message)

	if dryRun {
		fmt.Fprintln(out, "Dry run: nothing staged, committed or pushed.")
		return nil
	}

	fmt.Fprintln(out, "Step 6: Staging changes...")
	if err := git.AddAll(ctx); err != nil {
		return fmt.Errorf("could not stage changes: %w", err)
	}
	fmt.Fprintln(out, "Step 7: Creating commit...")
	if _, err := git.Commit(ctx, message); err != nil {
		return fmt.Errorf("could not create commit: %w", err)
	}
	fmt.Fprintln(out, "Step 8: Pushing...")
	if _, err := git.Push(ctx); err != nil {
		return fmt.Errorf("could not push (you may need to pull first or check your remote): %w", err)
	}

	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "DEPLOYMENT COMPLETE")
	if skipBuild {
		fmt.Fprintln(out, "   Build: skipped")
	} else {
		fmt.Fprintln(out, "   Build: success")
	}
	fmt.Fprintf(out, "   Commit: %q\n", message)
	fmt.Fprintln(out, "   Push: success")
	fmt.Fprintln(out, rule)
	return nil
}
