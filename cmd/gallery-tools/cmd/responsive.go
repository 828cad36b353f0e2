package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gallery-tools/internal/config"
	"gallery-tools/internal/database"
	"gallery-tools/internal/models"
	"gallery-tools/internal/responsive"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var responsiveCmd = &cobra.Command{
	Use:   "responsive",
	Short: "Generate responsive WebP/JPEG variants of the site's images",
	Long: `Resizes every image in the responsive manifest to each configured width and
writes a WebP and a JPEG variant to the output directory. Variants that already
exist are skipped. Per-image problems are reported in the summary; the command
itself always succeeds.`,
	RunE: runResponsive,
}

func init() {
	rootCmd.AddCommand(responsiveCmd)

	responsiveCmd.Flags().IntP("concurrency", "c", 1, "Number of images processed at once")
	responsiveCmd.Flags().Bool("watch", false, "Keep running and regenerate when a source image changes")
	responsiveCmd.Flags().Bool("no-ledger", false, "Do not record written variants in the ledger")

	_ = viper.BindPFlag("responsive.concurrency", responsiveCmd.Flags().Lookup("concurrency"))
}

// newGenerator builds a Generator from cfg. The caller owns the returned ledger.
func newGenerator(cfg models.Config, withLedger bool) (*responsive.Generator, *database.DB) {
	r := cfg.Responsive

	categories := r.Categories
	if len(categories) == 0 {
		categories = responsive.DefaultCategories()
	}

	gen := &responsive.Generator{
		AssetDir:     config.Resolve(cfg, cfg.AssetDir),
		OutputDir:    config.Resolve(cfg, r.OutputDir),
		Categories:   categories,
		SpecialCases: r.SpecialCases,
		Encoders:     responsive.DefaultEncoders(r.WebPQuality, r.JPEGQuality),
		Concurrency:  r.Concurrency,
	}

	if !withLedger {
		return gen, nil
	}
	if _, err := config.EnsureStateDir(cfg); err != nil {
		log.WithError(err).Warn("Could not prepare the state directory")
	}
	dbPath := config.Resolve(cfg, cfg.DatabasePath)
	db, err := database.Open(dbPath)
	if err != nil {
		log.WithError(err).Warnf("Ledger unavailable at %s, variants will not be recorded", dbPath)
		return gen, nil
	}
	gen.Ledger = db
	return gen, db
}

func runResponsive(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	if cmd.Flags().Changed("concurrency") {
		cfg.Responsive.Concurrency = viper.GetInt("responsive.concurrency")
	}
	if err := responsive.ValidateCategories(cfg.Responsive.Categories); err != nil {
		return err
	}
	noLedger, _ := cmd.Flags().GetBool("no-ledger")
	watch, _ := cmd.Flags().GetBool("watch")

	gen, db := newGenerator(cfg, !noLedger)
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Error("Error closing ledger")
			}
		}()
	}

	out := cmd.OutOrStdout()
	log.WithFields(log.Fields{
		"output":      gen.OutputDir,
		"concurrency": gen.Concurrency,
	}).Info("Generating responsive images")

	summary, err := runWithProgress(cmd.Context(), gen, out)
	if err != nil {
		// Nothing could be written; still reported as a summary.
		log.WithError(err).Error("Responsive generation aborted")
	}
	fmt.Fprintln(out, summary.String())

	if !watch {
		return nil
	}

	err = gen.Watch(cmd.Context(), func(changed []string, s responsive.Summary) {
		fmt.Fprintf(out, "[%s] %s\n", strings.Join(changed, ", "), s.String())
	})
	if err != nil && cmd.Context().Err() == nil {
		log.WithError(err).Error("Watch stopped")
	}
	return nil
}

// runWithProgress runs gen behind a live progress writer. Once the run is over,
// progress lines go straight to out.
func runWithProgress(ctx context.Context, gen *responsive.Generator, out io.Writer) (responsive.Summary, error) {
	writer := uilive.New()
	writer.Out = out
	writer.Start()
	gen.Progress = writer

	summary, err := gen.Run(ctx)
	writer.Stop()
	gen.Progress = out
	return summary, err
}
