package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"gallery-tools/internal/config"
	"gallery-tools/internal/database"
	"gallery-tools/internal/helpers"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// dbCmd represents the base command for ledger operations
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the responsive image ledger",
	Long:  `The ledger records every variant written by 'responsive': its source, the source hash at the time, width, encoding and size.`,
}

var dbViewCmd = &cobra.Command{
	Use:   "view",
	Short: "List ledger entries",
	RunE:  runDbView,
}

var dbVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check ledger entries against the filesystem",
	Long: `For each entry, checks that the variant still exists and that its source image
has not changed since it was generated. Stale variants can be rebuilt by deleting
them and running 'responsive' again.`,
	RunE: runDbVerify,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbViewCmd)
	dbCmd.AddCommand(dbVerifyCmd)

	dbVerifyCmd.Flags().Bool("prune", false, "Delete entries whose variant file is gone")
}

func openLedger() (*database.DB, error) {
	if _, err := config.EnsureStateDir(globalConfig); err != nil {
		return nil, err
	}
	dbPath := config.Resolve(globalConfig, globalConfig.DatabasePath)
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at %s: %w", dbPath, err)
	}
	return db, nil
}

func closeLedger(db *database.DB) {
	if err := db.Close(); err != nil {
		log.WithError(err).Error("Error closing ledger")
	}
}

func runDbView(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger(db)

	entries, err := db.Derivatives()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Output\tSource\tCategory\tWidth\tEncoding\tSize\tGenerated")
	fmt.Fprintln(tw, "------\t------\t--------\t-----\t--------\t----\t---------")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			filepath.Base(e.OutputPath),
			e.Source,
			e.Category,
			e.Width,
			e.Encoding,
			helpers.BytesToSize(uint64(e.Bytes)),
			e.GeneratedAt.Format("2006-01-02 15:04"),
		)
	}
	if err := tw.Flush(); err != nil {
		log.WithError(err).Error("Error flushing table writer for db view")
	}
	log.Infof("Displayed %d entries.", len(entries))
	return nil
}

func runDbVerify(cmd *cobra.Command, args []string) error {
	prune, _ := cmd.Flags().GetBool("prune")
	assetDir := config.Resolve(globalConfig, globalConfig.AssetDir)

	db, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger(db)

	results, err := db.Verify(func(source string) string {
		return filepath.Join(assetDir, source)
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	counts := make(map[database.VerifyStatus]int)
	var pruned int
	for _, r := range results {
		counts[r.Status]++
		if r.Status == database.StatusOK {
			continue
		}
		fmt.Fprintf(out, "%-14s %s (source %s)\n", r.Status, r.Entry.OutputPath, r.Entry.Source)
		if prune && r.Status == database.StatusOutputMissing {
			if err := db.DeleteDerivative(r.Entry.OutputPath); err != nil {
				log.WithError(err).Warnf("Failed to prune %s", r.Entry.OutputPath)
				continue
			}
			pruned++
		}
	}

	fmt.Fprintf(out, "Checked %d, ok %d, output missing %d, source missing %d, stale %d\n",
		len(results),
		counts[database.StatusOK],
		counts[database.StatusOutputMissing],
		counts[database.StatusSourceMissing],
		counts[database.StatusStale])
	if prune {
		fmt.Fprintf(out, "Pruned %d entries\n", pruned)
	}
	if counts[database.StatusStale] > 0 {
		fmt.Fprintf(out, "Stale variants live in %s; delete them and run 'gallery-tools responsive'.\n",
			config.Resolve(globalConfig, globalConfig.Responsive.OutputDir))
	}
	return nil
}
