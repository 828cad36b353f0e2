package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gallery-tools/internal/config"
	"gallery-tools/internal/helpers"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cleanCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove temporary (.tmp) files left by interrupted runs",
	Long: `Scans the responsive output directory (recursively) for files ending in
.tmp, and removes the registry's own temporary copies (<registry>.*.tmp) left
next to it.`,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	outputDir := config.Resolve(cfg, cfg.Responsive.OutputDir)
	registryPath := config.Resolve(cfg, cfg.RegistryPath)

	var removed, failed int
	remove := func(path string) {
		log.Debugf("Found .tmp file: %s", path)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				log.Warnf("Attempted to remove .tmp file %q, but it was already gone.", path)
				return
			}
			log.Errorf("Failed to remove .tmp file %q: %v", path, err)
			failed++
			return
		}
		log.Infof("Removed .tmp file: %s", path)
		removed++
	}

	if info, err := os.Stat(outputDir); err == nil && info.IsDir() {
		walkErr := filepath.Walk(outputDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				log.Warnf("Error accessing path %q during scan: %v", path, err)
				return nil
			}
			if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), helpers.TempSuffix) {
				remove(path)
			}
			return nil
		})
		if walkErr != nil {
			return fmt.Errorf("scanning %s: %w", outputDir, walkErr)
		}
	} else {
		log.Debugf("Output directory %s does not exist, skipping", outputDir)
	}

	// Only the names WriteFileAtomic gives the registry's temp copies.
	matches, err := filepath.Glob(registryPath + ".*" + helpers.TempSuffix)
	if err != nil {
		return err
	}
	for _, m := range matches {
		remove(m)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d temporary file(s)", removed)
	if failed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d could not be removed", failed)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
