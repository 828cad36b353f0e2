package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	index "gallery-tools/index"
	"gallery-tools/internal/config"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var searchQuery string

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search registered galleries",
	Long: `Runs a Bleve query string against the gallery index, e.g.
  gallery-tools search -q vineyard
  gallery-tools search -q '+slug:laura-trevor'
Use --reindex to rebuild the index from the registry first.`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Bleve query string")
	searchCmd.Flags().Bool("reindex", false, "Rebuild the index from the registry before searching")
}

// searchIndexPath is BleveIndexPath, or galleries.bleve next to the ledger.
func searchIndexPath() string {
	if globalConfig.BleveIndexPath != "" {
		return config.Resolve(globalConfig, globalConfig.BleveIndexPath)
	}
	return filepath.Join(filepath.Dir(config.Resolve(globalConfig, globalConfig.DatabasePath)), "galleries.bleve")
}

func runSearch(cmd *cobra.Command, args []string) error {
	reindex, _ := cmd.Flags().GetBool("reindex")
	if searchQuery == "" && !reindex {
		return errors.New("search query cannot be empty (use -q)")
	}
	indexPath := searchIndexPath()
	out := cmd.OutOrStdout()

	if reindex {
		store := openRegistry(globalConfig)
		records, err := store.Records()
		if err != nil {
			return err
		}
		if _, err := config.EnsureStateDir(globalConfig); err != nil {
			return err
		}
		if err := index.DeleteIndex(indexPath); err != nil {
			return fmt.Errorf("removing old index: %w", err)
		}
		bleveIndex, err := index.OpenOrCreateIndex(indexPath)
		if err != nil {
			return err
		}
		err = index.Reindex(bleveIndex, records, store.Path())
		if closeErr := bleveIndex.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing Bleve index")
		}
		if err != nil {
			return fmt.Errorf("reindexing: %w", err)
		}
		fmt.Fprintf(out, "Indexed %d galleries from %s\n", len(records), store.Path())
		if searchQuery == "" {
			return nil
		}
	}

	bleveIndex, err := bleve.Open(indexPath)
	if err != nil {
		if err == bleve.ErrorIndexPathDoesNotExist {
			return fmt.Errorf("no search index at %s, run 'gallery-tools search --reindex' first", indexPath)
		}
		return fmt.Errorf("failed to open Bleve index at %s: %w", indexPath, err)
	}
	defer func() {
		if err := bleveIndex.Close(); err != nil {
			log.Errorf("Error closing Bleve index: %v", err)
		}
	}()

	results, err := index.SearchIndex(bleveIndex, searchQuery)
	if err != nil {
		return fmt.Errorf("error performing search: %w", err)
	}
	log.Debugf("Search finished. Hits: %d, Total: %d, Took: %s", len(results.Hits), results.Total, results.Took)

	if results.Total == 0 {
		fmt.Fprintln(out, "No galleries match your query.")
		return nil
	}
	for i, hit := range results.Hits {
		fmt.Fprintf(out, "[%d] %v (score %.2f)\n", i+1, hit.Fields["title"], hit.Score)
		for _, field := range []string{"galleryId", "slug", "embedId", "description"} {
			if v, ok := hit.Fields[field]; ok {
				fmt.Fprintf(out, "    %s: %v\n", field, v)
			}
		}
	}
	return nil
}
