package cmd

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	index "gallery-tools/index"
	"gallery-tools/internal/config"
	"gallery-tools/internal/models"
	"gallery-tools/internal/registry"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// registryLockPath sits in the tool's state dir, which git ignores.
const registryLockPath = config.StateDir + "/registry.lock"

var errUsage = errors.New("no arguments given")

var addGalleryReq registry.Request

var addGalleryCmd = &cobra.Command{
	Use:   "add-gallery",
	Short: "Register a new gallery in the site's gallery registry",
	Long: `Adds a gallery record at the head of the registry and imports its thumbnail.

Either paste the full embed snippet with --embed, or give --embedId and --slug.
--title, --description and --image are always required; --image is a filename
inside the asset directory.`,
	Example: `  gallery-tools add-gallery \
    --title "Sarah & Michael" \
    --description "A beautiful spring wedding" \
    --embed "<script>...</script><template data-pt-slideshowid='abc123'></template><script src='https://www.novachukphoto.gallery/-sarahmichael/...'></script>" \
    --image "Sarah and Michael.jpg"

  gallery-tools add-gallery \
    --title "Sarah & Michael" \
    --description "A beautiful spring wedding" \
    --embedId "abc123def456" \
    --slug "-sarahmichael" \
    --image "Sarah and Michael.jpg"`,
	RunE: runAddGallery,
}

func init() {
	rootCmd.AddCommand(addGalleryCmd)

	f := addGalleryCmd.Flags()
	f.StringVar(&addGalleryReq.Title, "title", "", "Gallery title (e.g. \"Marianna & Paul\")")
	f.StringVar(&addGalleryReq.Description, "description", "", "Short description for the gallery tile")
	f.StringVar(&addGalleryReq.Image, "image", "", "Image filename in the asset directory")
	f.StringVar(&addGalleryReq.Embed, "embed", "", "Full embed snippet copied from the gallery host")
	f.StringVar(&addGalleryReq.EmbedID, "embedId", "", "Gallery embed ID (manual mode)")
	f.StringVar(&addGalleryReq.Slug, "slug", "", "URL slug, e.g. \"-mariannapaul\" (manual mode)")
	f.StringVar(&addGalleryReq.TextContent, "textContent", "", "Full text content for the embed")

	// Help exits non-zero: nothing was registered.
	addGalleryCmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		printAddGalleryUsage(c.ErrOrStderr(), c)
		osExit(1)
	})
}

func printAddGalleryUsage(w io.Writer, c *cobra.Command) {
	fmt.Fprintln(w, c.Long)
	fmt.Fprintln(w)
	fmt.Fprint(w, c.UsageString())
}

// openRegistry returns the Store selected by RegistryFormat.
func openRegistry(cfg models.Config) registry.Store {
	registryPath := config.Resolve(cfg, cfg.RegistryPath)
	lockPath := config.Resolve(cfg, registryLockPath)
	if cfg.RegistryFormat == models.RegistryFormatYAML {
		return registry.NewYAMLStore(registryPath, lockPath)
	}
	return registry.NewSourceStore(registryPath, lockPath, registry.SourceOptions{
		ListMarker:   cfg.ListMarker,
		ImportPrefix: cfg.ImportPrefix,
		AssetRef:     path.Base(strings.TrimRight(cfg.ImportPrefix, "/")),
	})
}

func runAddGallery(cmd *cobra.Command, args []string) error {
	anySet := false
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			anySet = true
		}
	})
	if !anySet {
		printAddGalleryUsage(cmd.ErrOrStderr(), cmd)
		return errUsage
	}

	cfg := globalConfig
	if _, err := config.EnsureStateDir(cfg); err != nil {
		return err
	}
	registrar := &registry.Registrar{
		Store:     openRegistry(cfg),
		AssetDir:  config.Resolve(cfg, cfg.AssetDir),
		EmbedHost: cfg.EmbedHost,
		VarSuffix: cfg.VarSuffix,
	}

	result, err := registrar.Register(cmd.Context(), addGalleryReq)
	if err != nil {
		return err
	}

	rec := result.Record
	out := cmd.OutOrStdout()
	if result.Mode == "embed" {
		fmt.Fprintln(out, "Parsed embed code:")
		fmt.Fprintf(out, "   Embed ID: %s\n", rec.EmbedID)
		fmt.Fprintf(out, "   Slug: %s\n", rec.Slug)
	}
	fmt.Fprintln(out, "Gallery added:")
	fmt.Fprintf(out, "   Title: %s\n", rec.Title)
	fmt.Fprintf(out, "   Image: %s (as %s)\n", result.Asset.Filename, result.Asset.VarName)
	fmt.Fprintf(out, "   ID: %d\n", rec.ID)
	fmt.Fprintf(out, "   Embed ID: %s\n", rec.EmbedID)
	fmt.Fprintf(out, "   Slug: %s\n", rec.Slug)
	fmt.Fprintf(out, "   Registry: %s\n", registrar.Store.Path())

	if cfg.BleveIndexPath != "" {
		indexGallery(cfg, rec, registrar.Store.Path())
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "   1. Review the changes in %s\n", cfg.RegistryPath)
	fmt.Fprintln(out, "   2. Generate responsive images: gallery-tools responsive")
	fmt.Fprintln(out, "   3. Test the site locally: npm run dev")
	fmt.Fprintln(out, "   4. Commit and push: gallery-tools commit")
	return nil
}

// indexGallery adds rec to the search index. Failures only warn: the registry is
// the source of truth and `search --reindex` can rebuild the index.
func indexGallery(cfg models.Config, rec models.GalleryRecord, registryPath string) {
	indexPath := config.Resolve(cfg, cfg.BleveIndexPath)
	bleveIndex, err := index.OpenOrCreateIndex(indexPath)
	if err != nil {
		log.WithError(err).Warnf("Could not open search index %s, gallery not indexed", indexPath)
		return
	}
	defer func() {
		if err := bleveIndex.Close(); err != nil {
			log.WithError(err).Warn("Error closing search index")
		}
	}()
	if err := index.IndexItem(bleveIndex, index.ItemFromRecord(rec, registryPath)); err != nil {
		log.WithError(err).Warnf("Failed to index gallery %d", rec.ID)
		return
	}
	log.Debugf("Indexed gallery %d in %s", rec.ID, indexPath)
}
