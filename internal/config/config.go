package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gallery-tools/internal/models" // Import models for the Config struct

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus" // Use logrus
)

// StateDir holds the lock file and ledger, relative to SiteRoot. It carries its
// own .gitignore so commit and deploy never stage its contents.
const StateDir = ".gallery-tools"

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "gallery-tools.toml"

// Defaults for a site laid out the way the Vite front end expects.
const (
	DefaultAssetDir     = "src/assets"
	DefaultRegistryPath = "src/components/Portfolio.tsx"
	DefaultImportPrefix = "../assets/"
	DefaultListMarker   = "const portfolioItems: BlogPost[] = ["
	DefaultVarSuffix    = "Img"
	DefaultEmbedHost    = "novachukphoto.gallery"
	DefaultOutputDir    = "src/assets/responsive"
	DefaultDatabasePath = StateDir + "/ledger.db"
	DefaultWebPQuality  = 85
	DefaultJPEGQuality  = 82
	DefaultGenAIModel   = "gemini-2.5-flash"
	DefaultTimeoutSec   = 60
)

// LoadConfig reads the configuration from the specified path (defaulting to DefaultConfigPath)
// and fills in defaults for anything left unset.
// A missing file is not an error: the defaults describe the standard site layout.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = DefaultConfigPath
	}
	var cfg models.Config
	_, err := toml.DecodeFile(configFilePath, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debugf("No config file at %s, using defaults", configFilePath)
			ApplyDefaults(&cfg)
			return cfg, nil
		}
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return models.Config{}, fmt.Errorf("invalid config %s: %w", configFilePath, err)
	}

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// ApplyDefaults sets every unset field to its default value.
func ApplyDefaults(cfg *models.Config) {
	if cfg.SiteRoot == "" {
		cfg.SiteRoot = "."
	}
	if cfg.AssetDir == "" {
		cfg.AssetDir = DefaultAssetDir
	}
	if cfg.RegistryPath == "" {
		cfg.RegistryPath = DefaultRegistryPath
	}
	if cfg.RegistryFormat == "" {
		cfg.RegistryFormat = models.RegistryFormatSource
	}
	if cfg.ImportPrefix == "" {
		cfg.ImportPrefix = DefaultImportPrefix
	}
	if cfg.ListMarker == "" {
		cfg.ListMarker = DefaultListMarker
	}
	if cfg.VarSuffix == "" {
		cfg.VarSuffix = DefaultVarSuffix
	}
	if cfg.EmbedHost == "" {
		cfg.EmbedHost = DefaultEmbedHost
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath
	}

	r := &cfg.Responsive
	if r.OutputDir == "" {
		r.OutputDir = DefaultOutputDir
	}
	if r.WebPQuality <= 0 {
		r.WebPQuality = DefaultWebPQuality
	}
	if r.JPEGQuality <= 0 {
		r.JPEGQuality = DefaultJPEGQuality
	}
	if r.Concurrency <= 0 {
		r.Concurrency = 1
	}
	if r.SpecialCases == nil {
		r.SpecialCases = map[string]string{
			"P&D": "pandd",
			"J&A": "janda",
		}
	}

	c := &cfg.Commit
	if c.SummaryCommand == nil {
		c.SummaryCommand = []string{"claude", "-p"}
	}
	if c.GenAIModel == "" {
		c.GenAIModel = DefaultGenAIModel
	}
	if len(c.BuildCommand) == 0 {
		c.BuildCommand = []string{"npm", "run", "build"}
	}
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = DefaultTimeoutSec
	}
}

// Validate rejects values that would make every command fail later.
func Validate(cfg models.Config) error {
	switch cfg.RegistryFormat {
	case models.RegistryFormatSource, models.RegistryFormatYAML:
	default:
		return fmt.Errorf("RegistryFormat must be %q or %q, got %q", models.RegistryFormatSource, models.RegistryFormatYAML, cfg.RegistryFormat)
	}
	if cfg.Responsive.WebPQuality > 100 || cfg.Responsive.JPEGQuality > 100 {
		return fmt.Errorf("Responsive qualities must be in 1..100")
	}
	for _, c := range cfg.Responsive.Categories {
		if c.Name == "" {
			return fmt.Errorf("Responsive.Categories entry without Name")
		}
		for _, w := range c.Widths {
			if w <= 0 {
				return fmt.Errorf("category %s has non-positive width %d", c.Name, w)
			}
		}
	}
	return nil
}

// Resolve joins a configured path with SiteRoot unless it is already absolute.
func Resolve(cfg models.Config, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.SiteRoot, p)
}

// EnsureStateDir creates StateDir under the site root and writes a .gitignore
// that ignores everything in it. An existing .gitignore is left alone.
func EnsureStateDir(cfg models.Config) (string, error) {
	dir := Resolve(cfg, StateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating state directory %s: %w", dir, err)
	}
	ignore := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignore); err == nil {
		return dir, nil
	}
	if err := os.WriteFile(ignore, []byte("*\n"), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", ignore, err)
	}
	log.Debugf("Created %s", ignore)
	return dir, nil
}
