package models

import (
	"time"
)

// Encoding identifies the file format of a responsive derivative.
type Encoding string

const (
	// EncodingWebP is the modern compressed format.
	EncodingWebP Encoding = "webp"
	// EncodingJPEG is the universally supported fallback.
	EncodingJPEG Encoding = "jpg"
)

// Registry formats understood by the registrar.
const (
	RegistryFormatSource = "source"
	RegistryFormatYAML   = "yaml"
)

type (
	Config struct {
		// Site layout
		SiteRoot       string `toml:"SiteRoot"`
		AssetDir       string `toml:"AssetDir"`
		RegistryPath   string `toml:"RegistryPath"`
		RegistryFormat string `toml:"RegistryFormat"` // "source" or "yaml"
		ImportPrefix   string `toml:"ImportPrefix"`   // Path prefix used in generated import lines
		ListMarker     string `toml:"ListMarker"`     // Declaration that opens the gallery list
		VarSuffix      string `toml:"VarSuffix"`
		EmbedHost      string `toml:"EmbedHost"`

		// State
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`

		Responsive ResponsiveConfig `toml:"Responsive"`
		Commit     CommitConfig     `toml:"Commit"`

		// Other
		LogApiRequests bool `toml:"LogApiRequests"`
	}

	ResponsiveConfig struct {
		OutputDir    string            `toml:"OutputDir"`
		WebPQuality  int               `toml:"WebPQuality"`
		JPEGQuality  int               `toml:"JPEGQuality"`
		Concurrency  int               `toml:"Concurrency"`
		SpecialCases map[string]string `toml:"SpecialCases"`
		Categories   []Category        `toml:"Categories"` // Empty means the built-in manifest
	}

	CommitConfig struct {
		SummaryCommand []string `toml:"SummaryCommand"` // e.g. ["claude", "-p"]; empty disables
		GenAIModel     string   `toml:"GenAIModel"`
		GenAIAPIKey    string   `toml:"GenAIAPIKey"` // Usually supplied via GEMINI_API_KEY
		BuildCommand   []string `toml:"BuildCommand"`
		TimeoutSec     int      `toml:"TimeoutSec"`
	}

	// Category groups source images that share a set of target widths.
	Category struct {
		Name   string   `toml:"Name"`
		Widths []int    `toml:"Widths"`
		Images []string `toml:"Images"`
	}

	// GalleryRecord is one portfolio entry in the registry.
	GalleryRecord struct {
		ID          int    `json:"id" yaml:"id"`
		EmbedID     string `json:"embedId" yaml:"embedId"`
		Slug        string `json:"slug" yaml:"slug"`
		Title       string `json:"title" yaml:"title"`
		Description string `json:"description" yaml:"description"`
		Thumbnail   string `json:"thumbnail" yaml:"thumbnail"`
		TextContent string `json:"textContent" yaml:"textContent"`
	}

	// ImageAsset is a source photograph referenced by a gallery record.
	ImageAsset struct {
		Filename string `json:"filename" yaml:"filename"`
		VarName  string `json:"varName" yaml:"varName"`
	}

	// Derivative describes one written responsive variant. Stored in the ledger.
	Derivative struct {
		OutputPath  string    `json:"outputPath"`
		Source      string    `json:"source"`
		SourceHash  string    `json:"sourceHash"`
		Category    string    `json:"category"`
		Width       int       `json:"width"`
		Encoding    Encoding  `json:"encoding"`
		Bytes       int64     `json:"bytes"`
		GeneratedAt time.Time `json:"generatedAt"`
	}

	// FileChange is one line of `git status --porcelain`.
	FileChange struct {
		Action string // added, modified, deleted, renamed
		Path   string
	}

	// ChangeSet groups working tree changes by kind.
	ChangeSet struct {
		Modified []string
		Added    []string
		Deleted  []string
		Renamed  []string
		DiffStat string
	}
)

// Empty reports whether the change set has no entries.
func (c ChangeSet) Empty() bool {
	return len(c.Modified)+len(c.Added)+len(c.Deleted)+len(c.Renamed) == 0
}

// Files returns all changes flattened, in status order per kind.
func (c ChangeSet) Files() []FileChange {
	var out []FileChange
	for _, f := range c.Added {
		out = append(out, FileChange{Action: "added", Path: f})
	}
	for _, f := range c.Modified {
		out = append(out, FileChange{Action: "modified", Path: f})
	}
	for _, f := range c.Deleted {
		out = append(out, FileChange{Action: "deleted", Path: f})
	}
	for _, f := range c.Renamed {
		out = append(out, FileChange{Action: "renamed", Path: f})
	}
	return out
}
