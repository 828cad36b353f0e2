package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gallery-tools/internal/helpers"
	"gallery-tools/internal/models"

	log "github.com/sirupsen/logrus"
)

// Request holds the raw add-gallery inputs.
type Request struct {
	Title       string
	Description string
	Image       string // Filename relative to the asset directory
	Embed       string // Full embed snippet (embed mode)
	EmbedID     string // Manual mode
	Slug        string // Manual mode
	TextContent string
}

// Result describes a completed registration.
type Result struct {
	Record models.GalleryRecord
	Asset  models.ImageAsset
	Mode   string // "embed" or "manual"
}

// Registrar validates add-gallery requests and commits them to a Store.
type Registrar struct {
	Store     Store
	AssetDir  string
	EmbedHost string
	VarSuffix string
}

// Validate checks req without touching the registry and returns the record and
// asset it would add. The record's ID and Thumbnail are filled in by the store.
func (r *Registrar) Validate(req Request) (models.GalleryRecord, models.ImageAsset, string, error) {
	var missing []string
	if strings.TrimSpace(req.Title) == "" {
		missing = append(missing, "--title")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "--description")
	}
	if strings.TrimSpace(req.Image) == "" {
		missing = append(missing, "--image")
	}
	if len(missing) > 0 {
		return models.GalleryRecord{}, models.ImageAsset{}, "", fmt.Errorf("%w: %s", ErrMissingArgument, strings.Join(missing, ", "))
	}

	var embedID, slug, mode string
	switch {
	case req.Embed != "" && (req.EmbedID != "" || req.Slug != ""):
		return models.GalleryRecord{}, models.ImageAsset{}, "", fmt.Errorf("%w (not both)", ErrAmbiguousSource)
	case req.Embed != "":
		var err error
		embedID, slug, err = ParseEmbed(req.Embed, r.EmbedHost)
		if err != nil {
			return models.GalleryRecord{}, models.ImageAsset{}, "", err
		}
		mode = "embed"
	case req.EmbedID != "" && req.Slug != "":
		embedID, slug, mode = req.EmbedID, req.Slug, "manual"
	default:
		return models.GalleryRecord{}, models.ImageAsset{}, "", ErrAmbiguousSource
	}

	imagePath := filepath.Join(r.AssetDir, req.Image)
	if !helpers.FileExists(imagePath) {
		return models.GalleryRecord{}, models.ImageAsset{}, "", fmt.Errorf("%w: %s", ErrAssetNotFound, imagePath)
	}

	asset := models.ImageAsset{
		Filename: filepath.ToSlash(req.Image),
		VarName:  VarName(req.Image, r.VarSuffix),
	}
	rec := models.GalleryRecord{
		EmbedID:     embedID,
		Slug:        slug,
		Title:       req.Title,
		Description: req.Description,
		TextContent: req.TextContent,
	}
	return rec, asset, mode, nil
}

// Register validates req and, when every check passes, adds the record to the store.
func (r *Registrar) Register(ctx context.Context, req Request) (Result, error) {
	rec, asset, mode, err := r.Validate(req)
	if err != nil {
		return Result{}, err
	}

	stored, err := r.Store.Add(ctx, rec, asset)
	if err != nil {
		return Result{}, err
	}
	log.WithFields(log.Fields{
		"id":       stored.ID,
		"slug":     stored.Slug,
		"registry": r.Store.Path(),
	}).Info("Gallery registered")

	// The store may reuse or rename the binding.
	asset.VarName = stored.Thumbnail
	return Result{Record: stored, Asset: asset, Mode: mode}, nil
}
