package registry

import (
	"bytes"
	"context"
	"fmt"

	"gallery-tools/internal/models"

	"gopkg.in/yaml.v3"
)

// yamlDocument is the on-disk layout of a structured registry.
type yamlDocument struct {
	Assets    []models.ImageAsset    `yaml:"assets"`
	Galleries []models.GalleryRecord `yaml:"galleries"`
}

// YAMLStore keeps the registry as a YAML data file. Records are inserted on the
// decoded document, so there is no text anchor that can go missing.
type YAMLStore struct {
	updater fileUpdater
}

// NewYAMLStore returns a store for the YAML registry at path. The file is
// created on the first Add if it does not exist.
func NewYAMLStore(path, lockPath string) *YAMLStore {
	return &YAMLStore{updater: fileUpdater{path: path, lockPath: lockPath, allowMissing: true}}
}

// Path implements Store.
func (s *YAMLStore) Path() string { return s.updater.path }

// Records implements Store.
func (s *YAMLStore) Records() ([]models.GalleryRecord, error) {
	data, _, err := s.updater.read()
	if err != nil {
		return nil, err
	}
	doc, err := decodeYAML(data)
	if err != nil {
		return nil, err
	}
	return doc.Galleries, nil
}

// Add implements Store.
func (s *YAMLStore) Add(ctx context.Context, rec models.GalleryRecord, asset models.ImageAsset) (models.GalleryRecord, error) {
	err := s.updater.update(ctx, func(current []byte) ([]byte, error) {
		doc, err := decodeYAML(current)
		if err != nil {
			return nil, err
		}
		rec.ID = NextID(doc.Galleries)
		rec.Thumbnail = asset.VarName

		doc.Assets = append(doc.Assets, asset)
		doc.Galleries = append([]models.GalleryRecord{rec}, doc.Galleries...)

		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding registry: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding registry: %w", err)
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		return models.GalleryRecord{}, err
	}
	return rec, nil
}

func decodeYAML(data []byte) (yamlDocument, error) {
	var doc yamlDocument
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing YAML registry: %w", err)
	}
	return doc, nil
}
