package index

import (
	"fmt"
	"os"

	"gallery-tools/internal/models"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

const defaultIndexPath = "galleries.bleve"

// Item is one searchable gallery. Fields are queryable by their JSON names,
// e.g. '+slug:laura-trevor' or 'title:vineyard'.
type Item struct {
	ID          string `json:"id"`   // gallery_<id>
	Type        string `json:"type"` // always "gallery"
	GalleryID   int    `json:"galleryId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
	EmbedID     string `json:"embedId"`
	Thumbnail   string `json:"thumbnail"`
	TextContent string `json:"textContent,omitempty"`
	Registry    string `json:"registry"` // Registry file the record lives in
}

// ItemFromRecord converts a registry record into an index item.
func ItemFromRecord(rec models.GalleryRecord, registryPath string) Item {
	return Item{
		ID:          fmt.Sprintf("gallery_%d", rec.ID),
		Type:        "gallery",
		GalleryID:   rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Slug:        rec.Slug,
		EmbedID:     rec.EmbedID,
		Thumbnail:   rec.Thumbnail,
		TextContent: rec.TextContent,
		Registry:    registryPath,
	}
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Debugf("Creating new index at: %s", indexPath)
		index, err = bleve.New(indexPath, bleve.NewIndexMapping())
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.Debugf("Opened existing index at: %s", indexPath)
	}
	return index, nil
}

// IndexItem adds or updates an item.
func IndexItem(index bleve.Index, item Item) error {
	return index.Index(item.ID, item)
}

// Reindex replaces the indexed galleries with records in one batch.
func Reindex(index bleve.Index, records []models.GalleryRecord, registryPath string) error {
	existing, err := index.DocCount()
	if err != nil {
		return err
	}

	batch := index.NewBatch()
	if existing > 0 {
		all := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(existing), 0, false)
		res, err := index.Search(all)
		if err != nil {
			return fmt.Errorf("listing indexed documents: %w", err)
		}
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
	}
	for _, rec := range records {
		item := ItemFromRecord(rec, registryPath)
		if err := batch.Index(item.ID, item); err != nil {
			return fmt.Errorf("indexing gallery %d: %w", rec.ID, err)
		}
	}
	return index.Batch(batch)
}

// SearchIndex runs a query string search and returns all stored fields.
func SearchIndex(index bleve.Index, query string) (*bleve.SearchResult, error) {
	searchRequest := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	searchRequest.Fields = []string{"*"}
	return index.Search(searchRequest)
}

// DeleteIndex removes the index directory.
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Infof("Deleting index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}
