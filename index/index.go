package index

import (
	"errors"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	log "github.com/sirupsen/logrus"
)

const (
	defaultIndexPath = "classroom.bleve"

	// ItemType is the document type of indexed attachments.
	ItemType = "attachment"

	// maxResults caps a single search.
	maxResults = 50
)

// Item is one downloaded attachment as stored in the search index. Fields
// are searchable by their JSON tag names, e.g. '+label:essay' or '+extension:pdf'.
type Item struct {
	ID           string    `json:"id"`       // Download ID
	Type         string    `json:"type"`     // ItemType
	Name         string    `json:"name"`     // Saved file name
	Label        string    `json:"label"`    // Assignment label the batch was run with
	Folder       string    `json:"folder"`   // Session folder
	FilePath     string    `json:"filePath"` // Absolute path on disk
	SourceURL    string    `json:"sourceUrl"`
	FetchURL     string    `json:"fetchUrl"`
	Host         string    `json:"host,omitempty"`
	Extension    string    `json:"extension,omitempty"`
	FileSizeKB   float64   `json:"fileSizeKB,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// newMapping indexes names, labels and folders as text and identifiers as
// exact keywords.
func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	item := bleve.NewDocumentMapping()
	for _, field := range []string{"name", "label", "folder"} {
		item.AddFieldMappingsAt(field, text)
	}
	for _, field := range []string{"id", "type", "host", "extension", "checksum", "sourceUrl", "fetchUrl", "filePath"} {
		item.AddFieldMappingsAt(field, exact)
	}
	item.AddFieldMappingsAt("fileSizeKB", bleve.NewNumericFieldMapping())
	item.AddFieldMappingsAt("downloadedAt", bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.TypeField = "type"
	m.AddDocumentMapping(ItemType, item)
	m.DefaultMapping = item
	return m
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	index, err := bleve.Open(indexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		log.Debugf("Creating new index at: %s", indexPath)
		return bleve.New(indexPath, newMapping())
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("Opened existing index at: %s", indexPath)
	return index, nil
}

// IndexItem adds or updates an item in the Bleve index.
func IndexItem(index bleve.Index, item Item) error {
	if item.Type == "" {
		item.Type = ItemType
	}
	return index.Index(item.ID, item)
}

// DeleteItem removes one item from the index.
func DeleteItem(index bleve.Index, id string) error {
	return index.Delete(id)
}

// SearchIndex runs a query string search, best matches first and newest
// first among equal scores.
func SearchIndex(index bleve.Index, query string) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), maxResults, 0, false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"-_score", "-downloadedAt"})
	return index.Search(req)
}

// DeleteIndex removes the index directory.
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Infof("Deleting index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}
