package cmd

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-classroom-download/index"
)

// Variable bound to the --query flag
var searchQuery string

// searchCmd searches the index of downloaded attachments.
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the Bleve index for downloaded attachments",
	Long: `Performs a search against the Bleve index of downloaded attachments.
This searches the index at '[DownloadsDir]/Classroom/classroom.bleve' unless
'BleveIndexPath' is set in the configuration.

Supports Bleve's query string syntax. Fields (JSON tag names):
  - id (string): Download ID
  - name (string): Saved file name
  - label (string): Assignment label the batch ran with
  - folder (string): Session folder, e.g. "Essay 2_2024-03-05_07-08-09"
  - filePath (keyword): Absolute path of the file, matched exactly
  - sourceUrl, fetchUrl (keyword): Link on the page and the URL actually fetched
  - host (keyword): e.g. "docs.google.com"
  - extension (keyword): e.g. "pdf"
  - fileSizeKB (numeric)
  - downloadedAt (time): e.g. +downloadedAt:>"2024-01-01"

Examples:
  classroom-downloader search -q "essay"
  classroom-downloader search -q "+label:lab +extension:xlsx"`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Search query (uses Bleve query string syntax)")
	_ = searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	return runSearchLogic(globalConfig.BleveIndexPath, searchQuery)
}

// runSearchLogic executes the search against a specific index path.
func runSearchLogic(indexPath string, query string) error {
	log.Debugf("runSearchLogic called with indexPath: %s, query: %s", indexPath, query)
	if query == "" {
		return fmt.Errorf("search query cannot be empty")
	}

	// Open instead of OpenOrCreateIndex so searching never creates an index.
	bleveIndex, err := bleve.Open(indexPath)
	if err != nil {
		if err == bleve.ErrorIndexPathDoesNotExist {
			return fmt.Errorf("bleve index not found at %s, run 'download' first to create it", indexPath)
		}
		return fmt.Errorf("failed to open Bleve index at %s: %w", indexPath, err)
	}
	defer func() {
		if err := bleveIndex.Close(); err != nil {
			log.Errorf("Error closing Bleve index: %v", err)
		}
	}()

	searchResults, err := index.SearchIndex(bleveIndex, query)
	if err != nil {
		return fmt.Errorf("error performing search: %w", err)
	}

	log.Infof("Search finished. Hits: %d, Total: %d, Took: %s",
		len(searchResults.Hits),
		searchResults.Total,
		searchResults.Took)

	if searchResults.Total == 0 {
		fmt.Println("No results found matching your query.")
		return nil
	}
	fmt.Println("--- Search Results ---")
	for i, hit := range searchResults.Hits {
		fmt.Printf("[%d] ID: %s (Score: %.2f)\n", i+1, hit.ID, hit.Score)
		fields := make([]string, 0, len(hit.Fields))
		for field := range hit.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Printf("  %s: %v\n", field, hit.Fields[field])
		}
		fmt.Println("---")
	}
	return nil
}
