package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-classroom-download/index"
)

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().Bool("index", false, "Also delete the search index (it is rebuilt by later downloads)")
	cleanCmd.Flags().Bool("dry-run", false, "List the .tmp files without removing them")
	viper.BindPFlag("clean.index", cleanCmd.Flags().Lookup("index"))
	viper.BindPFlag("clean.dry_run", cleanCmd.Flags().Lookup("dry-run"))
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove temporary (.tmp) files from the download directory",
	Long: `Recursively scans <DownloadsDir>/<root> and removes leftover files ending
with .tmp, as left behind by interrupted downloads.`,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := openApp(false, nil)
	if err != nil {
		return err
	}
	cleanPath := filepath.Join(a.manager.BaseDir(), filepath.FromSlash(a.configuredRoot()))
	if err := a.Close(); err != nil {
		log.WithError(err).Warn("Error closing database")
	}

	info, err := os.Stat(cleanPath)
	if os.IsNotExist(err) {
		log.Infof("Nothing to clean, %s does not exist", cleanPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("error accessing %q: %w", cleanPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", cleanPath)
	}

	if viper.GetBool("clean.dry_run") {
		found, err := findTempFiles(cleanPath)
		for _, path := range found {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		log.Infof("Dry run: %d .tmp file(s) would be removed", len(found))
		return err
	}

	log.Infof("Scanning for .tmp files in %s...", cleanPath)
	removed, failed, walkErr := removeTempFiles(cleanPath)
	if walkErr != nil {
		log.Errorf("Error during directory walk of %q: %v", cleanPath, walkErr)
	}

	entry := log.WithField("removed", removed)
	if failed > 0 {
		entry.WithField("failed", failed).Warn("Clean finished with errors")
	} else {
		entry.Info("Clean complete")
	}

	if viper.GetBool("clean.index") {
		if err := index.DeleteIndex(globalConfig.BleveIndexPath); err != nil {
			return fmt.Errorf("failed to delete index: %w", err)
		}
	}

	if failed > 0 || walkErr != nil {
		return fmt.Errorf("clean did not complete")
	}
	return nil
}

// findTempFiles lists every *.tmp file below dir. Unreadable directories
// are skipped.
func findTempFiles(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Error accessing path %q during scan: %v", path, err)
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".tmp") {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// removeTempFiles deletes every *.tmp file below dir.
func removeTempFiles(dir string) (removed int, failed int, err error) {
	found, err := findTempFiles(dir)
	for _, path := range found {
		rmErr := os.Remove(path)
		switch {
		case rmErr == nil:
			log.Debugf("Removed %s", path)
			removed++
		case errors.Is(rmErr, fs.ErrNotExist):
			log.Debugf("%s was already gone", path)
		default:
			log.WithError(rmErr).Errorf("Failed to remove %s", path)
			failed++
		}
	}
	return removed, failed, err
}
