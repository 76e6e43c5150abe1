package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-classroom-download/index"
	"go-classroom-download/internal/helpers"
	"go-classroom-download/internal/models"
)

// historyCmd represents the command to list recorded downloads
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded download attempts",
	Long:  `Lists every download attempt recorded in the database, oldest first.`,
	RunE:  runHistory,
}

// historyVerifyCmd checks recorded files against the filesystem
var historyVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify downloaded files still exist and match their checksum",
	Long: `Checks that every successfully downloaded file recorded in the database
still exists at its recorded location and, unless --check-hash=false, that its
BLAKE3 checksum is unchanged.`,
	RunE: runHistoryVerify,
}

// historyClearCmd deletes the recorded history
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded download attempts",
	Long:  `Deletes the download history from the database and the matching search index
entries. Downloaded files and settings are kept.`,
	RunE: runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyVerifyCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyCmd.Flags().Bool("failed", false, "Only show failed attempts")
	historyVerifyCmd.Flags().Bool("check-hash", true, "Perform hash check for existing files")

	viper.BindPFlag("history.failed", historyCmd.Flags().Lookup("failed"))
	historyClearCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	viper.BindPFlag("history.clear_yes", historyClearCmd.Flags().Lookup("yes"))
	viper.BindPFlag("history.check_hash", historyVerifyCmd.Flags().Lookup("check-hash"))
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.db.ListHistory()
	if err != nil {
		return err
	}
	onlyFailed := viper.GetBool("history.failed")

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Time\tStatus\tLabel\tFolder\tPath / Error\tID")
	fmt.Fprintln(tw, "----\t------\t-----\t------\t------------\t--")

	count := 0
	for _, e := range entries {
		if onlyFailed && e.Status != models.StatusError {
			continue
		}
		detail := e.Path
		if e.Status == models.StatusError {
			detail = e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Status,
			e.Label,
			e.Folder,
			detail,
			e.DownloadID,
		)
		count++
	}
	if err := tw.Flush(); err != nil {
		log.WithError(err).Error("Error flushing table writer for history")
	}
	log.Infof("Displayed %d entries.", count)
	return nil
}

func runHistoryVerify(cmd *cobra.Command, args []string) error {
	a, err := openApp(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.db.ListHistory()
	if err != nil {
		return err
	}
	checkHash := viper.GetBool("history.check_hash")

	checked, problems := 0, 0
	for _, e := range entries {
		if e.Status != models.StatusDownloaded {
			continue
		}
		checked++
		logger := log.WithField("id", e.DownloadID)
		if _, err := os.Stat(e.Path); err != nil {
			logger.Warnf("Missing: %s", e.Path)
			problems++
			continue
		}
		if !checkHash || e.Checksum == "" {
			continue
		}
		sum, err := helpers.HashFile(e.Path)
		if err != nil {
			logger.WithError(err).Warnf("Could not hash %s", e.Path)
			problems++
			continue
		}
		if sum != e.Checksum {
			logger.Warnf("Hash mismatch: %s", e.Path)
			problems++
		}
	}

	log.Infof("Verified %d file(s), %d problem(s).", checked, problems)
	if problems > 0 {
		return fmt.Errorf("%d recorded file(s) are missing or changed", problems)
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	if !viper.GetBool("history.clear_yes") {
		fmt.Printf("Delete the entire download history? (y/N): ")
		reader := bufio.NewReader(os.Stdin)
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(confirm)) != "y" {
			log.Info("Clear cancelled by user.")
			return nil
		}
	}

	a, err := openApp(true, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.db.ListHistory()
	if err != nil {
		return err
	}
	removed, err := a.db.ClearHistory()
	if err != nil {
		return err
	}
	log.Infof("Removed %d history entries.", removed)

	if a.index == nil {
		return nil
	}
	unindexed := 0
	for _, e := range entries {
		if e.Status != models.StatusDownloaded || e.DownloadID == "" {
			continue
		}
		if err := index.DeleteItem(a.index, e.DownloadID); err != nil {
			log.WithError(err).Warnf("Failed to remove %s from the search index", e.DownloadID)
			continue
		}
		unindexed++
	}
	log.Debugf("Removed %d item(s) from the search index.", unindexed)
	return nil
}
