package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-classroom-download/internal/downloader"
	"go-classroom-download/internal/helpers"
	"go-classroom-download/internal/models"
	"go-classroom-download/internal/service"
)

var downloadCmd = &cobra.Command{
	Use:   "download <page-url|saved-page.html>",
	Short: "Download the attachments of a Classroom page",
	Long: `Scans a Google Classroom page and downloads the selected attachments into
<DownloadsDir>/<root>/<label>_<timestamp>/. Files are numbered as in 'scan';
without --select every attachment is downloaded.

Examples:
  classroom-downloader download saved-assignment.html
  classroom-downloader download https://classroom.google.com/c/ABC/a/DEF/details --select 1,3 -y`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringP("select", "s", "", "Comma-separated attachment numbers to download (default: all)")
	downloadCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	viper.BindPFlag("download.select", downloadCmd.Flags().Lookup("select"))
	viper.BindPFlag("download.yes", downloadCmd.Flags().Lookup("yes"))
}

// progressManager reports each file on a live writer before handing it on.
type progressManager struct {
	next   downloader.Manager
	writer io.Writer
	total  int
	done   int
}

func (p *progressManager) Download(ctx context.Context, req downloader.Request) (string, error) {
	p.done++
	fmt.Fprintf(p.writer, "[%d/%d] Downloading %s\n", p.done, p.total, path.Base(req.Filename))
	return p.next.Download(ctx, req)
}

// completionNotifier is implemented by managers that report finished files.
type completionNotifier interface {
	OnComplete(fn func(downloader.Completed))
}

func (p *progressManager) OnComplete(fn func(downloader.Completed)) {
	if n, ok := p.next.(completionNotifier); ok {
		n.OnComplete(fn)
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	selected, err := parseSelection(viper.GetString("download.select"))
	if err != nil {
		return err
	}

	writer := uilive.New()
	progress := &progressManager{writer: writer}
	a, err := openApp(true, func(m downloader.Manager) downloader.Manager {
		progress.next = m
		return progress
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Error("Error closing application state")
		}
	}()

	ctx := cmd.Context()
	scan := a.service.Scan(ctx, models.ScanRequest{Source: args[0]})
	if !scan.Success {
		return fmt.Errorf("could not scan %s", args[0])
	}
	if len(scan.Files) == 0 {
		log.Info("No attachments found on the page.")
		return nil
	}
	printFiles(os.Stdout, scan.Label, scan.Files)

	batch, err := service.NewBatchRequest(scan.Session, selected)
	if err != nil {
		return err
	}

	target := a.configuredRoot() + "/" + helpers.SanitizeFolderName(batch.Label) + "_<timestamp>"
	if !viper.GetBool("download.yes") {
		fmt.Printf("Download %d file(s) into %s? (y/N): ", len(batch.Attachments), target)
		reader := bufio.NewReader(os.Stdin)
		confirm, _ := reader.ReadString('\n')
		confirm = strings.TrimSpace(strings.ToLower(confirm))
		if confirm != "y" {
			log.Info("Download cancelled by user.")
			return nil
		}
		log.Info("User confirmed download.")
	} else {
		log.Info("Skipping confirmation prompt due to --yes flag.")
	}

	progress.total = len(batch.Attachments)
	writer.Start()
	resp := a.service.Download(ctx, batch)
	writer.Stop()

	if !resp.Success {
		return fmt.Errorf("batch failed: %s", resp.Error)
	}

	failed := 0
	for i, r := range resp.Results {
		if r.Success {
			fmt.Printf("[%d] OK     %s\n", i+1, r.Path)
		} else {
			failed++
			fmt.Printf("[%d] FAILED %s: %s\n", i+1, r.URL, r.Error)
		}
	}
	log.Infof("Download complete: %d succeeded, %d failed.", len(resp.Results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d download(s) failed", failed, len(resp.Results))
	}
	return nil
}

// parseSelection parses "1,3, 5" into 1-based positions. Empty means all.
func parseSelection(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: %q is not an attachment number", service.ErrInvalidSelection, part)
		}
		out = append(out, n)
	}
	return out, nil
}
