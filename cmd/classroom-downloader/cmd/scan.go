package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-classroom-download/internal/models"
	"go-classroom-download/internal/scanner"
	"go-classroom-download/internal/service"
)

var scanCmd = &cobra.Command{
	Use:   "scan <page-url|saved-page.html>",
	Short: "List the attachments found on a Classroom page",
	Long: `Scans a Google Classroom page for links to Drive and Docs files and prints
them with their numbers, as used by 'download --select'. The page can be a URL
or a page saved from the browser ("Save page as", HTML only is enough).`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("json", false, "Print the scan result as JSON")
	viper.BindPFlag("scan.json", scanCmd.Flags().Lookup("json"))
}

func runScan(cmd *cobra.Command, args []string) error {
	svc := service.New(service.Options{
		Scanner: scanner.NewScanner(httpClient(), globalConfig.UserAgent),
	})

	resp := svc.Scan(cmd.Context(), models.ScanRequest{Source: args[0]})
	if viper.GetBool("scan.json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if !resp.Success {
		return fmt.Errorf("could not scan %s", args[0])
	}

	log.Infof("Found %d attachment(s) for %q", len(resp.Files), resp.Label)
	printFiles(os.Stdout, resp.Label, resp.Files)
	return nil
}

// printFiles prints a numbered table of scanned attachments.
func printFiles(out io.Writer, label string, files []models.AttachmentRecord) {
	fmt.Fprintf(out, "Label: %s\n", label)
	if len(files) == 0 {
		fmt.Fprintln(out, "No attachments found.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFilename\tURL")
	fmt.Fprintln(tw, "-\t--------\t---")
	for i, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, f.Filename, f.URL)
	}
	if err := tw.Flush(); err != nil {
		log.WithError(err).Error("Error flushing table writer for scan output")
	}
}
