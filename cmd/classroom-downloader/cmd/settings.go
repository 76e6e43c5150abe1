package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const downloadRootSetting = "download-root"

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View or change stored settings",
	Long: `Reads and writes settings kept in the database.

Known settings:
  download-root  Folder below DownloadsDir that batch folders are created in (default "Classroom")`,
}

var settingsGetCmd = &cobra.Command{
	Use:       "get <name>",
	Short:     "Print a setting",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{downloadRootSetting},
	RunE:      runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	a, err := openApp(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.service.GetDownloadRoot(cmd.Context())
	if !resp.Success {
		log.Warnf("Could not read %s: %s", downloadRootSetting, resp.Error)
	}
	fmt.Println(resp.Value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if args[0] != downloadRootSetting {
		return fmt.Errorf("unknown setting %q", args[0])
	}
	a, err := openApp(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.service.SetDownloadRoot(cmd.Context(), args[1])
	if !resp.Success {
		return fmt.Errorf("could not set %s: %s", downloadRootSetting, resp.Error)
	}
	fmt.Println(resp.Value)
	return nil
}
