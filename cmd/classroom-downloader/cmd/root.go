package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-classroom-download/internal/api"
	"go-classroom-download/internal/config"
	"go-classroom-download/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// downloadsDirFlag holds the value of the --downloads-dir flag
var downloadsDirFlag string

// httpTimeoutFlag holds the value of the --http-timeout flag
var httpTimeoutFlag int

// logLevel and logFormat configure logrus
var (
	logLevel  string
	logFormat string
)

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the globally configured HTTP transport (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "classroom-downloader",
	Short: "Batch-download the attachments of a Google Classroom page",
	Long: `Classroom Downloader scans a Google Classroom assignment page (by URL or
saved HTML file) for attached Drive and Docs files and downloads the selected
ones into a timestamped folder named after the assignment.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	closeTransport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigPath, "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log HTTP requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().StringVar(&downloadsDirFlag, "downloads-dir", "", "Directory downloads are written below (overrides config)")
	rootCmd.PersistentFlags().IntVar(&httpTimeoutFlag, "http-timeout", -1, "Timeout for HTTP requests in seconds (overrides config, -1 uses config default)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")

	// Hook to configure logging before any command runs
	cobra.OnInitialize(initLogging)
}

// initLogging configures logrus based on persistent flags
func initLogging() {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Warnf("Invalid log level '%s', using default 'info'", logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch logFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.Warnf("Invalid log format '%s', using default 'text'", logFormat)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	log.Debugf("Logging configured: Level=%s, Format=%s", log.GetLevel(), logFormat)
}

// loadGlobalConfig loads the configuration, applies flag overrides and sets up
// the global HTTP transport.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	fileConfig, err := config.ReadConfig(cfgFile)
	if err != nil {
		// Not fatal: every field has a usable default.
		if cmd.Flags().Changed("config") {
			log.WithError(err).Warnf("Failed to load configuration from %s", cfgFile)
		} else {
			log.WithError(err).Debugf("No configuration loaded from %s, using defaults", cfgFile)
		}
	}

	if cmd.Flags().Changed("log-api") {
		fileConfig.LogApiRequests = logApiFlag
		log.Debugf("Overriding LogApiRequests based on --log-api flag: %t", logApiFlag)
	}

	if cmd.Flags().Changed("downloads-dir") {
		if downloadsDirFlag != "" {
			fileConfig.DownloadsDir = downloadsDirFlag
			log.Debugf("Overriding DownloadsDir based on --downloads-dir flag: %s", downloadsDirFlag)
		} else {
			log.Warn("--downloads-dir flag provided but value is empty, ignoring.")
		}
	}

	if cmd.Flags().Changed("http-timeout") {
		if httpTimeoutFlag > 0 {
			fileConfig.HttpTimeoutSec = httpTimeoutFlag
			log.Debugf("Overriding HttpTimeoutSec based on --http-timeout flag: %d sec", httpTimeoutFlag)
		} else {
			log.Warnf("--http-timeout flag provided with invalid value %d, using config value", httpTimeoutFlag)
		}
	}

	// Derived paths follow the overridden downloads directory.
	globalConfig = config.ApplyDefaults(fileConfig)
	log.Debugf("Final config: DownloadsDir=%s DatabasePath=%s", globalConfig.DownloadsDir, globalConfig.DatabasePath)

	// --- Setup Global HTTP Transport ---
	baseTransport := http.DefaultTransport
	globalHttpTransport = baseTransport
	if globalConfig.LogApiRequests {
		logFilePath := "api.log"
		if _, statErr := os.Stat(globalConfig.DownloadsDir); statErr == nil {
			logFilePath = filepath.Join(globalConfig.DownloadsDir, logFilePath)
		} else {
			log.Warnf("DownloadsDir '%s' not found, saving api.log to current directory.", globalConfig.DownloadsDir)
		}
		log.Infof("HTTP logging to file: %s", logFilePath)

		loggingTransport, err := api.NewLoggingTransport(baseTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize HTTP logging transport, logging disabled.")
		} else {
			globalHttpTransport = loggingTransport
		}
	}
	return nil
}

// httpClient returns a client using the global transport and configured timeout.
func httpClient() *http.Client {
	return api.NewHTTPClient(globalHttpTransport, time.Duration(globalConfig.HttpTimeoutSec)*time.Second)
}

func closeTransport() {
	if loggingTransport, ok := globalHttpTransport.(*api.LoggingTransport); ok && loggingTransport != nil {
		log.Debug("Closing HTTP logging transport file.")
		if err := loggingTransport.Close(); err != nil {
			log.WithError(err).Error("Error closing API log file")
		}
	}
}
