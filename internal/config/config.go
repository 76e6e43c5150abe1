package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go-classroom-download/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHttpTimeoutSec = 300
	DefaultListenAddr     = "127.0.0.1:8765"
	DefaultUserAgent      = "classroom-downloader/1.0"
	databaseFileName      = "classroom_db"
	indexDirName          = "classroom.bleve"
)

// LoadConfig reads the configuration from the specified path (defaulting to "config.toml").
// It returns the loaded config with defaults applied and any error encountered.
func LoadConfig(configFilePath string) (models.Config, error) {
	cfg, err := ReadConfig(configFilePath)
	return ApplyDefaults(cfg), err
}

// ReadConfig decodes the config file as written, without defaults, so flag
// overrides can be applied before derived paths are filled in.
func ReadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = DefaultConfigPath
	}
	var cfg models.Config
	if _, err := toml.DecodeFile(configFilePath, &cfg); err != nil {
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	log.Debugf("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func ApplyDefaults(cfg models.Config) models.Config {
	if cfg.DownloadsDir == "" {
		cfg.DownloadsDir = defaultDownloadsDir()
	}
	if cfg.DownloadRoot == "" {
		cfg.DownloadRoot = models.DefaultDownloadRoot
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DownloadsDir, cfg.DownloadRoot, databaseFileName)
	}
	if cfg.BleveIndexPath == "" {
		cfg.BleveIndexPath = filepath.Join(cfg.DownloadsDir, cfg.DownloadRoot, indexDirName)
	}
	if cfg.HttpTimeoutSec <= 0 {
		cfg.HttpTimeoutSec = DefaultHttpTimeoutSec
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return cfg
}

// defaultDownloadsDir is ~/Downloads, or the working directory when the home
// directory cannot be determined.
func defaultDownloadsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.WithError(err).Warn("Could not determine home directory, downloading into the working directory")
		return "."
	}
	return filepath.Join(home, "Downloads")
}
