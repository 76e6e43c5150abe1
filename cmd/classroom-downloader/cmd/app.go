package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"

	"go-classroom-download/index"
	"go-classroom-download/internal/database"
	"go-classroom-download/internal/downloader"
	"go-classroom-download/internal/models"
	"go-classroom-download/internal/scanner"
	"go-classroom-download/internal/service"
)

// app bundles the state a command needs to run the service.
type app struct {
	db      *database.DB
	index   bleve.Index
	manager *downloader.HTTPManager
	service *service.Service
}

// rootSetting reads the stored download root, falling back to the configured
// one when nothing has been stored yet.
type rootSetting struct {
	db       *database.DB
	fallback string
}

func (r rootSetting) GetDownloadRoot() (string, error) {
	if !r.db.HasDownloadRoot() && r.fallback != "" {
		return r.fallback, nil
	}
	return r.db.GetDownloadRoot()
}

func (r rootSetting) SetDownloadRoot(value string) error {
	return r.db.SetDownloadRoot(value)
}

// openApp opens the database and, when withIndex is set, the search index,
// then wires the service. wrap lets a command decorate the download manager.
func openApp(withIndex bool, wrap func(downloader.Manager) downloader.Manager) (*app, error) {
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", globalConfig.DatabasePath, err)
	}

	a := &app{db: db}
	if withIndex {
		a.index, err = index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
		if err != nil {
			// Downloads still work without search.
			log.WithError(err).Warnf("Failed to open search index at %s, downloads will not be indexed", globalConfig.BleveIndexPath)
			a.index = nil
		}
	}

	client := httpClient()
	a.manager = downloader.NewHTTPManager(client, globalConfig.DownloadsDir, globalConfig.UserAgent)

	var manager downloader.Manager = a.manager
	if wrap != nil {
		manager = wrap(a.manager)
	}

	opts := service.Options{
		Scanner:  scanner.NewScanner(client, globalConfig.UserAgent),
		Manager:  manager,
		Settings: rootSetting{db: db, fallback: globalConfig.DownloadRoot},
		History:  db,
		Index:    a.index,
	}
	a.service = service.New(opts)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing search index: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}

// configuredRoot is the download root a batch would use right now.
func (a *app) configuredRoot() string {
	resp := a.service.GetDownloadRoot(context.Background())
	if resp.Value == "" {
		return models.DefaultDownloadRoot
	}
	return resp.Value
}
