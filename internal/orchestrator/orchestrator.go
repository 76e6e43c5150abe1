package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go-classroom-download/internal/downloader"
	"go-classroom-download/internal/helpers"
	"go-classroom-download/internal/models"
	"go-classroom-download/internal/resolver"

	log "github.com/sirupsen/logrus"
)

// ErrInvalidRecord aborts a batch before any download starts.
var ErrInvalidRecord = errors.New("invalid attachment record")

// errNoHandle is reported when the manager returns neither an error nor a handle.
var errNoHandle = errors.New("download manager returned no download ID")

// Planned is one record after sanitizing and resolving, right before it is
// handed to the download manager.
type Planned struct {
	Record   models.AttachmentRecord
	Resolved models.ResolvedDownload
}

// Orchestrator turns a selected set of records into download manager calls.
type Orchestrator struct {
	manager downloader.Manager
	root    string
	now     func() time.Time

	// Observe, when set, is called after each attempted download.
	Observe func(p Planned, result models.DownloadResult)
}

// New creates an Orchestrator saving below root. A nil clock uses time.Now.
func New(manager downloader.Manager, root string, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	if strings.TrimSpace(root) == "" {
		root = models.DefaultDownloadRoot
	}
	return &Orchestrator{manager: manager, root: root, now: now}
}

// Root returns the root folder downloads are placed in.
func (o *Orchestrator) Root() string {
	return o.root
}

// RunBatch downloads records one at a time into a fresh session folder and
// returns one result per record in input order. A failed download does not
// stop the batch; an invalid record fails the whole batch up front.
func (o *Orchestrator) RunBatch(ctx context.Context, records []models.AttachmentRecord, label string) ([]models.DownloadResult, error) {
	if err := validate(records); err != nil {
		return nil, err
	}

	folder := helpers.SessionFolder(label, o.now())
	logger := log.WithField("folder", folder)
	logger.Infof("Starting batch of %d file(s)", len(records))

	results := make([]models.DownloadResult, 0, len(records))
	for i, record := range records {
		planned := o.Plan(record, folder)
		result := models.DownloadResult{URL: record.URL, Path: planned.Resolved.SavePath}

		id, err := o.manager.Download(ctx, downloader.Request{
			URL:        planned.Resolved.FetchURL,
			Filename:   planned.Resolved.SavePath,
			PromptUser: false,
		})
		if err == nil && id == "" {
			err = errNoHandle
		}
		if err != nil {
			logger.WithError(err).Warnf("[%d/%d] Failed to download %s", i+1, len(records), record.URL)
			result.Error = err.Error()
		} else {
			logger.Infof("[%d/%d] Started %s as %s", i+1, len(records), planned.Resolved.SavePath, id)
			result.Success = true
			result.DownloadID = id
		}

		results = append(results, result)
		if o.Observe != nil {
			o.Observe(planned, result)
		}
	}
	return results, nil
}

// Plan sanitizes the record's filename, adds the extension implied by its
// URL when the name has none, and resolves the URL to fetch.
func (o *Orchestrator) Plan(record models.AttachmentRecord, folder string) Planned {
	name := helpers.SanitizeFilename(record.Filename)
	if !helpers.HasExtension(name) {
		name += resolver.ImpliedExtension(record.URL)
	}
	savePath := o.root + "/" + folder + "/" + name
	return Planned{
		Record:   record,
		Resolved: resolver.Resolve(record.URL, savePath),
	}
}

func validate(records []models.AttachmentRecord) error {
	for i, record := range records {
		if strings.TrimSpace(record.URL) == "" {
			return fmt.Errorf("%w: record %d has an empty URL", ErrInvalidRecord, i)
		}
		if _, err := url.ParseRequestURI(record.URL); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
	}
	return nil
}
