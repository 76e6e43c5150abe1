package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go-classroom-download/index"
	"go-classroom-download/internal/downloader"
	"go-classroom-download/internal/models"
	"go-classroom-download/internal/orchestrator"
	"go-classroom-download/internal/scanner"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

// ErrInvalidSetting is returned for download roots that cannot be used as a relative folder.
var ErrInvalidSetting = errors.New("invalid download root")

// ErrInvalidSelection is returned when a selection does not fit the session.
var ErrInvalidSelection = errors.New("invalid selection")

// PageScanner scans a page given as URL or saved file.
type PageScanner interface {
	ScanSource(ctx context.Context, source string) (scanner.Result, error)
}

// SettingsStore persists the download root folder.
type SettingsStore interface {
	GetDownloadRoot() (string, error)
	SetDownloadRoot(value string) error
}

// HistoryStore records download attempts.
type HistoryStore interface {
	PutHistory(entry models.HistoryEntry) error
}

// completionNotifier is implemented by managers that report finished files.
type completionNotifier interface {
	OnComplete(fn func(downloader.Completed))
}

// Options wires a Service. Scanner, Manager and Settings are required.
type Options struct {
	Scanner  PageScanner
	Manager  downloader.Manager
	Settings SettingsStore
	History  HistoryStore // optional
	Index    bleve.Index  // optional
	Now      func() time.Time
}

// Service answers the scan, batch-download and settings requests of the UI
// layer. It holds no per-page state; scans return a Session the caller
// passes back when it builds a batch.
type Service struct {
	scanner  PageScanner
	manager  downloader.Manager
	settings SettingsStore
	history  HistoryStore
	index    bleve.Index
	now      func() time.Time

	batchMu sync.Mutex // one batch at a time

	completedMu sync.Mutex
	completed   map[string]downloader.Completed
}

// New creates a Service.
func New(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Service{
		scanner:   opts.Scanner,
		manager:   opts.Manager,
		settings:  opts.Settings,
		history:   opts.History,
		index:     opts.Index,
		now:       now,
		completed: make(map[string]downloader.Completed),
	}
	if n, ok := opts.Manager.(completionNotifier); ok {
		n.OnComplete(s.rememberCompletion)
	}
	return s
}

// Scan scans a page. Any failure is reported as an unsuccessful, empty scan.
func (s *Service) Scan(ctx context.Context, req models.ScanRequest) models.ScanResponse {
	result, err := s.scanner.ScanSource(ctx, req.Source)
	if err != nil {
		log.WithError(err).Warnf("Scan of %s failed", req.Source)
		return models.ScanResponse{Success: false, Files: []models.AttachmentRecord{}}
	}

	session := &models.Session{
		Source:    req.Source,
		Files:     result.Files,
		Label:     result.Label,
		ScannedAt: s.now(),
	}
	return models.ScanResponse{
		Success: true,
		Files:   result.Files,
		Label:   result.Label,
		Session: session,
	}
}

// Download runs one batch. Per-file failures are reported in the results;
// a batch-level failure yields Success false and no results.
func (s *Service) Download(ctx context.Context, req models.BatchRequest) models.BatchResponse {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	root, err := s.settings.GetDownloadRoot()
	if err != nil {
		log.WithError(err).Warnf("Could not read download root, using %q", models.DefaultDownloadRoot)
		root = models.DefaultDownloadRoot
	}

	o := orchestrator.New(s.manager, root, s.now)
	o.Observe = func(p orchestrator.Planned, r models.DownloadResult) {
		s.record(req.Label, p, r)
	}

	log.WithField("root", o.Root()).Infof("Downloading %d file(s)", len(req.Attachments))
	results, err := o.RunBatch(ctx, req.Attachments, req.Label)
	if err != nil {
		log.WithError(err).Error("Batch download failed")
		return models.BatchResponse{Success: false, Error: err.Error()}
	}
	return models.BatchResponse{Success: true, Results: results}
}

// GetDownloadRoot reads the download root setting.
func (s *Service) GetDownloadRoot(ctx context.Context) models.SettingResponse {
	root, err := s.settings.GetDownloadRoot()
	if err != nil {
		return models.SettingResponse{Success: false, Value: models.DefaultDownloadRoot, Error: err.Error()}
	}
	return models.SettingResponse{Success: true, Value: root}
}

// SetDownloadRoot validates and stores the download root setting.
func (s *Service) SetDownloadRoot(ctx context.Context, value string) models.SettingResponse {
	value, err := ValidateDownloadRoot(value)
	if err != nil {
		return models.SettingResponse{Success: false, Error: err.Error()}
	}
	if err := s.settings.SetDownloadRoot(value); err != nil {
		log.WithError(err).Error("Failed to store download root")
		return models.SettingResponse{Success: false, Error: err.Error()}
	}
	log.Infof("Download root set to %q", value)
	return models.SettingResponse{Success: true, Value: value}
}

// ValidateDownloadRoot trims value and checks that it is a relative folder
// path without parent references.
func ValidateDownloadRoot(value string) (string, error) {
	value = strings.Trim(strings.TrimSpace(value), "/")
	if value == "" {
		return "", fmt.Errorf("%w: must not be empty", ErrInvalidSetting)
	}
	if filepath.IsAbs(value) || strings.Contains(value, `\`) {
		return "", fmt.Errorf("%w: %q must be a relative folder name", ErrInvalidSetting, value)
	}
	for _, part := range strings.Split(value, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("%w: %q contains an invalid path segment", ErrInvalidSetting, value)
		}
	}
	return value, nil
}

// NewBatchRequest selects files from a session by 1-based position. An empty
// selection takes every file.
func NewBatchRequest(session *models.Session, selected []int) (models.BatchRequest, error) {
	if session == nil {
		return models.BatchRequest{}, fmt.Errorf("%w: no scanned page", ErrInvalidSelection)
	}
	req := models.BatchRequest{Label: session.Label}
	if len(selected) == 0 {
		req.Attachments = append(req.Attachments, session.Files...)
		return req, nil
	}
	picked := make(map[int]bool, len(selected))
	for _, n := range selected {
		if n < 1 || n > len(session.Files) {
			return models.BatchRequest{}, fmt.Errorf("%w: %d is not between 1 and %d", ErrInvalidSelection, n, len(session.Files))
		}
		if picked[n] {
			continue
		}
		picked[n] = true
		req.Attachments = append(req.Attachments, session.Files[n-1])
	}
	return req, nil
}

func (s *Service) rememberCompletion(c downloader.Completed) {
	s.completedMu.Lock()
	defer s.completedMu.Unlock()
	s.completed[c.ID] = c
}

func (s *Service) takeCompletion(id string) (downloader.Completed, bool) {
	s.completedMu.Lock()
	defer s.completedMu.Unlock()
	c, ok := s.completed[id]
	delete(s.completed, id)
	return c, ok
}

// record writes the history entry for one attempt and indexes successes.
func (s *Service) record(label string, p orchestrator.Planned, r models.DownloadResult) {
	entry := models.HistoryEntry{
		DownloadID: r.DownloadID,
		URL:        r.URL,
		FetchURL:   p.Resolved.FetchURL,
		Path:       p.Resolved.SavePath,
		Label:      label,
		Folder:     path.Base(path.Dir(p.Resolved.SavePath)),
		Status:     models.StatusDownloaded,
		CreatedAt:  s.now(),
	}
	if !r.Success {
		entry.Status = models.StatusError
		entry.Error = r.Error
	}

	completed, ok := s.takeCompletion(r.DownloadID)
	if ok {
		entry.Path = completed.Path
		entry.Checksum = completed.Checksum
	}

	if s.history != nil {
		if err := s.history.PutHistory(entry); err != nil {
			log.WithError(err).Warnf("Failed to record history for %s", r.URL)
		}
	}

	if s.index != nil && r.Success {
		item := index.Item{
			ID:           r.DownloadID,
			Type:         index.ItemType,
			Name:         path.Base(p.Resolved.SavePath),
			Label:        label,
			Folder:       entry.Folder,
			FilePath:     entry.Path,
			SourceURL:    r.URL,
			FetchURL:     p.Resolved.FetchURL,
			Host:         hostOf(r.URL),
			Extension:    strings.TrimPrefix(strings.ToLower(path.Ext(p.Resolved.SavePath)), "."),
			Checksum:     entry.Checksum,
			DownloadedAt: entry.CreatedAt,
		}
		if ok {
			item.FileSizeKB = float64(completed.Size) / 1024
		}
		if err := index.IndexItem(s.index, item); err != nil {
			log.WithError(err).Warnf("Failed to index %s", item.Name)
		}
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
