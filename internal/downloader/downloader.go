package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-classroom-download/internal/helpers"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrFileSystem  = errors.New("filesystem error") // Covers create, remove, rename
	ErrHttpRequest = errors.New("HTTP request creation/execution error")
	ErrInvalidPath = errors.New("destination path escapes the downloads directory")
	ErrNameTaken   = errors.New("no free file name for destination")
)

// maxUniquifyAttempts bounds the "name (n).ext" search on name conflicts.
const maxUniquifyAttempts = 1000

// Request asks the download manager to save one file.
type Request struct {
	URL        string // What to fetch
	Filename   string // Destination, relative to the manager's downloads directory, '/'-separated
	PromptUser bool   // Ask where to save; the batch flow always sends false
}

// Manager is the host capability that performs the actual transfer. It
// returns an opaque handle for the started download or an error.
type Manager interface {
	Download(ctx context.Context, req Request) (string, error)
}

// Completed describes a finished download.
type Completed struct {
	ID       string
	URL      string
	Path     string // Absolute path written
	Size     uint64
	Checksum string // BLAKE3 of the written file
	Duration time.Duration
}

// HTTPManager is a Manager that fetches over HTTP into a local directory,
// the way a browser's download manager writes into its downloads folder.
type HTTPManager struct {
	client    *http.Client
	baseDir   string
	userAgent string

	mu         sync.Mutex
	onComplete func(Completed)
}

// NewHTTPManager creates an HTTPManager writing below baseDir.
func NewHTTPManager(client *http.Client, baseDir string, userAgent string) *HTTPManager {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Minute,
		}
	}
	return &HTTPManager{
		client:    client,
		baseDir:   baseDir,
		userAgent: userAgent,
	}
}

// OnComplete registers a callback invoked after each successful download.
func (m *HTTPManager) OnComplete(fn func(Completed)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = fn
}

// BaseDir returns the directory downloads are written below.
func (m *HTTPManager) BaseDir() string {
	return m.baseDir
}

// Download fetches req.URL and writes it to req.Filename below the downloads
// directory. An existing file is never overwritten; a " (n)" suffix is added
// instead. The returned handle is a fresh UUID.
func (m *HTTPManager) Download(ctx context.Context, req Request) (string, error) {
	targetPath, err := m.destination(req.Filename)
	if err != nil {
		return "", err
	}
	if req.PromptUser {
		log.Warnf("Save prompts are not supported, saving %s directly", req.Filename)
	}

	targetDir := filepath.Dir(targetPath)
	if !helpers.CheckAndMakeDir(targetDir) {
		return "", fmt.Errorf("%w: failed to create target directory %s", ErrFileSystem, targetDir)
	}

	id := uuid.NewString()
	logger := log.WithFields(log.Fields{"id": id, "url": req.URL})
	startTime := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating download request for %s: %v", ErrHttpRequest, req.URL, err)
	}
	if m.userAgent != "" {
		httpReq.Header.Set("User-Agent", m.userAgent)
	}

	logger.Infof("Attempting to download to %s", targetPath)
	resp, err := m.client.Do(httpReq)
	if err != nil {
		logger.WithError(err).Error("Error performing download request")
		return "", fmt.Errorf("%w: performing request for %s: %v", ErrHttpRequest, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Errorf("Received status code %d", resp.StatusCode)
		return "", fmt.Errorf("%w: received status %d from %s", ErrHttpStatus, resp.StatusCode, req.URL)
	}

	tempFile, err := os.CreateTemp(targetDir, filepath.Base(targetPath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: creating temporary file for %s: %v", ErrFileSystem, targetPath, err)
	}
	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			log.Debugf("Cleaning up temporary file: %s", tempFile.Name())
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempFile.Name())
			}
		}
	}()

	size, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	counter := &helpers.CounterWriter{Writer: tempFile}
	logger.Debugf("Writing %s (Size: %s)", tempFile.Name(), helpers.BytesToSize(size))
	if _, err := io.Copy(counter, resp.Body); err != nil {
		tempFile.Close()
		return "", fmt.Errorf("%w: writing temporary file %s: %v", ErrFileSystem, tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("%w: closing temp file %s: %v", ErrFileSystem, tempFile.Name(), err)
	}

	finalPath, err := uniquePath(targetPath)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tempFile.Name(), finalPath); err != nil {
		return "", fmt.Errorf("%w: renaming temporary file %s to %s: %v", ErrFileSystem, tempFile.Name(), finalPath, err)
	}
	shouldCleanupTemp = false

	checksum, err := helpers.HashFile(finalPath)
	if err != nil {
		logger.WithError(err).Warn("Could not compute checksum")
	}

	done := Completed{
		ID:       id,
		URL:      req.URL,
		Path:     finalPath,
		Size:     counter.Total,
		Checksum: checksum,
		Duration: time.Since(startTime),
	}
	logger.Infof("Saved %s (%s) in %v", finalPath, helpers.BytesToSize(done.Size), done.Duration)

	m.mu.Lock()
	fn := m.onComplete
	m.mu.Unlock()
	if fn != nil {
		fn(done)
	}
	return id, nil
}

// destination joins a '/'-separated relative name onto the downloads directory.
func (m *HTTPManager) destination(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
		}
	}
	return filepath.Join(m.baseDir, filepath.FromSlash(name)), nil
}

// uniquePath returns path, or the first "name (n).ext" variant that does not exist.
func uniquePath(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; i <= maxUniquifyAttempts; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNameTaken, path)
}
