package models

import "time"

// Defaults shared by the scanner, orchestrator and settings store.
const (
	DefaultDownloadRoot = "Classroom"
	DefaultLabel        = "Assignment"
	DefaultFilename     = "attachment"
	PlaceholderFilename = "Attachment"
)

// History entry statuses.
const (
	StatusDownloaded = "Downloaded"
	StatusError      = "Error"
)

type (
	Config struct {
		// Paths
		DownloadsDir   string `toml:"DownloadsDir"` // Where the download manager writes files
		DownloadRoot   string `toml:"DownloadRoot"` // Root folder under DownloadsDir, overridden by the stored setting
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`

		// HTTP
		HttpTimeoutSec int    `toml:"HttpTimeoutSec"`
		UserAgent      string `toml:"UserAgent"`

		// Serve
		ListenAddr string `toml:"ListenAddr"`

		// Other
		LogApiRequests bool `toml:"LogApiRequests"`
	}

	// AttachmentRecord is one downloadable link discovered on a page.
	AttachmentRecord struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}

	// ResolvedDownload is what actually gets fetched and where it lands.
	ResolvedDownload struct {
		FetchURL string `json:"fetchUrl"`
		SavePath string `json:"savePath"`
	}

	// DownloadResult reports the outcome of one attempted file.
	DownloadResult struct {
		URL        string `json:"url"`
		Success    bool   `json:"success"`
		DownloadID string `json:"downloadId,omitempty"`
		Error      string `json:"error,omitempty"`
		Path       string `json:"path,omitempty"`
	}

	// Session carries the state of one scan so a later batch can be built
	// from it without any process-wide globals.
	Session struct {
		Source    string             `json:"source"`
		Files     []AttachmentRecord `json:"files"`
		Label     string             `json:"label"`
		ScannedAt time.Time          `json:"scannedAt"`
	}

	// HistoryEntry is the persisted record of one download attempt.
	HistoryEntry struct {
		DownloadID string    `json:"downloadId"`
		URL        string    `json:"url"`
		FetchURL   string    `json:"fetchUrl"`
		Path       string    `json:"path"`
		Label      string    `json:"label"`
		Folder     string    `json:"folder"`
		Status     string    `json:"status"`
		Error      string    `json:"error,omitempty"`
		Checksum   string    `json:"checksum,omitempty"` // BLAKE3, hex
		CreatedAt  time.Time `json:"createdAt"`
	}

	// --- Request/response shapes exchanged with the UI layer ---

	ScanRequest struct {
		Source string `json:"source"` // Page URL or path to a saved page
	}

	ScanResponse struct {
		Success bool               `json:"success"`
		Files   []AttachmentRecord `json:"files"`
		Label   string             `json:"label"`
		Session *Session           `json:"-"`
	}

	BatchRequest struct {
		Attachments []AttachmentRecord `json:"attachments"`
		Label       string             `json:"label"`
	}

	BatchResponse struct {
		Success bool             `json:"success"`
		Results []DownloadResult `json:"results,omitempty"`
		Error   string           `json:"error,omitempty"`
	}

	SettingRequest struct {
		Value string `json:"value"`
	}

	SettingResponse struct {
		Success bool   `json:"success"`
		Value   string `json:"value,omitempty"`
		Error   string `json:"error,omitempty"`
	}
)
