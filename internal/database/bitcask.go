package database

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go-classroom-download/internal/models"

	"git.mills.io/prologic/bitcask"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key is not found in the database.
var ErrNotFound = errors.New("key not found")

// Key layout. Keys stay well under bitcask's default 64 byte limit.
const (
	settingPrefix   = "setting_"
	historyPrefix   = "h_"
	downloadRootKey = "download_root"
)

// Values at least this large are gzipped; settings stay plain.
const compressThreshold = 128

// gzipMagicBytes are the first two bytes of a gzip file.
var gzipMagicBytes = []byte{0x1f, 0x8b}

// DB is the settings and download history store.
type DB struct {
	db           *bitcask.Bitcask
	sync.RWMutex // Guards db between concurrent HTTP handlers
}

// Open opens the store at path, creating its parent directory.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	store, err := bitcask.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bitcask database at %s: %w", path, err)
	}
	log.Debugf("Database opened at %s", path)
	return &DB{db: store}, nil
}

// Close flushes and closes the store.
func (d *DB) Close() error {
	d.Lock()
	defer d.Unlock()
	return d.db.Close()
}

// Has checks if a key exists in the database.
func (d *DB) Has(key []byte) bool {
	d.RLock()
	defer d.RUnlock()
	return d.db.Has(key)
}

// Get returns the decoded value stored under key, or ErrNotFound.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.RLock()
	raw, err := d.db.Get(key)
	d.RUnlock()
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting key %s: %w", key, err)
	}
	return decodeValue(raw)
}

// Put stores value under key, gzipping large values.
func (d *DB) Put(key []byte, value []byte) error {
	encoded, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("error encoding value for key %s: %w", key, err)
	}

	d.Lock()
	defer d.Unlock()
	if err := d.db.Put(key, encoded); err != nil {
		return fmt.Errorf("error putting key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the database.
func (d *DB) Delete(key []byte) error {
	d.Lock()
	defer d.Unlock()
	err := d.db.Delete(key)
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error deleting key %s: %w", key, err)
	}
	return nil
}

// keysWithPrefix returns the keys starting with prefix in key order.
func (d *DB) keysWithPrefix(prefix string) ([][]byte, error) {
	var keys [][]byte
	d.RLock()
	err := d.db.Scan([]byte(prefix), func(key []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	d.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys, err
}

func (d *DB) putJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshalling value for key %s: %w", key, err)
	}
	return d.Put(key, data)
}

func (d *DB) getJSON(key []byte, v interface{}) error {
	data, err := d.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error unmarshalling value for key %s: %w", key, err)
	}
	return nil
}

// --- Value encoding ---

func encodeValue(value []byte) ([]byte, error) {
	if len(value) < compressThreshold {
		return value, nil
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeValue gunzips value when it carries the gzip header. Values that
// fail to decompress are returned as stored.
func decodeValue(value []byte) ([]byte, error) {
	if !bytes.HasPrefix(value, gzipMagicBytes) {
		return value, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		log.WithError(err).Warn("Stored value has a gzip header but no gzip stream, returning raw data")
		return value, nil
	}
	defer r.Close()
	plain, err := io.ReadAll(r)
	if err != nil {
		log.WithError(err).Warn("Error decompressing stored value, returning raw data")
		return value, nil
	}
	return plain, nil
}

// --- Settings ---

// GetSetting returns a stored setting, or ErrNotFound.
func (d *DB) GetSetting(name string) (string, error) {
	value, err := d.Get([]byte(settingPrefix + name))
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// SetSetting stores a setting.
func (d *DB) SetSetting(name string, value string) error {
	if err := d.Put([]byte(settingPrefix+name), []byte(value)); err != nil {
		return err
	}
	log.WithField("setting", name).Debugf("Stored setting: %q", value)
	return nil
}

// GetDownloadRoot returns the stored download root folder, falling back to
// the default when none is stored.
func (d *DB) GetDownloadRoot() (string, error) {
	value, err := d.GetSetting(downloadRootKey)
	if errors.Is(err, ErrNotFound) || (err == nil && strings.TrimSpace(value) == "") {
		return models.DefaultDownloadRoot, nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading download root: %w", err)
	}
	return value, nil
}

// HasDownloadRoot reports whether a download root has been stored.
func (d *DB) HasDownloadRoot() bool {
	return d.Has([]byte(settingPrefix + downloadRootKey))
}

// SetDownloadRoot stores the download root folder.
func (d *DB) SetDownloadRoot(value string) error {
	if err := d.SetSetting(downloadRootKey, value); err != nil {
		return fmt.Errorf("error storing download root: %w", err)
	}
	return nil
}

// --- Download history ---

// historyKey sorts by creation time, then by download ID. Failed attempts
// have no download ID and get a random suffix.
func historyKey(entry models.HistoryEntry) []byte {
	id := entry.DownloadID
	if id == "" {
		id = "x" + uuid.NewString()
	}
	return []byte(fmt.Sprintf("%s%020d_%s", historyPrefix, entry.CreatedAt.UnixNano(), id))
}

// PutHistory records one download attempt.
func (d *DB) PutHistory(entry models.HistoryEntry) error {
	return d.putJSON(historyKey(entry), entry)
}

// ListHistory returns all recorded download attempts, oldest first.
// Unreadable entries are skipped.
func (d *DB) ListHistory() ([]models.HistoryEntry, error) {
	keys, err := d.keysWithPrefix(historyPrefix)
	if err != nil {
		return nil, fmt.Errorf("error scanning history: %w", err)
	}

	entries := make([]models.HistoryEntry, 0, len(keys))
	for _, key := range keys {
		var entry models.HistoryEntry
		if err := d.getJSON(key, &entry); err != nil {
			log.WithError(err).Warnf("Skipping history entry %s", key)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ClearHistory deletes every history entry and compacts the store. Settings
// are kept.
func (d *DB) ClearHistory() (int, error) {
	keys, err := d.keysWithPrefix(historyPrefix)
	if err != nil {
		return 0, fmt.Errorf("error scanning history: %w", err)
	}
	removed := 0
	for _, key := range keys {
		if err := d.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		removed++
	}

	d.Lock()
	defer d.Unlock()
	if err := d.db.Merge(); err != nil {
		return removed, fmt.Errorf("error compacting database: %w", err)
	}
	return removed, nil
}
