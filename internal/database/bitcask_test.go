package database

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-classroom-download/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "classroom_db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put([]byte("k"), []byte("value that gets compressed")))
	assert.True(t, db.Has([]byte("k")))

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "value that gets compressed", string(got))

	require.NoError(t, db.Delete([]byte("k")))
	_, err = db.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadRoot(t *testing.T) {
	db := openTestDB(t)

	root, err := db.GetDownloadRoot()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDownloadRoot, root, "unset root falls back to the default")
	assert.False(t, db.HasDownloadRoot())

	require.NoError(t, db.SetDownloadRoot("School/Physics"))
	root, err = db.GetDownloadRoot()
	require.NoError(t, err)
	assert.Equal(t, "School/Physics", root)
	assert.True(t, db.HasDownloadRoot())

	require.NoError(t, db.SetDownloadRoot("  "))
	root, err = db.GetDownloadRoot()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDownloadRoot, root, "blank root falls back to the default")
}

func TestHistoryOrdering(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	entries := []models.HistoryEntry{
		{DownloadID: "b", URL: "https://drive.google.com/file/d/2/view", Status: models.StatusError, Error: "boom", CreatedAt: base.Add(time.Minute)},
		{DownloadID: "a", URL: "https://drive.google.com/file/d/1/view", Status: models.StatusDownloaded, CreatedAt: base},
		{DownloadID: "c", URL: "https://drive.google.com/file/d/3/view", Status: models.StatusDownloaded, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, db.PutHistory(e))
	}
	require.NoError(t, db.SetDownloadRoot("Classroom"))

	got, err := db.ListHistory()
	require.NoError(t, err)
	require.Len(t, got, 3, "settings must not show up as history")
	assert.Equal(t, "a", got[0].DownloadID)
	assert.Equal(t, "b", got[1].DownloadID)
	assert.Equal(t, "boom", got[1].Error)
	assert.Equal(t, "c", got[2].DownloadID)
}

func TestValueEncoding(t *testing.T) {
	small := []byte("Classroom")
	encoded, err := encodeValue(small)
	require.NoError(t, err)
	assert.Equal(t, small, encoded, "small values are stored plain")

	large := []byte(strings.Repeat("history entry ", 20))
	encoded, err = encodeValue(large)
	require.NoError(t, err)
	assert.Equal(t, gzipMagicBytes, encoded[:2])
	decoded, err := decodeValue(encoded)
	require.NoError(t, err)
	assert.Equal(t, large, decoded)

	// A plain value that happens to start with the gzip magic is returned as is.
	odd := []byte{0x1f, 0x8b, 'x'}
	decoded, err = decodeValue(odd)
	require.NoError(t, err)
	assert.Equal(t, odd, decoded)
}

func TestClearHistory(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SetDownloadRoot("School"))
	for i := 0; i < 3; i++ {
		require.NoError(t, db.PutHistory(models.HistoryEntry{
			DownloadID: fmt.Sprintf("id-%d", i),
			Status:     models.StatusDownloaded,
			CreatedAt:  time.Unix(int64(i), 0),
		}))
	}

	removed, err := db.ClearHistory()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	got, err := db.ListHistory()
	require.NoError(t, err)
	assert.Empty(t, got)

	root, err := db.GetDownloadRoot()
	require.NoError(t, err)
	assert.Equal(t, "School", root, "settings survive clearing history")
}

func TestHistory_FailedEntriesDoNotCollide(t *testing.T) {
	db := openTestDB(t)
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for _, u := range []string{"https://example.com/x", "https://example.com/y"} {
		require.NoError(t, db.PutHistory(models.HistoryEntry{URL: u, Status: models.StatusError, CreatedAt: at}))
	}

	got, err := db.ListHistory()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
