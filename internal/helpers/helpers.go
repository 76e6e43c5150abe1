package helpers

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strings"
	"time"

	"go-classroom-download/internal/models"

	log "github.com/sirupsen/logrus"
	"lukechampine.com/blake3"
)

const (
	maxFolderNameLength = 100
	maxFileNameLength   = 200

	// TimestampLayout is the session folder timestamp: YYYY-MM-DD_HH-MM-SS.
	TimestampLayout = "2006-01-02_15-04-05"
)

var (
	illegalChars  = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	extSuffix     = regexp.MustCompile(`\.([A-Za-z0-9]{2,5})$`)
)

// SanitizeFolderName makes a label safe to use as a single folder name.
// Illegal characters become spaces, whitespace runs collapse, the result is
// trimmed and cut to 100 characters. An empty result yields the default label.
func SanitizeFolderName(name string) string {
	name = illegalChars.ReplaceAllString(name, " ")
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = strings.TrimSpace(truncateRunes(name, maxFolderNameLength))
	if name == "" {
		return models.DefaultLabel
	}
	return name
}

// SplitExtension splits name at its last ".ext" suffix when ext is 2-5
// alphanumeric characters. The returned extension keeps its leading dot.
func SplitExtension(name string) (base string, ext string) {
	loc := extSuffix.FindStringIndex(name)
	if loc == nil {
		return name, ""
	}
	return name[:loc[0]], name[loc[0]:]
}

// SanitizeFilename makes a display name safe to write to disk. The extension,
// if any, is preserved as-is and only the base name is cleaned: illegal
// characters become underscores, whitespace collapses, leading and trailing
// whitespace and dots are trimmed and the result is cut to 200 characters.
func SanitizeFilename(name string) string {
	base, ext := SplitExtension(name)
	base = illegalChars.ReplaceAllString(base, "_")
	base = whitespaceRun.ReplaceAllString(base, " ")
	base = trimNameEdges(base)
	base = trimNameEdges(truncateRunes(base, maxFileNameLength))
	if base == "" {
		base = models.DefaultFilename
	}
	return base + ext
}

// HasExtension reports whether name ends in a recognizable extension.
func HasExtension(name string) bool {
	_, ext := SplitExtension(name)
	return ext != ""
}

// FormatTimestamp renders t in local time using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// SessionFolder builds the per-batch folder name from a label and a time.
func SessionFolder(label string, t time.Time) string {
	return SanitizeFolderName(label) + "_" + FormatTimestamp(t)
}

func trimNameEdges(s string) string {
	return strings.Trim(s, " \t\r\n.")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// HashFile returns the upper-case hex BLAKE3 digest of a file.
func HashFile(filepath string) (string, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", filepath, err)
	}
	defer f.Close()

	hasher := blake3.New(32, nil)
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", filepath, err)
	}
	return strings.ToUpper(hex.EncodeToString(hasher.Sum(nil))), nil
}

// CounterWriter tracks the number of bytes written to the underlying writer.
type CounterWriter struct {
	Total  uint64
	Writer io.Writer
}

// Write implements the io.Writer interface for CounterWriter.
func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB, etc.).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1 // Handle very large sizes
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
func CheckAndMakeDir(dir string) bool {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}
