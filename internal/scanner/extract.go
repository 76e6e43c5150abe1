package scanner

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go-classroom-download/internal/helpers"
	"go-classroom-download/internal/models"
)

// Hosting domains whose links are attachment candidates.
var hostingDomains = []string{"drive.google.com", "docs.google.com"}

// allowedExtensions is checked as a case-insensitive suffix of the filename.
var allowedExtensions = []string{
	// documents, spreadsheets, presentations
	"pdf", "docx", "doc", "xlsx", "xls", "pptx", "ppt", "odt", "ods", "odp", "rtf", "txt", "csv",
	// archives
	"zip", "rar", "7z", "tar", "gz",
	// images
	"jpeg", "jpg", "png", "gif", "bmp", "webp", "svg",
	// video
	"mp4", "mov", "avi", "mkv", "webm",
	// audio
	"mp3", "wav", "m4a", "ogg",
}

var (
	// Annotations the page renders after an attachment name. A bare "PDF"
	// is only stripped as a separate trailing word.
	boilerplateSuffix = regexp.MustCompile(`(?i)(?:\s*(?:Microsoft\s+(?:Word|Excel|PowerPoint)|Google\s+(?:Docs|Sheets|Slides|Drawings|Forms))(?:\s.*)?|\s+PDF\s*)$`)

	// A name with an allowed extension followed by junk such as "notes.pdfPDF".
	// The prefix is greedy so the last extension of "archive.tar.gz" is kept.
	knownFilename = regexp.MustCompile(`^(.*\.(?i:` + strings.Join(allowedExtensions, "|") + `))(?:[^a-z0-9].*)?$`)

	// In-app routes such as /c/<course> or /u/1/w/<course>/t/all.
	navigationRoute = regexp.MustCompile(`classroom\.google\.com/(?:u/\d+/)?(?:c|w|a|r|h)/`)
)

// Detail pages are never navigation.
const detailsRoute = "/details"

// Candidate is a snapshot of the text fields of one anchor that filename
// extraction needs. Building it from a live document is the scanner's job;
// extraction itself is pure.
type Candidate struct {
	Href      string
	Text      string // Rendered text of the anchor, line breaks preserved
	CardTitle string // Text of the title element in the enclosing attachment card
	Title     string
	AriaLabel string
}

// ExtractFilename picks a display name for an anchor, trying its own text,
// the enclosing card's title, its title/aria-label attributes and finally a
// fixed placeholder.
func ExtractFilename(c Candidate) string {
	if name := fromAnchorText(c.Text); usable(name) {
		return name
	}
	if name := firstLine(c.CardTitle); usable(name) {
		return name
	}
	if name := firstLine(c.Title); usable(name) {
		return name
	}
	if name := firstLine(c.AriaLabel); usable(name) {
		return name
	}
	return models.PlaceholderFilename
}

func fromAnchorText(text string) string {
	name := firstLine(text)
	name = strings.TrimSpace(boilerplateSuffix.ReplaceAllString(name, ""))
	if m := knownFilename.FindStringSubmatch(name); m != nil {
		name = strings.TrimSpace(m[1])
	}
	return name
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func usable(name string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(name)) >= 2
}

// HasAllowedExtension reports whether name ends in one of the allowed extensions.
func HasAllowedExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

// Admissible reports whether a filename may be offered for download. Names
// without a recognizable extension pass; the resolver supplies one for
// Docs editor links.
func Admissible(name string) bool {
	if !helpers.HasExtension(name) {
		return true
	}
	return HasAllowedExtension(name)
}

// IsHostingLink reports whether href points at one of the hosting domains.
func IsHostingLink(href string) bool {
	for _, domain := range hostingDomains {
		if strings.Contains(href, domain) {
			return true
		}
	}
	return false
}

// IsNavigationLink reports whether url is an in-app route rather than an
// attachment. Detail pages are never treated as navigation, and neither is
// anything carrying a hosting domain.
func IsNavigationLink(url string) bool {
	if !navigationRoute.MatchString(url) {
		return false
	}
	if strings.Contains(url, detailsRoute) {
		return false
	}
	return !IsHostingLink(url)
}
