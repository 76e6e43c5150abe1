package resolver

import (
	"regexp"

	"go-classroom-download/internal/models"
)

const (
	driveDownloadUrl = "https://drive.google.com/uc?export=download&id="
	docsBaseUrl      = "https://docs.google.com/"
)

var (
	driveFilePattern = regexp.MustCompile(`drive\.google\.com/(?:u/\d+/)?file/d/([A-Za-z0-9_-]+)`)
	driveOpenPattern = regexp.MustCompile(`drive\.google\.com/open\?(?:[^#]*&)?id=([A-Za-z0-9_-]+)`)
)

// docKind describes one of the document-editor URL shapes and the format
// its export endpoint is asked for.
type docKind struct {
	pattern   *regexp.Regexp
	path      string
	format    string
	extension string
}

// Order matters only for readability; the path segments are disjoint.
var docKinds = []docKind{
	{regexp.MustCompile(`docs\.google\.com/document/d/([A-Za-z0-9_-]+)`), "document", "docx", ".docx"},
	{regexp.MustCompile(`docs\.google\.com/spreadsheets/d/([A-Za-z0-9_-]+)`), "spreadsheets", "xlsx", ".xlsx"},
	{regexp.MustCompile(`docs\.google\.com/presentation/d/([A-Za-z0-9_-]+)`), "presentation", "pptx", ".pptx"},
}

// ResolveFetchURL maps a hosting page URL to a URL that serves the raw file.
// Drive file and open links become uc?export=download links, Docs editor
// links become export endpoints. Anything else is returned unchanged.
func ResolveFetchURL(url string) string {
	if m := driveFilePattern.FindStringSubmatch(url); m != nil {
		return driveDownloadUrl + m[1]
	}
	if m := driveOpenPattern.FindStringSubmatch(url); m != nil {
		return driveDownloadUrl + m[1]
	}
	for _, kind := range docKinds {
		if m := kind.pattern.FindStringSubmatch(url); m != nil {
			return docsBaseUrl + kind.path + "/d/" + m[1] + "/export?format=" + kind.format
		}
	}
	return url
}

// ImpliedExtension returns the extension the export endpoint will produce for
// a Docs editor URL, or "" for every other URL. Drive file links have no
// implied extension; their type is unknown until fetched.
func ImpliedExtension(url string) string {
	if driveFilePattern.MatchString(url) || driveOpenPattern.MatchString(url) {
		return ""
	}
	for _, kind := range docKinds {
		if kind.pattern.MatchString(url) {
			return kind.extension
		}
	}
	return ""
}

// Resolve bundles the fetch URL with the path the file will be saved at.
func Resolve(url string, savePath string) models.ResolvedDownload {
	return models.ResolvedDownload{
		FetchURL: ResolveFetchURL(url),
		SavePath: savePath,
	}
}
