package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go-classroom-download/internal/models"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// Scanner errors
var (
	ErrParse       = errors.New("failed to parse page")
	ErrFetch       = errors.New("failed to fetch page")
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrReadSource  = errors.New("failed to read saved page")
	ErrEmptySource = errors.New("no page source given")
)

const (
	anchorSelector    = "a[href]"
	cardSelector      = `[data-attachment-id], .attachment-card, .attachment, [role="listitem"]`
	cardTitleSelector = ".attachment-title, [data-attachment-title], .title, h3, h4"
	siteTitleSuffix   = " - Google Classroom"
	titleSeparator    = " - "
)

// Structural selectors for the assignment title, tried in order.
var labelSelectors = []string{
	"[data-assignment-title]",
	"h1.assignment-title",
	".assignment-title",
	`[role="main"] h1`,
	"h1",
}

// Elements whose boundaries produce a line break in rendered text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "footer": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// Result is the outcome of scanning one page.
type Result struct {
	Files []models.AttachmentRecord
	Label string
}

// Scan parses an HTML page and extracts its attachment records and label.
func Scan(r io.Reader) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return ScanDocument(doc), nil
}

// ScanDocument extracts attachment records and the page label from a parsed page.
func ScanDocument(doc *goquery.Document) Result {
	seen := make(map[string]bool)
	files := make([]models.AttachmentRecord, 0)

	doc.Find(anchorSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || !IsHostingLink(href) {
			return
		}
		if seen[href] {
			log.Debugf("Skipping duplicate link %s", href)
			return
		}
		if IsNavigationLink(href) {
			log.Debugf("Skipping navigation link %s", href)
			return
		}

		filename := ExtractFilename(snapshot(a, href))
		if !Admissible(filename) {
			log.WithField("url", href).Debugf("Skipping %q: extension not allowed", filename)
			return
		}

		seen[href] = true
		files = append(files, models.AttachmentRecord{URL: href, Filename: filename})
	})

	label := ExtractLabel(doc)
	log.Debugf("Scan found %d attachment(s), label %q", len(files), label)
	return Result{Files: files, Label: label}
}

// snapshot copies the text fields ExtractFilename needs out of the document.
func snapshot(a *goquery.Selection, href string) Candidate {
	c := Candidate{Href: href, Text: renderedText(a)}
	if card := a.Closest(cardSelector); card.Length() > 0 {
		c.CardTitle = renderedText(card.Find(cardTitleSelector).First())
	}
	c.Title, _ = a.Attr("title")
	c.AriaLabel, _ = a.Attr("aria-label")
	return c
}

// ExtractLabel returns the assignment name of the page.
func ExtractLabel(doc *goquery.Document) string {
	for _, sel := range labelSelectors {
		text := strings.TrimSpace(renderedText(doc.Find(sel).First()))
		if text != "" {
			return firstLine(text)
		}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = strings.TrimSpace(strings.TrimSuffix(title, siteTitleSuffix))
	if i := strings.Index(title, titleSeparator); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if title != "" {
		return title
	}
	return models.DefaultLabel
}

// renderedText approximates the rendered text of a selection: text nodes
// are concatenated and block element boundaries become line breaks.
func renderedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	return b.String()
}

// ScanFile scans a page saved to disk.
func ScanFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrReadSource, path, err)
	}
	defer f.Close()
	return Scan(f)
}

// Scanner fetches pages over HTTP before scanning them.
type Scanner struct {
	client    *http.Client
	userAgent string
}

// NewScanner creates a Scanner. A nil client gets a default one.
func NewScanner(client *http.Client, userAgent string) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scanner{client: client, userAgent: userAgent}
}

// ScanURL fetches a page and scans it.
func (s *Scanner) ScanURL(ctx context.Context, pageUrl string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageUrl, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: creating request for %s: %v", ErrFetch, pageUrl, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrFetch, pageUrl, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: received status %d from %s", ErrHttpStatus, resp.StatusCode, pageUrl)
	}
	return Scan(resp.Body)
}

// ScanSource scans source as a URL when it has an http(s) scheme and as a
// saved file otherwise.
func (s *Scanner) ScanSource(ctx context.Context, source string) (Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Result{}, ErrEmptySource
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return s.ScanURL(ctx, source)
	}
	return ScanFile(source)
}
