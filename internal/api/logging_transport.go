package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxLoggedBody caps how much of a page body is copied into the log.
const maxLoggedBody = 16 * 1024

// redactedHeaders never reach the log file. Classroom pages are fetched with
// the user's session cookies.
var redactedHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

// LoggingTransport records every exchange as one text entry in its own log
// file, separate from the console log.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	logger    *log.Logger
}

// NewLoggingTransport opens logFilePath for appending and wraps transport.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", logFilePath, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	logger := log.New()
	logger.SetOutput(f)
	logger.SetLevel(log.DebugLevel)
	logger.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true, DisableQuote: true})

	return &LoggingTransport{Transport: transport, logFile: f, logger: logger}, nil
}

// RoundTrip performs req and logs it. HTML and JSON bodies are logged up to
// maxLoggedBody; file downloads get headers only.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	entry := t.logger.WithFields(log.Fields{
		"request": req.Method + " " + req.URL.RequestURI(),
		"host":    req.URL.Host,
		"headers": headerSummary(req.Header),
	})

	resp, err := t.Transport.RoundTrip(req)
	entry = entry.WithField("duration", time.Since(start).Round(time.Millisecond))
	if err != nil {
		entry.WithError(err).Error("Request failed")
		return resp, err
	}

	contentType := resp.Header.Get("Content-Type")
	entry = entry.WithFields(log.Fields{
		"status":       resp.StatusCode,
		"content_type": contentType,
		"length":       resp.ContentLength,
	})
	if !logBody(contentType) {
		entry.Info("(Body not logged)")
		return resp, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		entry.WithError(readErr).Warn("(Body read failed)")
		return resp, nil
	}
	entry.Info(preview(body))
	return resp, nil
}

func logBody(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json") || strings.HasPrefix(contentType, "text/html")
}

func preview(body []byte) string {
	if len(body) <= maxLoggedBody {
		return string(body)
	}
	return fmt.Sprintf("%s\n(... %d more bytes)", body[:maxLoggedBody], len(body)-maxLoggedBody)
}

// headerSummary renders headers on one line with credentials masked.
func headerSummary(h http.Header) string {
	clean := h.Clone()
	for _, name := range redactedHeaders {
		if clean.Get(name) != "" {
			clean.Set(name, "[redacted]")
		}
	}
	var b strings.Builder
	_ = clean.Write(&b)
	return strings.Join(strings.Fields(strings.ReplaceAll(b.String(), "\r\n", "; ")), " ")
}

// Close closes the log file.
func (t *LoggingTransport) Close() error {
	return t.logFile.Close()
}

// NewHTTPClient builds the client shared by page scans and downloads. A
// timeout of zero leaves the client without one.
func NewHTTPClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
