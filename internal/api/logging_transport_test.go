package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><title>Lab 4</title></html>"))
		default:
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-binary"))
		}
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "api.log")
	transport, err := NewLoggingTransport(http.DefaultTransport, logPath)
	require.NoError(t, err)
	client := NewHTTPClient(transport, 5*time.Second)

	resp, err := client.Get(server.URL + "/page")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "<html><title>Lab 4</title></html>", string(body), "body must still be readable after logging")

	resp, err = client.Get(server.URL + "/file.pdf")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "%PDF-binary", string(body))

	require.NoError(t, transport.Close())

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "GET /page")
	assert.Contains(t, string(logged), "<title>Lab 4</title>")
	assert.Contains(t, string(logged), "(Body not logged)")
	assert.NotContains(t, string(logged), "%PDF-binary")
}

func TestLoggingTransport_RedactsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "api.log")
	transport, err := NewLoggingTransport(nil, logPath)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/u/0/c/abc", nil)
	require.NoError(t, err)
	req.Header.Set("Cookie", "SID=secret-session")
	req.Header.Set("Accept", "text/html")
	resp, err := NewHTTPClient(transport, 0).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, transport.Close())

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Cookie: [redacted]")
	assert.Contains(t, string(logged), "Accept: text/html")
	assert.Contains(t, string(logged), `{"ok":true}`)
	assert.NotContains(t, string(logged), "secret-session")
}

func TestPreview(t *testing.T) {
	short := []byte("<html></html>")
	assert.Equal(t, string(short), preview(short))

	long := bytes.Repeat([]byte("a"), maxLoggedBody+10)
	got := preview(long)
	assert.True(t, strings.HasSuffix(got, "(... 10 more bytes)"))
	assert.Len(t, got, maxLoggedBody+len("\n(... 10 more bytes)"))
}
