package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-classroom-download/internal/models"
	"go-classroom-download/internal/scanner"
)

func newTestServer(t *testing.T) (*httptest.Server, *fakeManager, *memSettings) {
	t.Helper()
	manager := &fakeManager{}
	settings := &memSettings{}
	svc := New(Options{
		Scanner: &fakeScanner{result: scanner.Result{
			Files: []models.AttachmentRecord{{URL: "https://drive.google.com/file/d/A/view", Filename: "Rubric.pdf"}},
			Label: "Essay",
		}},
		Manager:  manager,
		Settings: settings,
		Now:      fixedClock,
	})
	server := httptest.NewServer(svc.Handler())
	t.Cleanup(server.Close)
	return server, manager, settings
}

func do(t *testing.T, method, url, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHandler_Scan(t *testing.T) {
	server, _, _ := newTestServer(t)

	var resp models.ScanResponse
	status := do(t, http.MethodPost, server.URL+"/scan", `{"source":"page.html"}`, &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "Essay", resp.Label)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "Rubric.pdf", resp.Files[0].Filename)
}

func TestHandler_Download(t *testing.T) {
	server, manager, _ := newTestServer(t)

	var resp models.BatchResponse
	body := `{"label":"Essay","attachments":[{"url":"https://drive.google.com/file/d/A/view","filename":"Rubric.pdf"}]}`
	status := do(t, http.MethodPost, server.URL+"/download", body, &resp)
	assert.Equal(t, http.StatusOK, status)
	require.True(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "dl-1", resp.Results[0].DownloadID)
	require.Len(t, manager.requests, 1)
	assert.Equal(t, "https://drive.google.com/uc?export=download&id=A", manager.requests[0].URL)

	status = do(t, http.MethodPost, server.URL+"/download", `{"attachments":[{"url":"","filename":"x"}]}`, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)
}

func TestHandler_Settings(t *testing.T) {
	server, _, settings := newTestServer(t)

	var resp models.SettingResponse
	status := do(t, http.MethodGet, server.URL+"/settings/download-root", "", &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.DefaultDownloadRoot, resp.Value)

	status = do(t, http.MethodPut, server.URL+"/settings/download-root", `{"value":"School"}`, &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "School", settings.root)

	status = do(t, http.MethodPut, server.URL+"/settings/download-root", `{"value":""}`, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)
}

func TestHandler_RejectsMalformedBodyAndWrongMethod(t *testing.T) {
	server, _, _ := newTestServer(t)

	var resp map[string]interface{}
	status := do(t, http.MethodPost, server.URL+"/scan", `{not json`, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, resp["success"])

	status = do(t, http.MethodGet, server.URL+"/download", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}
