package service

import (
	"encoding/json"
	"net/http"
	"time"

	"go-classroom-download/internal/models"

	log "github.com/sirupsen/logrus"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// Handler exposes the service as a local JSON API:
//
//	POST /scan                   ScanRequest    -> ScanResponse
//	POST /download               BatchRequest   -> BatchResponse
//	GET  /settings/download-root                -> SettingResponse
//	PUT  /settings/download-root SettingRequest -> SettingResponse
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scan", s.handleScan)
	mux.HandleFunc("POST /download", s.handleDownload)
	mux.HandleFunc("GET /settings/download-root", s.handleGetRoot)
	mux.HandleFunc("PUT /settings/download-root", s.handleSetRoot)
	return logRequests(mux)
}

func (s *Service) handleScan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.Scan(r.Context(), req))
}

func (s *Service) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if !decode(w, r, &req) {
		return
	}
	resp := s.Download(r.Context(), req)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (s *Service) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.GetDownloadRoot(r.Context()))
}

func (s *Service) handleSetRoot(w http.ResponseWriter, r *http.Request) {
	var req models.SettingRequest
	if !decode(w, r, &req) {
		return
	}
	resp := s.SetDownloadRoot(r.Context(), req.Value)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		log.WithError(err).Debugf("Rejecting malformed %s %s", r.Method, r.URL.Path)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "malformed request body: " + err.Error(),
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to write response")
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("Handled request")
	})
}
