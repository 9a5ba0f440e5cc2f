package web

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"github.com/JonMunkholm/ClientImport/internal/core"
	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/sheet"
	"github.com/JonMunkholm/ClientImport/internal/store"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string                        `json:"status"`
	Database string                        `json:"database"`
	Imports  map[string]core.LimiterStatus `json:"imports"`
}

// TemplateResponse describes one import template.
type TemplateResponse struct {
	schema.TemplateSpec
	Rules []string `json:"rules"`
}

// service resolves the {key} route parameter.
func (s *Server) service(r *http.Request) (*core.Service, error) {
	key := chi.URLParam(r, "key")
	svc, ok := s.services[key]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", key)
	}
	return svc, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "not configured",
		Imports:  make(map[string]core.LimiterStatus, len(s.services)),
	}
	for key, svc := range s.services {
		resp.Imports[key] = svc.LimiterStatus()
	}

	status := http.StatusOK
	if s.store != nil {
		resp.Database = "ok"
		if err := s.store.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	keys := make([]string, 0, len(s.services))
	for key := range s.services {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	resp := make([]TemplateResponse, 0, len(keys))
	for _, key := range keys {
		svc := s.services[key]
		resp = append(resp, TemplateResponse{TemplateSpec: svc.Spec(), Rules: svc.Rules()})
	}
	writeJSON(w, http.StatusOK, resp)
}

var contentTypes = map[sheet.Format]string{
	sheet.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	sheet.FormatCSV:  "text/csv; charset=utf-8",
}

// handleDownloadTemplate streams a blank template. ?format=csv selects csv;
// the default is xlsx.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	format := sheet.Format(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = sheet.FormatXLSX
	}
	contentType, ok := contentTypes[format]
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %q", sheet.ErrUnsupportedFormat, format), 0)
		return
	}

	dir, err := os.MkdirTemp("", "clientimport-template-*")
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	name := svc.Spec().Key + "_template." + string(format)
	path := filepath.Join(dir, name)
	if err := svc.ExportTemplate(path); err != nil {
		respondError(w, r, err, 0)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = io.Copy(w, f)
}

// handleListRuns returns recent committed imports. ?limit= caps the list.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, store.ErrNotConfigured, 0)
		return
	}

	limit := cast.ToInt(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.store.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}
