package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sporelab/reportql/internal/auth"
	"github.com/sporelab/reportql/internal/catalog"
	"github.com/sporelab/reportql/internal/domain"
	"github.com/sporelab/reportql/internal/engine"
	"github.com/sporelab/reportql/internal/export"
)

// Handler exposes report execution, catalog discovery, and exports as a
// JSON HTTP API.
type Handler struct {
	reports *ReportService
	exports *export.Service
	catalog *catalog.Catalog
}

// NewHandler builds the API handler.
func NewHandler(reports *ReportService, exports *export.Service, cat *catalog.Catalog) *Handler {
	return &Handler{reports: reports, exports: exports, catalog: cat}
}

// Routes returns the route table for the API.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /reports/execute", h.handleExecute)
	mux.HandleFunc("POST /reports/{id}/invalidate", h.handleInvalidate)
	mux.HandleFunc("GET /catalog/tables", h.handleTables)
	mux.HandleFunc("GET /catalog/tables/{name}/fields", h.handleTableFields)
	mux.HandleFunc("POST /exports", h.handleQueueExport)
	mux.HandleFunc("GET /exports", h.handleListExports)
	mux.HandleFunc("GET /exports/{id}", h.handleGetExport)
	mux.HandleFunc("POST /exports/{id}/cancel", h.handleCancelExport)
	mux.HandleFunc("GET /exports/files/{id}", h.handleDownloadExport)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type executeRequest struct {
	ReportID string                 `json:"reportId"`
	Config   domain.ReportConfig    `json:"config"`
	Scope    *domain.ExecutionScope `json:"scope,omitempty"`
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ReportID) == "" {
		http.Error(w, "reportId is required", http.StatusBadRequest)
		return
	}

	scope, err := resolveScope(r, req.Scope)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	data, err := h.reports.Execute(r.Context(), req.ReportID, req.Config, scope)
	if err != nil {
		if errors.Is(err, engine.ErrQueryTimeout) {
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	reportID := strings.TrimSpace(r.PathValue("id"))
	if reportID == "" {
		http.Error(w, "report id is required", http.StatusBadRequest)
		return
	}
	removed := h.reports.Invalidate(reportID)
	writeJSON(w, http.StatusOK, map[string]any{"reportId": reportID, "removed": removed})
}

func (h *Handler) handleTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tables": h.catalog.Tables()})
}

func (h *Handler) handleTableFields(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimSpace(r.PathValue("name"))
	fields, err := h.catalog.Fields(r.Context(), table)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "fields": fields})
}

type exportRequest struct {
	ReportID string                 `json:"reportId"`
	Format   export.Format          `json:"format"`
	Config   domain.ReportConfig    `json:"config"`
	Scope    *domain.ExecutionScope `json:"scope,omitempty"`
}

// handleQueueExport executes the report (served from cache when possible)
// and queues the result for file generation.
func (h *Handler) handleQueueExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ReportID) == "" {
		http.Error(w, "reportId is required", http.StatusBadRequest)
		return
	}

	scope, err := resolveScope(r, req.Scope)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	data, err := h.reports.Execute(r.Context(), req.ReportID, req.Config, scope)
	if err != nil {
		if errors.Is(err, engine.ErrQueryTimeout) {
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	job, err := h.exports.Queue(export.Request{
		ReportID:   req.ReportID,
		ReportName: req.Config.Name,
		Format:     req.Format,
		Data:       data,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	var statuses []export.JobStatus
	for _, raw := range r.URL.Query()["status"] {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, export.JobStatus(raw))
		}
	}
	jobs := h.exports.ListJobs(statuses, 100)
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type jobResponse struct {
	export.Job
	DownloadURL string `json:"downloadUrl,omitempty"`
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobFromPath(w, r)
	if !ok {
		return
	}
	download, err := h.exports.BuildDownloadURL(job)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: job, DownloadURL: download})
}

func (h *Handler) handleCancelExport(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobFromPath(w, r)
	if !ok {
		return
	}
	cancelled, err := h.exports.CancelJob(job.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

func (h *Handler) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobFromPath(w, r)
	if !ok {
		return
	}
	if err := h.exports.ValidateDownloadToken(job.ID, r.URL.Query().Get("token")); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	file, err := h.exports.OpenJobFile(job)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer file.Close()

	mime := "text/csv"
	if job.Format == export.FormatXLSX {
		mime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s.%s", job.ReportID, job.Format)))
	if _, err := io.Copy(w, file); err != nil {
		// Headers are already sent; nothing left to do but note it.
		log.Printf("[HTTP] failed to stream export file %s: %v", job.ID, err)
	}
}

func (h *Handler) jobFromPath(w http.ResponseWriter, r *http.Request) (export.Job, bool) {
	id, err := uuid.Parse(strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid job id: %v", err), http.StatusBadRequest)
		return export.Job{}, false
	}
	job, err := h.exports.GetJob(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return export.Job{}, false
	}
	return job, true
}

// resolveScope prefers the scope carried by middleware; a scope in the
// request body is accepted only when it names the same company.
func resolveScope(r *http.Request, requested *domain.ExecutionScope) (domain.ExecutionScope, error) {
	ambient, ok := auth.ScopeFromContext(r.Context())
	if !ok {
		if requested == nil {
			return domain.ExecutionScope{}, errors.New("execution scope is required")
		}
		return *requested, nil
	}
	if requested == nil {
		return ambient, nil
	}
	if err := auth.EnforceCompanyScope(r.Context(), requested.CompanyID); err != nil {
		return domain.ExecutionScope{}, err
	}
	return *requested, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
