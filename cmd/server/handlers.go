package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/internal/store"
	"go.uber.org/zap"
)

// validateResponse is the body of every validate endpoint.
type validateResponse struct {
	RequestID string `json:"requestId,omitempty"`
	*joydoc.ValidationResult
	ReportID string `json:"reportId,omitempty"`
}

// handleValidate handles POST /api/v1/validate[?strict=true][&store=true]
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	result := s.validatorFor(r).ValidateDocument(doc)
	resp := validateResponse{RequestID: requestID(r), ValidationResult: result}

	if queryBool(r, "store") {
		if s.reports == nil {
			writeError(w, http.StatusServiceUnavailable, "report store is not enabled")
			return
		}
		report, err := store.NewReport("http:"+resp.RequestID, documentID(doc), result)
		if err == nil {
			err = s.reports.Save(r.Context(), report)
		}
		s.recorder.ObserveReportSaved(err)
		if err != nil {
			s.logger.Error("failed to store report", zap.String("requestId", resp.RequestID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store report: %v", err))
			return
		}
		resp.ReportID = report.ID.String()
	}

	writeSuccess(w, http.StatusOK, resp)
}

// handleValidateSchema handles POST /api/v1/validate/schema
func (s *Server) handleValidateSchema(w http.ResponseWriter, r *http.Request) {
	schema, ok := s.readDocument(w, r)
	if !ok {
		return
	}
	result := s.validatorFor(r).ValidateSchema(schema)
	writeSuccess(w, http.StatusOK, validateResponse{RequestID: requestID(r), ValidationResult: result})
}

// handleValidateLogic handles POST /api/v1/validate/logic?conditions=field|schema
func (s *Server) handleValidateLogic(w http.ResponseWriter, r *http.Request) {
	contract, err := joydoc.ParseConditionContract(r.URL.Query().Get("conditions"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logic, ok := s.readDocument(w, r)
	if !ok {
		return
	}
	result := s.validatorFor(r).ValidateLogic(logic, contract)
	writeSuccess(w, http.StatusOK, validateResponse{RequestID: requestID(r), ValidationResult: result})
}

// handleGetSchema handles GET /api/v1/schema
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	w.Write(s.schema)
}

// handleGetReport handles GET /api/v1/reports/{id}
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store is not enabled")
		return
	}
	id, err := parseUUID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid report id: %v", err))
		return
	}
	report, err := s.reports.Get(r.Context(), id)
	if err != nil {
		if joydoc.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("report not found: %s", id))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load report: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, report)
}

// handleListReports handles GET /api/v1/reports?limit=n
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store is not enabled")
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, 100)
	}
	reports, err := s.reports.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list reports: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, reports)
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "disabled"}
	if s.reports != nil {
		if err := s.reports.Health(r.Context(), 2*time.Second); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Store = "ok"
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (s *Server) validatorFor(r *http.Request) *joydoc.Validator {
	if queryBool(r, "strict") {
		return s.strict
	}
	return s.validator
}

func documentID(doc any) string {
	if m, ok := doc.(map[string]any); ok {
		if id, ok := m["_id"].(string); ok {
			return id
		}
	}
	return ""
}
