package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"boletim/internal/core"
	"boletim/internal/export/xlsx"
	applog "boletim/internal/log"
	"boletim/internal/provider"
	"boletim/internal/services"
	"boletim/internal/table"
)

const maxBodyBytes = 1 << 20

// footerResponse is the body of GET /api/tabela/{date}/rodape.
type footerResponse struct {
	Date   core.Date    `json:"date"`
	Footer table.Footer `json:"footer"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":              "ready",
		"rate_limit_hits":     atomic.LoadInt64(&s.metrics.rateLimitHits),
		"suspicious_requests": atomic.LoadInt64(&s.metrics.suspiciousRequests),
	}
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			body["status"] = "unavailable"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// handleGetTable serves the record, its footer or its xlsx export depending
// on the path suffix.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	rawDate, view := splitTablePath(r.PathValue("date"))
	date, err := parsePathDate(rawDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, applog.ErrorTypeValidation, err.Error())
		return
	}

	if view == "" {
		rec, err := s.provider.ReadRecord(r.Context(), date)
		if err != nil {
			s.writeServiceError(w, r, applog.OpRead, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	rec, footer, err := s.provider.Footer(r.Context(), date)
	if err != nil {
		s.writeServiceError(w, r, applog.OpRead, err)
		return
	}

	switch view {
	case suffixFooter:
		writeJSON(w, http.StatusOK, footerResponse{Date: date, Footer: footer})
	case suffixXLSX:
		w.Header().Set("Content-Type", xlsx.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", xlsx.FileName(date)))
		if err := xlsx.Write(w, rec, footer); err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Write xlsx failed",
				applog.FieldDate, date.String(), applog.FieldError, err)
		}
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req core.SaveRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, applog.ErrorTypeValidation, "invalid request body: "+err.Error())
		return
	}
	if err := req.Date.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, applog.ErrorTypeValidation, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, applog.ErrorTypeValidation, validationMessage(err))
		return
	}

	if err := s.provider.SaveAttendance(r.Context(), req); err != nil {
		s.writeServiceError(w, r, applog.OpSave, err)
		return
	}

	s.logger.LogDaySaved(r.Context(), req.Date.String(), len(req.Rows))
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Save handled",
		applog.FieldDuration, time.Since(start).Milliseconds())
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps provider errors to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		status int
		kind   string
	)
	switch {
	case errors.Is(err, core.ErrInvalidDate):
		status, kind = http.StatusBadRequest, applog.ErrorTypeValidation
	case errors.Is(err, table.ErrDesync):
		status, kind = http.StatusUnprocessableEntity, applog.ErrorTypeDesync
	case errors.Is(err, services.ErrStructureMismatch),
		errors.Is(err, services.ErrUnkeyedItem),
		errors.Is(err, provider.ErrUnknownItem):
		status, kind = http.StatusConflict, applog.ErrorTypeConflict
	default:
		status, kind = http.StatusInternalServerError, applog.ErrorTypeInternal
	}

	if status >= 500 {
		s.logger.LogError(r.Context(), "Request failed", err, op,
			applog.NewFields().WithRequestID(RequestID(r.Context())))
		writeError(w, status, kind, "internal error")
		return
	}
	writeError(w, status, kind, err.Error())
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("field %s failed %q validation", fe.Namespace(), fe.Tag())
}
