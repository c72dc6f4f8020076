package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"boletim/internal/core"
)

// Path suffixes served under GET /api/tabela/{date...}.
const (
	suffixFooter = "/rodape"
	suffixXLSX   = "/export.xlsx"
)

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Type: kind})
}

// splitTablePath separates the date from an optional view suffix. The date
// may itself contain slashes: "18/10/2026/rodape".
func splitTablePath(rest string) (date string, view string) {
	rest = strings.Trim(rest, "/")
	for _, suffix := range []string{suffixFooter, suffixXLSX} {
		if strings.HasSuffix(rest, suffix) {
			return strings.TrimSuffix(rest, suffix), suffix
		}
	}
	return rest, ""
}

func parsePathDate(raw string) (core.Date, error) {
	if raw == "" {
		return core.Date{}, fmt.Errorf("%w: missing date", core.ErrInvalidDate)
	}
	return core.ParseDate(raw)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}
