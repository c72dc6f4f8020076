package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerTagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf, JSON: true, Component: ComponentSession})

	l.WithComponent(ComponentHTTP).Info("hello", FieldDate, "15/03/2024")
	l.Debug("dbg")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, ComponentHTTP, lines[0][FieldComponent])
	assert.Equal(t, "15/03/2024", lines[0][FieldDate])
	assert.Equal(t, ComponentSession, lines[1][FieldComponent])
	assert.Equal(t, 1, strings.Count(strings.Split(buf.String(), "\n")[0], `"component"`))
}

func TestLogHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Output: &buf, JSON: true}))
	r := httptest.NewRequest(http.MethodPost, "/api/tabela", nil)

	sl.LogHTTPEnd(context.Background(), r, 204, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 422, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 500, 3, "10.0.0.1")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, false, lines[1][FieldSuccess])
}

func TestLogErrorFields(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, JSON: true}))
	sl.LogError(context.Background(), "save failed", errors.New("boom"), OpSave, NewFields().WithDay("15/03/2024", 3, 2))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "boom", lines[0][FieldError])
	assert.Equal(t, OpSave, lines[0][FieldOperation])
	assert.Equal(t, float64(2), lines[0][FieldVersion])
}

func TestContextMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, JSON: true})

	var got *Logger
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req_1", lines[0][FieldRequestID])

	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}
