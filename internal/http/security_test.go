package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:1234", "", "", "203.0.113.7"},
		{"untrusted forwarder ignored", "203.0.113.7:1234", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy", "10.0.0.2:1234", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"spoofed leftmost entry", "10.0.0.2:1234", "1.1.1.1, 198.51.100.1", "", "198.51.100.1"},
		{"garbage hop stops the walk", "10.0.0.2:1234", "not-an-ip", "", "10.0.0.2"},
		{"real ip fallback", "127.0.0.1:1234", "", "198.51.100.9", "198.51.100.9"},
		{"ipv6 loopback proxy", "[::1]:1234", "198.51.100.1", "", "198.51.100.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, extractClientIP(r))
		})
	}
}

func TestSuspicionReason(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   string
	}{
		{"cli read", http.MethodGet, "/api/tabela/15/03/2024", "Go-http-client/1.1", ""},
		{"footer", http.MethodGet, "/api/tabela/15/03/2024/rodape", "Mozilla/5.0", ""},
		{"iso export", http.MethodGet, "/api/tabela/2024-03-15/export.xlsx", "curl/8.5.0", ""},
		{"save", http.MethodPost, "/api/tabela", "Go-http-client/1.1", ""},
		{"encoded traversal", http.MethodGet, "/api/tabela/%2e%2e/%2e%2e/etc", "", "path traversal"},
		{"letters in date", http.MethodGet, "/api/tabela/15/03/2024abc", "", "malformed date segment"},
		{"injection in query", http.MethodGet, "/api/tabela/15/03/2024?d=1'+or+'1'='1", "", "injection marker"},
		{"scanner", http.MethodGet, "/api/tabela/15/03/2024", "sqlmap/1.7", "scanner user agent"},
		{"other surface", http.MethodGet, "/wp-admin/", "", "outside table api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			assert.Equal(t, tt.want, suspicionReason(r, nil))
		})
	}
}

func TestSuspicionReasonCountsMetrics(t *testing.T) {
	m := &securityMetrics{}

	assert.Empty(t, suspicionReason(httptest.NewRequest(http.MethodGet, "/api/tabela/15/03/2024", nil), m))
	assert.NotEmpty(t, suspicionReason(httptest.NewRequest(http.MethodGet, "/api/tabela/abc", nil), m))
	assert.Equal(t, int64(1), m.suspiciousRequests)
}

func TestRateLimiterAppliesToSavesOnly(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()

	assert.True(t, rl.applies(httptest.NewRequest(http.MethodPost, "/api/tabela", nil)))
	assert.False(t, rl.applies(httptest.NewRequest(http.MethodGet, "/api/tabela/15/03/2024", nil)))

	off := newRateLimiter(0, time.Minute)
	defer off.stop()
	assert.False(t, off.applies(httptest.NewRequest(http.MethodPost, "/api/tabela", nil)))
}

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	rl.now = func() time.Time { return now }
	m := &securityMetrics{}

	ok, _ := rl.allow("1.2.3.4", m)
	assert.True(t, ok)
	now = now.Add(20 * time.Second)
	ok, _ = rl.allow("1.2.3.4", m)
	assert.True(t, ok)

	now = now.Add(10 * time.Second)
	ok, wait := rl.allow("1.2.3.4", m)
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)
	assert.Equal(t, 30, retryAfterSeconds(wait))
	assert.Equal(t, int64(1), m.rateLimitHits)

	// other clients have their own window
	ok, _ = rl.allow("5.6.7.8", m)
	assert.True(t, ok)

	// steady traffic does not keep the window open
	now = now.Add(30 * time.Second)
	ok, _ = rl.allow("1.2.3.4", m)
	assert.True(t, ok)
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl := newRateLimiter(5, time.Minute)
	defer rl.stop()
	rl.now = func() time.Time { return now }

	rl.allow("1.2.3.4", nil)
	now = now.Add(45 * time.Second)
	rl.allow("5.6.7.8", nil)

	now = now.Add(20 * time.Second)
	require.Equal(t, 1, rl.cleanupExpired())
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "5.6.7.8")
}

func TestRetryAfterSecondsFloor(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1500*time.Millisecond))
}
