package http

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

// securityMetrics counts events reported by /readyz.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
}

// trustedProxies may set X-Forwarded-For and X-Real-IP.
var trustedProxies = mustParseCIDRs(
	"127.0.0.0/8",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, network, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("parse trusted proxy CIDR %s: %v", c, err))
		}
		out = append(out, network)
	}
	return out
}

func isTrustedProxy(ip net.IP) bool {
	for _, network := range trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP returns the address the rate limiter keys on. Forwarding
// headers are honoured only from a trusted proxy, and X-Forwarded-For is
// walked from the right so a client cannot choose its own key by prepending
// entries.
func extractClientIP(r *http.Request) string {
	direct, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		direct = r.RemoteAddr
	}
	ip := net.ParseIP(direct)
	if ip == nil || !isTrustedProxy(ip) {
		return direct
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := net.ParseIP(strings.TrimSpace(hops[i]))
			if hop == nil {
				break
			}
			if !isTrustedProxy(hop) {
				return hop.String()
			}
		}
	}
	if xri := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); xri != nil {
		return xri.String()
	}
	return direct
}

const tablePrefix = "/api/tabela"

// scannerAgents are vulnerability scanners. Plain HTTP clients (the CLI's
// Go-http-client, curl in ops scripts) are expected callers.
var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "nuclei",
}

// injectionMarkers never occur in a legitimate table request; the API takes
// no query parameters and dates are digits and separators.
var injectionMarkers = []string{
	"union select", "sleep(", "' or ", "\" or ", "/*", "etc/passwd", "cmd.exe",
}

// suspicionReason inspects a request to the table API and returns why it
// looks hostile, or "" when it looks like a normal client. It never blocks
// the request; callers log the reason.
func suspicionReason(r *http.Request, metrics *securityMetrics) string {
	reason := classifyRequest(r)
	if reason != "" && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}
	return reason
}

func classifyRequest(r *http.Request) string {
	if len(r.URL.RequestURI()) > 512 {
		return "oversized uri"
	}

	raw := strings.ToLower(r.URL.EscapedPath())
	if strings.Contains(raw, "..") || strings.Contains(raw, "%2e%2e") ||
		strings.Contains(raw, "%00") || strings.Contains(raw, "\\") {
		return "path traversal"
	}

	path := r.URL.Path
	if !strings.HasPrefix(path, tablePrefix) {
		return "outside table api"
	}
	if r.Method == http.MethodGet {
		date, _ := splitTablePath(strings.TrimPrefix(path, tablePrefix))
		if strings.Trim(date, "0123456789/-") != "" {
			return "malformed date segment"
		}
	}

	query := strings.ToLower(r.URL.RawQuery)
	if decoded, err := url.QueryUnescape(query); err == nil {
		query = decoded
	}
	for _, m := range injectionMarkers {
		if strings.Contains(query, m) || strings.Contains(strings.ToLower(path), m) {
			return "injection marker"
		}
	}

	agent := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			return "scanner user agent"
		}
	}

	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "long forwarding chain"
	}
	return ""
}
