package http

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// rateLimiter caps saves per client in fixed windows. Reads are never
// limited: they are served from cache and the CLI refetches on every date
// change.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string]*saveWindow

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type saveWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:       limit,
		window:      window,
		now:         time.Now,
		clients:     make(map[string]*saveWindow),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// applies reports whether r counts against the limit. A limit <= 0 turns
// limiting off.
func (rl *rateLimiter) applies(r *http.Request) bool {
	return rl.limit > 0 && r.Method == http.MethodPost
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(max(rl.window*5, time.Minute))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupExpired()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupExpired drops clients whose window has closed. It returns how many
// were dropped.
func (rl *rateLimiter) cleanupExpired() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	dropped := 0
	for ip, w := range rl.clients {
		if now.Sub(w.start) >= rl.window {
			delete(rl.clients, ip)
			dropped++
		}
	}
	return dropped
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() { close(rl.stopCleanup) })
}

// allow records a save from clientIP. When the client is over the limit it
// returns false and how long until its window reopens.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[clientIP]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[clientIP] = &saveWindow{start: now, count: 1}
		return true, 0
	}

	if w.count >= rl.limit {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false, w.start.Add(rl.window).Sub(now)
	}
	w.count++
	return true, 0
}

// retryAfterSeconds renders a wait for the Retry-After header, never less
// than one second.
func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	return max(s, 1)
}
