package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// pinGuard locks a client out of the PIN exchange after too many wrong PINs
// inside the window. A correct PIN clears the client's record.
type pinGuard struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	failures map[string][]time.Time
}

func newPINGuard(limit int, window time.Duration) *pinGuard {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &pinGuard{limit: limit, window: window, now: time.Now, failures: map[string][]time.Time{}}
}

func (g *pinGuard) Locked(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.recentLocked(client)) >= g.limit
}

func (g *pinGuard) Fail(client string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[client] = append(g.recentLocked(client), g.now())
}

func (g *pinGuard) Reset(client string) {
	g.mu.Lock()
	delete(g.failures, client)
	g.mu.Unlock()
}

func (g *pinGuard) recentLocked(client string) []time.Time {
	cutoff := g.now().Add(-g.window)
	recent := g.failures[client][:0]
	for _, at := range g.failures[client] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	if len(recent) == 0 {
		delete(g.failures, client)
		return nil
	}
	g.failures[client] = recent
	return recent
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
