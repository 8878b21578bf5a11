package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coreybb/doorman/webutil"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterStaleAfter      = 10 * time.Minute
)

// ClientRateLimiter applies a per-client token bucket, keyed by remote
// IP. A zero or negative rate disables limiting entirely.
type ClientRateLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewClientRateLimiter(rps float64, burst int) *ClientRateLimiter {
	l := &ClientRateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
	if l.enabled() {
		go l.cleanupStaleEntries()
	}
	return l
}

func (l *ClientRateLimiter) enabled() bool {
	return l.rps > 0 && l.burst > 0
}

// Allow reports whether the client identified by key may proceed.
func (l *ClientRateLimiter) Allow(key string) bool {
	if !l.enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	client, ok := l.clients[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = client
	}
	client.lastSeen = time.Now()
	return client.limiter.Allow()
}

// Middleware rejects over-limit requests with 429 before they reach the
// wrapped handler.
func (l *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	if !l.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			webutil.RespondWithError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *ClientRateLimiter) cleanupStaleEntries() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-limiterStaleAfter)
		l.mu.Lock()
		for key, client := range l.clients {
			if client.lastSeen.Before(cutoff) {
				delete(l.clients, key)
			}
		}
		l.mu.Unlock()
	}
}

// clientKey identifies a client by IP. RealIP middleware runs earlier in
// the stack, so RemoteAddr reflects forwarding headers when present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
