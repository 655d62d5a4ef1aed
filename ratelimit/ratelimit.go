package ratelimit

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-IP token bucket with periodic removal of idle clients.
type Limiter struct {
	mu             sync.Mutex
	clients        map[string]*clientEntry
	rate           rate.Limit
	burst          int
	staleAfter     time.Duration
	trustedProxies map[string]bool
	onReject       func(ip string)
	done           chan struct{}
	closeOnce      sync.Once
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New allows requestsPerInterval requests per interval per client IP, with
// the same number as burst. Clients idle for staleAfter are forgotten.
func New(requestsPerInterval int, interval, staleAfter time.Duration) (*Limiter, error) {
	if requestsPerInterval <= 0 {
		return nil, fmt.Errorf("ratelimit: requests_per_interval must be positive")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("ratelimit: interval must be positive")
	}
	if staleAfter <= 0 {
		staleAfter = 10 * interval
	}

	l := &Limiter{
		clients:        make(map[string]*clientEntry),
		rate:           rate.Limit(float64(requestsPerInterval) / interval.Seconds()),
		burst:          requestsPerInterval,
		staleAfter:     staleAfter,
		trustedProxies: make(map[string]bool),
		done:           make(chan struct{}),
	}
	go l.cleanupLoop(staleAfter / 2)
	return l, nil
}

// SetTrustedProxies lists the peers whose X-Forwarded-For header is honoured.
func (l *Limiter) SetTrustedProxies(proxies []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trustedProxies = make(map[string]bool, len(proxies))
	for _, p := range proxies {
		l.trustedProxies[p] = true
	}
}

// OnReject installs a hook called for every rejected request.
func (l *Limiter) OnReject(fn func(ip string)) {
	l.mu.Lock()
	l.onReject = fn
	l.mu.Unlock()
}

func (l *Limiter) getClient(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[ip]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (l *Limiter) Allow(ip string) bool {
	return l.getClient(ip).Allow()
}

// RetryAfter returns whole seconds until ip may send again.
func (l *Limiter) RetryAfter(ip string) int {
	r := l.getClient(ip).Reserve()
	delay := r.Delay()
	r.Cancel()
	return int(math.Ceil(delay.Seconds()))
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	if every < time.Second {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for ip, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.staleAfter {
			delete(l.clients, ip)
		}
	}
}

func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// ClientIP returns the leftmost X-Forwarded-For address when the peer is a
// trusted proxy, otherwise the peer address.
func (l *Limiter) ClientIP(r *http.Request) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		l.mu.Lock()
		trusted := l.trustedProxies[remoteIP]
		l.mu.Unlock()
		if trusted {
			clientIP := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(clientIP) != nil {
				return clientIP
			}
		}
	}
	return remoteIP
}

// Middleware rejects over-limit requests with 429, a Retry-After header and
// a JSON error body.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := l.ClientIP(r)
		if l.Allow(ip) {
			next.ServeHTTP(w, r)
			return
		}
		l.mu.Lock()
		hook := l.onReject
		l.mu.Unlock()
		if hook != nil {
			hook(ip)
		}
		retryAfter := l.RetryAfter(ip)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error":       fmt.Sprintf("rate limit exceeded, try again in %d seconds", retryAfter),
			"retry_after": retryAfter,
		})
	})
}
