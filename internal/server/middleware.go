package server

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// withRequestID tags every response with a request id, keeping a
// client-supplied one so callers can correlate retries.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Printf("[newslens] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Truncate(time.Microsecond))
	})
}

// clientLimiters holds one token bucket per client address. Idle entries
// are dropped after an hour so the map cannot grow without bound.
type clientLimiters struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	clients map[string]*clientEntry
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const clientIdleTTL = time.Hour

func newClientLimiters(perSec float64, burst int) *clientLimiters {
	return &clientLimiters{
		perSec:  rate.Limit(perSec),
		burst:   burst,
		clients: make(map[string]*clientEntry),
	}
}

func (c *clientLimiters) limiterFor(addr string) *rate.Limiter {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	entry, ok := c.clients[host]
	if !ok {
		for k, e := range c.clients {
			if now.Sub(e.lastSeen) > clientIdleTTL {
				delete(c.clients, k)
			}
		}
		entry = &clientEntry{limiter: rate.NewLimiter(c.perSec, c.burst)}
		c.clients[host] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (c *clientLimiters) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.perSec > 0 && !c.limiterFor(r.RemoteAddr).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
