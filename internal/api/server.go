// Package api implements the intake HTTP surface: submit a relay job,
// query its narrow projection, and a health check. Routing is
// github.com/gorilla/mux, matching the router named in the pack's
// reference manifests; request logging follows the
// logiface-slog/http_middleware_example.go fluent-builder middleware
// shape, rebuilt here against internal/logging's zerolog-backed Logger.
package api

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/SeungheonOh/xreserve-relay/internal/logging"
	"github.com/SeungheonOh/xreserve-relay/internal/ratelimit"
	"github.com/SeungheonOh/xreserve-relay/internal/store"
)

// Config holds the intake API's tunables.
type Config struct {
	AllowedSourceDomains []int
	RateLimitCapacity    float64
	RateLimitRate        float64
}

// Server is the intake HTTP surface. Construct with New and mount the
// handler returned by Routes on an *http.Server; Server does not build or
// run an *http.Server itself.
type Server struct {
	store       store.Store
	log         *logging.Logger
	cfg         Config
	allowed     map[int]bool
	perClientRL *perClientLimiter
}

func New(s store.Store, log *logging.Logger, cfg Config) *Server {
	allowed := make(map[int]bool, len(cfg.AllowedSourceDomains))
	for _, d := range cfg.AllowedSourceDomains {
		allowed[d] = true
	}
	return &Server{
		store:       s,
		log:         log,
		cfg:         cfg,
		allowed:     allowed,
		perClientRL: newPerClientLimiter(cfg.RateLimitCapacity, cfg.RateLimitRate),
	}
}

// Routes returns the mux.Router serving the three intake endpoints, wrapped
// with cross-origin allow-all, per-client throttling, and request logging.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/relay", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/relay/{txHash}", s.handleQuery).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return s.requestLogger(s.throttle(corsAllowAll(r)))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("duration_ms", int(time.Since(start).Milliseconds())).
			Log("api: request handled")
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.perClientRL.allow(r) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// perClientLimiter is a lazily-populated map of per-client-IP token
// buckets, serializing its own map mutation the way
// internal/ratelimit.Bucket serializes its own refill state.
type perClientLimiter struct {
	capacity float64
	rate     float64
	buckets  map[string]*ratelimit.Bucket
	mu       sync.Mutex
}

func newPerClientLimiter(capacity, rate float64) *perClientLimiter {
	return &perClientLimiter{capacity: capacity, rate: rate, buckets: make(map[string]*ratelimit.Bucket)}
}

func (l *perClientLimiter) allow(r *http.Request) bool {
	key := clientKey(r)

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = ratelimit.NewBucket(l.capacity, l.rate)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.TryAcquire()
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
