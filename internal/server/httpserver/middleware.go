package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/telemetry/logger"
	"github.com/yndnr/shardmesh-go/internal/telemetry/metric"
	"github.com/yndnr/shardmesh-go/pkg/idgen"
)

const headerRequestID = "X-Request-ID"

// limiterIdle is how long a client's bucket survives without requests.
const limiterIdle = 5 * time.Minute

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so the first middleware is the outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// ContextLogger makes l the request logger returned by logger.L.
func ContextLogger(l *slog.Logger) Middleware {
	base := logger.FromSlog(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), base)))
		})
	}
}

// RequestID keeps a caller's X-Request-ID or assigns one, echoes it in the
// response and tags the request logger with it.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerRequestID)
			if id == "" {
				id = "req-" + idgen.New()
				r.Header.Set(headerRequestID, id)
			}
			w.Header().Set(headerRequestID, id)
			next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
		})
	}
}

// AccessLog logs each request through the request logger and records the
// route-labelled HTTP metrics. metrics may be nil.
func AccessLog(metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			elapsed := time.Since(start)

			// Set by ServeMux when a pattern matched.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			if metrics != nil {
				metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
				metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", rw.statusCode,
				"duration_ms", elapsed.Milliseconds(),
				"client_ip", clientIP(r),
			}
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				attrs = append(attrs, "forwarded_for", fwd)
			}

			log := logger.L(r.Context())
			switch {
			case rw.statusCode >= 500:
				log.Error("request completed with error", attrs...)
			case rw.statusCode >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
		})
	}
}

// Recover turns a handler panic into a 500 envelope. It runs outside
// RequestID, so the ID is read from the request header.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger.L(r.Context()).Error("panic recovered",
						"request_id", r.Header.Get(headerRequestID),
						"error", p,
						"path", r.URL.Path,
					)
					writeError(w, http.StatusInternalServerError,
						domain.ErrInternalServer.Code, domain.ErrInternalServer.Message)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NetworkACLConfig holds the admin API allow-list.
type NetworkACLConfig struct {
	// AllowList holds IPs and CIDRs. Empty allows everyone.
	AllowList []string

	// Logger receives invalid entries and denied requests.
	Logger *slog.Logger
}

// NetworkACL rejects peers outside the allow-list with 403. Only the TCP
// peer address counts; forwarding headers are ignored since any client
// can set them.
func NetworkACL(cfg *NetworkACLConfig) Middleware {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	allowed := parseAllowList(cfg.AllowList, log)

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := peerAddr(r)
			if !ok {
				writeError(w, http.StatusForbidden, "SM-SYS-4030", "invalid client IP")
				return
			}
			for _, p := range allowed {
				if p.Contains(addr) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Warn("request denied by network ACL", "client_ip", addr.String(), "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "SM-SYS-4030", "IP not in allowlist")
		})
	}
}

// parseAllowList turns IPs and CIDRs into prefixes, single IPs as
// full-length prefixes. Invalid entries are logged and skipped.
func parseAllowList(entries []string, log *slog.Logger) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				log.Warn("invalid CIDR in allowlist", "entry", e, "error", err)
				continue
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			log.Warn("invalid IP in allowlist", "entry", e)
			continue
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out
}

// RateLimit applies a token bucket of requestsPerSecond per client IP.
func RateLimit(requestsPerSecond int) Middleware {
	lim := newIPLimiter(rate.Limit(requestsPerSecond), requestsPerSecond, limiterIdle)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.allow(clientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Code, domain.ErrRateLimited.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipLimiter keeps one bucket per client and drops buckets idle for longer
// than idle, so the table cannot grow without bound.
type ipLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newIPLimiter(limit rate.Limit, burst int, idle time.Duration) *ipLimiter {
	return &ipLimiter{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		buckets: make(map[string]*bucket),
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= l.idle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// responseWriter records the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// writeError writes an error body for failures raised by middleware.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// peerAddr returns the TCP peer of r, with IPv4-mapped IPv6 unmapped.
func peerAddr(r *http.Request) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	if a, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		return a.Unmap(), true
	}
	return netip.Addr{}, false
}

// clientIP is the peer address as a string, or RemoteAddr verbatim when it
// does not parse.
func clientIP(r *http.Request) string {
	if a, ok := peerAddr(r); ok {
		return a.String()
	}
	return r.RemoteAddr
}
