package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/shardmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/shardmesh-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Cluster is the master the admin API drives.
	Cluster handler.ClusterAPI

	// Metrics serves /metrics and records HTTP metrics. Nil disables both.
	Metrics *metric.Registry

	Logger *slog.Logger

	// AllowList is the IP/CIDR allowlist (empty = no restriction).
	AllowList []string

	// RateLimit is the per-IP limit in requests/second (0 = unlimited).
	RateLimit int
}

// NewRouter builds the admin API handler with its middleware chain.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "admin")

	mux := http.NewServeMux()
	mux.Handle("/", handler.New(cfg.Cluster, logger))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	// Order: ContextLogger -> Recover -> RequestID -> AccessLog -> NetworkACL -> RateLimit -> mux
	middlewares := []Middleware{
		ContextLogger(logger),
		Recover(),
		RequestID(),
		AccessLog(cfg.Metrics),
	}
	if len(cfg.AllowList) > 0 {
		middlewares = append(middlewares, NetworkACL(&NetworkACLConfig{
			AllowList: cfg.AllowList,
			Logger:    logger,
		}))
	}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit))
	}

	return Chain(mux, middlewares...)
}
