package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/armorclaw/catcher/pkg/event"
	"github.com/armorclaw/catcher/pkg/logger"
	"github.com/armorclaw/catcher/pkg/metrics"
	"github.com/armorclaw/catcher/pkg/pipeline"
)

// ServerPath is the endpoint server-process catchers post reports to.
const ServerPath = "/catcher/server"

// HTTPReceiver accepts one report per request from server-process catchers.
// Responses are status-only: 200 accepted, 403 unknown token (no body),
// 500 processing or persistence failure.
type HTTPReceiver struct {
	pipe   *pipeline.Pipeline
	log    *logger.Logger
	server *http.Server
}

// HTTPConfig configures the request/response receiver. Zero timeouts select
// defaults.
type HTTPConfig struct {
	Addr         string
	Pipeline     *pipeline.Pipeline
	Logger       *logger.Logger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewHTTPReceiver creates the HTTP receiver. The router also carries the
// operational endpoints (/health, /metrics).
func NewHTTPReceiver(cfg HTTPConfig) (*HTTPReceiver, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Global().WithComponent("http-receiver")
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	r := &HTTPReceiver{pipe: cfg.Pipeline, log: log}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Post(ServerPath, r.handleReport)
	router.Get("/health", r.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	r.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return r, nil
}

// Start serves until Stop is called.
func (r *HTTPReceiver) Start() error {
	r.log.Info("http receiver listening", "addr", r.server.Addr, "path", ServerPath)

	err := r.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http receiver: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (r *HTTPReceiver) Stop(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (r *HTTPReceiver) Handler() http.Handler {
	return r.server.Handler
}

func (r *HTTPReceiver) handleReport(w http.ResponseWriter, req *http.Request) {
	metrics.ReportsReceived.WithLabelValues(metrics.TransportHTTP).Inc()

	var report event.ServerReport
	if err := json.NewDecoder(req.Body).Decode(&report); err != nil {
		metrics.ReportsRejected.WithLabelValues(metrics.TransportHTTP, metrics.ReasonMalformed).Inc()
		r.log.Warn("undecodable report", "remote", req.RemoteAddr, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	r.log.Info("got server error", "domain", report.Domain)

	err := r.pipe.ProcessServer(req.Context(), &report)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case pipeline.IsAccessDenied(err):
		metrics.ReportsRejected.WithLabelValues(metrics.TransportHTTP, metrics.ReasonAccessDenied).Inc()
		r.log.Warn("report rejected", "domain", report.Domain)
		w.WriteHeader(http.StatusForbidden)
	default:
		metrics.ReportsRejected.WithLabelValues(metrics.TransportHTTP, metrics.ReasonInternal).Inc()
		r.log.Error("report handling failed", "domain", report.Domain, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (r *HTTPReceiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
