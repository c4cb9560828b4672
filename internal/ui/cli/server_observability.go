package cli

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/ui/report"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ObservabilityServer exposes Prometheus metrics and the health report of a
// watch session.
type ObservabilityServer struct {
	addr          string
	healthService *app.HealthService
	logger        *slog.Logger
	server        *http.Server
	listener      net.Listener
}

func NewObservabilityServer(addr string, healthService *app.HealthService, logger *slog.Logger) *ObservabilityServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObservabilityServer{
		addr:          addr,
		healthService: healthService,
		logger:        logger,
	}
}

func (s *ObservabilityServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := s.healthService.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != app.StatusUp {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.Debug("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("/report", s.serveReport)
	return mux
}

// serveReport renders the last run in the format named by ?format=,
// summary-xml by default.
func (s *ObservabilityServer) serveReport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = report.NameSummaryXML
	}
	g, err := report.New(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := s.healthService.LastResult()
	if res == nil {
		http.Error(w, "no completed run yet", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := g.Generate(&buf, res); err != nil {
		s.logger.Error("failed to render report", "format", name, "error", err)
		http.Error(w, "report rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", reportContentType(name))
	_, _ = w.Write(buf.Bytes())
}

func reportContentType(name string) string {
	switch name {
	case report.NameSummaryXML, report.NamePHPUnitXML:
		return "application/xml"
	case report.NameYAML:
		return "application/yaml"
	}
	return "text/plain; charset=utf-8"
}

// Start listens on the configured address and serves in the background.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("observability server starting", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *ObservabilityServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
