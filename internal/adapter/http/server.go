package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ForecastProvider exposes the tables of the last successful cycle.
type ForecastProvider interface {
	sharedobs.ReadinessChecker
	LatestForecast() (domain.ForecastTable, domain.TideTable, error)
}

// Server exposes health, readiness, metrics, and the latest forecast over HTTP.
type Server struct {
	httpServer *http.Server
	forecasts  ForecastProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /forecast, and /tides routes.
func NewServer(addr string, forecasts ForecastProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		forecasts: forecasts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(forecasts))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /forecast", s.handleForecast)
	mux.HandleFunc("GET /tides", s.handleTides)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleForecast serves the canonical table. ?spot= keeps only rows whose
// spot_name matches case-insensitively.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	forecast, _, err := s.forecasts.LatestForecast()
	if err != nil {
		writeUnavailable(w, err)
		return
	}
	if spot := strings.TrimSpace(r.URL.Query().Get("spot")); spot != "" {
		forecast = filterSpot(forecast, spot)
	}
	sharedobs.WriteJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleTides(w http.ResponseWriter, _ *http.Request) {
	_, tides, err := s.forecasts.LatestForecast()
	if err != nil {
		writeUnavailable(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, tides)
}

func writeUnavailable(w http.ResponseWriter, err error) {
	sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status": "unavailable",
		"error":  err.Error(),
	})
}

func filterSpot(table domain.ForecastTable, spot string) domain.ForecastTable {
	out := domain.ForecastTable{Columns: table.Columns, Rows: []domain.ForecastRow{}}
	for _, row := range table.Rows {
		if strings.EqualFold(row.SpotName, spot) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
