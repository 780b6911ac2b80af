package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/OfomiMatthew/tech-buddy/internal/config"
	"github.com/OfomiMatthew/tech-buddy/internal/logger"
)

// HTTPDeps are the pieces the HTTP router mounts besides service routes.
type HTTPDeps struct {
	Auth    func(http.Handler) http.Handler // JWT middleware for private routes
	Uploads http.Handler                    // serves stored attachments under /uploads/
	Socket  http.Handler                    // signaling websocket at /ws
	Health  func(ctx context.Context) error // readiness check, nil means always ready
}

// NewRouter builds the HTTP handler tree: /health, /uploads, /ws, the public
// /api routes and the authenticated /api routes of every registrar.
func NewRouter(cfg *config.Config, log *slog.Logger, deps HTTPDeps, registrars ...RouteRegistrar) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(req.Context()); err != nil {
				JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		JSON(w, http.StatusOK, map[string]string{"status": "healthy", "app": cfg.App.Name})
	}).Methods(http.MethodGet)

	if deps.Uploads != nil {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", deps.Uploads))
	}
	if deps.Socket != nil {
		r.Handle("/ws", deps.Socket)
	}

	public := r.PathPrefix("/api").Subrouter()
	private := r.PathPrefix("/api").Subrouter()
	if deps.Auth != nil {
		private.Use(mux.MiddlewareFunc(deps.Auth))
	}

	rt := Routes{Public: public, Private: private}
	for _, reg := range registrars {
		reg.RegisterRoutes(rt)
	}

	r.Use(accessLog(log))

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: false})
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(sentryHandler.Handle(r))
}

// NewHTTPServer wraps handler with the configured address and timeouts.
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
}

// StartHTTPServer serves until Shutdown. A clean shutdown is not an error.
func StartHTTPServer(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// accessLog attaches a request scoped logger to the context and logs every request.
func accessLog(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			reqLog := log.With("method", r.Method, "path", r.URL.Path)

			next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			reqLog.Debug("http request", "status", rec.status, logger.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
