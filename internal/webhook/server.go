package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/mention-relay/internal/event"
	"github.com/mattjoyce/mention-relay/internal/metrics"
)

// Server represents the Slack events HTTP server.
type Server struct {
	config   Config
	verifier *Verifier
	relay    Dispatcher
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new webhook server instance.
func New(config Config, relay Dispatcher, logger *slog.Logger) *Server {
	// Apply defaults
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}

	return &Server{
		config:   config,
		verifier: NewVerifier(config.SigningSecret, config.Tolerance),
		relay:    relay,
		logger:   logger,
	}
}

// Start starts the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "metrics", s.config.MetricsEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/", s.handleEvent)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.respondText(w, http.StatusOK, "ok")
	})
	if s.config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if r.URL.Path == "/" {
			metrics.RequestsTotal.WithLabelValues(strconv.Itoa(ww.Status())).Inc()
		}

		// Log request (no body content for security)
		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleEvent runs one delivery through verify, classify and dispatch.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		s.respondText(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondText(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	// Nothing is parsed until the signature checks out.
	outcome := s.verifier.VerifyRequest(body, r.Header)
	if !outcome.Valid {
		metrics.VerificationFailures.WithLabelValues(outcome.Reason.String()).Inc()
		s.logger.Warn("slack signature verification failed",
			"reason", outcome.Reason.String(),
			"request_id", middleware.GetReqID(ctx),
		)
		s.respondText(w, http.StatusForbidden, bodyForbidden)
		return
	}

	env := event.Classify(body)
	metrics.EventsTotal.WithLabelValues(event.Kind(env)).Inc()

	switch ev := env.(type) {
	case event.Challenge:
		s.logger.Info("answering url verification challenge")
		s.respondJSON(w, http.StatusOK, ChallengeResponse{Challenge: ev.Token})

	case event.Mention:
		out := s.relay.Dispatch(ctx, ev)
		s.logger.Info("mention dispatched",
			"dispatch_id", out.DispatchID,
			"event_id", ev.EventID,
			"channel", ev.Channel,
			"degraded", out.Degraded(),
			"delivered", out.DeliveryErr == nil,
		)
		s.respondText(w, http.StatusOK, bodyOK)

	case event.Other:
		s.logger.Debug("ignoring event", "type", ev.Type)
		s.respondText(w, http.StatusOK, bodyOK)
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(data)
}

// respondText sends a plain-text response.
func (s *Server) respondText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, text)
}
