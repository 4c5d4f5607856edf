// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medwave/breathscan/pkg/classify"
	"github.com/medwave/breathscan/pkg/predict"
	"github.com/medwave/breathscan/pkg/risk"
)

// maxUploadBytes bounds request bodies. Three seconds of any sane audio
// format fits with a wide margin.
const maxUploadBytes = 32 << 20

// Server serves the analysis API. Construct with New; start with Run.
type Server struct {
	predictor *predict.Predictor
	log       *slog.Logger
	metrics   *metrics
	mux       *http.ServeMux
	started   time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New builds a Server around a predictor.
func New(p *predict.Predictor, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("server: nil predictor")
	}
	s := &Server{
		predictor: p,
		log:       slog.Default(),
		metrics:   newMetrics(),
		mux:       http.NewServeMux(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return s, nil
}

// Handler returns the routed handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		s.log.Info("http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	}
}

type ctxKey int

const requestIDKey ctxKey = 0

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		s.log.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"elapsed", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

type analyzeResponse struct {
	RequestID     string             `json:"request_id"`
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence,omitempty"`
	Risk          float64            `json:"risk"`
	Tier          risk.Tier          `json:"tier"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Message       string             `json:"message,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	audio, err := readAudio(r)
	if err != nil {
		s.metrics.analyses.WithLabelValues("bad_input").Inc()
		s.writeFailure(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	res, err := s.predictor.Predict(r.Context(), audio)
	if err != nil {
		switch {
		case errors.Is(err, classify.ErrModelNotLoaded):
			s.metrics.analyses.WithLabelValues("degraded").Inc()
			s.writeFailure(w, r, http.StatusServiceUnavailable, err)
		case predict.IsBadInput(err):
			s.metrics.analyses.WithLabelValues("bad_input").Inc()
			s.writeFailure(w, r, http.StatusUnprocessableEntity, err)
		default:
			s.metrics.analyses.WithLabelValues("error").Inc()
			s.log.Error("pipeline failure", "id", requestID(r), "err", err)
			s.writeFailure(w, r, http.StatusInternalServerError, err)
		}
		return
	}

	s.metrics.analyses.WithLabelValues("ok").Inc()
	s.metrics.tiers.WithLabelValues(res.Tier.String()).Inc()
	s.metrics.duration.Observe(res.Elapsed.Seconds())

	writeJSON(w, http.StatusOK, analyzeResponse{
		RequestID:     requestID(r),
		Label:         res.Label,
		Confidence:    res.Confidence,
		Risk:          res.Risk,
		Tier:          res.Tier,
		Probabilities: res.Probabilities,
	})
}

// writeFailure renders the sentinel result so clients always receive a
// well-formed analysis document, failed or not.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, status int, err error) {
	sentinel := predict.ResultFromError(err)
	writeJSON(w, status, analyzeResponse{
		RequestID: requestID(r),
		Label:     sentinel.Label,
		Risk:      sentinel.Risk,
		Tier:      sentinel.Tier,
		Message:   err.Error(),
	})
}

// readAudio accepts either a multipart form with an "audio" file field
// or the raw request body.
func readAudio(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		file, _, err := r.FormFile("audio")
		if err != nil {
			return nil, fmt.Errorf("multipart field %q: %w", "audio", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty request body")
	}
	return data, nil
}

type healthResponse struct {
	Status        string  `json:"status"`
	ModelLoaded   bool    `json:"model_loaded"`
	Labels        int     `json:"labels"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.predictor.Degraded() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		ModelLoaded:   !s.predictor.Degraded(),
		Labels:        s.predictor.Taxonomy().Len(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
