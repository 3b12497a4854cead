package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eliseohh/strelkabot/internal/logging"
)

const serviceName = "strelka-bot-web-stub"

// Server is the liveness HTTP stub. It never touches bot or storage state.
type Server struct {
	Addr string

	listenAddr string
	logger     *clog.Logger
	srv        *http.Server
	wg         sync.WaitGroup
}

func NewServer(logger *clog.Logger, addr string) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		listenAddr: addr,
		logger:     logger.With("component", "web"),
	}
}

// Router returns the handler serving GET / and GET /health.
func Router(logger *clog.Logger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "service": serviceName})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "healthy"})
	})
	return r
}

// Start binds the listener and serves in the background. Addr holds the bound
// address afterwards.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}
	s.Addr = l.Addr().String()
	s.srv = &http.Server{
		Handler:           Router(s.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("http server started", "addr", s.Addr)
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server", "err", err)
		}
		s.logger.Info("http server stopped")
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *clog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"elapsed", time.Since(start),
			)
		})
	}
}
