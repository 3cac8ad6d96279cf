// Package server is the HTTP surface of the export service: job creation
// and inspection, a websocket stream of job updates, health and metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/job"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/metrics"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
	"github.com/kanselarij-vlaanderen/themis-export-service/version"
)

// Jobs is the job service behind the API.
type Jobs interface {
	Create(ctx context.Context, req job.CreateRequest) (*job.Job, error)
	Get(ctx context.Context, id string) (*job.Job, error)
	Summary(ctx context.Context) ([]job.StatusCount, error)
	List(ctx context.Context, f job.Filter) ([]*job.Job, error)
}

// Events publishes job updates.
type Events interface {
	Subscribe() chan *job.Job
	Unsubscribe(ch chan *job.Job)
}

// maxRequestBodySize bounds request bodies (1 MB).
const maxRequestBodySize = 1 << 20

// Server serves the export API.
type Server struct {
	jobs   Jobs
	events Events
	router chi.Router
	log    *zap.SugaredLogger

	// ctx ends open event streams on shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the server. events may be nil, which disables the event
// stream.
func New(jobs Jobs, events Events, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{jobs: jobs, events: events, log: log, ctx: ctx, cancel: cancel}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/meetings/{uuid}/publication-activities", s.handleCreatePublication)

	r.Route("/public-export-jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/summary", s.handleSummary)
		r.Get("/events", s.handleEvents)
		r.Get("/{uuid}", s.handleGetJob)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is done, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, readTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithSymbol(s.log, sym.PulseOpen).Infow("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.cancel()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "failed to serve on %s", addr)
	case <-ctx.Done():
	}

	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down HTTP server")
	}
	logger.WithSymbol(s.log, sym.PulseClose).Infow("HTTP server stopped")
	return nil
}

// Close ends open event streams.
func (s *Server) Close() {
	s.cancel()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": info.Version,
		"commit":  info.Commit,
	})
}

// requestLogger logs HTTP requests with structured logging.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debugw("HTTP request",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, ww.Status(),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
			logger.FieldRequestID, middleware.GetReqID(r.Context()),
		)
	})
}
