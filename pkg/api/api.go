// Package api serves tree searches over HTTP.
//
// # Routes
//
//	GET    /healthz                        liveness and build info
//	POST   /v1/searches                    run a search (body: pipeline.Options)
//	POST   /v1/scores                      score trees against gene trees
//	GET    /v1/runs                        list archived runs (?limit=N)
//	GET    /v1/runs/{id}                   one archived run
//	DELETE /v1/runs/{id}                   delete an archived run
//	POST   /v1/runs/{id}/resume            continue an archived run
//	GET    /v1/runs/{id}/trees/{n}         draw tree n (?format=svg|dot|newick|png|pdf)
//
// Searches run synchronously within the request. A request cancelled by the
// client cancels its search; the run is then collected according to its
// on_cancel option and archived like any other.
//
// Errors are returned as
//
//	{"error": {"code": "INVALID_NEWICK", "message": "..."}}
//
// with status 400 for invalid input, 404 for unknown runs, 501 for
// operations the server is not configured for and 500 otherwise.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/treesearch/pkg/observability"
	"github.com/matzehuels/treesearch/pkg/pipeline"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 8 << 20

// Server holds the HTTP handlers.
type Server struct {
	runner       *pipeline.Runner
	logger       *log.Logger
	maxBodyBytes int64
}

// New creates a server running searches with runner. Run archive routes
// answer 501 when the runner has no store.
func New(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = runner.Logger
	}
	return &Server{runner: runner, logger: logger, maxBodyBytes: DefaultMaxBodyBytes}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/searches", s.handleSearch)
		r.Post("/scores", s.handleScore)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Post("/resume", s.handleResume)
				r.Get("/trees/{n}", s.handleRenderTree)
			})
		})
	})
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Infof("Serving on http://%s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != http.ErrServerClosed {
		return err
	}
	return nil
}

// observe reports requests to the HTTP hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, path, status, time.Since(start))
		s.logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start).Round(time.Millisecond))
	})
}
