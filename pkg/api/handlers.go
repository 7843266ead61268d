package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/treesearch/pkg/buildinfo"
	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/pipeline"
	"github.com/matzehuels/treesearch/pkg/render"
	"github.com/matzehuels/treesearch/pkg/results"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/store"
)

// =============================================================================
// Response types
// =============================================================================

type treeResponse struct {
	Name   string      `json:"name"`
	Newick string      `json:"newick"`
	Score  score.Score `json:"score"`
}

type runResponse struct {
	ID      string         `json:"id,omitempty"`
	Summary string         `json:"summary"`
	Stats   results.Stats  `json:"stats"`
	Trees   []treeResponse `json:"trees"`
}

type runSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Criterion string    `json:"criterion"`
	Direction string    `json:"direction"`
	Status    string    `json:"status"`
	Best      *float64  `json:"best"`
	Trees     int       `json:"trees"`
}

type scoreRequest struct {
	pipeline.Options
	Trees string `json:"trees"`
}

type scoreResponse struct {
	Criterion string          `json:"criterion"`
	Direction score.Direction `json:"direction"`
	Trees     []treeResponse  `json:"trees"`
}

func newRunResponse(res *pipeline.Result) runResponse {
	c := res.Collection
	out := runResponse{
		ID:      res.RunID,
		Summary: c.Stats.String(),
		Stats:   c.Stats,
		Trees:   make([]treeResponse, len(c.Trees)),
	}
	for i, t := range c.Trees {
		out.Trees[i] = treeResponse{Name: t.Name, Newick: t.Tree.Newick(), Score: t.Score}
	}
	return out
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if !s.decode(w, r, &opts) {
		return
	}
	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRunResponse(res))
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	scored, dir, err := s.runner.Score(r.Context(), req.Options, req.Trees)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := scoreResponse{Criterion: req.Criterion, Direction: dir, Trees: make([]treeResponse, len(scored))}
	if out.Criterion == "" {
		out.Criterion = pipeline.DefaultCriterion
	}
	for i, t := range scored {
		out.Trees[i] = treeResponse{Name: t.Name, Newick: t.Tree.Newick(), Score: t.Score}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, ok := s.store(w)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	recs, err := runs.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]runSummary, len(recs))
	for i, rec := range recs {
		out[i] = runSummary{
			ID:        rec.ID,
			CreatedAt: rec.CreatedAt,
			Criterion: rec.Criterion,
			Direction: rec.Direction,
			Status:    rec.Status,
			Best:      rec.Best,
			Trees:     len(rec.Trees),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runs, ok := s.store(w)
	if !ok {
		return
	}
	rec, err := runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runs, ok := s.store(w)
	if !ok {
		return
	}
	if err := runs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if r.ContentLength != 0 {
		if !s.decode(w, r, &opts) {
			return
		}
	}
	res, err := s.runner.Resume(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRunResponse(res))
}

func (s *Server) handleRenderTree(w http.ResponseWriter, r *http.Request) {
	runs, ok := s.store(w)
	if !ok {
		return
	}
	rec, err := runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, _, err := rec.Collection()
	if err != nil {
		s.writeError(w, err)
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 || n > len(c.Trees) {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "run %s has no tree %s", rec.ID, chi.URLParam(r, "n")))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = render.FormatSVG
	}
	t := c.Trees[n-1]
	out, err := render.Render(r.Context(), t.Tree, format, render.Options{
		Title:         t.Name,
		BranchLengths: r.URL.Query().Get("lengths") == "true",
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", render.ContentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) store(w http.ResponseWriter) (store.Store, bool) {
	if s.runner.Store == nil {
		s.writeError(w, errors.New(errors.ErrCodeUnsupported, "run archive is not configured"))
		return nil, false
	}
	return s.runner.Store, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body"))
		return false
	}
	return true
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCodeUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status == http.StatusInternalServerError {
		s.logger.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: errors.UserMessage(err)}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
