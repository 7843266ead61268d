package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treesearch/pkg/cache"
	"github.com/matzehuels/treesearch/pkg/observability"
	"github.com/matzehuels/treesearch/pkg/pipeline"
	"github.com/matzehuels/treesearch/pkg/store"
)

const quartetGenes = "((A,B),(C,D));\n((B,A),(D,C));\n((A,C),(B,D));"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	runs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	logger := log.New(&bytes.Buffer{})
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, runs, logger)
	srv := httptest.NewServer(New(runner, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func search(t *testing.T, srv *httptest.Server) runResponse {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/v1/searches", map[string]any{
		"gene_trees": quartetGenes,
		"seed":       "((A,D),(B,C));",
		"moves":      "nni",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /v1/searches status = %d, want 201", resp.StatusCode)
	}
	var run runResponse
	decodeBody(t, resp, &run)
	return run
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	run := search(t, srv)

	if run.ID == "" {
		t.Error("run should be archived")
	}
	if len(run.Trees) != 1 {
		t.Fatalf("len(Trees) = %d, want 1", len(run.Trees))
	}
	if got := run.Trees[0].Score.Value(); got != 2 {
		t.Errorf("score = %v, want 2", got)
	}
	if !strings.HasPrefix(run.Summary, "Search converged") {
		t.Errorf("Summary = %q", run.Summary)
	}
}

func TestSearchErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"empty", map[string]any{}, "INVALID_INPUT"},
		{"bad tree", map[string]any{"gene_trees": "((A,B),(C,D),A);"}, "INVALID_"},
		{"unknown criterion", map[string]any{"gene_trees": quartetGenes, "criterion": "likelihood"}, "INVALID_CRITERION"},
		{"unknown field", map[string]any{"gene_trees": quartetGenes, "colour": "red"}, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/v1/searches", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var body errorBody
			decodeBody(t, resp, &body)
			if !strings.HasPrefix(string(body.Error.Code), tt.code) {
				t.Errorf("code = %s, want %s (%s)", body.Error.Code, tt.code, body.Error.Message)
			}
		})
	}
}

func TestScore(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/v1/scores", map[string]any{
		"gene_trees": quartetGenes,
		"trees":      "((A,B),(C,D));\n((A,D),(B,C));",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Direction string `json:"direction"`
		Trees     []struct {
			Score *float64 `json:"score"`
		} `json:"trees"`
	}
	decodeBody(t, resp, &out)
	if out.Direction != "maximize" {
		t.Errorf("direction = %q, want maximize", out.Direction)
	}
	if len(out.Trees) != 2 || *out.Trees[0].Score != 2 || *out.Trees[1].Score != 0 {
		t.Errorf("trees = %+v", out.Trees)
	}
}

func TestRunLifecycle(t *testing.T) {
	srv := newTestServer(t)
	run := search(t, srv)

	resp := do(t, http.MethodGet, srv.URL+"/v1/runs", nil)
	var list struct {
		Runs []runSummary `json:"runs"`
	}
	decodeBody(t, resp, &list)
	if len(list.Runs) != 1 || list.Runs[0].ID != run.ID {
		t.Fatalf("runs = %+v, want [%s]", list.Runs, run.ID)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/runs/"+run.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET run status = %d", resp.StatusCode)
	}
	var rec store.RunRecord
	decodeBody(t, resp, &rec)
	if rec.Criterion != "concordance" || len(rec.GeneTrees) != 3 {
		t.Errorf("record = %+v", rec)
	}

	resp = do(t, http.MethodPost, srv.URL+"/v1/runs/"+run.ID+"/resume", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("resume status = %d, want 201", resp.StatusCode)
	}
	var resumed runResponse
	decodeBody(t, resp, &resumed)
	if resumed.ID == run.ID || len(resumed.Trees) != len(run.Trees) {
		t.Errorf("resumed = %+v", resumed)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/runs/"+run.ID+"/trees/1?format=newick", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("render status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/runs/"+run.ID+"/trees/9", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing tree status = %d, want 404", resp.StatusCode)
	}

	resp = do(t, http.MethodDelete, srv.URL+"/v1/runs/"+run.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/v1/runs/"+run.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET deleted run status = %d, want 404", resp.StatusCode)
	}
}

func TestInvalidRunID(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/v1/runs/..%2Fetc", nil)
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 400 or 404", resp.StatusCode)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	runner := pipeline.NewRunner(nil, nil, nil, log.New(&bytes.Buffer{}))
	srv := httptest.NewServer(New(runner, nil).Handler())
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/v1/runs", nil)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}

type recordingHTTPHooks struct {
	observability.NoopHTTPHooks
	mu       sync.Mutex
	patterns []string
	statuses []int
}

func (h *recordingHTTPHooks) OnResponse(ctx context.Context, method, path string, status int, d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.patterns = append(h.patterns, path)
	h.statuses = append(h.statuses, status)
}

func TestHTTPHooks(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	srv := newTestServer(t)
	do(t, http.MethodGet, srv.URL+"/v1/runs/"+store.NewID(), nil)

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.patterns) != 1 {
		t.Fatalf("responses = %d, want 1", len(hooks.patterns))
	}
	if !strings.HasPrefix(hooks.patterns[0], "/v1/runs/{id}") {
		t.Errorf("path = %q, want route pattern", hooks.patterns[0])
	}
	if hooks.statuses[0] != http.StatusNotFound {
		t.Errorf("status = %d, want 404", hooks.statuses[0])
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(context.Canceled); got != http.StatusInternalServerError {
		t.Errorf("statusFor(plain) = %d, want 500", got)
	}
}
