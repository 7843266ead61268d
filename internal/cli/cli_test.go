package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/render"
	"github.com/matzehuels/treesearch/pkg/results"
	"github.com/matzehuels/treesearch/pkg/store"
)

const quartetGenes = "((A,B),(C,D));\n((A,B),(C,D));\n((A,C),(B,D));\n"

// captureStatus redirects status output to a buffer for the test's duration.
func captureStatus(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := statusOut
	statusOut = &buf
	t.Cleanup(func() { statusOut = old })
	return &buf
}

// writeConfig writes a config file archiving runs under dir with caching off.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	cfg := "[cache]\nbackend = \"none\"\n\n[store]\nbackend = \"file\"\ndir = \"" + filepath.ToSlash(filepath.Join(dir, "runs")) + "\"\n"
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestKeepModel(t *testing.T) {
	key := func(s string) tea.KeyMsg {
		switch s {
		case "enter":
			return tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			return tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			return tea.KeyMsg{Type: tea.KeyUp}
		}
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	run := func(keys ...string) KeepModel {
		var m tea.Model = NewKeepModel(nil)
		for _, k := range keys {
			m, _ = m.Update(key(k))
		}
		return m.(KeepModel)
	}

	tests := []struct {
		name string
		keys []string
		want results.Disposition
	}{
		{"enter keeps", []string{"enter"}, results.Keep},
		{"down enter discards", []string{"down", "enter"}, results.Discard},
		{"cursor clamps", []string{"down", "down", "up", "up", "up", "enter"}, results.Keep},
		{"y", []string{"y"}, results.Keep},
		{"n", []string{"n"}, results.Discard},
		{"quit leaves undecided", []string{"q"}, results.Undecided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.keys...).Selected; got != tt.want {
				t.Errorf("Selected = %v, want %v", got, tt.want)
			}
		})
	}

	if view := NewKeepModel(nil).View(); !strings.Contains(view, "Keep the trees") {
		t.Errorf("View() = %q, missing choices", view)
	}
}

func TestValidateOnCancel(t *testing.T) {
	for _, s := range []string{"ask", "keep", "discard"} {
		if err := validateOnCancel(s); err != nil {
			t.Errorf("validateOnCancel(%q) = %v", s, err)
		}
	}
	if err := validateOnCancel("maybe"); err == nil {
		t.Error("validateOnCancel(maybe) succeeded")
	}
}

func TestDecider(t *testing.T) {
	if d := decider("keep", nil); d != nil {
		t.Error("decider(keep) should leave the decision to on_cancel")
	}

	called := false
	d := decider(onCancelAsk, func() { called = true })
	if d == nil {
		t.Fatal("decider(ask) = nil")
	}
	// Tests never run on a terminal, so the prompt is skipped.
	if got := d(nil); got != results.Keep {
		t.Errorf("non-interactive decision = %v, want keep", got)
	}
	if !called {
		t.Error("before hook not called")
	}
}

func TestSearchOptions(t *testing.T) {
	c := New(io.Discard, LogInfo)

	t.Run("config defaults", func(t *testing.T) {
		cmd := c.searchCommand()
		opts, err := c.searchOptions(cmd, searchFlags{moves: "nni"})
		if err != nil {
			t.Fatal(err)
		}
		if opts.Moves != "spr" {
			t.Errorf("Moves = %q, want config default spr (flag not set)", opts.Moves)
		}
		if opts.Criterion != "concordance" || opts.MaxTrees != 100 {
			t.Errorf("opts = %+v", opts)
		}
		if opts.Direction != "" {
			t.Errorf("Direction = %q, want empty", opts.Direction)
		}
	})

	t.Run("flags override", func(t *testing.T) {
		cmd := c.searchCommand()
		for name, v := range map[string]string{"moves": "nni", "max-trees": "5", "direction": "minimize", "timeout": "90s", "replicates": "3"} {
			if err := cmd.Flags().Set(name, v); err != nil {
				t.Fatal(err)
			}
		}
		opts, err := c.searchOptions(cmd, searchFlags{moves: "nni", maxTrees: 5, direction: "minimize", timeout: 90e9, replicate: 3, seed: "((A,B),(C,D));"})
		if err != nil {
			t.Fatal(err)
		}
		if opts.Moves != "nni" || opts.MaxTrees != 5 || opts.Direction != "minimize" || opts.TimeoutSeconds != 90 || opts.Replicates != 3 {
			t.Errorf("opts = %+v", opts)
		}
		if opts.Seed != "((A,B),(C,D));" {
			t.Errorf("Seed = %q", opts.Seed)
		}
	})
}

func TestReadNewickArg(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		got, err := readNewickArg(" ((A,B),C);")
		if err != nil || got != " ((A,B),C);" {
			t.Errorf("readNewickArg() = %q, %v", got, err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "genes.tre")
		if err := os.WriteFile(path, []byte(quartetGenes), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := readNewickArg(path)
		if err != nil || got != quartetGenes {
			t.Errorf("readNewickArg() = %q, %v", got, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readNewickArg(filepath.Join(t.TempDir(), "nope.tre"))
		if !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("err = %v, want INVALID_INPUT", err)
		}
	})
}

func TestRenderFormat(t *testing.T) {
	tests := []struct {
		format, output, want string
	}{
		{"", "", render.FormatSVG},
		{"PNG", "tree.svg", render.FormatPNG},
		{"", "tree.pdf", render.FormatPDF},
		{"", "tree.gv", render.FormatDOT},
		{"", "tree.nwk", render.FormatNewick},
		{"", "tree.txt", render.FormatSVG},
	}
	for _, tt := range tests {
		if got := renderFormat(tt.format, tt.output); got != tt.want {
			t.Errorf("renderFormat(%q, %q) = %q, want %q", tt.format, tt.output, got, tt.want)
		}
	}
}

func TestSpinnerSetMessage(t *testing.T) {
	captureStatus(t)
	s := newSpinner("Searching...")
	s.SetMessage("Searching: best 2")
	s.SetMessage("x")
	if s.message != "x" || s.width != len("Searching: best 2") {
		t.Errorf("message = %q, width = %d", s.message, s.width)
	}
}

func TestSearchCommandLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	genes := filepath.Join(dir, "genes.tre")
	if err := os.WriteFile(genes, []byte(quartetGenes), 0644); err != nil {
		t.Fatal(err)
	}
	status := captureStatus(t)

	out := filepath.Join(dir, "best.tre")
	if err := execute(t, "--config", cfg, "search", genes, "--moves", "nni", "--on-cancel", "keep", "-o", out); err != nil {
		t.Fatalf("search: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), ";") {
		t.Errorf("output = %q, want Newick", data)
	}
	if !strings.Contains(status.String(), "converged") {
		t.Errorf("status output missing outcome:\n%s", status.String())
	}

	runs, err := store.NewFileStore(filepath.Join(dir, "runs"))
	if err != nil {
		t.Fatal(err)
	}
	recs, err := runs.List(context.Background(), 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("List() = %d records, %v", len(recs), err)
	}
	id := recs[0].ID

	drawn := filepath.Join(dir, "tree.nwk")
	if err := execute(t, "--config", cfg, "render", id, "-o", drawn); err != nil {
		t.Fatalf("render: %v", err)
	}
	if data, _ := os.ReadFile(drawn); !strings.Contains(string(data), "A") {
		t.Errorf("rendered = %q", data)
	}

	if err := execute(t, "--config", cfg, "render", id, "--tree", "9", "-o", drawn); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("render out of range: err = %v", err)
	}

	if err := execute(t, "--config", cfg, "runs", "delete", id); err != nil {
		t.Fatalf("runs delete: %v", err)
	}
	if _, err := runs.Get(context.Background(), id); !errors.IsNotFound(err) {
		t.Errorf("Get after delete: err = %v", err)
	}
}

func TestSearchReplicates(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	genes := filepath.Join(dir, "genes.tre")
	if err := os.WriteFile(genes, []byte(quartetGenes), 0644); err != nil {
		t.Fatal(err)
	}
	captureStatus(t)

	out := filepath.Join(dir, "best.tre")
	if err := execute(t, "--config", cfg, "search", genes, "--moves", "nni", "--replicates", "2", "--on-cancel", "keep", "--no-save", "-o", out); err != nil {
		t.Fatalf("search: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"(1 of 2 replicate searches)", "(2 of 2 replicate searches)"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output missing %q:\n%s", want, data)
		}
	}

	if err := execute(t, "--config", cfg, "search", genes, "--replicates", "9", "--no-save", "-o", out); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("too many replicates: err = %v", err)
	}
}

func TestCompletion(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	for _, shell := range completionShells() {
		var buf bytes.Buffer
		root.SetOut(&buf)
		root.SetArgs([]string{"completion", shell})
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("completion %s: %v", shell, err)
		}
		if !strings.Contains(buf.String(), "treesearch") {
			t.Errorf("completion %s script does not mention treesearch", shell)
		}
	}

	if err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("completion tcsh: expected error")
	}

	// Flag values complete from the registered criteria.
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{cobra.ShellCompNoDescRequestCmd, "search", "genes.tre", "--criterion", ""})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("__complete: %v", err)
	}
	for _, want := range []string{"concordance", "split-distance"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("criterion completions missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRunsWithoutStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[store]\nbackend = \"none\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	captureStatus(t)

	err := execute(t, "--config", path, "runs", "list")
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("err = %v, want UNSUPPORTED", err)
	}
}

func TestCacheClear(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	path := filepath.Join(dir, "config.toml")
	cfg := "[cache]\nbackend = \"file\"\ndir = \"" + filepath.ToSlash(cacheDir) + "\"\n"
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	status := captureStatus(t)

	if err := execute(t, "--config", path, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(status.String(), "empty") {
		t.Errorf("status = %q, want empty-cache notice", status.String())
	}
}
