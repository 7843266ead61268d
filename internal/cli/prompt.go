package cli

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/results"
	"github.com/matzehuels/treesearch/pkg/search"
)

// onCancelAsk prompts for a decision when a search is cancelled.
const onCancelAsk = "ask"

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// KeepModel - keep or discard the trees of a cancelled search
// =============================================================================

var keepChoices = []struct {
	label string
	value results.Disposition
}{
	{"Keep the trees found so far", results.Keep},
	{"Discard them", results.Discard},
}

// KeepModel is the bubbletea model asking whether to keep the trees of a
// cancelled search.
type KeepModel struct {
	Result   *search.Result
	Cursor   int
	Selected results.Disposition
}

// NewKeepModel creates the prompt for res.
func NewKeepModel(res *search.Result) KeepModel {
	return KeepModel{Result: res}
}

func (m KeepModel) Init() tea.Cmd {
	return nil
}

func (m KeepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(keepChoices)-1 {
				m.Cursor++
			}
		case "y":
			m.Selected = results.Keep
			return m, tea.Quit
		case "n":
			m.Selected = results.Discard
			return m, tea.Quit
		case "enter":
			m.Selected = keepChoices[m.Cursor].value
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m KeepModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Search cancelled"))
	b.WriteString("\n")
	if m.Result != nil {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("%d tree(s) with %s %s = %s after %d moves",
			len(m.Result.Trees), m.Result.Direction, m.Result.Criterion, m.Result.Best, m.Result.MovesExamined)))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  y keep  n discard"))
	b.WriteString("\n\n")

	for i, c := range keepChoices {
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render("▸ " + c.label))
		} else {
			b.WriteString(listNormalStyle.Render("  " + c.label))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// Decision
// =============================================================================

// isInteractive reports whether a prompt can be shown.
func isInteractive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stderr)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// validateOnCancel checks an --on-cancel value.
func validateOnCancel(s string) error {
	if s == onCancelAsk {
		return nil
	}
	_, err := results.ParseDisposition(s)
	return err
}

// decider returns the pipeline Decide callback for an --on-cancel value.
// "ask" prompts on a terminal and keeps the trees otherwise. before runs
// ahead of the prompt, e.g. to stop a spinner.
func decider(onCancel string, before func()) func(*search.Result) results.Disposition {
	if onCancel != onCancelAsk {
		return nil
	}
	return func(res *search.Result) results.Disposition {
		if before != nil {
			before()
		}
		if !isInteractive() {
			return results.Keep
		}
		d, err := askKeep(res)
		if err != nil {
			printWarning("Prompt failed (%v); keeping trees", err)
			return results.Keep
		}
		return d
	}
}

// askKeep runs the keep/discard prompt. Quitting the prompt keeps the trees.
func askKeep(res *search.Result) (results.Disposition, error) {
	final, err := tea.NewProgram(NewKeepModel(res), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return results.Undecided, errors.Wrap(errors.ErrCodeInternal, err, "run prompt")
	}
	if m, ok := final.(KeepModel); ok && m.Selected != results.Undecided {
		return m.Selected, nil
	}
	return results.Keep, nil
}
