package event

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Styles for TTY-mode progress lines.
var (
	phaseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "30", Dark: "51"})
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "246"})
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "214"})
	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "203"})
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "78"})
)

// Renderer consumes the event stream and prints human-readable progress
// lines. Constructed once per run; purely observational.
type Renderer struct {
	mu       sync.Mutex
	w        io.Writer
	width    int
	verbose  bool
	chunkCol int // bytes printed on the current preview line
}

// NewRenderer creates a TTY renderer writing to w at the given terminal
// width (0 means a conservative default). When verbose is set, raw agent
// chunks are shown as a dimmed preview.
func NewRenderer(w io.Writer, width int, verbose bool) *Renderer {
	if width <= 0 {
		width = 80
	}
	return &Renderer{w: w, width: width, verbose: verbose}
}

// TerminalWidth returns the terminal width for the given writer,
// defaulting to 100 if detection fails.
func TerminalWidth(w io.Writer) int {
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			return cols
		}
	}
	return 100
}

func (r *Renderer) line(s string) {
	if r.chunkCol > 0 {
		fmt.Fprintln(r.w)
		r.chunkCol = 0
	}
	fmt.Fprintln(r.w, truncate(s, r.width))
}

// truncate keeps a line within the terminal width, Unicode-aware.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width-1, "…")
}

func (r *Renderer) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case TypeSessionStart:
		r.line(phaseStyle.Render("session ") + e.SessionID)
	case TypeRoundStart:
		r.line(phaseStyle.Render(fmt.Sprintf("round %d", e.Round)) +
			dimStyle.Render("  "+e.Phase))
	case TypeAgentChunk:
		if !r.verbose {
			return
		}
		r.preview(e.Chunk)
	case TypeReviewFindings:
		r.line(fmt.Sprintf("  %s found %d issue(s), %d opportunit(ies)",
			e.Agent, e.Issues, e.Opportunities))
	case TypeResponseSummary:
		claimed := ""
		if e.Claimed {
			claimed = dimStyle.Render("  consensus claimed")
		}
		r.line(fmt.Sprintf("  %s responded: %d agree / %d disagree / %d partial",
			e.Agent, e.Agreed, e.Disagreed, e.Partial) + claimed)
	case TypeConsensus:
		style := okStyle
		if e.Verdict != "approve" {
			style = warnStyle
		}
		r.line("  consensus check: " + style.Render(e.Verdict))
	case TypeRoundTiming:
		r.line(dimStyle.Render(fmt.Sprintf("  round %d took %.1fs",
			e.Round, float64(e.DurationMS)/1000)))
	case TypeCompletion:
		style := okStyle
		if e.ExitCode != 0 {
			style = warnStyle
		}
		r.line(style.Render(e.Status) +
			dimStyle.Render(fmt.Sprintf("  exit %d", e.ExitCode)))
	case TypeError:
		r.line(errStyle.Render("error: ") + e.Message +
			dimStyle.Render(fmt.Sprintf("  [%s round %d %s]", e.Code, e.Round, e.Phase)))
	}
}

// preview streams dimmed agent output, wrapping bookkeeping only; the
// terminal handles actual wrapping.
func (r *Renderer) preview(chunk string) {
	chunk = strings.ReplaceAll(chunk, "\r", "")
	fmt.Fprint(r.w, dimStyle.Render(chunk))
	if i := strings.LastIndex(chunk, "\n"); i >= 0 {
		r.chunkCol = len(chunk) - i - 1
	} else {
		r.chunkCol += len(chunk)
	}
}
