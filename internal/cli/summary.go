package cli

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/corpusfork/internal/engine"
)

// Summary colors.
const (
	colorOK      = lipgloss.Color("42")
	colorWarning = lipgloss.Color("214")
	colorMuted   = lipgloss.Color("245")
)

// printSummary writes the run summary to w, styled when w is a terminal.
func printSummary(w io.Writer, name string, s *engine.Summary) {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isTerminal(f)
	}
	_, _ = io.WriteString(w, renderSummary(name, s, styled)+"\n")
}

// renderSummary formats the run summary with grouped thousands.
func renderSummary(name string, s *engine.Summary, styled bool) string {
	p := message.NewPrinter(language.English)

	headline := p.Sprintf("%s: %d lines in %d batches", name, s.Lines, s.Batches)
	detail := p.Sprintf("%d workers, batch size %d", s.Workers, s.BatchSize)
	if s.Ordered {
		detail += ", ordered"
	}
	if s.SkippedLines > 0 {
		detail += p.Sprintf(", %d undecodable lines skipped", s.SkippedLines)
	}
	status := "ok"
	if s.Failed > 0 {
		status = p.Sprintf("%d batches failed", s.Failed)
	}
	took := p.Sprintf("took %s (%.0f lines/s)", s.Elapsed.Round(time.Millisecond).String(), s.LinesPerSecond())

	if !styled {
		return headline + " (" + detail + "), " + status + ", " + took
	}

	statusStyle := lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	if s.Failed > 0 {
		statusStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	}
	muted := lipgloss.NewStyle().Foreground(colorMuted)
	return lipgloss.NewStyle().Bold(true).Render(headline) + " " +
		muted.Render("("+detail+")") + " " +
		statusStyle.Render(status) + " " +
		muted.Render(took)
}
