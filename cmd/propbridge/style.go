package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// styles colours CLI output. Without a terminal every style renders plain.
type styles struct {
	pass  lipgloss.Style
	fail  lipgloss.Style
	title lipgloss.Style
	faint lipgloss.Style
}

func newStyles(w io.Writer) styles {
	if !isTerminal(w) {
		plain := lipgloss.NewStyle()
		return styles{pass: plain, fail: plain, title: plain, faint: plain}
	}
	return styles{
		pass:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")), // Green
		fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		title: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		faint: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
