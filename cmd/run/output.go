package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/scval"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	reportStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// printer writes styled output when w is a terminal and plain text
// otherwise.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(f *os.File) *printer {
	return &printer{w: f, color: term.IsTerminal(int(f.Fd()))}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) title(text string) {
	fmt.Fprintln(p.w, p.style(titleStyle, text))
}

func (p *printer) result(v scval.ScVal) {
	fmt.Fprintln(p.w, p.style(resultStyle, "=> "+v.String()))
}

func (p *printer) report(b *budget.Budget) {
	fmt.Fprintln(p.w, p.style(reportStyle, b.Report()))
}

func (p *printer) errorLine(err error) string {
	return p.style(errorStyle, "Error: "+err.Error())
}
