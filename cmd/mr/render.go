package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/mrctl/internal/lifecycle"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

type theme struct {
	header lipgloss.Style
	ok     lipgloss.Style
	muted  lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
}

func newTheme(out io.Writer) theme {
	r := lipgloss.NewRenderer(out)
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		r.SetColorProfile(termenv.Ascii)
	}
	return theme{
		header: r.NewStyle().Bold(true),
		ok:     r.NewStyle().Foreground(lipgloss.Color("2")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("3")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (t theme) style(o lifecycle.Outcome) lipgloss.Style {
	switch o.State {
	case lifecycle.StateFailed:
		return t.fail
	case lifecycle.StateStarted, lifecycle.StateRunning, lifecycle.StateStopped:
		return t.ok
	case lifecycle.StateNotInstalled:
		return t.warn
	default:
		return t.muted
	}
}

// report prints one line per component under header and returns the joined
// component failures.
func (a *app) report(header string, r lifecycle.Report) error {
	fmt.Fprintln(a.out, a.theme.header.Render(header))
	for _, o := range r.Outcomes {
		fmt.Fprintf(a.out, "  %s\n", a.theme.style(o).Render(o.String()))
	}
	return r.Err()
}

func (a *app) println(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}
