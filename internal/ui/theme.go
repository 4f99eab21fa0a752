// Package ui renders outcomes, pipeline results and self-update sessions
// for the terminal. Tool output is always printed verbatim.
package ui

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette. Colors use ANSI 256-color codes.
type Theme struct {
	Success lipgloss.TerminalColor
	Failure lipgloss.TerminalColor
	Warning lipgloss.TerminalColor
	Info    lipgloss.TerminalColor
	Faint   lipgloss.TerminalColor
	Header  lipgloss.TerminalColor
}

// ColorTheme is the default palette for dark terminals.
var ColorTheme = Theme{
	Success: lipgloss.Color("42"),
	Failure: lipgloss.Color("196"),
	Warning: lipgloss.Color("214"),
	Info:    lipgloss.Color("39"),
	Faint:   lipgloss.Color("245"),
	Header:  lipgloss.Color("255"),
}

// PlainTheme disables color.
var PlainTheme = Theme{
	Success: lipgloss.NoColor{},
	Failure: lipgloss.NoColor{},
	Warning: lipgloss.NoColor{},
	Info:    lipgloss.NoColor{},
	Faint:   lipgloss.NoColor{},
	Header:  lipgloss.NoColor{},
}

// ThemeNamed returns the palette for a config theme name.
func ThemeNamed(name string) Theme {
	if name == "plain" {
		return PlainTheme
	}
	return ColorTheme
}

type styles struct {
	ok, fail, warn, info, faint, header lipgloss.Style
}

func newStyles(t Theme) styles {
	base := lipgloss.NewStyle()
	return styles{
		ok:     base.Foreground(t.Success).Bold(true),
		fail:   base.Foreground(t.Failure).Bold(true),
		warn:   base.Foreground(t.Warning),
		info:   base.Foreground(t.Info),
		faint:  base.Foreground(t.Faint),
		header: base.Foreground(t.Header).Bold(true),
	}
}
