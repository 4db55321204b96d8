// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders terminal output for the tracker CLI.
//
// Output is styled with lipgloss when stdout is a terminal and falls back
// to plain tab-separated text otherwise.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Power suit palette.
var (
	ColorSuitOrange = lipgloss.Color("#F28C28") // titles, highlights
	ColorVisorGreen = lipgloss.Color("#5BE37D") // collected, success
	ColorEnergyPink = lipgloss.Color("#E84A8A") // warnings
	ColorMissileRed = lipgloss.Color("#E74C3C") // errors
	ColorHullGrey   = lipgloss.Color("#5D6D7E") // muted text, borders
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorSuitOrange),
	Label:   lipgloss.NewStyle().Foreground(ColorHullGrey).Width(16),
	Muted:   lipgloss.NewStyle().Foreground(ColorHullGrey),
	Success: lipgloss.NewStyle().Foreground(ColorVisorGreen),
	Warning: lipgloss.NewStyle().Foreground(ColorEnergyPink),
	Error:   lipgloss.NewStyle().Foreground(ColorMissileRed),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorHullGrey).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
)

// Mode selects styled or plain output.
type Mode int

const (
	// ModeStyled uses colors, boxes and icons.
	ModeStyled Mode = iota
	// ModePlain writes one "key<TAB>value" fact per line.
	ModePlain
)

// DetectMode picks ModeStyled when f is a terminal. NO_COLOR forces
// ModePlain.
func DetectMode(f *os.File) Mode {
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return ModeStyled
	}
	return ModePlain
}

// Row is one label/value line in a Section.
type Row struct {
	Label string
	Value string
}

// Check is one entry in a Checklist.
type Check struct {
	Name string
	Done bool
}

// Printer writes CLI output in one Mode.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's output mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Title prints a heading. Plain mode prints nothing.
func (p *Printer) Title(text string) {
	if p.mode == ModePlain {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	p.status(IconSuccess, Styles.Success, "OK", text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status(IconWarning, Styles.Warning, "WARN", text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status(IconError, Styles.Error, "ERROR", text)
}

func (p *Printer) status(icon Icon, style lipgloss.Style, tag, text string) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "%s: %s\n", tag, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", style.Render(string(icon)), style.Render(text))
}

// Section prints labelled rows, boxed in styled mode. In plain mode each
// row is "section.label<TAB>value" with spaces in the key replaced.
func (p *Printer) Section(title string, rows []Row) {
	if p.mode == ModePlain {
		for _, r := range rows {
			fmt.Fprintf(p.w, "%s.%s\t%s\n", plainKey(title), plainKey(r.Label), r.Value)
		}
		return
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, Styles.Title.Render(title))
	for _, r := range rows {
		lines = append(lines, Styles.Label.Render(r.Label)+r.Value)
	}
	fmt.Fprintln(p.w, Styles.Box.Render(strings.Join(lines, "\n")))
}

// Checklist prints named flags, several per line in styled mode.
func (p *Printer) Checklist(title string, checks []Check, perLine int) {
	if p.mode == ModePlain {
		for _, c := range checks {
			fmt.Fprintf(p.w, "%s.%s\t%t\n", plainKey(title), plainKey(c.Name), c.Done)
		}
		return
	}
	if perLine <= 0 {
		perLine = 3
	}
	cells := make([]string, len(checks))
	for i, c := range checks {
		cell := Styles.Muted.Render(string(IconPending) + " " + c.Name)
		if c.Done {
			cell = Styles.Success.Render(string(IconSuccess) + " " + c.Name)
		}
		cells[i] = lipgloss.NewStyle().Width(18).Render(cell)
	}

	lines := []string{Styles.Title.Render(title)}
	for i := 0; i < len(cells); i += perLine {
		end := min(i+perLine, len(cells))
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells[i:end]...))
	}
	fmt.Fprintln(p.w, Styles.Box.Render(strings.Join(lines, "\n")))
}

// Gauge renders "cur/max" with a small bar in styled mode.
func (p *Printer) Gauge(cur, limit, width int) string {
	if p.mode == ModePlain || limit <= 0 {
		return fmt.Sprintf("%d/%d", cur, limit)
	}
	filled := min(max(cur*width/limit, 0), width)
	bar := Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d", bar, cur, limit)
}

// plainKey lowercases s and replaces spaces so it survives `cut -f1`.
func plainKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
