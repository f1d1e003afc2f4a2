package ui

import (
	"fmt"
	"io"
	"strings"
)

const progressBarWidth = 12

// LineProgress draws a single self-overwriting status line, e.g.
//
//	▪▪▪▪▪▪□□□□□□ copied 'src'
//
// It is meant for a terminal; use it only when IsTTY holds.
type LineProgress struct {
	w     io.Writer
	width int
	drawn bool
}

// NewLineProgress creates a progress line on w, truncated to width columns.
func NewLineProgress(w io.Writer, width int) *LineProgress {
	return &LineProgress{w: w, width: width}
}

// Show draws phase out of total with a label.
func (p *LineProgress) Show(phase, total int, label string) error {
	pct := 0.0
	if total > 0 {
		pct = float64(phase) / float64(total)
	}

	filled := barCells(pct, progressBarWidth)
	line := styleProgressFilled.Render(strings.Repeat("▪", filled)) +
		styleProgressEmpty.Render(strings.Repeat("□", progressBarWidth-filled))

	if room := p.width - progressBarWidth - 1; room > 0 {
		line += " " + styleLabel.Render(truncate(label, room))
	}

	_, err := fmt.Fprintf(p.w, "\r\033[K%s", line)
	p.drawn = true
	return err
}

// Clear erases the line if anything was drawn.
func (p *LineProgress) Clear() error {
	if !p.drawn {
		return nil
	}
	p.drawn = false
	_, err := io.WriteString(p.w, "\r\033[K")
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
