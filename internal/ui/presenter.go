// Package ui renders engine events for a terminal.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// Mode selects the wording of verbose lines.
type Mode int

const (
	CopyMode Mode = iota
	MoveMode
)

// Config configures a Presenter.
type Config struct {
	Out     io.Writer // verbose lines
	ErrOut  io.Writer // error lines
	Program string
	Mode    Mode
	Verbose bool
	Color   bool // style the error prefix
}

// Presenter prints engine events as they happen: one line per entry in
// verbose mode and one line per failure always.
type Presenter struct {
	cfg Config
	mu  sync.Mutex
}

// NewPresenter creates a Presenter.
func NewPresenter(cfg Config) *Presenter {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.ErrOut == nil {
		cfg.ErrOut = io.Discard
	}
	return &Presenter{cfg: cfg}
}

// Handle implements event.Handler.
func (p *Presenter) Handle(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Type == event.Failed {
		p.printError(e.Error)
		return
	}
	if !p.cfg.Verbose {
		return
	}

	switch e.Type {
	case event.FileCopied, event.DirCreated, event.SymlinkCreated, event.SpecialCreated:
		prefix := ""
		if p.cfg.Mode == MoveMode {
			prefix = "copied "
		}
		fmt.Fprintf(p.cfg.Out, "%s'%s' -> '%s'%s\n", prefix, e.Src, e.Dst, backupNote(e.Backup))
	case event.Renamed:
		fmt.Fprintf(p.cfg.Out, "renamed '%s' -> '%s'%s\n", e.Src, e.Dst, backupNote(e.Backup))
	case event.Removed:
		fmt.Fprintf(p.cfg.Out, "removed '%s'\n", e.Src)
	case event.Skipped:
		fmt.Fprintf(p.cfg.Out, "skipped '%s'\n", e.Dst)
	}
}

// Errorf prints a failure that did not come from the engine, such as a
// usage error.
func (p *Presenter) Errorf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printError(fmt.Errorf(format, args...))
}

func (p *Presenter) printError(err error) {
	if err == nil {
		return
	}
	prefix := p.cfg.Program + ":"
	if p.cfg.Color {
		prefix = styleErrorPrefix.Render(prefix)
	}
	fmt.Fprintf(p.cfg.ErrOut, "%s %s\n", prefix, err)
}

func backupNote(path string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf(" (backup: '%s')", path)
}

// Summary builds a one-line digest of a finished run.
// Format: done ✓  files 48,917  size 2.1 GiB  avg 641.0 MiB/s  time 3m17s  errors 0
func Summary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesCopied) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.Failed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  files %s  size %s  avg %s  time %s",
		icon,
		FormatCount(snap.FilesCopied),
		stats.FormatBytes(snap.BytesCopied),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)
	if snap.Renamed > 0 {
		base += fmt.Sprintf("  renamed %s", FormatCount(snap.Renamed))
	}
	if snap.Skipped > 0 {
		base += fmt.Sprintf("  skipped %s", FormatCount(snap.Skipped))
	}
	return base + fmt.Sprintf("  errors %d", snap.Failed)
}
