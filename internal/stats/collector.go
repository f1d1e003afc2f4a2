package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bamsammich/ferry/internal/event"
)

// Collector tracks copy/move statistics. It is an event.Handler: the engine
// feeds it the same events the presenters see.
type Collector struct {
	startTime       time.Time
	filesCopied     atomic.Int64
	bytesCopied     atomic.Int64
	dirsCreated     atomic.Int64
	symlinksCreated atomic.Int64
	specialsCreated atomic.Int64
	skipped         atomic.Int64
	failed          atomic.Int64
	backups         atomic.Int64
	renamed         atomic.Int64
	removed         atomic.Int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Handle counts e.
func (c *Collector) Handle(e event.Event) {
	switch e.Type {
	case event.FileCopied:
		c.filesCopied.Add(1)
		c.bytesCopied.Add(e.Size)
	case event.DirCreated:
		c.dirsCreated.Add(1)
	case event.SymlinkCreated:
		c.symlinksCreated.Add(1)
	case event.SpecialCreated:
		c.specialsCreated.Add(1)
	case event.Skipped:
		c.skipped.Add(1)
	case event.Failed:
		c.failed.Add(1)
	case event.BackupCreated:
		c.backups.Add(1)
	case event.Renamed:
		c.renamed.Add(1)
	case event.Removed:
		c.removed.Add(1)
	}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesCopied     int64
	BytesCopied     int64
	DirsCreated     int64
	SymlinksCreated int64
	SpecialsCreated int64
	Skipped         int64
	Failed          int64
	Backups         int64
	Renamed         int64
	Removed         int64
	Elapsed         time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesCopied:     c.filesCopied.Load(),
		BytesCopied:     c.bytesCopied.Load(),
		DirsCreated:     c.dirsCreated.Load(),
		SymlinksCreated: c.symlinksCreated.Load(),
		SpecialsCreated: c.specialsCreated.Load(),
		Skipped:         c.skipped.Load(),
		Failed:          c.failed.Load(),
		Backups:         c.backups.Load(),
		Renamed:         c.renamed.Load(),
		Removed:         c.removed.Load(),
		Elapsed:         c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

// Add merges o into s. Elapsed keeps the larger value.
func (s Snapshot) Add(o Snapshot) Snapshot {
	return Snapshot{
		FilesCopied:     s.FilesCopied + o.FilesCopied,
		BytesCopied:     s.BytesCopied + o.BytesCopied,
		DirsCreated:     s.DirsCreated + o.DirsCreated,
		SymlinksCreated: s.SymlinksCreated + o.SymlinksCreated,
		SpecialsCreated: s.SpecialsCreated + o.SpecialsCreated,
		Skipped:         s.Skipped + o.Skipped,
		Failed:          s.Failed + o.Failed,
		Backups:         s.Backups + o.Backups,
		Renamed:         s.Renamed + o.Renamed,
		Removed:         s.Removed + o.Removed,
		Elapsed:         max(s.Elapsed, o.Elapsed),
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"copied=%d bytes=%d dirs=%d symlinks=%d specials=%d skipped=%d failed=%d backups=%d renamed=%d removed=%d",
		s.FilesCopied, s.BytesCopied, s.DirsCreated, s.SymlinksCreated, s.SpecialsCreated,
		s.Skipped, s.Failed, s.Backups, s.Renamed, s.Removed,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
