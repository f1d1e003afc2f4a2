package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bamsammich/ferry/internal/event"
)

// RemoveConfig controls the removal pass.
type RemoveConfig struct {
	Events event.Handler
	Root   string
}

func (c RemoveConfig) emit(e event.Event) {
	if c.Events == nil {
		return
	}
	e.Timestamp = time.Now()
	c.Events.Handle(e)
}

// RemoveTree deletes Root and everything beneath it without following
// symlinks. Non-directories go first, then directories deepest first.
// It stops at the first failure and returns the number of entries removed.
func RemoveTree(ctx context.Context, cfg RemoveConfig) (int, error) {
	var toDelete []string
	var dirsToDelete []string

	err := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			dirsToDelete = append(dirsToDelete, path)
		} else {
			toDelete = append(toDelete, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s for removal: %w", cfg.Root, err)
	}

	removed := 0

	for _, path := range toDelete {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, newOpError("remove", path, "", err)
		}
		cfg.emit(event.Event{Type: event.Removed, Src: path})
		removed++
	}

	// Children sort after their parent, so reverse order is deepest first.
	sort.Sort(sort.Reverse(sort.StringSlice(dirsToDelete)))
	for _, path := range dirsToDelete {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, newOpError("remove", path, "", err)
		}
		cfg.emit(event.Event{Type: event.Removed, Src: path})
		removed++
	}

	return removed, nil
}
