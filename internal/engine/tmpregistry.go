package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	tmpSuffix = ".ferry-tmp"
	nameMax   = 255 // NAME_MAX on the filesystems we target
	// tmpOverhead is what tmpPathFor adds around the base name: the leading
	// dot, a separator, eight id characters and tmpSuffix.
	tmpOverhead = 1 + 1 + 8 + len(tmpSuffix)
)

// globalTmpRegistry tracks temp entries that have not yet been renamed into
// place, so an interrupted run can remove them.
var globalTmpRegistry = &tmpRegistry{}

type tmpRegistry struct {
	paths map[string]struct{}
	mu    sync.Mutex
}

// tmpPathFor returns a unique hidden sibling of dst. Long base names are
// shortened so the temp name stays within nameMax bytes.
func tmpPathFor(dst string) string {
	dir, base := filepath.Split(dst)
	if limit := nameMax - tmpOverhead; len(base) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(base[cut]) {
			cut--
		}
		base = base[:cut]
	}
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", base, uuid.New().String()[:8], tmpSuffix))
}

// stageAndRename creates an entry at a temp path with create, then renames
// it over dst. The temp entry is removed if anything fails, so dst is either
// untouched or fully replaced.
func stageAndRename(dst string, create func(tmp string) error) error {
	tmp := tmpPathFor(dst)
	RegisterTmp(tmp)
	defer func() {
		DeregisterTmp(tmp)
		_ = os.Remove(tmp) // no-op if rename succeeded
	}()

	if err := create(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// RegisterTmp adds a temporary path to the global registry.
func RegisterTmp(path string) {
	globalTmpRegistry.mu.Lock()
	defer globalTmpRegistry.mu.Unlock()
	if globalTmpRegistry.paths == nil {
		globalTmpRegistry.paths = make(map[string]struct{})
	}
	globalTmpRegistry.paths[path] = struct{}{}
}

// DeregisterTmp removes a temporary path from the global registry.
func DeregisterTmp(path string) {
	globalTmpRegistry.mu.Lock()
	defer globalTmpRegistry.mu.Unlock()
	delete(globalTmpRegistry.paths, path)
}

// CleanupTmpFiles removes every registered temporary path. The CLI calls it
// when a signal interrupts a run.
func CleanupTmpFiles() int {
	globalTmpRegistry.mu.Lock()
	paths := make([]string, 0, len(globalTmpRegistry.paths))
	for p := range globalTmpRegistry.paths {
		paths = append(paths, p)
	}
	globalTmpRegistry.paths = nil
	globalTmpRegistry.mu.Unlock()

	for _, p := range paths {
		_ = os.Remove(p)
	}
	return len(paths)
}
