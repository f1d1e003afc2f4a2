package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Target pairs a source with the destination path it is written to.
type Target struct {
	Src string
	Dst string
}

// Usage errors detected while resolving targets.
var (
	ErrMissingDestination = errors.New("missing destination file operand")
	ErrTargetConflict     = errors.New("cannot combine --target-directory (-t) and --no-target-directory (-T)")
)

// ResolveTargets maps command-line operands to targets. With targetDir set
// every operand is a source copied into that directory. Otherwise the last
// operand is the destination: an existing directory receives each source
// under its base name, and with several sources it must be one.
func ResolveTargets(operands []string, targetDir string, noTargetDir bool) ([]Target, error) {
	if targetDir != "" && noTargetDir {
		return nil, ErrTargetConflict
	}

	if targetDir != "" {
		if len(operands) == 0 {
			return nil, errors.New("missing file operand")
		}
		if !isDir(targetDir) {
			return nil, fmt.Errorf("target directory '%s' is not a directory", targetDir)
		}
		return into(targetDir, operands), nil
	}

	switch len(operands) {
	case 0:
		return nil, errors.New("missing file operand")
	case 1:
		return nil, fmt.Errorf("%w after '%s'", ErrMissingDestination, operands[0])
	}

	sources, dest := operands[:len(operands)-1], operands[len(operands)-1]

	if noTargetDir {
		if len(sources) > 1 {
			return nil, fmt.Errorf("extra operand '%s'", operands[2])
		}
		return []Target{{Src: sources[0], Dst: dest}}, nil
	}

	if isDir(dest) {
		return into(dest, sources), nil
	}
	if len(sources) > 1 {
		return nil, fmt.Errorf("target '%s' is not a directory", dest)
	}
	return []Target{{Src: sources[0], Dst: dest}}, nil
}

func into(dir string, sources []string) []Target {
	targets := make([]Target, len(sources))
	for i, src := range sources {
		targets[i] = Target{Src: src, Dst: filepath.Join(dir, filepath.Base(src))}
	}
	return targets
}

// isDir follows symlinks, so a link to a directory counts as one.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
