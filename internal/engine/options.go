package engine

import (
	"fmt"
	"strings"

	"github.com/bamsammich/ferry/internal/backup"
)

// Preserve is the set of attributes copied from source to destination.
type Preserve uint8

const (
	PreserveMode Preserve = 1 << iota
	PreserveOwnership
	PreserveTimestamps

	PreserveNone Preserve = 0
	PreserveAll           = PreserveMode | PreserveOwnership | PreserveTimestamps
)

var preserveNames = []struct {
	name string
	attr Preserve
}{
	{"mode", PreserveMode},
	{"ownership", PreserveOwnership},
	{"timestamps", PreserveTimestamps},
	{"all", PreserveAll},
}

// ParsePreserve parses a comma-separated attribute list such as
// "mode,timestamps" or "all".
func ParsePreserve(list string) (Preserve, error) {
	var p Preserve
	for field := range strings.SplitSeq(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		found := false
		for _, pn := range preserveNames {
			if pn.name == field {
				p |= pn.attr
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("invalid attribute %q (want mode, ownership, timestamps or all)", field)
		}
	}
	return p, nil
}

// Has reports whether every attribute in attr is set.
func (p Preserve) Has(attr Preserve) bool {
	return p&attr == attr
}

func (p Preserve) String() string {
	if p == PreserveAll {
		return "all"
	}
	var names []string
	for _, pn := range preserveNames[:3] {
		if p.Has(pn.attr) {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, ",")
}

// CopyOptions configures a copy. The zero value copies a single file without
// preserving attributes and refuses to replace an existing destination.
type CopyOptions struct {
	Backup        backup.Policy
	TargetDir     string // -t: copy every source into this directory
	BWLimit       int64  // bytes per second, 0 = unlimited
	Symlinks      SymlinkPolicy
	Preserve      Preserve
	Recursive     bool
	Force         bool
	Interactive   bool
	NoClobber     bool
	NoTargetDir   bool // -T: treat the destination as a plain path
	Verbose       bool
	OneFileSystem bool
}

// MoveOptions configures a move.
type MoveOptions struct {
	CopyOptions
	TryRename bool
}
