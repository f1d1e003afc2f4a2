package engine

import (
	"fmt"
	"os"
)

// SymlinkPolicy governs whether a symlink is replicated or dereferenced.
type SymlinkPolicy int

const (
	DontFollow            SymlinkPolicy = iota // -P
	FollowCommandLineOnly                      // -H
	FollowAll                                  // -L
)

func (p SymlinkPolicy) String() string {
	switch p {
	case DontFollow:
		return "never"
	case FollowCommandLineOnly:
		return "command-line"
	case FollowAll:
		return "always"
	default:
		return "unknown"
	}
}

func (p SymlinkPolicy) follows(topLevel bool) bool {
	switch p {
	case FollowAll:
		return true
	case FollowCommandLineOnly:
		return topLevel
	default:
		return false
	}
}

// VisitedSet holds the directory identities on the path from the traversal
// root to the current entry. It is persistent: With returns a new set and
// leaves the receiver unchanged, so sibling branches never see each other.
// The nil set is empty.
type VisitedSet struct {
	parent *VisitedSet
	id     DevIno
}

// Contains reports whether id is on the current branch.
func (v *VisitedSet) Contains(id DevIno) bool {
	for s := v; s != nil; s = s.parent {
		if s.id == id {
			return true
		}
	}
	return false
}

// With returns the set extended by id.
func (v *VisitedSet) With(id DevIno) *VisitedSet {
	return &VisitedSet{parent: v, id: id}
}

// Classification is the outcome of classifying one path.
type Classification struct {
	Path       string
	LinkTarget string // literal link text when a symlink is not followed
	Meta       Metadata
	Kind       FileKind // the path's own kind (lstat)
	Effective  FileKind // the kind after applying the symlink policy
	Followed   bool
}

// PathClassifier stats paths under a symlink policy. It never writes.
type PathClassifier struct {
	Policy SymlinkPolicy
}

// Classify stats path. topLevel marks a command-line argument, which matters
// for FollowCommandLineOnly. visited is the current branch; revisiting one of
// its directories fails with a SymlinkLoop error.
func (c PathClassifier) Classify(path string, topLevel bool, visited *VisitedSet) (Classification, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Classification{}, newOpError("stat", path, "", err)
	}

	cl := Classification{Path: path, Kind: kindFromMode(info.Mode())}

	if cl.Kind == Symlink {
		if c.Policy.follows(topLevel) {
			target, err := os.Stat(path)
			if err != nil {
				return Classification{}, newOpError("stat", path, "", err)
			}
			info = target
			cl.Followed = true
		} else {
			link, err := os.Readlink(path)
			if err != nil {
				return Classification{}, newOpError("read symbolic link", path, "", err)
			}
			cl.LinkTarget = link
		}
	}

	cl.Effective = kindFromMode(info.Mode())
	cl.Meta, err = metadataFromInfo(info)
	if err != nil {
		return Classification{}, newOpError("stat", path, "", err)
	}

	if cl.Effective == Directory && visited.Contains(cl.Meta.DevIno) {
		return cl, newOpError("copy", path, "", fmt.Errorf("%w: %s revisits an ancestor directory", ErrSymlinkLoop, path))
	}

	return cl, nil
}
