package engine

import (
	"os"
	"time"
)

// FileKind identifies the kind of filesystem entry.
type FileKind int

const (
	RegularFile FileKind = iota
	Directory
	Symlink
	Special
)

func (k FileKind) String() string {
	switch k {
	case RegularFile:
		return "regular file"
	case Directory:
		return "directory"
	case Symlink:
		return "symbolic link"
	case Special:
		return "special file"
	default:
		return "unknown"
	}
}

func kindFromMode(mode os.FileMode) FileKind {
	switch {
	case mode.IsRegular():
		return RegularFile
	case mode.IsDir():
		return Directory
	case mode&os.ModeSymlink != 0:
		return Symlink
	default:
		return Special
	}
}

// DevIno uniquely identifies an inode.
type DevIno struct {
	Dev uint64
	Ino uint64
}

// Metadata is the attribute snapshot taken at planning time.
type Metadata struct {
	ModTime time.Time
	AccTime time.Time
	Size    int64
	DevIno  DevIno
	Rdev    uint64
	Mode    os.FileMode
	UID     uint32
	GID     uint32
}

// OpKind is the action an Operation performs.
type OpKind int

const (
	CreateDir OpKind = iota
	CopyFile
	CreateSymlink
	CreateSpecial
	Skip
)

func (k OpKind) String() string {
	switch k {
	case CreateDir:
		return "CreateDir"
	case CopyFile:
		return "CopyFile"
	case CreateSymlink:
		return "CreateSymlink"
	case CreateSpecial:
		return "CreateSpecial"
	case Skip:
		return "Skip"
	default:
		return "Unknown"
	}
}

// Operation is a single planned step. Operations are not modified after
// planning.
type Operation struct {
	SrcPath    string
	DstPath    string
	RelPath    string // relative to the top-level source; "" for the root
	LinkTarget string // CreateSymlink only
	Reason     error  // Skip only; nil for an intentional skip
	Meta       Metadata
	Kind       OpKind
}

// Plan is the ordered operation list for one top-level source. A directory's
// CreateDir precedes every operation beneath it.
type Plan struct {
	Src       string
	Dst       string
	Ops       []Operation
	Recursive bool
}

// Failures returns the planning-time failures recorded as Skip operations.
func (p *Plan) Failures() []*OpError {
	var out []*OpError
	for _, op := range p.Ops {
		if op.Kind != Skip || op.Reason == nil {
			continue
		}
		out = append(out, asOpError("copy", op.SrcPath, op.DstPath, op.Reason))
	}
	return out
}
