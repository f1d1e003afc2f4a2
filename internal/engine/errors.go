package engine

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Kind classifies a filesystem failure.
type Kind int

const (
	Unexpected Kind = iota
	NotFound
	PermissionDenied
	AlreadyExists
	IsADirectory
	CrossDeviceLink // internal: triggers the move copy fallback
	SymlinkLoop
	TruncatedCopy
	NameTooLong
	NoSpaceLeft
	ReadOnlyFileSystem
	InvalidArgument
)

var kindNames = [...]string{
	Unexpected:         "Unexpected",
	NotFound:           "NotFound",
	PermissionDenied:   "PermissionDenied",
	AlreadyExists:      "AlreadyExists",
	IsADirectory:       "IsADirectory",
	CrossDeviceLink:    "CrossDeviceLink",
	SymlinkLoop:        "SymlinkLoop",
	TruncatedCopy:      "TruncatedCopy",
	NameTooLong:        "NameTooLong",
	NoSpaceLeft:        "NoSpaceLeft",
	ReadOnlyFileSystem: "ReadOnlyFileSystem",
	InvalidArgument:    "InvalidArgument",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Sentinel errors for conditions the OS does not report itself.
var (
	ErrDestinationExists = errors.New("destination exists")
	ErrTruncated         = errors.New("short copy")
	ErrSymlinkLoop       = errors.New("too many levels of symbolic links")
	ErrIsDirectory       = errors.New("is a directory")
	ErrIntoItself        = errors.New("cannot copy a directory into itself")
	ErrSameFile          = errors.New("source and destination are the same file")
	ErrOverwriteDir      = errors.New("cannot overwrite directory with non-directory")
	ErrOverwriteNonDir   = errors.New("cannot overwrite non-directory with directory")
	ErrJustCreated       = errors.New("will not overwrite just-created file")
)

// KindOf maps err onto a Kind. Wrapped errors are unwrapped.
func KindOf(err error) Kind {
	if err == nil {
		return Unexpected
	}

	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}

	switch {
	case errors.Is(err, ErrDestinationExists):
		return AlreadyExists
	case errors.Is(err, ErrTruncated):
		return TruncatedCopy
	case errors.Is(err, ErrSymlinkLoop):
		return SymlinkLoop
	case errors.Is(err, ErrIsDirectory), errors.Is(err, ErrOverwriteDir):
		return IsADirectory
	case errors.Is(err, ErrIntoItself), errors.Is(err, ErrSameFile):
		return InvalidArgument
	case errors.Is(err, ErrOverwriteNonDir), errors.Is(err, ErrJustCreated):
		return AlreadyExists
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return NotFound
		case errors.Is(err, os.ErrPermission):
			return PermissionDenied
		case errors.Is(err, os.ErrExist):
			return AlreadyExists
		}
		return Unexpected
	}

	switch errno {
	case unix.ENOENT:
		return NotFound
	case unix.EACCES, unix.EPERM:
		return PermissionDenied
	case unix.EEXIST, unix.ENOTEMPTY:
		return AlreadyExists
	case unix.EISDIR:
		return IsADirectory
	case unix.EXDEV:
		return CrossDeviceLink
	case unix.ELOOP:
		return SymlinkLoop
	case unix.ENAMETOOLONG:
		return NameTooLong
	case unix.ENOSPC, unix.EDQUOT:
		return NoSpaceLeft
	case unix.EROFS:
		return ReadOnlyFileSystem
	default:
		return Unexpected
	}
}

// OpError records a failed operation on one path.
type OpError struct {
	Err  error
	Verb string // "copy", "move", "create directory", ...
	Src  string
	Dst  string
	Kind Kind
}

func newOpError(verb, src, dst string, err error) *OpError {
	return &OpError{Verb: verb, Src: src, Dst: dst, Kind: KindOf(err), Err: err}
}

// asOpError returns err itself when it already is an *OpError.
func asOpError(verb, src, dst string, err error) *OpError {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr
	}
	return newOpError(verb, src, dst, err)
}

// Error renders "cannot <verb> '<src>' to '<dst>': <reason>". The program
// prefix is added by the caller.
func (e *OpError) Error() string {
	switch {
	case e.Src != "" && e.Dst != "":
		return fmt.Sprintf("cannot %s '%s' to '%s': %s", e.Verb, e.Src, e.Dst, e.Reason())
	case e.Dst != "":
		return fmt.Sprintf("cannot %s '%s': %s", e.Verb, e.Dst, e.Reason())
	default:
		return fmt.Sprintf("cannot %s '%s': %s", e.Verb, e.Src, e.Reason())
	}
}

func (e *OpError) Unwrap() error { return e.Err }

// Reason is the human-readable cause, without path decoration.
func (e *OpError) Reason() string {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return capitalize(errno.Error())
	}
	switch e.Kind {
	case AlreadyExists:
		if errors.Is(e.Err, ErrOverwriteNonDir) || errors.Is(e.Err, ErrJustCreated) {
			return e.Err.Error()
		}
		return "File exists"
	case TruncatedCopy:
		return e.Err.Error()
	case NotFound:
		return "No such file or directory"
	case PermissionDenied:
		return "Permission denied"
	}
	return e.Err.Error()
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
