package engine

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want Kind
	}{
		{name: "nil", err: nil, want: Unexpected},
		{name: "ENOENT", err: &os.PathError{Op: "open", Path: "x", Err: unix.ENOENT}, want: NotFound},
		{name: "EACCES", err: unix.EACCES, want: PermissionDenied},
		{name: "EPERM", err: unix.EPERM, want: PermissionDenied},
		{name: "EEXIST", err: unix.EEXIST, want: AlreadyExists},
		{name: "ENOTEMPTY", err: unix.ENOTEMPTY, want: AlreadyExists},
		{name: "EISDIR", err: unix.EISDIR, want: IsADirectory},
		{name: "EXDEV", err: &os.LinkError{Op: "rename", Old: "a", New: "b", Err: unix.EXDEV}, want: CrossDeviceLink},
		{name: "ELOOP", err: unix.ELOOP, want: SymlinkLoop},
		{name: "ENAMETOOLONG", err: unix.ENAMETOOLONG, want: NameTooLong},
		{name: "ENOSPC", err: unix.ENOSPC, want: NoSpaceLeft},
		{name: "EROFS", err: unix.EROFS, want: ReadOnlyFileSystem},
		{name: "EIO", err: unix.EIO, want: Unexpected},
		{name: "truncated", err: fmt.Errorf("%w: wrote 1 of 2 bytes", ErrTruncated), want: TruncatedCopy},
		{name: "exists", err: ErrDestinationExists, want: AlreadyExists},
		{name: "loop sentinel", err: ErrSymlinkLoop, want: SymlinkLoop},
		{name: "into itself", err: ErrIntoItself, want: InvalidArgument},
		{name: "same file", err: ErrSameFile, want: InvalidArgument},
		{name: "overwrite dir", err: ErrOverwriteDir, want: IsADirectory},
		{name: "just created", err: ErrJustCreated, want: AlreadyExists},
		{name: "os.ErrNotExist", err: os.ErrNotExist, want: NotFound},
		{name: "plain", err: errors.New("boom"), want: Unexpected},
		{name: "op error kind wins", err: &OpError{Kind: TruncatedCopy, Err: unix.EIO}, want: TruncatedCopy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "CrossDeviceLink", CrossDeviceLink.String())
	assert.Equal(t, "Unknown", Kind(99).String())
}

func TestOpErrorMessage(t *testing.T) {
	t.Parallel()

	t.Run("source and destination", func(t *testing.T) {
		t.Parallel()
		err := newOpError("copy", "a", "b", &os.PathError{Op: "open", Path: "a", Err: unix.EACCES})
		assert.Equal(t, "cannot copy 'a' to 'b': Permission denied", err.Error())
		assert.Equal(t, PermissionDenied, err.Kind)
	})

	t.Run("source only", func(t *testing.T) {
		t.Parallel()
		err := newOpError("stat", "missing", "", &os.PathError{Op: "lstat", Path: "missing", Err: unix.ENOENT})
		assert.Equal(t, "cannot stat 'missing': No such file or directory", err.Error())
	})

	t.Run("destination only", func(t *testing.T) {
		t.Parallel()
		err := newOpError("create directory", "", "d", unix.EROFS)
		assert.Equal(t, "cannot create directory 'd': Read-only file system", err.Error())
	})

	t.Run("destination exists", func(t *testing.T) {
		t.Parallel()
		err := newOpError("copy", "a", "b", ErrDestinationExists)
		assert.Equal(t, "cannot copy 'a' to 'b': File exists", err.Error())
	})

	t.Run("truncated keeps detail", func(t *testing.T) {
		t.Parallel()
		err := newOpError("copy", "a", "b", fmt.Errorf("%w: wrote 3 of 10 bytes", ErrTruncated))
		assert.Contains(t, err.Error(), "wrote 3 of 10 bytes")
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("asOpError keeps an existing OpError", func(t *testing.T) {
		t.Parallel()
		inner := newOpError("stat", "x", "", unix.ENOENT)
		got := asOpError("copy", "x", "y", fmt.Errorf("wrapped: %w", inner))
		assert.Same(t, inner, got)
	})
}
