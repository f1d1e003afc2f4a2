// Package platform moves file bytes using the best primitive the OS offers.
package platform

import (
	"io"
	"os"
)

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota // chunked read/write through a pooled buffer
	CopyFileRange                   // Linux copy_file_range(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams describes what to copy. Both files are read and written
// from offset zero.
type CopyFileParams struct {
	Src  *os.File
	Dst  *os.File
	Size int64 // bytes to transfer
	// Wrap, when set, wraps the destination stream (e.g. a rate limiter).
	// Kernel fast paths bypass user-space writers, so they are skipped.
	Wrap func(io.Writer) io.Writer
}
