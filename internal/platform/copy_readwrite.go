package platform

import (
	"errors"
	"io"
	"os"
	"sync"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// CopyStream copies up to n bytes from src to dst in buffer-sized chunks and
// returns the number of bytes written. Reaching EOF before n bytes is not an
// error; callers compare the count against what they expected.
func CopyStream(dst io.Writer, src io.Reader, n int64) (int64, error) {
	bufp := bufPool.Get().(*[]byte) //nolint:errcheck,forcetypeassert // pool only holds *[]byte
	defer bufPool.Put(bufp)
	buf := *bufp

	var total int64
	for total < n {
		chunk := min(int64(len(buf)), n-total)
		nr, rerr := src.Read(buf[:chunk])
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, werr
			}
			if nw != nr {
				return total, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return total, rerr
		}
	}
	return total, nil
}

func copyReadWrite(params CopyFileParams) (CopyResult, error) {
	var w io.Writer = params.Dst
	if params.Wrap != nil {
		w = params.Wrap(w)
	}
	n, err := CopyStream(w, params.Src, params.Size)
	return CopyResult{BytesWritten: n, Method: ReadWrite}, err
}

// isFallbackErr returns true if err should trigger a fallback to the next copy strategy.
func isFallbackErr(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return isUnsupported(err)
}
