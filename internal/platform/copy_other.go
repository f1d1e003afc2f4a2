//go:build !linux

package platform

// CopyFile copies through the chunked read/write path.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(params)
}

func isUnsupported(error) bool { return false }
