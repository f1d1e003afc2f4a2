package engine

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// metadataFromInfo snapshots the attributes the executor may preserve.
func metadataFromInfo(info os.FileInfo) (Metadata, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Metadata{}, fmt.Errorf("unsupported stat type for %s", info.Name())
	}
	return Metadata{
		ModTime: info.ModTime(),
		AccTime: atimeFromStat(stat),
		Size:    info.Size(),
		DevIno:  DevIno{Dev: devFromStat(stat), Ino: uint64(stat.Ino)},
		Rdev:    rdevFromStat(stat),
		Mode:    info.Mode(),
		UID:     stat.Uid,
		GID:     stat.Gid,
	}, nil
}

// unixMode converts an os.FileMode into the st_mode bits mknod expects.
func unixMode(mode os.FileMode) uint32 {
	m := uint32(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		m |= unix.S_ISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= unix.S_ISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= unix.S_ISVTX
	}
	switch {
	case mode&os.ModeNamedPipe != 0:
		m |= unix.S_IFIFO
	case mode&os.ModeCharDevice != 0:
		m |= unix.S_IFCHR
	case mode&os.ModeDevice != 0:
		m |= unix.S_IFBLK
	}
	return m
}

// setPathTimes sets atime and mtime on path. With noFollow the times apply
// to a symlink itself.
func setPathTimes(path string, accTime, modTime time.Time, noFollow bool) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(accTime.UnixNano()),
		unix.NsecToTimespec(modTime.UnixNano()),
	}
	flags := 0
	if noFollow {
		flags = unix.AT_SYMLINK_NOFOLLOW
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, times, flags); err != nil {
		return fmt.Errorf("utimensat: %w", err)
	}
	return nil
}
