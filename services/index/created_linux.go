package index

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// creationTime falls back to the modification time on filesystems without birth times.
func creationTime(path string, info os.FileInfo) time.Time {
	var stat unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stat); err != nil {
		return info.ModTime()
	}
	if stat.Mask&unix.STATX_BTIME == 0 {
		return info.ModTime()
	}
	return time.Unix(stat.Btime.Sec, int64(stat.Btime.Nsec))
}
