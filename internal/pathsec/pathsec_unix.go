//go:build !windows

package pathsec

import (
	"os"
	"syscall"
)

// hardlinkCount reads Nlink from the Unix stat_t embedded in info.Sys().
func hardlinkCount(info os.FileInfo) (uint64, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(stat.Nlink), true
}

// isWritableDir reports whether the current process can write to dir.
func isWritableDir(dir string) bool {
	return syscall.Access(dir, 0x2 /* W_OK */) == nil
}
