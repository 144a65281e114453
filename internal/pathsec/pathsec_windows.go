//go:build windows

package pathsec

import "os"

// hardlinkCount has no portable equivalent via os.FileInfo on Windows
// without opening a handle for GetFileInformationByHandle; we accept the
// gap here rather than add a cgo/syscall dependency purely for this one
// defense-in-depth check on a platform the gateway primarily targets via
// its PowerShell/cmd shell profiles rather than raw filesystem semantics.
func hardlinkCount(info os.FileInfo) (uint64, bool) {
	return 0, false
}

// isWritableDir approximates writability by attempting to stat the
// directory; a full ACL check would require golang.org/x/sys/windows.
func isWritableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0200 != 0
}
