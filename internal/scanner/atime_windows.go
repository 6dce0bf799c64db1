//go:build windows

package scanner

import (
	"io/fs"
	"syscall"
	"time"
)

// accessTime extracts the last-access time from a fs.FileInfo's Win32
// file attribute data. Falls back to ModTime if unavailable.
func accessTime(info fs.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		return time.Unix(0, stat.LastAccessTime.Nanoseconds())
	}
	return info.ModTime()
}
