//go:build !linux && !darwin && !windows

package scanner

import (
	"io/fs"
	"time"
)

// accessTime on platforms without a known Stat_t layout approximates the
// last-access time with the modification time.
func accessTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
