// SPDX-License-Identifier: MIT

//go:build unix

package fsutil

import (
	"golang.org/x/sys/unix"
)

// Usage returns disk usage for the filesystem containing path.
func Usage(path string) (DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return DiskUsage{}, err
	}
	bs := uint64(st.Bsize) // #nosec G115 -- block size is small and positive
	total := st.Blocks * bs
	avail := st.Bavail * bs
	free := st.Bfree * bs
	used := total - free

	du := DiskUsage{
		TotalBytes:     total,
		UsedBytes:      used,
		AvailableBytes: avail,
	}
	if total > 0 {
		du.PercentUsed = float64(used) / float64(total) * 100
	}
	return du, nil
}
