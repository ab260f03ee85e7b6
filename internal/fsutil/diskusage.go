// SPDX-License-Identifier: MIT

package fsutil

// DiskUsage reports capacity accounting for the filesystem holding a path.
type DiskUsage struct {
	TotalBytes     uint64
	UsedBytes      uint64
	AvailableBytes uint64
	PercentUsed    float64
}
