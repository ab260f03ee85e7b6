// SPDX-License-Identifier: MIT

//go:build !unix

package fsutil

import (
	"errors"
)

// Usage reports an error on platforms without Statfs accounting.
func Usage(string) (DiskUsage, error) {
	return DiskUsage{}, errors.New("disk usage accounting is not available on this platform")
}
