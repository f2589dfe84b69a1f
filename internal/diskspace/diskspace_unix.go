// SPDX-License-Identifier: MPL-2.0

//go:build unix

package diskspace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// statChecker queries free space via statfs.
type statChecker struct{}

// FreeMB returns the space available to unprivileged users (f_bavail, not
// f_bfree) in floor-rounded megabytes.
func (statChecker) FreeMB(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize) / (1 << 20), nil
}
