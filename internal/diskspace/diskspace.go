// SPDX-License-Identifier: MPL-2.0

package diskspace

import (
	"errors"
	"fmt"
)

// ErrInsufficient is the sentinel wrapped by all insufficient-space failures,
// including space-query errors (the check fails closed).
var ErrInsufficient = errors.New("insufficient disk space")

// Checker reports available space on the filesystem containing a path.
type Checker interface {
	// FreeMB returns available free space in megabytes, floor-rounded.
	FreeMB(path string) (uint64, error)
}

// NewChecker returns the platform Checker.
func NewChecker() Checker {
	return statChecker{}
}

// Ensure fails with an ErrInsufficient-wrapping error when the filesystem
// containing path has less than requiredMB megabytes available. A failing
// space query (including a nonexistent path) is treated as insufficient
// space rather than skipped.
func Ensure(c Checker, path string, requiredMB uint64) error {
	free, err := c.FreeMB(path)
	if err != nil {
		return fmt.Errorf("%w: querying free space at %s: %v", ErrInsufficient, path, err)
	}
	if free < requiredMB {
		return fmt.Errorf("%w: %d MB available at %s, %d MB required", ErrInsufficient, free, path, requiredMB)
	}
	return nil
}
