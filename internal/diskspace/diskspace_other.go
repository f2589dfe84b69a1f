// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package diskspace

import "errors"

// statChecker has no statfs equivalent wired on this platform. Returning an
// error keeps Ensure failing closed rather than pretending space exists.
type statChecker struct{}

func (statChecker) FreeMB(string) (uint64, error) {
	return 0, errors.New("free space query not supported on this platform")
}
