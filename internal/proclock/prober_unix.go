// SPDX-License-Identifier: MPL-2.0

//go:build unix

package proclock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// signalProber checks process liveness with a null signal.
type signalProber struct{}

func newSignalProber() Prober {
	return signalProber{}
}

// Alive sends signal 0 to pid. EPERM still means the process exists — it
// just belongs to another user.
func (signalProber) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
