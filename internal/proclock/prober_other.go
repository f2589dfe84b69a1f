// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package proclock

// signalProber has no null-signal probe on this platform. Reporting every
// recorded owner as alive fails closed: a human has to remove the lock file
// rather than two updaters running concurrently.
type signalProber struct{}

func newSignalProber() Prober {
	return signalProber{}
}

func (signalProber) Alive(pid int) bool {
	return pid > 0
}
