// SPDX-License-Identifier: MPL-2.0

// Package proclock enforces at-most-one concurrent updater run per host
// via a PID-stamped lock file.
//
// Contention is never waited out: if the recorded PID belongs to a live
// process the caller must exit. A lock whose owner is no longer running is
// stale and gets reclaimed. Process liveness is probed through the Prober
// interface so tests do not depend on the host process table.
package proclock
