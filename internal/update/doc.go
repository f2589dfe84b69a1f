// SPDX-License-Identifier: MPL-2.0

// Package update sequences a full in-place station update: preflight checks,
// critical-file backup, source sync, dependency and installer runs, and the
// final restore, with a persisted progress marker making the destructive
// middle phase crash-recoverable.
//
// The Driver owns ordering and the error taxonomy only; disk probing,
// verified copies, marker persistence, and collaborator commands are all
// injected so tests can run the whole sequence against fakes.
package update
